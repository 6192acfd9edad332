// Package export renders the staging ledger as an XLSX workbook.
package export

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/receipts-intake/internal/common"
	"github.com/joseph-ayodele/receipts-intake/internal/ledger"
)

const SheetName = "Staging"

// Service produces XLSX exports of the ledger.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// LedgerXLSX returns an XLSX workbook (as bytes) with one row per ledger record.
func (s *Service) LedgerXLSX(ledgerPath string) ([]byte, int, error) {
	start := time.Now()

	recs, err := ledger.ReadRecords(ledgerPath)
	if err != nil {
		return nil, 0, err
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("export.xlsx.close_failed", "error", err)
		}
	}()
	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, 0, fmt.Errorf("rename sheet: %w", err)
	}

	for i, h := range ledger.Header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(SheetName, cell, h)
	}

	for i, r := range recs {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(SheetName, cell, v)
		}
		write(1, r.ID)
		write(2, r.Amount)
		write(3, r.Tax)
		write(4, r.TaxPercentage)
		write(5, r.Description)
		write(6, r.Currency)
		write(7, r.Date)
		write(8, r.Confidence)
		write(9, r.Hash)
		write(10, r.DoneFilename)
	}

	// two-decimal display for the numeric columns
	style, err := f.NewStyle(&excelize.Style{NumFmt: 2})
	if err == nil && len(recs) > 0 {
		last := len(recs) + 1
		_ = f.SetCellStyle(SheetName, "B2", fmt.Sprintf("D%d", last), style)
		_ = f.SetCellStyle(SheetName, "H2", fmt.Sprintf("H%d", last), style)
	}

	// Widen a few columns
	_ = f.SetColWidth(SheetName, "E", "E", 32) // description
	_ = f.SetColWidth(SheetName, "I", "I", 66) // hash
	_ = f.SetColWidth(SheetName, "J", "J", 40) // file

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"ledger", ledgerPath,
		"rows", len(recs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), len(recs), nil
}

// WriteLedgerXLSX writes the export to out, creating its folder if needed.
func (s *Service) WriteLedgerXLSX(ledgerPath, out string) (int, error) {
	data, n, err := s.LedgerXLSX(ledgerPath)
	if err != nil {
		return 0, err
	}
	if dir := filepath.Dir(out); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, common.WrapFSError(err, "create export folder", dir)
		}
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return 0, common.WrapFSError(err, "write export", out)
	}
	return n, nil
}
