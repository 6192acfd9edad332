package extract

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/joseph-ayodele/receipts-intake/constants"
	"github.com/joseph-ayodele/receipts-intake/internal/common"
)

// Mock is the deterministic extractor used for dry runs and tests. Supported
// extensions produce ReceiptData derived from the filename; anything else is
// rejected as unsupported-format. Results and Errors override the default per
// file base name.
type Mock struct {
	Results map[string]ReceiptData
	Errors  map[string]error
	Now     func() time.Time

	logger *slog.Logger
	mu     sync.Mutex
	calls  []string
}

func NewMock(logger *slog.Logger) *Mock {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mock{
		Results: map[string]ReceiptData{},
		Errors:  map[string]error{},
		Now:     time.Now,
		logger:  logger,
	}
}

func (m *Mock) Extract(ctx context.Context, path string) (ReceiptData, error) {
	if err := ctx.Err(); err != nil {
		return ReceiptData{}, NewError(KindUnknown, path, err)
	}
	name := filepath.Base(path)
	log := common.LoggerFromContext(ctx, m.logger)

	m.mu.Lock()
	m.calls = append(m.calls, name)
	m.mu.Unlock()

	if err, ok := m.Errors[name]; ok {
		log.Debug("extract.mock.error", "file", name, "error", err)
		return ReceiptData{}, err
	}
	if d, ok := m.Results[name]; ok {
		return d, nil
	}
	if !constants.IsAllowedExt(filepath.Ext(name)) {
		return ReceiptData{}, NewError(KindUnsupportedFormat, path,
			fmt.Errorf("extension %q not supported", filepath.Ext(name)))
	}

	stem := strings.TrimSuffix(name, filepath.Ext(name))
	desc := strings.TrimSpace(strings.NewReplacer("_", " ", "-", " ").Replace(stem))
	if desc == "" {
		desc = "receipt"
	}
	return ReceiptData{
		Amount:        10,
		Tax:           0.8,
		TaxPercentage: 8,
		Description:   desc,
		Currency:      "USD",
		Date:          m.Now().Format("2006-01-02"),
		Confidence:    90,
	}, nil
}

// Calls returns the base names passed to Extract, in call order.
func (m *Mock) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}
