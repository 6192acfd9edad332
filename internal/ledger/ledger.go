// Package ledger implements the append-only staging ledger: a CSV file with a
// fixed header whose last row is the only source of the next record ID.
package ledger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joseph-ayodele/receipts-intake/constants"
	"github.com/joseph-ayodele/receipts-intake/internal/common"
)

// Header is the exact column layout of the ledger file.
var Header = []string{
	"ID", "Amount", "Tax", "TaxPercentage", "Description",
	"Currency", "Date", "Confidence", "Hash", "DoneFilename",
}

var (
	ErrLedgerHeader = errors.New("ledger header mismatch")
	ErrLedgerLocked = errors.New("ledger is locked by another run")
	ErrLedgerClosed = errors.New("ledger is closed")
)

// Record is one ledger row.
type Record struct {
	ID            int
	Amount        float64
	Tax           float64
	TaxPercentage float64
	Description   string
	Currency      string
	Date          string
	Confidence    float64
	Hash          string
	DoneFilename  string
}

func (r Record) row() []string {
	return []string{
		strconv.Itoa(r.ID),
		money(r.Amount),
		money(r.Tax),
		money(r.TaxPercentage),
		r.Description,
		r.Currency,
		r.Date,
		money(r.Confidence),
		r.Hash,
		r.DoneFilename,
	}
}

// money renders v with exactly two decimals.
func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// Ledger is an open ledger holding the append lock. A single run owns it.
type Ledger struct {
	path     string
	lockPath string
	logger   *slog.Logger
	closed   bool
}

func lockedError(lockPath string) error {
	return common.NewAppError(constants.FileLocked, ErrLedgerLocked.Error(), lockPath, ErrLedgerLocked)
}

// LockPath returns the lock file that guards appends to the ledger at path.
func LockPath(path string) string { return path + ".lock" }

// Open ensures the ledger exists with a valid header and takes the append
// lock. A lock held by a running process yields FILE_LOCKED; a lock whose
// process is gone is taken over.
func Open(path string, logger *slog.Logger) (*Ledger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := EnsureExists(path); err != nil {
		return nil, err
	}

	lockPath := LockPath(path)
	if err := acquireLock(lockPath, logger); err != nil {
		return nil, err
	}

	logger.Debug("ledger.opened", "path", path)
	return &Ledger{path: path, lockPath: lockPath, logger: logger}, nil
}

// Path returns the ledger file path.
func (l *Ledger) Path() string { return l.path }

// EnsureExists re-checks the ledger file; it is idempotent.
func (l *Ledger) EnsureExists() error {
	return EnsureExists(l.path)
}

// EnsureExists creates the ledger with its header row if it is absent or
// empty, and validates the header otherwise. Existing rows are never touched.
func EnsureExists(path string) error {
	if path == "" {
		return common.NewAppError(constants.InvalidPath, "empty ledger path", path, nil)
	}
	st, err := os.Stat(path)
	switch {
	case err == nil && st.IsDir():
		return common.NewAppError(constants.InvalidPath, "ledger path is a folder", path, nil)
	case err == nil && st.Size() > 0:
		return validateHeader(path)
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return common.WrapFSError(err, "stat ledger", path)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return common.NewAppError(constants.FolderCreationFailed, "create ledger folder", dir, err)
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return common.WrapFSError(err, "create ledger", path)
	}
	w := csv.NewWriter(f)
	_ = w.Write(Header)
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return common.WrapFSError(err, "write ledger header", path)
	}
	if err := f.Close(); err != nil {
		return common.WrapFSError(err, "close ledger", path)
	}
	return nil
}

func validateHeader(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return common.WrapFSError(err, "open ledger", path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	got, err := r.Read()
	if err != nil {
		return common.NewAppError(constants.LedgerInvalid, "read ledger header", path, errors.Join(ErrLedgerHeader, err))
	}
	if !sameHeader(got) {
		return common.NewAppError(constants.LedgerInvalid, fmt.Sprintf("unexpected header %v", got), path, ErrLedgerHeader)
	}
	return nil
}

func sameHeader(got []string) bool {
	if len(got) != len(Header) {
		return false
	}
	for i := range Header {
		if got[i] != Header[i] {
			return false
		}
	}
	return true
}

// NextID is 1 for a ledger without rows, otherwise the last row's ID + 1.
func (l *Ledger) NextID() (int, error) {
	if l.closed {
		return 0, ErrLedgerClosed
	}
	rows, err := l.readRows()
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 1, nil
	}
	last := rows[len(rows)-1]
	id, err := strconv.Atoi(last[0])
	if err != nil {
		return 0, common.NewAppError(constants.LedgerInvalid, fmt.Sprintf("last row has non-numeric ID %q", last[0]), l.path, err)
	}
	return id + 1, nil
}

// Append assigns the next ID to rec and writes it. When the write itself
// fails the allocated ID is still returned alongside the error; the row is
// not persisted and the ID will be handed out again.
func (l *Ledger) Append(rec Record) (int, error) {
	id, err := l.NextID()
	if err != nil {
		return 0, err
	}
	rec.ID = id
	if err := l.write(rec.row()); err != nil {
		l.logger.Error("ledger.append.failed", "path", l.path, "id", id, "code", common.CodeOf(err), "error", err)
		return id, err
	}
	l.logger.Debug("ledger.append", "id", id, "hash", rec.Hash, "file", rec.DoneFilename)
	return id, nil
}

// AppendError writes an error row for the given extraction outcome code.
func (l *Ledger) AppendError(code constants.ExtractionCode, hash, doneFilename string) (int, error) {
	if !constants.IsExtractionCode(string(code)) {
		return 0, fmt.Errorf("%w: extraction code %q", common.ErrInvalidInput, code)
	}
	return l.Append(Record{
		Description:  string(code),
		Hash:         hash,
		DoneFilename: doneFilename,
	})
}

func (l *Ledger) write(row []string) error {
	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return common.WrapFSError(err, "open ledger for append", l.path)
	}
	w := csv.NewWriter(f)
	_ = w.Write(row)
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return common.WrapFSError(err, "write ledger row", l.path)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return common.WrapFSError(err, "sync ledger", l.path)
	}
	if err := f.Close(); err != nil {
		return common.WrapFSError(err, "close ledger", l.path)
	}
	return nil
}

// Records returns every row of the ledger in file order.
func (l *Ledger) Records() ([]Record, error) {
	return ReadRecords(l.path)
}

// ReadRecords parses the ledger at path without taking the lock.
func ReadRecords(path string) ([]Record, error) {
	rows, err := readRows(path)
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(rows))
	for i, row := range rows {
		rec, err := parseRow(row)
		if err != nil {
			return nil, common.NewAppError(constants.LedgerInvalid, fmt.Sprintf("row %d", i+2), path, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func parseRow(row []string) (Record, error) {
	var (
		rec Record
		err error
	)
	if rec.ID, err = strconv.Atoi(row[0]); err != nil {
		return rec, fmt.Errorf("ID: %w", err)
	}
	nums := []struct {
		name string
		src  string
		dst  *float64
	}{
		{"Amount", row[1], &rec.Amount},
		{"Tax", row[2], &rec.Tax},
		{"TaxPercentage", row[3], &rec.TaxPercentage},
		{"Confidence", row[7], &rec.Confidence},
	}
	for _, n := range nums {
		if n.src == "" {
			continue
		}
		if *n.dst, err = strconv.ParseFloat(n.src, 64); err != nil {
			return rec, fmt.Errorf("%s: %w", n.name, err)
		}
	}
	rec.Description = row[4]
	rec.Currency = row[5]
	rec.Date = row[6]
	rec.Hash = row[8]
	rec.DoneFilename = row[9]
	return rec, nil
}

func (l *Ledger) readRows() ([][]string, error) {
	return readRows(l.path)
}

// readRows returns the data rows (header excluded).
func readRows(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, common.WrapFSError(err, "open ledger", path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(Header)
	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, common.NewAppError(constants.LedgerInvalid, "read ledger header", path, err)
	}
	if !sameHeader(header) {
		return nil, common.NewAppError(constants.LedgerInvalid, "unexpected ledger header", path, ErrLedgerHeader)
	}
	rows, err := r.ReadAll()
	if err != nil {
		return nil, common.NewAppError(constants.LedgerInvalid, "read ledger rows", path, err)
	}
	return rows, nil
}

// Close releases the append lock. It is safe to call more than once.
func (l *Ledger) Close() error {
	if l.closed {
		return nil
	}
	l.closed = true
	if err := os.Remove(l.lockPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return common.WrapFSError(err, "remove ledger lock", l.lockPath)
	}
	l.logger.Debug("ledger.closed", "path", l.path)
	return nil
}

// Reset replaces the ledger at path with a header-only file. It refuses while
// a running process holds the lock and clears a stale one.
func Reset(path string) error {
	lockPath := LockPath(path)
	if _, err := os.Stat(lockPath); err == nil {
		if err := clearStaleLock(lockPath, slog.Default()); err != nil {
			return err
		}
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return common.WrapFSError(err, "remove ledger", path)
	}
	return EnsureExists(path)
}
