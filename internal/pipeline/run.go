package pipeline

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipts-intake/constants"
)

// FileResult is the outcome of one candidate file.
type FileResult struct {
	Path             string
	Hash             string
	Status           constants.ProcessingStatus
	LedgerID         int // 0 when no row was allocated
	ArchivedFilename string
	Code             constants.ExtractionCode // set for Failed files with a ledger row
	DuplicateOf      string
	Err              error
}

// Summary aggregates one run.
type Summary struct {
	RunID        string
	StartedAt    time.Time
	Duration     time.Duration
	Completed    int
	Failed       int
	Duplicate    int
	HashErrors   int
	LedgerErrors int
	Interrupted  bool
	Files        []FileResult
}

// Total is the number of files that reached a terminal state.
func (s Summary) Total() int { return s.Completed + s.Failed + s.Duplicate }

// RunContext carries the state owned by a single run. Nothing about a run
// lives in package-level variables.
type RunContext struct {
	ID        string
	StartedAt time.Time
	Logger    *slog.Logger

	summary Summary
}

func newRunContext(logger *slog.Logger, now time.Time) *RunContext {
	id := uuid.NewString()
	return &RunContext{
		ID:        id,
		StartedAt: now,
		Logger:    logger.With("run_id", id),
		summary:   Summary{RunID: id, StartedAt: now},
	}
}

func (rc *RunContext) record(res FileResult, hashErr, ledgerErr bool) {
	switch res.Status {
	case constants.StatusCompleted:
		rc.summary.Completed++
	case constants.StatusFailed:
		rc.summary.Failed++
	case constants.StatusDuplicate:
		rc.summary.Duplicate++
	}
	if hashErr {
		rc.summary.HashErrors++
	}
	if ledgerErr {
		rc.summary.LedgerErrors++
	}
	rc.summary.Files = append(rc.summary.Files, res)
}

func (rc *RunContext) finish(now time.Time) Summary {
	rc.summary.Duration = now.Sub(rc.StartedAt)
	return rc.summary
}
