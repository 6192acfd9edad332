// Package pipeline runs the staging workflow: for each incoming file, in
// order, duplicate check, extraction, archiving and one ledger row.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/receipts-intake/constants"
	"github.com/joseph-ayodele/receipts-intake/internal/archive"
	"github.com/joseph-ayodele/receipts-intake/internal/common"
	"github.com/joseph-ayodele/receipts-intake/internal/dedup"
	"github.com/joseph-ayodele/receipts-intake/internal/extract"
	"github.com/joseph-ayodele/receipts-intake/internal/hashing"
	"github.com/joseph-ayodele/receipts-intake/internal/ingest"
	"github.com/joseph-ayodele/receipts-intake/internal/ledger"
)

// Ledger is the part of the staging ledger a run writes to.
type Ledger interface {
	NextID() (int, error)
	Append(rec ledger.Record) (int, error)
	AppendError(code constants.ExtractionCode, hash, doneFilename string) (int, error)
	Records() ([]ledger.Record, error)
	Close() error
}

// LedgerOpener opens the ledger for one run.
type LedgerOpener func(path string, logger *slog.Logger) (Ledger, error)

// OpenLedger is the default LedgerOpener.
func OpenLedger(path string, logger *slog.Logger) (Ledger, error) {
	l, err := ledger.Open(path, logger)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// Config holds the resolved folders and ledger path of a run.
type Config struct {
	Incoming   string
	Scanned    string
	Imported   string
	Failed     string
	LedgerPath string
}

// ConfigFrom resolves the folder layout of an application config.
func ConfigFrom(c *common.Config) Config {
	f := c.Folders.Resolved()
	return Config{
		Incoming:   f.Incoming,
		Scanned:    f.Scanned,
		Imported:   f.Imported,
		Failed:     f.Failed,
		LedgerPath: c.LedgerPath(),
	}
}

// Processor coordinates the per-file workflow. It is not safe for concurrent
// Run calls against the same folders.
type Processor struct {
	cfg        Config
	hasher     *hashing.Hasher
	extractor  extract.Extractor
	archiver   *archive.Archiver
	openLedger  LedgerOpener
	logger      *slog.Logger
	now         func() time.Time
	retryFailed bool
}

type Option func(*processorOptions)

type processorOptions struct {
	openLedger  LedgerOpener
	now         func() time.Time
	archive     []archive.Option
	retryFailed bool
}

// WithLedgerOpener replaces the CSV ledger.
func WithLedgerOpener(fn LedgerOpener) Option {
	return func(o *processorOptions) { o.openLedger = fn }
}

// WithClock replaces time.Now for validation and archive timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *processorOptions) { o.now = now }
}

// WithRetryFailed lets files whose hash only appears on ERROR-* ledger rows be
// extracted again. By default every hash in the ledger counts as staged.
func WithRetryFailed(retry bool) Option {
	return func(o *processorOptions) { o.retryFailed = retry }
}

// WithArchiveOptions passes options through to the archiver.
func WithArchiveOptions(opts ...archive.Option) Option {
	return func(o *processorOptions) { o.archive = append(o.archive, opts...) }
}

func NewProcessor(cfg Config, hasher *hashing.Hasher, extractor extract.Extractor, logger *slog.Logger, opts ...Option) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if hasher == nil {
		hasher = hashing.NewHasher(0)
	}
	o := processorOptions{openLedger: OpenLedger, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	archOpts := append([]archive.Option{archive.WithClock(o.now)}, o.archive...)
	return &Processor{
		cfg:       cfg,
		hasher:    hasher,
		extractor: extractor,
		archiver: archive.NewArchiver(archive.Folders{
			Intermediate: cfg.Scanned,
			Final:        cfg.Imported,
			Failed:       cfg.Failed,
		}, logger, archOpts...),
		openLedger:  o.openLedger,
		logger:      logger,
		now:         o.now,
		retryFailed: o.retryFailed,
	}
}

// Run processes every file currently in the incoming folder. Per-file
// failures are recorded in the Summary; an error is returned only when the
// run cannot start (folders, ledger, duplicate index). Cancelling ctx stops
// the run between files.
func (p *Processor) Run(ctx context.Context) (Summary, error) {
	rc := newRunContext(p.logger, p.now())
	ctx = common.WithLogger(ctx, rc.Logger)
	log := rc.Logger
	log.Info("pipeline.run.start", "incoming", p.cfg.Incoming, "ledger", p.cfg.LedgerPath)

	for _, dir := range []string{p.cfg.Incoming, p.cfg.Scanned, p.cfg.Imported, p.cfg.Failed} {
		if err := p.archiver.EnsureDir(dir); err != nil {
			log.Error("pipeline.folder.failed", "dir", dir, "code", common.CodeOf(err), "error", err)
			return rc.finish(p.now()), err
		}
	}

	led, err := p.openLedger(p.cfg.LedgerPath, log)
	if err != nil {
		log.Error("pipeline.ledger.open_failed", "path", p.cfg.LedgerPath, "code", common.CodeOf(err), "error", err)
		return rc.finish(p.now()), err
	}
	defer func() {
		if err := led.Close(); err != nil {
			log.Warn("pipeline.ledger.close_failed", "error", err)
		}
	}()

	if n, err := p.archiver.ClearDir(p.cfg.Scanned); err != nil {
		log.Warn("pipeline.scanned.clear_failed", "dir", p.cfg.Scanned, "error", err)
	} else if n > 0 {
		log.Info("pipeline.scanned.cleared", "removed", n)
	}

	idx := dedup.NewIndex(p.hasher, log)
	if _, err := idx.Initialize(p.cfg.Imported); err != nil {
		log.Error("pipeline.index.failed", "dir", p.cfg.Imported, "error", err)
		return rc.finish(p.now()), err
	}

	if n, err := p.seedFromLedger(led, idx); err != nil {
		log.Warn("pipeline.index.ledger_failed", "path", p.cfg.LedgerPath, "code", common.CodeOf(err), "error", err)
	} else if n > 0 {
		log.Info("pipeline.index.ledger_seeded", "hashes", n, "retry_failed", p.retryFailed)
	}

	files, err := ingest.ListCandidates(p.cfg.Incoming)
	if err != nil {
		log.Error("pipeline.incoming.list_failed", "dir", p.cfg.Incoming, "error", err)
		return rc.finish(p.now()), err
	}
	log.Info("pipeline.run.candidates", "count", len(files))

	for i, path := range files {
		if ctx.Err() != nil {
			rc.summary.Interrupted = true
			log.Warn("pipeline.run.interrupted", "processed", i, "remaining", len(files)-i)
			break
		}
		p.processFile(ctx, rc, idx, led, path)
	}

	s := rc.finish(p.now())
	log.Info("pipeline.run.done",
		"completed", s.Completed,
		"failed", s.Failed,
		"duplicate", s.Duplicate,
		"hash_errors", s.HashErrors,
		"ledger_errors", s.LedgerErrors,
		"interrupted", s.Interrupted,
		"elapsed_ms", s.Duration.Milliseconds(),
	)
	return s, nil
}

// seedFromLedger adds the hashes of earlier ledger rows to the persisted tier
// so a file is staged at most once, even when its copy only reached the
// failed folder. ERROR-* rows are skipped when retrying failures.
func (p *Processor) seedFromLedger(led Ledger, idx *dedup.Index) (int, error) {
	recs, err := led.Records()
	if err != nil {
		return 0, err
	}
	added := 0
	for _, r := range recs {
		if r.Hash == "" {
			continue
		}
		failed := constants.IsExtractionCode(r.Description)
		if failed && p.retryFailed {
			continue
		}
		dir := p.cfg.Imported
		if failed {
			dir = p.cfg.Failed
		}
		location := fmt.Sprintf("%s#%d", p.cfg.LedgerPath, r.ID)
		if r.DoneFilename != "" {
			location = filepath.Join(dir, r.DoneFilename)
		}
		if idx.AddCommitted(r.Hash, location) {
			added++
		}
	}
	return added, nil
}

func (p *Processor) processFile(ctx context.Context, rc *RunContext, idx *dedup.Index, led Ledger, path string) {
	log := rc.Logger.With("file", filepath.Base(path))
	res := FileResult{Path: path, Status: constants.StatusPending}

	check := idx.Check(path)
	res.Hash = check.HashHex
	if check.HasError {
		res.Err = check.Err
		advance(&res, constants.StatusFailed, log)
		log.Error("pipeline.file.hash_failed", "code", common.CodeOf(check.Err), "error", check.Err)
		rc.record(res, true, false)
		return
	}
	if check.IsDuplicate {
		res.DuplicateOf = check.DuplicateLocation
		advance(&res, constants.StatusDuplicate, log)
		log.Info("pipeline.file.duplicate", "hash", res.Hash, "tier", check.Tier, "location", check.DuplicateLocation)
		rc.record(res, false, false)
		return
	}

	idx.AddToSession(res.Hash, filepath.Base(path))
	advance(&res, constants.StatusProcessing, log)

	// an interrupt must not abort the file in flight
	data, err := p.extractor.Extract(context.WithoutCancel(ctx), path)
	if err == nil {
		if vErr := extract.Validate(data, p.now()); vErr != nil {
			err = extract.NewError(extract.KindParseFailure, path, vErr)
		}
	}
	if err != nil {
		ledgerErr := p.fail(log, led, &res, extract.CodeFor(err), err)
		rc.record(res, false, ledgerErr)
		return
	}

	ledgerErr := p.complete(log, led, &res, data)
	rc.record(res, false, ledgerErr)
}

// complete archives a successfully extracted file and appends its row. It
// falls back to the failure path when archiving fails. The return value
// reports a ledger write failure.
func (p *Processor) complete(log *slog.Logger, led Ledger, res *FileResult, data extract.ReceiptData) bool {
	path := res.Path
	id, err := led.NextID()
	if err != nil {
		res.Err = err
		advance(res, constants.StatusFailed, log)
		log.Error("pipeline.ledger.next_id_failed", "code", common.CodeOf(err), "error", err)
		return true
	}
	date, _ := data.ParsedDate()

	inter, err := p.archiveWithFallback(log,
		func() (archive.Result, error) { return p.archiver.ToIntermediate(path, data.Description, date) },
		func() (archive.Result, error) { return p.archiver.WithHistory(path, path, p.cfg.Scanned, id, false) },
	)
	if err != nil {
		return p.fail(log, led, res, constants.ExtractionFile, fmt.Errorf("archive to scanned: %w", err))
	}
	final, err := p.archiveWithFallback(log,
		func() (archive.Result, error) { return p.archiver.ToFinal(inter.ArchivedPath, data.Description, date, id) },
		func() (archive.Result, error) { return p.archiver.WithHistory(inter.ArchivedPath, path, p.cfg.Imported, id, true) },
	)
	if err != nil {
		return p.fail(log, led, res, constants.ExtractionFile, fmt.Errorf("archive to imported: %w", err))
	}

	res.ArchivedFilename = final.ArchivedFilename
	gotID, err := led.Append(ledger.Record{
		Amount:        data.Amount,
		Tax:           data.Tax,
		TaxPercentage: data.TaxPercentage,
		Description:   data.Description,
		Currency:      data.Currency,
		Date:          data.Date,
		Confidence:    data.Confidence,
		Hash:          res.Hash,
		DoneFilename:  final.ArchivedFilename,
	})
	res.LedgerID = gotID
	advance(res, constants.StatusCompleted, log)
	if err != nil {
		res.Err = err
		log.Error("pipeline.ledger.append_failed", "id", gotID, "code", common.CodeOf(err), "error", err)
		return true
	}
	log.Info("pipeline.file.completed", "id", gotID, "hash", res.Hash, "archived", final.ArchivedFilename)
	return false
}

// fail copies the file to the failed folder and appends an error row.
func (p *Processor) fail(log *slog.Logger, led Ledger, res *FileResult, code constants.ExtractionCode, cause error) bool {
	path := res.Path
	reason := fmt.Sprintf("%s: %v", code, cause)
	res.Code = code
	res.Err = cause

	arch, err := p.archiver.ToFailed(path, reason)
	if common.IsCode(err, constants.FileExists) {
		if id, idErr := led.NextID(); idErr != nil {
			log.Error("pipeline.ledger.next_id_failed", "code", common.CodeOf(idErr), "error", idErr)
		} else {
			log.Info("pipeline.archive.name_taken", "dir", p.cfg.Failed, "fallback_id", id)
			arch, err = p.archiver.ToFailedWithHistory(path, id, reason)
		}
	}
	if err != nil {
		res.Err = errors.Join(cause, err)
		log.Error("pipeline.archive.failed_copy_failed", "code", common.CodeOf(err), "error", err)
	}
	res.ArchivedFilename = arch.ArchivedFilename

	id, lerr := led.AppendError(code, res.Hash, arch.ArchivedFilename)
	res.LedgerID = id
	advance(res, constants.StatusFailed, log)
	log.Warn("pipeline.file.failed", "id", id, "code", code, "error", cause)
	if lerr != nil {
		res.Err = errors.Join(res.Err, lerr)
		log.Error("pipeline.ledger.append_failed", "id", id, "code", common.CodeOf(lerr), "error", lerr)
		return true
	}
	return false
}

// archiveWithFallback retries once with the history-preserving name when the
// primary target name is already taken.
func (p *Processor) archiveWithFallback(log *slog.Logger, primary, fallback func() (archive.Result, error)) (archive.Result, error) {
	res, err := primary()
	if !common.IsCode(err, constants.FileExists) {
		return res, err
	}
	log.Info("pipeline.archive.name_taken", "error", err)
	return fallback()
}

func advance(res *FileResult, to constants.ProcessingStatus, log *slog.Logger) {
	if err := Transition(res.Status, to); err != nil {
		log.Error("pipeline.transition.invalid", "error", err)
	}
	res.Status = to
}
