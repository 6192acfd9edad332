// Package archive relocates receipt files through the folder lifecycle
// (incoming -> scanned -> imported, or -> failed) and names them on the way.
package archive

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipts-intake/constants"
	"github.com/joseph-ayodele/receipts-intake/internal/common"
)

const (
	dirPerm  = 0o755
	copyBuf  = 128 * 1024
	filePerm = 0o644
)

// Result describes one completed relocation. ArchivedFilename never contains a
// path separator; it is the value recorded in the ledger.
type Result struct {
	SourceFilename   string
	ArchivedFilename string
	ArchivedPath     string
	ArchiveTimestamp time.Time
	Identifier       string
}

// Folders are the archive destinations.
type Folders struct {
	Intermediate string
	Final        string
	Failed       string
}

// Archiver copies and moves files between lifecycle folders. Targets are never
// overwritten: an existing target yields FILE_EXISTS.
type Archiver struct {
	folders Folders
	fs      FS
	logger  *slog.Logger
	now     func() time.Time
}

type Option func(*Archiver)

// WithFS replaces the file-system capability (LocalFS by default).
func WithFS(fsys FS) Option {
	return func(a *Archiver) {
		if fsys != nil {
			a.fs = fsys
		}
	}
}

// WithClock replaces time.Now for archive timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *Archiver) {
		if now != nil {
			a.now = now
		}
	}
}

func NewArchiver(folders Folders, logger *slog.Logger, opts ...Option) *Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Archiver{
		folders: folders,
		fs:      LocalFS{},
		logger:  logger,
		now:     time.Now,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Folders returns the configured destinations.
func (a *Archiver) Folders() Folders { return a.folders }

// ToIntermediate copies source into the intermediate folder as
// "{yyyyMMdd}-{description}.{ext}". The source is left in place.
func (a *Archiver) ToIntermediate(source, description string, date time.Time) (Result, error) {
	name := IntermediateName(description, date, filepath.Ext(source))
	return a.copyTo(source, a.folders.Intermediate, name, uuid.NewString())
}

// ToFinal moves source into the final folder as
// "{seq}-{yyyyMMdd}-{description}.{ext}". The source is removed.
func (a *Archiver) ToFinal(source, description string, date time.Time, seq int) (Result, error) {
	name := FinalName(seq, description, date, filepath.Ext(source))
	return a.moveTo(source, a.folders.Final, name, strconv.Itoa(seq))
}

// ToFailed copies source into the failed folder under its original name and
// writes an error log next to it.
func (a *Archiver) ToFailed(source, reason string) (Result, error) {
	return a.toFailedAs(source, filepath.Base(source), uuid.NewString(), reason)
}

// ToFailedWithHistory is ToFailed with the history-preserving name, used when
// the original name is already taken in the failed folder.
func (a *Archiver) ToFailedWithHistory(source string, id int, reason string) (Result, error) {
	return a.toFailedAs(source, HistoryName(id, a.now(), source), strconv.Itoa(id), reason)
}

// WithHistory copies (or moves, when move is set) source into dir as
// "{id}-{yyyyMMddHHmmssffffff}-{original}". original is the incoming filename;
// source may be an intermediate copy with a different name.
func (a *Archiver) WithHistory(source, original, dir string, id int, move bool) (Result, error) {
	name := HistoryName(id, a.now(), original)
	if move {
		return a.moveTo(source, dir, name, strconv.Itoa(id))
	}
	return a.copyTo(source, dir, name, strconv.Itoa(id))
}

func (a *Archiver) toFailedAs(source, name, id, reason string) (Result, error) {
	res, err := a.copyTo(source, a.folders.Failed, name, id)
	if err != nil {
		return res, err
	}
	logPath := filepath.Join(a.folders.Failed, ErrorLogName(res.ArchivedFilename))
	if err := a.writeErrorLog(logPath, filepath.Base(source), res.ArchiveTimestamp, reason); err != nil {
		// the copy is in place; a missing sidecar is reported but not undone
		a.logger.Error("archive.error_log.failed", "path", logPath, "code", common.CodeOf(err), "error", err)
		return res, err
	}
	return res, nil
}

func (a *Archiver) writeErrorLog(path, original string, at time.Time, reason string) error {
	f, err := a.fs.CreateExclusive(path, filePerm)
	if err != nil {
		return common.WrapFSError(err, "create error log", path)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "original_filename: %s\n", original)
	fmt.Fprintf(&b, "timestamp: %s\n", at.Format(time.RFC3339))
	fmt.Fprintf(&b, "reason: %s\n", reason)
	if _, err := io.WriteString(f, b.String()); err != nil {
		_ = f.Close()
		return common.WrapFSError(err, "write error log", path)
	}
	if err := f.Close(); err != nil {
		return common.WrapFSError(err, "close error log", path)
	}
	return nil
}

// checkSource enforces that source is an existing regular file.
func (a *Archiver) checkSource(source string) (fs.FileInfo, error) {
	st, err := a.fs.Stat(source)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, common.NewAppError(constants.FileNotFound, "source file not found", source, err)
		}
		return nil, common.NewAppError(constants.FileAccess, "cannot access source file", source, err)
	}
	if !st.Mode().IsRegular() {
		return nil, common.NewAppError(constants.FileAccess, "source is not a regular file", source, nil)
	}
	return st, nil
}

// prepareTarget creates dir on demand and refuses to overwrite dir/name.
func (a *Archiver) prepareTarget(dir, name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return "", common.NewAppError(constants.InvalidPath, "invalid archive filename", name, nil)
	}
	if err := a.fs.MkdirAll(dir, dirPerm); err != nil {
		return "", folderError(err, "create archive folder", dir)
	}
	target := filepath.Join(dir, name)
	if _, err := a.fs.Stat(target); err == nil {
		return "", common.NewAppError(constants.FileExists, "archive target already exists", target, fs.ErrExist)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", common.WrapFSError(err, "stat archive target", target)
	}
	return target, nil
}

func (a *Archiver) copyTo(source, dir, name, id string) (Result, error) {
	st, err := a.checkSource(source)
	if err != nil {
		return Result{}, err
	}
	target, err := a.prepareTarget(dir, name)
	if err != nil {
		return Result{}, err
	}
	if err := a.copyFile(source, target, st); err != nil {
		a.logger.Error("archive.copy.failed", "source", source, "target", target, "code", common.CodeOf(err), "error", err)
		return Result{}, err
	}
	if err := a.verify(target); err != nil {
		return Result{}, err
	}
	res := a.result(source, target, id)
	a.logger.Debug("archive.copy.ok", "source", source, "target", target)
	return res, nil
}

func (a *Archiver) moveTo(source, dir, name, id string) (Result, error) {
	st, err := a.checkSource(source)
	if err != nil {
		return Result{}, err
	}
	target, err := a.prepareTarget(dir, name)
	if err != nil {
		return Result{}, err
	}

	if err := a.fs.Rename(source, target); err != nil {
		if !errors.Is(err, syscall.EXDEV) {
			a.logger.Error("archive.move.failed", "source", source, "target", target, "error", err)
			return Result{}, common.WrapFSError(err, "move file", source)
		}
		// different devices: copy, then drop the source
		if err := a.copyFile(source, target, st); err != nil {
			return Result{}, err
		}
		if err := a.fs.Remove(source); err != nil {
			_ = a.fs.Remove(target)
			return Result{}, common.WrapFSError(err, "remove source after cross-device copy", source)
		}
	}
	if err := a.verify(target); err != nil {
		return Result{}, err
	}
	res := a.result(source, target, id)
	a.logger.Debug("archive.move.ok", "source", source, "target", target)
	return res, nil
}

func (a *Archiver) copyFile(source, target string, st fs.FileInfo) error {
	in, err := a.fs.Open(source)
	if err != nil {
		return common.WrapFSError(err, "open source file", source)
	}
	defer in.Close()

	perm := st.Mode().Perm()
	if perm == 0 {
		perm = filePerm
	}
	out, err := a.fs.CreateExclusive(target, perm)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return common.NewAppError(constants.FileExists, "archive target already exists", target, err)
		}
		return common.WrapFSError(err, "create archive target", target)
	}

	buf := make([]byte, copyBuf)
	if _, err := io.CopyBuffer(writerOnly{out}, in, buf); err != nil {
		_ = out.Close()
		_ = a.fs.Remove(target)
		return common.WrapFSError(err, "copy file", target)
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		_ = a.fs.Remove(target)
		return common.WrapFSError(err, "sync archive target", target)
	}
	if err := out.Close(); err != nil {
		_ = a.fs.Remove(target)
		return common.WrapFSError(err, "close archive target", target)
	}

	if err := a.fs.Chtimes(target, st.ModTime(), st.ModTime()); err != nil {
		a.logger.Warn("archive.chtimes.failed", "target", target, "error", err)
	}
	return nil
}

// verify re-checks the target after a copy or move reported success.
func (a *Archiver) verify(target string) error {
	st, err := a.fs.Stat(target)
	if err != nil {
		return common.NewAppError(constants.DiskIOError, "archive reported success but target is missing", target, err)
	}
	if !st.Mode().IsRegular() {
		return common.NewAppError(constants.DiskIOError, "archive target is not a regular file", target, nil)
	}
	return nil
}

func (a *Archiver) result(source, target, id string) Result {
	return Result{
		SourceFilename:   filepath.Base(source),
		ArchivedFilename: filepath.Base(target),
		ArchivedPath:     target,
		ArchiveTimestamp: a.now(),
		Identifier:       id,
	}
}

// writerOnly hides ReaderFrom so the copy always goes through buf.
type writerOnly struct{ io.Writer }

func folderError(err error, msg, dir string) error {
	switch {
	case errors.Is(err, fs.ErrPermission):
		return common.NewAppError(constants.FolderPermissionDenied, msg, dir, err)
	case errors.Is(err, syscall.ENOTDIR), errors.Is(err, fs.ErrExist):
		return common.NewAppError(constants.InvalidPath, msg, dir, err)
	case errors.Is(err, syscall.ENOSPC):
		return common.NewAppError(constants.DiskSpaceFull, msg, dir, err)
	default:
		return common.NewAppError(constants.FolderCreationFailed, msg, dir, err)
	}
}
