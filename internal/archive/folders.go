package archive

import (
	"errors"
	"io/fs"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipts-intake/constants"
	"github.com/joseph-ayodele/receipts-intake/internal/common"
)

// EnsureDir creates dir if missing and checks that it accepts new files.
// Calling it again on an existing folder is a no-op.
func (a *Archiver) EnsureDir(dir string) error {
	if dir == "" {
		return common.NewAppError(constants.InvalidPath, "empty folder path", dir, nil)
	}
	if err := a.fs.MkdirAll(dir, dirPerm); err != nil {
		return folderError(err, "create folder", dir)
	}
	st, err := a.fs.Stat(dir)
	if err != nil {
		return folderError(err, "stat folder", dir)
	}
	if !st.IsDir() {
		return common.NewAppError(constants.InvalidPath, "path is not a folder", dir, nil)
	}

	probe := filepath.Join(dir, ".write-probe-"+uuid.NewString())
	f, err := a.fs.CreateExclusive(probe, filePerm)
	if err != nil {
		code := constants.FolderNotWritable
		if errors.Is(err, fs.ErrPermission) {
			code = constants.FolderPermissionDenied
		}
		return common.NewAppError(code, "folder is not writable", dir, err)
	}
	_ = f.Close()
	if err := a.fs.Remove(probe); err != nil {
		a.logger.Warn("archive.probe.remove_failed", "path", probe, "error", err)
	}
	return nil
}

// ClearDir removes the regular files directly inside dir. Subfolders are
// left alone. A missing folder counts as already clear.
func (a *Archiver) ClearDir(dir string) (int, error) {
	entries, err := a.fs.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, folderError(err, "read folder", dir)
	}
	removed := 0
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		p := filepath.Join(dir, e.Name())
		if err := a.fs.Remove(p); err != nil {
			return removed, common.WrapFSError(err, "clear folder", p)
		}
		removed++
	}
	a.logger.Debug("archive.clear", "dir", dir, "removed", removed)
	return removed, nil
}
