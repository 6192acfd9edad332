// Package ingest discovers candidate files in the incoming folder, either as a
// one-shot listing or by watching the folder for changes.
package ingest

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/joseph-ayodele/receipts-intake/constants"
	"github.com/joseph-ayodele/receipts-intake/internal/common"
)

// ListCandidates returns the regular, non-hidden files directly inside dir,
// sorted by name. Extensions are not filtered: unsupported files still reach
// the extractor and are staged as errors. A missing folder yields no files.
func ListCandidates(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		if errors.Is(err, fs.ErrPermission) {
			return nil, common.NewAppError(constants.FolderPermissionDenied, "list incoming folder", dir, err)
		}
		return nil, common.WrapFSError(err, "list incoming folder", dir)
	}

	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if IsHidden(e.Name()) || !e.Type().IsRegular() {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}
