// Package dedup answers "have we seen this content before?" for candidate files.
package dedup

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joseph-ayodele/receipts-intake/internal/common"
	"github.com/joseph-ayodele/receipts-intake/internal/hashing"
)

// Tier says where a known hash came from.
type Tier string

const (
	TierPersisted Tier = "persisted"
	TierSession   Tier = "session"
)

// CheckResult is the outcome of checking one candidate file. When HasError is
// set, IsDuplicate is always false and the caller must route the file to its
// failure path instead of treating it as new.
type CheckResult struct {
	FilePath          string
	IsDuplicate       bool
	DuplicateLocation string
	Tier              Tier
	HashHex           string
	HasError          bool
	ErrorMessage      string
	Err               error
}

// Index holds two tiers of known hashes: persisted (files already committed to
// an archive folder) and session (files accepted earlier in the current run).
// It is owned by a single run and is not safe for concurrent use.
type Index struct {
	hasher    *hashing.Hasher
	logger    *slog.Logger
	persisted map[string]string // hash -> archived path
	session   map[string]string // hash -> filename accepted this run
}

func NewIndex(hasher *hashing.Hasher, logger *slog.Logger) *Index {
	if hasher == nil {
		hasher = hashing.NewHasher(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{
		hasher:    hasher,
		logger:    logger,
		persisted: map[string]string{},
		session:   map[string]string{},
	}
}

// Initialize hashes every regular file directly inside folder into the
// persisted tier. A missing folder is not an error. Files that cannot be hashed
// are logged and skipped; the returned count covers the files that were loaded.
func (x *Index) Initialize(folder string) (int, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			x.logger.Debug("dedup.init.folder_missing", "folder", folder)
			return 0, nil
		}
		return 0, common.WrapFSError(err, "read index folder", folder)
	}

	loaded := 0
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		path := filepath.Join(folder, e.Name())
		fh, err := x.hasher.Hash(path)
		if err != nil {
			x.logger.Warn("dedup.init.hash_failed", "path", path, "code", common.CodeOf(err), "error", err)
			continue
		}
		if _, seen := x.persisted[fh.Hex]; !seen {
			x.persisted[fh.Hex] = path
		}
		loaded++
	}
	x.logger.Info("dedup.init.ok", "folder", folder, "files", loaded, "unique_hashes", len(x.persisted))
	return loaded, nil
}

// IsDuplicate reports whether hash is known in either tier.
func (x *Index) IsDuplicate(hash string) bool {
	_, _, ok := x.Lookup(hash)
	return ok
}

// Lookup returns where hash was seen. The persisted tier is checked first so the
// reported location is the committed file when both tiers know the hash.
func (x *Index) Lookup(hash string) (string, Tier, bool) {
	if p, ok := x.persisted[hash]; ok {
		return p, TierPersisted, true
	}
	if p, ok := x.session[hash]; ok {
		return p, TierSession, true
	}
	return "", "", false
}

// AddCommitted registers hash in the persisted tier for content committed
// somewhere other than the scanned folder, such as an earlier ledger row. An
// existing entry keeps its location.
func (x *Index) AddCommitted(hash, location string) bool {
	if _, ok := x.persisted[hash]; ok {
		return false
	}
	x.persisted[hash] = location
	return true
}

// AddToSession registers hash as accepted in the current run.
func (x *Index) AddToSession(hash, filename string) {
	if _, ok := x.session[hash]; ok {
		return
	}
	x.session[hash] = filename
}

// Check hashes path and answers whether its content is already known.
func (x *Index) Check(path string) CheckResult {
	res := CheckResult{FilePath: path}

	fh, err := x.hasher.Hash(path)
	if err != nil {
		res.HasError = true
		res.ErrorMessage = err.Error()
		res.Err = err
		return res
	}
	res.HashHex = fh.Hex

	if loc, tier, ok := x.Lookup(fh.Hex); ok {
		res.IsDuplicate = true
		res.DuplicateLocation = loc
		res.Tier = tier
	}
	return res
}

// Len returns the size of each tier.
func (x *Index) Len() (persisted, session int) {
	return len(x.persisted), len(x.session)
}
