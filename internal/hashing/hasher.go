// Package hashing computes content digests for receipt files.
package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"syscall"

	"github.com/joseph-ayodele/receipts-intake/constants"
	"github.com/joseph-ayodele/receipts-intake/internal/common"
)

// DefaultChunkSize is the read size used when none is configured.
const DefaultChunkSize = 64 * 1024

// FileHash is the digest of one file's content.
type FileHash struct {
	Path string
	Hex  string // lowercase sha256, 64 chars
}

// Hasher streams files through sha256 in fixed-size chunks. It keeps no state
// between calls: every Hash re-reads the file.
type Hasher struct {
	chunkSize int
}

// NewHasher returns a Hasher reading chunkSize bytes at a time (DefaultChunkSize if <= 0).
func NewHasher(chunkSize int) *Hasher {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Hasher{chunkSize: chunkSize}
}

// Hash returns the content digest of path. Failures are *common.AppError values
// carrying FILE_NOT_FOUND, FILE_PERMISSION_DENIED, FILE_LOCKED, FILE_CORRUPTED,
// FILE_UNREADABLE or MEMORY_INSUFFICIENT.
func (h *Hasher) Hash(path string) (FileHash, error) {
	f, err := os.Open(path)
	if err != nil {
		return FileHash{}, common.NewAppError(failureCode(err), "open for hashing", path, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return FileHash{}, common.NewAppError(failureCode(err), "stat for hashing", path, err)
	}
	if st.IsDir() {
		return FileHash{}, common.NewAppError(constants.FileUnreadable, "expected file, got directory", path, nil)
	}

	digest := sha256.New()
	buf := make([]byte, h.chunkSize)
	for {
		n, rerr := f.Read(buf)
		if n > 0 {
			digest.Write(buf[:n])
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return FileHash{}, common.NewAppError(failureCode(rerr), "read for hashing", path, rerr)
		}
	}

	return FileHash{Path: path, Hex: hex.EncodeToString(digest.Sum(nil))}, nil
}

// HashHex is a convenience for callers that only need the digest.
func (h *Hasher) HashHex(path string) (string, error) {
	fh, err := h.Hash(path)
	return fh.Hex, err
}

// failureCode maps an open or read failure onto the hashing taxonomy. A device
// error means the content cannot be trusted; anything Classify cannot place
// more precisely is FILE_UNREADABLE.
func failureCode(err error) constants.ErrorCode {
	if errors.Is(err, syscall.EIO) {
		return constants.FileCorrupted
	}
	switch code := common.Classify(err); code {
	case constants.FileNotFound, constants.FilePermissionDenied, constants.FileLocked, constants.MemoryInsufficient:
		return code
	default:
		return constants.FileUnreadable
	}
}
