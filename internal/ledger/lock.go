package ledger

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/receipts-intake/internal/common"
)

// acquireLock creates lockPath holding this process's PID. A lock left by a
// process that no longer exists is taken over; a live holder yields
// ErrLedgerLocked.
func acquireLock(lockPath string, logger *slog.Logger) error {
	err := createLock(lockPath)
	if errors.Is(err, fs.ErrExist) {
		if err := clearStaleLock(lockPath, logger); err != nil {
			return err
		}
		err = createLock(lockPath)
	}
	if errors.Is(err, fs.ErrExist) {
		return lockedError(lockPath)
	}
	if err != nil {
		return common.WrapFSError(err, "create ledger lock", lockPath)
	}
	return nil
}

func createLock(lockPath string) error {
	lf, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	_, werr := fmt.Fprintf(lf, "%d\n", os.Getpid())
	if cerr := lf.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		_ = os.Remove(lockPath)
		return werr
	}
	return nil
}

// clearStaleLock removes lockPath when its recorded holder is gone. It
// returns ErrLedgerLocked (as FILE_LOCKED) while the holder is alive or the
// PID cannot be read.
func clearStaleLock(lockPath string, logger *slog.Logger) error {
	pid, ok := lockHolder(lockPath)
	if !ok || processAlive(pid) {
		return lockedError(lockPath)
	}
	logger.Warn("ledger.lock.stale", "path", lockPath, "pid", pid)
	if err := os.Remove(lockPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return common.WrapFSError(err, "remove stale ledger lock", lockPath)
	}
	return nil
}

// lockHolder reads the PID recorded in lockPath.
func lockHolder(lockPath string) (int, bool) {
	raw, err := os.ReadFile(lockPath)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}
