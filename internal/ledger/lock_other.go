//go:build !unix

package ledger

// processAlive cannot probe other processes here, so every lock is treated
// as held.
func processAlive(int) bool { return true }
