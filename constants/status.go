package constants

// ProcessingStatus is the lifecycle state of one candidate file within a run.
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "PENDING"
	StatusProcessing ProcessingStatus = "PROCESSING"
	StatusCompleted  ProcessingStatus = "COMPLETED" // terminal
	StatusFailed     ProcessingStatus = "FAILED"    // terminal
	StatusDuplicate  ProcessingStatus = "DUPLICATE" // terminal
)

// IsTerminal reports whether no transition may leave s.
func (s ProcessingStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusDuplicate:
		return true
	default:
		return false
	}
}
