package pipeline

import (
	"errors"
	"fmt"

	"github.com/joseph-ayodele/receipts-intake/constants"
)

var ErrInvalidTransition = errors.New("invalid status transition")

// A hash failure moves a file straight from Pending to Failed without
// entering Processing.
var allowedTransitions = map[constants.ProcessingStatus][]constants.ProcessingStatus{
	constants.StatusPending:    {constants.StatusProcessing, constants.StatusDuplicate, constants.StatusFailed},
	constants.StatusProcessing: {constants.StatusCompleted, constants.StatusFailed},
}

func isAllowedTransition(from, to constants.ProcessingStatus) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition validates a status change.
func Transition(from, to constants.ProcessingStatus) error {
	if from.IsTerminal() {
		return fmt.Errorf("%w: %s is terminal", ErrInvalidTransition, from)
	}
	if !isAllowedTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
