package rollout

import "fmt"

// State machine for rollout status transitions.
var validTransitions = map[Status][]Status{
	StatusScheduled: {
		StatusInProgress,
		StatusFailed, // cancellation before start
	},
	StatusInProgress: {
		StatusSuccess,
		StatusFailed,
	},
	StatusSuccess: {
		// Terminal state - no transitions
	},
	StatusFailed: {
		// Terminal state - no transitions
	},
}

// ValidateTransition checks whether moving from current to next is allowed.
func ValidateTransition(current, next Status) error {
	allowed, exists := validTransitions[current]
	if !exists {
		return fmt.Errorf("%w: unknown status %s", ErrInvalidTransition, current)
	}

	for _, s := range allowed {
		if next == s {
			return nil
		}
	}

	return fmt.Errorf("%w: cannot move from %s to %s", ErrInvalidTransition, current, next)
}

// AllowedTransitions returns the statuses reachable from current.
func AllowedTransitions(current Status) []Status {
	return validTransitions[current]
}
