package rollout

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateTransition(t *testing.T) {
	cases := []struct {
		name    string
		from    Status
		to      Status
		allowed bool
	}{
		{"scheduled to in progress", StatusScheduled, StatusInProgress, true},
		{"scheduled to failed", StatusScheduled, StatusFailed, true},
		{"scheduled to success", StatusScheduled, StatusSuccess, false},
		{"in progress to success", StatusInProgress, StatusSuccess, true},
		{"in progress to failed", StatusInProgress, StatusFailed, true},
		{"in progress to scheduled", StatusInProgress, StatusScheduled, false},
		{"success is terminal", StatusSuccess, StatusInProgress, false},
		{"success to failed", StatusSuccess, StatusFailed, false},
		{"failed is terminal", StatusFailed, StatusInProgress, false},
		{"failed to success", StatusFailed, StatusSuccess, false},
		{"unknown status", Status("Paused"), StatusInProgress, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateTransition(tc.from, tc.to)
			if tc.allowed {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidTransition)
			}
		})
	}
}

func TestStatusPredicates(t *testing.T) {
	assert.True(t, StatusScheduled.Active())
	assert.True(t, StatusInProgress.Active())
	assert.False(t, StatusSuccess.Active())
	assert.False(t, StatusFailed.Active())

	assert.True(t, StatusSuccess.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.False(t, StatusScheduled.Terminal())
	assert.False(t, StatusInProgress.Terminal())
}

func TestTerminalStatesHaveNoTransitions(t *testing.T) {
	assert.Empty(t, AllowedTransitions(StatusSuccess))
	assert.Empty(t, AllowedTransitions(StatusFailed))
}
