package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTerminalStatuses(t *testing.T) {
	assert.False(t, Terminal(StatusPending))
	assert.False(t, Terminal(StatusInProgress))
	assert.True(t, Terminal(StatusCancelled))
	assert.True(t, Terminal(StatusFailed))
	assert.True(t, Terminal(StatusExpired))
	assert.True(t, Terminal(StatusCompleted))
}

func TestStatusNameKnownAndUnknown(t *testing.T) {
	assert.Equal(t, "pending", StatusName(StatusPending))
	assert.Equal(t, "completed", StatusName(StatusCompleted))
	assert.Equal(t, "unknown", StatusName(99))
}
