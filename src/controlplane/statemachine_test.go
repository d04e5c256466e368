package controlplane

import (
	"testing"

	"market-collector/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateMachineLifecycle(t *testing.T) {
	s := NewSubscriptionStates()

	// Unknown symbols read as unsubscribed.
	assert.Equal(t, models.SubStateUnsubscribed, s.Get("GCQ5").State)
	assert.False(t, s.IsSubscribed("GCQ5"))

	require.True(t, s.MarkPending("GCQ5", "CME"))
	assert.Equal(t, models.SubStatePending, s.Get("GCQ5").State)
	assert.Equal(t, "CME", s.Get("GCQ5").Exchange)

	s.MarkSubscribed("GCQ5", "CME")
	assert.True(t, s.IsSubscribed("GCQ5"))

	s.MarkUnsubscribed("GCQ5", "CME")
	assert.Equal(t, models.SubStateUnsubscribed, s.Get("GCQ5").State)
}

// -----------------------------------------------------------------------------

func TestStateMachineCollapsesDuplicates(t *testing.T) {
	s := NewSubscriptionStates()

	require.True(t, s.MarkPending("GCQ5", "CME"))
	assert.False(t, s.MarkPending("GCQ5", "CME"), "pending symbol must reject a second subscribe")

	s.MarkSubscribed("GCQ5", "CME")
	assert.False(t, s.MarkPending("GCQ5", "CME"), "subscribed symbol must reject a second subscribe")
}

// -----------------------------------------------------------------------------

func TestStateMachineFailureIsRetryable(t *testing.T) {
	s := NewSubscriptionStates()

	require.True(t, s.MarkPending("GCQ5", "CME"))
	s.MarkFailed("GCQ5", "CME")
	assert.Equal(t, models.SubStateFailed, s.Get("GCQ5").State)

	// A fresh subscribe request restarts the lifecycle.
	assert.True(t, s.MarkPending("GCQ5", "CME"))
}

// -----------------------------------------------------------------------------

func TestStateMachineSnapshot(t *testing.T) {
	s := NewSubscriptionStates()
	s.MarkPending("GCQ5", "CME")
	s.MarkPending("NQZ5", "CME")
	s.MarkSubscribed("NQZ5", "CME")

	snap := s.Snapshot()
	assert.Len(t, snap, 2)

	states := map[string]models.MSubscriptionState{}
	for _, st := range snap {
		states[st.Symbol] = st.State
	}
	assert.Equal(t, models.SubStatePending, states["GCQ5"])
	assert.Equal(t, models.SubStateSubscribed, states["NQZ5"])
}
