package state

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_Lifecycle(t *testing.T) {
	sm := NewManager(time.Minute)
	assert.Equal(t, StateNone, sm.State(1))
	assert.False(t, sm.Clear(1))

	id := uuid.New()
	sm.Begin(1, StateCancelReason, id)

	d, ok := sm.Current(1)
	require.True(t, ok)
	assert.Equal(t, StateCancelReason, d.State)
	assert.Equal(t, id, d.BookingID)

	_, ok = sm.Current(2)
	assert.False(t, ok)

	// Новый диалог заменяет старый
	other := uuid.New()
	sm.Begin(1, StateRescheduleTime, other)
	d, _ = sm.Current(1)
	assert.Equal(t, StateRescheduleTime, d.State)
	assert.Equal(t, other, d.BookingID)

	assert.True(t, sm.Clear(1))
	assert.Equal(t, StateNone, sm.State(1))

	sm.Begin(1, StateCancelReason, id)
	sm.Begin(1, StateNone, uuid.Nil)
	assert.Equal(t, StateNone, sm.State(1))
}

func TestManager_Expiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sm := NewManager(10 * time.Minute)
	sm.now = func() time.Time { return now }

	sm.Begin(1, StateRescheduleTime, uuid.New())

	now = now.Add(10 * time.Minute)
	assert.Equal(t, StateRescheduleTime, sm.State(1))

	now = now.Add(time.Second)
	_, ok := sm.Current(1)
	assert.False(t, ok)
	assert.False(t, sm.Clear(1))
}

func TestNewManager_DefaultTTL(t *testing.T) {
	assert.Equal(t, DefaultTTL, NewManager(0).ttl)
}
