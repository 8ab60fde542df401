package client

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifierAutoDismiss(t *testing.T) {
	mock := clock.NewMock()
	n := NewNotifier(mock, 5*time.Second)

	id := n.Success("Submitted publication for review")
	require.Len(t, n.Active(), 1)

	mock.Add(4 * time.Second)
	require.Len(t, n.Active(), 1)

	mock.Add(time.Second)
	assert.Empty(t, n.Active())

	// Dismissing an already dismissed id is a no-op.
	n.Dismiss(id)
	assert.Empty(t, n.Active())
}

func TestNotifierManualDismissCancelsTimer(t *testing.T) {
	mock := clock.NewMock()
	n := NewNotifier(mock, 5*time.Second)

	first := n.Error("Failed to load publications")
	second := n.Success("Approved publication")
	require.Len(t, n.Active(), 2)

	n.Dismiss(first)
	items := n.Active()
	require.Len(t, items, 1)
	assert.Equal(t, second, items[0].ID)
	assert.Equal(t, LevelSuccess, items[0].Level)

	mock.Add(10 * time.Second)
	assert.Empty(t, n.Active())
}

func TestNotifierDefaultTTL(t *testing.T) {
	mock := clock.NewMock()
	n := NewNotifier(mock, 0)

	n.Success("hello")
	mock.Add(5*time.Second - time.Millisecond)
	require.Len(t, n.Active(), 1)
	mock.Add(time.Millisecond)
	assert.Empty(t, n.Active())
}

func TestNotifierSubscribe(t *testing.T) {
	mock := clock.NewMock()
	n := NewNotifier(mock, time.Second)

	var snapshots [][]Notification
	n.Subscribe(func(items []Notification) {
		snapshots = append(snapshots, items)
	})

	n.Success("one")
	mock.Add(time.Second)

	require.Len(t, snapshots, 2)
	assert.Len(t, snapshots[0], 1)
	assert.Empty(t, snapshots[1])
}

func TestNotifierClose(t *testing.T) {
	mock := clock.NewMock()
	n := NewNotifier(mock, time.Second)

	n.Success("one")
	n.Error("two")
	n.Close()

	assert.Empty(t, n.Active())
	assert.Equal(t, -1, n.Success("after close"))

	// Advancing the clock after close must not fire stale timers.
	mock.Add(time.Minute)
	assert.Empty(t, n.Active())
}
