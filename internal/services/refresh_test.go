package services

import (
	"sync"
	"testing"
	"time"
)

type notifyRecorder struct {
	mu    sync.Mutex
	calls []string
	ch    chan string
}

func newNotifyRecorder() *notifyRecorder {
	return &notifyRecorder{ch: make(chan string, 16)}
}

func (r *notifyRecorder) notify(userID string) {
	r.mu.Lock()
	r.calls = append(r.calls, userID)
	r.mu.Unlock()
	r.ch <- userID
}

func (r *notifyRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *notifyRecorder) wait(t *testing.T) string {
	t.Helper()
	select {
	case userID := <-r.ch:
		return userID
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for a refresh notification")
		return ""
	}
}

func TestRefreshBroadcaster(t *testing.T) {
	t.Run("delivers a triggered refresh", func(t *testing.T) {
		rec := newNotifyRecorder()
		b := NewRefreshBroadcaster(time.Millisecond, rec.notify)
		defer b.Close()

		b.TriggerImmediate("user-1")
		if got := rec.wait(t); got != "user-1" {
			t.Errorf("Expected notification for user-1, got %s", got)
		}
	})

	t.Run("a burst of triggers coalesces into one delivery", func(t *testing.T) {
		rec := newNotifyRecorder()
		b := NewRefreshBroadcaster(50*time.Millisecond, rec.notify)
		defer b.Close()

		for i := 0; i < 10; i++ {
			b.TriggerImmediate("user-1")
		}
		rec.wait(t)

		// leave room for a spurious second delivery to show up
		time.Sleep(100 * time.Millisecond)
		if got := rec.count(); got != 1 {
			t.Errorf("Expected a single coalesced delivery, got %d", got)
		}
	})

	t.Run("a trigger after delivery produces another delivery", func(t *testing.T) {
		rec := newNotifyRecorder()
		b := NewRefreshBroadcaster(time.Millisecond, rec.notify)
		defer b.Close()

		b.TriggerImmediate("user-1")
		rec.wait(t)
		b.TriggerImmediate("user-1")
		rec.wait(t)

		if got := rec.count(); got != 2 {
			t.Errorf("Expected two deliveries, got %d", got)
		}
	})

	t.Run("users are independent", func(t *testing.T) {
		rec := newNotifyRecorder()
		b := NewRefreshBroadcaster(time.Millisecond, rec.notify)
		defer b.Close()

		b.TriggerImmediate("user-1")
		b.TriggerImmediate("user-2")
		got := map[string]bool{rec.wait(t): true, rec.wait(t): true}
		if !got["user-1"] || !got["user-2"] {
			t.Errorf("Expected deliveries for both users, got %v", got)
		}
	})

	t.Run("periodic schedule is idempotent", func(t *testing.T) {
		rec := newNotifyRecorder()
		b := NewRefreshBroadcaster(time.Millisecond, rec.notify)
		defer b.Close()

		b.SchedulePeriodic("user-1")
		b.mu.Lock()
		first := b.users["user-1"].periodic
		b.mu.Unlock()

		b.SchedulePeriodic("user-1")
		b.mu.Lock()
		second := b.users["user-1"].periodic
		b.mu.Unlock()

		if first != second {
			t.Error("Expected repeated SchedulePeriodic to keep the existing schedule")
		}
	})

	t.Run("cancel is idempotent", func(t *testing.T) {
		rec := newNotifyRecorder()
		b := NewRefreshBroadcaster(time.Millisecond, rec.notify)
		defer b.Close()

		b.SchedulePeriodic("user-1")
		b.CancelPeriodic("user-1")
		b.CancelPeriodic("user-1")
		b.CancelPeriodic("user-never-scheduled")

		b.mu.Lock()
		periodic := b.users["user-1"].periodic
		b.mu.Unlock()
		if periodic != nil {
			t.Error("Expected schedule cleared after cancel")
		}
	})

	t.Run("schedule can be re-armed after cancel", func(t *testing.T) {
		rec := newNotifyRecorder()
		b := NewRefreshBroadcaster(time.Millisecond, rec.notify)
		defer b.Close()

		b.SchedulePeriodic("user-1")
		b.CancelPeriodic("user-1")
		b.SchedulePeriodic("user-1")

		b.mu.Lock()
		periodic := b.users["user-1"].periodic
		b.mu.Unlock()
		if periodic == nil {
			t.Error("Expected schedule re-armed")
		}
	})

	t.Run("triggers after close are ignored", func(t *testing.T) {
		rec := newNotifyRecorder()
		b := NewRefreshBroadcaster(time.Millisecond, rec.notify)
		b.Close()
		b.Close()

		b.TriggerImmediate("user-1")
		b.SchedulePeriodic("user-1")

		time.Sleep(20 * time.Millisecond)
		if got := rec.count(); got != 0 {
			t.Errorf("Expected no deliveries after close, got %d", got)
		}
	})
}
