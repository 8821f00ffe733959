package services

import (
	"sync"
	"time"
)

// RefreshBroadcaster coalesces all the wake sources (user actions, inbound
// pushes, the minute schedule) into at most one in-flight refresh
// notification per user. Delivery is at-least-once: a wake arriving while a
// notification is being delivered produces one more, never zero.
//
// The notification itself is an invalidation only; observers pull the
// display model when they receive it.
type RefreshBroadcaster struct {
	mu       sync.Mutex
	users    map[string]*refreshState
	notify   func(userID string)
	debounce time.Duration
	closed   bool
}

type refreshState struct {
	wake     chan struct{} // capacity 1: overlapping triggers coalesce here
	stop     chan struct{}
	periodic chan struct{} // non-nil while a minute schedule is armed
}

// NewRefreshBroadcaster creates a broadcaster that calls notify each time a
// user's observers should re-fetch. Debounce is the window in which repeated
// triggers collapse into one delivery (≈1s in production).
func NewRefreshBroadcaster(debounce time.Duration, notify func(userID string)) *RefreshBroadcaster {
	return &RefreshBroadcaster{
		users:    make(map[string]*refreshState),
		notify:   notify,
		debounce: debounce,
	}
}

// TriggerImmediate requests the soonest-possible refresh for a user. Safe to
// call from any goroutine; never blocks.
func (b *RefreshBroadcaster) TriggerImmediate(userID string) {
	st := b.state(userID)
	if st == nil {
		return
	}
	select {
	case st.wake <- struct{}{}:
	default:
	}
}

// SchedulePeriodic arms a refresh at the start of every wall-clock minute,
// keeping time-of-day displays current. Calling it again while armed is a
// no-op: at most one schedule exists per user.
func (b *RefreshBroadcaster) SchedulePeriodic(userID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	st := b.stateLocked(userID)
	if st.periodic != nil {
		return
	}
	stop := make(chan struct{})
	st.periodic = stop

	go func() {
		for {
			now := time.Now()
			next := now.Truncate(time.Minute).Add(time.Minute)
			timer := time.NewTimer(next.Sub(now))
			select {
			case <-stop:
				timer.Stop()
				return
			case <-timer.C:
				b.TriggerImmediate(userID)
			}
		}
	}()
}

// CancelPeriodic stops the minute schedule for a user. Idempotent.
func (b *RefreshBroadcaster) CancelPeriodic(userID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	st, ok := b.users[userID]
	if !ok || st.periodic == nil {
		return
	}
	close(st.periodic)
	st.periodic = nil
}

// Close stops every consumer and schedule. Triggers after Close are ignored.
func (b *RefreshBroadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true

	for _, st := range b.users {
		close(st.stop)
		if st.periodic != nil {
			close(st.periodic)
			st.periodic = nil
		}
	}
}

// state returns the per-user state, creating the consumer on first use.
func (b *RefreshBroadcaster) state(userID string) *refreshState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	return b.stateLocked(userID)
}

func (b *RefreshBroadcaster) stateLocked(userID string) *refreshState {
	st, ok := b.users[userID]
	if !ok {
		st = &refreshState{
			wake: make(chan struct{}, 1),
			stop: make(chan struct{}),
		}
		b.users[userID] = st
		go b.consume(userID, st)
	}
	return st
}

// consume is the single consumer for one user's wake signals. It waits out
// the debounce window, drains anything that piled up during it, then
// delivers exactly one notification.
func (b *RefreshBroadcaster) consume(userID string, st *refreshState) {
	for {
		select {
		case <-st.stop:
			return
		case <-st.wake:
		}

		timer := time.NewTimer(b.debounce)
		select {
		case <-st.stop:
			timer.Stop()
			return
		case <-timer.C:
		}

		select {
		case <-st.wake:
		default:
		}

		b.notify(userID)
	}
}
