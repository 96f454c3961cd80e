package ws

import (
	"sync"
	"time"
)

// One cursor broadcast per window per connection, roughly 60fps.
const cursorWindow = 16 * time.Millisecond

// cursorThrottle coalesces rapid cursor updates into at most one send
// per window. Trailing-edge: the latest position within a window wins,
// earlier ones are discarded rather than queued.
//
// Owned by exactly one client. Stop is safe to race with a timer that
// is mid-fire; once Stop returns, the flush callback is a no-op.
type cursorThrottle struct {
	mu      sync.Mutex
	fire    func(x, y float64)
	timer   *time.Timer
	pending bool
	stopped bool
	x, y    float64
}

func newCursorThrottle(fire func(x, y float64)) *cursorThrottle {
	return &cursorThrottle{fire: fire}
}

// Move records the latest position and arms the timer if no send is
// already pending for this window.
func (t *cursorThrottle) Move(x, y float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.x, t.y = x, y
	if t.pending {
		return
	}
	t.pending = true
	t.timer = time.AfterFunc(cursorWindow, t.flush)
}

func (t *cursorThrottle) flush() {
	t.mu.Lock()
	if t.stopped || !t.pending {
		t.mu.Unlock()
		return
	}
	t.pending = false
	x, y := t.x, t.y
	t.mu.Unlock()

	// Fire outside the lock so a slow send cannot block Move or Stop.
	t.fire(x, y)
}

// Stop cancels any pending send. Called on disconnect.
func (t *cursorThrottle) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	if t.timer != nil {
		t.timer.Stop()
	}
}
