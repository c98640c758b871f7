package recognition

import (
	"sync"
	"time"
)

// CooldownTracker suppresses rapid re-marking of the same student. It is
// in-memory only and resets on restart; the attendance uniqueness constraint
// in the database is the durable backstop.
type CooldownTracker struct {
	window time.Duration

	mu     sync.Mutex
	marked map[int64]time.Time
}

// NewCooldownTracker creates a tracker with the given suppression window.
func NewCooldownTracker(window time.Duration) *CooldownTracker {
	return &CooldownTracker{
		window: window,
		marked: make(map[int64]time.Time),
	}
}

// Remaining returns the whole seconds left in the student's cooldown window,
// rounded up, or zero when the student may be marked again.
func (c *CooldownTracker) Remaining(studentID int64, now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	last, ok := c.marked[studentID]
	if !ok {
		return 0
	}

	elapsed := now.Sub(last)
	if elapsed >= c.window {
		delete(c.marked, studentID)
		return 0
	}

	remaining := c.window - elapsed
	return int((remaining + time.Second - 1) / time.Second)
}

// Mark records that the student was just marked.
func (c *CooldownTracker) Mark(studentID int64, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.marked[studentID] = now
}
