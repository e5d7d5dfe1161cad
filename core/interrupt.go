package orchestration

import (
	"sync"
	"time"
)

const defaultInterruptCooldown = 500 * time.Millisecond

// bargeInCoordinator collapses overlapping interrupt triggers into one.
// TryBegin claims the guard; it stays claimed for the cooldown window so
// closely-spaced triggers (local VAD plus the backend's own detection) do
// not produce duplicate interrupt commands.
type bargeInCoordinator struct {
	mu       sync.Mutex
	active   bool
	cooldown time.Duration
	timer    *time.Timer
}

func newBargeInCoordinator(cooldown time.Duration) *bargeInCoordinator {
	if cooldown <= 0 {
		cooldown = defaultInterruptCooldown
	}
	return &bargeInCoordinator{cooldown: cooldown}
}

func (c *bargeInCoordinator) TryBegin() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active {
		return false
	}
	c.active = true
	return true
}

// Release schedules the guard to lift after the cooldown.
func (c *bargeInCoordinator) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.cooldown, func() {
		c.mu.Lock()
		c.active = false
		c.timer = nil
		c.mu.Unlock()
	})
}

// Cancel lifts the guard immediately and drops any pending release timer.
func (c *bargeInCoordinator) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.active = false
}

func (c *bargeInCoordinator) InProgress() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}
