// Package settings holds the runtime-adjustable system settings.
//
// Settings are constructed once at startup and passed by reference;
// waiters read them fresh on every cycle, so a change takes effect on
// the next wait rather than retroactively.
package settings

import (
	"sync"
	"time"
)

const (
	// DefaultRoomIdleTimeout is how long a room may go without any
	// detail-change activity before the idle reaper removes it.
	DefaultRoomIdleTimeout = 10 * time.Minute

	// DefaultPassiveNotifyInterval is how often the full room list is
	// re-delivered to lobby subscribers even with no mutation.
	DefaultPassiveNotifyInterval = 10 * time.Second
)

// Settings is safe for concurrent use.
type Settings struct {
	mu                    sync.RWMutex
	roomIdleTimeout       time.Duration
	passiveNotifyInterval time.Duration
}

// New returns settings with the defaults.
func New() *Settings {
	return &Settings{
		roomIdleTimeout:       DefaultRoomIdleTimeout,
		passiveNotifyInterval: DefaultPassiveNotifyInterval,
	}
}

// RoomIdleTimeout returns the current idle-reaper timeout.
func (s *Settings) RoomIdleTimeout() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roomIdleTimeout
}

// SetRoomIdleTimeout updates the idle-reaper timeout. Rooms already
// waiting pick it up on their next cycle.
func (s *Settings) SetRoomIdleTimeout(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roomIdleTimeout = d
}

// PassiveNotifyInterval returns the current heartbeat interval for the
// lobby list stream.
func (s *Settings) PassiveNotifyInterval() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.passiveNotifyInterval
}

// SetPassiveNotifyInterval updates the heartbeat interval.
func (s *Settings) SetPassiveNotifyInterval(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.passiveNotifyInterval = d
}
