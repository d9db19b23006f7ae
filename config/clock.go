package config

import (
	"sync"
	"time"
)

var (
	clockMu sync.RWMutex
	nowFunc = time.Now
)

// Now is the single clock of the service. gorm's NowFunc points here, so
// CreatedAt/UpdatedAt and business timestamps agree.
func Now() time.Time {
	clockMu.RLock()
	f := nowFunc
	clockMu.RUnlock()
	return f().UTC()
}

// SetClock swaps the clock and returns a func restoring the previous one.
func SetClock(f func() time.Time) (restore func()) {
	clockMu.Lock()
	prev := nowFunc
	nowFunc = f
	clockMu.Unlock()
	return func() {
		clockMu.Lock()
		nowFunc = prev
		clockMu.Unlock()
	}
}
