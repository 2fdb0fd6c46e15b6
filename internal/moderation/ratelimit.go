package moderation

import (
	"sync"
	"time"
)

const (
	defaultRateWindow    = 30 * time.Second
	defaultRateThreshold = 5
)

type RateLimitConfig struct {
	Window    time.Duration
	Threshold int
}

type participantKey struct {
	room        string
	participant string
}

type rateWindow struct {
	mu     sync.Mutex
	stamps []time.Time
}

// RateLimiter counts messages per (room, participant) over a sliding window.
// Each key owns its own lock, so checks for different participants never contend.
type RateLimiter struct {
	cfg     RateLimitConfig
	mu      sync.Mutex
	windows map[participantKey]*rateWindow
}

func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.Window <= 0 {
		cfg.Window = defaultRateWindow
	}
	if cfg.Threshold < 1 {
		cfg.Threshold = defaultRateThreshold
	}
	return &RateLimiter{
		cfg:     cfg,
		windows: map[participantKey]*rateWindow{},
	}
}

func (l *RateLimiter) Window() time.Duration {
	return l.cfg.Window
}

// Check records a message at now and reports whether the window now holds more
// than Threshold messages. A positive result clears the window.
func (l *RateLimiter) Check(room, participant string, now time.Time) bool {
	window := l.lockedWindow(participantKey{room: room, participant: participant})
	defer window.mu.Unlock()
	cutoff := now.Add(-l.cfg.Window)
	window.stamps = append(window.stamps, now)
	kept := window.stamps[:0]
	for _, stamp := range window.stamps {
		if !stamp.Before(cutoff) {
			kept = append(kept, stamp)
		}
	}
	window.stamps = kept
	if len(kept) > l.cfg.Threshold {
		window.stamps = window.stamps[:0]
		return true
	}
	return false
}

// Count returns the number of in-window messages for a key without recording one.
func (l *RateLimiter) Count(room, participant string, now time.Time) int {
	l.mu.Lock()
	window, ok := l.windows[participantKey{room: room, participant: participant}]
	l.mu.Unlock()
	if !ok {
		return 0
	}
	window.mu.Lock()
	defer window.mu.Unlock()
	cutoff := now.Add(-l.cfg.Window)
	count := 0
	for _, stamp := range window.stamps {
		if !stamp.Before(cutoff) {
			count++
		}
	}
	return count
}

// Sweep drops keys whose windows hold no in-window messages and returns how many were removed.
func (l *RateLimiter) Sweep(now time.Time) int {
	cutoff := now.Add(-l.cfg.Window)
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for key, window := range l.windows {
		window.mu.Lock()
		idle := len(window.stamps) == 0 || window.stamps[len(window.stamps)-1].Before(cutoff)
		if idle {
			delete(l.windows, key)
			removed++
		}
		window.mu.Unlock()
	}
	return removed
}

// lockedWindow returns the window for key with its lock held. The map lock is
// released only after the window lock is taken so Sweep cannot orphan it.
func (l *RateLimiter) lockedWindow(key participantKey) *rateWindow {
	l.mu.Lock()
	defer l.mu.Unlock()
	window, ok := l.windows[key]
	if !ok {
		window = &rateWindow{}
		l.windows[key] = window
	}
	window.mu.Lock()
	return window
}
