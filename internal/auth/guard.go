package auth

import (
	"net/netip"
	"sync"
	"time"
)

const (
	defaultMaxFailures = 5
	defaultFailWindow  = time.Hour
	defaultBanDuration = 24 * time.Hour
)

// failureRecord accumulates failed logins for one ban key. A zero
// bannedUntil means no active ban.
type failureRecord struct {
	count       int
	windowStart time.Time
	bannedUntil time.Time
}

type GuardConfig struct {
	MaxFailures int
	Window      time.Duration
	BanDuration time.Duration
}

// Guard tracks failed login attempts per ban key and bans a key for a fixed
// duration once the failure threshold is reached inside the rolling window.
// State is in-memory only; a restart forgives everything.
type Guard struct {
	mu      sync.RWMutex
	records map[netip.Addr]*failureRecord
	config  GuardConfig
	now     func() time.Time
	onBan   func(key netip.Addr, until time.Time)
}

func NewGuard(config GuardConfig) *Guard {
	if config.MaxFailures <= 0 {
		config.MaxFailures = defaultMaxFailures
	}
	if config.Window <= 0 {
		config.Window = defaultFailWindow
	}
	if config.BanDuration <= 0 {
		config.BanDuration = defaultBanDuration
	}

	return &Guard{
		records: make(map[netip.Addr]*failureRecord),
		config:  config,
		now:     time.Now,
	}
}

// SetOnBan registers a callback invoked after a ban is armed. It runs
// outside the guard lock; keep it cheap (logging, metrics).
func (g *Guard) SetOnBan(fn func(key netip.Addr, until time.Time)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onBan = fn
}

// IsBanned reports whether key currently has an active ban. An expired ban
// is cleared on the spot and the failure count reset; expiry is evaluated
// lazily here, never by a background timer.
func (g *Guard) IsBanned(key netip.Addr) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	record, ok := g.records[key]
	if !ok || record.bannedUntil.IsZero() {
		return false
	}

	if !g.now().Before(record.bannedUntil) {
		record.bannedUntil = time.Time{}
		record.count = 0
		return false
	}
	return true
}

// RecordFailure counts one failed login for key. A failure after the window
// has lapsed starts a fresh window. The ban is armed exactly when the
// threshold is reached; later failures never extend it.
func (g *Guard) RecordFailure(key netip.Addr) {
	now := g.now()

	g.mu.Lock()
	record, ok := g.records[key]
	if !ok {
		g.records[key] = &failureRecord{count: 1, windowStart: now}
		g.mu.Unlock()
		return
	}

	if now.Sub(record.windowStart) > g.config.Window {
		record.count = 1
		record.windowStart = now
		record.bannedUntil = time.Time{}
		g.mu.Unlock()
		return
	}

	record.count++

	var banned time.Time
	if record.count >= g.config.MaxFailures && record.bannedUntil.IsZero() {
		record.bannedUntil = now.Add(g.config.BanDuration)
		banned = record.bannedUntil
	}
	onBan := g.onBan
	g.mu.Unlock()

	if !banned.IsZero() && onBan != nil {
		onBan(key, banned)
	}
}

// RecordSuccess forgives all prior failures for key.
func (g *Guard) RecordSuccess(key netip.Addr) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.records, key)
}

// BanRemaining returns the time until the ban on key lifts, or zero if the
// key is not banned or the ban already expired.
func (g *Guard) BanRemaining(key netip.Addr) time.Duration {
	g.mu.RLock()
	defer g.mu.RUnlock()

	record, ok := g.records[key]
	if !ok || record.bannedUntil.IsZero() {
		return 0
	}
	remaining := record.bannedUntil.Sub(g.now())
	if remaining <= 0 {
		return 0
	}
	return remaining
}
