package ivr

import (
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// AuthGuardConfig configures cross-session PIN attempt limiting.
type AuthGuardConfig struct {
	// FailureRate is how fast the per-mailbox failure budget refills,
	// in failures per second.
	FailureRate rate.Limit
	// Burst is the number of consecutive failures tolerated before a
	// mailbox is blocked.
	Burst int
	// CleanupInterval is how often stale entries are removed.
	CleanupInterval time.Duration
	// MaxAge is how long an idle entry is kept before eviction.
	MaxAge time.Duration
}

// DefaultAuthGuardConfig tolerates 5 consecutive failures per mailbox,
// refilling one failure per minute.
func DefaultAuthGuardConfig() AuthGuardConfig {
	return AuthGuardConfig{
		FailureRate:     rate.Limit(1.0 / 60.0),
		Burst:           5,
		CleanupInterval: 5 * time.Minute,
		MaxAge:          30 * time.Minute,
	}
}

// guardEntry tracks a per-mailbox failure budget and when it was last used.
type guardEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// AuthGuard limits PIN verification attempts per mailbox across all
// concurrent sessions. A single session is already bounded by its own
// attempt counter; the guard stops an attacker from resetting that
// counter by redialing.
type AuthGuard struct {
	mu      sync.Mutex
	entries map[string]*guardEntry
	cfg     AuthGuardConfig
	logger  *slog.Logger
	stopCh  chan struct{}
}

// NewAuthGuard creates a guard and starts background cleanup.
func NewAuthGuard(cfg AuthGuardConfig, logger *slog.Logger) *AuthGuard {
	g := &AuthGuard{
		entries: make(map[string]*guardEntry),
		cfg:     cfg,
		logger:  logger.With("subsystem", "authguard"),
		stopCh:  make(chan struct{}),
	}
	go g.cleanupLoop()
	return g
}

// Allow reports whether the mailbox still has failure budget left. A
// blocked mailbox fails PIN verification closed until the budget refills.
func (g *AuthGuard) Allow(extension string) bool {
	g.mu.Lock()
	entry, ok := g.entries[extension]
	if ok {
		entry.lastSeen = time.Now()
	}
	g.mu.Unlock()

	if !ok {
		return true
	}
	return entry.limiter.Tokens() >= 1
}

// RecordFailure consumes one unit of the mailbox's failure budget.
func (g *AuthGuard) RecordFailure(extension string) {
	g.mu.Lock()
	entry, ok := g.entries[extension]
	if !ok {
		entry = &guardEntry{
			limiter: rate.NewLimiter(g.cfg.FailureRate, g.cfg.Burst),
		}
		g.entries[extension] = entry
	}
	entry.lastSeen = time.Now()
	g.mu.Unlock()

	entry.limiter.Allow()
	if entry.limiter.Tokens() < 1 {
		g.logger.Warn("mailbox blocked after repeated pin failures", "mailbox", extension)
	}
}

// RecordSuccess clears the failure history for a mailbox.
func (g *AuthGuard) RecordSuccess(extension string) {
	g.mu.Lock()
	delete(g.entries, extension)
	g.mu.Unlock()
}

// Stop terminates the background cleanup goroutine.
func (g *AuthGuard) Stop() {
	close(g.stopCh)
}

// cleanupLoop periodically removes stale entries.
func (g *AuthGuard) cleanupLoop() {
	ticker := time.NewTicker(g.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			g.cleanup()
		case <-g.stopCh:
			return
		}
	}
}

// cleanup removes entries that haven't been seen within MaxAge.
func (g *AuthGuard) cleanup() {
	g.mu.Lock()
	defer g.mu.Unlock()

	cutoff := time.Now().Add(-g.cfg.MaxAge)
	removed := 0
	for key, entry := range g.entries {
		if entry.lastSeen.Before(cutoff) {
			delete(g.entries, key)
			removed++
		}
	}
	if removed > 0 {
		g.logger.Debug("auth guard cleanup", "removed", removed, "remaining", len(g.entries))
	}
}
