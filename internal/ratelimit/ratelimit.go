// Package ratelimit implements per-client admission control for the ingress
// layer. Each client is tracked over a rolling window with a short burst
// sub-window; a violation of either bound puts the client into a fixed
// cooldown during which every request is rejected.
package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Config bounds per-client request rates.
type Config struct {
	// RequestsPerMinute caps admissions over the rolling 60s window.
	RequestsPerMinute int `yaml:"requests_per_minute" env:"RATELIMIT_REQUESTS_PER_MINUTE"`

	// BurstLimit caps admissions over the trailing 1s sub-window.
	BurstLimit int `yaml:"burst_limit" env:"RATELIMIT_BURST_LIMIT"`

	// BlockDuration is the cooldown applied after a violation.
	BlockDuration time.Duration `yaml:"block_duration" env:"RATELIMIT_BLOCK_DURATION"`
}

// DefaultConfig returns the default admission bounds.
func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 60,
		BurstLimit:        10,
		BlockDuration:     5 * time.Minute,
	}
}

const window = 60 * time.Second

// Reason classifies a rejection.
type Reason string

const (
	// ReasonBlocked is a request arriving during an active cooldown.
	ReasonBlocked Reason = "blocked"
	// ReasonBurst is a violation of the 1s burst bound.
	ReasonBurst Reason = "burst"
	// ReasonWindow is a violation of the rolling window bound.
	ReasonWindow Reason = "window"
)

// Rejection carries why a request was refused and the message to send to
// the client.
type Rejection struct {
	Reason  Reason
	Message string
}

// entry tracks one client.
type entry struct {
	timestamps   []time.Time
	blockedUntil time.Time
}

// Limiter is the per-client admission controller. Safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	cfg     Config
	clients map[string]*entry
	logger  *zap.Logger
	now     func() time.Time
}

// New creates a limiter with the given bounds.
func New(cfg Config, logger *zap.Logger) *Limiter {
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 60
	}
	if cfg.BurstLimit <= 0 {
		cfg.BurstLimit = 10
	}
	if cfg.BlockDuration <= 0 {
		cfg.BlockDuration = 5 * time.Minute
	}
	l := &Limiter{
		cfg:     cfg,
		clients: make(map[string]*entry),
		logger:  logger.With(zap.String("component", "rate_limiter")),
		now:     time.Now,
	}
	logger.Info("rate limiter initialized",
		zap.Int("requests_per_minute", cfg.RequestsPerMinute),
		zap.Int("burst_limit", cfg.BurstLimit),
		zap.Duration("block_duration", cfg.BlockDuration),
	)
	return l
}

// Admit decides whether a request from clientID may proceed. On rejection
// the returned Rejection names the violated bound and carries the message
// for the client response; admitted requests return a nil Rejection.
func (l *Limiter) Admit(clientID string) (allowed bool, rejection *Rejection) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.clients[clientID]
	if !ok {
		e = &entry{}
		l.clients[clientID] = e
	}

	// An active cooldown rejects without touching the window.
	if !e.blockedUntil.IsZero() {
		if now.Before(e.blockedUntil) {
			remaining := int(e.blockedUntil.Sub(now).Seconds())
			return false, &Rejection{
				Reason:  ReasonBlocked,
				Message: fmt.Sprintf("Too many requests. Please try again in %d seconds.", remaining),
			}
		}
		e.blockedUntil = time.Time{}
	}

	e.prune(now)

	if e.countSince(now.Add(-time.Second)) >= l.cfg.BurstLimit {
		e.blockedUntil = now.Add(l.cfg.BlockDuration)
		l.logger.Warn("burst limit exceeded",
			zap.String("client_id", clientID),
			zap.Int("burst_limit", l.cfg.BurstLimit),
		)
		return false, &Rejection{
			Reason:  ReasonBurst,
			Message: "Too many requests in a short time. Please slow down.",
		}
	}

	if len(e.timestamps) >= l.cfg.RequestsPerMinute {
		e.blockedUntil = now.Add(l.cfg.BlockDuration)
		l.logger.Warn("rate limit exceeded",
			zap.String("client_id", clientID),
			zap.Int("requests_per_minute", l.cfg.RequestsPerMinute),
		)
		return false, &Rejection{
			Reason:  ReasonWindow,
			Message: "Rate limit exceeded. Please try again later.",
		}
	}

	e.timestamps = append(e.timestamps, now)
	return true, nil
}

// Reset forgets all tracked state for clientID.
func (l *Limiter) Reset(clientID string) {
	l.mu.Lock()
	delete(l.clients, clientID)
	l.mu.Unlock()
}

// SetClock overrides the time source. Used in tests.
func (l *Limiter) SetClock(now func() time.Time) {
	l.mu.Lock()
	l.now = now
	l.mu.Unlock()
}

func (e *entry) prune(now time.Time) {
	cutoff := now.Add(-window)
	kept := e.timestamps[:0]
	for _, ts := range e.timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	e.timestamps = kept
}

func (e *entry) countSince(cutoff time.Time) int {
	n := 0
	for _, ts := range e.timestamps {
		if ts.After(cutoff) {
			n++
		}
	}
	return n
}
