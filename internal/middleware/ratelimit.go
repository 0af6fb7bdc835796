package middleware

import (
	"fmt"
	"sync"
	"time"

	"github.com/mp-gpt-consultant-go/internal/config"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// RateLimiter guards the admin console against callback floods.
type RateLimiter interface {
	Allow(chatID int64) bool
	Reset(chatID int64)
}

// AdminRateLimiter implements per-admin-chat rate limiting
type AdminRateLimiter struct {
	enabled         bool
	limiters        map[int64]*rate.Limiter
	mu              sync.RWMutex
	rpm             int
	burst           int
	logger          *logrus.Logger
	cleanupInterval time.Duration
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(cfg *config.RateLimitConfig, logger *logrus.Logger) RateLimiter {
	if !cfg.Enabled {
		return &AdminRateLimiter{enabled: false}
	}

	rl := &AdminRateLimiter{
		enabled:         true,
		limiters:        make(map[int64]*rate.Limiter),
		rpm:             cfg.RequestsPerMinute,
		burst:           cfg.Burst,
		logger:          logger,
		cleanupInterval: 1 * time.Hour,
	}

	go rl.cleanup()

	return rl
}

// Allow checks if an admin chat may perform another action.
func (r *AdminRateLimiter) Allow(chatID int64) bool {
	if !r.enabled {
		return true
	}

	limiter := r.getLimiter(chatID)
	allowed := limiter.Allow()

	if !allowed {
		r.logger.WithFields(logrus.Fields{
			"chat_id": chatID,
		}).Warn("Admin rate limit exceeded")
	}

	return allowed
}

// Reset resets the rate limiter for a chat.
func (r *AdminRateLimiter) Reset(chatID int64) {
	if !r.enabled {
		return
	}

	r.mu.Lock()
	delete(r.limiters, chatID)
	r.mu.Unlock()
}

func (r *AdminRateLimiter) getLimiter(chatID int64) *rate.Limiter {
	r.mu.RLock()
	limiter, exists := r.limiters[chatID]
	r.mu.RUnlock()

	if exists {
		return limiter
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists := r.limiters[chatID]; exists {
		return limiter
	}

	rps := float64(r.rpm) / 60.0
	limiter = rate.NewLimiter(rate.Limit(rps), r.burst)
	r.limiters[chatID] = limiter

	return limiter
}

func (r *AdminRateLimiter) cleanup() {
	ticker := time.NewTicker(r.cleanupInterval)
	defer ticker.Stop()

	for range ticker.C {
		r.mu.Lock()
		if len(r.limiters) > 10000 {
			r.logger.Warn("Rate limiter map size exceeded threshold, clearing")
			r.limiters = make(map[int64]*rate.Limiter)
		}
		r.mu.Unlock()
	}
}

// InputGuard validates inbound buyer text before it reaches the
// orchestrator.
type InputGuard struct {
	logger *logrus.Logger
}

// NewInputGuard creates the input guard.
func NewInputGuard(logger *logrus.Logger) *InputGuard {
	return &InputGuard{logger: logger}
}

// ValidateQuestion rejects questions the model endpoint would refuse
// anyway.
func (g *InputGuard) ValidateQuestion(text string) error {
	if len(text) > 4096 {
		return fmt.Errorf("question too long: %d bytes", len(text))
	}
	return nil
}
