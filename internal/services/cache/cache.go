// Package cache memoizes model answers for repeated simple-mode
// questions about the same listing.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/mp-gpt-consultant-go/internal/config"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// Service defines cache operations
type Service interface {
	Get(lotID, question string) (string, bool)
	Set(lotID, question, answer string)
	Clear()
}

type entry struct {
	answer    string
	createdAt time.Time
}

// Cache implements Service on an in-process TTL cache.
type Cache struct {
	enabled bool
	cache   *cache.Cache
	logger  *logrus.Logger
	maxSize int
}

// NewCache creates a new cache service
func NewCache(cfg *config.CacheConfig, logger *logrus.Logger) Service {
	if !cfg.Enabled {
		return &Cache{enabled: false}
	}

	return &Cache{
		enabled: true,
		cache:   cache.New(cfg.TTL, cfg.TTL*2),
		logger:  logger,
		maxSize: cfg.MaxSize,
	}
}

// Get retrieves a cached answer.
func (c *Cache) Get(lotID, question string) (string, bool) {
	if !c.enabled {
		return "", false
	}

	key := generateKey(lotID, question)
	if val, found := c.cache.Get(key); found {
		e := val.(*entry)
		c.logger.WithFields(logrus.Fields{
			"lot_id": lotID,
			"age":    time.Since(e.createdAt),
		}).Debug("Answer cache hit")
		return e.answer, true
	}

	return "", false
}

// Set stores an answer.
func (c *Cache) Set(lotID, question, answer string) {
	if !c.enabled {
		return
	}

	if c.cache.ItemCount() >= c.maxSize {
		c.logger.Warn("Answer cache size limit reached, dropping expired entries")
		c.cache.DeleteExpired()
	}

	c.cache.SetDefault(generateKey(lotID, question), &entry{
		answer:    answer,
		createdAt: time.Now(),
	})
}

// Clear removes all cached entries
func (c *Cache) Clear() {
	if !c.enabled {
		return
	}
	c.cache.Flush()
	c.logger.Info("Answer cache cleared")
}

func generateKey(lotID, question string) string {
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s:%s", lotID, question)))
	return hex.EncodeToString(hash[:])
}
