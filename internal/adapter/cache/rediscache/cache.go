// Package rediscache caches assembled reports in Redis so repeated report
// reads skip the database after a session finishes.
package rediscache

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

// Cache implements domain.ReportCache over a Redis client.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewCache constructs a Cache. ttl <= 0 stores entries without expiry.
func NewCache(rdb *redis.Client, ttl time.Duration) *Cache {
	return &Cache{rdb: rdb, ttl: ttl}
}

func key(sessionID string) string { return "report:" + sessionID }

// Get returns the cached report and whether it was present.
func (c *Cache) Get(ctx domain.Context, sessionID string) (domain.Report, bool, error) {
	body, err := c.rdb.Get(ctx, key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Report{}, false, nil
	}
	if err != nil {
		return domain.Report{}, false, fmt.Errorf("op=reportcache.get: %w", err)
	}
	var rep domain.Report
	if err := json.Unmarshal(body, &rep); err != nil {
		return domain.Report{}, false, fmt.Errorf("op=reportcache.get: unmarshal: %w", err)
	}
	return rep, true, nil
}

// Set stores the report under its session key.
func (c *Cache) Set(ctx domain.Context, rep domain.Report) error {
	body, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("op=reportcache.set: marshal: %w", err)
	}
	ttl := c.ttl
	if ttl < 0 {
		ttl = 0
	}
	if err := c.rdb.Set(ctx, key(rep.SessionID), body, ttl).Err(); err != nil {
		return fmt.Errorf("op=reportcache.set: %w", err)
	}
	return nil
}
