package notification

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// Deduper remembers delivered event ids so redelivered envelopes are handled once.
type Deduper interface {
	// FirstDelivery reports whether eventID has not been seen before and marks it seen.
	FirstDelivery(ctx context.Context, userID, eventID string) (bool, error)
}

// RedisDeduper shares delivery marks across gateway instances.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: ttl}
}

func (d *RedisDeduper) FirstDelivery(ctx context.Context, userID, eventID string) (bool, error) {
	if eventID == "" {
		return true, nil
	}
	key := "portal:delivered:" + userID + ":" + eventID
	// SetNX only succeeds for the first delivery.
	wasSet, err := d.client.SetNX(ctx, key, "1", d.ttl).Result()
	if err != nil {
		return false, err
	}
	return wasSet, nil
}

// MemoryDeduper is the single-instance fallback when no Redis is configured.
type MemoryDeduper struct {
	mu        sync.Mutex
	ttl       time.Duration
	seen      map[string]time.Time
	now       func() time.Time
	lastSweep time.Time
}

func NewMemoryDeduper(ttl time.Duration) *MemoryDeduper {
	return &MemoryDeduper{
		ttl:  ttl,
		seen: make(map[string]time.Time),
		now:  time.Now,
	}
}

func (d *MemoryDeduper) FirstDelivery(_ context.Context, userID, eventID string) (bool, error) {
	if eventID == "" {
		return true, nil
	}
	key := userID + ":" + eventID

	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if now.Sub(d.lastSweep) > d.ttl {
		for k, at := range d.seen {
			if now.Sub(at) > d.ttl {
				delete(d.seen, k)
			}
		}
		d.lastSweep = now
	}

	if at, ok := d.seen[key]; ok && now.Sub(at) <= d.ttl {
		return false, nil
	}
	d.seen[key] = now
	return true, nil
}

// Len returns the number of remembered deliveries.
func (d *MemoryDeduper) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
