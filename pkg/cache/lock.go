package cache

import (
	"context"
	"sync"
	"time"
)

// Locker is the advisory lock used to keep batch jobs from overlapping.
// The Redis implementation coordinates across instances; MutexLocker is
// the single-binary fallback when Redis is not configured.
type Locker interface {
	// TryLock acquires name for ttl. Returns false if already held.
	TryLock(ctx context.Context, name string, ttl time.Duration) (bool, error)
	// Unlock releases name. Releasing an unheld lock is not an error.
	Unlock(ctx context.Context, name string) error
}

// ─── Redis locker ─────────────────────────────────────────────────────────────

// RedisLocker implements Locker with SETNX + TTL. The TTL bounds how long a
// crashed holder can block the next run.
type RedisLocker struct {
	client *Client
	prefix string
}

// NewRedisLocker builds a Locker over an existing cache client.
func NewRedisLocker(client *Client) *RedisLocker {
	return &RedisLocker{client: client, prefix: "lock:"}
}

func (l *RedisLocker) TryLock(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	if !l.client.Available() {
		return false, nil
	}
	return l.client.rdb.SetNX(ctx, l.prefix+name, "1", ttl).Result()
}

func (l *RedisLocker) Unlock(ctx context.Context, name string) error {
	if !l.client.Available() {
		return nil
	}
	return l.client.rdb.Del(ctx, l.prefix+name).Err()
}

// ─── In-process fallback ──────────────────────────────────────────────────────

// MutexLocker implements Locker for deployments without Redis. Held locks
// expire after their TTL so a stuck task cannot wedge the sweep forever.
type MutexLocker struct {
	mu    sync.Mutex
	held  map[string]time.Time // name → expiry
	clock func() time.Time
}

func NewMutexLocker() *MutexLocker {
	return &MutexLocker{held: map[string]time.Time{}, clock: time.Now}
}

func (l *MutexLocker) TryLock(_ context.Context, name string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if expiry, ok := l.held[name]; ok && now.Before(expiry) {
		return false, nil
	}
	l.held[name] = now.Add(ttl)
	return true, nil
}

func (l *MutexLocker) Unlock(_ context.Context, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, name)
	return nil
}
