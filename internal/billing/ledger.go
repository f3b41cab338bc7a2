package billing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultLedgerTTL bounds how long a processed event id is remembered.
const DefaultLedgerTTL = 72 * time.Hour

// Ledger remembers which provider events were already applied.
type Ledger interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Record(ctx context.Context, eventID string) error
}

type MemoryLedger struct {
	mu   sync.Mutex
	ttl  time.Duration
	now  func() time.Time
	seen map[string]time.Time
}

func NewMemoryLedger(ttl time.Duration) *MemoryLedger {
	if ttl <= 0 {
		ttl = DefaultLedgerTTL
	}
	return &MemoryLedger{ttl: ttl, now: time.Now, seen: make(map[string]time.Time)}
}

func (l *MemoryLedger) Seen(ctx context.Context, eventID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	expires, ok := l.seen[eventID]
	if !ok {
		return false, nil
	}
	if l.now().After(expires) {
		delete(l.seen, eventID)
		return false, nil
	}
	return true, nil
}

func (l *MemoryLedger) Record(ctx context.Context, eventID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for id, expires := range l.seen {
		if now.After(expires) {
			delete(l.seen, id)
		}
	}
	l.seen[eventID] = now.Add(l.ttl)
	return nil
}

// RedisLedger shares processed event ids across instances.
type RedisLedger struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisLedger(client *redis.Client, ttl time.Duration) *RedisLedger {
	if ttl <= 0 {
		ttl = DefaultLedgerTTL
	}
	return &RedisLedger{client: client, ttl: ttl, prefix: "billing:event:"}
}

// OpenRedis parses url, applies connection timeouts and pings the server.
func OpenRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func (l *RedisLedger) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := l.client.Exists(ctx, l.prefix+eventID).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

func (l *RedisLedger) Record(ctx context.Context, eventID string) error {
	if err := l.client.SetNX(ctx, l.prefix+eventID, time.Now().UTC().Format(time.RFC3339), l.ttl).Err(); err != nil {
		return fmt.Errorf("redis setnx: %w", err)
	}
	return nil
}

var (
	_ Ledger = (*MemoryLedger)(nil)
	_ Ledger = (*RedisLedger)(nil)
)
