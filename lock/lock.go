package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrNotAcquired = errors.New("lock: not acquired")

// Mutex is a named distributed lock with a hard TTL. The TTL means a
// crashed holder cannot deadlock the system: the key expires and the next
// caller gets through, at the cost of re-admitting the race the lock was
// meant to prevent. Release only deletes the key while this holder's token
// is still the value.
type Mutex struct {
	rdb   *redis.Client
	name  string
	token string
	ttl   time.Duration
}

func New(rdb *redis.Client, name string, ttl time.Duration) *Mutex {
	return &Mutex{rdb: rdb, name: "lock:" + name, ttl: ttl}
}

// Acquire polls SetNX until the lock is held or the context expires.
func (m *Mutex) Acquire(ctx context.Context) error {
	m.token = uuid.NewString()
	for {
		ok, err := m.rdb.SetNX(ctx, m.name, m.token, m.ttl).Result()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ErrNotAcquired
		case <-time.After(25 * time.Millisecond):
		}
	}
}

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

func (m *Mutex) Release(ctx context.Context) error {
	return releaseScript.Run(ctx, m.rdb, []string{m.name}, m.token).Err()
}
