// Package lock serializes snapshot writers across processes.
package lock

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLocked is returned when another writer holds the key.
var ErrLocked = errors.New("snapshot locked by another run")

// ErrNotHeld is returned by Unlock when the lock expired or was taken over.
var ErrNotHeld = errors.New("lock not held")

// Unlock releases an acquired lock.
type Unlock func(ctx context.Context) error

// Locker grants exclusive access to a key. Acquire does not wait: a held
// key fails immediately with ErrLocked.
type Locker interface {
	Acquire(ctx context.Context, key string) (Unlock, error)
}

// FileLocker takes an flock on <dir>/<key>.lock.
type FileLocker struct {
	dir string
}

func NewFileLocker(dir string) (*FileLocker, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	return &FileLocker{dir: dir}, nil
}

func (l *FileLocker) Path(key string) string {
	return filepath.Join(l.dir, sanitize(key)+".lock")
}

func (l *FileLocker) Acquire(ctx context.Context, key string) (Unlock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fl := flock.New(l.Path(key))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, key)
	}

	return func(context.Context) error {
		if !fl.Locked() {
			return ErrNotHeld
		}
		return fl.Unlock()
	}, nil
}

const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`

var release = redis.NewScript(releaseScript)

// RedisLocker holds a key with SET NX and a TTL so a crashed run cannot
// block the next one forever. Release only deletes the key if the token
// still matches.
type RedisLocker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &RedisLocker{client: client, prefix: "tracker:lock:", ttl: ttl}
}

// ConnectRedis parses url and pings the server.
func ConnectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis unreachable: %w", err)
	}
	return client, nil
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (Unlock, error) {
	name := l.prefix + key
	token := uuid.New().String()

	ok, err := l.client.SetNX(ctx, name, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, key)
	}

	return func(ctx context.Context) error {
		n, err := release.Run(ctx, l.client, []string{name}, token).Int()
		if err != nil {
			return fmt.Errorf("unlock %s: %w", key, err)
		}
		if n == 0 {
			return ErrNotHeld
		}
		return nil
	}, nil
}

// sanitize escapes key into a single file name; distinct keys stay distinct.
func sanitize(key string) string {
	return strings.ReplaceAll(url.PathEscape(key), ":", "%3A")
}
