package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrStoreUnavailable marks transient infrastructure failures, including a
// cancelled request context. Callers may retry the whole request; this layer
// never retries on its own.
var ErrStoreUnavailable = errors.New("key-value store unavailable")

// Namespace is one logical key-value store on a shared Redis client, in the
// spirit of Worker KV bindings: values are opaque blobs, a positive TTL makes
// Redis evict the key on its own, and there is no update primitive.
type Namespace struct {
	rdb    *redis.Client
	prefix string
}

func NewNamespace(rdb *redis.Client, prefix string) *Namespace {
	return &Namespace{
		rdb:    rdb,
		prefix: prefix,
	}
}

func (n *Namespace) key(k string) string {
	return fmt.Sprintf("%s:%s", n.prefix, k)
}

// Get returns the stored value and whether the key exists. A missing key is
// not an error; expired keys are indistinguishable from ones never written.
func (n *Namespace) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := n.rdb.Get(ctx, n.key(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: get %s: %v", ErrStoreUnavailable, n.prefix, err)
	}
	return value, true, nil
}

// Put writes value under key. A ttl of zero or less means the record has no
// natural expiry.
func (n *Namespace) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := n.rdb.Set(ctx, n.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: put %s: %v", ErrStoreUnavailable, n.prefix, err)
	}
	return nil
}
