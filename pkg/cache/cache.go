// Package cache implements the at-most-once lookup+store discipline
// around an external key-value store: fingerprinting is the caller's
// job (pkg/fingerprint), this package only knows how to turn a
// fingerprint plus a protocol version into a KV key, tolerate the KV
// store being unavailable, refresh the global "bump" salt, and refuse to
// store payloads that are too large to be worth caching.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ensembl-io/genoverse-backend/pkg/fingerprint"
	"github.com/ensembl-io/genoverse-backend/pkg/wire"
)

// ErrMiss is returned by a KVStore.Get implementation when the key is
// simply absent (as opposed to the store being unreachable).
var ErrMiss = errors.New("cache: key not found")

// maxCacheableBytes is the size above which a reply is not stored.
const maxCacheableBytes = 900 * 1024

// KVStore is the external collaborator this package wraps: a plain
// get/set byte-string store (e.g. redis, memcached). Implementations
// must return ErrMiss on a clean miss and any other error on failure.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Cache is the at-most-once façade over a KVStore. It degrades to
// uncached operation when the store is unavailable rather than
// propagating errors to callers.
type Cache struct {
	kv            KVStore
	prefix        string
	bumpOnRestart bool
	startedAt     time.Time
	logger        *logrus.Logger

	available atomic.Bool

	mu            sync.Mutex
	bump          string
	bumpFetchedAt time.Time
}

// New constructs a Cache and starts its background availability probe.
// The probe runs until ctx is cancelled.
func New(ctx context.Context, kv KVStore, prefix string, bumpOnRestart bool, logger *logrus.Logger) *Cache {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	c := &Cache{
		kv:            kv,
		prefix:        prefix,
		bumpOnRestart: bumpOnRestart,
		startedAt:     time.Now(),
		logger:        logger,
	}

	go c.probeLoop(ctx)

	return c
}

// probeLoop implements the "tolerant of the external KV being
// unavailable" discipline: probe every second for the first five
// minutes (covering a cold-start race with the KV's own boot), then
// back off to once every five minutes.
func (c *Cache) probeLoop(ctx context.Context) {
	fastWindow := time.NewTimer(5 * time.Minute)
	defer fastWindow.Stop()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	c.probe(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-fastWindow.C:
			ticker.Reset(5 * time.Minute)
		case <-ticker.C:
			c.probe(ctx)
		}
	}
}

func (c *Cache) probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	_, err := c.kv.Get(probeCtx, c.namespacedKey("__probe__"))
	available := err == nil || errors.Is(err, ErrMiss)

	was := c.available.Swap(available)
	if was != available {
		if available {
			c.logger.Info("cache: external store became available")
		} else {
			c.logger.Warn("cache: external store unavailable, degrading to uncached operation")
		}
	}
}

// Available reports whether the external store answered the most recent
// probe.
func (c *Cache) Available() bool {
	return c.available.Load()
}

// WarmUp runs one synchronous availability probe, letting callers (boot
// code, tests) observe store availability without waiting on the
// background probe's first tick.
func (c *Cache) WarmUp(ctx context.Context) {
	c.probe(ctx)
}

func (c *Cache) namespacedKey(suffix string) string {
	prefix := c.prefix
	if c.bumpOnRestart {
		prefix = fmt.Sprintf("%s@%d", prefix, c.startedAt.UnixNano())
	}
	return prefix + ":" + suffix
}

// Bump returns the current global salt, refreshed from the KV store at
// most every 30 seconds. While the store is unavailable the last-known
// value (or "" on first boot) is returned.
func (c *Cache) Bump(ctx context.Context) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if time.Since(c.bumpFetchedAt) < 30*time.Second {
		return c.bump
	}

	if !c.Available() {
		return c.bump
	}

	value, err := c.kv.Get(ctx, c.prefix+":bump")
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			c.logger.WithError(err).Warn("cache: failed to refresh bump salt")
		}
		c.bumpFetchedAt = time.Now()
		return c.bump
	}

	c.bump = string(value)
	c.bumpFetchedAt = time.Now()
	return c.bump
}

// GetData looks up a previously stored reply payload for fp. It returns
// ok=false both on a genuine miss and while the store is unavailable.
func (c *Cache) GetData(ctx context.Context, version uint32, fp fingerprint.Fingerprint) (payload []byte, ok bool) {
	if !c.Available() {
		return nil, false
	}

	value, err := c.kv.Get(ctx, c.dataKey(version, fp))
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			c.logger.WithError(err).Warn("cache: get_data failed")
		}
		return nil, false
	}

	return value, true
}

// StoreData stores payload under fp unless it is unavailable or the
// payload exceeds the cacheable size limit, in which case it is a no-op
// (never an error the caller must handle).
func (c *Cache) StoreData(ctx context.Context, version uint32, fp fingerprint.Fingerprint, payload []byte) {
	if !c.Available() {
		return
	}
	if len(payload) > maxCacheableBytes {
		return
	}

	if err := c.kv.Set(ctx, c.dataKey(version, fp), payload); err != nil {
		c.logger.WithError(err).Warn("cache: store_data failed")
	}
}

func (c *Cache) dataKey(version uint32, fp fingerprint.Fingerprint) string {
	return c.namespacedKey(fmt.Sprintf("%d:%s", version, fp))
}

// jumpEntry is the canonical [stick, left, right] jump-entry triple
// encoded for storage.
type jumpEntry struct {
	Stick string `cbor:"0,keyasint"`
	Left  int64  `cbor:"1,keyasint"`
	Right int64  `cbor:"2,keyasint"`
}

// GetJump resolves a previously cached focus lookup.
func (c *Cache) GetJump(ctx context.Context, version uint32, lookup string) (stick string, left, right int64, ok bool) {
	if !c.Available() {
		return "", 0, 0, false
	}

	value, err := c.kv.Get(ctx, c.jumpKey(version, lookup))
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			c.logger.WithError(err).Warn("cache: get_jump failed")
		}
		return "", 0, 0, false
	}

	var entry []any
	if err := wire.Unmarshal(value, &entry); err != nil || len(entry) != 3 {
		return "", 0, 0, false
	}

	s, _ := entry[0].(string)
	l, lok := toInt64(entry[1])
	r, rok := toInt64(entry[2])
	if !lok || !rok {
		return "", 0, 0, false
	}

	return s, l, r, true
}

// SetJump stores a resolved focus lookup for future requests in the same
// packet (and subsequent packets) to short-circuit the disk index.
func (c *Cache) SetJump(ctx context.Context, version uint32, lookup, stick string, left, right int64) {
	if !c.Available() {
		return
	}

	encoded, err := wire.MarshalCanonical([]any{stick, left, right})
	if err != nil {
		c.logger.WithError(err).Warn("cache: failed to encode jump entry")
		return
	}

	if err := c.kv.Set(ctx, c.jumpKey(version, lookup), encoded); err != nil {
		c.logger.WithError(err).Warn("cache: set_jump failed")
	}
}

func (c *Cache) jumpKey(version uint32, lookup string) string {
	return c.namespacedKey(fmt.Sprintf("%d:jump:%s", version, lookup))
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}
