package cache

import (
	"context"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/ensembl-io/genoverse-backend/pkg/fingerprint"
)

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
	down bool
}

func newMemStore() *memStore {
	return &memStore{data: map[string][]byte{}}
}

func (m *memStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.down {
		return nil, errUnavailable
	}
	v, ok := m.data[key]
	if !ok {
		return nil, ErrMiss
	}
	return v, nil
}

func (m *memStore) Set(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.down {
		return errUnavailable
	}
	m.data[key] = value
	return nil
}

var errUnavailable = &unavailableErr{}

type unavailableErr struct{}

func (*unavailableErr) Error() string { return "store unavailable" }

func newTestCache(t *testing.T, store KVStore) *Cache {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(noopWriter{})

	c := &Cache{
		kv:     store,
		prefix: "egs",
		logger: logger,
	}
	c.available.Store(true)
	return c
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }

func sampleFingerprint() fingerprint.Fingerprint {
	fp, _ := fingerprint.Compute(fingerprint.Request{
		Prefix:     "egs",
		Bump:       "b1",
		VersionEgs: 16,
		Channel:    []any{uint64(0), "u"},
		Endpoint:   "gene",
		PanelBytes: []byte{1},
		Scope:      map[string][]string{"id": {"x"}},
		Accept:     "uncompressed",
	})
	return fp
}

func TestStoreAndGetDataRoundTrip(t *testing.T) {
	store := newMemStore()
	c := newTestCache(t, store)
	fp := sampleFingerprint()

	_, ok := c.GetData(context.Background(), 16, fp)
	require.False(t, ok)

	c.StoreData(context.Background(), 16, fp, []byte("payload"))

	got, ok := c.GetData(context.Background(), 16, fp)
	require.True(t, ok)
	require.Equal(t, []byte("payload"), got)
}

func TestStoreDataSkipsOversizedPayload(t *testing.T) {
	store := newMemStore()
	c := newTestCache(t, store)
	fp := sampleFingerprint()

	oversized := make([]byte, maxCacheableBytes+1)
	c.StoreData(context.Background(), 16, fp, oversized)

	_, ok := c.GetData(context.Background(), 16, fp)
	require.False(t, ok)
}

func TestGetDataDegradesWhenUnavailable(t *testing.T) {
	store := newMemStore()
	c := newTestCache(t, store)
	fp := sampleFingerprint()

	c.StoreData(context.Background(), 16, fp, []byte("payload"))
	c.available.Store(false)

	_, ok := c.GetData(context.Background(), 16, fp)
	require.False(t, ok)
}

func TestJumpRoundTrip(t *testing.T) {
	store := newMemStore()
	c := newTestCache(t, store)

	_, _, _, ok := c.GetJump(context.Background(), 16, "gene:BRCA2")
	require.False(t, ok)

	c.SetJump(context.Background(), 16, "gene:BRCA2", "13", 32315086, 32400266)

	stick, left, right, ok := c.GetJump(context.Background(), 16, "gene:BRCA2")
	require.True(t, ok)
	require.Equal(t, "13", stick)
	require.Equal(t, int64(32315086), left)
	require.Equal(t, int64(32400266), right)
}

func TestNamespacedKeyBumpOnRestartVaries(t *testing.T) {
	store := newMemStore()
	c1 := newTestCache(t, store)
	c1.bumpOnRestart = true
	c1.startedAt = c1.startedAt.Add(0)

	c2 := newTestCache(t, store)
	c2.bumpOnRestart = true
	c2.startedAt = c1.startedAt.Add(1)

	require.NotEqual(t, c1.namespacedKey("x"), c2.namespacedKey("x"))
}
