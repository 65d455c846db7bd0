package datahandlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ensembl-io/genoverse-backend/pkg/cache"
	"github.com/ensembl-io/genoverse-backend/pkg/metrics"
)

type stubHandler struct {
	calls int
}

func (s *stubHandler) ProcessData(ctx context.Context, da *Accessor, panel Panel, scope map[string][]string, accept string) (map[string]any, bool, error) {
	s.calls++
	return map[string]any{"value": int64(panel.Index)}, false, nil
}

type stubStore struct{ data map[string][]byte }

func newStubStore() *stubStore { return &stubStore{data: map[string][]byte{}} }

func (s *stubStore) Get(ctx context.Context, key string) ([]byte, error) {
	v, ok := s.data[key]
	if !ok {
		return nil, cache.ErrMiss
	}
	return v, nil
}

func (s *stubStore) Set(ctx context.Context, key string, value []byte) error {
	s.data[key] = value
	return nil
}

func newTestRouterAccessor(t *testing.T, handlerName string, h EndpointHandler) (*Router, *Accessor) {
	t.Helper()
	store := newStubStore()
	c := cache.New(context.Background(), store, "egs", false, nil)
	c.WarmUp(context.Background())

	router := NewRouter(map[string]EndpointHandler{handlerName: h}, "egs")
	da := &Accessor{Cache: c, Version: 16}
	return router, da
}

func TestDecodePayloadThreeAndFourElement(t *testing.T) {
	p, err := DecodePayload([]any{"gene", []any{"13", int64(0), int64(0)}, map[string]any{}})
	require.NoError(t, err)
	require.Equal(t, "gene", p.Name)

	p, err = DecodePayload([]any{"gene", []any{"13", int64(0), int64(0)}, map[string]any{}, "uncompressed"})
	require.NoError(t, err)
	require.Equal(t, "uncompressed", p.Accept)
}

func TestRouterCacheMissThenHit(t *testing.T) {
	h := &stubHandler{}
	router, da := newTestRouterAccessor(t, "gene", h)
	m := metrics.New()

	payload := Payload{Name: "gene", Panel: Panel{Stick: "13", Scale: 0, Index: 5}, Scope: map[string][]string{}, Accept: "uncompressed"}

	resp1, err := router.Process(context.Background(), da, "bump-1", []any{uint64(0), "u"}, payload, m)
	require.NoError(t, err)
	require.Equal(t, uint8(5), resp1.Kind)
	require.Equal(t, 1, h.calls)
	require.Equal(t, 0, m.CacheHits)
	require.Equal(t, 1, m.CacheMisses)

	resp2, err := router.Process(context.Background(), da, "bump-1", []any{uint64(0), "u"}, payload, metrics.New())
	require.NoError(t, err)
	require.Equal(t, resp1.Payload, resp2.Payload)
	require.Equal(t, 1, h.calls, "handler must not run again on cache hit")
}

func TestRouterUnknownEndpoint(t *testing.T) {
	router, da := newTestRouterAccessor(t, "gene", &stubHandler{})
	m := metrics.New()

	payload := Payload{Name: "nope", Panel: Panel{Stick: "13"}, Scope: map[string][]string{}}
	resp, err := router.Process(context.Background(), da, "bump-1", nil, payload, m)
	require.NoError(t, err)
	require.Equal(t, uint8(1), resp.Kind)
}
