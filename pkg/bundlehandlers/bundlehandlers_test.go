package bundlehandlers

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ensembl-io/genoverse-backend/pkg/bundles"
	"github.com/ensembl-io/genoverse-backend/pkg/cache"
	"github.com/ensembl-io/genoverse-backend/pkg/expansion"
	"github.com/ensembl-io/genoverse-backend/pkg/metrics"
	"github.com/ensembl-io/genoverse-backend/pkg/species"
	"github.com/ensembl-io/genoverse-backend/pkg/tracks"
	"github.com/ensembl-io/genoverse-backend/pkg/wire"
)

type memStore struct{ data map[string][]byte }

func newMemStore() *memStore { return &memStore{data: map[string][]byte{}} }

func (s *memStore) Get(ctx context.Context, key string) ([]byte, error) {
	v, ok := s.data[key]
	if !ok {
		return nil, cache.ErrMiss
	}
	return v, nil
}

func (s *memStore) Set(ctx context.Context, key string, value []byte) error {
	s.data[key] = value
	return nil
}

type memSink struct{ lines []string }

func (s *memSink) Write(ctx context.Context, lines string) error {
	s.lines = append(s.lines, lines)
	return nil
}

type stubJumpIndex struct {
	stick       string
	left, right int64
	ok          bool
}

func (s stubJumpIndex) Lookup(ctx context.Context, lookup string) (string, int64, int64, bool) {
	return s.stick, s.left, s.right, s.ok
}

func newTestInventory(t *testing.T) *bundles.Inventory {
	t.Helper()
	dir := t.TempDir()
	configPath := filepath.Join(dir, "begs.toml")
	require.NoError(t, os.WriteFile(configPath, []byte(`
[core.boot]
16 = "mainbundle"

[stick-authority]
startup = "sa-startup"
lookup = "sa-lookup"
jump = "sa-jump"

[begs.mainbundle]
boot = "core.boot"
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mainbundle.begs"), []byte{0x01, 0x02, 0x03}, 0o644))

	inv, err := bundles.Load(configPath, dir, nil)
	require.NoError(t, err)
	return inv
}

func newTestContext(t *testing.T) (*Context, *memStore) {
	t.Helper()
	store := newMemStore()
	c := cache.New(context.Background(), store, "egs", false, nil)
	c.WarmUp(context.Background())

	return &Context{
		Channel:           "tcp://example:8000",
		Version:           16,
		SupportedVersions: []uint32{16},
		Inventory:         newTestInventory(t),
		Species:           species.NewInMemory([]species.Stick{{ID: "13", Size: 1000}}),
		Tracks:            tracks.New(),
		Cache:             c,
		Expansions:        expansion.New(),
		Assets:            map[string]Asset{},
	}, store
}

func TestBootstrapHandlerKnownVersion(t *testing.T) {
	bc, _ := newTestContext(t)
	resp, err := BootstrapHandler(context.Background(), bc)
	require.NoError(t, err)
	require.Equal(t, uint8(0), resp.Kind)
	require.Contains(t, resp.Bundles, "mainbundle")
}

func TestBootstrapHandlerUnsupportedVersion(t *testing.T) {
	bc, _ := newTestContext(t)
	bc.Version = 99
	resp, err := BootstrapHandler(context.Background(), bc)
	require.NoError(t, err)
	require.Equal(t, uint8(1), resp.Kind)
}

func TestProgramHandlerChannelMismatch(t *testing.T) {
	bc, _ := newTestContext(t)
	resp, err := ProgramHandler(context.Background(), bc, "core.boot", "tcp://other:1")
	require.NoError(t, err)
	require.Equal(t, uint8(1), resp.Kind)
}

func TestProgramHandlerResolves(t *testing.T) {
	bc, _ := newTestContext(t)
	resp, err := ProgramHandler(context.Background(), bc, "core.boot", bc.Channel)
	require.NoError(t, err)
	require.Equal(t, uint8(2), resp.Kind)
	require.Contains(t, resp.Bundles, "mainbundle")
}

func TestStickHandlerKnownAndUnknown(t *testing.T) {
	bc, _ := newTestContext(t)

	resp, err := StickHandler(context.Background(), bc, "13")
	require.NoError(t, err)
	require.Equal(t, uint8(3), resp.Kind)

	var body map[string]any
	require.NoError(t, wire.Unmarshal(resp.Payload, &body))
	require.EqualValues(t, 1000, body["size"])

	resp, err = StickHandler(context.Background(), bc, "nope")
	require.NoError(t, err)
	require.Equal(t, uint8(3), resp.Kind)
	require.NoError(t, wire.Unmarshal(resp.Payload, &body))
	require.Contains(t, body, "error")
}

func TestStickAuthorityHandler(t *testing.T) {
	bc, _ := newTestContext(t)
	resp, err := StickAuthorityHandler(context.Background(), bc)
	require.NoError(t, err)
	require.Equal(t, uint8(4), resp.Kind)
}

func TestJumpHandlerIndexFallbackThenCacheHit(t *testing.T) {
	bc, _ := newTestContext(t)
	bc.JumpIndex = stubJumpIndex{stick: "13", left: 10, right: 20, ok: true}

	resp, err := JumpHandler(context.Background(), bc, "focus:gene:human:BRCA2")
	require.NoError(t, err)
	require.Equal(t, uint8(6), resp.Kind)

	bc.JumpIndex = stubJumpIndex{ok: false}
	resp2, err := JumpHandler(context.Background(), bc, "focus:gene:human:BRCA2")
	require.NoError(t, err)
	require.Equal(t, resp.Payload, resp2.Payload, "cached jump must be reused without consulting the index again")
}

func TestJumpHandlerNoMatch(t *testing.T) {
	bc, _ := newTestContext(t)
	bc.JumpIndex = stubJumpIndex{ok: false}

	resp, err := JumpHandler(context.Background(), bc, "focus:gene:human:UNKNOWN")
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, wire.Unmarshal(resp.Payload, &body))
	require.Equal(t, true, body["no"])
}

func TestMetricHandlerForwardsLines(t *testing.T) {
	bc, _ := newTestContext(t)
	sink := &memSink{}
	bc.MetricSink = sink

	telemetry := metrics.Telemetry{
		Type: "programrun",
		Payload: map[string]any{
			"programrun": map[string]any{
				"names": []any{"gene"},
				"datapoints": []any{
					[]any{int64(0), int64(10), true, int64(5), int64(20)},
				},
			},
		},
	}

	resp, err := MetricHandler(context.Background(), bc, telemetry)
	require.NoError(t, err)
	require.Equal(t, uint8(2), resp.Kind)
	require.Len(t, sink.lines, 1)
	require.Contains(t, sink.lines[0], "prog-time")
}

func TestMetricHandlerClientDispatchesSubHandlers(t *testing.T) {
	bc, _ := newTestContext(t)
	sink := &memSink{}
	bc.MetricSink = sink

	telemetry := metrics.Telemetry{
		Type: "Client",
		Payload: map[string]any{
			"type": "Client",
			"datastream": map[string]any{
				"names": []any{"gene"},
				"keys":  []any{"k1"},
				"datapoints": []any{
					[]any{int64(0), int64(0), int64(10), false, int64(2), int64(200)},
				},
			},
		},
	}

	resp, err := MetricHandler(context.Background(), bc, telemetry)
	require.NoError(t, err)
	require.Equal(t, uint8(2), resp.Kind)
	require.Len(t, sink.lines, 1)
	require.Contains(t, sink.lines[0], "gb-requests")
}

func TestExpansionHandlerUnknown(t *testing.T) {
	bc, _ := newTestContext(t)
	resp, err := ExpansionHandler(context.Background(), bc, "nope", "1")
	require.NoError(t, err)
	require.Equal(t, uint8(1), resp.Kind)
}

func TestExpansionHandlerRuns(t *testing.T) {
	bc, _ := newTestContext(t)
	require.NoError(t, bc.Tracks.Ingest(map[string]any{
		"expansion": map[string]any{
			"populations": map[string]any{
				"run": "populations",
			},
		},
	}))
	bc.Expansions.Register("populations", func(name string, channel []string, step string) (*tracks.Tracks, error) {
		out := tracks.New()
		require.NoError(t, out.Ingest(map[string]any{
			"track": map[string]any{
				"pop-1": map[string]any{"program_name": "pop"},
			},
		}))
		return out, nil
	})

	resp, err := ExpansionHandler(context.Background(), bc, "populations", "3")
	require.NoError(t, err)
	require.Equal(t, uint8(7), resp.Kind)
	require.False(t, resp.Tracks.Empty())
}
