package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestResponseMetricsRecord(t *testing.T) {
	m := New()
	m.RecordHit(100)
	m.RecordMiss()
	m.Record("gene", 10, 5*time.Millisecond, 200)

	require.Equal(t, 1, m.CacheHits)
	require.Equal(t, 1, m.CacheMisses)
	require.Equal(t, int64(300), m.CacheBytes)
	require.Equal(t, 1, m.Packets)

	snaps := m.Snapshots()
	require.Len(t, snaps, 1)
	require.Equal(t, "gene", snaps[0].Endpoint)
	require.Equal(t, int64(10), snaps[0].Scale)
}

func TestUnmangleDatastream(t *testing.T) {
	payload := map[string]any{
		"datastream": map[string]any{
			"names": []any{"zoomed-seq"},
			"keys":  []any{"ENSG001"},
			"datapoints": []any{
				[]any{int64(0), int64(0), int64(5), true, int64(10), int64(2000)},
			},
		},
	}

	points, err := UnmangleDatastream(payload)
	require.NoError(t, err)
	require.Len(t, points, 1)
	require.Equal(t, "zoomed-seq", points[0].Name)
	require.Equal(t, "batch", points[0].Priority)

	lines := FormatDatastreamLines(points)
	require.Contains(t, lines, "gb-requests,name=zoomed-seq,key=ENSG001,scale=5,priority=batch")
	require.Contains(t, lines, "bpc=200.000000")
}

func TestUnmangleProgramRun(t *testing.T) {
	payload := map[string]any{
		"programrun": map[string]any{
			"names": []any{"render"},
			"datapoints": []any{
				[]any{int64(0), int64(3), false, int64(10), int64(50)},
			},
		},
	}

	points, err := UnmangleProgramRun(payload)
	require.NoError(t, err)
	require.Len(t, points, 1)

	lines := FormatProgramRunLines(points)
	require.Contains(t, lines, "prog-time,name=render,scale=3,warm=false net_ms=10,time_ms=40")
}

func TestLoggingSinkWrite(t *testing.T) {
	s := NewLoggingSink(nil)
	require.NoError(t, s.Write(context.Background(), "x=1\n"))
}
