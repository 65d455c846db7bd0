package dataalg

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLesqlite2RoundTrip(t *testing.T) {
	samples := []uint64{0, 1, 177, 178, 179, 16561, 16562, 16563, 540849, 540850, 540851, 1 << 20, 1 << 40}

	for _, v := range samples {
		buf := EncodeLesqlite2(nil, v)
		got, n := DecodeLesqlite2(buf)
		require.Equal(t, len(buf), n, "value %d", v)
		require.Equal(t, v, got, "value %d", v)
	}
}

func TestLesqlite2MonotonicLength(t *testing.T) {
	prevLen := 0
	for v := uint64(0); v < 540850; v += 997 {
		buf := EncodeLesqlite2(nil, v)
		require.GreaterOrEqual(t, len(buf), prevLen)
		prevLen = len(buf)
	}
}

func TestLesqlite2ByteLayout(t *testing.T) {
	require.Equal(t, []byte{0}, EncodeLesqlite2(nil, 0))
	require.Equal(t, []byte{177}, EncodeLesqlite2(nil, 177))
	require.Equal(t, []byte{178, 0}, EncodeLesqlite2(nil, 178))
	require.Equal(t, []byte{242, 0, 0}, EncodeLesqlite2(nil, 16562))
}

func TestZigzagRoundTrip(t *testing.T) {
	samples := []int64{0, 1, -1, 2, -2, 1 << 30, -(1 << 30)}
	for _, v := range samples {
		require.Equal(t, v, Unzigzag(Zigzag(v)))
	}
}

func TestDeltaUndeltaRoundTrip(t *testing.T) {
	x := []int64{5, 5, 8, 3, 3, 3, 100, -10}
	require.Equal(t, x, Undelta(Delta(x)))
}
