package dataalg

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func decodeNumberFragment(t *testing.T, tag string, frag any) []int64 {
	t.Helper()

	c := &cursor{code: []byte(tag), pos: 1}
	return decodeNumberBody(t, c, frag)
}

// decodeNumberBody mirrors the decoder the client would run: it is only
// used here to verify our own encoder round-trips, not shipped as part
// of the backend's public surface (the client owns decoding).
func decodeNumberBody(t *testing.T, c *cursor, frag any) []int64 {
	t.Helper()

	op, err := c.next()
	require.NoError(t, err)

	switch op {
	case 'D':
		return undeltaAll(decodeNumberBody(t, c, frag))
	case 'Z':
		zz := decodeNumberBody(t, c, frag)
		out := make([]int64, len(zz))
		for i, v := range zz {
			out[i] = Unzigzag(uint64(v))
		}
		return out
	case 'R':
		term, err := c.next()
		require.NoError(t, err)
		switch term {
		case 'A':
			return frag.([]int64)
		case 'L':
			buf := frag.([]byte)
			var out []int64
			for len(buf) > 0 {
				v, n := DecodeLesqlite2(buf)
				require.NotZero(t, n)
				out = append(out, int64(v))
				buf = buf[n:]
			}
			return out
		}
	}
	t.Fatalf("unreachable op %q", op)
	return nil
}

func undeltaAll(d []int64) []int64 {
	return Undelta(d)
}

func TestEncodeNumbersNDZRL(t *testing.T) {
	values := []int64{1000, 1010, 1005, 1005, 2000}

	expr, err := EncodeNumbers("NDZRL", values)
	require.NoError(t, err)
	require.Equal(t, "NDZRL", expr[0])

	decoded := decodeNumberFragment(t, "NDZRL", expr[1])
	require.Equal(t, values, decoded)
}

func TestEncodeNumbersNRA(t *testing.T) {
	values := []int64{7, 7, 7}
	expr, err := EncodeNumbers("NRA", values)
	require.NoError(t, err)
	require.Equal(t, values, expr[1])
}

func TestEncodeNumbersRejectsNegativeWithoutZigzag(t *testing.T) {
	_, err := EncodeNumbers("NRL", []int64{-1})
	require.Error(t, err)
}

func TestEncodeStringsSZ(t *testing.T) {
	values := []string{"abc", "", "de"}
	expr, err := EncodeStrings("SZ", values)
	require.NoError(t, err)

	buf := expr[1].([]byte)
	require.Equal(t, []byte("abc\x00\x00de\x00"), buf)
}

func TestEncodeStringsSC(t *testing.T) {
	expr, err := EncodeStrings("SC", []string{"single"})
	require.NoError(t, err)
	require.Equal(t, []byte("single"), expr[1])

	_, err = EncodeStrings("SC", []string{"a", "b"})
	require.Error(t, err)
}

func TestEncodeStringsDictionary(t *testing.T) {
	values := []string{"chr1", "chr2", "chr1", "chr1", "chr3"}
	expr, err := EncodeStrings("SYRLZ", values)
	require.NoError(t, err)
	require.Equal(t, "SYRLZ", expr[0])

	indexBytes := expr[1].([]byte)
	var indexes []int64
	for len(indexBytes) > 0 {
		v, n := DecodeLesqlite2(indexBytes)
		indexes = append(indexes, int64(v))
		indexBytes = indexBytes[n:]
	}

	dictBytes := expr[2].([]byte)
	require.Equal(t, []byte("chr1\x00chr2\x00chr3\x00"), dictBytes)

	keys := []string{"chr1", "chr2", "chr3"}
	reconstructed := make([]string, len(indexes))
	for i, idx := range indexes {
		reconstructed[i] = keys[idx]
	}
	require.Equal(t, values, reconstructed)
}

func TestEncodeBooleans(t *testing.T) {
	values := []bool{true, false, true, true}

	expr, err := EncodeBooleans("BB", values)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 0, 1, 1}, expr[1])

	expr, err = EncodeBooleans("BA", values)
	require.NoError(t, err)
	require.Equal(t, values, expr[1])
}

func TestClassifyIsDeterministicFirstSeenOrder(t *testing.T) {
	keys, idx := classify([]string{"b", "a", "b", "c", "a"})
	require.Equal(t, []string{"b", "a", "c"}, keys)
	require.Equal(t, []int{0, 1, 0, 2, 1}, idx)
}
