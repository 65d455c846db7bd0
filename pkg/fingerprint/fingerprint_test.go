package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func baseRequest() Request {
	return Request{
		Prefix:     "egs",
		Bump:       "bump-1",
		VersionEgs: 16,
		Channel:    []any{uint64(0), "u"},
		Endpoint:   "zoomed-seq",
		PanelBytes: []byte{1, 2, 3},
		Scope:      map[string][]string{"datafile": {"a.bb"}, "id": {"x"}},
		Accept:     "uncompressed",
	}
}

func TestComputeDeterministic(t *testing.T) {
	a, err := Compute(baseRequest())
	require.NoError(t, err)
	b, err := Compute(baseRequest())
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestComputeSensitiveToEachField(t *testing.T) {
	base, err := Compute(baseRequest())
	require.NoError(t, err)

	mutate := func(f func(*Request)) Fingerprint {
		r := baseRequest()
		f(&r)
		fp, err := Compute(r)
		require.NoError(t, err)
		return fp
	}

	variants := []Fingerprint{
		mutate(func(r *Request) { r.Channel = []any{uint64(1), "u"} }),
		mutate(func(r *Request) { r.Endpoint = "gene" }),
		mutate(func(r *Request) { r.PanelBytes = []byte{9, 9, 9} }),
		mutate(func(r *Request) { r.Scope = map[string][]string{"datafile": {"b.bb"}} }),
		mutate(func(r *Request) { r.Accept = "dump" }),
		mutate(func(r *Request) { r.VersionEgs = 14 }),
		mutate(func(r *Request) { r.Bump = "bump-2" }),
	}

	for i, v := range variants {
		require.NotEqual(t, base, v, "variant %d should change the fingerprint", i)
	}
}

func TestComputeIgnoresScopeKeyOrder(t *testing.T) {
	r1 := baseRequest()
	r1.Scope = map[string][]string{"a": {"1"}, "b": {"2"}, "c": {"3"}}

	r2 := baseRequest()
	r2.Scope = map[string][]string{"c": {"3"}, "a": {"1"}, "b": {"2"}}

	fp1, err := Compute(r1)
	require.NoError(t, err)
	fp2, err := Compute(r2)
	require.NoError(t, err)

	require.Equal(t, fp1, fp2)
}
