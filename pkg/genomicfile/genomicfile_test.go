package genomicfile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStubStoreReadFeaturesOverlap(t *testing.T) {
	s := NewStubStore()
	s.Features["13"] = []Record{
		{Start: 0, End: 10, Name: "a"},
		{Start: 20, End: 30, Name: "b"},
	}

	out, err := s.ReadFeatures(context.Background(), "13", 5, 25)
	require.NoError(t, err)
	require.Len(t, out, 2)
}

func TestStubStoreReadSequenceClips(t *testing.T) {
	s := NewStubStore()
	s.Sequence["13"] = []byte("ACGTACGT")

	out, err := s.ReadSequence(context.Background(), "13", -5, 4)
	require.NoError(t, err)
	require.Equal(t, []byte("ACGT"), out)

	out, err = s.ReadSequence(context.Background(), "13", 6, 100)
	require.NoError(t, err)
	require.Equal(t, []byte("GT"), out)
}
