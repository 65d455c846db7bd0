package species

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInMemoryStickLookup(t *testing.T) {
	r := NewInMemory([]Stick{
		{ID: "13", Size: 114364328, Topology: Linear, Tags: []string{"chromosome"}},
		{ID: "MT", Size: 16569, Topology: Circular, Tags: []string{"mitochondrion"}},
	})

	s, ok := r.Stick("MT")
	require.True(t, ok)
	require.Equal(t, Circular, s.Topology)

	_, ok = r.Stick("nope")
	require.False(t, ok)
}

func TestValidatePanel(t *testing.T) {
	r := NewInMemory([]Stick{{ID: "13", Size: 1000}})

	require.NoError(t, ValidatePanel(r, "13", 0, 1000))
	require.Error(t, ValidatePanel(r, "13", 500, 100))
	require.Error(t, ValidatePanel(r, "13", 0, 1001))
	require.Error(t, ValidatePanel(r, "unknown", 0, 10))
}
