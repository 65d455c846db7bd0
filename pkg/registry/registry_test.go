package registry

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type stubHandler struct{ name string }

func (s *stubHandler) Process(ProcessContext) (Response, error) {
	return NewResponse(1, []byte(s.name)), nil
}

func (s *stubHandler) RemotePrefix(any) ([]string, bool) { return nil, false }

func TestHandlerSelectionPicksGreatestMinVersionLE(t *testing.T) {
	b := NewBuilder()
	b.RegisterDefault(4, "gene", &stubHandler{name: "v0"})
	b.Register(4, "gene", &stubHandler{name: "v14"}, 14)
	b.Register(4, "gene", &stubHandler{name: "v16"}, 16)
	r := b.Build()

	h, ok := r.HandlerForEndpoint(4, "gene", 10)
	require.True(t, ok)
	require.Equal(t, "v0", h.(*stubHandler).name)

	h, ok = r.HandlerForEndpoint(4, "gene", 14)
	require.True(t, ok)
	require.Equal(t, "v14", h.(*stubHandler).name)

	h, ok = r.HandlerForEndpoint(4, "gene", 15)
	require.True(t, ok)
	require.Equal(t, "v14", h.(*stubHandler).name)

	h, ok = r.HandlerForEndpoint(4, "gene", 99)
	require.True(t, ok)
	require.Equal(t, "v16", h.(*stubHandler).name)
}

func TestUnknownEndpointMissing(t *testing.T) {
	b := NewBuilder()
	b.RegisterDefault(4, "gene", &stubHandler{name: "v0"})
	r := b.Build()

	_, ok := r.HandlerForEndpoint(4, "nope", 0)
	require.False(t, ok)
}

func TestUnknownKindMissing(t *testing.T) {
	b := NewBuilder()
	r := b.Build()

	require.False(t, r.HasKind(4))
	_, ok := r.HandlerForEndpoint(4, "gene", 0)
	require.False(t, ok)
}

func TestHandlerForKindBootstrapConvention(t *testing.T) {
	b := NewBuilder()
	b.RegisterDefault(0, "", &stubHandler{name: "boot"})
	r := b.Build()

	h, ok := r.HandlerForKind(0)
	require.True(t, ok)
	require.Equal(t, "boot", h.(*stubHandler).name)
}

func TestResponseMerge(t *testing.T) {
	r := NewResponse(5, nil)
	r.Bundles["a"] = struct{}{}

	other := NewResponse(5, nil)
	other.Bundles["b"] = struct{}{}
	other.Eardos["e1"] = struct{}{}

	r.Merge(other)
	require.Contains(t, r.Bundles, "a")
	require.Contains(t, r.Bundles, "b")
	require.Contains(t, r.Eardos, "e1")
}
