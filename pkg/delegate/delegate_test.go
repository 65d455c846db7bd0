package delegate

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ensembl-io/genoverse-backend/pkg/wire"
)

func TestForwardMergesPeerResponsesByID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqBytes, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var req map[string]any
		require.NoError(t, wire.Unmarshal(reqBytes, &req))

		body, err := wire.Marshal(map[string]any{
			"responses": []any{
				[]any{uint64(7), []any{uint64(2), "ok-seven"}},
				[]any{uint64(9), []any{uint64(2), "ok-nine"}},
			},
		})
		require.NoError(t, err)
		w.Write(body)
	}))
	defer srv.Close()

	d := New([]Peer{{Name: "peer-a", BaseURL: srv.URL}}, nil, nil)

	result := d.Forward(context.Background(), "peer-a", "interactive", nil, 16, []DivertedRequest{
		{ID: 7, Kind: 2, Payload: "req-seven"},
		{ID: 9, Kind: 2, Payload: "req-nine"},
	})

	require.Len(t, result.Responses, 2)
	require.Equal(t, uint32(7), result.Responses[0].ID)
	require.Equal(t, uint32(9), result.Responses[1].ID)
}

func TestForwardFillsGapWithErrorReplyWhenPeerOmitsID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := wire.Marshal(map[string]any{
			"responses": []any{
				[]any{uint64(7), []any{uint64(2), "ok-seven"}},
			},
		})
		require.NoError(t, err)
		w.Write(body)
	}))
	defer srv.Close()

	d := New([]Peer{{Name: "peer-a", BaseURL: srv.URL}}, nil, nil)

	result := d.Forward(context.Background(), "peer-a", "interactive", nil, 16, []DivertedRequest{
		{ID: 7, Kind: 2, Payload: "req-seven"},
		{ID: 9, Kind: 2, Payload: "req-nine"},
	})

	require.Len(t, result.Responses, 2)

	var decoded []any
	require.NoError(t, wire.Unmarshal(result.Responses[1].Payload, &decoded))
	require.Equal(t, uint64(1), decoded[0])
}

func TestForwardDegradesAllToErrorOnNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := New([]Peer{{Name: "peer-a", BaseURL: srv.URL}}, nil, nil)

	result := d.Forward(context.Background(), "peer-a", "interactive", nil, 16, []DivertedRequest{
		{ID: 1, Kind: 2, Payload: "a"},
		{ID: 2, Kind: 2, Payload: "b"},
	})

	require.Len(t, result.Responses, 2)
	for _, r := range result.Responses {
		var decoded []any
		require.NoError(t, wire.Unmarshal(r.Payload, &decoded))
		require.Equal(t, uint64(1), decoded[0])
	}
}

func TestForwardReturnsErrorsForUnknownPeer(t *testing.T) {
	d := New(nil, nil, nil)

	result := d.Forward(context.Background(), "ghost", "interactive", nil, 16, []DivertedRequest{
		{ID: 3, Kind: 2, Payload: "x"},
	})

	require.Len(t, result.Responses, 1)
	var decoded []any
	require.NoError(t, wire.Unmarshal(result.Responses[0].Payload, &decoded))
	require.Equal(t, uint64(1), decoded[0])
}
