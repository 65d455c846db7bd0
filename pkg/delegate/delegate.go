package delegate

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ensembl-io/genoverse-backend/pkg/wire"
)

// Peer is one upstream server a matching sub-command may be forwarded
// to.
type Peer struct {
	Name    string
	BaseURL string
	Timeout time.Duration
}

// DivertedRequest is one sub-command the engine decided to forward,
// carrying its original wire shape (payload still the raw decoded CBOR
// value — the peer decodes it again on its own end).
type DivertedRequest struct {
	ID      uint32
	Kind    uint8
	Payload any
}

// IDPayload is one resolved reply: Payload is already the final
// `[kind, payload]`-encoded bytes ready to splice into the outer
// packet's "responses" array, the same convention registry.Response and
// the packet engine use for local replies.
type IDPayload struct {
	ID      uint32
	Payload []byte
}

// ForwardResult is what one peer call contributes back to the enclosing
// packet: per-id replies (always one per diverted request, preserving
// message ids across the remote hop), any bundle descriptors the
// peer's own replies referenced, and
// any pre-encoded "tracks-packed" fragments to merge as-is.
type ForwardResult struct {
	Responses         []IDPayload
	BundleDescriptors []any
	TracksPacked      [][]byte
}

// Delegator holds the boot-loaded peer table and override rules and
// performs batched HTTP forwarding to the peer owning a diverted
// sub-command.
type Delegator struct {
	peers     map[string]Peer
	overrides *OverrideTable
	client    *http.Client
	logger    *logrus.Logger
}

// New builds a Delegator. overrides may be nil, in which case
// ResolvePeer never diverts anything (a deployment with no remote
// peers configured).
func New(peers []Peer, overrides *OverrideTable, logger *logrus.Logger) *Delegator {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	byName := make(map[string]Peer, len(peers))
	for _, p := range peers {
		byName[p.Name] = p
	}
	return &Delegator{
		peers:     byName,
		overrides: overrides,
		client:    &http.Client{},
		logger:    logger,
	}
}

// ResolvePeer reports which peer, if any, owns prefix.
func (d *Delegator) ResolvePeer(prefix []string) (peer string, ok bool) {
	if d == nil {
		return "", false
	}
	return d.overrides.Resolve(prefix)
}

// Forward sends every sub-command in reqs to peerName in a single HTTP
// POST, regardless of their count, and merges the reply. Any failure —
// unknown peer, timeout, non-2xx status, malformed body — degrades
// every diverted sub-command to a local error reply rather than failing
// the packet.
func (d *Delegator) Forward(ctx context.Context, peerName, priority string, channel []any, version uint32, reqs []DivertedRequest) ForwardResult {
	peer, ok := d.peers[peerName]
	if !ok {
		return errorResult(reqs, fmt.Sprintf("unknown remote peer %q", peerName))
	}

	body, err := buildRequestPacket(channel, version, reqs)
	if err != nil {
		return errorResult(reqs, err.Error())
	}

	timeout := peer.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := peer.BaseURL + "/" + priority
	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return errorResult(reqs, err.Error())
	}
	httpReq.Header.Set("Content-Type", "application/cbor")

	resp, err := d.client.Do(httpReq)
	if err != nil {
		d.logger.WithError(err).WithField("peer", peerName).Warn("delegate: peer request failed")
		return errorResult(reqs, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		d.logger.WithField("peer", peerName).WithField("status", resp.StatusCode).Warn("delegate: peer returned error status")
		return errorResult(reqs, fmt.Sprintf("peer %s returned status %d", peerName, resp.StatusCode))
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errorResult(reqs, err.Error())
	}

	return decodeForwardResponse(respBody, reqs)
}

func buildRequestPacket(channel []any, version uint32, reqs []DivertedRequest) ([]byte, error) {
	requests := make([]any, len(reqs))
	for i, r := range reqs {
		requests[i] = []any{r.ID, uint64(r.Kind), r.Payload}
	}

	return wire.Marshal(map[string]any{
		"channel":  channel,
		"version":  map[string]any{"egs": version},
		"requests": requests,
	})
}

func decodeForwardResponse(data []byte, reqs []DivertedRequest) ForwardResult {
	var raw map[string]any
	if err := wire.Unmarshal(data, &raw); err != nil {
		return errorResult(reqs, "malformed peer response")
	}

	byID := map[uint32][]byte{}
	if list, ok := raw["responses"].([]any); ok {
		for _, item := range list {
			pair, ok := item.([]any)
			if !ok || len(pair) != 2 {
				continue
			}
			id, ok := toUint32(pair[0])
			if !ok {
				continue
			}
			encoded, err := wire.Marshal(pair[1])
			if err != nil {
				continue
			}
			byID[id] = encoded
		}
	}

	out := ForwardResult{}
	for _, req := range reqs {
		if b, ok := byID[req.ID]; ok {
			out.Responses = append(out.Responses, IDPayload{ID: req.ID, Payload: b})
		} else {
			out.Responses = append(out.Responses, errorIDPayload(req.ID, "peer did not answer sub-command"))
		}
	}

	if progs, ok := raw["programs"].([]any); ok {
		out.BundleDescriptors = progs
	}
	if packed, ok := raw["tracks-packed"].([]any); ok {
		for _, item := range packed {
			b, err := wire.Marshal(item)
			if err != nil {
				continue
			}
			out.TracksPacked = append(out.TracksPacked, b)
		}
	}

	return out
}

func errorResult(reqs []DivertedRequest, reason string) ForwardResult {
	out := ForwardResult{Responses: make([]IDPayload, len(reqs))}
	for i, req := range reqs {
		out.Responses[i] = errorIDPayload(req.ID, reason)
	}
	return out
}

func errorIDPayload(id uint32, reason string) IDPayload {
	inner, err := wire.Marshal(reason)
	if err != nil {
		inner, _ = wire.Marshal("remote delegation failed")
	}
	payload, err := wire.EncodeArray(uint64(1), wire.RawFragment(inner))
	if err != nil {
		payload, _ = wire.EncodeArray(uint64(1), inner)
	}
	return IDPayload{ID: id, Payload: payload}
}

func toUint32(v any) (uint32, bool) {
	switch n := v.(type) {
	case uint64:
		return uint32(n), true
	case int64:
		return uint32(n), true
	case int:
		return uint32(n), true
	case float64:
		return uint32(n), true
	default:
		return 0, false
	}
}
