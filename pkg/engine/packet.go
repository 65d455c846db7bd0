package engine

import (
	"fmt"

	"github.com/ensembl-io/genoverse-backend/pkg/wire"
)

// SubRequest is one decoded `(message_id, kind, payload)` triple.
type SubRequest struct {
	ID      uint32
	Kind    uint8
	Payload any
}

// Packet is a fully decoded inbound request.
type Packet struct {
	Channel  []any
	Version  uint32
	Priority string
	Requests []SubRequest
}

// DecodePacket decodes the inbound wire bytes into a Packet. Priority
// defaults to "hi" when the packet carries no explicit priority flag
// (the suffix of the URL is /hi or /lo depending on the packet
// priority).
func DecodePacket(data []byte) (*Packet, error) {
	var raw map[string]any
	if err := wire.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("engine: decoding packet: %w", err)
	}

	channel, _ := raw["channel"].([]any)

	version := uint32(0)
	if vmap, ok := raw["version"].(map[string]any); ok {
		if egs, ok := toUint32(vmap["egs"]); ok {
			version = egs
		}
	}

	priority := "hi"
	if p, ok := raw["priority"].(string); ok && p != "" {
		priority = p
	}

	items, _ := raw["requests"].([]any)
	requests := make([]SubRequest, 0, len(items))
	for _, item := range items {
		triple, ok := item.([]any)
		if !ok || len(triple) != 3 {
			continue
		}
		id, ok := toUint32(triple[0])
		if !ok {
			continue
		}
		kind, ok := toUint32(triple[1])
		if !ok {
			continue
		}
		requests = append(requests, SubRequest{ID: id, Kind: uint8(kind), Payload: triple[2]})
	}

	return &Packet{Channel: channel, Version: version, Priority: priority, Requests: requests}, nil
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

// idReply is one resolved `(message_id, payload)` pair, payload already
// the final wire bytes for that sub-command's reply.
type idReply struct {
	ID      uint32
	Payload []byte
}

// EncodeResponse assembles the outbound packet: "responses" (array of
// `[id, payload]`, payload bytes spliced in as already-encoded CBOR),
// "programs" (bundle descriptors) and, when present, "tracks-packed".
func EncodeResponse(replies []idReply, programs []any, tracksPacked [][]byte) ([]byte, error) {
	responseElems := make([]any, len(replies))
	for i, r := range replies {
		pair, err := wire.EncodeArray(uint64(r.ID), wire.RawFragment(r.Payload))
		if err != nil {
			return nil, fmt.Errorf("engine: encoding reply %d: %w", r.ID, err)
		}
		responseElems[i] = wire.RawFragment(pair)
	}
	responsesArray, err := wire.EncodeArray(responseElems...)
	if err != nil {
		return nil, fmt.Errorf("engine: encoding responses array: %w", err)
	}

	if programs == nil {
		programs = []any{}
	}

	pairs := []wire.KV{
		{Key: "responses", Value: wire.RawFragment(responsesArray)},
		{Key: "programs", Value: programs},
	}

	if len(tracksPacked) > 0 {
		packed := make([]any, len(tracksPacked))
		for i, frag := range tracksPacked {
			packed[i] = wire.RawFragment(frag)
		}
		tracksArray, err := wire.EncodeArray(packed...)
		if err != nil {
			return nil, fmt.Errorf("engine: encoding tracks-packed array: %w", err)
		}
		pairs = append(pairs, wire.KV{Key: "tracks-packed", Value: wire.RawFragment(tracksArray)})
	}

	return wire.EncodeMap(pairs...)
}
