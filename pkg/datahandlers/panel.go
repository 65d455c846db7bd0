// Package datahandlers implements the DataRouter: the fingerprint →
// cache → handler → zlib(cbor) → cache-store pipeline for data-endpoint
// (kind=4) sub-commands, the DataAccessor façade handlers receive, and
// the concrete per-endpoint handlers.
package datahandlers

import (
	"fmt"

	"github.com/ensembl-io/genoverse-backend/pkg/wire"
)

// Panel is the half-open genomic region unit of caching: start =
// index·2^scale, end = (index+1)·2^scale.
type Panel struct {
	Stick string
	Scale int64
	Index int64
}

// Start returns the panel's inclusive start coordinate.
func (p Panel) Start() int64 { return p.Index << uint(p.Scale) }

// End returns the panel's exclusive end coordinate.
func (p Panel) End() int64 { return (p.Index + 1) << uint(p.Scale) }

// DecodePanel decodes the wire triple (stick_id, scale, index) and
// validates the scale invariant (scale ∈ [0, 63)).
func DecodePanel(raw any) (Panel, error) {
	items, ok := raw.([]any)
	if !ok || len(items) != 3 {
		return Panel{}, fmt.Errorf("datahandlers: malformed panel")
	}
	stick, ok := items[0].(string)
	if !ok {
		return Panel{}, fmt.Errorf("datahandlers: panel stick must be a string")
	}
	scale, ok := toInt64(items[1])
	if !ok || scale < 0 || scale >= 63 {
		return Panel{}, fmt.Errorf("datahandlers: panel scale out of range")
	}
	index, ok := toInt64(items[2])
	if !ok {
		return Panel{}, fmt.Errorf("datahandlers: panel index must be an integer")
	}
	return Panel{Stick: stick, Scale: scale, Index: index}, nil
}

// Bytes returns the canonical encoding of the panel used in the
// fingerprint's panel_bytes component.
func (p Panel) Bytes() ([]byte, error) {
	return wire.MarshalCanonical([]any{p.Stick, p.Scale, p.Index})
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

// DecodeScope decodes the scope mapping (string -> list-of-strings).
func DecodeScope(raw any) (map[string][]string, error) {
	if raw == nil {
		return map[string][]string{}, nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("datahandlers: malformed scope")
	}
	out := make(map[string][]string, len(m))
	for k, v := range m {
		items, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("datahandlers: scope value for %q must be a list", k)
		}
		values := make([]string, len(items))
		for i, it := range items {
			s, ok := it.(string)
			if !ok {
				return nil, fmt.Errorf("datahandlers: scope value for %q must be strings", k)
			}
			values[i] = s
		}
		out[k] = values
	}
	return out, nil
}

// ScopeValue returns the first value for key, matching the original's
// get_scope single-value convention.
func ScopeValue(scope map[string][]string, key string) (string, bool) {
	values, ok := scope[key]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}
