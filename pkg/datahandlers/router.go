package datahandlers

import (
	"bytes"
	"context"
	"time"

	"github.com/klauspost/compress/zlib"
	"github.com/mitchellh/copystructure"

	"github.com/ensembl-io/genoverse-backend/pkg/fingerprint"
	"github.com/ensembl-io/genoverse-backend/pkg/metrics"
	"github.com/ensembl-io/genoverse-backend/pkg/registry"
	"github.com/ensembl-io/genoverse-backend/pkg/wire"
)

// DataError is the handler-raised failure the router turns into a
// well-formed tagged error reply rather than letting it propagate: the
// handler itself could not produce data, so the router turns that into
// an error reply instead of failing the whole packet.
type DataError struct {
	Reason string
}

func (e *DataError) Error() string { return e.Reason }

// EndpointHandler produces the tagged column data for one data endpoint.
// Returning a DataError is the sanctioned failure path; any other error
// is treated the same way by the router (both become a kind=5 reply
// whose payload is an {"error": reason} map).
type EndpointHandler interface {
	ProcessData(ctx context.Context, da *Accessor, panel Panel, scope map[string][]string, accept string) (data map[string]any, invariant bool, err error)
}

// Payload is the kind=4 request body: (channel, name, panel, scope,
// accept), with scope defaulted when the 3-element legacy form is used.
type Payload struct {
	Channel []any
	Name    string
	Panel   Panel
	Scope   map[string][]string
	Accept  string
}

// DecodePayload decodes a kind=4 sub-command payload.
func DecodePayload(raw any) (Payload, error) {
	items, ok := raw.([]any)
	if !ok || (len(items) != 3 && len(items) != 4 && len(items) != 5) {
		return Payload{}, &DataError{Reason: "malformed data request"}
	}

	var channel any = nil
	offset := 0
	if len(items) >= 4 {
		if c, ok := items[0].([]any); ok {
			channel = c
		}
		offset = 1
	}

	name, ok := items[offset].(string)
	if !ok {
		return Payload{}, &DataError{Reason: "malformed data request name"}
	}
	panel, err := DecodePanel(items[offset+1])
	if err != nil {
		return Payload{}, err
	}

	scope := map[string][]string{}
	accept := ""
	if offset+2 < len(items) {
		scope, err = DecodeScope(items[offset+2])
		if err != nil {
			return Payload{}, err
		}
	}
	if offset+3 < len(items) {
		accept, _ = items[offset+3].(string)
	}

	ch, _ := channel.([]any)
	return Payload{Channel: ch, Name: name, Panel: panel, Scope: scope, Accept: accept}, nil
}

// Router is the DataRouter.
type Router struct {
	handlers map[string]EndpointHandler
	prefix   string
}

// NewRouter builds a router over the given endpoint-name -> handler map.
func NewRouter(handlers map[string]EndpointHandler, cachePrefix string) *Router {
	return &Router{handlers: handlers, prefix: cachePrefix}
}

// RemotePrefix reports the override-table key for a data request:
// ["data", name, stick]. (The packet engine's kind=4 adapter builds the
// same key itself from the raw payload.)
func (r *Router) RemotePrefix(payload Payload) []string {
	return []string{"data", payload.Name, payload.Panel.Stick}
}

// Process runs the fingerprint -> cache -> handler -> encode -> cache
// pipeline, resolving the endpoint handler from this router's static
// boot-time map. The packet engine does not take this path (it always
// resolves a per-version handler and calls ProcessWithHandler); this
// package's own tests do.
func (r *Router) Process(ctx context.Context, da *Accessor, bump string, channel []any, payload Payload, m *metrics.ResponseMetrics) (registry.Response, error) {
	handler, ok := r.handlers[payload.Name]
	if !ok {
		return registry.ErrorResponse("unknown data endpoint " + payload.Name), nil
	}
	return r.ProcessWithHandler(ctx, da, bump, channel, payload, m, handler)
}

// ProcessWithHandler runs the same fingerprint -> cache -> handler ->
// encode -> cache pipeline but against an explicitly supplied handler
// rather than this router's static map. The packet engine uses this to
// implement selection of a handler per endpoint per version: it
// resolves the version-appropriate EndpointHandler itself
// (via a registry.VersionedTable) and hands it in here, so the
// fingerprint/cache/encode machinery stays in one place regardless of
// which historical handler variant actually produces the data.
func (r *Router) ProcessWithHandler(ctx context.Context, da *Accessor, bump string, channel []any, payload Payload, m *metrics.ResponseMetrics, handler EndpointHandler) (registry.Response, error) {
	panelBytes, err := payload.Panel.Bytes()
	if err != nil {
		return registry.Response{}, err
	}

	fp, err := fingerprint.Compute(fingerprint.Request{
		Prefix:     r.prefix,
		Bump:       bump,
		VersionEgs: da.Version,
		Channel:    channel,
		Endpoint:   payload.Name,
		PanelBytes: panelBytes,
		Scope:      payload.Scope,
		Accept:     payload.Accept,
	})
	if err != nil {
		return registry.Response{}, err
	}

	if cached, ok := da.Cache.GetData(ctx, da.Version, fp); ok {
		m.RecordHit(len(cached))
		return registry.Response{Kind: 5, Payload: cached, Bundles: map[string]struct{}{}, Eardos: map[string]struct{}{}}, nil
	}
	m.RecordMiss()

	if handler == nil {
		return registry.ErrorResponse("unknown data endpoint " + payload.Name), nil
	}

	scope := payload.Scope
	if cloned, cloneErr := copystructure.Copy(scope); cloneErr == nil {
		if typed, ok := cloned.(map[string][]string); ok {
			scope = typed
		}
	}

	start := time.Now()
	data, invariant, procErr := handler.ProcessData(ctx, da, payload.Panel, scope, payload.Accept)

	var encodedPayload []byte
	if procErr != nil {
		reason := procErr.Error()
		encodedPayload, err = wire.Marshal(map[string]any{"error": reason})
		if err != nil {
			return registry.Response{}, err
		}
	} else {
		dataBytes, err := encodeData(data, payload.Accept)
		if err != nil {
			return registry.Response{}, err
		}
		encodedPayload, err = wire.Marshal(map[string]any{"data": dataBytes, "__invariant": invariant})
		if err != nil {
			return registry.Response{}, err
		}
	}

	m.Record(payload.Name, payload.Panel.Scale, time.Since(start), len(encodedPayload))

	encoded, err := wire.Marshal([]any{uint64(5), encodedPayload})
	if err != nil {
		return registry.Response{}, err
	}

	da.Cache.StoreData(ctx, da.Version, fp, encoded)

	return registry.Response{Kind: 5, Payload: encoded, Bundles: map[string]struct{}{}, Eardos: map[string]struct{}{}}, nil
}

// encodeData applies the accept-dependent encode step: "" means
// CBOR-encoded + zlib-compressed, and "uncompressed" means CBOR only.
// "dump" is handled exactly like "uncompressed" (CBOR bytes, no zlib);
// this router has no separate representation that skips the bytes step.
func encodeData(data map[string]any, accept string) ([]byte, error) {
	cbor, err := wire.Marshal(data)
	if err != nil {
		return nil, err
	}
	if accept == "uncompressed" || accept == "dump" {
		return cbor, nil
	}

	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(cbor); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
