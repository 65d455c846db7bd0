// Package registry implements the HandlerRegistry: a version-aware map
// from sub-command kind to Handler, plus the per-endpoint-name,
// per-version handler selection used by the data router (selecting a
// handler per endpoint per version).
//
// Both tables are precomputed into a dense lookup structure once at
// build time rather than walking a list per call, generalized here to
// the two-dimensional (version, kind|endpoint) case.
package registry

import (
	"github.com/ensembl-io/genoverse-backend/pkg/tracks"
	"github.com/ensembl-io/genoverse-backend/pkg/wire"
)

// Response is a sub-command's result: a tagged payload plus any bundles,
// tracks, or opaque referenced identifiers ("eardos") it contributed to
// the enclosing packet reply.
type Response struct {
	Kind    uint8
	Payload []byte
	Bundles map[string]struct{}
	Tracks  *tracks.Tracks
	Eardos  map[string]struct{}
}

// NewResponse builds a Response with its collection fields initialized.
func NewResponse(kind uint8, payload []byte) Response {
	return Response{
		Kind:    kind,
		Payload: payload,
		Bundles: map[string]struct{}{},
		Tracks:  tracks.New(),
		Eardos:  map[string]struct{}{},
	}
}

// ErrorResponse builds the well-formed error envelope used throughout
// the sub-command handlers: kind=1 carrying a human-readable reason.
func ErrorResponse(reason string) Response {
	payload, _ := wire.Marshal(reason)
	return NewResponse(1, payload)
}

// Merge folds other's bundles, tracks and eardos into r. Payload/Kind are
// left untouched — callers append responses to the outer reply list
// separately.
func (r *Response) Merge(other Response) {
	for b := range other.Bundles {
		r.Bundles[b] = struct{}{}
	}
	if other.Tracks != nil {
		r.Tracks.Merge(other.Tracks)
	}
	for e := range other.Eardos {
		r.Eardos[e] = struct{}{}
	}
}

// Handler is implemented by every sub-command handler (bundle and data
// handlers alike).
type Handler interface {
	// Process executes the sub-command and returns its Response.
	Process(ctx ProcessContext) (Response, error)
	// RemotePrefix reports the override-table lookup key for this
	// sub-command's payload, or ok=false if it is never delegated.
	RemotePrefix(payload any) (prefix []string, ok bool)
}

// ProcessContext carries everything a Handler needs; concrete fields
// live in the engine/datahandlers packages to avoid an import cycle —
// this package only needs the interface shape.
type ProcessContext interface{}

// entry is one registered (endpointName, handler, minVersion) tuple.
type entry struct {
	name       string
	handler    Handler
	minVersion uint32
}

// Registry is a HandlerRegistry keyed by sub-command kind. Each kind's
// handler set is a further per-endpoint-name, per-version table
// precomputed at Build time for every version 0..max(min_version), so
// lookup at request time is O(1).
type Registry struct {
	byKind map[uint8]*kindTable
}

// kindTable holds one sub-command kind's registered handlers, resolved
// per protocol version.
type kindTable struct {
	entries  map[string][]entry // endpoint name -> entries sorted by minVersion asc
	resolved []map[string]Handler
}

// Builder accumulates registrations before Build() freezes them into an
// O(1)-lookup Registry.
type Builder struct {
	byKind map[uint8][]entry
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{byKind: map[uint8][]entry{}}
}

// Register adds a handler for endpointName under kind, active from
// minVersion onward (0 if omitted via RegisterDefault).
func (b *Builder) Register(kind uint8, endpointName string, handler Handler, minVersion uint32) {
	b.byKind[kind] = append(b.byKind[kind], entry{name: endpointName, handler: handler, minVersion: minVersion})
}

// RegisterDefault registers a handler active from version 0.
func (b *Builder) RegisterDefault(kind uint8, endpointName string, handler Handler) {
	b.Register(kind, endpointName, handler, 0)
}

// Build freezes the builder into a Registry, precomputing the
// per-version handler set for every kind.
func (b *Builder) Build() *Registry {
	r := &Registry{byKind: map[uint8]*kindTable{}}

	for kind, entries := range b.byKind {
		byName := map[string][]entry{}
		maxVersion := uint32(0)
		for _, e := range entries {
			byName[e.name] = append(byName[e.name], e)
			if e.minVersion > maxVersion {
				maxVersion = e.minVersion
			}
		}
		for name := range byName {
			sortEntriesByMinVersion(byName[name])
		}

		resolved := make([]map[string]Handler, maxVersion+1)
		for v := uint32(0); v <= maxVersion; v++ {
			set := map[string]Handler{}
			for name, es := range byName {
				var best *entry
				for i := range es {
					if es[i].minVersion <= v {
						best = &es[i]
					}
				}
				if best != nil {
					set[name] = best.handler
				}
			}
			resolved[v] = set
		}

		r.byKind[kind] = &kindTable{entries: byName, resolved: resolved}
	}

	return r
}

func sortEntriesByMinVersion(es []entry) {
	for i := 1; i < len(es); i++ {
		j := i
		for j > 0 && es[j-1].minVersion > es[j].minVersion {
			es[j-1], es[j] = es[j], es[j-1]
			j--
		}
	}
}

// HandlerForKind returns the single handler registered for a bundle-style
// kind (where endpoint names are not used, e.g. kind=0 boot). By
// convention such kinds register under the endpoint name "".
func (r *Registry) HandlerForKind(kind uint8) (Handler, bool) {
	return r.HandlerForEndpoint(kind, "", ^uint32(0))
}

// HandlerForEndpoint resolves the handler registered for endpointName
// under kind, valid for protocol version.
func (r *Registry) HandlerForEndpoint(kind uint8, endpointName string, version uint32) (Handler, bool) {
	table, ok := r.byKind[kind]
	if !ok {
		return nil, false
	}
	if len(table.resolved) == 0 {
		return nil, false
	}
	idx := version
	if idx >= uint32(len(table.resolved)) {
		idx = uint32(len(table.resolved) - 1)
	}
	h, ok := table.resolved[idx][endpointName]
	return h, ok
}

// HasKind reports whether any handler is registered for kind at all,
// regardless of version.
func (r *Registry) HasKind(kind uint8) bool {
	_, ok := r.byKind[kind]
	return ok
}
