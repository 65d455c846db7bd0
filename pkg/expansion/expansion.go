// Package expansion implements the callback side of track expansions
// (ExpansionHandler, kind=7): a track registry entry can name a "run"
// callback instead of a fixed set of tracks, and the client invokes it
// with a step parameter to synthesize tracks at request time (e.g. "give
// me one variant track per population at this zoom level"), expressed
// here as a name-to-callable Go function registry.
package expansion

import (
	"fmt"
	"sync"

	"github.com/ensembl-io/genoverse-backend/pkg/tracks"
)

// Func synthesizes tracks for an expansion invocation: name is the
// expansion's declared name, channel is its declared channel prefix, and
// step is the client-supplied parameter (e.g. a track id), always a
// string per define_variation_track(track_id: str) in the original.
type Func func(name string, channel []string, step string) (*tracks.Tracks, error)

// Registry maps expansion "run" names (as declared in a track TOML's
// [expansion.*].run field) to the callback that synthesizes tracks for
// it.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{funcs: map[string]Func{}}
}

// Register binds a run name to its synthesis callback.
func (r *Registry) Register(runName string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[runName] = fn
}

// Run invokes the callback declared by ex.Run with the given step,
// returning an error if no callback is registered under that name.
func Run(r *Registry, ex *tracks.Expansion, step string) (*tracks.Tracks, error) {
	r.mu.RLock()
	fn, ok := r.funcs[ex.Run]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("expansion: no callback registered for run %q", ex.Run)
	}
	return fn(ex.Name, ex.Channel, step)
}
