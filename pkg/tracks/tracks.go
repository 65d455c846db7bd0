// Package tracks implements the declarative track/program/expansion
// registry: TOML-sourced track declarations (with an "include" snippet
// mechanism and a separate include_files directive for splitting config
// across files), merged last-writer-wins by name, and flattened into the
// six deduplicated wire tables the client expects. Each TOML document is
// decoded into a generic map and walked by hand; no mapstructure
// decoding is involved.
package tracks

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/ensembl-io/genoverse-backend/pkg/dataalg"
	"github.com/ensembl-io/genoverse-backend/pkg/wire"
)

// Track is a single renderable-track declaration: a program triple, the
// scale range it applies over, the switch paths ("triggers") that turn
// it on, free-form settings and values, and a tag string.
type Track struct {
	Name           string
	ProgramName    string
	ProgramSet     string
	ProgramVersion int64
	Scales         [3]int64
	Triggers       [][]string
	Tags           string
	Values         []namedValue
	Settings       []namedSetting
}

type namedValue struct {
	Name  string
	Value any
}

type namedSetting struct {
	Name    string
	Setting []string
}

// Expansion is a callback-based track factory: the client supplies a
// trigger prefix and a step parameter, and the named callback
// synthesizes tracks at request time (ExpansionHandler, kind=7).
type Expansion struct {
	Name     string
	Channel  []string
	Triggers [][]string
	Run      string
}

// Tracks is the mutable in-memory registry assembled at boot from one or
// more TOML sources, and merged at request time with remote-supplied
// pre-encoded fragments.
type Tracks struct {
	mu         sync.RWMutex
	tracks     map[string]*Track
	expansions map[string]*Expansion
	includes   map[string]any
	cooked     []wire.RawFragment
}

// New returns an empty registry.
func New() *Tracks {
	return &Tracks{
		tracks:     map[string]*Track{},
		expansions: map[string]*Expansion{},
		includes:   map[string]any{},
	}
}

// LoadFile parses a TOML track-declaration file, following its
// include_files directive relative to the file's own directory. Cyclic
// include_files are rejected.
func (t *Tracks) LoadFile(path string) error {
	return t.ingestFile(path, map[string]bool{})
}

func (t *Tracks) ingestFile(path string, seen map[string]bool) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if seen[abs] {
		return fmt.Errorf("tracks: loop in include_files at %s", path)
	}
	seen[abs] = true

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("tracks: reading %s: %w", path, err)
	}

	var data map[string]any
	if err := toml.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("tracks: parsing %s: %w", path, err)
	}

	if includeFiles, ok := data["include_files"].([]any); ok {
		dir := filepath.Dir(path)
		for _, name := range includeFiles {
			n, ok := name.(string)
			if !ok {
				continue
			}
			if err := t.ingestFile(filepath.Join(dir, n), seen); err != nil {
				return err
			}
		}
	}

	return t.Ingest(data)
}

// Ingest applies one decoded TOML document's "include", "track" and
// "expansion" tables to the registry.
func (t *Tracks) Ingest(data map[string]any) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if inc, ok := data["include"].(map[string]any); ok {
		for name, value := range inc {
			t.includes[name] = value
		}
	}

	if trackTables, ok := data["track"].(map[string]any); ok {
		for name, raw := range trackTables {
			trackData, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			tr := &Track{Name: name, ProgramName: name}
			if err := tr.ingest(trackData, t.includes); err != nil {
				return fmt.Errorf("tracks: track %q: %w", name, err)
			}
			t.tracks[name] = tr
		}
	}

	if expansionTables, ok := data["expansion"].(map[string]any); ok {
		for name, raw := range expansionTables {
			expData, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			ex := &Expansion{Name: name}
			ex.ingest(expData)
			t.expansions[name] = ex
		}
	}

	return nil
}

func (tr *Track) ingest(data map[string]any, includes map[string]any) error {
	if names, ok := data["include"].([]any); ok {
		for _, n := range names {
			name, ok := n.(string)
			if !ok {
				continue
			}
			incData, ok := includes[name].(map[string]any)
			if !ok {
				return fmt.Errorf("unknown include %q", name)
			}
			if err := tr.ingest(incData, includes); err != nil {
				return err
			}
		}
	}
	if general, ok := data["general"].(map[string]any); ok {
		if err := tr.ingest(general, includes); err != nil {
			return err
		}
	}
	if v, ok := data["program_name"].(string); ok {
		tr.ProgramName = v
	}
	if v, ok := data["program_set"].(string); ok {
		tr.ProgramSet = v
	}
	if v, ok := toInt64(data["program_version"]); ok {
		tr.ProgramVersion = v
	}
	if scales, ok := data["scales"].([]any); ok && len(scales) == 3 {
		for i, s := range scales {
			if v, ok := toInt64(s); ok {
				tr.Scales[i] = v
			}
		}
	}
	if triggers, ok := data["triggers"].([]any); ok {
		for _, trig := range triggers {
			if path, ok := toStringSlice(trig); ok {
				tr.Triggers = append(tr.Triggers, path)
			}
		}
	}
	if v, ok := data["tags"].(string); ok {
		tr.Tags = v
	}
	if values, ok := data["values"].(map[string]any); ok {
		names := make([]string, 0, len(values))
		for name := range values {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			tr.Values = append(tr.Values, namedValue{Name: name, Value: values[name]})
		}
	}
	if settings, ok := data["settings"].(map[string]any); ok {
		names := make([]string, 0, len(settings))
		for name := range settings {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if path, ok := toStringSlice(settings[name]); ok {
				tr.Settings = append(tr.Settings, namedSetting{Name: name, Setting: path})
			}
		}
	}
	return nil
}

func (ex *Expansion) ingest(data map[string]any) {
	if v, ok := data["name"].(string); ok {
		ex.Name = v
	}
	if channel, ok := toStringSlice(data["channel"]); ok {
		ex.Channel = channel
	}
	if triggers, ok := data["triggers"].([]any); ok {
		for _, trig := range triggers {
			if path, ok := toStringSlice(trig); ok {
				ex.Triggers = append(ex.Triggers, path)
			}
		}
	}
	if v, ok := data["run"].(string); ok {
		ex.Run = v
	}
}

// Merge folds other's tracks and expansions into t; entries in other
// take priority over same-named entries already present, so multiple
// sources of tracks merge last-writer-wins by name.
func (t *Tracks) Merge(other *Tracks) {
	if other == nil {
		return
	}
	other.mu.RLock()
	defer other.mu.RUnlock()
	t.mu.Lock()
	defer t.mu.Unlock()

	for name, tr := range other.tracks {
		t.tracks[name] = tr
	}
	for name, ex := range other.expansions {
		t.expansions[name] = ex
	}
}

// AddCooked appends already-encoded "tracks-packed" fragments received
// from a remote delegate, to be spliced verbatim into the wire dump.
func (t *Tracks) AddCooked(fragments ...wire.RawFragment) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cooked = append(t.cooked, fragments...)
}

// GetExpansion looks up a declared expansion by name.
func (t *Tracks) GetExpansion(name string) (*Expansion, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ex, ok := t.expansions[name]
	return ex, ok
}

// Empty reports whether the registry has neither tracks nor pending
// cooked fragments (nothing worth dumping).
func (t *Tracks) Empty() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.tracks) == 0 && len(t.cooked) == 0
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

func toStringSlice(v any) ([]string, bool) {
	items, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		s, ok := it.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

func switchKey(path []string) string {
	return strings.Join(path, "\x00")
}
