// Package bundles implements the compiled-rendering-bundle inventory
// (used by BootstrapHandler/ProgramHandler) and its mtime reload
// discipline: the monitor records an mtime per file; a request that
// observes a changed mtime atomically swaps the in-memory blob before
// serving, and two concurrent requests detecting the same change
// perform at-most-one reload, guarded by a per-bundle mutex.
package bundles

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"
)

// Bundle is a loaded, immutable-until-reload compiled rendering program
// plus its name-mapping table.
type Bundle struct {
	Name     string
	Program  []byte
	Contents map[string]string
}

// bundleState is the mutable per-bundle cell guarded by its own mutex so
// a reload of one bundle never blocks lookups of another.
type bundleState struct {
	mu      sync.Mutex
	path    string
	modTime time.Time
	data    []byte
}

// Inventory is the boot-loaded program/bundle registry: which channel
// names map to which bundle, the boot program per protocol version, and
// the stick-authority program triple if this deployment is an authority.
type Inventory struct {
	programDir string
	logger     *logrus.Logger

	mu            sync.RWMutex
	programMap    map[string]bundleRef // channel name -> (bundle, name in bundle)
	bundleContent map[string]map[string]string
	bundles       map[string]*bundleState

	bootProgram            map[uint32]string
	stickAuthorityStartup  string
	stickAuthorityLookup   string
	stickAuthorityJump     string
	isStickAuthority       bool

	watcher *fsnotify.Watcher
}

type bundleRef struct {
	bundle      string
	nameInBundle string
}

// config mirrors the begs.toml inventory shape.
type config struct {
	Core struct {
		Boot map[string]string `toml:"boot"`
	} `toml:"core"`
	StickAuthority *struct {
		Startup string `toml:"startup"`
		Lookup  string `toml:"lookup"`
		Jump    string `toml:"jump"`
	} `toml:"stick-authority"`
	Begs map[string]map[string]string `toml:"begs"`
}

// Load reads the inventory TOML at configPath and starts watching
// programDir (where "<bundle>.begs" files live) for mtime changes.
func Load(configPath, programDir string, logger *logrus.Logger) (*Inventory, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	raw, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("bundles: reading %s: %w", configPath, err)
	}

	var cfg config
	if err := toml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("bundles: parsing %s: %w", configPath, err)
	}

	inv := &Inventory{
		programDir:    programDir,
		logger:        logger,
		programMap:    map[string]bundleRef{},
		bundleContent: map[string]map[string]string{},
		bundles:       map[string]*bundleState{},
		bootProgram:   map[uint32]string{},
	}

	for version, name := range cfg.Core.Boot {
		v, err := parseVersion(version)
		if err != nil {
			return nil, err
		}
		inv.bootProgram[v] = name
	}

	if cfg.StickAuthority != nil {
		inv.isStickAuthority = true
		inv.stickAuthorityStartup = cfg.StickAuthority.Startup
		inv.stickAuthorityLookup = cfg.StickAuthority.Lookup
		inv.stickAuthorityJump = cfg.StickAuthority.Jump
	}

	for bundleName, mapping := range cfg.Begs {
		inv.bundleContent[bundleName] = map[string]string{}
		inv.bundles[bundleName] = &bundleState{path: filepath.Join(programDir, bundleName+".begs")}
		for nameInBundle, nameInChannel := range mapping {
			inv.programMap[nameInChannel] = bundleRef{bundle: bundleName, nameInBundle: nameInBundle}
			inv.bundleContent[bundleName][nameInChannel] = nameInBundle
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		if watchErr := watcher.Add(programDir); watchErr == nil {
			inv.watcher = watcher
			go inv.watchLoop()
		} else {
			watcher.Close()
		}
	}

	return inv, nil
}

func parseVersion(s string) (uint32, error) {
	var v uint32
	if _, err := fmt.Sscanf(s, "%d", &v); err != nil {
		return 0, fmt.Errorf("bundles: bad version key %q: %w", s, err)
	}
	return v, nil
}

func (inv *Inventory) watchLoop() {
	for event := range inv.watcher.Events {
		if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
			continue
		}
		inv.logger.WithField("file", event.Name).Debug("bundles: mtime change observed")
	}
}

// FindBundle resolves a channel-visible program name to its owning
// bundle name.
func (inv *Inventory) FindBundle(channelName string) (string, bool) {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	ref, ok := inv.programMap[channelName]
	if !ok {
		return "", false
	}
	return ref.bundle, true
}

// AllBundles returns every known bundle name.
func (inv *Inventory) AllBundles() []string {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	names := make([]string, 0, len(inv.bundles))
	for name := range inv.bundles {
		names = append(names, name)
	}
	return names
}

// BootProgram returns the boot bundle name declared for a protocol
// version.
func (inv *Inventory) BootProgram(version uint32) (string, bool) {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	name, ok := inv.bootProgram[version]
	return name, ok
}

// StickAuthority returns the three authority program names if this
// deployment is configured as a stick authority.
func (inv *Inventory) StickAuthority() (startup, lookup, jump string, ok bool) {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	return inv.stickAuthorityStartup, inv.stickAuthorityLookup, inv.stickAuthorityJump, inv.isStickAuthority
}

// Load returns the named bundle, reloading its program bytes from disk
// if the file's mtime has changed since the last load. Concurrent
// callers observing the same stale mtime perform at most one reload.
func (inv *Inventory) Load(name string) (Bundle, error) {
	inv.mu.RLock()
	state, ok := inv.bundles[name]
	contents := inv.bundleContent[name]
	inv.mu.RUnlock()
	if !ok {
		return Bundle{}, fmt.Errorf("bundles: unknown bundle %q", name)
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	info, err := os.Stat(state.path)
	if err != nil {
		return Bundle{}, fmt.Errorf("bundles: stat %s: %w", state.path, err)
	}

	if state.data == nil || info.ModTime().After(state.modTime) {
		data, err := os.ReadFile(state.path)
		if err != nil {
			return Bundle{}, fmt.Errorf("bundles: reading %s: %w", state.path, err)
		}
		state.data = data
		state.modTime = info.ModTime()
	}

	return Bundle{Name: name, Program: state.data, Contents: contents}, nil
}

// Close stops the inventory's filesystem watcher.
func (inv *Inventory) Close() error {
	if inv.watcher != nil {
		return inv.watcher.Close()
	}
	return nil
}
