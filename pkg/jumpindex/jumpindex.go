// Package jumpindex implements the on-disk collaborator behind
// bundlehandlers.JumpIndex: a content-addressed lookup file per genome,
// re-read whenever its mtime changes. The monitor records an mtime per
// file; a lookup that observes a changed mtime atomically swaps the
// in-memory table before serving, the same reload discipline
// pkg/bundles uses, applied here to a flat
// `focus:<kind>:<genome>:<id>\tstick\tleft\tright` TSV file per genome
// instead of a compiled rendering bundle.
package jumpindex

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

type entry struct {
	stick       string
	left, right int64
}

type fileState struct {
	mu      sync.Mutex
	path    string
	modTime time.Time
	entries map[string]entry
}

// Index is a bundlehandlers.JumpIndex backed by one TSV file per genome
// under dir, named "<genome>.jump". Files are loaded lazily on first
// lookup and re-read whenever fsnotify reports a write to dir.
type Index struct {
	dir    string
	logger *logrus.Logger

	mu     sync.Mutex
	files  map[string]*fileState

	watcher *fsnotify.Watcher
}

// New watches dir for changes to its "*.jump" files.
func New(dir string, logger *logrus.Logger) *Index {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	idx := &Index{dir: dir, logger: logger, files: map[string]*fileState{}}

	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		if watchErr := watcher.Add(dir); watchErr == nil {
			idx.watcher = watcher
			go idx.watchLoop()
		} else {
			watcher.Close()
		}
	}
	return idx
}

func (idx *Index) watchLoop() {
	for event := range idx.watcher.Events {
		if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
			continue
		}
		idx.mu.Lock()
		genome := strings.TrimSuffix(filepath.Base(event.Name), ".jump")
		if fs, ok := idx.files[genome]; ok {
			go fs.reload(idx.logger)
		}
		idx.mu.Unlock()
	}
}

// Close stops the fsnotify watch.
func (idx *Index) Close() error {
	if idx.watcher == nil {
		return nil
	}
	return idx.watcher.Close()
}

func genomeOf(lookup string) (string, bool) {
	// lookup is "focus:<kind>:<genome>:<local_id>".
	parts := strings.SplitN(lookup, ":", 4)
	if len(parts) != 4 || parts[0] != "focus" {
		return "", false
	}
	return parts[2], true
}

// Lookup implements bundlehandlers.JumpIndex.
func (idx *Index) Lookup(_ context.Context, lookup string) (stick string, left, right int64, ok bool) {
	genome, valid := genomeOf(lookup)
	if !valid {
		return "", 0, 0, false
	}

	fs := idx.fileFor(genome)
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.loadLocked(idx.logger)
	e, found := fs.entries[lookup]
	if !found {
		return "", 0, 0, false
	}
	return e.stick, e.left, e.right, true
}

func (idx *Index) fileFor(genome string) *fileState {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	fs, ok := idx.files[genome]
	if !ok {
		fs = &fileState{path: filepath.Join(idx.dir, genome+".jump")}
		idx.files[genome] = fs
	}
	return fs
}

// reload re-reads the file only if its mtime has actually advanced,
// matching the at-most-one-reload discipline guarded by this file's own
// mutex, applied here to jump files instead of bundles.
func (fs *fileState) reload(logger *logrus.Logger) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.loadLocked(logger)
}

func (fs *fileState) loadLocked(logger *logrus.Logger) {
	info, err := os.Stat(fs.path)
	if err != nil {
		if fs.entries == nil {
			fs.entries = map[string]entry{}
		}
		return
	}
	if !info.ModTime().After(fs.modTime) && fs.entries != nil {
		return
	}

	f, err := os.Open(fs.path)
	if err != nil {
		logger.WithError(err).WithField("path", fs.path).Warn("jumpindex: failed to open file")
		return
	}
	defer f.Close()

	entries := map[string]entry{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 4 {
			continue
		}
		left, errL := strconv.ParseInt(fields[2], 10, 64)
		right, errR := strconv.ParseInt(fields[3], 10, 64)
		if errL != nil || errR != nil {
			continue
		}
		entries[fields[0]] = entry{stick: fields[1], left: left, right: right}
	}
	if err := scanner.Err(); err != nil {
		logger.WithError(err).WithField("path", fs.path).Warn("jumpindex: failed to scan file")
		return
	}

	fs.entries = entries
	fs.modTime = info.ModTime()
}
