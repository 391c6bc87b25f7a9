// Package watch keeps the schema snapshot consistent with the on-disk
// function tree: it observes filesystem changes, re-runs the scan, and
// publishes each fresh snapshot through the distribution hub.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/funcdeck-hq/funcdeck/internal/distribute"
	"github.com/funcdeck-hq/funcdeck/internal/scanner"
	"github.com/funcdeck-hq/funcdeck/internal/schema"
	"github.com/funcdeck-hq/funcdeck/pkg/model"
)

// DefaultDebounce is the quiet period after the last relevant filesystem
// event before a rebuild runs. Editors tend to emit bursts of writes.
const DefaultDebounce = 250 * time.Millisecond

// Watcher rebuilds snapshots when relevant source files change. Lifecycle
// is Stopped -> Watching on Start (after the first build completes) and
// Watching -> Stopped on Stop.
type Watcher struct {
	builder  *schema.Builder
	scan     *scanner.Scanner
	hub      *distribute.Hub
	debounce time.Duration

	fw   *fsnotify.Watcher
	done chan struct{}
	wg   sync.WaitGroup
	stop sync.Once

	gen atomic.Uint64
	// installMu orders snapshot installation: a finished build installs
	// and publishes only if no newer build already did.
	installMu    sync.Mutex
	installedGen uint64
}

// New creates a Watcher. debounce <= 0 selects DefaultDebounce.
func New(builder *schema.Builder, scan *scanner.Scanner, hub *distribute.Hub, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		builder:  builder,
		scan:     scan,
		hub:      hub,
		debounce: debounce,
		done:     make(chan struct{}),
	}
}

// Start performs the first build (a root that cannot be read at all is a
// fatal startup error) and then begins watching the tree. Failing to
// establish the filesystem subscription leaves the watcher in a degraded
// non-watching state rather than failing startup: the first snapshot is
// still served, it just never refreshes.
func (w *Watcher) Start(ctx context.Context) error {
	snap, err := w.builder.Build(ctx)
	if err != nil {
		return err
	}
	w.install(w.gen.Add(1), snap)

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warn().Err(err).Msg("filesystem watch unavailable, schema will not auto-refresh")
		return nil
	}
	w.fw = fw

	if err := w.watchTree(w.builder.Root()); err != nil {
		log.Warn().Err(err).Msg("failed to watch function root, schema will not auto-refresh")
		_ = fw.Close()
		w.fw = nil
		return nil
	}

	w.wg.Add(1)
	go w.loop(ctx)

	log.Info().Str("root", w.builder.Root()).Msg("watching for schema changes")
	return nil
}

// Stop releases the filesystem subscription. Any rebuild already in
// flight completes and may still install its snapshot.
func (w *Watcher) Stop() {
	w.stop.Do(func() {
		close(w.done)
		if w.fw != nil {
			_ = w.fw.Close()
		}
	})
	w.wg.Wait()
}

// watchTree registers root and every non-excluded subdirectory.
func (w *Watcher) watchTree(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			log.Warn().Err(err).Str("path", path).Msg("skipping unwatchable entry")
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.scan.IsExcludedDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fw.Add(path); err != nil {
			log.Warn().Err(err).Str("dir", path).Msg("failed to watch directory")
		}
		return nil
	})
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()

	var pending <-chan time.Time
	for {
		select {
		case <-w.done:
			return
		case <-ctx.Done():
			return

		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			// A newly created directory arms a rebuild as well: files may
			// have landed inside it before its watch was registered.
			newDir := ev.Op.Has(fsnotify.Create) && w.maybeWatchNewDir(ev.Name)
			if newDir || w.relevant(ev.Name) {
				pending = time.After(w.debounce)
			}

		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("filesystem watch error")

		case <-pending:
			pending = nil
			w.rebuild(ctx)
		}
	}
}

// maybeWatchNewDir extends the subscription to directories created after
// Start, so files added inside them keep triggering rebuilds. Reports
// whether a new non-excluded directory was registered.
func (w *Watcher) maybeWatchNewDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return false
	}
	if w.scan.IsExcludedDir(filepath.Base(path)) {
		return false
	}
	if err := w.watchTree(path); err != nil {
		log.Warn().Err(err).Str("dir", path).Msg("failed to watch new directory")
	}
	return true
}

// relevant applies the relevance filter: the changed path must be a source
// file by extension, not a test file, and not inside an excluded subtree.
// Removals count as relevant, so a deleted file does not leave stale
// functions in the snapshot.
func (w *Watcher) relevant(path string) bool {
	rel, err := filepath.Rel(w.builder.Root(), path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false
	}

	segments := strings.Split(filepath.ToSlash(rel), "/")
	for _, seg := range segments[:len(segments)-1] {
		if w.scan.IsExcludedDir(seg) {
			return false
		}
	}

	name := segments[len(segments)-1]
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
		return false
	}
	return w.scan.IsSourceFile(name) && !w.scan.IsTestFile(name)
}

// rebuild starts a full scan for a new generation. Builds may overlap; the
// generation check in install guarantees the visible snapshot always comes
// from the newest completed build.
func (w *Watcher) rebuild(ctx context.Context) {
	gen := w.gen.Add(1)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		snap, err := w.builder.Build(ctx)
		if err != nil {
			log.Error().Err(err).Msg("schema rebuild failed")
			return
		}
		w.install(gen, snap)
	}()
}

// install atomically replaces the current snapshot and publishes it,
// unless a newer generation was already installed.
func (w *Watcher) install(gen uint64, snap *model.Snapshot) {
	w.installMu.Lock()
	defer w.installMu.Unlock()
	if gen < w.installedGen {
		log.Debug().Uint64("generation", gen).Msg("discarding stale schema build")
		return
	}
	w.installedGen = gen
	w.hub.Publish(snap)
}
