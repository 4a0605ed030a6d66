// Package share tracks, lists and reconciles the set of locally shared files
// against the remote share registry.
package share

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/devans0/fileshare-client/internal/events"
	"github.com/devans0/fileshare-client/internal/logging"
	"github.com/devans0/fileshare-client/internal/metrics"
	"github.com/devans0/fileshare-client/internal/registry"
)

// maxSyncRetries bounds the immediate re-registration retries a single
// reconcile pass may spend after the registry reports listing loss, so a
// malfunctioning registry cannot be hammered.
const maxSyncRetries = 3

// Config holds engine construction parameters.
type Config struct {
	OwnerID  string
	Address  string // peer transfer address advertised to the registry
	Port     int    // peer transfer port advertised to the registry
	ShareDir string // initial share directory, may be empty

	Registry    registry.Client
	Broadcaster *events.Broadcaster
	Clock       clock.Clock // nil means the real clock
}

// Engine owns the registration table and converges the set of files the user
// wants shared with what the registry acknowledges. User-facing mutations and
// the periodic reconcile pass may run concurrently; a try-lock single-flight
// guard plus a pending-change flag keep the state convergent without losing
// structural changes that arrive mid-pass.
type Engine struct {
	ownerID string
	address string
	port    int

	reg         registry.Client
	table       *Table
	broadcaster *events.Broadcaster
	clk         clock.Clock

	// mu guards shareDir, userShared, excluded and pendingDelist.
	mu            sync.Mutex
	shareDir      string
	userShared    map[string]struct{}
	excluded      map[string]struct{}
	pendingDelist []Listing

	// Single-flight guard and dirty bit for the reconcile pass.
	syncMu        sync.Mutex
	changePending atomic.Bool

	trigger  chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates an engine. Start must be called before periodic or triggered
// reconciliation takes place; Sync may be called directly at any time.
func New(cfg Config) *Engine {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Engine{
		ownerID:     cfg.OwnerID,
		address:     cfg.Address,
		port:        cfg.Port,
		shareDir:    cfg.ShareDir,
		reg:         cfg.Registry,
		table:       NewTable(),
		broadcaster: cfg.Broadcaster,
		clk:         clk,
		userShared:  make(map[string]struct{}),
		excluded:    make(map[string]struct{}),
		trigger:     make(chan struct{}, 1),
		done:        make(chan struct{}),
	}
}

// ShareDir returns the current share directory, or "" when directory-based
// sharing is off.
func (e *Engine) ShareDir() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.shareDir
}

// ResolvePath returns the absolute path for a currently registered base file
// name. Used by the transfer handler to authorize requests.
func (e *Engine) ResolvePath(name string) (string, bool) {
	l, ok := e.table.Get(name)
	if !ok {
		return "", false
	}
	return l.Path, true
}

// SharedFiles returns a snapshot of the registration table sorted by name.
func (e *Engine) SharedFiles() []Listing {
	listings := e.table.Listings()
	sort.Slice(listings, func(i, j int) bool { return listings[i].Name < listings[j].Name })
	return listings
}

// SetShareDir swaps the share directory. Every regular file under the old
// directory leaves management entirely (dropped from the user-shared and
// excluded sets and de-listed), and files resurfacing in the new directory
// are cleared from the excluded set so they become eligible again. The
// registry cleanup for departing listings runs inside the asynchronously
// triggered reconcile pass, never on the caller. An empty dir stops
// directory-based sharing.
func (e *Engine) SetShareDir(dir string) {
	e.mu.Lock()
	old := e.shareDir

	if old != "" {
		entries, err := os.ReadDir(old)
		if err != nil && !os.IsNotExist(err) {
			logging.Warn("could not scan old share directory", zap.String("dir", old), zap.Error(err))
		}
		for _, ent := range entries {
			if !ent.Type().IsRegular() {
				continue
			}
			p := filepath.Join(old, ent.Name())
			delete(e.userShared, p)
			delete(e.excluded, p)
			if l, ok := e.table.Get(ent.Name()); ok && l.Path == p {
				e.table.Remove(l.Name)
				e.pendingDelist = append(e.pendingDelist, l)
			}
		}
	}

	e.shareDir = dir

	if dir != "" {
		entries, err := os.ReadDir(dir)
		if err != nil {
			logging.Warn("could not scan new share directory", zap.String("dir", dir), zap.Error(err))
		}
		for _, ent := range entries {
			if ent.Type().IsRegular() && !strings.HasPrefix(ent.Name(), ".") {
				delete(e.excluded, filepath.Join(dir, ent.Name()))
			}
		}
	}
	e.mu.Unlock()

	if dir == "" {
		logging.Info("share directory unset, synchronizing shared files")
	} else {
		logging.Info("share directory changed, synchronizing shared files", zap.String("dir", dir))
	}

	e.changePending.Store(true)
	e.broadcaster.Publish(events.Event{Type: events.EventDirChanged, Path: dir})
	e.TriggerSync()
}

// AddFile shares a single file regardless of its location. Returns
// registry.ErrNameConflict when a file with the same base name is already
// registered; no local state changes on any failure.
func (e *Engine) AddFile(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("cannot share %s: %w", abs, err)
	}
	if !fi.Mode().IsRegular() {
		return fmt.Errorf("cannot share %s: not a regular file", abs)
	}

	name := filepath.Base(abs)
	if _, ok := e.table.Get(name); ok {
		return fmt.Errorf("%w: %s", registry.ErrNameConflict, name)
	}

	id, err := e.reg.Register(ctx, e.ownerID, name, e.address, e.port)
	if err != nil {
		return fmt.Errorf("register %s: %w", name, err)
	}

	e.mu.Lock()
	delete(e.excluded, abs)
	e.userShared[abs] = struct{}{}
	e.mu.Unlock()

	e.table.Put(Listing{ID: id, Name: name, Path: abs})
	metrics.SetListedFiles(e.table.Len())
	logging.Info("registered file", zap.String("name", name), zap.String("path", abs))
	e.broadcaster.Publish(events.Event{Type: events.EventListed, Name: name, Path: abs})
	return nil
}

// RemoveFile stops sharing a file. Local state is removed and observers are
// notified regardless of the registry call outcome; an unregister failure is
// only logged.
func (e *Engine) RemoveFile(ctx context.Context, path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	e.mu.Lock()
	delete(e.userShared, abs)
	e.mu.Unlock()

	e.delist(ctx, abs)
	e.broadcaster.Publish(events.Event{Type: events.EventDelisted, Name: filepath.Base(abs), Path: abs})
}

// ExcludeFile block-lists a path so it cannot reappear through directory
// scanning, and stops sharing it immediately. The user-shared and excluded
// sets stay disjoint.
func (e *Engine) ExcludeFile(ctx context.Context, path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	e.mu.Lock()
	delete(e.userShared, abs)
	e.excluded[abs] = struct{}{}
	e.mu.Unlock()

	e.delist(ctx, abs)
	e.broadcaster.Publish(events.Event{Type: events.EventDelisted, Name: filepath.Base(abs), Path: abs})
}

// delist removes the registration table entry for abs, if present, and makes
// a best-effort unregister call.
func (e *Engine) delist(ctx context.Context, abs string) {
	name := filepath.Base(abs)
	l, ok := e.table.Get(name)
	if !ok || l.Path != abs {
		return
	}
	e.table.Remove(name)
	metrics.SetListedFiles(e.table.Len())
	if err := e.reg.Unregister(ctx, l.ID, e.ownerID); err != nil {
		logging.Warn("unregister failed", zap.String("name", name), zap.Error(err))
		return
	}
	logging.Info("de-listed file", zap.String("name", name), zap.String("path", abs))
}

// TriggerSync requests an opportunistic reconcile pass from the monitor
// goroutine. Non-blocking; a request that finds one already queued is
// coalesced with it.
func (e *Engine) TriggerSync() {
	select {
	case e.trigger <- struct{}{}:
	default:
	}
}

// Start launches the monitor goroutine that reconciles on every tick of
// interval and on every TriggerSync request. An initial pass runs
// immediately.
func (e *Engine) Start(ctx context.Context, interval time.Duration) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := e.clk.Ticker(interval)
		defer ticker.Stop()

		e.Sync(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-e.done:
				return
			case <-ticker.C:
				e.Sync(ctx)
			case <-e.trigger:
				e.Sync(ctx)
			}
		}
	}()
}

// Stop terminates the monitor goroutine and waits for an in-flight pass to
// finish.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.done) })
	e.wg.Wait()
}

// Sync runs one reconcile pass. It is safe to call from any goroutine: a
// caller that finds a pass already running returns immediately, relying on
// the pending-change flag to guarantee its intent is observed by the holder.
//
// The pass loops while either the registry reported listing loss (bounded to
// maxSyncRetries immediate retries) or a structural change arrived while the
// pass was executing (never dropped, no bound). Exactly one change
// notification is published after the loop exits.
func (e *Engine) Sync(ctx context.Context) {
	if !e.syncMu.TryLock() {
		return
	}
	start := time.Now()
	defer func() {
		e.syncMu.Unlock()
		metrics.SetListedFiles(e.table.Len())
		metrics.RecordSyncPass(time.Since(start))
		e.broadcaster.Publish(events.Event{Type: events.EventSynced})
	}()

	retries := 0
	for {
		needsRetry := false

		// Clear the dirty bit before doing any work so a change landing
		// mid-pass re-sets it and forces another iteration.
		e.changePending.Store(false)

		e.drainDepartures(ctx)

		dir := e.currentShareDir()
		desired := e.desiredSet(dir)

		// Arrivals before departures: a path that is simultaneously removed
		// and re-added is never left unregistered.
		for path := range desired {
			name := filepath.Base(path)
			if cur, ok := e.table.Get(name); ok {
				if cur.Path != path {
					logging.Warn("name conflict, keeping existing listing",
						zap.String("name", name),
						zap.String("existing", cur.Path),
						zap.String("skipped", path))
				}
				continue
			}
			id, err := e.reg.Register(ctx, e.ownerID, name, e.address, e.port)
			if err != nil {
				if errors.Is(err, registry.ErrNameConflict) {
					logging.Warn("registry rejected duplicate name", zap.String("name", name))
				} else {
					logging.Warn("register failed", zap.String("name", name), zap.Error(err))
				}
				continue
			}
			e.table.Put(Listing{ID: id, Name: name, Path: path})
			logging.Info("registered file", zap.String("name", name), zap.String("path", path))
		}

		// De-list departing listings. On unregister failure the entry is
		// kept so a later pass retries instead of orphaning it.
		for _, l := range e.table.Listings() {
			_, want := desired[l.Path]
			if want && isReadable(l.Path) {
				continue
			}
			if err := e.reg.Unregister(ctx, l.ID, e.ownerID); err != nil {
				logging.Warn("unregister failed, keeping entry for retry",
					zap.String("name", l.Name), zap.Error(err))
				continue
			}
			e.table.Remove(l.Name)
			logging.Info("de-listed file", zap.String("name", l.Name), zap.String("path", l.Path))
		}

		// The heartbeat doubles as a check for registry-side listing loss.
		// A false return means our listings were reaped; re-register
		// everything immediately, within the retry budget.
		if e.table.Len() > 0 {
			alive, err := e.reg.Heartbeat(ctx, e.ownerID)
			if err != nil {
				logging.Warn("heartbeat failed, registry unreachable", zap.Error(err))
			} else if !alive {
				logging.Warn("registry lost our listings, attempting immediate re-sync",
					zap.Int("retries", retries))
				e.table.Clear()
				if retries < maxSyncRetries {
					retries++
					needsRetry = true
					metrics.RecordSyncRetry()
				}
			}
		}

		// Structural changes are never silently dropped, regardless of the
		// retry budget.
		if !needsRetry && !e.changePending.Load() {
			return
		}
	}
}

// drainDepartures unregisters listings queued by SetShareDir. Best effort:
// the entries already left the table, and a stray registry listing expires
// with its lease.
func (e *Engine) drainDepartures(ctx context.Context) {
	e.mu.Lock()
	departing := e.pendingDelist
	e.pendingDelist = nil
	e.mu.Unlock()

	for _, l := range departing {
		if err := e.reg.Unregister(ctx, l.ID, e.ownerID); err != nil {
			logging.Warn("unregister of departing file failed",
				zap.String("name", l.Name), zap.Error(err))
			continue
		}
		logging.Info("de-listed file", zap.String("name", l.Name), zap.String("path", l.Path))
	}
}

// currentShareDir returns the share directory, unsetting it first when it no
// longer exists on disk.
func (e *Engine) currentShareDir() string {
	e.mu.Lock()
	dir := e.shareDir
	e.mu.Unlock()
	if dir == "" {
		return ""
	}

	fi, err := os.Stat(dir)
	if err != nil || !fi.IsDir() {
		logging.Warn("share directory no longer exists, disabling directory sharing",
			zap.String("dir", dir))
		e.mu.Lock()
		if e.shareDir == dir {
			e.shareDir = ""
		}
		e.mu.Unlock()
		return ""
	}
	return dir
}

// desiredSet computes the reconciliation target: non-hidden regular direct
// children of the share directory, plus user-shared files, plus files
// currently registered, minus excluded paths, minus anything that vanished
// from disk. Vanished files are silently dropped from the user-shared set as
// well.
func (e *Engine) desiredSet(dir string) map[string]struct{} {
	desired := make(map[string]struct{})

	if dir != "" {
		entries, err := os.ReadDir(dir)
		if err != nil {
			logging.Warn("share directory scan failed", zap.String("dir", dir), zap.Error(err))
		}
		for _, ent := range entries {
			if !ent.Type().IsRegular() || strings.HasPrefix(ent.Name(), ".") {
				continue
			}
			desired[filepath.Join(dir, ent.Name())] = struct{}{}
		}
	}

	for _, l := range e.table.Listings() {
		desired[l.Path] = struct{}{}
	}

	e.mu.Lock()
	for p := range e.userShared {
		desired[p] = struct{}{}
	}
	for p := range e.excluded {
		delete(desired, p)
	}
	e.mu.Unlock()

	for p := range desired {
		fi, err := os.Stat(p)
		if err == nil && fi.Mode().IsRegular() {
			continue
		}
		delete(desired, p)
		e.mu.Lock()
		delete(e.userShared, p)
		e.mu.Unlock()
	}
	return desired
}

func isReadable(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	fi, err := f.Stat()
	f.Close()
	return err == nil && fi.Mode().IsRegular()
}
