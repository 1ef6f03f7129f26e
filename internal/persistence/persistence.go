// Package persistence implements spec.md §4.10's snapshot format: an
// atomic per-engine file capturing every memory and the recency-ordered
// cue index, with a read protocol that rehydrates co-occurrence rather
// than persisting it. Grounded on
// original_source/src/persistence.rs's PersistenceManager, minus its
// cloud-backup integrations (S3/GCS/Azure via object_store) — SPEC_FULL.md
// scopes snapshotting to local flat files only, so those collaborators
// have no component to wire into.
package persistence

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/scrypster/cuemap/internal/engine"
	"github.com/scrypster/cuemap/internal/normalization"
	"github.com/scrypster/cuemap/internal/project"
	"github.com/scrypster/cuemap/internal/recency"
	"github.com/scrypster/cuemap/internal/taxonomy"
	"github.com/scrypster/cuemap/pkg/cuetypes"
)

// snapshotVersion is bumped whenever the persisted shape changes
// incompatibly. There is exactly one version so far.
const snapshotVersion = 1

// persistedState is the on-disk shape of a single engine's snapshot.
// CueIndex maps a cue to its posting list in most-recent-first order —
// a flattened form of the live recency.Set.
type persistedState struct {
	Memories    map[string]*cuetypes.Memory
	CueIndex    map[string][]string
	Version     uint32
	SavedAtUnix int64
}

// mainSuffix, lexiconSuffix, aliasSuffix name the three files a project
// snapshots to, matching original_source's "{id}.bin" /
// "{id}_lexicon.bin" / "{id}_aliases.bin" scheme.
const (
	mainSuffix    = ".bin"
	lexiconSuffix = "_lexicon.bin"
	aliasSuffix   = "_aliases.bin"
)

// ProjectPaths returns the three snapshot file paths for projectID under
// dir.
func ProjectPaths(dir, projectID string) (main, lexicon, aliases string) {
	return filepath.Join(dir, projectID+mainSuffix),
		filepath.Join(dir, projectID+lexiconSuffix),
		filepath.Join(dir, projectID+aliasSuffix)
}

// SaveEngine writes e's full state to path: serialize to a temp file in
// the same directory, fsync, then rename over the final name — spec.md
// §4.10's write protocol, so a crash mid-write never leaves a corrupt or
// half-written snapshot in place.
func SaveEngine(e *engine.Engine, path string) error {
	start := time.Now()

	state := persistedState{
		Memories:    make(map[string]*cuetypes.Memory),
		CueIndex:    make(map[string][]string),
		Version:     snapshotVersion,
		SavedAtUnix: start.Unix(),
	}
	e.RangeMemories(func(id string, mem *cuetypes.Memory) bool {
		state.Memories[id] = mem
		return true
	})
	e.CueIndex().Range(func(cue string, set *recency.Set) bool {
		state.CueIndex[cue] = set.GetRecent(0)
		return true
	})

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&state); err != nil {
		return fmt.Errorf("persistence: encoding snapshot: %w", err)
	}

	tempPath := path + ".tmp"
	f, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("persistence: creating temp file: %w", err)
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		_ = f.Close()
		return fmt.Errorf("persistence: writing temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("persistence: fsync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("persistence: closing temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("persistence: renaming snapshot into place: %w", err)
	}

	log.Printf("persistence: saved %d memories and %d cues to %s in %s (%d bytes)",
		len(state.Memories), len(state.CueIndex), path, time.Since(start), buf.Len())
	return nil
}

// LoadEngine reads path into e: every memory is installed via
// e.LoadMemory, every cue's posting list is reinstalled in its persisted
// MRU order via e.CueIndex().LoadPostingList, and co-occurrence is
// rebuilt afterward — spec.md §4.10's read protocol. Returns
// os.ErrNotExist (wrapped) if path doesn't exist; LoadProject only calls
// it for lexicon and aliases files that exist, and returns the error for
// a missing main file.
func LoadEngine(e *engine.Engine, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("persistence: reading snapshot %s: %w", path, err)
	}

	var state persistedState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&state); err != nil {
		return fmt.Errorf("persistence: decoding snapshot %s: %w", path, err)
	}

	for _, mem := range state.Memories {
		e.LoadMemory(mem)
	}
	for cue, ids := range state.CueIndex {
		e.CueIndex().LoadPostingList(cue, ids)
	}
	e.RehydrateCoOccurrence()

	log.Printf("persistence: loaded %d memories and %d cues from %s (version %d, saved_at %d)",
		len(state.Memories), len(state.CueIndex), path, state.Version, state.SavedAtUnix)
	return nil
}

// SaveProject snapshots all three of ctx's engines (main, lexicon,
// aliases) under projectID's three files in dir. A failure partway
// through leaves whichever files already succeeded in place — the next
// successful save overwrites them — and returns the first error
// encountered.
func SaveProject(dir, projectID string, ctx *project.Context) error {
	mainPath, lexiconPath, aliasPath := ProjectPaths(dir, projectID)
	if err := SaveEngine(ctx.Main, mainPath); err != nil {
		return err
	}
	if err := SaveEngine(ctx.Lexicon, lexiconPath); err != nil {
		return err
	}
	if err := SaveEngine(ctx.Aliases, aliasPath); err != nil {
		return err
	}
	return nil
}

// LoadProject loads projectID's three snapshot files into ctx's engines.
// A missing lexicon or aliases file is tolerated (a project may predate
// either engine having any data) and leaves that engine empty; a missing
// main file is returned as an error since it implies the project was
// never actually saved.
func LoadProject(dir, projectID string, ctx *project.Context) error {
	mainPath, lexiconPath, aliasPath := ProjectPaths(dir, projectID)

	if err := LoadEngine(ctx.Main, mainPath); err != nil {
		return err
	}
	if fileExists(lexiconPath) {
		if err := LoadEngine(ctx.Lexicon, lexiconPath); err != nil {
			return err
		}
	}
	if fileExists(aliasPath) {
		if err := LoadEngine(ctx.Aliases, aliasPath); err != nil {
			return err
		}
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ListSnapshots returns the project IDs with a main snapshot file under
// dir, derived by stripping mainSuffix from every ".bin" entry that
// isn't itself a lexicon or aliases file. Grounded on original_source's
// list_snapshots_in_dir.
func ListSnapshots(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("persistence: listing %s: %w", dir, err)
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, mainSuffix) {
			continue
		}
		if strings.HasSuffix(name, lexiconSuffix) || strings.HasSuffix(name, aliasSuffix) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, mainSuffix))
	}
	return ids, nil
}

// DeleteSnapshot removes all three of projectID's snapshot files under
// dir. Missing files are not an error.
func DeleteSnapshot(dir, projectID string) error {
	mainPath, lexiconPath, aliasPath := ProjectPaths(dir, projectID)
	for _, path := range []string{mainPath, lexiconPath, aliasPath} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("persistence: deleting %s: %w", path, err)
		}
	}
	return nil
}

// Manager runs the periodic snapshot ticker over every project in a
// project.Store, plus the one-shot load-at-startup and
// snapshot-at-shutdown paths. Grounded on
// original_source/src/persistence.rs's PersistenceManager and its
// start_background_snapshots loop, shaped after the teacher's
// BackupService ticker (internal/backup/backup_service.go): an
// interval-driven loop selecting on ctx.Done() and a stop channel.
type Manager struct {
	dir      string
	interval time.Duration
	store    *project.Store

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
}

// NewManager constructs a Manager that snapshots every project in store
// to dir every interval. A non-positive interval disables the periodic
// ticker; callers must still be able to invoke SnapshotAll directly
// (e.g. on shutdown).
func NewManager(dir string, interval time.Duration, store *project.Store) *Manager {
	return &Manager{dir: dir, interval: interval, store: store}
}

// LoadAll rehydrates every snapshot found under the manager's directory
// into new project.Context values, installed into the store under
// their snapshot-derived project IDs. A project whose snapshot fails to
// load is logged and skipped; the others still load. Called once at
// startup before the store serves any traffic.
func (m *Manager) LoadAll(ctx context.Context) error {
	ids, err := ListSnapshots(m.dir)
	if err != nil {
		return err
	}
	loaded := 0
	for _, id := range ids {
		pctx := project.New(normalization.Default(), taxonomy.Taxonomy{}, nil, 0)
		if err := LoadProject(m.dir, id, pctx); err != nil {
			log.Printf("persistence: loading project %s failed, skipping it: %v", id, err)
			continue
		}
		m.store.Put(id, pctx)
		loaded++
	}
	log.Printf("persistence: loaded %d of %d project(s) from %s", loaded, len(ids), m.dir)
	return nil
}

// SnapshotAll saves every project currently in the store, logging (not
// failing) any individual project's error so one bad project can't
// block the rest.
func (m *Manager) SnapshotAll(ctx context.Context) {
	if m.dir == "" {
		return
	}
	for _, id := range m.store.ProjectIDs() {
		pctx, ok := m.store.Get(id)
		if !ok {
			continue
		}
		if err := SaveProject(m.dir, id, pctx); err != nil {
			log.Printf("persistence: snapshot failed for project %s: %v", id, err)
		}
	}
}

// SnapshotAllWithDeadline runs SnapshotAll but gives up waiting after
// deadline, logging instead of blocking shutdown indefinitely on a
// locked or oversized project — spec.md's graceful-shutdown snapshot
// deadline.
func (m *Manager) SnapshotAllWithDeadline(deadline time.Duration) {
	done := make(chan struct{})
	go func() {
		m.SnapshotAll(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(deadline):
		log.Printf("persistence: shutdown snapshot exceeded %s deadline, exiting without waiting further", deadline)
	}
}

// Start runs the periodic snapshot ticker until ctx is cancelled or Stop
// is called. Intended to run in its own goroutine.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.stopCh = make(chan struct{})
	m.mu.Unlock()

	if m.interval <= 0 {
		log.Printf("persistence: snapshot ticker disabled")
		return
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	log.Printf("persistence: snapshot ticker started: interval=%s dir=%s", m.interval, m.dir)

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.SnapshotAll(ctx)
		}
	}
}

// Stop halts a running ticker started by Start. Safe to call even if
// Start was never called.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	close(m.stopCh)
	m.running = false
}
