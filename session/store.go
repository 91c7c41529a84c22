package session

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/sesampe/preaplus/internal/fsstore"
)

// MemoryStore keeps states in memory with a lock per subject, so slow turns
// for one subject never block another.
type MemoryStore struct {
	TTL time.Duration

	mu     sync.Mutex
	states map[string]*State
	locks  map[string]*sync.Mutex

	now func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		TTL:    ttl,
		states: map[string]*State{},
		locks:  map[string]*sync.Mutex{},
		now:    time.Now,
	}
}

func (m *MemoryStore) subjectLock(subjectID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[subjectID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[subjectID] = l
	}
	return l
}

func (m *MemoryStore) Mutate(subjectID string, fn func(*State) error) error {
	l := m.subjectLock(subjectID)
	l.Lock()
	defer l.Unlock()

	now := m.now()
	m.mu.Lock()
	st, ok := m.states[subjectID]
	m.mu.Unlock()
	if !ok || st.Expired(now, m.TTL) {
		st = NewState(subjectID, now)
	}

	// stamped before fn so a snapshot taken during the turn already carries
	// the timestamp that keeps the session from expiring early on reload
	st.UpdatedAt = now
	if err := fn(st); err != nil {
		return err
	}

	m.mu.Lock()
	m.states[subjectID] = st
	m.mu.Unlock()
	return nil
}

// FileStore wraps MemoryStore with one JSON snapshot per subject, written
// atomically after every successful turn and reloaded lazily on the first
// turn after a restart.
type FileStore struct {
	mem    *MemoryStore
	dir    string
	logger *slog.Logger

	mu     sync.Mutex
	loaded map[string]bool
}

func NewFileStore(dir string, ttl time.Duration, logger *slog.Logger) (*FileStore, error) {
	if err := fsstore.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("session dir: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{
		mem:    NewMemoryStore(ttl),
		dir:    dir,
		logger: logger,
		loaded: map[string]bool{},
	}, nil
}

func (f *FileStore) path(subjectID string) string {
	return filepath.Join(f.dir, fsstore.SafeName(subjectID)+".json")
}

func (f *FileStore) ensureLoaded(subjectID string) {
	f.mu.Lock()
	done := f.loaded[subjectID]
	f.loaded[subjectID] = true
	f.mu.Unlock()
	if done {
		return
	}

	var st State
	ok, err := fsstore.ReadJSON(f.path(subjectID), &st)
	if err != nil {
		f.logger.Warn("session_snapshot_read_failed", "subject", subjectID, "error", err)
		return
	}
	if !ok {
		return
	}
	// omitempty drops empty maps from the snapshot; revive them so counters
	// can be incremented without a nil-map panic
	if st.Retries == nil {
		st.Retries = map[int]int{}
	}
	if st.ProcessedMsgIDs == nil {
		st.ProcessedMsgIDs = map[string]bool{}
	}
	f.mem.mu.Lock()
	if _, exists := f.mem.states[subjectID]; !exists {
		f.mem.states[subjectID] = &st
	}
	f.mem.mu.Unlock()
}

func (f *FileStore) Mutate(subjectID string, fn func(*State) error) error {
	f.ensureLoaded(subjectID)
	return f.mem.Mutate(subjectID, func(st *State) error {
		if err := fn(st); err != nil {
			return err
		}
		// written while the per-subject lock is still held, so the next
		// turn cannot mutate the state mid-marshal
		if werr := fsstore.WriteJSONAtomic(f.path(subjectID), st); werr != nil {
			// keep serving from memory; the next turn retries the snapshot
			f.logger.Warn("session_snapshot_write_failed", "subject", subjectID, "error", werr)
		}
		return nil
	})
}
