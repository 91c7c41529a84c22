package session

import (
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestMemoryStoreKeepsStateBetweenMutations(t *testing.T) {
	store := NewMemoryStore(0)

	err := store.Mutate("subject-a", func(st *State) error {
		st.ModuleIdx = 3
		st.Ficha.Paciente.DNI = "12345678"
		return nil
	})
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}

	err = store.Mutate("subject-a", func(st *State) error {
		if st.ModuleIdx != 3 || st.Ficha.Paciente.DNI != "12345678" {
			t.Errorf("state not kept: %+v", st)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}
}

func TestMemoryStoreSubjectsAreIndependent(t *testing.T) {
	store := NewMemoryStore(0)

	_ = store.Mutate("subject-a", func(st *State) error {
		st.ModuleIdx = 5
		return nil
	})
	_ = store.Mutate("subject-b", func(st *State) error {
		if st.ModuleIdx != 0 {
			t.Errorf("fresh subject sees module %d", st.ModuleIdx)
		}
		return nil
	})
}

func TestMemoryStoreExpiredSessionRestarts(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	current := time.Now()
	store.now = func() time.Time { return current }

	_ = store.Mutate("subject-a", func(st *State) error {
		st.ModuleIdx = 4
		return nil
	})

	current = current.Add(2 * time.Hour)
	_ = store.Mutate("subject-a", func(st *State) error {
		if st.ModuleIdx != 0 {
			t.Errorf("expired session kept module %d", st.ModuleIdx)
		}
		return nil
	})
}

func TestStateMarkProcessed(t *testing.T) {
	st := NewState("s", time.Now())
	if !st.MarkProcessed("msg-1") {
		t.Error("first delivery should be accepted")
	}
	if st.MarkProcessed("msg-1") {
		t.Error("replay should be rejected")
	}
	if !st.MarkProcessed("") {
		t.Error("empty id is always accepted")
	}
}

func TestStateResetKeepsProcessedIDs(t *testing.T) {
	st := NewState("s", time.Now())
	st.MarkProcessed("msg-1")
	st.ModuleIdx = 4
	st.Ficha.Paciente.DNI = "12345678"

	st.Reset(time.Now())

	if st.ModuleIdx != 0 || st.Ficha.Paciente.DNI != "" {
		t.Errorf("reset kept dialogue state: %+v", st)
	}
	if st.MarkProcessed("msg-1") {
		t.Error("processed ids must survive the reset")
	}
}

func TestFileStoreSnapshotSurvivesRestart(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sessions")

	store, err := NewFileStore(dir, 0, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	err = store.Mutate("5491100000001", func(st *State) error {
		st.ModuleIdx = 2
		st.Ficha.Paciente.NombreCompleto = "Juan Perez"
		return nil
	})
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}

	// A new store over the same directory lazily reloads the snapshot.
	reopened, err := NewFileStore(dir, 0, nil)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	err = reopened.Mutate("5491100000001", func(st *State) error {
		if st.ModuleIdx != 2 || st.Ficha.Paciente.NombreCompleto != "Juan Perez" {
			t.Errorf("snapshot not restored: %+v", st)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}
}

func TestFileStoreReloadRevivesEmptyMaps(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sessions")

	store, err := NewFileStore(dir, 0, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	// A turn that never touches the retry counters leaves both maps empty,
	// so omitempty drops them from the snapshot on disk.
	err = store.Mutate("5491100000001", func(st *State) error {
		st.LastText = "hola"
		return nil
	})
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}

	reopened, err := NewFileStore(dir, 0, nil)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	err = reopened.Mutate("5491100000001", func(st *State) error {
		st.Retries[0]++
		if !st.MarkProcessed("msg-after-reload") {
			t.Error("fresh id rejected after reload")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("mutate after reload: %v", err)
	}
}

func TestFileStoreSnapshotCarriesCurrentUpdatedAt(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sessions")

	store, err := NewFileStore(dir, 0, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	turnTime := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	store.mem.now = func() time.Time { return turnTime }

	err = store.Mutate("5491100000001", func(st *State) error {
		st.ModuleIdx = 1
		return nil
	})
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}

	reopened, err := NewFileStore(dir, time.Hour, nil)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	reopened.mem.now = func() time.Time { return turnTime.Add(30 * time.Minute) }
	err = reopened.Mutate("5491100000001", func(st *State) error {
		if st.ModuleIdx != 1 {
			t.Errorf("session expired early, restarted at module %d", st.ModuleIdx)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("mutate after reopen: %v", err)
	}
}

func TestFileStoreConcurrentTurnsOneSubject(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sessions")

	store, err := NewFileStore(dir, 0, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Mutate("5491100000001", func(st *State) error {
				st.Retries[0]++
				return nil
			})
		}()
	}
	wg.Wait()

	err = store.Mutate("5491100000001", func(st *State) error {
		if st.Retries[0] != 50 {
			t.Errorf("lost turns: retries = %d", st.Retries[0])
		}
		return nil
	})
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}
}
