package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func newStorage(t *testing.T, dir string) *Storage {
	t.Helper()
	s, err := New(dir)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return s
}

func loadState(t *testing.T, s *Storage) *State {
	t.Helper()
	state, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	return state
}

func siteNames(state *State) []string {
	names := make([]string, 0, len(state.Sites))
	for name := range state.Sites {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func TestLoad_Missing(t *testing.T) {
	s := newStorage(t, t.TempDir())

	state := loadState(t, s)
	if len(state.Sites) != 0 {
		t.Errorf("Load() sites = %v, want empty", state.Sites)
	}
}

func TestLoad_Corrupt(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "state.json"), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := newStorage(t, dir).Load(); err == nil {
		t.Error("Load() expected error for corrupt state")
	}
}

func TestNew_CreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	s := newStorage(t, dir)

	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("Stat() error: %v", err)
	}
	if !info.IsDir() {
		t.Errorf("%s is not a directory", dir)
	}
	if want := filepath.Join(dir, "state.json"); s.Path() != want {
		t.Errorf("Path() = %q, want %q", s.Path(), want)
	}
}

func TestClaim(t *testing.T) {
	s := newStorage(t, t.TempDir())
	ctx := context.Background()
	fp := Fingerprint("🏕️ message one")

	tests := []struct {
		name        string
		site        string
		fingerprint string
		records     int
		want        bool
	}{
		{"first claim dispatches", "hillbilly", fp, 2, true},
		{"identical message is skipped", "hillbilly", fp, 2, false},
		{"other sites are tracked separately", "tenku", fp, 2, true},
		{"changed message dispatches", "hillbilly", Fingerprint("🏕️ message two"), 3, true},
	}

	for _, tt := range tests {
		claimed, err := s.Claim(ctx, tt.site, tt.fingerprint, tt.records)
		if err != nil {
			t.Fatalf("%s: Claim() error: %v", tt.name, err)
		}
		if claimed != tt.want {
			t.Errorf("%s: Claim() = %v, want %v", tt.name, claimed, tt.want)
		}
	}

	state := loadState(t, s)
	if got := state.Sites["hillbilly"].Records; got != 3 {
		t.Errorf("hillbilly records = %d, want 3", got)
	}
	if state.UpdatedAt == "" {
		t.Error("UpdatedAt should be set")
	}
}

func TestForget(t *testing.T) {
	s := newStorage(t, t.TempDir())
	ctx := context.Background()
	fp := Fingerprint("x")

	if _, err := s.Claim(ctx, "tenku", fp, 1); err != nil {
		t.Fatal(err)
	}
	if err := s.Forget(ctx, "tenku"); err != nil {
		t.Fatalf("Forget() error: %v", err)
	}

	claimed, err := s.Claim(ctx, "tenku", fp, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !claimed {
		t.Error("Claim() after Forget() = false, want true")
	}
}

func TestUpdate_ErrorSkipsSave(t *testing.T) {
	s := newStorage(t, t.TempDir())

	boom := errors.New("boom")
	err := s.Update(context.Background(), func(st *State) error {
		st.MarkSent("hillbilly", "abc", 1, time.Now())
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Update() error = %v, want %v", err, boom)
	}

	if _, err := os.Stat(s.Path()); !os.IsNotExist(err) {
		t.Errorf("state file should not be written, stat error = %v", err)
	}
}

func TestUpdate_Concurrent(t *testing.T) {
	tests := []struct {
		name   string
		shared bool
	}{
		// One Storage used by every goroutine, the way a monitor run uses it.
		{name: "shared storage", shared: true},
		// Separate Storage values stand in for separate processes.
		{name: "separate storages", shared: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			const workers = 8
			const rounds = 5

			for round := 0; round < rounds; round++ {
				dir := t.TempDir()
				shared := newStorage(t, dir)

				var wg sync.WaitGroup
				for i := 0; i < workers; i++ {
					wg.Add(1)
					go func(i int) {
						defer wg.Done()
						s := shared
						if !tt.shared {
							var err error
							if s, err = New(dir); err != nil {
								t.Errorf("New() error: %v", err)
								return
							}
						}
						site := fmt.Sprintf("site-%d", i)
						if _, err := s.Claim(context.Background(), site, Fingerprint(site), 1); err != nil {
							t.Errorf("Claim(%s) error: %v", site, err)
						}
					}(i)
				}
				wg.Wait()

				want := make([]string, workers)
				for i := range want {
					want[i] = fmt.Sprintf("site-%d", i)
				}
				if diff := cmp.Diff(want, siteNames(loadState(t, shared))); diff != "" {
					t.Fatalf("round %d: stored sites mismatch (-want +got):\n%s", round, diff)
				}

				leftovers, err := filepath.Glob(filepath.Join(dir, "state-*.json"))
				if err != nil {
					t.Fatal(err)
				}
				if len(leftovers) != 0 {
					t.Errorf("round %d: temp files left behind: %v", round, leftovers)
				}
			}
		})
	}
}

func TestUpdate_Cancelled(t *testing.T) {
	dir := t.TempDir()
	holder := newStorage(t, dir)

	locked, err := holder.lock.TryLock()
	if err != nil || !locked {
		t.Fatalf("TryLock() = %v, %v", locked, err)
	}
	defer holder.lock.Unlock() //nolint:errcheck

	other := newStorage(t, dir)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	if err := other.Update(ctx, func(*State) error { return nil }); err == nil {
		t.Error("Update() expected error while another handle holds the lock")
	}
}
