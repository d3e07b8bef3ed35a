package storage

import (
	"context"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const (
	stateFile     = "state.json"
	lockSuffix    = ".lock"
	lockRetryWait = 100 * time.Millisecond
)

// State is the persisted notification state.
type State struct {
	Sites     map[string]SiteState `json:"sites"`
	UpdatedAt string               `json:"updated_at,omitempty"`
}

// SiteState describes the last message dispatched for a site.
type SiteState struct {
	Fingerprint string `json:"fingerprint"`
	Records     int    `json:"records"`
	SentAt      string `json:"sent_at"`
}

// NewState returns an empty state.
func NewState() *State {
	return &State{Sites: make(map[string]SiteState)}
}

// AlreadySent reports whether the last message for site had this fingerprint.
func (s *State) AlreadySent(site, fingerprint string) bool {
	prev, ok := s.Sites[site]
	return ok && prev.Fingerprint == fingerprint
}

// MarkSent records a dispatched message.
func (s *State) MarkSent(site, fingerprint string, records int, at time.Time) {
	s.Sites[site] = SiteState{
		Fingerprint: fingerprint,
		Records:     records,
		SentAt:      at.UTC().Format(time.RFC3339),
	}
}

// Fingerprint returns a stable hash of a rendered message.
func Fingerprint(text string) string {
	return fmt.Sprintf("%x", sha1.Sum([]byte(text)))
}

// Storage handles persistence of notification state. One Storage may be
// shared by concurrent goroutines; the mutex serializes them inside the
// process and the file lock serializes separate processes.
type Storage struct {
	dataDir string
	mu      sync.Mutex
	lock    *flock.Flock
}

// New creates a new Storage instance
func New(dataDir string) (*Storage, error) {
	// Expand ~ to home directory
	if strings.HasPrefix(dataDir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, dataDir[2:])
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	return &Storage{
		dataDir: dataDir,
		lock:    flock.New(filepath.Join(dataDir, stateFile+lockSuffix)),
	}, nil
}

// Path returns the location of the state file.
func (s *Storage) Path() string {
	return filepath.Join(s.dataDir, stateFile)
}

// Load reads the state without locking. A missing file is an empty state.
func (s *Storage) Load() (*State, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return NewState(), nil
		}
		return nil, fmt.Errorf("reading state: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parsing state: %w", err)
	}
	if state.Sites == nil {
		state.Sites = make(map[string]SiteState)
	}
	return &state, nil
}

func (s *Storage) save(state *State) error {
	state.UpdatedAt = time.Now().UTC().Format(time.RFC3339)

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}

	tmp, err := os.CreateTemp(s.dataDir, "state-*.json")
	if err != nil {
		return fmt.Errorf("creating temp state: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck
		return fmt.Errorf("writing state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing state: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("writing state: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path()); err != nil {
		return fmt.Errorf("replacing state: %w", err)
	}
	return nil
}

// Update runs fn on the current state under the file lock and saves the result.
// The state is not saved when fn returns an error.
func (s *Storage) Update(ctx context.Context, fn func(*State) error) error {
	// flock treats a second TryLock on the same handle as already held.
	s.mu.Lock()
	defer s.mu.Unlock()

	locked, err := s.lock.TryLockContext(ctx, lockRetryWait)
	if err != nil {
		return fmt.Errorf("locking state: %w", err)
	}
	if !locked {
		return fmt.Errorf("locking state: lock not acquired")
	}
	defer s.lock.Unlock() //nolint:errcheck

	state, err := s.Load()
	if err != nil {
		return err
	}
	if err := fn(state); err != nil {
		return err
	}
	return s.save(state)
}

// Claim marks a message as sent for site unless the same message was already
// sent. It reports whether the caller should dispatch.
func (s *Storage) Claim(ctx context.Context, site, fingerprint string, records int) (bool, error) {
	claimed := false
	err := s.Update(ctx, func(st *State) error {
		if st.AlreadySent(site, fingerprint) {
			return nil
		}
		st.MarkSent(site, fingerprint, records, time.Now())
		claimed = true
		return nil
	})
	return claimed, err
}

// Forget clears the state of a site so its next message is dispatched.
func (s *Storage) Forget(ctx context.Context, site string) error {
	return s.Update(ctx, func(st *State) error {
		delete(st.Sites, site)
		return nil
	})
}
