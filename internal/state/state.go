// Package state manages the persisted learning state that lives next to
// the index: a cross-process file lock, idempotency ledgers for replayed
// feedback, and the last-retrieval session used by thumb votes.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/google/renameio"
)

// FileLock serializes state mutations across processes. Two concurrent
// feedback commands must not interleave their read-modify-write of the
// arm map and ledgers.
type FileLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewFileLock creates the lock for a data directory. The lock file
// lives at <dir>/.state.lock.
func NewFileLock(dir string) *FileLock {
	path := filepath.Join(dir, ".state.lock")
	return &FileLock{path: path, flock: flock.New(path)}
}

// Lock acquires the exclusive lock, blocking until available.
func (l *FileLock) Lock() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("creating lock directory: %w", err)
	}
	if err := l.flock.Lock(); err != nil {
		return fmt.Errorf("acquiring state lock: %w", err)
	}
	l.locked = true
	return nil
}

// TryLock attempts the lock without blocking.
func (l *FileLock) TryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, fmt.Errorf("creating lock directory: %w", err)
	}
	acquired, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("acquiring state lock: %w", err)
	}
	l.locked = acquired
	return acquired, nil
}

// Unlock releases the lock. Safe to call when not held.
func (l *FileLock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("releasing state lock: %w", err)
	}
	return nil
}

// Ledger is a persisted set of keys already applied, used to make
// feedback replays idempotent: a key that is present is skipped.
type Ledger struct {
	path string
	keys map[string]struct{}
}

// LoadLedger reads the ledger at path. Missing or corrupt files start
// an empty ledger; the ledger only guards against duplicates, losing it
// means re-applying at worst.
func LoadLedger(path string) *Ledger {
	l := &Ledger{path: path, keys: make(map[string]struct{})}

	data, err := os.ReadFile(path)
	if err != nil {
		return l
	}
	var keys []string
	if err := json.Unmarshal(data, &keys); err != nil {
		return l
	}
	for _, k := range keys {
		l.keys[k] = struct{}{}
	}
	return l
}

// Seen reports whether key was already applied.
func (l *Ledger) Seen(key string) bool {
	_, ok := l.keys[key]
	return ok
}

// Mark records key as applied. Returns false if it was already present.
func (l *Ledger) Mark(key string) bool {
	if l.Seen(key) {
		return false
	}
	l.keys[key] = struct{}{}
	return true
}

// Len returns the number of recorded keys.
func (l *Ledger) Len() int {
	return len(l.keys)
}

// Save writes the ledger atomically.
func (l *Ledger) Save() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("creating ledger dir: %w", err)
	}
	keys := make([]string, 0, len(l.keys))
	for k := range l.keys {
		keys = append(keys, k)
	}
	data, err := json.MarshalIndent(keys, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling ledger: %w", err)
	}
	if err := renameio.WriteFile(l.path, data, 0o644); err != nil {
		return fmt.Errorf("writing ledger %s: %w", l.path, err)
	}
	return nil
}

// Ledger file names under the data dir.
const (
	FeedbackLedgerFileName = "feedback_seen.json"
	TrackerLedgerFileName  = "tracker_sync_seen.json"
	SessionFileName        = "last_session.json"
)

// Session records the most recent retrieval so positional feedback
// ("thumb up on result 2") can be resolved to a record ID later.
type Session struct {
	Query     string   `json:"query"`
	ResultIDs []string `json:"result_ids"`
	Timestamp string   `json:"timestamp"`
}

// SaveSession persists the session atomically.
func SaveSession(dir string, s *Session) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}
	path := filepath.Join(dir, SessionFileName)
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing session %s: %w", path, err)
	}
	return nil
}

// LoadSession reads the last session, nil when none exists.
func LoadSession(dir string) (*Session, error) {
	path := filepath.Join(dir, SessionFileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading session %s: %w", path, err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing session %s: %w", path, err)
	}
	return &s, nil
}
