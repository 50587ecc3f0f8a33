package memory

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/renameio"
)

// Persisted file names under the data dir.
const (
	EpisodicFileName = "memory_episodic.jsonl"
	SemanticFileName = "memory_semantic.jsonl"
)

// Store reads and writes the two memory tiers.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) episodicPath() string { return filepath.Join(s.dir, EpisodicFileName) }
func (s *Store) semanticPath() string { return filepath.Join(s.dir, SemanticFileName) }

// AppendEpisodic appends entries to the episodic log. The log is
// append-only; history is never rewritten.
func (s *Store) AppendEpisodic(entries ...EpisodicEntry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}
	f, err := os.OpenFile(s.episodicPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening episodic log: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, e := range entries {
		line, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshaling episodic entry: %w", err)
		}
		w.Write(line)
		w.WriteByte('\n')
	}
	return w.Flush()
}

// LoadEpisodic reads the full episodic log. A missing file is an empty
// log; malformed lines are logged and skipped.
func (s *Store) LoadEpisodic() ([]EpisodicEntry, error) {
	data, err := os.ReadFile(s.episodicPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading episodic log: %w", err)
	}

	var entries []EpisodicEntry
	for i, line := range bytes.Split(data, []byte{'\n'}) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var e EpisodicEntry
		if err := json.Unmarshal(line, &e); err != nil {
			slog.Warn("skipping malformed episodic line", "line", i+1, "error", err)
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// WriteSemantic replaces the semantic snapshot atomically. Unlike the
// episodic log, the snapshot always reflects current state only.
func (s *Store) WriteSemantic(entries []SemanticEntry) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}
	var buf bytes.Buffer
	for _, e := range entries {
		line, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshaling semantic entry: %w", err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	if err := renameio.WriteFile(s.semanticPath(), buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing semantic snapshot: %w", err)
	}
	return nil
}

// LoadSemantic reads the semantic snapshot. A missing file is empty;
// malformed lines are logged and skipped.
func (s *Store) LoadSemantic() ([]SemanticEntry, error) {
	data, err := os.ReadFile(s.semanticPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading semantic snapshot: %w", err)
	}

	var entries []SemanticEntry
	for i, line := range bytes.Split(data, []byte{'\n'}) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var e SemanticEntry
		if err := json.Unmarshal(line, &e); err != nil {
			slog.Warn("skipping malformed semantic line", "line", i+1, "error", err)
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}
