package bandit

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/google/renameio"
)

// ArmsFileName is the persisted arm map file under the data dir.
const ArmsFileName = "rlhf_arms.json"

// Load reads the arm map from dir. A missing file yields a fresh model.
// A corrupt file is logged and treated as empty rather than failing the
// session: the model is advisory, retrieval must keep working.
func Load(dir string, rng *rand.Rand) *Model {
	m := NewModel(rng)

	path := filepath.Join(dir, ArmsFileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return m
	}
	if err != nil {
		slog.Warn("failed to read arm map, starting fresh", "path", path, "error", err)
		return m
	}

	var persisted struct {
		Arms map[string]*Arm `json:"arms"`
	}
	if err := json.Unmarshal(data, &persisted); err != nil {
		slog.Warn("arm map corrupt, starting fresh", "path", path, "error", err)
		return m
	}
	for name, a := range persisted.Arms {
		if a == nil || a.Alpha <= 0 || a.Beta <= 0 {
			slog.Warn("dropping invalid arm", "arm", name)
			continue
		}
		a.Name = name
		m.Arms[name] = a
	}
	return m
}

// Save writes the arm map atomically via a temp file and rename, so a
// crash mid-write never leaves a truncated file behind.
func (m *Model) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}
	data, err := json.MarshalIndent(struct {
		Arms map[string]*Arm `json:"arms"`
	}{Arms: m.Arms}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling arm map: %w", err)
	}
	path := filepath.Join(dir, ArmsFileName)
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing arm map %s: %w", path, err)
	}
	return nil
}
