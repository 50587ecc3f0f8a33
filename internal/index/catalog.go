package index

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/google/renameio"

	"github.com/applyrag/applyrag/internal/record"
)

// Catalog is the in-memory record store backing search results:
// IDs come back from the indexes, payloads come from here.
type Catalog struct {
	mu      sync.RWMutex
	byID    map[string]*record.Record
	ordered []*record.Record
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{byID: make(map[string]*record.Record)}
}

// Replace swaps the catalog contents for the given records.
func (c *Catalog) Replace(records []*record.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byID = make(map[string]*record.Record, len(records))
	c.ordered = make([]*record.Record, 0, len(records))
	for _, r := range records {
		if _, dup := c.byID[r.AppID]; dup {
			continue
		}
		c.byID[r.AppID] = r
		c.ordered = append(c.ordered, r)
	}
}

// Get returns the record for an ID, nil if unknown.
func (c *Catalog) Get(id string) *record.Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.byID[id]
}

// All returns the records in insertion order.
func (c *Catalog) All() []*record.Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*record.Record, len(c.ordered))
	copy(out, c.ordered)
	return out
}

// Len returns the record count.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.ordered)
}

// Save writes the catalog as JSONL, atomically.
func (c *Catalog) Save(path string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var buf bytes.Buffer
	for _, r := range c.ordered {
		line, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("marshaling record %s: %w", r.AppID, err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	if err := renameio.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing catalog %s: %w", path, err)
	}
	return nil
}

// Load reads a JSONL catalog. Missing file leaves the catalog empty;
// malformed lines are logged and skipped.
func (c *Catalog) Load(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading catalog %s: %w", path, err)
	}

	var records []*record.Record
	for i, line := range bytes.Split(data, []byte{'\n'}) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var r record.Record
		if err := json.Unmarshal(line, &r); err != nil {
			slog.Warn("skipping malformed catalog line", "line", i+1, "error", err)
			continue
		}
		records = append(records, &r)
	}

	c.Replace(records)
	return nil
}
