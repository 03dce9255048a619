// Package snapshot persists the per-twin JSON document that driver
// containers read through a bind mount. Drivers may add their own keys to
// the file, so a refresh merges into the existing document instead of
// replacing it.
package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"

	"github.com/moby/sys/atomicwriter"
)

const assetKey = "asset"

// Writer writes twin snapshots into a directory.
type Writer struct {
	dir string
	log *slog.Logger
}

func NewWriter(dir string) *Writer {
	return &Writer{dir: dir, log: slog.With("component", "snapshot")}
}

// Path returns the snapshot location for a twin.
func (w *Writer) Path(twinUUID string) string {
	return filepath.Join(w.dir, twinUUID+".json")
}

// Read returns the current snapshot for a twin.
func (w *Writer) Read(twinUUID string) (map[string]any, error) {
	data, err := os.ReadFile(w.Path(twinUUID))
	if err != nil {
		return nil, err
	}
	// Numbers stay json.Number so values a driver wrote are rewritten
	// exactly, including integers beyond float64 precision.
	var doc map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", twinUUID, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("parse snapshot %s: not a JSON object", twinUUID)
	}
	return doc, nil
}

// Write stores twinData with assetData embedded under "asset", merged on
// top of any existing snapshot. An unreadable existing snapshot is
// replaced.
func (w *Writer) Write(twinUUID string, twinData, assetData map[string]any) error {
	doc := maps.Clone(twinData)
	if doc == nil {
		doc = map[string]any{}
	}
	doc[assetKey] = assetData

	existing, err := w.Read(twinUUID)
	switch {
	case err == nil:
		doc = DeepMerge(existing, doc)
	case errors.Is(err, os.ErrNotExist):
	default:
		w.log.Warn("Could not read existing twin snapshot, overwriting.", "path", w.Path(twinUUID), "err", err)
	}

	data, err := json.MarshalIndent(Normalize(doc), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot %s: %w", twinUUID, err)
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	if err := atomicwriter.WriteFile(w.Path(twinUUID), data, 0o644); err != nil {
		return fmt.Errorf("write snapshot %s: %w", twinUUID, err)
	}
	return nil
}
