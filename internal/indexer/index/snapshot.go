package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/compliance-search/pkg/errors"
)

// SnapshotVersion is the schema version written to and accepted from disk.
const SnapshotVersion = 1

// Document is the on-disk JSON snapshot of every TypeIndex. Inverted sets
// are stored as sorted arrays.
type Document struct {
	Version         int                                       `json:"version"`
	SavedAt         time.Time                                 `json:"saved_at"`
	Indices         map[string]map[string]map[string][]string `json:"indices"`
	InvertedIndices map[string]map[string][]string            `json:"inverted_indices"`
}

// NewDocument captures indices keyed by record type name.
func NewDocument(indices map[string]*TypeIndex, savedAt time.Time) *Document {
	doc := &Document{
		Version:         SnapshotVersion,
		SavedAt:         savedAt.UTC(),
		Indices:         make(map[string]map[string]map[string][]string, len(indices)),
		InvertedIndices: make(map[string]map[string][]string, len(indices)),
	}
	for name, ti := range indices {
		fwd := make(map[string]map[string][]string, len(ti.Forward))
		for key, fields := range ti.Forward {
			fwd[key] = fields
		}
		doc.Indices[name] = fwd

		inv := make(map[string][]string, len(ti.Inverted))
		for token, keys := range ti.Inverted {
			list := make([]string, 0, len(keys))
			for k := range keys {
				list = append(list, k)
			}
			sort.Strings(list)
			inv[token] = list
		}
		doc.InvertedIndices[name] = inv
	}
	return doc
}

// TypeIndices rebuilds the indices held in doc. Inverted sets are derived
// from the forward entries so the result always satisfies the key/token
// closure.
func (d *Document) TypeIndices() map[string]*TypeIndex {
	out := make(map[string]*TypeIndex, len(d.Indices))
	for name, fwd := range d.Indices {
		ti := New()
		for key, fields := range fwd {
			ti.Put(key, Fields(fields))
		}
		out[name] = ti
	}
	return out
}

// WriteFile writes doc to path through a temp file and rename.
func WriteFile(path string, doc *Document) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp snapshot file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("syncing snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming snapshot into place: %w", err)
	}
	return nil
}

// ReadFile loads a snapshot. Undecodable content and unknown versions are
// reported as ErrIndexCorrupt.
func ReadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot %s: %w", path, err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", apperrors.ErrIndexCorrupt, path, err)
	}
	if doc.Version != SnapshotVersion {
		return nil, fmt.Errorf("%w: %s has version %d, want %d",
			apperrors.ErrIndexCorrupt, path, doc.Version, SnapshotVersion)
	}
	if doc.Indices == nil {
		return nil, fmt.Errorf("%w: %s has no indices", apperrors.ErrIndexCorrupt, path)
	}
	return &doc, nil
}
