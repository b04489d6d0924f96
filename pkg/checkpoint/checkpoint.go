// Package checkpoint persists and restores the rendering session's
// accumulated state: raw pixel arrays, the random-number-generator
// state, the set of already-drawn source ids, and the pending centroid
// log. Writes are atomic: a reader never observes a partially written
// checkpoint, and a crash mid-write leaves the previous checkpoint (or
// none) intact.
package checkpoint

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultCadence is the number of drawn objects between checkpoint
// writes when no other cadence is configured.
const DefaultCadence = 1000

// ImageState is the persistable part of one render target: the raw pixel
// array plus enough identity to rebuild the buffer from current-run
// detector geometry. Coordinate transforms and sensor models are not
// persisted; callers re-supply them on restore.
type ImageState struct {
	Detector string
	Band     string
	Rows     int
	Cols     int
	Pix      []float64
}

// CentroidEntry is one (source, detector, band) draw record, appended in
// visitation order and preserved through checkpoint/restore.
type CentroidEntry struct {
	FileKey  string
	Band     string
	SourceID uint64
	Flux     float64
	XPix     float64
	YPix     float64
}

// Record is a complete session snapshot.
type Record struct {
	Images    map[string]ImageState
	RNG       []byte
	Drawn     []uint64
	Centroids []CentroidEntry
}

// Manager owns the checkpoint file location and write cadence. A Manager
// with an empty Path turns every operation into a no-op, so callers do
// not special-case unconfigured checkpointing.
type Manager struct {
	// Path is the final checkpoint location; empty disables.
	Path string

	// Cadence is the drawn-object interval between periodic writes.
	Cadence int
}

// NewManager returns a Manager with the default cadence when n <= 0.
func NewManager(path string, cadence int) *Manager {
	if cadence <= 0 {
		cadence = DefaultCadence
	}
	return &Manager{Path: path, Cadence: cadence}
}

// Enabled reports whether a checkpoint location is configured.
func (m *Manager) Enabled() bool { return m != nil && m.Path != "" }

// MaybeWrite persists a snapshot when forced or when the drawn-object
// count has reached the cadence boundary. The record is built lazily so
// callers do not serialize buffers on the common no-op path.
func (m *Manager) MaybeWrite(force bool, drawnCount int, build func() (*Record, error)) error {
	if !m.Enabled() {
		return nil
	}
	if !force && drawnCount%m.Cadence != 0 {
		return nil
	}
	rec, err := build()
	if err != nil {
		return err
	}
	return m.Write(rec)
}

// Write serializes the record to a temporary file in the checkpoint
// directory, forces it to durable storage, sets restrictive permissions,
// and atomically renames it over the final path.
func (m *Manager) Write(rec *Record) error {
	if !m.Enabled() {
		return nil
	}
	dir := filepath.Dir(m.Path)
	tmp, err := os.CreateTemp(dir, ".checkpoint-*")
	if err != nil {
		return fmt.Errorf("create checkpoint temp file: %w", err)
	}
	tmpName := tmp.Name()
	// Clean up the temp file on any failure before the rename.
	defer os.Remove(tmpName)

	if err := gob.NewEncoder(tmp).Encode(rec); err != nil {
		tmp.Close()
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync checkpoint: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close checkpoint: %w", err)
	}
	if err := os.Rename(tmpName, m.Path); err != nil {
		return fmt.Errorf("commit checkpoint: %w", err)
	}
	return nil
}

// Read loads the last committed record. A missing file, or no
// configured path, yields (nil, nil): starting fresh is the normal
// first-run outcome, not an error.
func (m *Manager) Read() (*Record, error) {
	if !m.Enabled() {
		return nil, nil
	}
	f, err := os.Open(m.Path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open checkpoint: %w", err)
	}
	defer f.Close()

	var rec Record
	if err := gob.NewDecoder(f).Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	return &rec, nil
}
