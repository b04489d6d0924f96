package checkpoint

import (
	"os"
	"path/filepath"
	"testing"
)

func testRecord() *Record {
	return &Record{
		Images: map[string]ImageState{
			"R00_S00_r": {
				Detector: "R00_S00",
				Band:     "r",
				Rows:     2,
				Cols:     3,
				Pix:      []float64{1, 2, 3, 4, 5, 6},
			},
		},
		RNG:   []byte{0xde, 0xad, 0xbe, 0xef},
		Drawn: []uint64{7, 11, 42},
		Centroids: []CentroidEntry{
			{FileKey: "R00_S00", Band: "r", SourceID: 7, Flux: 123.5, XPix: 10.2, YPix: 88.4},
		},
	}
}

// TestWriteReadRoundTrip verifies that a record survives the write/read
// cycle intact.
func TestWriteReadRoundTrip(t *testing.T) {
	dir, err := os.MkdirTemp("", "checkpoint-test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	m := NewManager(filepath.Join(dir, "state.ckpt"), 100)
	want := testRecord()
	if err := m.Write(want); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	got, err := m.Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got == nil {
		t.Fatal("Read returned nil for an existing checkpoint")
	}
	img := got.Images["R00_S00_r"]
	if img.Detector != "R00_S00" || img.Rows != 2 || img.Cols != 3 {
		t.Errorf("Image state corrupted: %+v", img)
	}
	for i, v := range want.Images["R00_S00_r"].Pix {
		if img.Pix[i] != v {
			t.Errorf("Pixel %d: got %f, want %f", i, img.Pix[i], v)
		}
	}
	if len(got.Drawn) != 3 || got.Drawn[2] != 42 {
		t.Errorf("Drawn set corrupted: %v", got.Drawn)
	}
	if string(got.RNG) != string(want.RNG) {
		t.Errorf("RNG state corrupted: %v", got.RNG)
	}
	if len(got.Centroids) != 1 || got.Centroids[0].SourceID != 7 {
		t.Errorf("Centroid log corrupted: %+v", got.Centroids)
	}
}

// TestReadMissingFileIsFreshStart verifies that reading before any write
// yields (nil, nil).
func TestReadMissingFileIsFreshStart(t *testing.T) {
	dir, err := os.MkdirTemp("", "checkpoint-test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	m := NewManager(filepath.Join(dir, "absent.ckpt"), 100)
	rec, err := m.Read()
	if err != nil {
		t.Fatalf("Read of a missing checkpoint should not fail: %v", err)
	}
	if rec != nil {
		t.Errorf("Expected nil record for a missing checkpoint, got %+v", rec)
	}
}

// TestWriteIsAtomic verifies that a committed checkpoint replaces the
// previous one completely and leaves no temp files behind.
func TestWriteIsAtomic(t *testing.T) {
	dir, err := os.MkdirTemp("", "checkpoint-test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	m := NewManager(filepath.Join(dir, "state.ckpt"), 100)
	if err := m.Write(testRecord()); err != nil {
		t.Fatalf("First write failed: %v", err)
	}

	second := testRecord()
	second.Drawn = append(second.Drawn, 99)
	if err := m.Write(second); err != nil {
		t.Fatalf("Second write failed: %v", err)
	}

	got, err := m.Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(got.Drawn) != 4 || got.Drawn[3] != 99 {
		t.Errorf("Second write not visible: %v", got.Drawn)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected only the checkpoint file in %s, found %d entries", dir, len(entries))
	}

	info, err := os.Stat(m.Path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("Expected checkpoint mode 0600, got %v", info.Mode().Perm())
	}
}

// TestMaybeWriteHonorsCadence verifies the periodic trigger: only drawn
// counts on the cadence boundary (or a force) produce a file.
func TestMaybeWriteHonorsCadence(t *testing.T) {
	dir, err := os.MkdirTemp("", "checkpoint-test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	m := NewManager(filepath.Join(dir, "state.ckpt"), 10)
	builds := 0
	build := func() (*Record, error) {
		builds++
		return testRecord(), nil
	}

	if err := m.MaybeWrite(false, 7, build); err != nil {
		t.Fatalf("MaybeWrite failed: %v", err)
	}
	if builds != 0 {
		t.Error("Off-cadence count should not build a record")
	}
	if err := m.MaybeWrite(false, 20, build); err != nil {
		t.Fatalf("MaybeWrite failed: %v", err)
	}
	if builds != 1 {
		t.Errorf("On-cadence count should build exactly once, built %d times", builds)
	}
	if err := m.MaybeWrite(true, 7, build); err != nil {
		t.Fatalf("MaybeWrite failed: %v", err)
	}
	if builds != 2 {
		t.Errorf("Force should always build, built %d times", builds)
	}
}

// TestDisabledManagerIsNoOp verifies that an empty path disables every
// operation without errors.
func TestDisabledManagerIsNoOp(t *testing.T) {
	m := NewManager("", 10)
	if m.Enabled() {
		t.Error("Manager with empty path should be disabled")
	}
	if err := m.MaybeWrite(true, 0, func() (*Record, error) {
		t.Error("Disabled manager must not build records")
		return nil, nil
	}); err != nil {
		t.Errorf("Disabled MaybeWrite returned error: %v", err)
	}
	rec, err := m.Read()
	if err != nil || rec != nil {
		t.Errorf("Disabled Read should yield (nil, nil), got (%v, %v)", rec, err)
	}
}
