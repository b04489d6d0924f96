package visualization

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// TestRenderStretch verifies the orientation and ordering of the asinh
// stretch: bright pixels map brighter, row 0 lands at the image bottom.
func TestRenderStretch(t *testing.T) {
	pix := mat.NewDense(2, 2, []float64{
		100, 0, // row 0
		0, 10000, // row 1
	})
	img := NewViewer(pix, 50).Render()

	bounds := img.Bounds()
	if bounds.Dx() != 2 || bounds.Dy() != 2 {
		t.Fatalf("Expected a 2x2 image, got %v", bounds)
	}

	// Buffer row 0 is the bottom image row (y = 1).
	bottomLeft := img.Gray16At(0, 1).Y
	topRight := img.Gray16At(1, 0).Y
	if bottomLeft == 0 {
		t.Error("Bright buffer pixel rendered black")
	}
	if topRight != 65535 {
		t.Errorf("Brightest pixel should render white, got %d", topRight)
	}
	if bottomLeft >= topRight {
		t.Errorf("Stretch ordering violated: %d >= %d", bottomLeft, topRight)
	}
	if img.Gray16At(1, 1).Y != 0 {
		t.Error("Zero pixel should render black")
	}
}

// TestDefaultSoftening verifies the automatic knee stays positive for
// flat and empty buffers.
func TestDefaultSoftening(t *testing.T) {
	flat := mat.NewDense(4, 4, nil)
	if s := defaultSoftening(flat); s <= 0 {
		t.Errorf("Softening for a flat buffer must be positive, got %g", s)
	}
}

// TestSavePNG writes a quicklook and decodes it back.
func TestSavePNG(t *testing.T) {
	dir, err := os.MkdirTemp("", "quicklook-test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	pix := mat.NewDense(8, 16, nil)
	pix.Set(3, 7, 500)
	path := filepath.Join(dir, "nested", "quicklook.png")
	if err := NewViewer(pix, 0).SavePNG(path); err != nil {
		t.Fatalf("SavePNG failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open written PNG: %v", err)
	}
	defer f.Close()
	decoded, err := png.Decode(f)
	if err != nil {
		t.Fatalf("Failed to decode PNG: %v", err)
	}
	if decoded.Bounds().Dx() != 16 || decoded.Bounds().Dy() != 8 {
		t.Errorf("Decoded size %v, want 16x8", decoded.Bounds())
	}
}
