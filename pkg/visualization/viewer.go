// Package visualization renders accumulated exposure buffers to
// quicklook PNG images for eyeballing a simulation run without FITS
// tooling. Output is 16-bit grayscale with an asinh stretch, which keeps
// faint sky structure visible next to bright stars.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"
)

// Viewer converts one pixel buffer into displayable images.
type Viewer struct {
	// pix holds the accumulated exposure, row-major, in electrons.
	pix *mat.Dense

	// softening is the asinh stretch knee in electrons; values below it
	// map roughly linearly, values above it logarithmically.
	softening float64
}

// NewViewer creates a viewer for a pixel buffer. A non-positive
// softening picks a knee from the buffer's own statistics.
func NewViewer(pix *mat.Dense, softening float64) *Viewer {
	if softening <= 0 {
		softening = defaultSoftening(pix)
	}
	return &Viewer{pix: pix, softening: softening}
}

// defaultSoftening estimates a stretch knee as the buffer mean plus one
// standard deviation, so the sky level sits in the linear regime.
func defaultSoftening(pix *mat.Dense) float64 {
	rows, cols := pix.Dims()
	n := float64(rows * cols)
	if n == 0 {
		return 1
	}
	mean := mat.Sum(pix) / n
	var sumSq float64
	for r := 0; r < rows; r++ {
		for _, v := range pix.RawRowView(r) {
			d := v - mean
			sumSq += d * d
		}
	}
	s := mean + math.Sqrt(sumSq/n)
	if s <= 0 {
		return 1
	}
	return s
}

// Render converts the buffer into a 16-bit grayscale image. Pixel row 0
// is drawn at the bottom, matching the FITS orientation convention.
func (v *Viewer) Render() *image.Gray16 {
	rows, cols := v.pix.Dims()
	img := image.NewGray16(image.Rect(0, 0, cols, rows))

	// Normalize by the stretched maximum so the brightest pixel is white.
	maxStretched := 0.0
	for r := 0; r < rows; r++ {
		for _, val := range v.pix.RawRowView(r) {
			if s := stretch(val, v.softening); s > maxStretched {
				maxStretched = s
			}
		}
	}
	if maxStretched == 0 {
		maxStretched = 1
	}

	for r := 0; r < rows; r++ {
		for c, val := range v.pix.RawRowView(r) {
			level := stretch(val, v.softening) / maxStretched
			gray := uint16(math.Max(0, math.Min(65535, level*65535)))
			img.SetGray16(c, rows-1-r, color.Gray16{Y: gray})
		}
	}
	return img
}

// stretch applies the asinh mapping; negative pixels clamp to zero.
func stretch(v, softening float64) float64 {
	if v <= 0 {
		return 0
	}
	return math.Asinh(v / softening)
}

// SavePNG renders the buffer and writes it to path, creating parent
// directories as needed.
func (v *Viewer) SavePNG(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create image file: %w", err)
	}
	defer f.Close()

	if err := png.Encode(f, v.Render()); err != nil {
		return fmt.Errorf("failed to encode PNG: %w", err)
	}
	return nil
}
