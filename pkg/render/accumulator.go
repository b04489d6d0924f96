// Package render implements the source-to-detector dispatch and adaptive
// postage-stamp sizing engine: deciding which detectors a source
// illuminates, sizing a minimal rendering window, realizing stochastic
// photon counts per band, accumulating stamps into per-detector buffers,
// and checkpointing the session state across restarts.
package render

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"skysim/pkg/geom"
)

// Image is one render target: the accumulated pixel buffer for a
// (detector, band) pair. Pixels are stored row-major in a dense matrix
// whose (row, col) = (y - YMin, x - XMin).
type Image struct {
	Det  *geom.Detector
	Band string
	Pix  *mat.Dense
}

// Bounds returns the image's absolute pixel rectangle, which is exactly
// its detector's pixel bounds.
func (im *Image) Bounds() geom.Bounds { return im.Det.PixBounds }

// AddAt accumulates v into the pixel at absolute coordinates (x, y),
// which must lie within the image bounds.
func (im *Image) AddAt(x, y int, v float64) {
	row := y - im.Det.PixBounds.YMin
	col := x - im.Det.PixBounds.XMin
	im.Pix.Set(row, col, im.Pix.At(row, col)+v)
}

// Sum returns the total accumulated signal, mostly useful in tests.
func (im *Image) Sum() float64 {
	return mat.Sum(im.Pix)
}

// TargetKey builds the map key identifying one render target. Keys are
// 1:1 with (detector, band) pairs actually touched.
func TargetKey(det *geom.Detector, band string) string {
	return det.FileKey() + "_" + band
}

// BackgroundAdder injects sky background and noise into a freshly
// created buffer. It runs exactly once per render target.
type BackgroundAdder interface {
	AddNoiseAndBackground(pix *mat.Dense, det *geom.Detector, band string, rng *rand.Rand) error
}

// FlatSkyBackground adds a uniform sky level per pixel, optionally with
// Poisson shot noise drawn from the session's random stream.
type FlatSkyBackground struct {
	// LevelPerPixel is the mean sky level in electrons per pixel, per band.
	LevelPerPixel map[string]float64

	// ShotNoise replaces the flat level with per-pixel Poisson draws.
	ShotNoise bool
}

// AddNoiseAndBackground implements BackgroundAdder.
func (b FlatSkyBackground) AddNoiseAndBackground(pix *mat.Dense, det *geom.Detector, band string, rng *rand.Rand) error {
	level := b.LevelPerPixel[band]
	if level <= 0 {
		return nil
	}
	rows, cols := pix.Dims()
	if !b.ShotNoise {
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				pix.Set(r, c, pix.At(r, c)+level)
			}
		}
		return nil
	}
	pois := distuv.Poisson{Lambda: level, Src: rng}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			pix.Set(r, c, pix.At(r, c)+pois.Rand())
		}
	}
	return nil
}

// Accumulator owns the mapping from render-target keys to pixel buffers.
// Buffers are created lazily on first touch and live for the whole
// session; background injection happens exactly once per target.
type Accumulator struct {
	images map[string]*Image
	order  []string // creation order, for deterministic output iteration

	// blanks caches a zero buffer per detector. Constructing a buffer
	// (geometry checks plus coordinate-mapping setup) is measurably more
	// expensive than copying one, so the cache is consulted first and a
	// copy returned to avoid aliasing.
	blanks map[string]*mat.Dense

	background BackgroundAdder
	rng        *rand.Rand
}

// NewAccumulator builds an empty accumulator. background may be nil, in
// which case new buffers start at zero signal.
func NewAccumulator(background BackgroundAdder, rng *rand.Rand) *Accumulator {
	return &Accumulator{
		images:     make(map[string]*Image),
		blanks:     make(map[string]*mat.Dense),
		background: background,
		rng:        rng,
	}
}

// blankImage returns a fresh zero buffer sized to the detector, via the
// blank-image cache.
func (a *Accumulator) blankImage(det *geom.Detector) *mat.Dense {
	if cached, ok := a.blanks[det.Name]; ok {
		var out mat.Dense
		out.CloneFrom(cached)
		return &out
	}
	blank := mat.NewDense(det.PixBounds.Height(), det.PixBounds.Width(), nil)
	a.blanks[det.Name] = blank
	var out mat.Dense
	out.CloneFrom(blank)
	return &out
}

// Get returns the buffer for (det, band), creating it on first access
// and applying the background injection at that moment. The second return reports
// whether this call created the target.
func (a *Accumulator) Get(det *geom.Detector, band string) (*Image, bool, error) {
	key := TargetKey(det, band)
	if img, ok := a.images[key]; ok {
		return img, false, nil
	}
	img := &Image{Det: det, Band: band, Pix: a.blankImage(det)}
	if a.background != nil {
		if err := a.background.AddNoiseAndBackground(img.Pix, det, band, a.rng); err != nil {
			return nil, false, fmt.Errorf("add background to %s: %w", key, err)
		}
	}
	a.images[key] = img
	a.order = append(a.order, key)
	return img, true, nil
}

// Lookup returns an already-created target without creating one.
func (a *Accumulator) Lookup(det *geom.Detector, band string) (*Image, bool) {
	img, ok := a.images[TargetKey(det, band)]
	return img, ok
}

// Restore reinstates a target from persisted raw pixels: a fresh blank
// buffer from current-run geometry plus the saved array. No background
// is injected; it is already baked into the persisted pixels.
func (a *Accumulator) Restore(det *geom.Detector, band string, pix []float64, rows, cols int) error {
	if rows != det.PixBounds.Height() || cols != det.PixBounds.Width() {
		return fmt.Errorf("checkpoint image for %s is %dx%d, detector wants %dx%d",
			det.Name, rows, cols, det.PixBounds.Height(), det.PixBounds.Width())
	}
	if len(pix) != rows*cols {
		return fmt.Errorf("checkpoint image for %s has %d pixels, want %d", det.Name, len(pix), rows*cols)
	}
	key := TargetKey(det, band)
	img := &Image{Det: det, Band: band, Pix: a.blankImage(det)}
	img.Pix.Add(img.Pix, mat.NewDense(rows, cols, append([]float64(nil), pix...)))
	if _, exists := a.images[key]; !exists {
		a.order = append(a.order, key)
	}
	a.images[key] = img
	return nil
}

// Accumulate adds a stamp into the buffer sub-region given by window.
// The window must already be intersected with the image bounds; feeding
// an uncontained window is a programming error, not a recoverable
// condition.
func (a *Accumulator) Accumulate(img *Image, stamp *mat.Dense, window geom.Bounds) {
	if !img.Bounds().Contains(window) {
		panic(fmt.Sprintf("render: stamp window %v not contained in image bounds %v", window, img.Bounds()))
	}
	rows, cols := stamp.Dims()
	if rows != window.Height() || cols != window.Width() {
		panic(fmt.Sprintf("render: stamp is %dx%d but window %v wants %dx%d",
			rows, cols, window, window.Height(), window.Width()))
	}
	r0 := window.YMin - img.Det.PixBounds.YMin
	c0 := window.XMin - img.Det.PixBounds.XMin
	sub := img.Pix.Slice(r0, r0+rows, c0, c0+cols).(*mat.Dense)
	sub.Add(sub, stamp)
}

// Images returns all render targets in creation order.
func (a *Accumulator) Images() []*Image {
	out := make([]*Image, len(a.order))
	for i, key := range a.order {
		out[i] = a.images[key]
	}
	return out
}

// Len returns the number of render targets created so far.
func (a *Accumulator) Len() int { return len(a.order) }
