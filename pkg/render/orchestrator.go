package render

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"skysim/pkg/catalog"
	"skysim/pkg/checkpoint"
	"skysim/pkg/geom"
	"skysim/pkg/profile"
)

// NoDetectors is the sentinel dispatch string returned when a source
// illuminates no detector.
const NoDetectors = "none"

// DefaultConservativeFactor scales the natural profile size when
// dispatching a source to detectors. It is deliberately wider than
// necessary: missing partial illumination at a detector edge is worse
// than testing a too-large box, and a sharper window is computed later
// once the realized flux is known.
const DefaultConservativeFactor = 10.0

// Options configures a rendering session.
type Options struct {
	// Bands lists the filters to realize and draw, in a fixed order;
	// the order is part of the deterministic RNG consumption sequence.
	Bands []string

	// Bandpasses supplies filter curves for the sensor-model strategy's
	// wavelength sampler, keyed by band name.
	Bandpasses map[string]*catalog.Bandpass

	// PSF convolves extended profiles and realizes point sources. May be
	// nil, in which case drawing a point source fails.
	PSF profile.PSF

	// Background injects sky background/noise into new buffers. May be nil.
	Background BackgroundAdder

	// Seed initializes the session's single sequential random stream.
	Seed uint64

	// Checkpoint persists session state; nil or an empty path disables.
	Checkpoint *checkpoint.Manager

	// CentroidBase, when non-empty, enables centroid logging with this
	// file-name prefix.
	CentroidBase string

	// SkyBGPerPixel feeds the stamp sizer's surface-brightness floors.
	SkyBGPerPixel float64

	// PixelScale and MaxStampSide tune the stamp sizer; zero values take
	// the defaults.
	PixelScale   float64
	MaxStampSide int

	// ConservativeFactor overrides DefaultConservativeFactor when positive.
	ConservativeFactor float64

	// ApplySensorModel selects the windowed, per-photon sensor draw
	// strategy instead of the whole-buffer one.
	ApplySensorModel bool
}

// Orchestrator drives the per-source draw protocol. Exactly one
// orchestrator serves one (observation, detectors, bands) session; it
// exclusively owns the accumulator, drawn set, centroid log, and random
// stream, and is not safe for concurrent use. Total output is a
// deterministic function of (seed, source-processing order): reordering
// sources changes results, an accepted property of the sequential
// photon-noise stream.
type Orchestrator struct {
	obs       *catalog.Observation
	detectors []*geom.Detector
	detByName map[string]*geom.Detector
	bands     []string

	psf      profile.PSF
	src      *rand.PCGSource
	rng      *rand.Rand
	acc      *Accumulator
	sizer    *StampSizer
	strategy drawStrategy

	conservativeFactor float64

	drawn        map[uint64]struct{}
	centroids    []checkpoint.CentroidEntry
	centroidBase string

	ckpt *checkpoint.Manager
}

// New constructs a rendering session. Supplying no detectors or no bands
// is a configuration error raised here, not at draw time.
func New(obs *catalog.Observation, detectors []*geom.Detector, opts Options) (*Orchestrator, error) {
	if len(detectors) == 0 {
		return nil, fmt.Errorf("render: will not create images with no detectors")
	}
	if len(opts.Bands) == 0 {
		return nil, fmt.Errorf("render: no bands configured")
	}

	src := &rand.PCGSource{}
	src.Seed(opts.Seed)
	rng := rand.New(src)

	factor := opts.ConservativeFactor
	if factor <= 0 {
		factor = DefaultConservativeFactor
	}

	o := &Orchestrator{
		obs:                obs,
		detectors:          detectors,
		detByName:          make(map[string]*geom.Detector, len(detectors)),
		bands:              append([]string(nil), opts.Bands...),
		psf:                opts.PSF,
		src:                src,
		rng:                rng,
		sizer:              NewStampSizer(obs, opts.SkyBGPerPixel, opts.PixelScale, opts.MaxStampSide),
		conservativeFactor: factor,
		drawn:              make(map[uint64]struct{}),
		centroidBase:       opts.CentroidBase,
		ckpt:               opts.Checkpoint,
	}
	o.acc = NewAccumulator(opts.Background, rng)
	for _, d := range detectors {
		if _, dup := o.detByName[d.Name]; dup {
			return nil, fmt.Errorf("render: duplicate detector name %q", d.Name)
		}
		o.detByName[d.Name] = d
	}
	if opts.ApplySensorModel {
		o.strategy = newSensorStrategy(opts.Bandpasses)
	} else {
		o.strategy = wholeBufferStrategy{}
	}
	return o, nil
}

// Accumulator exposes the session's image state, mostly for output
// writing and tests.
func (o *Orchestrator) Accumulator() *Accumulator { return o.acc }

// DrawnCount returns the number of sources attempted so far.
func (o *Orchestrator) DrawnCount() int { return len(o.drawn) }

// FindAffectedDetectors intersects a conservative bounding box around
// the source against every known detector. The box side is the centered
// profile's natural size in arcseconds scaled by conservativeFactor.
//
// It returns the qualifying detectors, a human-readable "//"-joined name
// string (NoDetectors when empty), and the centered profile for reuse
// downstream. An empty detector list is a valid, non-error outcome: the
// object is simply off-frame.
func (o *Orchestrator) FindAffectedDetectors(src *catalog.Source, conservativeFactor float64) (string, []*geom.Detector, profile.Profile, error) {
	centered, err := profile.NewCentered(src, o.psf)
	if err != nil {
		return "", nil, nil, err
	}

	// pixelScale 1.0 makes the natural size read in arcseconds.
	sizeArcsec := centered.NaturalSize(1.0) * conservativeFactor
	xMax := src.XPupilArcsec + sizeArcsec/2
	xMin := src.XPupilArcsec - sizeArcsec/2
	yMax := src.YPupilArcsec + sizeArcsec/2
	yMin := src.YPupilArcsec - sizeArcsec/2

	var names []string
	var hits []*geom.Detector
	for _, d := range o.detectors {
		xOverlaps := math.Min(xMax, d.XMaxArcsec) > math.Max(xMin, d.XMinArcsec)
		yOverlaps := math.Min(yMax, d.YMaxArcsec) > math.Max(yMin, d.YMinArcsec)
		if xOverlaps && yOverlaps {
			names = append(names, d.Name)
			hits = append(hits, d)
		}
	}
	if len(hits) == 0 {
		return NoDetectors, nil, centered, nil
	}
	return strings.Join(names, "//"), hits, centered, nil
}

// RealizeFluxes converts each band's mean flux into a Poisson-sampled
// photon count, consuming from the session stream in band order.
func (o *Orchestrator) RealizeFluxes(src *catalog.Source) []float64 {
	out := make([]float64, len(o.bands))
	for i, band := range o.bands {
		mean := src.Flux(band)
		if mean <= 0 {
			continue
		}
		out[i] = distuv.Poisson{Lambda: mean, Src: o.rng}.Rand()
	}
	return out
}

// DrawSource runs the full per-source protocol: dispatch, flux
// realization, target initialization, per-band/per-detector drawing, and
// the checkpoint cadence check. It returns the dispatch string naming
// the detectors the source illuminates.
//
// A source id already present in the drawn set is a no-op: resumption
// after restore never re-accumulates.
func (o *Orchestrator) DrawSource(src *catalog.Source) (string, error) {
	if _, done := o.drawn[src.ID]; done {
		return "", nil
	}

	dispatch, hits, centered, err := o.FindAffectedDetectors(src, o.conservativeFactor)
	if err != nil {
		return "", err
	}

	// Mark the source drawn before flux realization: "drawn" means
	// attempted, so a crash-restart never re-attempts a source even when
	// it produced nothing.
	o.drawn[src.ID] = struct{}{}

	realized := o.RealizeFluxes(src)
	allZero := true
	for _, f := range realized {
		if f > 0 {
			allZero = false
			break
		}
	}
	if allZero {
		return dispatch, nil
	}
	if len(hits) == 0 {
		return dispatch, nil
	}

	if err := o.openTargets(hits); err != nil {
		return dispatch, err
	}

	defer o.strategy.finishSource()
	for i, band := range o.bands {
		if realized[i] <= 0 {
			continue
		}
		for _, det := range hits {
			img, ok := o.acc.Lookup(det, band)
			if !ok {
				// openTargets created every (hit, band) pair.
				panic(fmt.Sprintf("render: target %s missing after initialization", TargetKey(det, band)))
			}
			xPix, yPix := det.WCS.PixelFromPupil(src.XPupilRadians(), src.YPupilRadians())
			drew, err := o.strategy.draw(o, img, src, centered, realized[i], band, xPix, yPix)
			if err != nil {
				return dispatch, err
			}
			if o.centroidBase != "" && drew {
				o.centroids = append(o.centroids, checkpoint.CentroidEntry{
					FileKey:  det.FileKey(),
					Band:     band,
					SourceID: src.ID,
					Flux:     src.Flux(band),
					XPix:     xPix,
					YPix:     yPix,
				})
			}
		}
	}

	if err := o.MaybeCheckpoint(false); err != nil {
		return dispatch, err
	}
	return dispatch, nil
}

// openTargets initializes every (detector, band) buffer this source
// touches. Each newly created target forces an out-of-cadence checkpoint
// immediately after its background injection, so the expensive noise
// computation is never redone after a crash.
func (o *Orchestrator) openTargets(hits []*geom.Detector) error {
	for _, det := range hits {
		for _, band := range o.bands {
			_, created, err := o.acc.Get(det, band)
			if err != nil {
				return err
			}
			if created {
				if err := o.MaybeCheckpoint(true); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// MaybeCheckpoint runs the cadence check, writing a snapshot when forced
// or when the drawn-object count lands on the cadence boundary.
func (o *Orchestrator) MaybeCheckpoint(force bool) error {
	if o.ckpt == nil {
		return nil
	}
	return o.ckpt.MaybeWrite(force, len(o.drawn), o.snapshot)
}

// snapshot packages the session state into a checkpoint record. Raw
// pixel arrays are persisted rather than buffer objects, which hold
// coordinate-transform handles that do not serialize.
func (o *Orchestrator) snapshot() (*checkpoint.Record, error) {
	rngState, err := o.src.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal rng state: %w", err)
	}

	images := make(map[string]checkpoint.ImageState, o.acc.Len())
	for _, img := range o.acc.Images() {
		rows, cols := img.Pix.Dims()
		raw := make([]float64, rows*cols)
		for r := 0; r < rows; r++ {
			copy(raw[r*cols:(r+1)*cols], img.Pix.RawRowView(r))
		}
		images[TargetKey(img.Det, img.Band)] = checkpoint.ImageState{
			Detector: img.Det.Name,
			Band:     img.Band,
			Rows:     rows,
			Cols:     cols,
			Pix:      raw,
		}
	}

	drawn := make([]uint64, 0, len(o.drawn))
	for id := range o.drawn {
		drawn = append(drawn, id)
	}
	sort.Slice(drawn, func(i, j int) bool { return drawn[i] < drawn[j] })

	return &checkpoint.Record{
		Images:    images,
		RNG:       rngState,
		Drawn:     drawn,
		Centroids: append([]checkpoint.CentroidEntry(nil), o.centroids...),
	}, nil
}

// Restore loads the last committed checkpoint, if any, rebuilding each
// buffer from the current run's detector geometry and repopulating the
// random stream, drawn set, and centroid log. A missing checkpoint is a
// normal fresh start.
func (o *Orchestrator) Restore() error {
	if o.ckpt == nil {
		return nil
	}
	rec, err := o.ckpt.Read()
	if err != nil {
		return err
	}
	if rec == nil {
		return nil
	}

	// Recreate targets in a deterministic order; the key set is small.
	keys := make([]string, 0, len(rec.Images))
	for key := range rec.Images {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		st := rec.Images[key]
		det, ok := o.detByName[st.Detector]
		if !ok {
			return fmt.Errorf("checkpoint names detector %q not present in this run", st.Detector)
		}
		if err := o.acc.Restore(det, st.Band, st.Pix, st.Rows, st.Cols); err != nil {
			return err
		}
	}

	if len(rec.RNG) > 0 {
		if err := o.src.UnmarshalBinary(rec.RNG); err != nil {
			return fmt.Errorf("restore rng state: %w", err)
		}
	}
	o.drawn = make(map[uint64]struct{}, len(rec.Drawn))
	for _, id := range rec.Drawn {
		o.drawn[id] = struct{}{}
	}
	o.centroids = append([]checkpoint.CentroidEntry(nil), rec.Centroids...)
	return nil
}
