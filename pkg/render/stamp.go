package render

import (
	"fmt"
	"math"

	"skysim/pkg/catalog"
	"skysim/pkg/geom"
	"skysim/pkg/profile"
)

// Stamp sizing constants. The walk factor and its caps are empirically
// tuned; they are part of the engine's observable behavior and must not
// drift casually.
const (
	// faintStampSide is used whenever the realized flux is below
	// faintFluxLimit: near-invisible sources are not worth sizing
	// precisely.
	faintStampSide = 32
	faintFluxLimit = 10

	// walkFactor is the multiplicative step of the surface-brightness
	// walk; walkCeiling and walkFloor bound the hunted size in pixels.
	walkFactor  = 1.1
	walkCeiling = 4096
	walkFloor   = 64

	// DefaultMaxStampSide bounds stamp memory at the nominal
	// surface-brightness floor: 1400^2 pixels times a 72-vertex sensor
	// model times 8 bytes per vertex stays around 1 GB.
	DefaultMaxStampSide = 1400

	// DefaultStampPixelScale is the CCD plate scale in arcsec per pixel
	// assumed by the sizer.
	DefaultStampPixelScale = 0.2
)

// StampSizer computes minimal square rendering windows that keep a
// source's flux above a surface-brightness floor without wasting memory
// or compute on negligible wings.
type StampSizer struct {
	// Obs supplies the seeing parameters for the fast point-source
	// sizing PSF.
	Obs *catalog.Observation

	// SkyBGPerPixel is the sky background level in electrons per pixel,
	// used to tighten the folding threshold for bright stars.
	SkyBGPerPixel float64

	// PixelScale is the plate scale in arcsec per pixel.
	PixelScale float64

	// MaxSide caps the stamp side at the nominal floor; larger requests
	// are recomputed at the relaxed floor.
	MaxSide int

	// proxy is the cached fast double-Gaussian PSF used to size extended
	// objects. An accurate PSF must never be evaluated point-by-point
	// merely to size a stamp.
	proxy profile.PSF
}

// NewStampSizer builds a sizer with the given observation metadata.
// Non-positive pixelScale and maxSide fall back to the defaults.
func NewStampSizer(obs *catalog.Observation, skyBGPerPixel, pixelScale float64, maxSide int) *StampSizer {
	if pixelScale <= 0 {
		pixelScale = DefaultStampPixelScale
	}
	if maxSide <= 0 {
		maxSide = DefaultMaxStampSide
	}
	fwhm := obs.FWHMGeom
	if fwhm <= 0 {
		fwhm = obs.RawSeeing
	}
	if fwhm <= 0 {
		fwhm = 0.8
	}
	return &StampSizer{
		Obs:           obs,
		SkyBGPerPixel: skyBGPerPixel,
		PixelScale:    pixelScale,
		MaxSide:       maxSide,
		proxy:         profile.DoubleGaussianPSF{FWHMGeom: fwhm},
	}
}

// KeepSurfaceBrightness returns the nominal per-pixel floor: one third of
// the Poisson noise per pixel from the sky background.
func (z *StampSizer) KeepSurfaceBrightness() float64 {
	return math.Sqrt(z.SkyBGPerPixel) / 3
}

// StampBounds sizes the postage stamp for one draw of src at the given
// realized flux and pixel position.
//
// Faint sources get a fixed 32x32 window. Point sources are sized from a
// fast Kolmogorov+Gaussian proxy whose folding threshold tightens when
// skyBG/flux drops below the engine default, so bright stars do not clip
// real flux. Extended profiles start from the engine's natural size
// estimate under the double-Gaussian proxy; bright objects (more than 10
// photons per pixel on average) are refined by the surface-brightness
// walk at keepSB, and results above MaxSide are recomputed at the
// relaxed floor and clamped to at least MaxSide.
//
// The caller must intersect the returned bounds with the target buffer;
// an empty intersection is a valid no-op outcome.
func (z *StampSizer) StampBounds(src *catalog.Source, realizedFlux, xPix, yPix, keepSB, relaxedSB float64) (geom.Bounds, error) {
	size, err := z.stampSide(src, realizedFlux, keepSB, relaxedSB)
	if err != nil {
		return geom.Bounds{}, err
	}
	half := float64(size) / 2
	return geom.Bounds{
		XMin: int(math.Floor(xPix - half)),
		XMax: int(math.Ceil(xPix + half)),
		YMin: int(math.Floor(yPix - half)),
		YMax: int(math.Ceil(yPix + half)),
	}, nil
}

func (z *StampSizer) stampSide(src *catalog.Source, flux, keepSB, relaxedSB float64) (int, error) {
	if flux < faintFluxLimit {
		return faintStampSide, nil
	}

	if src.Kind == catalog.KindPoint {
		// Tighten the folding threshold for bright stars so the sizing
		// PSF keeps enough of its wings.
		ft := z.SkyBGPerPixel / flux
		if ft >= profile.DefaultFoldingThreshold {
			ft = 0 // engine default
		}
		psf := profile.KolmogorovGaussianPSF{
			Airmass:          z.Obs.Airmass(),
			RawSeeing:        z.Obs.RawSeeing,
			Band:             z.Obs.Band,
			FoldingThreshold: ft,
		}
		obj := psf.Kernel(src.XPupilArcsec, src.YPupilArcsec)
		return int(math.Ceil(obj.NaturalSize(z.PixelScale))), nil
	}

	// Extended profiles: rebuild under the fast proxy PSF and scale to
	// the realized flux.
	obj, err := profile.NewCentered(src, z.proxy)
	if err != nil {
		return 0, fmt.Errorf("size stamp for source %d: %w", src.ID, err)
	}
	obj = obj.WithFlux(flux)

	size := int(math.Ceil(obj.NaturalSize(z.PixelScale)))

	// Bright objects risk truncating real surface brightness at the box
	// edge; hunt for the edge where brightness falls below the floor.
	if flux > 10*float64(size)*float64(size) {
		size = goodPhotImageSize(obj, keepSB, z.PixelScale)
	}

	// Huge stamps get scaled back to the relaxed floor, bounding memory.
	if size > z.MaxSide {
		size = goodPhotImageSize(obj, relaxedSB, z.PixelScale)
		if size < z.MaxSide {
			size = z.MaxSide
		}
	}
	return size, nil
}

// goodPhotImageSize hunts for the side length N of the square window
// outside which obj's surface brightness stays below keepSB.
//
// Starting from the engine's natural size, N grows by walkFactor while
// any of the 8 edge/corner samples of the current box sits above the
// floor (capped at walkCeiling), then shrinks by the inverse factor
// while the next smaller box stays entirely below it (floored at
// walkFloor). The grow phase protects real flux; the shrink phase stops
// paying for negligible wings.
func goodPhotImageSize(obj profile.Profile, keepSB, pixelScale float64) int {
	n := obj.NaturalSize(pixelScale)

	for n < walkCeiling {
		if edgeMax(obj, n/2*pixelScale) < keepSB {
			break
		}
		n *= walkFactor
	}
	if n > walkCeiling {
		n = walkCeiling
	}

	for n >= walkFloor*walkFactor {
		if edgeMax(obj, n/(2*walkFactor)*pixelScale) > keepSB {
			break
		}
		n /= walkFactor
	}
	return int(n)
}

// edgeMax samples the profile at the 4 edge midpoints and 4 corners of
// the square with half-side h (arcsec) and returns the largest value.
func edgeMax(obj profile.Profile, h float64) float64 {
	samples := [8]float64{
		obj.SurfaceBrightnessAt(h, 0),
		obj.SurfaceBrightnessAt(-h, 0),
		obj.SurfaceBrightnessAt(0, h),
		obj.SurfaceBrightnessAt(0, -h),
		obj.SurfaceBrightnessAt(h, h),
		obj.SurfaceBrightnessAt(h, -h),
		obj.SurfaceBrightnessAt(-h, h),
		obj.SurfaceBrightnessAt(-h, -h),
	}
	worst := samples[0]
	for _, v := range samples[1:] {
		if v > worst {
			worst = v
		}
	}
	return worst
}
