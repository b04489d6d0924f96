// Package catalog defines the celestial-source data model handed to the
// rendering core: positions on the pupil plane, light-profile parameters,
// per-band fluxes, lensing terms, and spectral energy distributions.
// Sources are immutable once constructed; the rendering session borrows
// them for the duration of a single draw call.
package catalog

import (
	"fmt"

	"skysim/internal/units"
)

// Kind identifies one of the closed set of light-profile families.
// Unknown kinds are rejected when a source is validated, not at draw time.
type Kind int

const (
	// KindPoint is an unresolved source: the profile is the PSF itself.
	KindPoint Kind = iota

	// KindSersic is a parametric galaxy profile.
	KindSersic

	// KindRandomWalk is a clumpy profile built from a seeded cloud of
	// point emitters.
	KindRandomWalk

	// KindImageStamp is an interpolated pixel-grid profile.
	KindImageStamp
)

// String returns the catalog-facing name of the profile kind.
func (k Kind) String() string {
	switch k {
	case KindPoint:
		return "pointSource"
	case KindSersic:
		return "sersic"
	case KindRandomWalk:
		return "randomWalk"
	case KindImageStamp:
		return "imageStamp"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// KindFromString parses a catalog profile-kind name.
func KindFromString(s string) (Kind, error) {
	switch s {
	case "pointSource", "point":
		return KindPoint, nil
	case "sersic":
		return KindSersic, nil
	case "randomWalk", "RandomWalk":
		return KindRandomWalk, nil
	case "imageStamp", "FitsImage":
		return KindImageStamp, nil
	}
	return 0, fmt.Errorf("unrecognized profile kind %q", s)
}

// SersicParams describes a parametric galaxy profile. The on-sky ellipse
// is given by major/minor axes and a position angle; the half-light
// radius refers to the circularized profile.
type SersicParams struct {
	Index                 float64 // Sersic index n
	HalfLightRadiusArcsec float64
	MajorAxisRad          float64
	MinorAxisRad          float64
	PositionAngleRad      float64
}

// RandomWalkParams describes a clumpy profile of NPoints emitters whose
// envelope matches a profile with the given half-light radius. The point
// realization is seeded by the source's unique id so a catalog renders
// reproducibly.
type RandomWalkParams struct {
	NPoints               int
	HalfLightRadiusArcsec float64
	MajorAxisRad          float64
	MinorAxisRad          float64
	PositionAngleRad      float64
}

// ImageStampParams describes a profile interpolated from a pixel grid,
// e.g. a postage stamp cut from a real observation.
type ImageStampParams struct {
	// Pixels holds rows of surface-brightness samples; all rows must
	// have equal length.
	Pixels [][]float64

	// PixelScale is the grid's plate scale in arcseconds per pixel.
	PixelScale float64

	// RotationRad rotates the stamp counterclockwise.
	RotationRad float64
}

// Source is one astronomical object to render.
type Source struct {
	// ID is globally unique and stable across restarts; the drawn-object
	// bookkeeping keys on it.
	ID uint64

	// Pupil-plane position in arcseconds.
	XPupilArcsec float64
	YPupilArcsec float64

	// Kind selects the profile family; exactly the matching params
	// pointer below must be set for extended kinds.
	Kind Kind

	Sersic     *SersicParams
	RandomWalk *RandomWalkParams
	ImageStamp *ImageStampParams

	// Weak-lensing reduced shear and magnification.
	G1, G2 float64
	Mu     float64

	// Fluxes holds the nominal per-band mean flux in electrons.
	Fluxes map[string]float64

	// SED is the source spectrum, consumed by the sensor-model draw
	// strategy's wavelength sampler. May be nil for the basic strategy.
	SED *SED
}

// XPupilRadians returns the x pupil position in radians.
func (s *Source) XPupilRadians() float64 {
	return units.RadiansFromArcsec(s.XPupilArcsec)
}

// YPupilRadians returns the y pupil position in radians.
func (s *Source) YPupilRadians() float64 {
	return units.RadiansFromArcsec(s.YPupilArcsec)
}

// Flux returns the nominal mean flux for one band, zero when the band is
// not listed.
func (s *Source) Flux(band string) float64 {
	return s.Fluxes[band]
}

// Validate checks that the profile kind is known and its parameter block
// is present and sane. Configuration errors surface here, at catalog
// construction, rather than mid-exposure.
func (s *Source) Validate() error {
	switch s.Kind {
	case KindPoint:
		return nil
	case KindSersic:
		if s.Sersic == nil {
			return fmt.Errorf("source %d: sersic profile without parameters", s.ID)
		}
		if s.Sersic.Index <= 0 || s.Sersic.HalfLightRadiusArcsec <= 0 {
			return fmt.Errorf("source %d: sersic index and half-light radius must be positive", s.ID)
		}
		if s.Sersic.MajorAxisRad <= 0 || s.Sersic.MinorAxisRad <= 0 {
			return fmt.Errorf("source %d: sersic axes must be positive", s.ID)
		}
		return nil
	case KindRandomWalk:
		if s.RandomWalk == nil {
			return fmt.Errorf("source %d: randomWalk profile without parameters", s.ID)
		}
		if s.RandomWalk.NPoints <= 0 || s.RandomWalk.HalfLightRadiusArcsec <= 0 {
			return fmt.Errorf("source %d: randomWalk needs positive npoints and half-light radius", s.ID)
		}
		return nil
	case KindImageStamp:
		if s.ImageStamp == nil || len(s.ImageStamp.Pixels) == 0 {
			return fmt.Errorf("source %d: imageStamp profile without pixel data", s.ID)
		}
		if s.ImageStamp.PixelScale <= 0 {
			return fmt.Errorf("source %d: imageStamp needs a positive pixel scale", s.ID)
		}
		w := len(s.ImageStamp.Pixels[0])
		for _, row := range s.ImageStamp.Pixels {
			if len(row) != w {
				return fmt.Errorf("source %d: imageStamp rows have unequal length", s.ID)
			}
		}
		return nil
	}
	return fmt.Errorf("source %d: unrecognized profile kind %v", s.ID, s.Kind)
}
