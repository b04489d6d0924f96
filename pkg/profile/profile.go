// Package profile implements the light-profile side of the rendering
// engine: parametric surface-brightness distributions, PSF kernels, weak
// lensing, and photon shooting. The dispatch and sizing engine consumes
// profiles only through the Profile interface, so alternative engines can
// be substituted.
package profile

import (
	"errors"
	"math"

	"golang.org/x/exp/rand"
)

// DefaultFoldingThreshold is the fraction of total flux a profile is
// allowed to fold outside its natural rendering window. It matches the
// engine default used when no tighter threshold is requested for bright
// sources.
const DefaultFoldingThreshold = 0.005

// ErrNoPSF is returned when a point-source profile is requested with no
// PSF configured anywhere in the call chain. A point source has no
// intrinsic extent, so there is nothing to draw without one.
var ErrNoPSF = errors.New("cannot draw a point source without a PSF")

// Photon is one photon position in arcseconds relative to the profile
// center. Weights are uniform: a realized flux of n electrons shoots
// exactly n photons.
type Photon struct {
	X, Y float64
}

// Profile is the capability interface for a centered light distribution.
// Implementations are immutable; WithFlux returns a rescaled copy.
type Profile interface {
	// Flux returns the total flux in electrons.
	Flux() float64

	// WithFlux returns a copy of the profile scaled to the given flux.
	WithFlux(f float64) Profile

	// NaturalSize estimates the side length, in pixels at the given
	// plate scale, of a square window that keeps all but the folding
	// threshold's worth of flux. At pixelScale 1.0 the value reads as
	// arcseconds.
	NaturalSize(pixelScale float64) float64

	// SurfaceBrightnessAt returns the surface brightness at (x, y)
	// arcseconds from the profile center, in flux per square arcsecond.
	SurfaceBrightnessAt(x, y float64) float64

	// ShootPhotons draws n photon positions from the profile's
	// distribution using the supplied random stream.
	ShootPhotons(n int, rng *rand.Rand) []Photon
}

// lensMatrix returns the weak-lensing Jacobian for reduced shear (g1, g2)
// and magnification mu. Its determinant is mu; flux scales by mu as well,
// preserving surface brightness.
func lensMatrix(g1, g2, mu float64) (a11, a12, a21, a22 float64) {
	if mu <= 0 {
		mu = 1
	}
	g2sq := g1*g1 + g2*g2
	if g2sq >= 1 {
		// Unphysical shear; treat as unlensed rather than inverting the
		// image parity.
		return 1, 0, 0, 1
	}
	s := math.Sqrt(mu / (1 - g2sq))
	return s * (1 + g1), s * g2, s * g2, s * (1 - g1)
}

// shapeMatrix builds the area-preserving ellipse transform for an axis
// ratio q = minor/major at position angle beta (radians, measured the
// way the catalog measures it: beta = pi/2 + positionAngle).
func shapeMatrix(q, beta float64) (m11, m12, m21, m22 float64) {
	if q <= 0 || q > 1 {
		q = 1
	}
	c, s := math.Cos(beta), math.Sin(beta)
	// R(beta) * diag(1/sqrt(q), sqrt(q)) * R(-beta)
	a := 1 / math.Sqrt(q)
	b := math.Sqrt(q)
	m11 = c*c*a + s*s*b
	m22 = s*s*a + c*c*b
	m12 = c * s * (a - b)
	m21 = m12
	return m11, m12, m21, m22
}

func matMul(a11, a12, a21, a22, b11, b12, b21, b22 float64) (c11, c12, c21, c22 float64) {
	return a11*b11 + a12*b21, a11*b12 + a12*b22,
		a21*b11 + a22*b21, a21*b12 + a22*b22
}

func matDet(a11, a12, a21, a22 float64) float64 {
	return a11*a22 - a12*a21
}

func matInv(a11, a12, a21, a22 float64) (i11, i12, i21, i22 float64) {
	d := matDet(a11, a12, a21, a22)
	return a22 / d, -a12 / d, -a21 / d, a11 / d
}
