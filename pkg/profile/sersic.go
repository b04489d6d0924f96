package profile

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mathext"
	"gonum.org/v1/gonum/stat/distuv"
)

// SersicProfile is the standard parametric galaxy profile
// I(r) = Ie * exp(-b_n * ((r/Re)^(1/n) - 1)) on an elliptical radius.
// The on-sky ellipse and any weak-lensing distortion are folded into a
// single linear coordinate transform applied to a circular profile.
type SersicProfile struct {
	flux float64
	n    float64
	re   float64 // circularized half-light radius, arcsec

	bn float64

	// m maps circular-profile coordinates onto the sky.
	m11, m12, m21, m22 float64
	det                float64
}

// NewSersic builds a circularized Sersic profile of unit flux with
// ellipticity q = minor/major at position angle beta, then applies weak
// lensing (g1, g2, mu). Flux scales by mu.
func NewSersic(n, halfLightRadius, q, beta, g1, g2, mu float64) *SersicProfile {
	s11, s12, s21, s22 := shapeMatrix(q, beta)
	a11, a12, a21, a22 := lensMatrix(g1, g2, mu)
	m11, m12, m21, m22 := matMul(a11, a12, a21, a22, s11, s12, s21, s22)
	if mu <= 0 {
		mu = 1
	}
	return &SersicProfile{
		flux: mu,
		n:    n,
		re:   halfLightRadius,
		bn:   sersicB(n),
		m11:  m11, m12: m12, m21: m21, m22: m22,
		det: matDet(m11, m12, m21, m22),
	}
}

// sersicB approximates the b_n normalization constant that puts half the
// flux inside the half-light radius.
func sersicB(n float64) float64 {
	return 2*n - 1.0/3.0 + 4.0/(405.0*n) + 46.0/(25515.0*n*n)
}

// Flux implements Profile.
func (p *SersicProfile) Flux() float64 { return p.flux }

// WithFlux implements Profile.
func (p *SersicProfile) WithFlux(f float64) Profile {
	out := *p
	out.flux = f
	return &out
}

// SurfaceBrightnessAt implements Profile.
func (p *SersicProfile) SurfaceBrightnessAt(x, y float64) float64 {
	i11, i12, i21, i22 := matInv(p.m11, p.m12, p.m21, p.m22)
	u := i11*x + i12*y
	v := i21*x + i22*y
	r := math.Hypot(u, v)

	// Total flux of exp(-bn ((r/Re)^(1/n) - 1)) is
	// Ie * Re^2 * 2*pi*n * e^bn * bn^(-2n) * Gamma(2n).
	norm := p.re * p.re * 2 * math.Pi * p.n * math.Exp(p.bn) *
		math.Pow(p.bn, -2*p.n) * math.Gamma(2*p.n)
	ie := p.flux / (norm * math.Abs(p.det))
	return ie * math.Exp(-p.bn*(math.Pow(r/p.re, 1/p.n)-1))
}

// NaturalSize implements Profile. The enclosed-flux fraction inside
// elliptical radius r is the regularized lower incomplete gamma
// P(2n, b_n (r/Re)^(1/n)), so the radius keeping all but the folding
// threshold solves P(2n, x) = 1 - ft.
func (p *SersicProfile) NaturalSize(pixelScale float64) float64 {
	target := 1 - DefaultFoldingThreshold
	lo, hi := p.bn, p.bn
	for mathext.GammaIncReg(2*p.n, hi) < target {
		hi *= 2
	}
	for i := 0; i < 60 && hi-lo > 1e-12*hi; i++ {
		mid := (lo + hi) / 2
		if mathext.GammaIncReg(2*p.n, mid) < target {
			lo = mid
		} else {
			hi = mid
		}
	}
	r := p.re * math.Pow(hi/p.bn, p.n)
	// Stretch by the largest singular value of the sky transform.
	r *= p.maxStretch()
	return 2 * r / pixelScale
}

// maxStretch returns the largest singular value of the coordinate
// transform, bounding how far the ellipse extends on the sky.
func (p *SersicProfile) maxStretch() float64 {
	// Largest eigenvalue of M M^T.
	xx := p.m11*p.m11 + p.m12*p.m12
	xy := p.m11*p.m21 + p.m12*p.m22
	yy := p.m21*p.m21 + p.m22*p.m22
	tr := xx + yy
	det := xx*yy - xy*xy
	disc := tr*tr/4 - det
	if disc < 0 {
		disc = 0
	}
	return math.Sqrt(tr/2 + math.Sqrt(disc))
}

// ShootPhotons implements Profile. The radial CDF in the variable
// x = b_n (r/Re)^(1/n) is a Gamma(2n) distribution, so radii come from a
// Gamma draw mapped back through r = Re (x/b_n)^n.
func (p *SersicProfile) ShootPhotons(n int, rng *rand.Rand) []Photon {
	gamma := distuv.Gamma{Alpha: 2 * p.n, Beta: 1, Src: rng}
	photons := make([]Photon, n)
	for i := 0; i < n; i++ {
		x := gamma.Rand()
		r := p.re * math.Pow(x/p.bn, p.n)
		theta := 2 * math.Pi * rng.Float64()
		u := r * math.Cos(theta)
		v := r * math.Sin(theta)
		photons[i] = Photon{
			X: p.m11*u + p.m12*v,
			Y: p.m21*u + p.m22*v,
		}
	}
	return photons
}
