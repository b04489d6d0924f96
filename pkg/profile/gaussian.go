package profile

import (
	"math"

	"golang.org/x/exp/rand"
)

// gaussComponent is one elliptical Gaussian in a mixture: a flux fraction
// and a 2x2 covariance in square arcseconds.
type gaussComponent struct {
	frac          float64
	cxx, cxy, cyy float64
}

// GaussianMixture is a sum of elliptical Gaussians. PSF kernels and
// point-source profiles are mixtures; it is also the analytic convolution
// partner for extended profiles (a Gaussian convolved with a Gaussian is
// a Gaussian with summed covariances).
type GaussianMixture struct {
	flux  float64
	comps []gaussComponent

	// foldingThreshold controls NaturalSize. Sizing for bright stars
	// tightens it below DefaultFoldingThreshold.
	foldingThreshold float64
}

// NewCircularGaussian returns a unit-flux circular Gaussian with the
// given sigma in arcseconds.
func NewCircularGaussian(sigma float64) *GaussianMixture {
	return &GaussianMixture{
		flux:             1,
		comps:            []gaussComponent{{frac: 1, cxx: sigma * sigma, cyy: sigma * sigma}},
		foldingThreshold: DefaultFoldingThreshold,
	}
}

// NewGaussianMixture builds a mixture from (fraction, sigma) pairs. The
// fractions are normalized to one.
func NewGaussianMixture(fracs, sigmas []float64) *GaussianMixture {
	var total float64
	for _, f := range fracs {
		total += f
	}
	comps := make([]gaussComponent, len(fracs))
	for i := range fracs {
		comps[i] = gaussComponent{
			frac: fracs[i] / total,
			cxx:  sigmas[i] * sigmas[i],
			cyy:  sigmas[i] * sigmas[i],
		}
	}
	return &GaussianMixture{flux: 1, comps: comps, foldingThreshold: DefaultFoldingThreshold}
}

// Flux implements Profile.
func (g *GaussianMixture) Flux() float64 { return g.flux }

// WithFlux implements Profile.
func (g *GaussianMixture) WithFlux(f float64) Profile {
	out := *g
	out.flux = f
	return &out
}

// withFoldingThreshold returns a copy sized against a different folding
// threshold. Used by the stamp sizer for bright point sources.
func (g *GaussianMixture) withFoldingThreshold(ft float64) *GaussianMixture {
	out := *g
	if ft > 0 {
		out.foldingThreshold = ft
	}
	return &out
}

// transform applies the linear map A to the mixture: C' = A C A^T.
// The caller accounts for any flux change.
func (g *GaussianMixture) transform(a11, a12, a21, a22 float64) {
	for i, c := range g.comps {
		// A C
		t11 := a11*c.cxx + a12*c.cxy
		t12 := a11*c.cxy + a12*c.cyy
		t21 := a21*c.cxx + a22*c.cxy
		t22 := a21*c.cxy + a22*c.cyy
		// (A C) A^T
		g.comps[i].cxx = t11*a11 + t12*a12
		g.comps[i].cxy = t11*a21 + t12*a22
		g.comps[i].cyy = t21*a21 + t22*a22
	}
}

// Lens applies weak-lensing shear and magnification, returning a new
// mixture with flux scaled by mu.
func (g *GaussianMixture) Lens(g1, g2, mu float64) *GaussianMixture {
	out := *g
	out.comps = append([]gaussComponent(nil), g.comps...)
	a11, a12, a21, a22 := lensMatrix(g1, g2, mu)
	out.transform(a11, a12, a21, a22)
	if mu > 0 {
		out.flux *= mu
	}
	return &out
}

// Convolve returns the analytic convolution of two mixtures: the
// cross-product of components with covariances summed.
func (g *GaussianMixture) Convolve(o *GaussianMixture) *GaussianMixture {
	comps := make([]gaussComponent, 0, len(g.comps)*len(o.comps))
	for _, a := range g.comps {
		for _, b := range o.comps {
			comps = append(comps, gaussComponent{
				frac: a.frac * b.frac,
				cxx:  a.cxx + b.cxx,
				cxy:  a.cxy + b.cxy,
				cyy:  a.cyy + b.cyy,
			})
		}
	}
	ft := g.foldingThreshold
	if o.foldingThreshold < ft {
		ft = o.foldingThreshold
	}
	return &GaussianMixture{flux: g.flux * o.flux, comps: comps, foldingThreshold: ft}
}

// SurfaceBrightnessAt implements Profile.
func (g *GaussianMixture) SurfaceBrightnessAt(x, y float64) float64 {
	var sb float64
	for _, c := range g.comps {
		det := c.cxx*c.cyy - c.cxy*c.cxy
		if det <= 0 {
			continue
		}
		// Quadratic form x^T C^-1 x.
		q := (c.cyy*x*x - 2*c.cxy*x*y + c.cxx*y*y) / det
		sb += g.flux * c.frac / (2 * math.Pi * math.Sqrt(det)) * math.Exp(-0.5*q)
	}
	return sb
}

// maxSigma returns the largest 1-sigma extent of any component, the
// square root of the dominant covariance eigenvalue.
func (g *GaussianMixture) maxSigma() float64 {
	var worst float64
	for _, c := range g.comps {
		tr := c.cxx + c.cyy
		det := c.cxx*c.cyy - c.cxy*c.cxy
		disc := tr*tr/4 - det
		if disc < 0 {
			disc = 0
		}
		lambda := tr/2 + math.Sqrt(disc)
		if lambda > worst {
			worst = lambda
		}
	}
	return math.Sqrt(worst)
}

// NaturalSize implements Profile. A 2-D Gaussian keeps a fraction ft of
// its flux outside radius sigma*sqrt(-2 ln ft).
func (g *GaussianMixture) NaturalSize(pixelScale float64) float64 {
	r := g.maxSigma() * math.Sqrt(-2*math.Log(g.foldingThreshold))
	return 2 * r / pixelScale
}

// ShootPhotons implements Profile.
func (g *GaussianMixture) ShootPhotons(n int, rng *rand.Rand) []Photon {
	photons := make([]Photon, n)
	for i := 0; i < n; i++ {
		c := g.pick(rng)
		// Cholesky factor of the component covariance.
		l11 := math.Sqrt(c.cxx)
		var l21, l22 float64
		if l11 > 0 {
			l21 = c.cxy / l11
			d := c.cyy - l21*l21
			if d > 0 {
				l22 = math.Sqrt(d)
			}
		}
		z1, z2 := rng.NormFloat64(), rng.NormFloat64()
		photons[i] = Photon{X: l11 * z1, Y: l21*z1 + l22*z2}
	}
	return photons
}

func (g *GaussianMixture) pick(rng *rand.Rand) gaussComponent {
	if len(g.comps) == 1 {
		return g.comps[0]
	}
	u := rng.Float64()
	var acc float64
	for _, c := range g.comps {
		acc += c.frac
		if u < acc {
			return c
		}
	}
	return g.comps[len(g.comps)-1]
}
