package profile

import (
	"math"

	"golang.org/x/exp/rand"
)

// hlrToSigma converts a Gaussian half-light radius to sigma:
// HLR = sigma * sqrt(2 ln 2).
const hlrToSigma = 1 / 1.1774100225154747

// RandomWalkProfile is a clumpy light distribution: a fixed cloud of
// point emitters whose envelope matches a Gaussian of the requested
// half-light radius. The cloud is realized once, from a generator seeded
// with the source's unique id, so the same catalog renders identically
// across runs and restarts.
type RandomWalkProfile struct {
	flux   float64
	points []Photon

	// envelope approximates the cloud for surface-brightness sampling
	// and window sizing.
	envelope *GaussianMixture
}

// NewRandomWalk realizes npoints emitters for the given seed, shapes the
// cloud by axis ratio q at angle beta, and applies weak lensing.
func NewRandomWalk(seed uint64, npoints int, halfLightRadius, q, beta, g1, g2, mu float64) *RandomWalkProfile {
	s11, s12, s21, s22 := shapeMatrix(q, beta)
	a11, a12, a21, a22 := lensMatrix(g1, g2, mu)
	m11, m12, m21, m22 := matMul(a11, a12, a21, a22, s11, s12, s21, s22)
	if mu <= 0 {
		mu = 1
	}

	sigma := halfLightRadius * hlrToSigma
	src := rand.NewSource(seed)
	rng := rand.New(src)
	points := make([]Photon, npoints)
	for i := range points {
		u := sigma * rng.NormFloat64()
		v := sigma * rng.NormFloat64()
		points[i] = Photon{
			X: m11*u + m12*v,
			Y: m21*u + m22*v,
		}
	}

	env := NewCircularGaussian(sigma)
	env.transform(m11, m12, m21, m22)
	env.flux = mu

	return &RandomWalkProfile{flux: mu, points: points, envelope: env}
}

// Flux implements Profile.
func (p *RandomWalkProfile) Flux() float64 { return p.flux }

// WithFlux implements Profile.
func (p *RandomWalkProfile) WithFlux(f float64) Profile {
	out := *p
	out.flux = f
	out.envelope = p.envelope.WithFlux(f).(*GaussianMixture)
	return &out
}

// SurfaceBrightnessAt implements Profile via the Gaussian envelope; the
// stamp sizer only needs the scale on which flux becomes negligible, not
// the individual clumps.
func (p *RandomWalkProfile) SurfaceBrightnessAt(x, y float64) float64 {
	return p.envelope.SurfaceBrightnessAt(x, y)
}

// NaturalSize implements Profile. The cloud cannot extend past its
// farthest emitter, so take the larger of the envelope estimate and the
// actual point extent.
func (p *RandomWalkProfile) NaturalSize(pixelScale float64) float64 {
	size := p.envelope.NaturalSize(pixelScale)
	var rmax float64
	for _, pt := range p.points {
		r := math.Hypot(pt.X, pt.Y)
		if r > rmax {
			rmax = r
		}
	}
	if ext := 2 * rmax / pixelScale; ext > size {
		size = ext
	}
	return size
}

// ShootPhotons implements Profile: each photon lands on a uniformly
// chosen emitter.
func (p *RandomWalkProfile) ShootPhotons(n int, rng *rand.Rand) []Photon {
	photons := make([]Photon, n)
	for i := 0; i < n; i++ {
		photons[i] = p.points[rng.Intn(len(p.points))]
	}
	return photons
}
