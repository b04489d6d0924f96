package profile

import (
	"math"
	"sort"

	"golang.org/x/exp/rand"
)

// ImageStampProfile interpolates a light distribution from a pixel grid,
// e.g. a cutout of a real observation. The stamp is centered on its own
// geometric center; rotation and weak lensing fold into one coordinate
// transform.
type ImageStampProfile struct {
	flux  float64
	pix   [][]float64
	w, h  int
	scale float64 // arcsec per stamp pixel
	sum   float64

	m11, m12, m21, m22 float64
	det                float64

	// cdf over row-major pixels, for photon sampling.
	cdf []float64
}

// NewImageStamp builds a unit-flux-normalized stamp profile rotated by
// rot radians, then lensed. Negative pixels contribute nothing.
func NewImageStamp(pix [][]float64, pixelScale, rot, g1, g2, mu float64) *ImageStampProfile {
	h := len(pix)
	w := len(pix[0])

	c, s := math.Cos(rot), math.Sin(rot)
	a11, a12, a21, a22 := lensMatrix(g1, g2, mu)
	m11, m12, m21, m22 := matMul(a11, a12, a21, a22, c, -s, s, c)
	if mu <= 0 {
		mu = 1
	}

	cdf := make([]float64, w*h)
	var sum float64
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := pix[y][x]
			if v > 0 {
				sum += v
			}
			cdf[y*w+x] = sum
		}
	}

	return &ImageStampProfile{
		flux:  mu,
		pix:   pix,
		w:     w,
		h:     h,
		scale: pixelScale,
		sum:   sum,
		m11:   m11, m12: m12, m21: m21, m22: m22,
		det: matDet(m11, m12, m21, m22),
		cdf: cdf,
	}
}

// Flux implements Profile.
func (p *ImageStampProfile) Flux() float64 { return p.flux }

// WithFlux implements Profile.
func (p *ImageStampProfile) WithFlux(f float64) Profile {
	out := *p
	out.flux = f
	return &out
}

// SurfaceBrightnessAt implements Profile with bilinear interpolation on
// the source grid.
func (p *ImageStampProfile) SurfaceBrightnessAt(x, y float64) float64 {
	if p.sum <= 0 {
		return 0
	}
	i11, i12, i21, i22 := matInv(p.m11, p.m12, p.m21, p.m22)
	u := i11*x + i12*y
	v := i21*x + i22*y

	// Stamp coordinates with (0,0) at the grid center.
	fx := u/p.scale + float64(p.w-1)/2
	fy := v/p.scale + float64(p.h-1)/2
	x0 := int(math.Floor(fx))
	y0 := int(math.Floor(fy))
	if x0 < -1 || x0 >= p.w || y0 < -1 || y0 >= p.h {
		return 0
	}
	tx := fx - float64(x0)
	ty := fy - float64(y0)

	at := func(xi, yi int) float64 {
		if xi < 0 || xi >= p.w || yi < 0 || yi >= p.h {
			return 0
		}
		v := p.pix[yi][xi]
		if v < 0 {
			return 0
		}
		return v
	}
	val := at(x0, y0)*(1-tx)*(1-ty) +
		at(x0+1, y0)*tx*(1-ty) +
		at(x0, y0+1)*(1-tx)*ty +
		at(x0+1, y0+1)*tx*ty

	perPixel := p.flux / p.sum
	return val * perPixel / (p.scale * p.scale * math.Abs(p.det))
}

// NaturalSize implements Profile: the stamp has hard support, so the
// natural window is its stretched diagonal.
func (p *ImageStampProfile) NaturalSize(pixelScale float64) float64 {
	diag := math.Hypot(float64(p.w), float64(p.h)) * p.scale
	stretch := math.Sqrt(math.Abs(p.det))
	if stretch < 1 {
		stretch = 1
	}
	return diag * stretch / pixelScale
}

// ShootPhotons implements Profile: pixels are drawn in proportion to
// their flux, photon positions uniform within the pixel.
func (p *ImageStampProfile) ShootPhotons(n int, rng *rand.Rand) []Photon {
	photons := make([]Photon, n)
	if p.sum <= 0 {
		return photons
	}
	for i := 0; i < n; i++ {
		target := rng.Float64() * p.sum
		idx := sort.SearchFloat64s(p.cdf, target)
		if idx >= len(p.cdf) {
			idx = len(p.cdf) - 1
		}
		px := idx % p.w
		py := idx / p.w
		u := (float64(px) - float64(p.w-1)/2 + rng.Float64() - 0.5) * p.scale
		v := (float64(py) - float64(p.h-1)/2 + rng.Float64() - 0.5) * p.scale
		photons[i] = Photon{
			X: p.m11*u + p.m12*v,
			Y: p.m21*u + p.m22*v,
		}
	}
	return photons
}
