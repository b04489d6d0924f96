package profile

import (
	"errors"
	"math"
	"testing"

	"golang.org/x/exp/rand"

	"skysim/pkg/catalog"
)

func newTestRand(seed uint64) *rand.Rand {
	src := &rand.PCGSource{}
	src.Seed(seed)
	return rand.New(src)
}

// TestGaussianSurfaceBrightness checks the analytic peak value and the
// circular symmetry of a unit-flux Gaussian.
func TestGaussianSurfaceBrightness(t *testing.T) {
	sigma := 0.5
	g := NewCircularGaussian(sigma)

	wantPeak := 1 / (2 * math.Pi * sigma * sigma)
	if got := g.SurfaceBrightnessAt(0, 0); math.Abs(got-wantPeak) > 1e-12 {
		t.Errorf("Peak brightness %g, want %g", got, wantPeak)
	}
	a := g.SurfaceBrightnessAt(0.7, 0)
	b := g.SurfaceBrightnessAt(0, 0.7)
	c := g.SurfaceBrightnessAt(0.7/math.Sqrt2, 0.7/math.Sqrt2)
	if math.Abs(a-b) > 1e-12 || math.Abs(a-c) > 1e-12 {
		t.Errorf("Circular Gaussian is not symmetric: %g, %g, %g", a, b, c)
	}
}

// TestWithFluxScalesBrightnessLinearly verifies flux rescaling across
// profile kinds.
func TestWithFluxScalesBrightnessLinearly(t *testing.T) {
	profiles := map[string]Profile{
		"gaussian": NewCircularGaussian(0.5),
		"sersic":   NewSersic(1, 1.0, 0.7, 0.3, 0, 0, 1),
	}
	for name, p := range profiles {
		t.Run(name, func(t *testing.T) {
			base := p.WithFlux(1).SurfaceBrightnessAt(0.4, 0.1)
			scaled := p.WithFlux(250).SurfaceBrightnessAt(0.4, 0.1)
			if math.Abs(scaled-250*base) > 1e-9*scaled {
				t.Errorf("Flux 250 brightness %g, want %g", scaled, 250*base)
			}
		})
	}
}

// TestConvolveAddsCovariance checks that convolving two Gaussians yields
// the quadrature-sum width, via the natural-size estimate.
func TestConvolveAddsCovariance(t *testing.T) {
	a := NewCircularGaussian(0.3)
	b := NewCircularGaussian(0.4)
	conv := a.Convolve(b)

	// For single circular Gaussians the natural size is proportional to
	// sigma, so the convolution should behave like sigma = 0.5.
	want := NewCircularGaussian(0.5).NaturalSize(1.0)
	if got := conv.NaturalSize(1.0); math.Abs(got-want) > 1e-9 {
		t.Errorf("Convolved natural size %g, want %g", got, want)
	}
	if math.Abs(conv.Flux()-1) > 1e-12 {
		t.Errorf("Convolution changed the flux to %g", conv.Flux())
	}
}

// TestLensMagnificationScalesFlux verifies that magnification multiplies
// both area and flux, preserving surface brightness at the center.
func TestLensMagnificationScalesFlux(t *testing.T) {
	g := NewCircularGaussian(0.5).WithFlux(100).(*GaussianMixture)
	lensed := g.Lens(0, 0, 2)
	if math.Abs(lensed.Flux()-200) > 1e-9 {
		t.Errorf("Magnification 2 should double the flux, got %g", lensed.Flux())
	}
	center := g.SurfaceBrightnessAt(0, 0)
	if got := lensed.SurfaceBrightnessAt(0, 0); math.Abs(got-center) > 1e-9*center {
		t.Errorf("Lensing changed the central surface brightness: %g, want %g", got, center)
	}
}

// TestGaussianShootPhotons verifies the empirical spread of shot photons
// against the profile width.
func TestGaussianShootPhotons(t *testing.T) {
	sigma := 0.8
	g := NewCircularGaussian(sigma)
	photons := g.ShootPhotons(20000, newTestRand(17))
	if len(photons) != 20000 {
		t.Fatalf("Expected 20000 photons, got %d", len(photons))
	}

	var sumSq float64
	for _, ph := range photons {
		sumSq += ph.X * ph.X
	}
	got := math.Sqrt(sumSq / float64(len(photons)))
	if math.Abs(got-sigma) > 0.05*sigma {
		t.Errorf("Empirical photon sigma %g, want about %g", got, sigma)
	}
}

// TestSersicHalfLightRadius checks that about half the shot photons land
// inside the half-light radius of a circular profile.
func TestSersicHalfLightRadius(t *testing.T) {
	hlr := 1.5
	p := NewSersic(1, hlr, 1, 0, 0, 0, 1)
	photons := p.ShootPhotons(20000, newTestRand(29))

	inside := 0
	for _, ph := range photons {
		if math.Hypot(ph.X, ph.Y) <= hlr {
			inside++
		}
	}
	frac := float64(inside) / float64(len(photons))
	if math.Abs(frac-0.5) > 0.03 {
		t.Errorf("Fraction inside the half-light radius is %g, want about 0.5", frac)
	}
}

// TestRandomWalkReproducibleBySeed verifies that the clump realization
// depends only on the seed, not on the photon stream.
func TestRandomWalkReproducibleBySeed(t *testing.T) {
	a := NewRandomWalk(42, 50, 1.0, 1, 0, 0, 0, 1)
	b := NewRandomWalk(42, 50, 1.0, 1, 0, 0, 0, 1)
	c := NewRandomWalk(43, 50, 1.0, 1, 0, 0, 0, 1)

	sbA := a.SurfaceBrightnessAt(0.3, -0.2)
	sbB := b.SurfaceBrightnessAt(0.3, -0.2)
	if sbA != sbB {
		t.Errorf("Same seed produced different profiles: %g vs %g", sbA, sbB)
	}

	// Different seeds should place clumps differently; compare photon
	// landing positions under identical streams.
	pa := a.ShootPhotons(10, newTestRand(1))
	pc := c.ShootPhotons(10, newTestRand(1))
	same := true
	for i := range pa {
		if pa[i] != pc[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("Different seeds produced identical clump realizations")
	}
}

// TestImageStampPhotonsStayInside verifies photons from a stamp profile
// land within the stamp's extent.
func TestImageStampPhotonsStayInside(t *testing.T) {
	pix := [][]float64{
		{0, 1, 0},
		{1, 4, 1},
		{0, 1, 0},
	}
	p := NewImageStamp(pix, 0.2, 0, 0, 0, 1)
	photons := p.ShootPhotons(1000, newTestRand(5))

	// 3x3 grid at 0.2 arcsec/pixel spans +/- 0.3 arcsec.
	for _, ph := range photons {
		if math.Abs(ph.X) > 0.31 || math.Abs(ph.Y) > 0.31 {
			t.Fatalf("Photon (%g, %g) landed outside the stamp", ph.X, ph.Y)
		}
	}
}

// TestNewCenteredPointNeedsPSF verifies the error path for point sources
// without a configured PSF.
func TestNewCenteredPointNeedsPSF(t *testing.T) {
	src := &catalog.Source{
		ID:     1,
		Kind:   catalog.KindPoint,
		Mu:     1,
		Fluxes: map[string]float64{"r": 100},
	}
	if _, err := NewCentered(src, nil); !errors.Is(err, ErrNoPSF) {
		t.Errorf("Expected ErrNoPSF, got %v", err)
	}

	p, err := NewCentered(src, DoubleGaussianPSF{FWHMGeom: 0.8})
	if err != nil {
		t.Fatalf("NewCentered with a PSF failed: %v", err)
	}
	if p.NaturalSize(1.0) <= 0 {
		t.Error("Point source profile has no extent")
	}
}

// TestKolmogorovSeeingScalesWithAirmassAndColor checks the atmospheric
// scaling directions: more airmass broadens the kernel, redder bands
// narrow it.
func TestKolmogorovSeeingScalesWithAirmassAndColor(t *testing.T) {
	base := KolmogorovGaussianPSF{Airmass: 1.0, RawSeeing: 0.7, Band: "g"}
	high := KolmogorovGaussianPSF{Airmass: 1.8, RawSeeing: 0.7, Band: "g"}
	red := KolmogorovGaussianPSF{Airmass: 1.0, RawSeeing: 0.7, Band: "y"}

	baseSize := base.Kernel(0, 0).NaturalSize(1.0)
	if highSize := high.Kernel(0, 0).NaturalSize(1.0); highSize <= baseSize {
		t.Errorf("Higher airmass should broaden the PSF: %g <= %g", highSize, baseSize)
	}
	if redSize := red.Kernel(0, 0).NaturalSize(1.0); redSize >= baseSize {
		t.Errorf("Redder band should narrow the PSF: %g >= %g", redSize, baseSize)
	}
}

// TestTighterFoldingThresholdGrowsKernel verifies the bright-star sizing
// lever: a smaller folding threshold yields a larger natural size.
func TestTighterFoldingThresholdGrowsKernel(t *testing.T) {
	loose := KolmogorovGaussianPSF{Airmass: 1.2, RawSeeing: 0.7, Band: "r"}
	tight := KolmogorovGaussianPSF{Airmass: 1.2, RawSeeing: 0.7, Band: "r", FoldingThreshold: 1e-6}

	looseSize := loose.Kernel(0, 0).NaturalSize(0.2)
	tightSize := tight.Kernel(0, 0).NaturalSize(0.2)
	if tightSize <= looseSize {
		t.Errorf("Folding threshold 1e-6 should grow the kernel: %g <= %g", tightSize, looseSize)
	}
}
