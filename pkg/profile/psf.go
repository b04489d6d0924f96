package profile

import "math"

// fwhmToSigma converts a Gaussian full width at half maximum to sigma.
const fwhmToSigma = 1 / 2.3548200450309493

// PSF supplies a unit-flux point-spread kernel at a pupil position.
// Kernels are Gaussian mixtures so that convolution with extended
// profiles stays cheap; an expensive PSF implementation must never be
// evaluated pixel-by-pixel just to size a postage stamp.
type PSF interface {
	Kernel(xPupilArcsec, yPupilArcsec float64) *GaussianMixture
}

// DoubleGaussianPSF is the fast documentation-standard seeing model: a
// core Gaussian carrying 10/11 of the flux plus a halo of twice the width
// carrying the rest.
type DoubleGaussianPSF struct {
	// FWHMGeom is the geometric seeing FWHM in arcseconds.
	FWHMGeom float64
}

// Kernel implements PSF. The kernel does not vary across the pupil.
func (p DoubleGaussianPSF) Kernel(xPupilArcsec, yPupilArcsec float64) *GaussianMixture {
	sigma := p.FWHMGeom * fwhmToSigma
	return NewGaussianMixture(
		[]float64{10.0 / 11.0, 1.0 / 11.0},
		[]float64{sigma, 2 * sigma},
	)
}

// effectiveWavelengthNM gives the filter effective wavelengths used to
// scale atmospheric seeing with color.
var effectiveWavelengthNM = map[string]float64{
	"u": 365.49,
	"g": 480.03,
	"r": 622.20,
	"i": 754.06,
	"z": 868.21,
	"y": 991.66,
}

// KolmogorovGaussianPSF approximates a Kolmogorov atmosphere combined
// with a Gaussian instrument term. It is cheap to evaluate and therefore
// the proxy of choice when sizing stamps for bright stars, where the
// folding threshold must be tightened below the engine default.
type KolmogorovGaussianPSF struct {
	Airmass   float64
	RawSeeing float64 // zenith 500nm FWHM, arcsec
	Band      string

	// FoldingThreshold overrides DefaultFoldingThreshold when positive.
	FoldingThreshold float64

	// InstrumentFWHM is the non-atmospheric FWHM in arcseconds added in
	// quadrature. Defaults to 0.4 when zero.
	InstrumentFWHM float64
}

// Kernel implements PSF.
func (p KolmogorovGaussianPSF) Kernel(xPupilArcsec, yPupilArcsec float64) *GaussianMixture {
	wave, ok := effectiveWavelengthNM[p.Band]
	if !ok {
		wave = 500.0
	}
	airmass := p.Airmass
	if airmass < 1 {
		airmass = 1
	}
	// Atmospheric FWHM grows with airmass^0.6 and shrinks with
	// wavelength^0.3.
	atm := p.RawSeeing * math.Pow(airmass, 0.6) * math.Pow(500.0/wave, 0.3)
	inst := p.InstrumentFWHM
	if inst == 0 {
		inst = 0.4
	}
	fwhm := math.Sqrt(atm*atm + inst*inst)
	sigma := fwhm * fwhmToSigma

	// Kolmogorov wings carry more flux than a single Gaussian; a broad
	// second component stands in for them.
	m := NewGaussianMixture(
		[]float64{0.9, 0.1},
		[]float64{sigma, 2.5 * sigma},
	)
	if p.FoldingThreshold > 0 {
		m = m.withFoldingThreshold(p.FoldingThreshold)
	}
	return m
}
