package render

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"

	"skysim/internal/units"
	"skysim/pkg/catalog"
	"skysim/pkg/profile"
)

// Telescope beam geometry for the sensor-model photon angles.
const (
	beamFRatio      = 1.234
	beamObscuration = 0.606
)

// Silicon sensor geometry for depth-dependent lateral displacement.
const (
	sensorThicknessMicron = 100.0
	pixelSizeMicron       = 10.0
)

// drawStrategy renders one realized (source, band, detector) triple into
// its buffer. The returned flag reports whether any window was rendered;
// a false with nil error means the source's stamp missed the buffer
// entirely. finishSource runs once after the last draw call for a
// source, releasing any per-source state.
type drawStrategy interface {
	draw(o *Orchestrator, img *Image, src *catalog.Source, centered profile.Profile,
		realizedFlux float64, band string, xPix, yPix float64) (bool, error)
	finishSource()
}

// wholeBufferStrategy shoots photons over the full detector buffer with
// no window, no per-photon wavelengths, and no silicon effects. It is
// the cheap mode for quick-look exposures.
type wholeBufferStrategy struct{}

func (wholeBufferStrategy) draw(o *Orchestrator, img *Image, src *catalog.Source,
	centered profile.Profile, realizedFlux float64, band string, xPix, yPix float64) (bool, error) {

	window := img.Bounds()
	photons := centered.ShootPhotons(int(realizedFlux), o.rng)
	perPhoton := 1.0 / img.Det.Gain
	for _, ph := range photons {
		px, py := img.Det.WCS.PixelFromPupil(
			units.RadiansFromArcsec(src.XPupilArcsec+ph.X),
			units.RadiansFromArcsec(src.YPupilArcsec+ph.Y))
		x, y := int(math.Floor(px+0.5)), int(math.Floor(py+0.5))
		if window.ContainsPoint(x, y) {
			img.AddAt(x, y, perPhoton)
		}
	}
	return true, nil
}

func (wholeBufferStrategy) finishSource() {}

// sensorStrategy renders through a minimal postage-stamp window and
// applies the per-photon silicon effects: chromatic sampling from the
// source SED, differential chromatic refraction, depth-dependent lateral
// displacement under the telescope beam, tree-ring displacement, and
// charge diffusion.
type sensorStrategy struct {
	bandpasses map[string]*catalog.Bandpass

	// samplers memoizes wavelength samplers per (source id, band) across
	// the detectors of one source's draw; the CDF tabulation is far more
	// expensive than a draw. Cleared when the source completes, so the
	// cache never outgrows one source's band set.
	samplers map[samplerKey]*catalog.WavelengthSampler
}

type samplerKey struct {
	id   uint64
	band string
}

func newSensorStrategy(bandpasses map[string]*catalog.Bandpass) *sensorStrategy {
	return &sensorStrategy{
		bandpasses: bandpasses,
		samplers:   make(map[samplerKey]*catalog.WavelengthSampler),
	}
}

func (s *sensorStrategy) samplerFor(src *catalog.Source, band string) (*catalog.WavelengthSampler, *catalog.Bandpass, error) {
	bp := s.bandpasses[band]
	if src.SED == nil || bp == nil {
		return nil, bp, nil
	}
	key := samplerKey{id: src.ID, band: band}
	if ws, ok := s.samplers[key]; ok {
		return ws, bp, nil
	}
	ws, err := catalog.NewWavelengthSampler(src.SED, bp)
	if err != nil {
		return nil, nil, fmt.Errorf("source %d band %s: %w", src.ID, band, err)
	}
	s.samplers[key] = ws
	return ws, bp, nil
}

func (s *sensorStrategy) finishSource() {
	clear(s.samplers)
}

func (s *sensorStrategy) draw(o *Orchestrator, img *Image, src *catalog.Source,
	centered profile.Profile, realizedFlux float64, band string, xPix, yPix float64) (bool, error) {

	keepSB := o.sizer.KeepSurfaceBrightness()
	stamp, err := o.sizer.StampBounds(src, realizedFlux, xPix, yPix, keepSB, 3*keepSB)
	if err != nil {
		return false, err
	}
	window := stamp.Intersect(img.Bounds())
	if !window.Defined() {
		return false, nil
	}

	sampler, bp, err := s.samplerFor(src, band)
	if err != nil {
		return false, err
	}
	var lambdaEff float64
	if bp != nil {
		lambdaEff = bp.EffectiveWavelength()
	}
	zenithRad := math.Pi/2 - o.obs.AltitudeDeg*math.Pi/180
	tanZenith := math.Tan(zenithRad)

	photons := centered.ShootPhotons(int(realizedFlux), o.rng)
	perPhoton := 1.0 / img.Det.Gain
	for _, ph := range photons {
		px, py := img.Det.WCS.PixelFromPupil(
			units.RadiansFromArcsec(src.XPupilArcsec+ph.X),
			units.RadiansFromArcsec(src.YPupilArcsec+ph.Y))

		if sampler != nil {
			lambda := sampler.Sample(o.rng.Float64())
			// Differential refraction relative to the band's effective
			// wavelength, applied along the altitude axis.
			dcr := (refractionArcsec(lambda, tanZenith) - refractionArcsec(lambdaEff, tanZenith)) / o.sizer.PixelScale
			py += dcr

			dx, dy := beamDisplacement(lambda, o.rng)
			px += dx
			py += dy
		}

		if tr := img.Det.TreeRing; tr != nil && tr.Amplitude != nil {
			rx, ry := px-tr.CenterX, py-tr.CenterY
			r := math.Hypot(rx, ry)
			if r > 0 {
				amp := tr.Amplitude(r)
				px += amp * rx / r
				py += amp * ry / r
			}
		}

		if sig := img.Det.DiffusionSigma; sig > 0 {
			px += sig * o.rng.NormFloat64()
			py += sig * o.rng.NormFloat64()
		}

		x, y := int(math.Floor(px+0.5)), int(math.Floor(py+0.5))
		if window.ContainsPoint(x, y) {
			img.AddAt(x, y, perPhoton)
		}
	}
	return true, nil
}

// refractionArcsec returns the atmospheric refraction at wavelength
// lambda (nm) for the given tangent of the zenith angle, in arcseconds.
// Only differences between wavelengths matter, so pressure and
// temperature corrections are omitted.
func refractionArcsec(lambdaNM, tanZenith float64) float64 {
	if lambdaNM <= 0 {
		return 0
	}
	um := lambdaNM / 1000.0
	s2 := 1 / (um * um)
	// Dry-air refractivity (n - 1) * 1e6 at standard conditions.
	refr := 64.328 + 29498.1/(146-s2) + 255.4/(41-s2)
	return refr * 1e-6 * tanZenith * units.ArcsecPerRadian
}

// siliconAbsorption is the photon absorption length in microns, tabulated
// against wavelength in nanometers. Interpolation is linear in log of the
// length.
var siliconAbsorption = []struct{ nm, micron float64 }{
	{300, 0.008},
	{400, 0.19},
	{500, 0.94},
	{600, 2.4},
	{700, 5.3},
	{800, 12},
	{900, 35},
	{1000, 200},
	{1100, 1000},
}

func absorptionLengthMicron(lambdaNM float64) float64 {
	tab := siliconAbsorption
	if lambdaNM <= tab[0].nm {
		return tab[0].micron
	}
	for i := 1; i < len(tab); i++ {
		if lambdaNM <= tab[i].nm {
			t := (lambdaNM - tab[i-1].nm) / (tab[i].nm - tab[i-1].nm)
			return math.Exp((1-t)*math.Log(tab[i-1].micron) + t*math.Log(tab[i].micron))
		}
	}
	return tab[len(tab)-1].micron
}

// beamDisplacement samples a photon's incidence angle from the annular
// telescope beam and its conversion depth from the wavelength-dependent
// absorption length, returning the lateral landing offset in pixels.
func beamDisplacement(lambdaNM float64, rng *rand.Rand) (dx, dy float64) {
	// Uniform over the unobscured annulus in area.
	o2 := beamObscuration * beamObscuration
	r := math.Sqrt(o2 + (1-o2)*rng.Float64())
	phi := 2 * math.Pi * rng.Float64()
	tanTheta := r / (2 * beamFRatio)

	depth := absorptionLengthMicron(lambdaNM) * rng.ExpFloat64()
	if depth > sensorThicknessMicron {
		depth = sensorThicknessMicron
	}
	lateral := depth * tanTheta / pixelSizeMicron
	return lateral * math.Cos(phi), lateral * math.Sin(phi)
}
