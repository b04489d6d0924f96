package catalog

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/interp"
)

// SED is a spectral energy distribution sampled on a wavelength grid.
// Wavelengths are in nanometers, Flambda in arbitrary per-wavelength
// units; only the shape matters for photon wavelength sampling.
type SED struct {
	WavelenNM []float64 `yaml:"wavelen"`
	Flambda   []float64 `yaml:"flambda"`
}

// Bandpass is a filter throughput curve on a wavelength grid in
// nanometers.
type Bandpass struct {
	WavelenNM  []float64 `yaml:"wavelen"`
	Throughput []float64 `yaml:"throughput"`
}

// EffectiveWavelength returns the throughput-weighted mean wavelength in
// nanometers, by trapezoidal integration.
func (b *Bandpass) EffectiveWavelength() float64 {
	var num, den float64
	for i := 1; i < len(b.WavelenNM); i++ {
		dw := b.WavelenNM[i] - b.WavelenNM[i-1]
		num += 0.5 * (b.WavelenNM[i]*b.Throughput[i] + b.WavelenNM[i-1]*b.Throughput[i-1]) * dw
		den += 0.5 * (b.Throughput[i] + b.Throughput[i-1]) * dw
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// WavelengthSampler draws photon wavelengths from the product of a source
// SED and a filter throughput curve, by inverse-CDF lookup on a merged
// wavelength grid.
type WavelengthSampler struct {
	inv interp.PiecewiseLinear // regularized CDF -> wavelength
}

// NewWavelengthSampler tabulates SED(lambda) * throughput(lambda) on the
// union of the two grids and fits the inverse CDF. It fails when the
// product has no support inside the bandpass.
func NewWavelengthSampler(sed *SED, bp *Bandpass) (*WavelengthSampler, error) {
	if sed == nil || len(sed.WavelenNM) < 2 {
		return nil, fmt.Errorf("wavelength sampler needs an SED with at least 2 samples")
	}
	if bp == nil || len(bp.WavelenNM) < 2 {
		return nil, fmt.Errorf("wavelength sampler needs a bandpass with at least 2 samples")
	}

	var sedCurve, bpCurve interp.PiecewiseLinear
	if err := sedCurve.Fit(sed.WavelenNM, sed.Flambda); err != nil {
		return nil, fmt.Errorf("fit SED: %w", err)
	}
	if err := bpCurve.Fit(bp.WavelenNM, bp.Throughput); err != nil {
		return nil, fmt.Errorf("fit bandpass: %w", err)
	}

	// Merge the grids, restricted to where both curves are defined.
	lo := max(sed.WavelenNM[0], bp.WavelenNM[0])
	hi := min(sed.WavelenNM[len(sed.WavelenNM)-1], bp.WavelenNM[len(bp.WavelenNM)-1])
	if lo >= hi {
		return nil, fmt.Errorf("SED and bandpass wavelength ranges do not overlap")
	}
	grid := make([]float64, 0, len(sed.WavelenNM)+len(bp.WavelenNM))
	for _, w := range sed.WavelenNM {
		if w >= lo && w <= hi {
			grid = append(grid, w)
		}
	}
	for _, w := range bp.WavelenNM {
		if w >= lo && w <= hi {
			grid = append(grid, w)
		}
	}
	grid = append(grid, lo, hi)
	sort.Float64s(grid)
	grid = dedup(grid)

	// Cumulative integral of the product, then normalize.
	cdf := make([]float64, len(grid))
	for i := 1; i < len(grid); i++ {
		w0, w1 := grid[i-1], grid[i]
		f0 := sedCurve.Predict(w0) * bpCurve.Predict(w0)
		f1 := sedCurve.Predict(w1) * bpCurve.Predict(w1)
		if f0 < 0 {
			f0 = 0
		}
		if f1 < 0 {
			f1 = 0
		}
		cdf[i] = cdf[i-1] + 0.5*(f0+f1)*(w1-w0)
	}
	total := cdf[len(cdf)-1]
	if total <= 0 {
		return nil, fmt.Errorf("SED has no flux inside the bandpass")
	}

	// The inverse mapping must have strictly increasing abscissae, so
	// drop grid points where the CDF did not advance.
	xs := make([]float64, 0, len(grid))
	ys := make([]float64, 0, len(grid))
	for i := range grid {
		c := cdf[i] / total
		if len(xs) > 0 && c <= xs[len(xs)-1] {
			continue
		}
		xs = append(xs, c)
		ys = append(ys, grid[i])
	}
	if len(xs) < 2 {
		return nil, fmt.Errorf("SED x bandpass product is degenerate")
	}

	s := &WavelengthSampler{}
	if err := s.inv.Fit(xs, ys); err != nil {
		return nil, fmt.Errorf("fit inverse CDF: %w", err)
	}
	return s, nil
}

// Sample maps a uniform variate u in [0,1) to a wavelength in nanometers.
func (s *WavelengthSampler) Sample(u float64) float64 {
	if u < 0 {
		u = 0
	}
	if u > 1 {
		u = 1
	}
	return s.inv.Predict(u)
}

func dedup(sorted []float64) []float64 {
	out := sorted[:0]
	for i, v := range sorted {
		if i == 0 || v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}
