package geom

import (
	"strings"

	"skysim/internal/units"
	"skysim/pkg/wcs"
)

// TreeRing describes the concentric impurity rings of a silicon sensor.
// Photons landing at radius r from Center are displaced radially by
// Amplitude(r) pixels. Only the sensor-model draw strategy consults it.
type TreeRing struct {
	// CenterX, CenterY give the ring pattern center in pixel coordinates.
	// The center usually lies outside the detector's own pixel bounds.
	CenterX, CenterY float64

	// Amplitude returns the radial pixel displacement at radius r (pixels).
	Amplitude func(r float64) float64
}

// Detector is a named rectangular sensor region. The full detector set is
// supplied when the rendering session is constructed and never mutated
// afterwards.
type Detector struct {
	// Name is the unique key for the detector, e.g. "R22_S11".
	Name string

	// PixBounds is the detector's pixel-space extent.
	PixBounds Bounds

	// Pupil-space footprint in arcseconds, derived from the coordinate
	// transform at construction time.
	XMinArcsec, XMaxArcsec float64
	YMinArcsec, YMaxArcsec float64

	// Gain is the photometric gain in electrons per ADU. Photon counts
	// are divided by it when deposited.
	Gain float64

	// DiffusionSigma is the charge-diffusion scatter in pixels applied
	// per photon by the sensor-model draw strategy. Zero disables it.
	DiffusionSigma float64

	// TreeRing is the optional sensor impurity-ring model.
	TreeRing *TreeRing

	// WCS maps pupil coordinates to this detector's pixels.
	WCS wcs.Transform
}

// NewDetector derives the pupil footprint of a detector from its pixel
// bounds and coordinate transform. gain values <= 0 fall back to 1.
func NewDetector(name string, pix Bounds, transform wcs.Transform, gain float64) *Detector {
	if gain <= 0 {
		gain = 1
	}
	d := &Detector{
		Name:      name,
		PixBounds: pix,
		Gain:      gain,
		WCS:       transform,
	}

	// Probe the four pixel corners; for a linear transform these bound
	// the whole footprint.
	corners := [4][2]float64{
		{float64(pix.XMin), float64(pix.YMin)},
		{float64(pix.XMin), float64(pix.YMax)},
		{float64(pix.XMax), float64(pix.YMin)},
		{float64(pix.XMax), float64(pix.YMax)},
	}
	for i, c := range corners {
		xRad, yRad := transform.PupilFromPixel(c[0], c[1])
		x := units.ArcsecFromRadians(xRad)
		y := units.ArcsecFromRadians(yRad)
		if i == 0 || x < d.XMinArcsec {
			d.XMinArcsec = x
		}
		if i == 0 || x > d.XMaxArcsec {
			d.XMaxArcsec = x
		}
		if i == 0 || y < d.YMinArcsec {
			d.YMinArcsec = y
		}
		if i == 0 || y > d.YMaxArcsec {
			d.YMaxArcsec = y
		}
	}
	return d
}

// FileKey is the detector name with characters unsuitable for file names
// replaced, used in FITS and centroid file names and as the stable half
// of RenderTarget keys.
func (d *Detector) FileKey() string {
	r := strings.NewReplacer(":", "", ",", "_", " ", "_", "/", "_")
	return r.Replace(d.Name)
}

// ContainsPupilCoordinates tests each (xs[i], ys[i]) pupil position, in
// radians, against the detector's pupil footprint. Mismatched slice
// lengths yield all-false rather than an error; malformed input is not a
// failure mode for a pure containment test.
func (d *Detector) ContainsPupilCoordinates(xs, ys []float64) []bool {
	out := make([]bool, len(xs))
	if len(xs) != len(ys) {
		return out
	}
	xMin := units.RadiansFromArcsec(d.XMinArcsec)
	xMax := units.RadiansFromArcsec(d.XMaxArcsec)
	yMin := units.RadiansFromArcsec(d.YMinArcsec)
	yMax := units.RadiansFromArcsec(d.YMaxArcsec)
	for i := range xs {
		out[i] = xs[i] >= xMin && xs[i] <= xMax && ys[i] >= yMin && ys[i] <= yMax
	}
	return out
}
