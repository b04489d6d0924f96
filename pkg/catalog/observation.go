package catalog

import "math"

// Observation carries the per-visit metadata the rendering session needs:
// pointing, atmospheric seeing, and photometric depth. It is computed once
// at session construction and never mutated.
type Observation struct {
	// VisitID tags output file names.
	VisitID int64 `yaml:"visitId"`

	// Band is the filter of this exposure.
	Band string `yaml:"band"`

	// MJD is the modified Julian date of the exposure midpoint.
	MJD float64 `yaml:"mjd"`

	// Pointing in degrees.
	PointingRADeg  float64 `yaml:"pointingRA"`
	PointingDecDeg float64 `yaml:"pointingDec"`

	// AltitudeDeg is the boresight altitude, used for the airmass of the
	// fast point-source sizing PSF and for differential chromatic
	// refraction.
	AltitudeDeg float64 `yaml:"altitude"`

	// RawSeeing is the zenith 500nm seeing FWHM in arcseconds.
	RawSeeing float64 `yaml:"rawSeeing"`

	// FWHMGeom is the geometric PSF FWHM in arcseconds, used by the fast
	// double-Gaussian stamp-sizing proxy.
	FWHMGeom float64 `yaml:"fwhmGeom"`

	// LatitudeDeg is the observatory latitude, for chromatic refraction.
	LatitudeDeg float64 `yaml:"latitude"`
}

// Airmass returns the relative optical path length through the
// atmosphere for the observation altitude, using the same thin-shell
// approximation as the sizing PSF.
func (o *Observation) Airmass() float64 {
	altRad := o.AltitudeDeg * math.Pi / 180.0
	zenith := 0.5*math.Pi - altRad
	s := math.Sin(zenith)
	return 1.0 / math.Sqrt(1.0-0.96*s*s)
}
