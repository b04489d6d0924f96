// Package units holds the angular-unit conversions shared across the
// simulator. Pupil-plane positions are carried in both radians and
// arcseconds; detector footprints and plate scales are in arcseconds.
package units

import "math"

// ArcsecPerRadian converts between the two angular units used on the
// pupil plane.
const ArcsecPerRadian = 180.0 * 3600.0 / math.Pi

// RadiansFromArcsec converts an angle in arcseconds to radians.
func RadiansFromArcsec(arcsec float64) float64 {
	return arcsec / ArcsecPerRadian
}

// ArcsecFromRadians converts an angle in radians to arcseconds.
func ArcsecFromRadians(rad float64) float64 {
	return rad * ArcsecPerRadian
}
