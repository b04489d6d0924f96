// Package wcs provides the coordinate-mapping collaborator: transforms
// between pupil-plane angles and detector pixel coordinates. The rendering
// core only consumes the Transform interface; TangentPlane is a simple
// gnomonic-free linear implementation suitable for flat focal planes and
// for tests.
package wcs

import "skysim/internal/units"

// Transform maps pupil coordinates (radians on the entrance pupil) to
// pixel coordinates on one detector. Implementations are pure and
// immutable for the lifetime of an exposure.
type Transform interface {
	// PixelFromPupil converts a pupil-plane position in radians to a
	// pixel position on the detector this transform belongs to. The
	// result may lie outside the detector's pixel bounds; callers clip.
	PixelFromPupil(xPupilRad, yPupilRad float64) (xPix, yPix float64)

	// PupilFromPixel is the inverse of PixelFromPupil.
	PupilFromPixel(xPix, yPix float64) (xPupilRad, yPupilRad float64)
}

// TangentPlane is a linear pupil-to-pixel mapping: the detector center
// pixel corresponds to a fixed pupil position and pixels are square with
// a constant plate scale.
type TangentPlane struct {
	// PixelScale is the plate scale in arcseconds per pixel.
	PixelScale float64

	// XPupilCenterArcsec, YPupilCenterArcsec give the pupil position of
	// the detector center in arcseconds.
	XPupilCenterArcsec float64
	YPupilCenterArcsec float64

	// XCenterPix, YCenterPix give the pixel coordinates of the detector
	// center.
	XCenterPix float64
	YCenterPix float64
}

// PixelFromPupil implements Transform.
func (t TangentPlane) PixelFromPupil(xPupilRad, yPupilRad float64) (xPix, yPix float64) {
	xArcsec := units.ArcsecFromRadians(xPupilRad)
	yArcsec := units.ArcsecFromRadians(yPupilRad)
	xPix = t.XCenterPix + (xArcsec-t.XPupilCenterArcsec)/t.PixelScale
	yPix = t.YCenterPix + (yArcsec-t.YPupilCenterArcsec)/t.PixelScale
	return xPix, yPix
}

// PupilFromPixel implements Transform.
func (t TangentPlane) PupilFromPixel(xPix, yPix float64) (xPupilRad, yPupilRad float64) {
	xArcsec := t.XPupilCenterArcsec + (xPix-t.XCenterPix)*t.PixelScale
	yArcsec := t.YPupilCenterArcsec + (yPix-t.YCenterPix)*t.PixelScale
	return units.RadiansFromArcsec(xArcsec), units.RadiansFromArcsec(yArcsec)
}
