package geom

import (
	"math"
	"testing"

	"skysim/internal/units"
	"skysim/pkg/wcs"
)

// TestBoundsBasics covers the inclusive-bounds arithmetic.
func TestBoundsBasics(t *testing.T) {
	b := Bounds{XMin: 0, XMax: 9, YMin: 10, YMax: 14}
	if !b.Defined() {
		t.Error("Non-empty bounds should be defined")
	}
	if b.Width() != 10 || b.Height() != 5 || b.Area() != 50 {
		t.Errorf("Got %dx%d area %d, want 10x5 area 50", b.Width(), b.Height(), b.Area())
	}
	cx, cy := b.TrueCenter()
	if cx != 4.5 || cy != 12 {
		t.Errorf("TrueCenter = (%g, %g), want (4.5, 12)", cx, cy)
	}

	empty := Bounds{XMin: 5, XMax: 2, YMin: 0, YMax: 1}
	if empty.Defined() {
		t.Error("Inverted bounds should be undefined")
	}
}

// TestBoundsIntersect covers overlapping, contained, and disjoint pairs.
func TestBoundsIntersect(t *testing.T) {
	a := Bounds{XMin: 0, XMax: 10, YMin: 0, YMax: 10}

	overlap := a.Intersect(Bounds{XMin: 5, XMax: 15, YMin: -3, YMax: 4})
	want := Bounds{XMin: 5, XMax: 10, YMin: 0, YMax: 4}
	if overlap != want {
		t.Errorf("Intersect = %v, want %v", overlap, want)
	}

	inner := Bounds{XMin: 2, XMax: 3, YMin: 2, YMax: 3}
	if got := a.Intersect(inner); got != inner {
		t.Errorf("Intersection with a contained box should be the box, got %v", got)
	}
	if !a.Contains(inner) {
		t.Error("Contains failed for a nested box")
	}

	if disjoint := a.Intersect(Bounds{XMin: 20, XMax: 30, YMin: 0, YMax: 5}); disjoint.Defined() {
		t.Errorf("Disjoint intersection should be undefined, got %v", disjoint)
	}
}

// TestDetectorFootprint verifies the pupil-space footprint derived from
// the corner probes, and pupil containment testing.
func TestDetectorFootprint(t *testing.T) {
	transform := wcs.TangentPlane{
		PixelScale:         0.2,
		XPupilCenterArcsec: 30,
		YPupilCenterArcsec: -30,
		XCenterPix:         49.5,
		YCenterPix:         49.5,
	}
	det := NewDetector("R01_S22", Bounds{XMin: 0, XMax: 99, YMin: 0, YMax: 99}, transform, 0)

	if det.Gain != 1 {
		t.Errorf("Non-positive gain should default to 1, got %g", det.Gain)
	}
	if math.Abs(det.XMinArcsec-(30-9.9)) > 1e-9 || math.Abs(det.XMaxArcsec-(30+9.9)) > 1e-9 {
		t.Errorf("X footprint [%g, %g], want [20.1, 39.9]", det.XMinArcsec, det.XMaxArcsec)
	}

	xs := []float64{
		units.RadiansFromArcsec(30),  // center: inside
		units.RadiansFromArcsec(50),  // east of the footprint
		units.RadiansFromArcsec(21),  // near the west edge: inside
	}
	ys := []float64{
		units.RadiansFromArcsec(-30),
		units.RadiansFromArcsec(-30),
		units.RadiansFromArcsec(-30),
	}
	got := det.ContainsPupilCoordinates(xs, ys)
	want := []bool{true, false, true}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Containment[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	// Mismatched lengths answer all-false rather than failing.
	if res := det.ContainsPupilCoordinates(xs, ys[:1]); res[0] || res[1] || res[2] {
		t.Error("Mismatched slice lengths should yield all-false")
	}
}

// TestFileKey verifies the character substitutions applied to detector
// names destined for file names.
func TestFileKey(t *testing.T) {
	det := &Detector{Name: "R:2,2 S:1,1"}
	if got := det.FileKey(); got != "R2_2_S1_1" {
		t.Errorf("FileKey = %q, want R2_2_S1_1", got)
	}
}

// TestWCSRoundTrip checks that the tangent-plane mapping inverts itself.
func TestWCSRoundTrip(t *testing.T) {
	transform := wcs.TangentPlane{
		PixelScale:         0.2,
		XPupilCenterArcsec: 12.5,
		YPupilCenterArcsec: -4,
		XCenterPix:         2047.5,
		YCenterPix:         2047.5,
	}
	xPix, yPix := 100.25, 3999.75
	xRad, yRad := transform.PupilFromPixel(xPix, yPix)
	gotX, gotY := transform.PixelFromPupil(xRad, yRad)
	if math.Abs(gotX-xPix) > 1e-9 || math.Abs(gotY-yPix) > 1e-9 {
		t.Errorf("Round trip (%g, %g) -> (%g, %g)", xPix, yPix, gotX, gotY)
	}
}
