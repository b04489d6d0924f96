// Package geom describes the static geometry of the focal plane: integer
// pixel rectangles, detector footprints in pupil coordinates, and the
// containment tests used when dispatching sources to detectors.
package geom

import "fmt"

// Bounds is an inclusive integer pixel rectangle. The zero value is
// undefined (empty); use Defined to test for that before using it as a
// rendering window. An undefined intersection is a valid no-op outcome
// when a postage stamp misses its target buffer entirely.
type Bounds struct {
	XMin, XMax int
	YMin, YMax int
}

// Defined reports whether the bounds contain at least one pixel.
func (b Bounds) Defined() bool {
	return b.XMin <= b.XMax && b.YMin <= b.YMax
}

// Width returns the number of pixel columns covered, inclusive of both ends.
func (b Bounds) Width() int { return b.XMax - b.XMin + 1 }

// Height returns the number of pixel rows covered, inclusive of both ends.
func (b Bounds) Height() int { return b.YMax - b.YMin + 1 }

// Area returns the pixel count, or 0 for undefined bounds.
func (b Bounds) Area() int {
	if !b.Defined() {
		return 0
	}
	return b.Width() * b.Height()
}

// Intersect returns the overlap of two rectangles. The result may be
// undefined when the rectangles do not overlap.
func (b Bounds) Intersect(o Bounds) Bounds {
	return Bounds{
		XMin: max(b.XMin, o.XMin),
		XMax: min(b.XMax, o.XMax),
		YMin: max(b.YMin, o.YMin),
		YMax: min(b.YMax, o.YMax),
	}
}

// Contains reports whether o lies entirely within b.
func (b Bounds) Contains(o Bounds) bool {
	return o.Defined() && b.Defined() &&
		o.XMin >= b.XMin && o.XMax <= b.XMax &&
		o.YMin >= b.YMin && o.YMax <= b.YMax
}

// ContainsPoint reports whether the pixel (x, y) lies within b.
func (b Bounds) ContainsPoint(x, y int) bool {
	return x >= b.XMin && x <= b.XMax && y >= b.YMin && y <= b.YMax
}

// TrueCenter returns the geometric center of the rectangle, which falls
// on a half-pixel boundary for even side lengths.
func (b Bounds) TrueCenter() (x, y float64) {
	return float64(b.XMin+b.XMax) / 2.0, float64(b.YMin+b.YMax) / 2.0
}

func (b Bounds) String() string {
	if !b.Defined() {
		return "Bounds[undefined]"
	}
	return fmt.Sprintf("Bounds[%d:%d, %d:%d]", b.XMin, b.XMax, b.YMin, b.YMax)
}
