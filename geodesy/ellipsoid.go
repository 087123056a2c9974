package geodesy

import (
	"fmt"
	"strings"
)

// Ellipsoid holds the defining constants of a reference ellipsoid:
// semi-major axis A in meters and flattening F. Values are shared by
// value and never mutated after construction.
type Ellipsoid struct {
	A, F float64
}

// Predefined reference ellipsoids.
var (
	// WGS84 is the World Geodetic System 1984 ellipsoid, the GPS default.
	WGS84 = Ellipsoid{A: 6378137.0, F: 1.0 / 298.257223563}

	// GRS80 is the Geodetic Reference System 1980 ellipsoid.
	GRS80 = Ellipsoid{A: 6378137.0, F: 1.0 / 298.257222101}
)

// NewEllipsoid builds an ellipsoid from a semi-major axis in meters and a
// flattening. It returns ErrInvalidParameter when a <= 0 or f is outside
// [0, 1).
func NewEllipsoid(a, f float64) (Ellipsoid, error) {
	if !finite(a, f) || a <= 0 {
		return Ellipsoid{}, fmt.Errorf("%w: semi-major axis %g", ErrInvalidParameter, a)
	}
	if f < 0 || f >= 1 {
		return Ellipsoid{}, fmt.Errorf("%w: flattening %g outside [0, 1)", ErrInvalidParameter, f)
	}
	return Ellipsoid{A: a, F: f}, nil
}

// ByName returns a predefined ellipsoid by name, case-insensitively.
func ByName(name string) (Ellipsoid, bool) {
	switch strings.ToLower(name) {
	case "wgs84":
		return WGS84, true
	case "grs80":
		return GRS80, true
	}
	return Ellipsoid{}, false
}

// E2 returns the first eccentricity squared, e² = f(2-f).
func (e Ellipsoid) E2() float64 {
	return e.F * (2 - e.F)
}

// B returns the semi-minor axis, b = a(1-f).
func (e Ellipsoid) B() float64 {
	return e.A * (1 - e.F)
}

// checkEllipsoid validates constants on entry to every conversion, so an
// Ellipsoid built by struct literal gets the same guarantees as one from
// NewEllipsoid.
func checkEllipsoid(e Ellipsoid) error {
	_, err := NewEllipsoid(e.A, e.F)
	return err
}
