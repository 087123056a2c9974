// Package geodesy converts between the coordinate frames used in
// satellite-navigation positioning: Earth-Centered-Earth-Fixed Cartesian
// coordinates (ECEF), geodetic latitude/longitude/height (LLH), the local
// North-East-Down tangent frame (NED) anchored at a reference point, and
// observer-relative azimuth/elevation look angles.
//
// Every function is pure: it reads only its arguments and the ellipsoid
// constants passed in, so all of them are safe to call concurrently
// without coordination. Angles are radians, distances are meters.
package geodesy

import (
	"errors"
	"math"
)

// ErrInvalidParameter reports malformed ellipsoid constants or non-finite
// input coordinates.
var ErrInvalidParameter = errors.New("geodesy: invalid parameter")

// ErrDegenerateGeometry reports that azimuth and elevation are undefined
// because the target coincides with the observer.
var ErrDegenerateGeometry = errors.New("geodesy: degenerate geometry")

// ECEF is an Earth-Centered-Earth-Fixed Cartesian position in meters,
// origin at Earth's center of mass, axes fixed to the rotating Earth.
type ECEF struct {
	X, Y, Z float64
}

// Sub returns p - other.
func (p ECEF) Sub(other ECEF) ECEF {
	return ECEF{X: p.X - other.X, Y: p.Y - other.Y, Z: p.Z - other.Z}
}

// Norm returns the Euclidean norm of the position vector.
func (p ECEF) Norm() float64 {
	return math.Sqrt(p.X*p.X + p.Y*p.Y + p.Z*p.Z)
}

// LLH is a geodetic position: latitude in [-π/2, π/2] and longitude in
// (-π, π], both radians, and height in meters above the reference
// ellipsoid (negative below it). Latitude is geodetic, measured against
// the ellipsoid normal, not the geocentric angle.
type LLH struct {
	Lat, Lon, Height float64
}

// NED is a North-East-Down offset in meters, expressed in the local
// tangent plane at a reference point. It has no meaning without that
// reference.
type NED struct {
	North, East, Down float64
}

// Norm returns the Euclidean norm of the offset.
func (v NED) Norm() float64 {
	return math.Sqrt(v.North*v.North + v.East*v.East + v.Down*v.Down)
}

// AzEl holds look angles in radians: azimuth clockwise from true north in
// [0, 2π) and elevation above the local horizontal in [-π/2, π/2].
type AzEl struct {
	Azimuth, Elevation float64
}

// finite reports whether every value is neither NaN nor infinite.
func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
