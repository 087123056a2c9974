package geodesy

import (
	"fmt"
	"math"
)

// nedRotate rotates an ECEF displacement into the North-East-Down frame
// of a tangent plane at the given latitude/longitude. The rotation is
// orthonormal, so vector norms are preserved.
func nedRotate(d ECEF, lat, lon float64) NED {
	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)
	sinLon := math.Sin(lon)
	cosLon := math.Cos(lon)

	return NED{
		North: -sinLat*cosLon*d.X - sinLat*sinLon*d.Y + cosLat*d.Z,
		East:  -sinLon*d.X + cosLon*d.Y,
		Down:  -cosLat*cosLon*d.X - cosLat*sinLon*d.Y - sinLat*d.Z,
	}
}

// NEDFromECEF expresses an absolute ECEF target in the local
// North-East-Down frame anchored at the reference point.
func NEDFromECEF(target ECEF, ref LLH, ell Ellipsoid) (NED, error) {
	refECEF, err := ECEFFromLLH(ref, ell)
	if err != nil {
		return NED{}, err
	}
	if !finite(target.X, target.Y, target.Z) {
		return NED{}, fmt.Errorf("%w: non-finite ECEF coordinate", ErrInvalidParameter)
	}
	return nedRotate(target.Sub(refECEF), ref.Lat, ref.Lon), nil
}

// ECEFFromNED recovers the absolute ECEF position of a North-East-Down
// offset anchored at the reference point. Exact inverse of NEDFromECEF
// for the same reference: it applies the transpose of the same rotation
// and adds back the reference's ECEF position.
func ECEFFromNED(v NED, ref LLH, ell Ellipsoid) (ECEF, error) {
	refECEF, err := ECEFFromLLH(ref, ell)
	if err != nil {
		return ECEF{}, err
	}
	if !finite(v.North, v.East, v.Down) {
		return ECEF{}, fmt.Errorf("%w: non-finite NED coordinate", ErrInvalidParameter)
	}

	sinLat := math.Sin(ref.Lat)
	cosLat := math.Cos(ref.Lat)
	sinLon := math.Sin(ref.Lon)
	cosLon := math.Cos(ref.Lon)

	return ECEF{
		X: refECEF.X - sinLat*cosLon*v.North - sinLon*v.East - cosLat*cosLon*v.Down,
		Y: refECEF.Y - sinLat*sinLon*v.North + cosLon*v.East - cosLat*sinLon*v.Down,
		Z: refECEF.Z + cosLat*v.North - sinLat*v.Down,
	}, nil
}

// NEDBetween returns the vector from ref to pos in ref's local
// North-East-Down frame, with both points given in ECEF. The frame
// orientation comes from ref's geodetic coordinates.
func NEDBetween(pos, ref ECEF, ell Ellipsoid) (NED, error) {
	refLLH, err := LLHFromECEF(ref, ell)
	if err != nil {
		return NED{}, err
	}
	if !finite(pos.X, pos.Y, pos.Z) {
		return NED{}, fmt.Errorf("%w: non-finite ECEF coordinate", ErrInvalidParameter)
	}
	return nedRotate(pos.Sub(ref), refLLH.Lat, refLLH.Lon), nil
}
