package geodesy

import (
	"fmt"
	"math"
)

// Geodetic latitude has no closed-form solution from ECEF; we solve it
// with a Bowring-seeded fixed-point iteration. The cap is generous: the
// loop converges in 2-4 iterations for any point within a few hundred
// kilometers of the surface, and 1e-12 rad is about 6 µm of displacement
// on the ellipsoid.
const (
	latSolveTol     = 1e-12
	latSolveMaxIter = 10
)

// LLHFromECEF converts an ECEF position to geodetic coordinates on the
// given ellipsoid.
//
// Longitude is exact. Latitude is refined by alternating updates of the
// prime-vertical radius of curvature N and the latitude itself until the
// change drops below latSolveTol or latSolveMaxIter iterations have run;
// if the cap is ever hit the best estimate so far is returned rather than
// an error. Points on the polar axis are special-cased: longitude is 0 by
// convention and latitude is ±π/2 signed by z.
func LLHFromECEF(p ECEF, ell Ellipsoid) (LLH, error) {
	if err := checkEllipsoid(ell); err != nil {
		return LLH{}, err
	}
	if !finite(p.X, p.Y, p.Z) {
		return LLH{}, fmt.Errorf("%w: non-finite ECEF coordinate", ErrInvalidParameter)
	}

	e2 := ell.E2()
	rho := math.Hypot(p.X, p.Y)

	// On (or numerically at) the polar axis the iteration below would
	// divide by rho.
	if rho < ell.A*1e-16 {
		return LLH{
			Lat:    math.Copysign(math.Pi/2, p.Z),
			Lon:    0,
			Height: math.Abs(p.Z) - ell.B(),
		}, nil
	}

	lon := math.Atan2(p.Y, p.X)

	// Seed from the point treated as lying on the ellipsoid surface.
	lat := math.Atan2(p.Z, rho*(1-e2))
	for i := 0; i < latSolveMaxIter; i++ {
		sinLat := math.Sin(lat)
		n := ell.A / math.Sqrt(1-e2*sinLat*sinLat)
		next := math.Atan2(p.Z+e2*n*sinLat, rho)
		if math.Abs(next-lat) < latSolveTol {
			lat = next
			break
		}
		lat = next
	}

	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)
	n := ell.A / math.Sqrt(1-e2*sinLat*sinLat)

	// Near the poles cos(lat) underflows; recover height from the z
	// component instead of the equatorial projection.
	var height float64
	if math.Abs(cosLat) > 1e-10 {
		height = rho/cosLat - n
	} else {
		height = math.Abs(p.Z)/math.Abs(sinLat) - n*(1-e2)
	}

	return LLH{Lat: lat, Lon: lon, Height: height}, nil
}

// ECEFFromLLH converts geodetic coordinates to an ECEF position on the
// given ellipsoid. Closed form; the exact inverse of LLHFromECEF within
// floating-point and iteration tolerance.
func ECEFFromLLH(p LLH, ell Ellipsoid) (ECEF, error) {
	if err := checkEllipsoid(ell); err != nil {
		return ECEF{}, err
	}
	if !finite(p.Lat, p.Lon, p.Height) {
		return ECEF{}, fmt.Errorf("%w: non-finite LLH coordinate", ErrInvalidParameter)
	}

	e2 := ell.E2()
	sinLat := math.Sin(p.Lat)
	cosLat := math.Cos(p.Lat)
	n := ell.A / math.Sqrt(1-e2*sinLat*sinLat)

	return ECEF{
		X: (n + p.Height) * cosLat * math.Cos(p.Lon),
		Y: (n + p.Height) * cosLat * math.Sin(p.Lon),
		Z: (n*(1-e2) + p.Height) * sinLat,
	}, nil
}
