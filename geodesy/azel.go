package geodesy

import (
	"fmt"
	"math"
)

// Below this displacement norm the look direction is numerically
// meaningless.
const coincidentTol = 1e-9 // meters

// AzElFromECEF computes the look angles from an observer to an ECEF
// target: azimuth clockwise from true north normalized to [0, 2π) and
// elevation above the observer's local horizontal plane.
//
// When the target coincides with the observer the angles are undefined
// and ErrDegenerateGeometry is returned.
func AzElFromECEF(observer LLH, target ECEF, ell Ellipsoid) (AzEl, error) {
	ned, err := NEDFromECEF(target, observer, ell)
	if err != nil {
		return AzEl{}, err
	}
	if ned.Norm() < coincidentTol {
		return AzEl{}, fmt.Errorf("%w: target coincides with observer", ErrDegenerateGeometry)
	}

	az := math.Atan2(ned.East, ned.North)
	if az < 0 {
		az += 2 * math.Pi
	}

	horizontal := math.Hypot(ned.North, ned.East)
	el := math.Atan2(-ned.Down, horizontal)

	return AzEl{Azimuth: az, Elevation: el}, nil
}
