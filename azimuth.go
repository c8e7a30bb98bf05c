/*
Copyright © 2019 the Viewshed authors.
This file is part of Viewshed.

Viewshed is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

Viewshed is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with Viewshed.  If not, see <http://www.gnu.org/licenses/>.
*/

package viewshed

import (
	"math"

	"github.com/ctessum/geom"
)

// BearingToAngle converts a compass bearing (degrees clockwise from north)
// to a mathematical angle (radians counter-clockwise from east).
func BearingToAngle(bearing float64) float64 {
	return (90 - bearing) * math.Pi / 180
}

// SectorFromBearings returns the sector between the compass bearings
// azimuth1 and azimuth2, swept clockwise. If azimuth1 > azimuth2 the sector
// wraps past north. Equal bearings give a full circle.
func SectorFromBearings(center geom.Point, innerRadius, outerRadius, azimuth1, azimuth2 float64) (SectorSpec, error) {
	for _, b := range []struct {
		name string
		val  float64
	}{{"azimuth1", azimuth1}, {"azimuth2", azimuth2}} {
		if math.IsNaN(b.val) || b.val < 0 || b.val > 360 {
			return SectorSpec{}, &SectorError{Field: b.name, Value: b.val, Reason: "bearing must be between 0 and 360 degrees"}
		}
	}
	if azimuth1 >= azimuth2 {
		azimuth2 += 360
	}
	if azimuth1 == azimuth2 { // 360 and 0
		azimuth2 += 360
	}
	s := SectorSpec{
		Center:      center,
		InnerRadius: innerRadius,
		OuterRadius: outerRadius,
		StartAngle:  BearingToAngle(azimuth1),
		EndAngle:    BearingToAngle(azimuth2),
	}
	if err := s.Validate(); err != nil {
		return SectorSpec{}, err
	}
	return s, nil
}
