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
	"fmt"
	"path/filepath"

	"github.com/ctessum/geom"
)

// NonProjectedError is returned when the elevation surface is not in a
// projected coordinate system.
type NonProjectedError struct {
	CoordinateSystem string
}

func (e *NonProjectedError) Error() string {
	return fmt.Sprintf("Error: Input elevation raster must be in a projected coordinate system. "+
		"Existing elevation raster is in %s.", e.CoordinateSystem)
}

// OutsideSurfaceError is returned when the observers do not fall within
// the extent of the elevation surface.
type OutsideSurfaceError struct {
	// Surface is the base name of the elevation dataset.
	Surface string
}

func (e *OutsideSurfaceError) Error() string {
	return fmt.Sprintf("Error: Input Observer(s) does not fall within the extent of the input surface: %s!", e.Surface)
}

// CheckProjected returns a *NonProjectedError if s is not projected.
func CheckProjected(s *Surface) error {
	if !s.Projected {
		return &NonProjectedError{CoordinateSystem: s.CoordinateSystem}
	}
	return nil
}

// CheckContainment returns an *OutsideSurfaceError unless the extent of
// observers lies within the extent of s. The observers must already be in
// the coordinate system of s.
func CheckContainment(observers []*Observer, s *Surface) error {
	if len(observers) == 0 {
		return fmt.Errorf("viewshed: there are no observers")
	}
	if s.Extent == nil || s.Extent.Empty() {
		return &OutsideSurfaceError{Surface: filepath.Base(s.Path)}
	}
	b := geom.NewBounds()
	for _, o := range observers {
		b.Extend(o.Bounds())
	}
	surface := boundsPolygon(s.Extent)
	var inside bool
	if b.Min.Equals(b.Max) {
		inside = b.Min.Within(surface) != geom.Outside
	} else {
		inside = b.Within(surface) != geom.Outside
	}
	if !inside {
		return &OutsideSurfaceError{Surface: filepath.Base(s.Path)}
	}
	return nil
}

func boundsPolygon(b *geom.Bounds) geom.Polygon {
	return geom.Polygon{{
		b.Min,
		{X: b.Max.X, Y: b.Min.Y},
		b.Max,
		{X: b.Min.X, Y: b.Max.Y},
		b.Min,
	}}
}
