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
	"errors"
	"testing"

	"github.com/ctessum/geom"
)

func testSurface() *Surface {
	return &Surface{
		Path:             "/data/elevation/dem.tif",
		CoordinateSystem: "NAD83 / UTM zone 15N",
		Projected:        true,
		Extent:           &geom.Bounds{Min: geom.Point{X: 0, Y: 0}, Max: geom.Point{X: 1000, Y: 1000}},
		CellSize:         10,
	}
}

func TestCheckProjected(t *testing.T) {
	s := testSurface()
	if err := CheckProjected(s); err != nil {
		t.Errorf("projected surface: %v", err)
	}

	s.Projected = false
	s.CoordinateSystem = "WGS 84"
	err := CheckProjected(s)
	var npe *NonProjectedError
	if !errors.As(err, &npe) {
		t.Fatalf("error %v should be a *NonProjectedError", err)
	}
	want := "Error: Input elevation raster must be in a projected coordinate system. Existing elevation raster is in WGS 84."
	if err.Error() != want {
		t.Errorf("have %q, want %q", err.Error(), want)
	}
}

func TestCheckContainment(t *testing.T) {
	inside := []*Observer{
		{Point: geom.Point{X: 100, Y: 100}},
		{Point: geom.Point{X: 500, Y: 900}, Row: 1},
	}
	if err := CheckContainment(inside, testSurface()); err != nil {
		t.Errorf("observers inside: %v", err)
	}
	if err := CheckContainment(inside[:1], testSurface()); err != nil {
		t.Errorf("single observer inside: %v", err)
	}

	outside := append(inside, &Observer{Point: geom.Point{X: 2000, Y: 500}, Row: 2})
	err := CheckContainment(outside, testSurface())
	var ose *OutsideSurfaceError
	if !errors.As(err, &ose) {
		t.Fatalf("error %v should be an *OutsideSurfaceError", err)
	}
	want := "Error: Input Observer(s) does not fall within the extent of the input surface: dem.tif!"
	if err.Error() != want {
		t.Errorf("have %q, want %q", err.Error(), want)
	}

	if err := CheckContainment(outside[2:], testSurface()); !errors.As(err, &ose) {
		t.Errorf("single observer outside: error %v", err)
	}

	s := testSurface()
	s.Extent = nil
	if err := CheckContainment(inside, s); !errors.As(err, &ose) {
		t.Errorf("surface without extent: error %v", err)
	}

	if err := CheckContainment(nil, testSurface()); err == nil {
		t.Error("no observers should give an error")
	}
}
