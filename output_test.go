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
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
)

const testWKT = `PROJCS["Lambert_Conformal_Conic",GEOGCS["GCS_unnamed ellipse",DATUM["D_unknown",SPHEROID["Unknown",6370997,0]],PRIMEM["Greenwich",0],UNIT["Degree",0.017453292519943295]],PROJECTION["Lambert_Conformal_Conic"],PARAMETER["standard_parallel_1",33],PARAMETER["standard_parallel_2",45],PARAMETER["latitude_of_origin",40],PARAMETER["central_meridian",-97],PARAMETER["false_easting",0],PARAMETER["false_northing",0],UNIT["Meter",1]]`

func TestShpName(t *testing.T) {
	for in, want := range map[string]string{
		"out/viewshed":      "out/viewshed.shp",
		"out/viewshed.shp":  "out/viewshed.shp",
		"out/viewshed.gpkg": "out/viewshed.shp",
		"gs://b/wedges.x":   "gs://b/wedges.shp",
	} {
		if have := ShpName(in); have != want {
			t.Errorf("%s: have %s, want %s", in, have, want)
		}
	}
}

func TestWriteViewshed(t *testing.T) {
	dir := t.TempDir()
	filename := filepath.Join(dir, "viewshed.shp")
	polys := []*VisibilityPolygon{
		{Polygon: square(0, 0, 10, 10), GridCode: 0},
		{Polygon: append(square(20, 0, 30, 10), square(40, 0, 50, 5)...), GridCode: 2},
	}
	if err := WriteViewshed(filename, polys, testWKT); err != nil {
		t.Fatal(err)
	}
	prj, err := ioutil.ReadFile(filepath.Join(dir, "viewshed.prj"))
	if err != nil {
		t.Fatal(err)
	}
	if string(prj) != testWKT {
		t.Errorf("prj: have %s", prj)
	}

	read, err := ReadVisibilityPolygons(filename)
	if err != nil {
		t.Fatal(err)
	}
	if len(read) != len(polys) {
		t.Fatalf("have %d polygons, want %d", len(read), len(polys))
	}
	for i, p := range polys {
		if read[i].GridCode != p.GridCode {
			t.Errorf("%d: grid code %d, want %d", i, read[i].GridCode, p.GridCode)
		}
		if a, want := read[i].Area(), p.Area(); math.Abs(a-want) > tolerance {
			t.Errorf("%d: area %g, want %g", i, a, want)
		}
	}
}

func TestWriteViewshed_noPrj(t *testing.T) {
	dir := t.TempDir()
	if err := WriteViewshed(filepath.Join(dir, "v"), nil, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "v.shp")); err != nil {
		t.Error(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "v.prj")); !os.IsNotExist(err) {
		t.Errorf("prj file should not be written without a coordinate system: %v", err)
	}
}

func TestWriteWedges(t *testing.T) {
	dir := t.TempDir()
	filename := filepath.Join(dir, "wedges.shp")
	observers := []*Observer{
		{Point: geom.Point{X: 0, Y: 0}, Row: 0, OffsetA: 2, Radius1: 10, Radius2: 100, Azimuth1: 350, Azimuth2: 10},
		{Point: geom.Point{X: 500, Y: 0}, Row: 1, OffsetA: 1.5, OffsetB: 1.75, Radius1: 0, Radius2: 50, Azimuth1: 0, Azimuth2: 180},
	}
	wedges := make([]geom.Polygon, len(observers))
	for i, o := range observers {
		w, _, err := o.Wedges(ExactStepping)
		if err != nil {
			t.Fatal(err)
		}
		wedges[i] = w
	}
	if err := WriteWedges(filename, observers, wedges, testWKT); err != nil {
		t.Fatal(err)
	}

	d, err := shp.NewDecoder(filename)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()
	type rec struct {
		geom.Polygon
		OBSERVER int
		OFFSETA  float64
		OFFSETB  float64
		RADIUS1  float64
		RADIUS2  float64
		AZIMUTH1 float64
		AZIMUTH2 float64
	}
	var i int
	for {
		var r rec
		if !d.DecodeRow(&r) {
			break
		}
		o := observers[i]
		if r.OBSERVER != o.Row || r.OFFSETA != o.OffsetA || r.OFFSETB != o.OffsetB || r.RADIUS1 != o.Radius1 ||
			r.RADIUS2 != o.Radius2 || r.AZIMUTH1 != o.Azimuth1 || r.AZIMUTH2 != o.Azimuth2 {
			t.Errorf("%d: attributes %+v do not match observer %+v", i, r, o)
		}
		if a, want := r.Polygon.Area(), wedges[i].Area(); math.Abs(a-want)/want > tolerance {
			t.Errorf("%d: area %g, want %g", i, a, want)
		}
		i++
	}
	if err := d.Error(); err != nil {
		t.Fatal(err)
	}
	if i != len(observers) {
		t.Errorf("read %d wedges, want %d", i, len(observers))
	}

	if err := WriteWedges(filename, observers, wedges[:1], ""); err == nil {
		t.Error("mismatched observers and wedges should give an error")
	}
}
