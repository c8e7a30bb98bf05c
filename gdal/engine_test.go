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

package gdal

import (
	"context"
	"fmt"
	"io/ioutil"
	"math"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/viewshed"
)

const lcc = `PROJCS["Lambert_Conformal_Conic",GEOGCS["GCS_unnamed ellipse",DATUM["D_unknown",SPHEROID["Unknown",6370997,0]],PRIMEM["Greenwich",0],UNIT["Degree",0.017453292519943295]],PROJECTION["Lambert_Conformal_Conic"],PARAMETER["standard_parallel_1",33],PARAMETER["standard_parallel_2",45],PARAMETER["latitude_of_origin",40],PARAMETER["central_meridian",-97],PARAMETER["false_easting",0],PARAMETER["false_northing",0],UNIT["Meter",1]]`

const wgs84 = `GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563]],PRIMEM["Greenwich",0],UNIT["degree",0.0174532925199433]]`

func gdalinfo(wkt string) []byte {
	return []byte(fmt.Sprintf(`{
  "description": "dem.tif",
  "driverShortName": "GTiff",
  "size": [100, 50],
  "coordinateSystem": {"wkt": %q},
  "geoTransform": [1000.0, 30.0, 0.0, 2500.0, 0.0, -30.0],
  "cornerCoordinates": {
    "upperLeft": [1000.0, 2500.0],
    "lowerLeft": [1000.0, 1000.0],
    "lowerRight": [4000.0, 1000.0],
    "upperRight": [4000.0, 2500.0],
    "center": [2500.0, 1750.0]
  }
}`, wkt))
}

// fakeRunner records commands instead of running them.
type fakeRunner struct {
	wkt      string
	commands [][]string
	polys    []*viewshed.VisibilityPolygon
	fail     string
}

func (r *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	r.commands = append(r.commands, append([]string{name}, args...))
	if name == r.fail {
		return []byte("ERROR 1: failed"), &CommandError{Name: name, Args: args, Err: fmt.Errorf("exit status 1")}
	}
	switch name {
	case "gdalinfo":
		return gdalinfo(r.wkt), nil
	case "gdal_polygonize.py":
		// args: -q raster -f "ESRI Shapefile" dst layer field
		return nil, viewshed.WriteViewshed(args[4], r.polys, "")
	}
	return nil, nil
}

func (r *fakeRunner) names() []string {
	var n []string
	for _, c := range r.commands {
		n = append(n, c[0])
	}
	return n
}

func newTestEngine(r *fakeRunner) *Engine {
	l := logrus.New()
	l.Out = ioutil.Discard
	return &Engine{Runner: r, Log: l}
}

func TestDescribeSurface(t *testing.T) {
	e := newTestEngine(&fakeRunner{wkt: lcc})
	s, err := e.DescribeSurface(context.Background(), "dem.tif")
	if err != nil {
		t.Fatal(err)
	}
	if !s.Projected {
		t.Error("surface should be projected")
	}
	if s.CoordinateSystem != "Lambert_Conformal_Conic" {
		t.Errorf("coordinate system: %s", s.CoordinateSystem)
	}
	if s.SR == nil {
		t.Error("spatial reference should be parsed")
	}
	want := &geom.Bounds{Min: geom.Point{X: 1000, Y: 1000}, Max: geom.Point{X: 4000, Y: 2500}}
	if !reflect.DeepEqual(s.Extent, want) {
		t.Errorf("extent: have %v, want %v", s.Extent, want)
	}
	if s.CellSize != 30 {
		t.Errorf("cell size: %g", s.CellSize)
	}
	if s.Path != "dem.tif" || s.WKT != lcc {
		t.Errorf("path %s, wkt %s", s.Path, s.WKT)
	}
}

func TestDescribeSurface_geographic(t *testing.T) {
	e := newTestEngine(&fakeRunner{wkt: wgs84})
	s, err := e.DescribeSurface(context.Background(), "dem.tif")
	if err != nil {
		t.Fatal(err)
	}
	if s.Projected {
		t.Error("surface should not be projected")
	}
	err = viewshed.CheckProjected(s)
	want := "Error: Input elevation raster must be in a projected coordinate system. Existing elevation raster is in WGS 84."
	if err == nil || err.Error() != want {
		t.Errorf("have %v, want %s", err, want)
	}
}

const compound = `COMPD_CS["LCC + NAVD88 height",` + lcc + `,VERT_CS["NAVD88 height",VERT_DATUM["North American Vertical Datum 1988",2005],UNIT["metre",1],AXIS["Up",UP]]]`

func TestDescribeSurface_compound(t *testing.T) {
	e := newTestEngine(&fakeRunner{wkt: compound})
	s, err := e.DescribeSurface(context.Background(), "dem.tif")
	if err != nil {
		t.Fatal(err)
	}
	if !s.Projected {
		t.Error("surface with a projected horizontal system should be projected")
	}
	if s.SR == nil {
		t.Error("spatial reference should be parsed")
	}
	if s.CoordinateSystem != "LCC + NAVD88 height" {
		t.Errorf("coordinate system: %s", s.CoordinateSystem)
	}
	if err := viewshed.CheckProjected(s); err != nil {
		t.Error(err)
	}
}

func TestHorizontalCS(t *testing.T) {
	geoCompound := `COMPD_CS["WGS 84 + EGM96 height",` + wgs84 + `,VERT_CS["EGM96 height",VERT_DATUM["EGM96 geoid",2005]]]`
	for wkt, want := range map[string]string{
		compound:    lcc,
		geoCompound: wgs84,
		lcc:         lcc,
		wgs84:       wgs84,
	} {
		if have := horizontalCS(wkt); have != want {
			t.Errorf("have %s, want %s", have, want)
		}
	}
}

func TestDescribeSurface_noCoordinateSystem(t *testing.T) {
	e := newTestEngine(&fakeRunner{})
	if _, err := e.DescribeSurface(context.Background(), "dem.tif"); err == nil {
		t.Error("raster without a coordinate system should give an error")
	}
}

func TestCoordinateSystemName(t *testing.T) {
	for wkt, want := range map[string]string{
		lcc:   "Lambert_Conformal_Conic",
		wgs84: "WGS 84",
		`PROJCRS["NAD83 / UTM zone 15N",BASEGEOGCRS[]]`: "NAD83 / UTM zone 15N",
		"nonsense": "an unknown coordinate system",
	} {
		if have := coordinateSystemName(wkt); have != want {
			t.Errorf("have %q, want %q", have, want)
		}
	}
}

func TestClipRaster(t *testing.T) {
	r := &fakeRunner{}
	e := newTestEngine(r)
	b := &geom.Bounds{Min: geom.Point{X: 1000.5, Y: -20}, Max: geom.Point{X: 3000, Y: 2500.25}}
	if err := e.ClipRaster(context.Background(), "dem.tif", b, "clipped.tif"); err != nil {
		t.Fatal(err)
	}
	want := [][]string{{"gdal_translate", "-of", "GTiff", "-projwin", "1000.5", "2500.25", "3000", "-20", "dem.tif", "clipped.tif"}}
	if !reflect.DeepEqual(r.commands, want) {
		t.Errorf("have %v, want %v", r.commands, want)
	}
}

func TestComputeViewshed(t *testing.T) {
	dir := t.TempDir()
	r := &fakeRunner{wkt: lcc}
	e := newTestEngine(r)
	observers := []*viewshed.Observer{
		{Point: geom.Point{X: 2000, Y: 1500}, OffsetA: 2, Radius2: 500, Azimuth1: 0, Azimuth2: 90},
		{Point: geom.Point{X: 3000, Y: 2000}, OffsetA: 1.5, Radius2: 250, Azimuth1: 270, Azimuth2: 45, Row: 1},
		{Point: geom.Point{X: 2500, Y: 1200}, OffsetA: 0, Radius2: 100, Row: 2},
	}
	dst := filepath.Join(dir, "visibility.tif")
	opts := viewshed.ViewshedOptions{Refractivity: viewshed.DefaultRefractivity, TargetHeight: 1}
	if err := e.ComputeViewshed(context.Background(), "clipped.tif", observers, opts, dst); err != nil {
		t.Fatal(err)
	}

	wantNames := []string{"gdalinfo",
		"gdal_viewshed", "gdalwarp", "gdal_rasterize",
		"gdal_viewshed", "gdalwarp", "gdal_rasterize",
		"gdal_viewshed", "gdalwarp", "gdal_rasterize",
		"gdal_calc.py", "gdal_calc.py"}
	if names := r.names(); !reflect.DeepEqual(names, wantNames) {
		t.Fatalf("commands: have %v, want %v", names, wantNames)
	}

	vs := strings.Join(r.commands[1], " ")
	for _, arg := range []string{"-ox 2000", "-oy 1500", "-oz 2", "-tz 1", "-md 500", "-cc 0.87", "clipped.tif"} {
		if !strings.Contains(vs, arg) {
			t.Errorf("gdal_viewshed arguments %q should contain %q", vs, arg)
		}
	}
	warp := strings.Join(r.commands[2], " ")
	for _, arg := range []string{"-te 1000 1000 4000 2500", "-tr 30 30"} {
		if !strings.Contains(warp, arg) {
			t.Errorf("gdalwarp arguments %q should contain %q", warp, arg)
		}
	}
	last := r.commands[len(r.commands)-1]
	if !contains(last, "--outfile="+dst) || !contains(last, "--calc=A+B") {
		t.Errorf("final sum %v should write %s", last, dst)
	}
	first := r.commands[len(r.commands)-2]
	var firstOut string
	for _, a := range first {
		if strings.HasPrefix(a, "--outfile=") {
			firstOut = strings.TrimPrefix(a, "--outfile=")
		}
	}
	if !contains(last, firstOut) {
		t.Errorf("final sum %v should read the partial sum %s", last, firstOut)
	}
}

func TestComputeViewshed_masksWedges(t *testing.T) {
	dir := t.TempDir()
	r := &fakeRunner{wkt: lcc}
	e := newTestEngine(r)
	center := geom.Point{X: 2000, Y: 1500}
	observers := []*viewshed.Observer{
		{Point: center, Radius1: 100, Radius2: 500, Azimuth1: 0, Azimuth2: 90},
		{Point: center, Radius1: 0, Radius2: 500, Azimuth1: 180, Azimuth2: 270, Row: 1},
	}
	dst := filepath.Join(dir, "visibility.tif")
	if err := e.ComputeViewshed(context.Background(), "clipped.tif", observers, viewshed.ViewshedOptions{}, dst); err != nil {
		t.Fatal(err)
	}

	var masks [][]string
	for i, c := range r.commands {
		if c[0] != "gdal_rasterize" {
			continue
		}
		masks = append(masks, c)
		warp := r.commands[i-1]
		if warp[0] != "gdalwarp" || c[len(c)-1] != warp[len(warp)-1] {
			t.Errorf("mask %v should be burned into the aligned raster of %v", c, warp)
		}
		if !contains(c, "-i") || !strings.Contains(strings.Join(c, " "), "-burn 0") {
			t.Errorf("mask %v should zero the cells outside the wedge", c)
		}
	}
	if len(masks) != len(observers) {
		t.Fatalf("have %d masks, want one per observer", len(masks))
	}
	if masks[0][6] == masks[1][6] || masks[0][7] == masks[1][7] {
		t.Errorf("observers should have separate masks and rasters: %v, %v", masks[0], masks[1])
	}

	const tol = 1e-6
	for i, m := range masks {
		d, err := shp.NewDecoder(m[6])
		if err != nil {
			t.Fatal(err)
		}
		g, _, more := d.DecodeRowFields()
		if err := d.Error(); err != nil {
			t.Fatal(err)
		}
		d.Close()
		if !more {
			t.Fatalf("mask %d is empty", i)
		}
		p, ok := g.(geom.Polygonal)
		if !ok {
			t.Fatalf("mask %d has geometry type %T", i, g)
		}
		want, _, err := observers[i].Wedges(viewshed.ExactStepping)
		if err != nil {
			t.Fatal(err)
		}
		if math.Abs(p.Area()-want.Area()) > tol*want.Area() {
			t.Errorf("mask %d area: have %g, want %g", i, p.Area(), want.Area())
		}
		b := p.Bounds()
		switch i {
		case 0: // north to east
			if b.Min.X < center.X-tol || b.Min.Y < center.Y-tol {
				t.Errorf("mask 0 bounds %v should be north-east of the observer", b)
			}
		case 1: // south to west
			if b.Max.X > center.X+tol || b.Max.Y > center.Y+tol {
				t.Errorf("mask 1 bounds %v should be south-west of the observer", b)
			}
		}
	}
}

func TestComputeViewshed_single(t *testing.T) {
	r := &fakeRunner{wkt: lcc}
	e := newTestEngine(r)
	observers := []*viewshed.Observer{{Point: geom.Point{X: 2000, Y: 1500}, Radius2: 500}}
	dst := filepath.Join(t.TempDir(), "visibility.tif")
	if err := e.ComputeViewshed(context.Background(), "clipped.tif", observers, viewshed.ViewshedOptions{}, dst); err != nil {
		t.Fatal(err)
	}
	last := r.commands[len(r.commands)-1]
	if last[0] != "gdal_translate" || last[len(last)-1] != dst {
		t.Errorf("single observer raster should be copied to %s: %v", dst, last)
	}
}

func TestComputeViewshed_failure(t *testing.T) {
	r := &fakeRunner{wkt: lcc, fail: "gdal_viewshed"}
	e := newTestEngine(r)
	observers := []*viewshed.Observer{{Point: geom.Point{X: 2000, Y: 1500}, Radius2: 500}}
	err := e.ComputeViewshed(context.Background(), "clipped.tif", observers, viewshed.ViewshedOptions{}, filepath.Join(t.TempDir(), "v.tif"))
	if _, ok := err.(*CommandError); !ok {
		t.Errorf("error %v should be a *CommandError", err)
	}
}

func TestPolygonize(t *testing.T) {
	dir := t.TempDir()
	sq := geom.Polygon{{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}, {X: 0, Y: 0}}}
	r := &fakeRunner{polys: []*viewshed.VisibilityPolygon{{Polygon: sq, GridCode: 2}}}
	e := newTestEngine(r)
	dst := filepath.Join(dir, "unclipped.shp")
	polys, err := e.Polygonize(context.Background(), "visibility.tif", dst)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"gdal_polygonize.py", "-q", "visibility.tif", "-f", "ESRI Shapefile", dst, "unclipped", "gridcode"}
	if !reflect.DeepEqual(r.commands[0], want) {
		t.Errorf("have %v, want %v", r.commands[0], want)
	}
	if len(polys) != 1 || polys[0].GridCode != 2 || polys[0].Area() != 1 {
		t.Errorf("polygons: %+v", polys)
	}

	// Running again replaces the previous output.
	if _, err := e.Polygonize(context.Background(), "visibility.tif", dst); err != nil {
		t.Fatal(err)
	}
}

func contains(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
