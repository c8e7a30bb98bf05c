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

// Package gdal implements the raster operations of a viewshed run using
// the GDAL command line utilities.
package gdal

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/viewshed"
	"github.com/spatialmodel/viewshed/internal/hash"
)

// Engine runs GDAL utilities to carry out raster operations.
type Engine struct {
	Runner Runner
	Log    logrus.FieldLogger
}

var _ viewshed.Engine = &Engine{}

// New returns an Engine that runs the GDAL executables in binDir
// (or PATH if binDir is empty).
func New(binDir string, log logrus.FieldLogger) *Engine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Engine{Runner: ExecRunner{BinDir: binDir}, Log: log}
}

func (e *Engine) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	e.Log.WithField("cmd", name).Debug(strings.Join(args, " "))
	return e.Runner.Run(ctx, name, args...)
}

// info is the subset of `gdalinfo -json` output that is used.
type info struct {
	CoordinateSystem struct {
		WKT string `json:"wkt"`
	} `json:"coordinateSystem"`
	GeoTransform      []float64 `json:"geoTransform"`
	CornerCoordinates struct {
		LowerLeft  []float64 `json:"lowerLeft"`
		UpperRight []float64 `json:"upperRight"`
	} `json:"cornerCoordinates"`
}

var wktName = regexp.MustCompile(`^\s*[A-Z_]+\s*\[\s*"([^"]*)"`)

// DescribeSurface implements viewshed.SurfaceDescriber.
func (e *Engine) DescribeSurface(ctx context.Context, path string) (*viewshed.Surface, error) {
	out, err := e.run(ctx, "gdalinfo", "-json", "-wkt_format", "WKT1", path)
	if err != nil {
		return nil, err
	}
	var i info
	if err := json.Unmarshal(out, &i); err != nil {
		return nil, fmt.Errorf("gdal: parsing gdalinfo output for %s: %v", path, err)
	}
	wkt := strings.TrimSpace(i.CoordinateSystem.WKT)
	if wkt == "" {
		return nil, fmt.Errorf("gdal: %s has no coordinate system", path)
	}
	s := &viewshed.Surface{
		Path:             path,
		WKT:              wkt,
		CoordinateSystem: coordinateSystemName(wkt),
	}
	h := horizontalCS(wkt)
	s.Projected = strings.HasPrefix(h, "PROJCS") || strings.HasPrefix(h, "PROJCRS")
	// The spatial reference is only needed to reproject observers onto
	// a projected surface.
	if s.SR, err = proj.Parse(h); err != nil && s.Projected {
		return nil, fmt.Errorf("gdal: parsing coordinate system of %s: %v", path, err)
	}
	ll, ur := i.CornerCoordinates.LowerLeft, i.CornerCoordinates.UpperRight
	if len(ll) < 2 || len(ur) < 2 {
		return nil, fmt.Errorf("gdal: %s has no corner coordinates", path)
	}
	s.Extent = &geom.Bounds{
		Min: geom.Point{X: math.Min(ll[0], ur[0]), Y: math.Min(ll[1], ur[1])},
		Max: geom.Point{X: math.Max(ll[0], ur[0]), Y: math.Max(ll[1], ur[1])},
	}
	if len(i.GeoTransform) == 6 {
		s.CellSize = math.Abs(i.GeoTransform[1])
	}
	return s, nil
}

// coordinateSystemName returns the name of the outermost WKT section.
func coordinateSystemName(wkt string) string {
	if m := wktName.FindStringSubmatch(wkt); m != nil {
		return m[1]
	}
	return "an unknown coordinate system"
}

// horizontalCS returns the projected or geographic part of a compound
// coordinate system. Other definitions are returned unchanged.
func horizontalCS(wkt string) string {
	if !strings.HasPrefix(wkt, "COMPD_CS") && !strings.HasPrefix(wkt, "COMPOUNDCRS") {
		return wkt
	}
	for _, kw := range []string{"PROJCS[", "PROJCRS[", "GEOGCS[", "GEOGCRS["} {
		i := strings.Index(wkt, kw)
		if i < 0 {
			continue
		}
		depth := 0
		for j := i + len(kw) - 1; j < len(wkt); j++ {
			switch wkt[j] {
			case '[':
				depth++
			case ']':
				depth--
				if depth == 0 {
					return wkt[i : j+1]
				}
			}
		}
	}
	return wkt
}

func ftoa(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// ClipRaster implements viewshed.RasterClipper.
func (e *Engine) ClipRaster(ctx context.Context, src string, extent *geom.Bounds, dst string) error {
	_, err := e.run(ctx, "gdal_translate", "-of", "GTiff",
		"-projwin", ftoa(extent.Min.X), ftoa(extent.Max.Y), ftoa(extent.Max.X), ftoa(extent.Min.Y),
		src, dst)
	return err
}

// observerKey identifies the visibility raster of a single observer.
type observerKey struct {
	Surface  string
	Observer viewshed.Observer
	Options  viewshed.ViewshedOptions
}

// ComputeViewshed implements viewshed.ViewshedCalculator. A visibility
// raster is computed for each observer, aligned to the grid of surface,
// masked to the observer's annular wedge, and the rasters are summed.
func (e *Engine) ComputeViewshed(ctx context.Context, surface string, observers []*viewshed.Observer, opts viewshed.ViewshedOptions, dst string) error {
	if len(observers) == 0 {
		return fmt.Errorf("gdal: no observers")
	}
	grid, err := e.DescribeSurface(ctx, surface)
	if err != nil {
		return err
	}
	dir := filepath.Dir(dst)

	aligned := make([]string, len(observers))
	for i, o := range observers {
		key := observerKey{Surface: surface, Observer: *o, Options: opts}
		raw := filepath.Join(dir, hash.Name("vs", key, ".tif"))
		aligned[i] = filepath.Join(dir, hash.Name("vsa", key, ".tif"))

		if _, err := e.run(ctx, "gdal_viewshed", "-b", "1", "-f", "GTiff",
			"-ox", ftoa(o.X), "-oy", ftoa(o.Y),
			"-oz", ftoa(o.OffsetA), "-tz", ftoa(opts.TargetHeight),
			"-md", ftoa(o.Radius2),
			"-cc", ftoa(1-opts.Refractivity),
			"-vv", "1", "-iv", "0", "-ov", "0",
			surface, raw); err != nil {
			return err
		}
		// gdal_viewshed crops its output to the maximum distance.
		if _, err := e.run(ctx, "gdalwarp", "-overwrite", "-of", "GTiff",
			"-te", ftoa(grid.Extent.Min.X), ftoa(grid.Extent.Min.Y), ftoa(grid.Extent.Max.X), ftoa(grid.Extent.Max.Y),
			"-tr", ftoa(grid.CellSize), ftoa(grid.CellSize),
			"-dstnodata", "None", "-init_dest", "0",
			raw, aligned[i]); err != nil {
			return err
		}
		if err := e.mask(ctx, o, opts.Stepping, grid.WKT, filepath.Join(dir, hash.Name("mask", key, ".shp")), aligned[i]); err != nil {
			return err
		}
	}
	return e.sum(ctx, aligned, dst)
}

// mask sets the cells of raster that are outside the annular wedge of o
// to zero.
func (e *Engine) mask(ctx context.Context, o *viewshed.Observer, mode viewshed.Stepping, wkt, shpFile, raster string) error {
	wedge, _, err := o.Wedges(mode)
	if err != nil {
		return fmt.Errorf("gdal: %v", err)
	}
	if err := viewshed.WriteWedges(shpFile, []*viewshed.Observer{o}, []geom.Polygon{wedge}, wkt); err != nil {
		return err
	}
	layer := strings.TrimSuffix(filepath.Base(shpFile), ".shp")
	_, err = e.run(ctx, "gdal_rasterize", "-i", "-burn", "0", "-l", layer, shpFile, raster)
	return err
}

// sum adds the rasters in srcs cell by cell and writes the result to dst.
func (e *Engine) sum(ctx context.Context, srcs []string, dst string) error {
	if len(srcs) == 1 {
		_, err := e.run(ctx, "gdal_translate", "-of", "GTiff", "-ot", "Int32", srcs[0], dst)
		return err
	}
	acc := srcs[0]
	for i := 1; i < len(srcs); i++ {
		out := dst
		if i < len(srcs)-1 {
			out = strings.TrimSuffix(dst, filepath.Ext(dst)) + fmt.Sprintf("_sum%d.tif", i)
		}
		if _, err := e.run(ctx, "gdal_calc.py", "--quiet", "--overwrite",
			"-A", acc, "-B", srcs[i],
			"--outfile="+out, "--calc=A+B", "--type=Int32"); err != nil {
			return err
		}
		acc = out
	}
	return nil
}

// Polygonize implements viewshed.Polygonizer.
func (e *Engine) Polygonize(ctx context.Context, raster, dst string) ([]*viewshed.VisibilityPolygon, error) {
	dst = viewshed.ShpName(dst)
	base := strings.TrimSuffix(dst, ".shp")
	for _, ext := range []string{".shp", ".shx", ".dbf", ".prj"} {
		if err := os.Remove(base + ext); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("gdal: removing old %s: %v", base+ext, err)
		}
	}
	layer := filepath.Base(base)
	if _, err := e.run(ctx, "gdal_polygonize.py", "-q", raster, "-f", "ESRI Shapefile", dst, layer, viewshed.GridCodeField); err != nil {
		return nil, err
	}
	return viewshed.ReadVisibilityPolygons(dst)
}
