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
	"context"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
)

// DefaultRefractivity is the default coefficient of refraction of
// visible light used to correct for earth curvature.
const DefaultRefractivity = 0.13

// Surface describes an elevation raster.
type Surface struct {
	// Path is the location of the raster.
	Path string

	// WKT is the well-known-text coordinate system definition.
	WKT string

	// SR is the parsed coordinate system.
	SR *proj.SR

	// CoordinateSystem is the human-readable name of the coordinate system.
	CoordinateSystem string

	// Projected is true when the raster is in a planar projected
	// coordinate system.
	Projected bool

	// Extent is the area covered by the raster.
	Extent *geom.Bounds

	// CellSize is the width of a raster cell in map units.
	CellSize float64
}

// ViewshedOptions holds settings for a viewshed calculation.
type ViewshedOptions struct {
	// Refractivity is the refraction coefficient used together with
	// the earth curvature correction.
	Refractivity float64

	// TargetHeight is the height of the observed target above the surface.
	TargetHeight float64

	// Stepping is used to build the annular wedge that limits what each
	// observer can see.
	Stepping Stepping
}

// VisibilityPolygon is a region of equal visibility. GridCode is the number
// of observers that can see the region; zero means not visible.
type VisibilityPolygon struct {
	geom.Polygon
	GridCode int
}

// SurfaceDescriber reports the coordinate system and extent of a raster.
type SurfaceDescriber interface {
	DescribeSurface(ctx context.Context, path string) (*Surface, error)
}

// RasterClipper crops a raster to a rectangle.
type RasterClipper interface {
	ClipRaster(ctx context.Context, src string, extent *geom.Bounds, dst string) error
}

// ViewshedCalculator writes a raster to dst whose cells hold the number of
// observers that can see them from the elevation raster at surface. A cell
// only counts for an observer if it lies within that observer's annular
// wedge.
type ViewshedCalculator interface {
	ComputeViewshed(ctx context.Context, surface string, observers []*Observer, opts ViewshedOptions, dst string) error
}

// Polygonizer converts contiguous regions of equal value in a raster into
// polygons. Intermediate vector files may be written to dst.
type Polygonizer interface {
	Polygonize(ctx context.Context, raster, dst string) ([]*VisibilityPolygon, error)
}

// Engine provides all raster capabilities needed by a Viewshed run.
type Engine interface {
	SurfaceDescriber
	RasterClipper
	ViewshedCalculator
	Polygonizer
}
