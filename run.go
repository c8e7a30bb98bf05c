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
	"fmt"
	"os"
	"path/filepath"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
)

// DescribeSurface reads the coordinate system and extent of the elevation
// dataset.
func DescribeSurface(d SurfaceDescriber) JobManipulator {
	return func(ctx context.Context, j *Job) error {
		s, err := d.DescribeSurface(ctx, j.ElevationDataset)
		if err != nil {
			return fmt.Errorf("viewshed: describing elevation dataset: %v", err)
		}
		j.Surface = s
		return nil
	}
}

// CheckSurfaceProjected aborts the run if the elevation dataset is not in
// a projected coordinate system.
func CheckSurfaceProjected() JobManipulator {
	return func(_ context.Context, j *Job) error {
		if err := CheckProjected(j.Surface); err != nil {
			j.Log.Error(err)
			return err
		}
		return nil
	}
}

// LoadObservers reads the observers, reprojecting them into the coordinate
// system of the elevation dataset if it has been described. OffsetB is set
// to the target height of the calculation.
func LoadObservers() JobManipulator {
	return func(_ context.Context, j *Job) error {
		var sr *proj.SR
		if j.Surface != nil {
			sr = j.Surface.SR
		}
		j.Log.WithField("file", j.ObserverLayer).Info("Loading observers...")
		o, err := ReadObservers(j.ObserverLayer, j.Params, sr)
		if err != nil {
			return err
		}
		for _, ob := range o {
			ob.OffsetB = j.Calculation.TargetHeight
		}
		j.Observers = o
		return nil
	}
}

// CheckObserversInSurface aborts the run if the observers do not fall
// within the elevation dataset.
func CheckObserversInSurface() JobManipulator {
	return func(_ context.Context, j *Job) error {
		if err := CheckContainment(j.Observers, j.Surface); err != nil {
			j.Log.Error(err)
			return err
		}
		return nil
	}
}

// BuildWedges creates the annular and full wedge of every observer.
func BuildWedges() JobManipulator {
	return func(_ context.Context, j *Job) error {
		j.Wedges = make([]geom.Polygon, len(j.Observers))
		j.FullWedges = make([]geom.Polygon, len(j.Observers))
		for i, o := range j.Observers {
			w, f, err := o.Wedges(j.Stepping)
			if err != nil {
				return fmt.Errorf("viewshed: %w", err)
			}
			j.Wedges[i], j.FullWedges[i] = w, f
		}
		return nil
	}
}

// ClipSurface clips the elevation dataset to the buffered observers.
func ClipSurface(c RasterClipper) JobManipulator {
	return func(ctx context.Context, j *Job) error {
		j.Log.Info("Buffering observers...")
		var cellSize float64
		if j.Surface != nil {
			cellSize = j.Surface.CellSize
		}
		extent, err := ClipExtent(j.Observers, cellSize)
		if err != nil {
			return err
		}
		j.Extent = extent

		j.Log.Info("Clipping image to observer buffer...")
		j.ClippedSurface = filepath.Join(j.Dir, "clipped.tif")
		if err := c.ClipRaster(ctx, j.ElevationDataset, extent, j.ClippedSurface); err != nil {
			return fmt.Errorf("viewshed: clipping elevation dataset: %v", err)
		}
		return nil
	}
}

// CalculateViewshed computes the visibility count raster.
func CalculateViewshed(c ViewshedCalculator) JobManipulator {
	return func(ctx context.Context, j *Job) error {
		j.Log.Info("Calculating viewshed...")
		j.VisibilityRaster = filepath.Join(j.Dir, "visibility.tif")
		opts := j.Calculation
		opts.Stepping = j.Stepping
		if err := c.ComputeViewshed(ctx, j.ClippedSurface, j.Observers, opts, j.VisibilityRaster); err != nil {
			return fmt.Errorf("viewshed: calculating viewshed: %v", err)
		}
		return nil
	}
}

// PolygonizeViewshed converts the visibility raster into polygons.
func PolygonizeViewshed(p Polygonizer) JobManipulator {
	return func(ctx context.Context, j *Job) error {
		j.Log.Info("Creating features from raster...")
		raw, err := p.Polygonize(ctx, j.VisibilityRaster, filepath.Join(j.Dir, "unclipped.shp"))
		if err != nil {
			return fmt.Errorf("viewshed: converting raster to polygons: %v", err)
		}
		j.Raw = raw
		return nil
	}
}

// FinishViewshed clips the raw viewshed polygons to the wedges and
// dissolves them by grid code.
func FinishViewshed() JobManipulator {
	return func(_ context.Context, j *Job) error {
		j.Log.Info("Finishing output features...")
		j.Result = Dissolve(ClipToWedges(j.Raw, j.Wedges))
		j.Log.WithField("features", len(j.Result)).Debug("dissolved viewshed")
		return nil
	}
}

func (j *Job) wkt() string {
	if j.Surface == nil {
		return ""
	}
	return j.Surface.WKT
}

// WriteWedgeOutputs writes the annular and full wedge layers.
func WriteWedgeOutputs() JobManipulator {
	return func(_ context.Context, j *Job) error {
		if err := WriteWedges(j.WedgeOutput, j.Observers, j.Wedges, j.wkt()); err != nil {
			return err
		}
		if err := WriteWedges(j.FullWedgeOutput, j.Observers, j.FullWedges, j.wkt()); err != nil {
			return err
		}
		j.Log.WithField("wedges", ShpName(j.WedgeOutput)).WithField("full_wedges", ShpName(j.FullWedgeOutput)).Info("Wrote wedges")
		return nil
	}
}

// WriteViewshedOutput writes the dissolved viewshed layer.
func WriteViewshedOutput() JobManipulator {
	return func(_ context.Context, j *Job) error {
		if err := WriteViewshed(j.ViewshedOutput, j.Result, j.wkt()); err != nil {
			return err
		}
		j.Log.WithField("file", ShpName(j.ViewshedOutput)).Info("Wrote viewshed")
		return nil
	}
}

// RemoveWorkspace deletes the intermediate files unless KeepWorkspace
// is set.
func RemoveWorkspace() JobManipulator {
	return func(_ context.Context, j *Job) error {
		if j.Dir == "" || j.KeepWorkspace {
			return nil
		}
		if err := os.RemoveAll(j.Dir); err != nil {
			return fmt.Errorf("viewshed: removing workspace: %v", err)
		}
		return nil
	}
}
