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

// Package viewshed computes the area visible from a set of observer points
// over an elevation surface, limited to the annular range fan of each
// observer.
package viewshed

import (
	"context"
	"fmt"
	"io/ioutil"

	"github.com/ctessum/geom"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Version gives the version number.
const Version = "1.0.0"

// Options specifies the inputs and outputs of a run.
type Options struct {
	// ElevationDataset is the path to the elevation raster.
	ElevationDataset string

	// ObserverLayer is the path to the observer point shapefile.
	ObserverLayer string

	// Params specifies the observer parameters.
	Params ObserverParams

	ViewshedOutput  string
	WedgeOutput     string
	FullWedgeOutput string

	Stepping    Stepping
	Calculation ViewshedOptions

	// Workspace is the directory in which the run directory for
	// intermediate files is created. If empty, the system temporary
	// directory is used.
	Workspace string

	// KeepWorkspace retains intermediate files after the run.
	KeepWorkspace bool
}

// Job holds the state of a run as it passes through the stages of
// a Viewshed.
type Job struct {
	*Options

	// ID identifies the run.
	ID string

	Log logrus.FieldLogger

	// Dir is the directory holding intermediate files.
	Dir string

	Surface   *Surface
	Observers []*Observer

	Wedges     []geom.Polygon
	FullWedges []geom.Polygon

	// Extent is the area the elevation raster is clipped to.
	Extent *geom.Bounds

	ClippedSurface   string
	VisibilityRaster string

	// Raw holds the polygonized visibility raster.
	Raw []*VisibilityPolygon

	// Result holds the final viewshed polygons.
	Result []*VisibilityPolygon
}

// NewJob creates a new run with the given options. If log is nil the
// standard logger is used.
func NewJob(o *Options, log logrus.FieldLogger) *Job {
	if log == nil {
		log = logrus.StandardLogger()
	}
	id := uuid.New().String()
	return &Job{
		Options: o,
		ID:      id,
		Log:     log.WithField("run", id),
	}
}

// JobManipulator is a stage of a Viewshed run.
type JobManipulator func(ctx context.Context, j *Job) error

// Viewshed is a sequence of stages that are applied to a Job.
type Viewshed struct {
	// InitFuncs are run once to prepare the job. Precondition checks
	// belong here.
	InitFuncs []JobManipulator

	// RunFuncs carry out the analysis.
	RunFuncs []JobManipulator

	// CleanupFuncs run after the analysis, whether or not it succeeded.
	CleanupFuncs []JobManipulator
}

// Init runs the initialization stages.
func (v *Viewshed) Init(ctx context.Context, j *Job) error {
	return v.apply(ctx, j, v.InitFuncs)
}

// Run runs the analysis stages.
func (v *Viewshed) Run(ctx context.Context, j *Job) error {
	return v.apply(ctx, j, v.RunFuncs)
}

// Cleanup runs the cleanup stages. All stages are run; the first error
// is returned.
func (v *Viewshed) Cleanup(ctx context.Context, j *Job) error {
	var first error
	for _, f := range v.CleanupFuncs {
		if err := f(ctx, j); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (v *Viewshed) apply(ctx context.Context, j *Job, funcs []JobManipulator) error {
	for _, f := range funcs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := f(ctx, j); err != nil {
			return err
		}
	}
	return nil
}

// Execute runs all stages of v on j. Cleanup stages run even if an
// earlier stage fails.
func (v *Viewshed) Execute(ctx context.Context, j *Job) error {
	err := v.Init(ctx, j)
	if err == nil {
		err = v.Run(ctx, j)
	}
	if cerr := v.Cleanup(ctx, j); err == nil && cerr != nil {
		err = fmt.Errorf("viewshed: cleaning up: %v", cerr)
	}
	return err
}

// Pipeline returns the standard stages of a viewshed run using e as the
// raster engine.
func Pipeline(e Engine) *Viewshed {
	return &Viewshed{
		InitFuncs: []JobManipulator{
			CreateWorkspace(),
			DescribeSurface(e),
			CheckSurfaceProjected(),
			LoadObservers(),
			CheckObserversInSurface(),
		},
		RunFuncs: []JobManipulator{
			BuildWedges(),
			ClipSurface(e),
			CalculateViewshed(e),
			PolygonizeViewshed(e),
			FinishViewshed(),
			WriteWedgeOutputs(),
			WriteViewshedOutput(),
		},
		CleanupFuncs: []JobManipulator{
			RemoveWorkspace(),
		},
	}
}

// WedgePipeline returns stages that only build and write the wedge layers.
// d, if not nil, is used to reproject the observers into the coordinate
// system of the elevation dataset.
func WedgePipeline(d SurfaceDescriber) *Viewshed {
	v := &Viewshed{
		RunFuncs: []JobManipulator{
			BuildWedges(),
			WriteWedgeOutputs(),
		},
	}
	if d != nil {
		v.InitFuncs = append(v.InitFuncs, DescribeSurface(d), CheckSurfaceProjected())
	}
	v.InitFuncs = append(v.InitFuncs, LoadObservers())
	return v
}

// CreateWorkspace creates the directory for intermediate files.
func CreateWorkspace() JobManipulator {
	return func(_ context.Context, j *Job) error {
		dir, err := ioutil.TempDir(j.Workspace, "viewshed-"+j.ID)
		if err != nil {
			return fmt.Errorf("viewshed: creating workspace: %v", err)
		}
		j.Dir = dir
		j.Log.WithField("workspace", dir).Debug("created workspace")
		return nil
	}
}
