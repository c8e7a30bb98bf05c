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

package viewshedutil

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/viewshed"
	"github.com/spatialmodel/viewshed/cloud"
)

// EngineFunc creates the raster engine of a run.
type EngineFunc func(log logrus.FieldLogger) viewshed.Engine

// DescriberFunc creates the surface describer of a wedge-only run.
// It may return nil.
type DescriberFunc func(log logrus.FieldLogger) viewshed.SurfaceDescriber

// Run calculates the viewshed configured by c. Log messages are written
// to out and to c.LogFile.
func Run(ctx context.Context, out io.Writer, c *Config, newEngine EngineFunc) error {
	return run(ctx, out, c, func(log logrus.FieldLogger, o *viewshed.Options) (*viewshed.Viewshed, error) {
		if err := checkElevationDataset(o.ElevationDataset); err != nil {
			return nil, err
		}
		return viewshed.Pipeline(newEngine(log)), nil
	}, &c.ViewshedOutput, &c.WedgeOutput, &c.FullWedgeOutput)
}

// RunWedges writes the wedge layers configured by c.
func RunWedges(ctx context.Context, out io.Writer, c *Config, newDescriber DescriberFunc) error {
	return run(ctx, out, c, func(log logrus.FieldLogger, o *viewshed.Options) (*viewshed.Viewshed, error) {
		var d viewshed.SurfaceDescriber
		if o.ElevationDataset != "" {
			if err := checkElevationDataset(o.ElevationDataset); err != nil {
				return nil, err
			}
			d = newDescriber(log)
		}
		return viewshed.WedgePipeline(d), nil
	}, &c.WedgeOutput, &c.FullWedgeOutput)
}

func checkElevationDataset(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("viewshed: the ElevationDataset doesn't exist: %v", err)
	}
	return nil
}

// pipelineFunc creates the pipeline of a run from the options holding
// the local copies of any remote inputs.
type pipelineFunc func(log logrus.FieldLogger, o *viewshed.Options) (*viewshed.Viewshed, error)

// run downloads remote inputs, redirects remote outputs, sets up logging
// and executes the pipeline created by newPipeline.
func run(ctx context.Context, out io.Writer, c *Config, newPipeline pipelineFunc, outputs ...*string) error {
	startTime := time.Now()

	var upload cloud.Uploader
	logPath, err := upload.MaybeUpload(c.LogFile)
	if err != nil {
		return err
	}
	logfile, err := os.Create(logPath)
	if err != nil {
		return fmt.Errorf("viewshed: problem creating log file: %v", err)
	}

	logger := logrus.New()
	logger.Out = io.MultiWriter(out, logfile)
	logger.Level = c.LogLevel
	logger.Formatter = &logrus.TextFormatter{DisableColors: true, FullTimestamp: true}

	for _, o := range outputs {
		if *o, err = upload.MaybeUpload(*o); err != nil {
			logfile.Close()
			return err
		}
	}

	opts := c.Options
	if opts.ElevationDataset, err = cloud.MaybeDownload(ctx, opts.ElevationDataset); err != nil {
		logfile.Close()
		return err
	}
	if opts.ObserverLayer, err = cloud.MaybeDownload(ctx, opts.ObserverLayer); err != nil {
		logfile.Close()
		return err
	}

	j := viewshed.NewJob(&opts, logger)
	p, err := newPipeline(j.Log, &opts)
	if err != nil {
		j.Log.Error(err)
		logfile.Close()
		return err
	}
	err = p.Execute(ctx, j)
	if err == nil {
		j.Log.WithField("elapsed", time.Since(startTime).String()).Info("Run complete")
	}
	logfile.Close()
	if err != nil {
		return err
	}
	return upload.Upload(ctx)
}
