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
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/viewshed"
	"github.com/spatialmodel/viewshed/cloud"
	"github.com/spf13/cast"
)

// Config holds the settings of a run.
type Config struct {
	viewshed.Options

	LogFile    string
	LogLevel   logrus.Level
	GDALBinDir string
}

// LoadConfig reads the settings of a viewshed run from cfg.
func LoadConfig(cfg *viper.Viper) (*Config, error) {
	c, err := loadCommon(cfg)
	if err != nil {
		return nil, err
	}
	if c.ElevationDataset == "" {
		return nil, fmt.Errorf("viewshed: you need to specify the ElevationDataset configuration variable")
	}
	if c.ViewshedOutput, err = checkOutputFile("ViewshedOutput", cfg.GetString("ViewshedOutput")); err != nil {
		return nil, err
	}
	c.Calculation = viewshed.ViewshedOptions{
		Refractivity: cast.ToFloat64(cfg.Get("RefractivityCoefficient")),
		TargetHeight: cast.ToFloat64(cfg.Get("TargetHeight")),
	}
	c.Workspace = os.ExpandEnv(cfg.GetString("Workspace"))
	c.KeepWorkspace = cfg.GetBool("KeepWorkspace")
	c.LogFile = checkLogFile(cfg.GetString("LogFile"), c.ViewshedOutput)
	return c, nil
}

// LoadWedgeConfig reads the settings of a wedge-only run from cfg.
// ElevationDataset is optional.
func LoadWedgeConfig(cfg *viper.Viper) (*Config, error) {
	c, err := loadCommon(cfg)
	if err != nil {
		return nil, err
	}
	c.LogFile = checkLogFile(cfg.GetString("LogFile"), c.WedgeOutput)
	return c, nil
}

func loadCommon(cfg *viper.Viper) (*Config, error) {
	c := new(Config)
	c.ElevationDataset = os.ExpandEnv(cfg.GetString("ElevationDataset"))
	c.ObserverLayer = os.ExpandEnv(cfg.GetString("Observers"))
	if c.ObserverLayer == "" {
		return nil, fmt.Errorf("viewshed: you need to specify the Observers configuration variable")
	}

	params := []struct {
		key string
		p   *viewshed.Param
	}{
		{"Radius2", &c.Params.Radius2},
		{"Azimuth1", &c.Params.Azimuth1},
		{"Azimuth2", &c.Params.Azimuth2},
		{"OffsetA", &c.Params.OffsetA},
		{"Radius1", &c.Params.Radius1},
	}
	for _, p := range params {
		v, err := viewshed.ParseParam(cfg.Get(p.key))
		if err != nil {
			return nil, fmt.Errorf("viewshed: configuration variable %s: %v", p.key, err)
		}
		*p.p = v
	}

	var err error
	if c.WedgeOutput, err = checkOutputFile("WedgeOutput", cfg.GetString("WedgeOutput")); err != nil {
		return nil, err
	}
	if c.FullWedgeOutput, err = checkOutputFile("FullWedgeOutput", cfg.GetString("FullWedgeOutput")); err != nil {
		return nil, err
	}
	if c.Stepping, err = viewshed.ParseStepping(cfg.GetString("Stepping")); err != nil {
		return nil, err
	}
	if c.LogLevel, err = logrus.ParseLevel(cfg.GetString("LogLevel")); err != nil {
		return nil, fmt.Errorf("viewshed: configuration variable LogLevel: %v", err)
	}
	c.GDALBinDir = os.ExpandEnv(cfg.GetString("GDAL.BinDir"))
	return c, nil
}

// checkOutputFile expands any environment variables in f and makes sure
// that its directory or bucket exists.
func checkOutputFile(name, f string) (string, error) {
	if f == "" {
		return "", fmt.Errorf(`viewshed: you need to specify the %s configuration variable (for example: %s="output.shp")`, name, name)
	}
	f = os.ExpandEnv(f)
	if cloud.IsBlob(f) {
		u, err := url.Parse(f)
		if err != nil {
			return f, err
		}
		if _, err = cloud.OpenBucket(context.TODO(), u.Scheme+"://"+u.Host); err != nil {
			return f, fmt.Errorf("viewshed: error when checking %s location: %v", name, err)
		}
		return viewshed.ShpName(f), nil
	}
	if _, err := os.Stat(filepath.Dir(f)); err != nil {
		return f, fmt.Errorf("viewshed: the %s directory doesn't exist: %v", name, err)
	}
	return viewshed.ShpName(f), nil
}

// checkLogFile returns logFile, or a log file next to outputFile
// if logFile is empty.
func checkLogFile(logFile, outputFile string) string {
	logFile = os.ExpandEnv(logFile)
	if logFile == "" {
		logFile = strings.TrimSuffix(outputFile, filepath.Ext(outputFile)) + ".log"
	}
	return logFile
}
