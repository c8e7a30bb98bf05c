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

// Package viewshedutil contains the command-line interface and
// configuration handling for the viewshed tool.
package viewshedutil

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/viewshed"
	"github.com/spatialmodel/viewshed/gdal"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

// positional lists the configuration keys that can be given as
// positional arguments to the run and wedge commands, in order.
var positional = []string{
	"Observers", "Radius2", "Azimuth1", "Azimuth2", "OffsetA", "Radius1",
	"ViewshedOutput", "WedgeOutput", "FullWedgeOutput",
}

func init() {
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "ElevationDataset",
			usage: `
              ElevationDataset is the path to the elevation raster. It must be
              in a projected coordinate system. It can be a local file, an
              http(s) URL, or a blob storage location (gs://, s3://, file://).`,
			shorthand:  "e",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), wedgeCmd.Flags()},
		},
		{
			name: "Observers",
			usage: `
              Observers is the path to the shapefile of observer points.`,
			shorthand:  "o",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), wedgeCmd.Flags()},
		},
		{
			name: "Radius2",
			usage: `
              Radius2 is the outer radius of each observer's range fan, in map units.
              It is either a number or the name of an attribute field of Observers.`,
			defaultVal: "1000",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), wedgeCmd.Flags()},
		},
		{
			name: "Azimuth1",
			usage: `
              Azimuth1 is the start bearing of the range fan in degrees clockwise
              from north. It is either a number or the name of an attribute field.`,
			defaultVal: "0",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), wedgeCmd.Flags()},
		},
		{
			name: "Azimuth2",
			usage: `
              Azimuth2 is the end bearing of the range fan in degrees clockwise
              from north. If it is less than Azimuth1 the fan wraps past north;
              if it equals Azimuth1 the fan is a full circle. It is either a
              number or the name of an attribute field.`,
			defaultVal: "360",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), wedgeCmd.Flags()},
		},
		{
			name: "OffsetA",
			usage: `
              OffsetA is the height of each observer above the surface. It is
              either a number or the name of an attribute field.`,
			defaultVal: "2",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), wedgeCmd.Flags()},
		},
		{
			name: "Radius1",
			usage: `
              Radius1 is the inner radius of each observer's range fan. It is
              either a number or the name of an attribute field.`,
			defaultVal: "0",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), wedgeCmd.Flags()},
		},
		{
			name: "ViewshedOutput",
			usage: `
              ViewshedOutput is the path of the output shapefile of visible areas,
              dissolved by the number of observers that can see them.`,
			defaultVal: "viewshed.shp",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "WedgeOutput",
			usage: `
              WedgeOutput is the path of the output shapefile of range fans
              between the inner and outer radius.`,
			defaultVal: "wedge.shp",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), wedgeCmd.Flags()},
		},
		{
			name: "FullWedgeOutput",
			usage: `
              FullWedgeOutput is the path of the output shapefile of range fans
              from each observer out to the outer radius.`,
			defaultVal: "fullwedge.shp",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), wedgeCmd.Flags()},
		},
		{
			name: "Stepping",
			usage: `
              Stepping specifies how arcs are sampled. 'exact' divides each arc into
              equal steps of at most 0.1 degrees that include both end points;
              'legacy' accumulates 0.1 degree steps from the start bearing.`,
			defaultVal: "exact",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), wedgeCmd.Flags()},
		},
		{
			name: "RefractivityCoefficient",
			usage: `
              RefractivityCoefficient is the coefficient of refraction of visible
              light used with the earth curvature correction.`,
			defaultVal: viewshed.DefaultRefractivity,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "TargetHeight",
			usage: `
              TargetHeight is the height above the surface of the locations
              being observed.`,
			defaultVal: 0.,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Workspace",
			usage: `
              Workspace is the directory where intermediate files are stored.
              If empty, the system temporary directory is used.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "KeepWorkspace",
			usage: `
              KeepWorkspace specifies whether intermediate files are kept
              after the run.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "LogFile",
			usage: `
              LogFile is the path to the desired logfile location. If empty,
              the log file is written next to the main output file.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), wedgeCmd.Flags()},
		},
		{
			name: "LogLevel",
			usage: `
              LogLevel is the minimum level of log messages: debug, info, warning
              or error.`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "GDAL.BinDir",
			usage: `
              GDAL.BinDir is the directory holding the GDAL executables
              (gdalinfo, gdal_translate, gdalwarp, gdal_viewshed, gdal_calc.py,
              gdal_polygonize.py). If empty, they are looked up in the PATH.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("VIEWSHED")
	Cfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	Cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case float64:
				if option.shorthand == "" {
					set.Float64(option.name, option.defaultVal.(float64), option.usage)
				} else {
					set.Float64P(option.name, option.shorthand, option.defaultVal.(float64), option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(runCmd)
	Root.AddCommand(wedgeCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(os.ExpandEnv(cfgpath))
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("viewshed: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// setPositional copies positional command-line arguments into the
// configuration.
func setPositional(args []string) {
	for i, a := range args {
		Cfg.Set(positional[i], a)
	}
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "viewshed",
	Short: "Calculate the areas visible from a set of observers.",
	Long: `viewshed calculates the areas of an elevation surface that can be seen
from a set of observer points, limited to a range fan around each observer
between an inner and outer radius and a start and end bearing.

Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'VIEWSHED_var' where 'var' is the
name of the variable to be set. Paths may contain environment variables.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of viewshed.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("viewshed v%s\n", viewshed.Version)
	},
	DisableAutoGenTag: true,
}

var runCmd = &cobra.Command{
	Use:   "run [observers radius2 azimuth1 azimuth2 offsetA radius1 viewshedOutput wedgeOutput fullWedgeOutput]",
	Short: "Calculate the viewshed of the observers.",
	Long: `run calculates the viewshed of the observers over the elevation dataset and
writes the viewshed, the range fans, and the full range fans. The optional
positional arguments override the corresponding configuration variables.`,
	Args: cobra.MaximumNArgs(len(positional)),
	RunE: func(cmd *cobra.Command, args []string) error {
		setPositional(args)
		cfg, err := LoadConfig(Cfg)
		if err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()
		return Run(ctx, cmd.OutOrStdout(), cfg, func(log logrus.FieldLogger) viewshed.Engine {
			return gdal.New(cfg.GDALBinDir, log)
		})
	},
	DisableAutoGenTag: true,
}

var wedgeCmd = &cobra.Command{
	Use:   "wedge [observers radius2 azimuth1 azimuth2 offsetA radius1 viewshedOutput wedgeOutput fullWedgeOutput]",
	Short: "Write the range fans of the observers.",
	Long: `wedge writes the range fans and full range fans of the observers without
calculating the viewshed. If ElevationDataset is set, the observers are
reprojected into its coordinate system. The positional arguments are the
same as those of the run command; viewshedOutput is ignored.`,
	Args: cobra.MaximumNArgs(len(positional)),
	RunE: func(cmd *cobra.Command, args []string) error {
		setPositional(args)
		cfg, err := LoadWedgeConfig(Cfg)
		if err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()
		return RunWedges(ctx, cmd.OutOrStdout(), cfg, func(log logrus.FieldLogger) viewshed.SurfaceDescriber {
			if cfg.ElevationDataset == "" {
				return nil
			}
			return gdal.New(cfg.GDALBinDir, log)
		})
	},
	DisableAutoGenTag: true,
}

// signalContext returns a context that is canceled on interrupt.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		select {
		case <-c:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(c)
	}()
	return ctx, cancel
}
