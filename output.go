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
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	goshp "github.com/jonas-p/go-shp"
)

// GridCodeField is the attribute holding the visibility count of
// viewshed polygons.
const GridCodeField = "gridcode"

// ShpName replaces the extension of filename with ".shp".
func ShpName(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename)) + ".shp"
}

// WriteWedges writes one wedge per observer to the shapefile filename,
// together with the observer parameters. wkt, if not empty, is written to
// the accompanying .prj file.
func WriteWedges(filename string, observers []*Observer, wedges []geom.Polygon, wkt string) error {
	if len(observers) != len(wedges) {
		return fmt.Errorf("viewshed: %d observers but %d wedges", len(observers), len(wedges))
	}
	filename = ShpName(filename)
	fields := []goshp.Field{
		goshp.NumberField("OBSERVER", 10),
		goshp.FloatField("OFFSETA", 14, 8),
		goshp.FloatField("OFFSETB", 14, 8),
		goshp.FloatField("RADIUS1", 14, 8),
		goshp.FloatField("RADIUS2", 14, 8),
		goshp.FloatField("AZIMUTH1", 14, 8),
		goshp.FloatField("AZIMUTH2", 14, 8),
	}
	e, err := shp.NewEncoderFromFields(filename, goshp.POLYGON, fields...)
	if err != nil {
		return fmt.Errorf("viewshed: creating wedge shapefile: %v", err)
	}
	for i, o := range observers {
		err = e.EncodeFields(wedges[i], o.Row, o.OffsetA, o.OffsetB, o.Radius1, o.Radius2, o.Azimuth1, o.Azimuth2)
		if err != nil {
			e.Close()
			return fmt.Errorf("viewshed: writing wedge shapefile: %v", err)
		}
	}
	e.Close()
	return writePrj(filename, wkt)
}

// WriteViewshed writes polys to the shapefile filename with their grid
// codes.
func WriteViewshed(filename string, polys []*VisibilityPolygon, wkt string) error {
	filename = ShpName(filename)
	e, err := shp.NewEncoderFromFields(filename, goshp.POLYGON, goshp.NumberField(GridCodeField, 10))
	if err != nil {
		return fmt.Errorf("viewshed: creating viewshed shapefile: %v", err)
	}
	for _, p := range polys {
		if err = e.EncodeFields(p.Polygon, p.GridCode); err != nil {
			e.Close()
			return fmt.Errorf("viewshed: writing viewshed shapefile: %v", err)
		}
	}
	e.Close()
	return writePrj(filename, wkt)
}

// ReadVisibilityPolygons reads polygons and their grid codes from the
// shapefile filename.
func ReadVisibilityPolygons(filename string) ([]*VisibilityPolygon, error) {
	f, err := shp.NewDecoder(ShpName(filename))
	if err != nil {
		return nil, fmt.Errorf("viewshed: opening visibility polygons: %v", err)
	}
	defer f.Close()

	type record struct {
		geom.Polygonal
		GridCode int `shp:"gridcode"`
	}
	var out []*VisibilityPolygon
	for {
		var rec record
		if more := f.DecodeRow(&rec); !more {
			break
		}
		if rec.Polygonal == nil {
			continue
		}
		out = append(out, &VisibilityPolygon{
			Polygon:  joinPolygons(rec.Polygons()),
			GridCode: rec.GridCode,
		})
	}
	if err := f.Error(); err != nil {
		return nil, fmt.Errorf("viewshed: reading visibility polygons: %v", err)
	}
	return out, nil
}

// joinPolygons puts the rings of all polys into one polygon.
func joinPolygons(polys []geom.Polygon) geom.Polygon {
	var out geom.Polygon
	for _, p := range polys {
		out = append(out, p...)
	}
	return out
}

func writePrj(shpName, wkt string) error {
	if wkt == "" {
		return nil
	}
	f, err := os.Create(strings.TrimSuffix(shpName, ".shp") + ".prj")
	if err != nil {
		return fmt.Errorf("viewshed: creating output prj file: %v", err)
	}
	if _, err = fmt.Fprint(f, wkt); err != nil {
		f.Close()
		return fmt.Errorf("viewshed: writing output prj file: %v", err)
	}
	return f.Close()
}
