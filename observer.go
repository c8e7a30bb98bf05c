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
	"math"
	"strconv"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/ctessum/geom/proj"
	"github.com/spf13/cast"
)

// Param is an observer parameter that is either a constant or the name
// of an attribute field in the observer layer.
type Param struct {
	// Field is the attribute field name. If empty, Value is used.
	Field string
	Value float64
}

// Constant returns a Param with a fixed value.
func Constant(v float64) Param { return Param{Value: v} }

// FieldParam returns a Param read from the named attribute field.
func FieldParam(name string) Param { return Param{Field: name} }

// ParseParam interprets v as a number if possible and otherwise as
// a field name.
func ParseParam(v interface{}) (Param, error) {
	if f, err := cast.ToFloat64E(v); err == nil {
		return Constant(f), nil
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return Param{}, fmt.Errorf("viewshed: invalid parameter %v: %v", v, err)
	}
	s = strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return Constant(f), nil
	}
	if s == "" {
		return Param{}, fmt.Errorf("viewshed: empty parameter")
	}
	return FieldParam(s), nil
}

// IsField returns whether p is read from an attribute field.
func (p Param) IsField() bool { return p.Field != "" }

func (p Param) String() string {
	if p.IsField() {
		return p.Field
	}
	return strconv.FormatFloat(p.Value, 'g', -1, 64)
}

func (p Param) resolve(fields map[string]string) (float64, error) {
	if !p.IsField() {
		return p.Value, nil
	}
	v, err := cast.ToFloat64E(strings.TrimSpace(fields[p.Field]))
	if err != nil {
		return math.NaN(), fmt.Errorf("field %s: %v", p.Field, err)
	}
	return v, nil
}

// ObserverParams holds the per-observer parameters of a run.
type ObserverParams struct {
	Radius2, Azimuth1, Azimuth2, OffsetA, Radius1 Param
}

// fieldNames returns the distinct attribute fields referenced by p.
func (p ObserverParams) fieldNames() []string {
	var names []string
	seen := make(map[string]bool)
	for _, pp := range []Param{p.Radius2, p.Azimuth1, p.Azimuth2, p.OffsetA, p.Radius1} {
		if pp.IsField() && !seen[pp.Field] {
			seen[pp.Field] = true
			names = append(names, pp.Field)
		}
	}
	return names
}

// Observer is a single observer record with its resolved parameters.
type Observer struct {
	geom.Point

	// Row is the record index in the observer layer.
	Row int

	OffsetA  float64 // observer height above the surface
	OffsetB  float64 // target height above the surface
	Radius1  float64 // inner radius
	Radius2  float64 // outer radius
	Azimuth1 float64 // start bearing in degrees
	Azimuth2 float64 // end bearing in degrees
}

// Sector returns the annular sector seen by o.
func (o *Observer) Sector() (SectorSpec, error) {
	s, err := SectorFromBearings(o.Point, o.Radius1, o.Radius2, o.Azimuth1, o.Azimuth2)
	if err != nil {
		return s, fmt.Errorf("observer %d: %w", o.Row, err)
	}
	return s, nil
}

// Wedges returns the annular wedge of o and the full wedge from o out to
// the outer radius.
func (o *Observer) Wedges(mode Stepping) (wedge, full geom.Polygon, err error) {
	s, err := o.Sector()
	if err != nil {
		return nil, nil, err
	}
	if wedge, err = s.Polygon(mode); err != nil {
		return nil, nil, fmt.Errorf("observer %d: %w", o.Row, err)
	}
	s.InnerRadius = 0
	if full, err = s.Polygon(mode); err != nil {
		return nil, nil, fmt.Errorf("observer %d: %w", o.Row, err)
	}
	return wedge, full, nil
}

// ReadObservers reads the observer points from the shapefile filename and
// resolves params for each record. If dst is not nil the points are
// reprojected into it.
func ReadObservers(filename string, params ObserverParams, dst *proj.SR) ([]*Observer, error) {
	filename = strings.TrimSuffix(filename, ".shp")
	f, err := shp.NewDecoder(filename + ".shp")
	if err != nil {
		return nil, fmt.Errorf("viewshed: there was a problem reading the observer shapefile '%s': %v", filename, err)
	}
	defer f.Close()

	var trans proj.Transformer
	if dst != nil {
		sr, err := f.SR()
		if err != nil {
			return nil, fmt.Errorf("viewshed: there was a problem reading the projection information for "+
				"the observer shapefile '%s': %v", filename, err)
		}
		trans, err = sr.NewTransform(dst)
		if err != nil {
			return nil, fmt.Errorf("viewshed: there was a problem creating a spatial reprojector for "+
				"the observer shapefile '%s': %v", filename, err)
		}
	}

	names := params.fieldNames()
	var observers []*Observer
	for row := 0; ; row++ {
		g, fields, more := f.DecodeRowFields(names...)
		if err := f.Error(); err != nil {
			return nil, fmt.Errorf("viewshed: reading observer %d from '%s': %v", row, filename, err)
		}
		if !more {
			break
		}
		p, ok := g.(geom.Point)
		if !ok {
			return nil, fmt.Errorf("viewshed: observer %d in '%s' has geometry type %T; it must be a point", row, filename, g)
		}
		if trans != nil {
			if p.X, p.Y, err = trans(p.X, p.Y); err != nil {
				return nil, fmt.Errorf("viewshed: reprojecting observer %d: %v", row, err)
			}
		}
		o := &Observer{Point: p, Row: row}
		for _, v := range []struct {
			dst *float64
			p   Param
		}{
			{&o.Radius2, params.Radius2},
			{&o.Azimuth1, params.Azimuth1},
			{&o.Azimuth2, params.Azimuth2},
			{&o.OffsetA, params.OffsetA},
			{&o.Radius1, params.Radius1},
		} {
			if *v.dst, err = v.p.resolve(fields); err != nil {
				return nil, fmt.Errorf("viewshed: observer %d: %v", row, err)
			}
		}
		observers = append(observers, o)
	}
	return observers, nil
}
