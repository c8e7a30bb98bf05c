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
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/ctessum/geom"
	"gonum.org/v1/gonum/floats"
)

// AngleStep is the angular distance between consecutive arc vertices
// (0.1 degrees, in radians).
const AngleStep = 0.1 * math.Pi / 180

// fullCircleTolerance is the allowed rounding error, in radians, when
// deciding whether a sector spans the whole circle.
const fullCircleTolerance = 1.e-9

// Stepping specifies how arc vertices are sampled.
type Stepping int

const (
	// ExactStepping divides the arc into equal steps no larger than AngleStep
	// so that both arc endpoints are sampled exactly.
	ExactStepping Stepping = iota

	// LegacyStepping accumulates AngleStep from the start angle until the
	// end angle is passed. The inner arc may overshoot the start angle by up
	// to one step.
	LegacyStepping
)

func (s Stepping) String() string {
	switch s {
	case ExactStepping:
		return "exact"
	case LegacyStepping:
		return "legacy"
	default:
		return fmt.Sprintf("Stepping(%d)", int(s))
	}
}

// ParseStepping returns the stepping mode with the given name
// ("exact" or "legacy").
func ParseStepping(name string) (Stepping, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "exact", "":
		return ExactStepping, nil
	case "legacy":
		return LegacyStepping, nil
	default:
		return ExactStepping, fmt.Errorf("viewshed: invalid stepping mode '%s'; valid modes are 'exact' and 'legacy'", name)
	}
}

// ErrInvalidSector is matched by all sector validation errors.
var ErrInvalidSector = errors.New("viewshed: invalid sector")

// SectorError describes why a sector specification was rejected.
type SectorError struct {
	Field  string
	Value  float64
	Reason string
}

func (e *SectorError) Error() string {
	return fmt.Sprintf("viewshed: invalid sector: %s = %g: %s", e.Field, e.Value, e.Reason)
}

// Is allows errors.Is(err, ErrInvalidSector).
func (e *SectorError) Is(target error) bool { return target == ErrInvalidSector }

// Ring is a closed sequence of points.
type Ring []geom.Point

// Polygon returns a single-ring polygon.
func (r Ring) Polygon() geom.Polygon {
	return geom.Polygon{[]geom.Point(r)}
}

// SectorSpec specifies an annular sector. Angles are in radians,
// counter-clockwise from the positive x axis, and StartAngle must not be
// less than EndAngle: the arc is traversed clockwise from StartAngle down
// to EndAngle.
type SectorSpec struct {
	Center                   geom.Point
	InnerRadius, OuterRadius float64
	StartAngle, EndAngle     float64
}

// Span returns the angular extent of the sector in radians.
func (s SectorSpec) Span() float64 { return s.StartAngle - s.EndAngle }

// IsFullCircle returns whether the sector covers all directions.
func (s SectorSpec) IsFullCircle() bool {
	return math.Abs(s.Span()-2*math.Pi) <= fullCircleTolerance
}

// Validate checks that s describes a well-formed sector.
func (s SectorSpec) Validate() error {
	for _, v := range []struct {
		name string
		val  float64
	}{
		{"center x", s.Center.X},
		{"center y", s.Center.Y},
		{"inner radius", s.InnerRadius},
		{"outer radius", s.OuterRadius},
		{"start angle", s.StartAngle},
		{"end angle", s.EndAngle},
	} {
		if math.IsNaN(v.val) || math.IsInf(v.val, 0) {
			return &SectorError{Field: v.name, Value: v.val, Reason: "value is not finite"}
		}
	}
	if s.InnerRadius < 0 {
		return &SectorError{Field: "inner radius", Value: s.InnerRadius, Reason: "must not be negative"}
	}
	if s.OuterRadius <= s.InnerRadius {
		return &SectorError{Field: "outer radius", Value: s.OuterRadius,
			Reason: fmt.Sprintf("must be greater than inner radius %g", s.InnerRadius)}
	}
	if s.StartAngle < s.EndAngle {
		return &SectorError{Field: "end angle", Value: s.EndAngle,
			Reason: fmt.Sprintf("must not be greater than start angle %g", s.StartAngle)}
	}
	if s.Span() > 2*math.Pi+fullCircleTolerance {
		return &SectorError{Field: "angular span", Value: s.Span(), Reason: "must not exceed 2π"}
	}
	return nil
}

// Ring validates s and returns its boundary ring.
func (s SectorSpec) Ring(mode Stepping) (Ring, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s.boundary(mode), nil
}

// Polygon validates s and returns it as a polygon. A full circle with a
// positive inner radius becomes an outer ring with a hole instead of a
// ring with a slit along the start angle.
func (s SectorSpec) Polygon(mode Stepping) (geom.Polygon, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if !s.IsFullCircle() {
		return s.boundary(mode).Polygon(), nil
	}
	p := geom.Polygon{[]geom.Point(circle(s.Center, s.OuterRadius, s.StartAngle, s.vertices()))}
	if s.InnerRadius > 0 {
		hole := circle(s.Center, s.InnerRadius, s.StartAngle, s.vertices())
		// Holes wind opposite to the outer ring.
		for i, j := 0, len(hole)-1; i < j; i, j = i+1, j-1 {
			hole[i], hole[j] = hole[j], hole[i]
		}
		p = append(p, []geom.Point(hole))
	}
	return p, nil
}

// vertices returns the number of equal steps the arc is divided into.
func (s SectorSpec) vertices() int {
	return int(math.Ceil(s.Span()/AngleStep - fullCircleTolerance))
}

// BuildSectorBoundary returns the closed boundary ring of the sector
// with the given center, radii and angles, using ExactStepping.
// The inputs are not validated; see SectorSpec.Ring.
func BuildSectorBoundary(center geom.Point, innerRadius, outerRadius, startAngle, endAngle float64) Ring {
	return SectorSpec{
		Center:      center,
		InnerRadius: innerRadius,
		OuterRadius: outerRadius,
		StartAngle:  startAngle,
		EndAngle:    endAngle,
	}.boundary(ExactStepping)
}

func (s SectorSpec) boundary(mode Stepping) Ring {
	if mode == LegacyStepping {
		return s.legacyBoundary()
	}
	angles := s.angles()
	cx, cy := s.Center.X, s.Center.Y

	if s.InnerRadius == 0 {
		r := make(Ring, 0, len(angles)+2)
		r = append(r, s.Center)
		for _, a := range angles {
			r = append(r, geom.Point{X: cx + s.OuterRadius*math.Cos(a), Y: cy + s.OuterRadius*math.Sin(a)})
		}
		return append(r, s.Center)
	}

	r := make(Ring, 0, 2*len(angles)+1)
	for _, a := range angles {
		r = append(r, geom.Point{X: cx + s.OuterRadius*math.Cos(a), Y: cy + s.OuterRadius*math.Sin(a)})
	}
	for i := len(angles) - 1; i >= 0; i-- {
		a := angles[i]
		r = append(r, geom.Point{X: cx + s.InnerRadius*math.Cos(a), Y: cy + s.InnerRadius*math.Sin(a)})
	}
	return append(r, r[0])
}

// angles returns the outer arc sample angles from StartAngle down to
// EndAngle inclusive.
func (s SectorSpec) angles() []float64 {
	n := s.vertices()
	if n < 1 {
		return []float64{s.StartAngle}
	}
	return floats.Span(make([]float64, n+1), s.StartAngle, s.EndAngle)
}

func (s SectorSpec) legacyBoundary() Ring {
	cx, cy := s.Center.X, s.Center.Y
	var r Ring
	a := s.StartAngle
	if s.InnerRadius == 0 {
		r = append(r, s.Center)
		for a >= s.EndAngle {
			r = append(r, geom.Point{X: cx + s.OuterRadius*math.Cos(a), Y: cy + s.OuterRadius*math.Sin(a)})
			a -= AngleStep
		}
		return append(r, s.Center)
	}

	for a >= s.EndAngle {
		r = append(r, geom.Point{X: cx + s.OuterRadius*math.Cos(a), Y: cy + s.OuterRadius*math.Sin(a)})
		a -= AngleStep
	}
	a = s.EndAngle
	for a <= s.StartAngle {
		a += AngleStep
		r = append(r, geom.Point{X: cx + s.InnerRadius*math.Cos(a), Y: cy + s.InnerRadius*math.Sin(a)})
	}
	// Close on the outer arc's first vertex.
	return append(r, geom.Point{
		X: cx + s.OuterRadius*math.Cos(s.StartAngle),
		Y: cy + s.OuterRadius*math.Sin(s.StartAngle),
	})
}

// circle returns a closed ring of n equal steps around center, starting
// at angle start and proceeding clockwise.
func circle(center geom.Point, radius, start float64, n int) Ring {
	if n < 3 {
		n = 3
	}
	r := make(Ring, n+1)
	for i := 0; i < n; i++ {
		a := start - 2*math.Pi*float64(i)/float64(n)
		r[i] = geom.Point{X: center.X + radius*math.Cos(a), Y: center.Y + radius*math.Sin(a)}
	}
	r[n] = r[0]
	return r
}
