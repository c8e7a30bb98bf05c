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

	"github.com/ctessum/geom"
)

// bufferVertices is the number of vertices in an observer buffer.
const bufferVertices = 360

// BufferObservers returns the union of circles around each observer with
// a radius of the observer's outer radius.
func BufferObservers(observers []*Observer) (geom.Polygon, error) {
	var buf geom.Polygon
	for _, o := range observers {
		if !(o.Radius2 > 0) {
			return nil, fmt.Errorf("viewshed: observer %d: outer radius %g must be positive", o.Row, o.Radius2)
		}
		c := circle(o.Point, o.Radius2, 0, bufferVertices).Polygon()
		if buf == nil {
			buf = c
			continue
		}
		buf = buf.Union(c)
	}
	return buf, nil
}

// ClipExtent returns the bounding rectangle of the observer buffers,
// expanded by one cell so that edge cells are kept when the raster is
// clipped.
func ClipExtent(observers []*Observer, cellSize float64) (*geom.Bounds, error) {
	buf, err := BufferObservers(observers)
	if err != nil {
		return nil, err
	}
	if len(buf) == 0 {
		return nil, fmt.Errorf("viewshed: there are no observers to buffer")
	}
	b := buf.Bounds()
	b.Min.X -= cellSize
	b.Min.Y -= cellSize
	b.Max.X += cellSize
	b.Max.Y += cellSize
	return b, nil
}
