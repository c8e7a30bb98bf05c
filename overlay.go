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
	"sort"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
)

type indexedWedge struct {
	geom.Polygon
	i int
}

// ClipToWedges returns the parts of polys that fall inside any of wedges.
// Each returned part keeps the grid code of the polygon it came from.
func ClipToWedges(polys []*VisibilityPolygon, wedges []geom.Polygon) []*VisibilityPolygon {
	index := rtree.NewTree(25, 50)
	for i, w := range wedges {
		index.Insert(&indexedWedge{Polygon: w, i: i})
	}

	var out []*VisibilityPolygon
	for _, p := range polys {
		found := index.SearchIntersect(p.Bounds())
		matches := make([]*indexedWedge, len(found))
		for i, f := range found {
			matches[i] = f.(*indexedWedge)
		}
		// Keep output order independent of the index layout.
		sort.Slice(matches, func(i, j int) bool { return matches[i].i < matches[j].i })

		for _, w := range matches {
			part := p.Polygon.Intersection(w.Polygon)
			if len(part) == 0 || part.Area() <= 0 {
				continue
			}
			out = append(out, &VisibilityPolygon{Polygon: part, GridCode: p.GridCode})
		}
	}
	return out
}

// Dissolve merges polygons that share a grid code into single multi-part
// polygons, ordered by grid code.
func Dissolve(polys []*VisibilityPolygon) []*VisibilityPolygon {
	merged := make(map[int]geom.Polygon)
	for _, p := range polys {
		if m, ok := merged[p.GridCode]; ok {
			merged[p.GridCode] = m.Union(p.Polygon)
		} else {
			merged[p.GridCode] = p.Polygon
		}
	}
	codes := make([]int, 0, len(merged))
	for c := range merged {
		codes = append(codes, c)
	}
	sort.Ints(codes)

	out := make([]*VisibilityPolygon, 0, len(codes))
	for _, c := range codes {
		if len(merged[c]) == 0 {
			continue
		}
		out = append(out, &VisibilityPolygon{Polygon: merged[c], GridCode: c})
	}
	return out
}
