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
	"io/ioutil"
	"sync"

	"github.com/ctessum/geom"
)

// FakeEngine is an Engine for testing. It does not read or compute any
// rasters: DescribeSurface returns Surface and Polygonize returns Polygons.
// Each method records its call and returns the matching error, if set.
type FakeEngine struct {
	Surface  *Surface
	Polygons []*VisibilityPolygon

	DescribeErr, ClipErr, ViewshedErr, PolygonizeErr error

	mu    sync.Mutex
	calls []string
}

var _ Engine = &FakeEngine{}

// Calls returns the names of the methods that have been called, in order.
func (f *FakeEngine) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *FakeEngine) record(name string) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
}

// DescribeSurface implements SurfaceDescriber.
func (f *FakeEngine) DescribeSurface(_ context.Context, path string) (*Surface, error) {
	f.record("DescribeSurface")
	if f.DescribeErr != nil {
		return nil, f.DescribeErr
	}
	if f.Surface == nil {
		return nil, fmt.Errorf("viewshed: FakeEngine has no surface")
	}
	s := *f.Surface
	s.Path = path
	return &s, nil
}

// ClipRaster implements RasterClipper. It writes an empty file to dst.
func (f *FakeEngine) ClipRaster(_ context.Context, _ string, _ *geom.Bounds, dst string) error {
	f.record("ClipRaster")
	if f.ClipErr != nil {
		return f.ClipErr
	}
	return ioutil.WriteFile(dst, nil, 0644)
}

// ComputeViewshed implements ViewshedCalculator. It writes an empty file
// to dst.
func (f *FakeEngine) ComputeViewshed(_ context.Context, _ string, _ []*Observer, _ ViewshedOptions, dst string) error {
	f.record("ComputeViewshed")
	if f.ViewshedErr != nil {
		return f.ViewshedErr
	}
	return ioutil.WriteFile(dst, nil, 0644)
}

// Polygonize implements Polygonizer.
func (f *FakeEngine) Polygonize(_ context.Context, _, _ string) ([]*VisibilityPolygon, error) {
	f.record("Polygonize")
	if f.PolygonizeErr != nil {
		return nil, f.PolygonizeErr
	}
	return f.Polygons, nil
}
