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

// Command viewshed calculates the area visible from a set of observer
// points, limited to the range fan of each observer.
package main

import (
	"os"

	"github.com/spatialmodel/viewshed/viewshedutil"
)

func main() {
	if err := viewshedutil.Root.Execute(); err != nil {
		os.Exit(1)
	}
}
