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
along with Viewshed.  If not, see <http://www.gnu.org/licenses/>.*/

// Package hash creates stable keys for intermediate files.
package hash

import (
	"encoding/gob"
	"fmt"
	"hash/fnv"

	"github.com/davecgh/go-spew/spew"
)

// Hash returns a hexadecimal key for object. Values that gob cannot
// encode, such as structs without exported fields, are keyed by their
// spew dump instead.
func Hash(object interface{}) string {
	h := fnv.New128a()
	if err := gob.NewEncoder(h).Encode(object); err != nil {
		h.Reset()
		printer := spew.ConfigState{
			Indent:                  " ",
			SortKeys:                true,
			DisableMethods:          true,
			SpewKeys:                true,
			DisablePointerAddresses: true,
			DisableCapacities:       true,
		}
		printer.Fprintf(h, "%#v", object)
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Name returns a file name made of prefix, a short key for object
// and ext.
func Name(prefix string, object interface{}, ext string) string {
	return fmt.Sprintf("%s_%s%s", prefix, Hash(object)[:12], ext)
}
