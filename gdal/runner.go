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

package gdal

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// Runner runs an external command and returns its combined output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands on the local machine.
type ExecRunner struct {
	// BinDir is the directory holding the GDAL executables.
	// If empty, the executables are looked up in PATH.
	BinDir string
}

// Run implements Runner.
func (r ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	path := name
	if r.BinDir != "" {
		path = filepath.Join(r.BinDir, name)
	}
	out, err := exec.CommandContext(ctx, path, args...).CombinedOutput()
	if err != nil {
		return out, &CommandError{Name: name, Args: args, Output: out, Err: err}
	}
	return out, nil
}

// CommandError is returned when a GDAL command fails.
type CommandError struct {
	Name   string
	Args   []string
	Output []byte
	Err    error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("gdal: %s %s: %v\n%s", e.Name, strings.Join(e.Args, " "), e.Err, e.Output)
}

func (e *CommandError) Unwrap() error { return e.Err }
