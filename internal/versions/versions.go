// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package versions reports the versions of the libraries and runtime a training run used,
// so logs can be tagged with them.
package versions

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/gomlx/gomlx/backends"
)

// Tracked modules, in reporting order.
var Tracked = []struct{ Name, Path string }{
	{"GoMLX", "github.com/gomlx/gomlx"},
	{"gopjrt", "github.com/gomlx/gopjrt"},
	{"gota", "github.com/go-gota/gota"},
	{"gonum", "gonum.org/v1/gonum"},
}

// Version is one (name, version) tag.
type Version struct {
	Name, Version string
}

// String implements fmt.Stringer.
func (v Version) String() string {
	return fmt.Sprintf("%s: %s", v.Name, v.Version)
}

// unknown is reported for modules not found in the build information (e.g.: when running tests).
const unknown = "(unknown)"

// Collect returns the versions of the tracked modules, the Go runtime and, if backend is not nil,
// the backend name and description.
func Collect(backend backends.Backend) []Version {
	deps := make(map[string]string)
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, dep := range info.Deps {
			v := dep.Version
			if dep.Replace != nil {
				v = dep.Replace.Version
			}
			deps[dep.Path] = v
		}
	}
	versions := make([]Version, 0, len(Tracked)+2)
	for _, mod := range Tracked {
		v, found := deps[mod.Path]
		if !found || v == "" {
			v = unknown
		}
		versions = append(versions, Version{mod.Name, v})
	}
	if backend != nil {
		versions = append(versions, Version{"Backend", fmt.Sprintf("%s (%s)", backend.Name(), backend.Description())})
	}
	versions = append(versions, Version{"Go", fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)})
	return versions
}

// Format returns one version per line.
func Format(versions []Version) string {
	var sb strings.Builder
	for _, v := range versions {
		sb.WriteString(v.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}
