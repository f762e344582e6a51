// SPDX-License-Identifier: ice License 1.0

//go:build test

package cfg

import (
	"os"
	"path/filepath"
	"runtime"
)

func init() {
	mustInit(findAllApplicationConfigFiles()...)
}

// findAllApplicationConfigFiles lists application.yaml candidates from the working directory
// and from this file's location, each walking up to the module root.
func findAllApplicationConfigFiles() []string {
	var hints []string
	if p, err := os.Getwd(); err == nil {
		hints = append(hints, p)
	}
	//nolint:dogsled // Because those 3 blank identifiers are useless
	_, callerFile, _, _ := runtime.Caller(0)
	hints = append(hints, filepath.Dir(callerFile))

	var files []string
	seen := make(map[string]struct{})
	for _, dir := range hints {
		for ; ; dir = filepath.Dir(dir) {
			for _, candidate := range []string{filepath.Join(dir, ".testdata", "application.yaml"), filepath.Join(dir, "application.yaml")} {
				if _, found := seen[candidate]; found {
					continue
				}
				if _, err := os.Stat(candidate); err == nil {
					seen[candidate] = struct{}{}
					files = append(files, candidate)
				}
			}
			if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil || filepath.Dir(dir) == dir {
				break
			}
		}
	}

	return files
}
