// Copyright (C) 2024 Graphee Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package workerr runs a fixed set of indexed workers to completion
// and joins their individual errors, so that one tile's failure never
// stops the others from being built (spec §7: "other tiles proceed").
package workerr

import (
	"fmt"
	"sync"
)

// Run launches one goroutine per index in [0, n) calling fn(i),
// waits for all of them, and returns the joined errors of every
// worker that failed (nil if none did). A failing worker never
// prevents the others from running to completion.
func Run(n int, fn func(i int) error) error {
	errs := make([]error, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			errs[i] = fn(i)
		}(i)
	}
	wg.Wait()
	return Join(errs)
}

// Join appends every non-nil error in errs onto a single chained
// error, or returns nil if none are set.
func Join(errs []error) error {
	var out error
	for _, err := range errs {
		out = appenderr(out, err)
	}
	return out
}

func appenderr(outerr, err error) error {
	if outerr == nil {
		return err
	}
	if err == nil {
		return outerr
	}
	return fmt.Errorf("%w and %s", outerr, err)
}
