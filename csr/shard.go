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

package csr

import (
	"sync"

	"github.com/graphee-io/graphee/densevector"
)

// shardRows runs fn over up to nthreads disjoint [lo, hi) row shards
// of [0, m), waiting for all shards to finish (spec C4: "Row-parallel").
func shardRows(m, nthreads uint64, fn func(lo, hi uint64)) {
	shardRange(m, nthreads, fn)
}

// shardJA runs fn over up to nthreads disjoint [lo, hi) shards of
// the column-index array [0, nnz). ColSum does not call it: it shards
// ja through shardedPartials instead.
func shardJA(nnz, nthreads uint64, fn func(lo, hi uint64)) {
	shardRange(nnz, nthreads, fn)
}

// shardedPartials runs fn over up to nthreads disjoint [lo, hi)
// shards of [0, n), handing each shard its own length-width
// DenseVector to accumulate into so that shards never write the
// same memory location. It returns one partial per shard that ran.
func shardedPartials(n, nthreads, width uint64, fn func(lo, hi uint64, partial *densevector.Vector)) []*densevector.Vector {
	if nthreads == 0 {
		nthreads = 1
	}
	if n == 0 {
		return nil
	}
	if nthreads > n {
		nthreads = n
	}
	chunk := (n + nthreads - 1) / nthreads
	partials := make([]*densevector.Vector, 0, nthreads)
	var wg sync.WaitGroup
	var mu sync.Mutex
	for t := uint64(0); t < nthreads; t++ {
		lo := t * chunk
		if lo >= n {
			break
		}
		hi := lo + chunk
		if hi > n {
			hi = n
		}
		wg.Add(1)
		go func(lo, hi uint64) {
			defer wg.Done()
			partial := densevector.New(width, 0)
			fn(lo, hi, partial)
			mu.Lock()
			partials = append(partials, partial)
			mu.Unlock()
		}(lo, hi)
	}
	wg.Wait()
	return partials
}

func shardRange(n, nthreads uint64, fn func(lo, hi uint64)) {
	if nthreads == 0 {
		nthreads = 1
	}
	if n == 0 {
		return
	}
	if nthreads > n {
		nthreads = n
	}
	chunk := (n + nthreads - 1) / nthreads
	var wg sync.WaitGroup
	for t := uint64(0); t < nthreads; t++ {
		lo := t * chunk
		if lo >= n {
			break
		}
		hi := lo + chunk
		if hi > n {
			hi = n
		}
		wg.Add(1)
		go func(lo, hi uint64) {
			defer wg.Done()
			fn(lo, hi)
		}(lo, hi)
	}
	wg.Wait()
}
