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

// Package densevector implements the in-memory numeric vector that
// backs one slice of a DiskVector (spec C3). Values are fixed to
// float64: the reference implementation mixed float and double
// inconsistently, and this engine follows the spec's fix (§9
// "Numeric precision") of keeping all PageRank state in f64.
package densevector

import (
	"fmt"
	"os"
	"sync"

	"github.com/graphee-io/graphee/internal/filefmt"
)

// Vector is a length-M array of float64, parallelized across
// nthreads for its bulk elementwise operations (spec C3: "All bulk
// ops are parallelized across nthreads with no interleaved
// dependencies within one op").
type Vector struct {
	Values []float64
}

// New returns a length-m vector with every element set to init.
func New(m uint64, init float64) *Vector {
	v := &Vector{Values: make([]float64, m)}
	if init != 0 {
		for i := range v.Values {
			v.Values[i] = init
		}
	}
	return v
}

// Len returns the vector's length.
func (v *Vector) Len() uint64 { return uint64(len(v.Values)) }

// At returns v[i].
func (v *Vector) At(i uint64) float64 { return v.Values[i] }

// Set assigns v[i] = x.
func (v *Vector) Set(i uint64, x float64) { v.Values[i] = x }

// AddAt adds x to v[i] in place. It is not safe to call
// concurrently on the same index from multiple goroutines; callers
// that shard by index range (as ColSum/SpMV do) never violate this.
func (v *Vector) AddAt(i uint64, x float64) { v.Values[i] += x }

// AddScalar computes v += s across all elements, parallelized across
// nthreads.
func (v *Vector) AddScalar(s float64, nthreads uint64) {
	parallelRange(v.Len(), nthreads, func(lo, hi uint64) {
		for i := lo; i < hi; i++ {
			v.Values[i] += s
		}
	})
}

// AddVector computes v += u elementwise; u must have the same
// length as v.
func (v *Vector) AddVector(u *Vector, nthreads uint64) error {
	if u.Len() != v.Len() {
		return &DimensionError{Op: "AddVector", Have: u.Len(), Want: v.Len()}
	}
	parallelRange(v.Len(), nthreads, func(lo, hi uint64) {
		for i := lo; i < hi; i++ {
			v.Values[i] += u.Values[i]
		}
	})
	return nil
}

// MulScalar computes v *= s across all elements.
func (v *Vector) MulScalar(s float64, nthreads uint64) {
	parallelRange(v.Len(), nthreads, func(lo, hi uint64) {
		for i := lo; i < hi; i++ {
			v.Values[i] *= s
		}
	})
}

// DivVector computes v /= u elementwise, except that v[i] is set to
// 0 (not NaN/Inf) wherever u[i] == 0 (spec C3 division safety,
// invariant 8).
func (v *Vector) DivVector(u *Vector, nthreads uint64) error {
	if u.Len() != v.Len() {
		return &DimensionError{Op: "DivVector", Have: u.Len(), Want: v.Len()}
	}
	parallelRange(v.Len(), nthreads, func(lo, hi uint64) {
		for i := lo; i < hi; i++ {
			if u.Values[i] == 0 {
				v.Values[i] = 0
			} else {
				v.Values[i] /= u.Values[i]
			}
		}
	})
	return nil
}

// DivideAndSumUndef divides v elementwise by u; wherever u[i] == 0,
// instead of dividing it adds v[i] into acc and zeroes v[i] (spec
// C3 divide_and_sum_undef). The partial per-shard sums are folded
// into *acc under a mutex.
func (v *Vector) DivideAndSumUndef(u *Vector, acc *float64, nthreads uint64) error {
	if u.Len() != v.Len() {
		return &DimensionError{Op: "DivideAndSumUndef", Have: u.Len(), Want: v.Len()}
	}
	var mu sync.Mutex
	var total float64
	parallelRange(v.Len(), nthreads, func(lo, hi uint64) {
		var local float64
		for i := lo; i < hi; i++ {
			if u.Values[i] == 0 {
				local += v.Values[i]
				v.Values[i] = 0
			} else {
				v.Values[i] /= u.Values[i]
			}
		}
		mu.Lock()
		total += local
		mu.Unlock()
	})
	*acc += total
	return nil
}

// CountZeros returns the number of elements equal to 0.
func (v *Vector) CountZeros(nthreads uint64) uint64 {
	var mu sync.Mutex
	var total uint64
	parallelRange(v.Len(), nthreads, func(lo, hi uint64) {
		var local uint64
		for i := lo; i < hi; i++ {
			if v.Values[i] == 0 {
				local++
			}
		}
		mu.Lock()
		total += local
		mu.Unlock()
	})
	return total
}

// Sum returns the sum of all elements.
func (v *Vector) Sum(nthreads uint64) float64 {
	var mu sync.Mutex
	var total float64
	parallelRange(v.Len(), nthreads, func(lo, hi uint64) {
		var local float64
		for i := lo; i < hi; i++ {
			local += v.Values[i]
		}
		mu.Lock()
		total += local
		mu.Unlock()
	})
	return total
}

// DimensionError reports an elementwise op called with mismatched
// lengths (spec §7 DimensionMismatch).
type DimensionError struct {
	Op        string
	Have, Want uint64
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("densevector: %s: dimension mismatch: have %d want %d", e.Op, e.Have, e.Want)
}

// FormatError reports that a loaded vector's header does not
// describe the expected type (spec §7 FormatError).
type FormatError struct {
	Msg string
}

func (e *FormatError) Error() string { return "densevector: " + e.Msg }

// vectorTypeName is the on-disk type tag for a slice file (spec §6).
const vectorTypeName = "Vector"

// Save writes v to path using the slice file layout from spec §6:
// a type tag, the format selector, the length, then the values
// payload.
func (v *Vector) Save(path string, format filefmt.Format) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := filefmt.WriteTypeName(f, vectorTypeName); err != nil {
		return err
	}
	if err := filefmt.WriteUint32(f, uint32(format)); err != nil {
		return err
	}
	if err := filefmt.WriteUint64(f, v.Len()); err != nil {
		return err
	}
	raw := filefmt.EncodeFloat64Slice(v.Values, make([]byte, 0, len(v.Values)*8))
	return filefmt.WritePayload(f, raw, format)
}

// Load reads a slice file written by Save and returns it as a new
// Vector. It refuses (FormatError) a file whose type tag isn't "Vector".
func Load(path string) (*Vector, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	typeName, err := filefmt.ReadTypeName(f)
	if err != nil {
		return nil, err
	}
	if typeName != vectorTypeName {
		return nil, &FormatError{Msg: fmt.Sprintf("%s: expected type %q, found %q", path, vectorTypeName, typeName)}
	}
	formatRaw, err := filefmt.ReadUint32(f)
	if err != nil {
		return nil, err
	}
	m, err := filefmt.ReadUint64(f)
	if err != nil {
		return nil, err
	}
	raw, err := filefmt.ReadPayload(f, int(m)*8, filefmt.Format(formatRaw))
	if err != nil {
		return nil, err
	}
	values, err := filefmt.DecodeFloat64Slice(raw, m)
	if err != nil {
		return nil, err
	}
	return &Vector{Values: values}, nil
}

// parallelRange splits [0, n) into up to nthreads contiguous shards
// and runs fn on each shard concurrently, waiting for all to finish.
// This is the "no interleaved dependencies within one op" shard
// pattern every bulk DenseVector/CSR operation uses.
func parallelRange(n, nthreads uint64, fn func(lo, hi uint64)) {
	if nthreads == 0 {
		nthreads = 1
	}
	if nthreads > n {
		if n == 0 {
			return
		}
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
