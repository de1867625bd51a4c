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

// Package csr implements the CSR-encoded sparse tile: a window x
// window block of the adjacency matrix, built once from sorted
// ingest and thereafter read-only (spec §4.4, §4.10).
package csr

import (
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/graphee-io/graphee/densevector"
)

// boolTypeName and weightedTypeName are the on-disk type tags
// written into the file header (spec §6); Load refuses a file whose
// tag does not match the type being loaded into (FormatError).
const (
	boolTypeName     = "SparseBMatrixCSR"
	weightedTypeName = "SparseMatrixCSR"
)

// VerifyError reports that a built tile failed its ia[m]==nnz check
// (spec §7 VerifyFailed): the tile is not saved.
type VerifyError struct {
	Row, Col uint64
	Got, Want uint64
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("csr: verify failed for tile (%d,%d): ia[m]=%d want nnz=%d", e.Row, e.Col, e.Got, e.Want)
}

// DimensionError reports an operation against incompatible vector
// lengths (spec §7 DimensionMismatch).
type DimensionError struct {
	Op   string
	Have uint64
	Want uint64
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("csr: %s: dimension mismatch: have %d want %d", e.Op, e.Have, e.Want)
}

// CSR is the boolean structural sparse tile (spec C4): m = n =
// window, with row-sorted column indices local to the tile.
type CSR struct {
	M, N uint64
	NNZ  uint64
	IA   []uint64 // len M+1
	JA   []uint64 // len NNZ

	// fill-time cursor state
	lastRow uint64
	cursor  uint64
	filling bool
}

// New constructs an empty CSR of dimension window x window, ready
// for Load.
func New(window uint64) *CSR {
	return &CSR{M: window, N: window}
}

// NewForFill constructs a CSR sized for an expected nnz, ready to be
// populated row-by-row via Fill then Finalize (spec C4 "constructed
// ... with a known nnz estimate for fill-time construction").
func NewForFill(window, nnz uint64) *CSR {
	return &CSR{
		M:       window,
		N:       window,
		IA:      make([]uint64, window+1),
		JA:      make([]uint64, 0, nnz),
		filling: true,
	}
}

// Fill records column j in row i. Precondition: i is monotonically
// nondecreasing across calls (sorted ingest, spec §4.4): the row
// pointer array is extended from the last filled row up to i by
// propagating the running nnz count before j is appended.
func (c *CSR) Fill(i, j uint64) {
	if !c.filling {
		panic("csr: Fill called without NewForFill")
	}
	for r := c.lastRow + 1; r <= i; r++ {
		c.IA[r] = c.NNZ
	}
	c.lastRow = i
	c.JA = append(c.JA, j)
	c.NNZ++
}

// Finalize extends the row-pointer array from the last filled row to
// M, establishing ia[M] == nnz.
func (c *CSR) Finalize() {
	for r := c.lastRow + 1; r <= c.M; r++ {
		c.IA[r] = c.NNZ
	}
	c.filling = false
}

// Verify asserts ia[m] == nnz (spec invariant 1).
func (c *CSR) Verify() bool {
	if uint64(len(c.IA)) != c.M+1 {
		return false
	}
	if c.IA[c.M] != c.NNZ {
		return false
	}
	if uint64(len(c.JA)) != c.NNZ {
		return false
	}
	for i := uint64(1); i <= c.M; i++ {
		if c.IA[i] < c.IA[i-1] {
			return false
		}
	}
	for row := uint64(0); row < c.M; row++ {
		if !slices.IsSorted(c.JA[c.IA[row]:c.IA[row+1]]) {
			return false
		}
	}
	return true
}

// Insert and Remove are reserved for a future mutable tile; the
// core PageRank path never calls them (spec §4.4).
func (c *CSR) Insert(i, j uint64) error {
	return fmt.Errorf("csr: Insert is reserved and not implemented by the build path")
}

func (c *CSR) Remove(i, j uint64) error {
	return fmt.Errorf("csr: Remove is reserved and not implemented by the build path")
}

// ColSum increments out[ja[k]] by one for every stored entry,
// parallelized over an independent sharding of ja (spec C4
// col_sum). out must have length >= N.
func (c *CSR) ColSum(out *densevector.Vector, nthreads uint64) error {
	if out.Len() < c.N {
		return &DimensionError{Op: "ColSum", Have: out.Len(), Want: c.N}
	}
	// Entries at different positions in ja can name the same column,
	// so shards cannot write directly into the shared out vector
	// (two rows of this tile routinely share a column). Each shard
	// accumulates into its own partial vector; the partials are
	// summed into out afterwards.
	n := out.Len()
	partials := shardedPartials(c.NNZ, nthreads, n, func(lo, hi uint64, partial *densevector.Vector) {
		for k := lo; k < hi; k++ {
			partial.AddAt(c.JA[k], 1)
		}
	})
	for _, p := range partials {
		if err := out.AddVector(p, nthreads); err != nil {
			return err
		}
	}
	return nil
}

// SpMV computes y[i] += sum_{k in row i} x[ja[k]], row-parallel
// (spec C4 spmv).
func (c *CSR) SpMV(x *densevector.Vector, y *densevector.Vector, nthreads uint64) error {
	if x.Len() < c.N {
		return &DimensionError{Op: "SpMV", Have: x.Len(), Want: c.N}
	}
	if y.Len() < c.M {
		return &DimensionError{Op: "SpMV", Have: y.Len(), Want: c.M}
	}
	shardRows(c.M, nthreads, func(lo, hi uint64) {
		for i := lo; i < hi; i++ {
			var sum float64
			for k := c.IA[i]; k < c.IA[i+1]; k++ {
				sum += x.At(c.JA[k])
			}
			y.AddAt(i, sum)
		}
	})
	return nil
}
