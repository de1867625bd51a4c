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
	"fmt"
	"os"

	"golang.org/x/exp/slices"

	"github.com/graphee-io/graphee/densevector"
	"github.com/graphee-io/graphee/internal/filefmt"
)

// CSRW is the weighted sparse tile (spec C4 "weighted variant"): it
// shares CSR's ia/ja layout and adds a parallel values array A so
// that row i's stored entries are (ja[k], a[k]) for k in
// [ia[i], ia[i+1]).
type CSRW struct {
	M, N uint64
	NNZ  uint64
	IA   []uint64
	JA   []uint64
	A    []float64

	lastRow uint64
	filling bool
}

// NewW constructs an empty weighted CSR of dimension window x
// window, ready for Load.
func NewW(window uint64) *CSRW {
	return &CSRW{M: window, N: window}
}

// NewWForFill constructs a CSRW sized for an expected nnz, ready to
// be populated row-by-row via Fill then Finalize.
func NewWForFill(window, nnz uint64) *CSRW {
	return &CSRW{
		M:       window,
		N:       window,
		IA:      make([]uint64, window+1),
		JA:      make([]uint64, 0, nnz),
		A:       make([]float64, 0, nnz),
		filling: true,
	}
}

// Fill records column j with weight w in row i. Precondition: i is
// monotonically nondecreasing across calls, same as CSR.Fill.
func (c *CSRW) Fill(i, j uint64, w float64) {
	if !c.filling {
		panic("csr: Fill called without NewWForFill")
	}
	for r := c.lastRow + 1; r <= i; r++ {
		c.IA[r] = c.NNZ
	}
	c.lastRow = i
	c.JA = append(c.JA, j)
	c.A = append(c.A, w)
	c.NNZ++
}

// Finalize extends the row-pointer array from the last filled row to
// M, establishing ia[M] == nnz.
func (c *CSRW) Finalize() {
	for r := c.lastRow + 1; r <= c.M; r++ {
		c.IA[r] = c.NNZ
	}
	c.filling = false
}

// Verify asserts ia[m] == nnz and per-row column sortedness, same
// shape as CSR.Verify.
func (c *CSRW) Verify() bool {
	if uint64(len(c.IA)) != c.M+1 {
		return false
	}
	if c.IA[c.M] != c.NNZ {
		return false
	}
	if uint64(len(c.JA)) != c.NNZ || uint64(len(c.A)) != c.NNZ {
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

// ColSum adds a[k] into out[ja[k]] for every stored entry: a column
// sum weighted by the stored edge weight. Sharded the same way as
// CSR.ColSum to avoid the shared-column write race.
func (c *CSRW) ColSum(out *densevector.Vector, nthreads uint64) error {
	if out.Len() < c.N {
		return &DimensionError{Op: "ColSum", Have: out.Len(), Want: c.N}
	}
	n := out.Len()
	partials := shardedPartials(c.NNZ, nthreads, n, func(lo, hi uint64, partial *densevector.Vector) {
		for k := lo; k < hi; k++ {
			partial.AddAt(c.JA[k], c.A[k])
		}
	})
	for _, p := range partials {
		if err := out.AddVector(p, nthreads); err != nil {
			return err
		}
	}
	return nil
}

// SpMV computes y[i] += sum_{k in row i} a[k]*x[ja[k]], row-parallel.
func (c *CSRW) SpMV(x *densevector.Vector, y *densevector.Vector, nthreads uint64) error {
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
				sum += c.A[k] * x.At(c.JA[k])
			}
			y.AddAt(i, sum)
		}
	})
	return nil
}

// Save writes c using the weighted tile file layout (spec §6): type
// tag "SparseMatrixCSR", then ia, ja and a payload sections.
func (c *CSRW) Save(path string, format filefmt.Format) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := writeCSRHeader(f, weightedTypeName, format, c.M, c.NNZ, c.IA, c.JA); err != nil {
		return err
	}
	aRaw := filefmt.EncodeFloat64Slice(c.A, make([]byte, 0, len(c.A)*8))
	if err := filefmt.WritePayload(f, aRaw, format); err != nil {
		return fmt.Errorf("csr: write a: %w", err)
	}
	return nil
}

// Load reads a weighted tile file written by Save, replacing c's
// contents. It refuses (FormatError) a file whose type tag isn't
// "SparseMatrixCSR".
func (c *CSRW) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	m, nnz, ia, ja, format, err := readCSRHeader(f, path, weightedTypeName)
	if err != nil {
		return err
	}
	aRaw, err := filefmt.ReadPayload(f, int(nnz)*8, format)
	if err != nil {
		return fmt.Errorf("csr: read a: %w", err)
	}
	a, err := filefmt.DecodeFloat64Slice(aRaw, nnz)
	if err != nil {
		return err
	}
	c.M, c.N = m, m
	c.NNZ = nnz
	c.IA = ia
	c.JA = ja
	c.A = a
	c.filling = false
	return nil
}
