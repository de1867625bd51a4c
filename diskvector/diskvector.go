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

// Package diskvector implements the slice-file-backed logical vector
// (spec C7): a length-nvertices numeric vector stored as nslices
// DenseVector files, with every bulk operation iterating slices in
// parallel and tiles within a slice loaded one at a time.
package diskvector

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/graphee-io/graphee/densevector"
	"github.com/graphee-io/graphee/diskmatrix"
	"github.com/graphee-io/graphee/graphconfig"
	"github.com/graphee-io/graphee/internal/filefmt"
	"github.com/graphee-io/graphee/internal/workerr"
)

// DimensionError reports an operation across two DiskVectors (or a
// DiskVector and a DiskMatrix) whose vertex counts disagree (spec §7
// DimensionMismatch).
type DimensionError struct {
	Op         string
	Have, Want uint64
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("diskvector: %s: dimension mismatch: have %d want %d", e.Op, e.Have, e.Want)
}

// sliceFormat is the on-disk encoding used for slice files. Slices
// are read and rewritten every iteration of PageRank, so they stay
// uncompressed (BIN): unlike a tile, which is written once and read
// many times, the CPU cost of compressing/decompressing every slice
// every iteration would outweigh the disk savings.
const sliceFormat = filefmt.BIN

// Vector is one named logical vector over cfg's graph, stored as
// cfg.NSlices slice files under dir.
type Vector struct {
	cfg  *graphconfig.Config
	dir  string
	name string
}

// New creates a Vector's nslices slice files, each of length
// cfg.Window, filled with init.
func New(cfg *graphconfig.Config, dir, name string, init float64) (*Vector, error) {
	v := &Vector{cfg: cfg, dir: dir, name: name}
	err := workerr.Run(int(cfg.NSlices), func(i int) error {
		return v.SaveSlice(uint64(i), densevector.New(cfg.Window, init))
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Open binds to a Vector's slice files that were already written by
// a previous New/Fill, without rewriting them.
func Open(cfg *graphconfig.Config, dir, name string) *Vector {
	return &Vector{cfg: cfg, dir: dir, name: name}
}

func (v *Vector) slicePath(k uint64) string {
	return filepath.Join(v.dir, fmt.Sprintf("%s_%s_dvecslc_%d.gpe", v.cfg.Name, v.name, k))
}

func (v *Vector) swapScratchPath() string {
	return filepath.Join(v.dir, fmt.Sprintf("%s_swap_file.gpe", v.cfg.Name))
}

// GetSlice loads slice k from disk.
func (v *Vector) GetSlice(k uint64) (*densevector.Vector, error) {
	return densevector.Load(v.slicePath(k))
}

// SaveSlice writes vec into slice k.
func (v *Vector) SaveSlice(k uint64, vec *densevector.Vector) error {
	return vec.Save(v.slicePath(k), sliceFormat)
}

// Fill overwrites every slice with the constant value s, without
// loading the existing contents first (the "pr_next <- constant(base)"
// step of PageRank's iteration, spec §4.8).
func (v *Vector) Fill(s float64) error {
	return workerr.Run(int(v.cfg.NSlices), func(i int) error {
		return v.SaveSlice(uint64(i), densevector.New(v.cfg.Window, s))
	})
}

// Swap exchanges this Vector's slice files with other's, one slice
// at a time, via a three-way rename through the shared swap scratch
// path so neither file's contents are ever read (spec C7 swap).
// Precondition: both vectors share NVertices.
func (v *Vector) Swap(other *Vector) error {
	if v.cfg.NVertices != other.cfg.NVertices {
		return &DimensionError{Op: "Swap", Have: other.cfg.NVertices, Want: v.cfg.NVertices}
	}
	scratch := v.swapScratchPath()
	for k := uint64(0); k < v.cfg.NSlices; k++ {
		a, b := v.slicePath(k), other.slicePath(k)
		if err := os.Rename(a, scratch); err != nil {
			return err
		}
		if err := os.Rename(b, a); err != nil {
			return err
		}
		if err := os.Rename(scratch, b); err != nil {
			return err
		}
	}
	return nil
}

// AddScalar adds s to every element, slice-parallel: load, add, save.
func (v *Vector) AddScalar(s float64) error {
	return workerr.Run(int(v.cfg.NSlices), func(i int) error {
		k := uint64(i)
		vec, err := v.GetSlice(k)
		if err != nil {
			return err
		}
		vec.AddScalar(s, v.cfg.NThreads)
		return v.SaveSlice(k, vec)
	})
}

// ColumnSum accumulates mat's column sums into self, slice-parallel
// over columns: for each col, every row-block's tile.ColSum is added
// into the column's slice (spec C7 column_sum). Callers that want a
// fresh column sum (rather than an accumulation) should start from a
// zeroed vector (Fill(0), or New with init 0 as PageRank's "out_deg <-
// 0" step does).
func (v *Vector) ColumnSum(mat *diskmatrix.Matrix) error {
	return workerr.Run(int(v.cfg.NSlices), func(i int) error {
		col := uint64(i)
		acc, err := v.GetSlice(col)
		if err != nil {
			return err
		}
		for row := uint64(0); row < v.cfg.NSlices; row++ {
			tile, err := mat.GetBlock(row, col)
			if err != nil {
				return err
			}
			if err := tile.ColSum(acc, v.cfg.NThreads); err != nil {
				return err
			}
		}
		return v.SaveSlice(col, acc)
	})
}

// CountZeros returns the number of zero-valued elements, slice-
// parallel reduction.
func (v *Vector) CountZeros() (uint64, error) {
	var mu sync.Mutex
	var total uint64
	err := workerr.Run(int(v.cfg.NSlices), func(i int) error {
		vec, err := v.GetSlice(uint64(i))
		if err != nil {
			return err
		}
		c := vec.CountZeros(v.cfg.NThreads)
		mu.Lock()
		total += c
		mu.Unlock()
		return nil
	})
	return total, err
}

// SpMVAccumulate computes self += alpha * mat * x row-block by
// row-block (spec C7 spmv_accumulate): for each row, every column's
// tile is multiplied against a freshly scaled copy of x's column
// slice and accumulated into self's row slice.
func (v *Vector) SpMVAccumulate(alpha float64, mat *diskmatrix.Matrix, x *Vector) error {
	return v.spmv(mat, x, nil, alpha)
}

// SpMVOver is SpMVAccumulate, except each x column slice is first
// divided elementwise by d's column slice (0/0 -> 0) before being
// scaled by alpha -- the "rank / out-degree" primitive PageRank uses
// (spec C7 spmv_over).
func (v *Vector) SpMVOver(alpha float64, mat *diskmatrix.Matrix, x, d *Vector) error {
	return v.spmv(mat, x, d, alpha)
}

func (v *Vector) spmv(mat *diskmatrix.Matrix, x, d *Vector, alpha float64) error {
	return workerr.Run(int(v.cfg.NSlices), func(i int) error {
		row := uint64(i)
		acc, err := v.GetSlice(row)
		if err != nil {
			return err
		}
		for col := uint64(0); col < v.cfg.NSlices; col++ {
			tile, err := mat.GetBlock(row, col)
			if err != nil {
				return err
			}
			xcol, err := x.GetSlice(col)
			if err != nil {
				return err
			}
			if d != nil {
				dcol, err := d.GetSlice(col)
				if err != nil {
					return err
				}
				if err := xcol.DivVector(dcol, v.cfg.NThreads); err != nil {
					return err
				}
			}
			xcol.MulScalar(alpha, v.cfg.NThreads)
			if err := tile.SpMV(xcol, acc, v.cfg.NThreads); err != nil {
				return err
			}
		}
		return v.SaveSlice(row, acc)
	})
}

// DivideAndSumUndef divides self elementwise by d, slice-parallel,
// delegating to DenseVector.DivideAndSumUndef per slice and reducing
// the per-slice undefined-entry sums into acc.
func (v *Vector) DivideAndSumUndef(d *Vector, acc *float64) error {
	var mu sync.Mutex
	var total float64
	err := workerr.Run(int(v.cfg.NSlices), func(i int) error {
		k := uint64(i)
		vec, err := v.GetSlice(k)
		if err != nil {
			return err
		}
		dvec, err := d.GetSlice(k)
		if err != nil {
			return err
		}
		var local float64
		if err := vec.DivideAndSumUndef(dvec, &local, v.cfg.NThreads); err != nil {
			return err
		}
		if err := v.SaveSlice(k, vec); err != nil {
			return err
		}
		mu.Lock()
		total += local
		mu.Unlock()
		return nil
	})
	if err != nil {
		return err
	}
	*acc += total
	return nil
}
