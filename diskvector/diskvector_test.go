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

package diskvector

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"

	"github.com/graphee-io/graphee/budget"
	"github.com/graphee-io/graphee/diskmatrix"
	"github.com/graphee-io/graphee/edgesource"
	"github.com/graphee-io/graphee/graphconfig"
)

func writeEdgeListFile(t *testing.T, dir, name string, lines []string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	gw := gzip.NewWriter(f)
	for _, l := range lines {
		if _, err := fmt.Fprintln(gw, l); err != nil {
			t.Fatalf("write line: %v", err)
		}
	}
	if err := gw.Close(); err != nil {
		t.Fatalf("close gzip writer: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close file: %v", err)
	}
	return path
}

func TestSwapIdempotentRoundTrip(t *testing.T) {
	// S4 condensed: swapping two vectors exchanges their contents, and
	// swapping them a second time restores the original contents.
	dir := t.TempDir()
	cfg, err := graphconfig.NewFromBytes("g", 8, 2, 2, 1<<20, 1<<10)
	if err != nil {
		t.Fatalf("NewFromBytes: %v", err)
	}

	a, err := New(cfg, dir, "a", 1)
	if err != nil {
		t.Fatalf("New a: %v", err)
	}
	b, err := New(cfg, dir, "b", 2)
	if err != nil {
		t.Fatalf("New b: %v", err)
	}

	if err := a.Swap(b); err != nil {
		t.Fatalf("first Swap: %v", err)
	}
	for k := uint64(0); k < cfg.NSlices; k++ {
		va, err := a.GetSlice(k)
		if err != nil {
			t.Fatalf("a.GetSlice(%d): %v", k, err)
		}
		for _, x := range va.Values {
			if x != 2 {
				t.Fatalf("after first swap, a slice %d has %v, want all 2", k, va.Values)
			}
		}
	}

	if err := a.Swap(b); err != nil {
		t.Fatalf("second Swap: %v", err)
	}
	for k := uint64(0); k < cfg.NSlices; k++ {
		va, err := a.GetSlice(k)
		if err != nil {
			t.Fatalf("a.GetSlice(%d): %v", k, err)
		}
		for _, x := range va.Values {
			if x != 1 {
				t.Fatalf("after second swap, a slice %d has %v, want all 1 (restored)", k, va.Values)
			}
		}
		vb, err := b.GetSlice(k)
		if err != nil {
			t.Fatalf("b.GetSlice(%d): %v", k, err)
		}
		for _, x := range vb.Values {
			if x != 2 {
				t.Fatalf("after second swap, b slice %d has %v, want all 2 (restored)", k, vb.Values)
			}
		}
	}
}

func TestSwapRejectsDimensionMismatch(t *testing.T) {
	dir := t.TempDir()
	cfg1, err := graphconfig.NewFromBytes("g1", 8, 2, 1, 1<<20, 1<<10)
	if err != nil {
		t.Fatalf("NewFromBytes cfg1: %v", err)
	}
	cfg2, err := graphconfig.NewFromBytes("g2", 16, 2, 1, 1<<20, 1<<10)
	if err != nil {
		t.Fatalf("NewFromBytes cfg2: %v", err)
	}
	a, err := New(cfg1, dir, "a", 0)
	if err != nil {
		t.Fatalf("New a: %v", err)
	}
	b, err := New(cfg2, dir, "b", 0)
	if err != nil {
		t.Fatalf("New b: %v", err)
	}
	err = a.Swap(b)
	if _, ok := err.(*DimensionError); !ok {
		t.Fatalf("Swap across mismatched NVertices: got %v, want *DimensionError", err)
	}
}

func TestAddScalarAndCountZeros(t *testing.T) {
	dir := t.TempDir()
	cfg, err := graphconfig.NewFromBytes("g", 10, 2, 3, 1<<20, 1<<10)
	if err != nil {
		t.Fatalf("NewFromBytes: %v", err)
	}
	v, err := New(cfg, dir, "v", 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	zeros, err := v.CountZeros()
	if err != nil {
		t.Fatalf("CountZeros: %v", err)
	}
	if zeros != cfg.NVertices {
		t.Fatalf("CountZeros before AddScalar = %d, want %d", zeros, cfg.NVertices)
	}
	if err := v.AddScalar(1); err != nil {
		t.Fatalf("AddScalar: %v", err)
	}
	zeros, err = v.CountZeros()
	if err != nil {
		t.Fatalf("CountZeros: %v", err)
	}
	if zeros != 0 {
		t.Fatalf("CountZeros after AddScalar(1) = %d, want 0", zeros)
	}
}

func TestColumnSumAndSpMVAccumulateAgreeWithChain(t *testing.T) {
	// A 6-vertex, 2-slice linear chain: 5->4->3->2->1->0.
	const n = 6
	dir := t.TempDir()
	lines := make([]string, 0, n-1)
	for i := 0; i < n-1; i++ {
		lines = append(lines, fmt.Sprintf("%d %d", i+1, i))
	}
	path := writeEdgeListFile(t, dir, "chain.gz", lines)

	cfg, err := graphconfig.NewFromBytes("g", n, 2, 2, 1<<20, 1<<10)
	if err != nil {
		t.Fatalf("NewFromBytes: %v", err)
	}
	src, err := edgesource.New([]string{path}, 256)
	if err != nil {
		t.Fatalf("edgesource.New: %v", err)
	}
	defer src.Close()

	mat := diskmatrix.New(cfg, dir, "A")
	ctl := budget.New(cfg.RAMLimitBytes)
	if err := mat.Build(src, ctl); err != nil {
		t.Fatalf("Build: %v", err)
	}

	colSums, err := New(cfg, dir, "col_sums", 0)
	if err != nil {
		t.Fatalf("New col_sums: %v", err)
	}
	if err := colSums.ColumnSum(mat); err != nil {
		t.Fatalf("ColumnSum: %v", err)
	}
	// Total mass is conserved: summed across every slice, the column
	// sums total exactly one per stored edge.
	var total float64
	for k := uint64(0); k < cfg.NSlices; k++ {
		s, err := colSums.GetSlice(k)
		if err != nil {
			t.Fatalf("GetSlice(%d): %v", k, err)
		}
		for _, x := range s.Values {
			total += x
		}
	}
	if total != n-1 {
		t.Fatalf("column_sum total = %v, want %v", total, n-1)
	}

	x, err := New(cfg, dir, "x", 1)
	if err != nil {
		t.Fatalf("New x: %v", err)
	}
	y, err := New(cfg, dir, "y", 0)
	if err != nil {
		t.Fatalf("New y: %v", err)
	}
	if err := y.SpMVAccumulate(1, mat, x); err != nil {
		t.Fatalf("SpMVAccumulate: %v", err)
	}
	var ysum float64
	for k := uint64(0); k < cfg.NSlices; k++ {
		s, err := y.GetSlice(k)
		if err != nil {
			t.Fatalf("GetSlice(%d): %v", k, err)
		}
		for _, v := range s.Values {
			ysum += v
		}
	}
	if ysum != n-1 {
		t.Fatalf("SpMVAccumulate total = %v, want %v (n-1 ones, one per edge)", ysum, n-1)
	}
}
