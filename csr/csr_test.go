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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/graphee-io/graphee/densevector"
	"github.com/graphee-io/graphee/internal/filefmt"
)

// buildSample returns a 4x4 tile with rows:
//
//	row 0: cols 1, 2
//	row 1: (empty)
//	row 2: col 0
//	row 3: cols 0, 1, 3
func buildSample() *CSR {
	c := NewForFill(4, 6)
	c.Fill(0, 1)
	c.Fill(0, 2)
	c.Fill(2, 0)
	c.Fill(3, 0)
	c.Fill(3, 1)
	c.Fill(3, 3)
	c.Finalize()
	return c
}

func TestFillFinalizeVerify(t *testing.T) {
	c := buildSample()
	if !c.Verify() {
		t.Fatal("expected built tile to verify")
	}
	want := []uint64{0, 2, 2, 3, 6}
	for i, w := range want {
		if c.IA[i] != w {
			t.Errorf("ia[%d] = %d, want %d", i, c.IA[i], w)
		}
	}
	if c.NNZ != 6 {
		t.Errorf("nnz = %d, want 6", c.NNZ)
	}
}

func TestVerifyRejectsUnsortedRow(t *testing.T) {
	c := NewForFill(2, 2)
	c.Fill(0, 1)
	c.Fill(0, 0) // descends within the row: still a monotonic i, but ja is now unsorted
	c.Finalize()
	if c.Verify() {
		t.Fatal("expected Verify to reject an unsorted row")
	}
}

func TestColSum(t *testing.T) {
	c := buildSample()
	out := densevector.New(4, 0)
	if err := c.ColSum(out, 4); err != nil {
		t.Fatalf("ColSum: %v", err)
	}
	want := []float64{2, 2, 1, 1} // col 0: rows 2,3 ; col 1: row 0,3 ; col 2: row 0 ; col 3: row 3
	for i, w := range want {
		if out.At(uint64(i)) != w {
			t.Errorf("colsum[%d] = %v, want %v", i, out.At(uint64(i)), w)
		}
	}
}

func TestColSumConcurrentNoRace(t *testing.T) {
	// A tile where many rows share the same column, forcing shards to
	// collide on out[j] unless each shard accumulates privately.
	c := NewForFill(8, 8)
	for i := uint64(0); i < 8; i++ {
		c.Fill(i, 0)
	}
	c.Finalize()
	out := densevector.New(8, 0)
	if err := c.ColSum(out, 8); err != nil {
		t.Fatalf("ColSum: %v", err)
	}
	if out.At(0) != 8 {
		t.Fatalf("colsum[0] = %v, want 8 (lost updates under a race would undercount)", out.At(0))
	}
}

func TestSpMV(t *testing.T) {
	c := buildSample()
	x := densevector.New(4, 1)
	y := densevector.New(4, 0)
	if err := c.SpMV(x, y, 4); err != nil {
		t.Fatalf("SpMV: %v", err)
	}
	want := []float64{2, 0, 1, 3}
	for i, w := range want {
		if y.At(uint64(i)) != w {
			t.Errorf("y[%d] = %v, want %v", i, y.At(uint64(i)), w)
		}
	}
}

func TestSpMVDimensionMismatch(t *testing.T) {
	c := buildSample()
	x := densevector.New(2, 1)
	y := densevector.New(4, 0)
	if err := c.SpMV(x, y, 1); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	for _, format := range []filefmt.Format{filefmt.BIN, filefmt.SnappyChunked} {
		c := buildSample()
		dir := t.TempDir()
		path := filepath.Join(dir, "tile.gpe")
		if err := c.Save(path, format); err != nil {
			t.Fatalf("Save(format=%d): %v", format, err)
		}
		loaded := New(0)
		if err := loaded.Load(path); err != nil {
			t.Fatalf("Load(format=%d): %v", format, err)
		}
		require.Equalf(t, c.M, loaded.M, "format=%d: M", format)
		require.Equalf(t, c.NNZ, loaded.NNZ, "format=%d: NNZ", format)
		require.Equalf(t, c.IA, loaded.IA, "format=%d: IA", format)
		require.Equalf(t, c.JA, loaded.JA, "format=%d: JA", format)
		if !loaded.Verify() {
			t.Fatalf("format=%d: reloaded tile failed Verify", format)
		}
	}
}

func TestLoadRejectsWrongTypeTag(t *testing.T) {
	c := buildSample()
	dir := t.TempDir()
	path := filepath.Join(dir, "tile.gpe")
	if err := c.Save(path, filefmt.BIN); err != nil {
		t.Fatalf("Save: %v", err)
	}
	cw := NewW(4)
	err := cw.Load(path)
	if _, ok := err.(*filefmt.TypeMismatchError); !ok {
		t.Fatalf("expected *filefmt.TypeMismatchError loading a boolean tile as weighted, got %v", err)
	}
}

func TestWeightedFillFinalizeColSumSpMV(t *testing.T) {
	c := NewWForFill(3, 3)
	c.Fill(0, 1, 2.0)
	c.Fill(1, 2, 0.5)
	c.Fill(2, 0, 1.0)
	c.Finalize()
	if !c.Verify() {
		t.Fatal("expected weighted tile to verify")
	}

	out := densevector.New(3, 0)
	if err := c.ColSum(out, 3); err != nil {
		t.Fatalf("ColSum: %v", err)
	}
	want := []float64{1.0, 2.0, 0.5}
	for i, w := range want {
		if out.At(uint64(i)) != w {
			t.Errorf("colsum[%d] = %v, want %v", i, out.At(uint64(i)), w)
		}
	}

	x := densevector.New(3, 1)
	y := densevector.New(3, 0)
	if err := c.SpMV(x, y, 3); err != nil {
		t.Fatalf("SpMV: %v", err)
	}
	wantY := []float64{2.0, 0.5, 1.0}
	for i, w := range wantY {
		if y.At(uint64(i)) != w {
			t.Errorf("y[%d] = %v, want %v", i, y.At(uint64(i)), w)
		}
	}
}

func TestWeightedSaveLoadRoundTrip(t *testing.T) {
	for _, format := range []filefmt.Format{filefmt.BIN, filefmt.SnappyChunked} {
		c := NewWForFill(3, 3)
		c.Fill(0, 1, 2.0)
		c.Fill(1, 2, 0.5)
		c.Fill(2, 0, 1.0)
		c.Finalize()

		dir := t.TempDir()
		path := filepath.Join(dir, "tile.gpe")
		if err := c.Save(path, format); err != nil {
			t.Fatalf("Save(format=%d): %v", format, err)
		}
		loaded := NewW(0)
		if err := loaded.Load(path); err != nil {
			t.Fatalf("Load(format=%d): %v", format, err)
		}
		require.Equalf(t, c.A, loaded.A, "format=%d: A", format)
	}
}
