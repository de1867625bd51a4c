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

// Package edge holds the shared (Src, Dst) vertex-pair representation
// used by the edge source, the disk matrix builder, and the block
// partitioning arithmetic.
package edge

// Pair is one entry of the transposed adjacency (in-link) matrix:
// ingest reads "dst src" text lines (see the edgesource package) and
// stores them as Pair{Src: src, Dst: dst}. Src selects the matrix row
// and Dst the column, so a Pair stands for the graph edge Dst -> Src,
// i.e. from a line's first token to its second.
type Pair struct {
	Src uint64
	Dst uint64
}

// Less orders pairs lexicographically by (Src, Dst), which is the
// sort key Stage A uses before spilling a block's buffer to its temp
// stream (spec: "sorted ingest").
func Less(a, b Pair) bool {
	if a.Src != b.Src {
		return a.Src < b.Src
	}
	return a.Dst < b.Dst
}

// Block returns the column-major block id that the edge (src, dst)
// belongs to, given a slice window size and slice count:
//
//	block = src/window + (dst/window)*nslices
//
// This is the one formula in the whole engine that both the shard
// stage (assigning an edge to a temp stream) and the tile indexing
// (assigning a temp stream to a (row, col) tile) must agree on: the
// disk matrix builder inverts it as row=src-slice, col=dst-slice.
func Block(src, dst, window, nslices uint64) uint64 {
	return src/window + (dst/window)*nslices
}

// Local converts a (src, dst) pair into tile-local row/column
// coordinates for the tile beginning at (rowStart, colStart).
func Local(src, dst, rowStart, colStart uint64) (row, col uint64) {
	return src - rowStart, dst - colStart
}
