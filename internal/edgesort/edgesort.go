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

// Package edgesort sorts a block's in-RAM edge buffer by (src, dst)
// before Stage A spills it to the block's temp stream, so the stream
// ends up as a concatenation of internally-sorted runs (invariant A
// in the disk matrix build).
package edgesort

import (
	"github.com/graphee-io/graphee/edge"
	intheap "github.com/graphee-io/graphee/internal/heap"
)

// Sort orders pairs ascending by (Src, Dst) in place using an
// in-place heap sort, matching the reference builder's "pair-aware
// heap sort" over the spilled buffer.
func Sort(pairs []edge.Pair) {
	intheap.SortSlice(pairs, edge.Less)
}

// IsSorted reports whether pairs is already ordered by edge.Less
// (invariant A for a single run). The Stage B merge does not call it.
func IsSorted(pairs []edge.Pair) bool {
	for i := 1; i < len(pairs); i++ {
		if edge.Less(pairs[i], pairs[i-1]) {
			return false
		}
	}
	return true
}
