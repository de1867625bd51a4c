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

package diskmatrix

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"github.com/graphee-io/graphee/csr"
	"github.com/graphee-io/graphee/edge"
)

// runCursor streams one Stage-A run (a (src,dst)-sorted section of a
// block's temp stream) one edge pair at a time.
type runCursor struct {
	r         *bufio.Reader
	remaining int64
	have      bool
	cur       edge.Pair
}

func newRunCursor(r io.Reader, length int64) *runCursor {
	rc := &runCursor{r: bufio.NewReaderSize(r, 1<<16), remaining: length}
	rc.advance()
	return rc
}

func (rc *runCursor) advance() {
	if rc.remaining < entrySize {
		rc.have = false
		return
	}
	var buf [entrySize]byte
	if _, err := io.ReadFull(rc.r, buf[:]); err != nil {
		rc.have = false
		return
	}
	rc.remaining -= entrySize
	rc.cur = edge.Pair{
		Src: binary.LittleEndian.Uint64(buf[0:8]),
		Dst: binary.LittleEndian.Uint64(buf[8:16]),
	}
	rc.have = true
}

// openRunCursors partitions f's first streamLen bytes into
// nsections = ceil(streamLen/runBytes) runs (the sorted spills Stage
// A produced) and returns one cursor per run (spec §4.6.1 Stage B
// step 5).
func openRunCursors(f *os.File, streamLen, runBytes int64) []*runCursor {
	if runBytes <= 0 || streamLen == 0 {
		return nil
	}
	var cursors []*runCursor
	for start := int64(0); start < streamLen; start += runBytes {
		end := start + runBytes
		if end > streamLen {
			end = streamLen
		}
		sr := io.NewSectionReader(f, start, end-start)
		cursors = append(cursors, newRunCursor(sr, end-start))
	}
	return cursors
}

// mergeFill performs a full k-way merge of cursors by (Src, Dst) and
// feeds the result into c via Fill, converting global coordinates to
// tile-local ones. Merging fully by (Src, Dst) -- rather than only by
// row, as the per-row draining in spec §4.6.1 step 5 describes --
// also keeps each row's column indices sorted, which Verify requires.
func mergeFill(c *csr.CSR, cursors []*runCursor, rowStart, colStart uint64) {
	for {
		best := -1
		for i, rc := range cursors {
			if !rc.have {
				continue
			}
			if best == -1 || edge.Less(rc.cur, cursors[best].cur) {
				best = i
			}
		}
		if best == -1 {
			return
		}
		rc := cursors[best]
		row, col := edge.Local(rc.cur.Src, rc.cur.Dst, rowStart, colStart)
		c.Fill(row, col)
		rc.advance()
	}
}
