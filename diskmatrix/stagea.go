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
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/graphee-io/graphee/edge"
	"github.com/graphee-io/graphee/edgesource"
	"github.com/graphee-io/graphee/internal/edgesort"
)

// buildStageA drives src to EOF, shards every surviving edge into its
// block's temp stream, sorting and spilling each block's buffer as
// it fills (spec §4.6.1 Stage A).
func (m *Matrix) buildStageA(src *edgesource.Source, readChunkSize int) error {
	bufCap := capEntries(m.cfg.SortLimitBytes)
	spillers := make([]*blockSpiller, m.cfg.NBlocks)
	for b := range spillers {
		row, col := blockRowCol(uint64(b), m.cfg.NSlices)
		sp, err := newBlockSpiller(m.tempPath(row, col), bufCap)
		if err != nil {
			closeSpillers(spillers[:b])
			return err
		}
		spillers[b] = sp
	}
	defer closeSpillers(spillers)

	if err := scanEdges(src, readChunkSize, func(s, d uint64) error {
		b := edge.Block(s, d, m.cfg.Window, m.cfg.NSlices)
		return spillers[b].append(edge.Pair{Src: s, Dst: d})
	}); err != nil {
		return err
	}

	for b, sp := range spillers {
		if err := sp.flush(); err != nil {
			return fmt.Errorf("block %d: %w", b, err)
		}
	}
	return nil
}

func closeSpillers(spillers []*blockSpiller) {
	for _, sp := range spillers {
		if sp != nil {
			sp.wg.Wait()
			sp.tmp.Close()
		}
	}
}

// blockRowCol inverts edge.Block: row is the source slice, col the
// destination slice, matching block = row + col*nslices.
func blockRowCol(block, nslices uint64) (row, col uint64) {
	return block % nslices, block / nslices
}

// scanEdges tokenizes src's decompressed text as whitespace-separated
// "dst src" pairs (spec §4.2/§6), drops self-loops, and calls fn(src,
// dst) for every surviving edge.
func scanEdges(src *edgesource.Source, chunkSize int, fn func(s, d uint64) error) error {
	r := newEdgeTextReader(src, chunkSize)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	sc.Split(bufio.ScanWords)

	for sc.Scan() {
		dstTok := sc.Text()
		if !sc.Scan() {
			return fmt.Errorf("diskmatrix: truncated edge pair after dst token %q", dstTok)
		}
		srcTok := sc.Text()

		dst, err := strconv.ParseUint(dstTok, 10, 64)
		if err != nil {
			return fmt.Errorf("diskmatrix: invalid dst token %q: %w", dstTok, err)
		}
		s, err := strconv.ParseUint(srcTok, 10, 64)
		if err != nil {
			return fmt.Errorf("diskmatrix: invalid src token %q: %w", srcTok, err)
		}
		if s == dst {
			continue // self-loop filter (spec §4.2)
		}
		if err := fn(s, dst); err != nil {
			return err
		}
	}
	return sc.Err()
}

// edgeTextReader adapts an edgesource.Source's chunked Read into an
// io.Reader so bufio.Scanner can tokenize across chunk boundaries.
type edgeTextReader struct {
	src      *edgesource.Source
	chunk    []byte
	leftover []byte
	done     bool
}

func newEdgeTextReader(src *edgesource.Source, chunkSize int) *edgeTextReader {
	return &edgeTextReader{src: src, chunk: make([]byte, chunkSize)}
}

func (r *edgeTextReader) Read(p []byte) (int, error) {
	if len(r.leftover) == 0 {
		if r.done {
			return 0, io.EOF
		}
		n, hasMore, err := r.src.Read(r.chunk)
		if err != nil {
			return 0, err
		}
		if n == 0 && !hasMore {
			r.done = true
			return 0, io.EOF
		}
		r.leftover = r.chunk[:n]
		if !hasMore {
			r.done = true
		}
	}
	n := copy(p, r.leftover)
	r.leftover = r.leftover[n:]
	return n, nil
}

// blockSpiller owns one block's double buffer and temp stream file.
// append and flush are the only entry points; spill serializes
// successive sort-and-flush rounds through mu, which is held by the
// background goroutine for the duration of one round -- exactly the
// "producer gets an empty replacement buffer back when the worker is
// done" handoff from spec §9.
type blockSpiller struct {
	tmp *os.File
	cap int

	in []edge.Pair // owned by the producer between spills
	mu sync.Mutex  // held by the in-flight spill goroutine, if any
	wg sync.WaitGroup
	werr error
	out []edge.Pair // becomes the in-flight goroutine's batch, then the next "in"
}

func newBlockSpiller(path string, capEntries int) (*blockSpiller, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &blockSpiller{
		tmp: f,
		cap: capEntries,
		in:  make([]edge.Pair, 0, capEntries),
		out: make([]edge.Pair, 0, capEntries),
	}, nil
}

func (b *blockSpiller) append(p edge.Pair) error {
	b.in = append(b.in, p)
	if len(b.in) < b.cap {
		return nil
	}
	return b.spill()
}

func (b *blockSpiller) flush() error {
	if len(b.in) > 0 {
		if err := b.spill(); err != nil {
			return err
		}
	}
	b.wg.Wait()
	return b.werr
}

// spill swaps in/out under mu and detaches a goroutine to sort and
// flush the just-filled batch. Acquiring mu blocks the producer only
// if a previous round for this block hasn't finished yet, which is
// exactly the backpressure needed before the swapped-in buffer can
// be safely reused.
func (b *blockSpiller) spill() error {
	b.mu.Lock()
	if b.werr != nil {
		b.mu.Unlock()
		return b.werr
	}
	b.in, b.out = b.out[:0], b.in
	batch := b.out
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer b.mu.Unlock()
		edgesort.Sort(batch)
		if err := writeEdges(b.tmp, batch); err != nil {
			b.werr = err
		}
	}()
	return nil
}

// writeEdges appends pairs to w as raw little-endian (src, dst) u64
// pairs, no framing (spec §6 temp shard stream layout).
func writeEdges(w io.Writer, pairs []edge.Pair) error {
	buf := make([]byte, 0, len(pairs)*entrySize)
	var scratch [entrySize]byte
	for _, p := range pairs {
		binary.LittleEndian.PutUint64(scratch[0:8], p.Src)
		binary.LittleEndian.PutUint64(scratch[8:16], p.Dst)
		buf = append(buf, scratch[:]...)
	}
	_, err := w.Write(buf)
	return err
}
