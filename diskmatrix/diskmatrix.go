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

// Package diskmatrix builds and serves the blocked, on-disk sparse
// adjacency matrix (spec C6). Build turns a stream of edges into
// nblocks CSR tile files without ever holding more than the
// configured RAM budget of matrix/edge data resident; GetBlock
// rereads a tile on demand with no cache.
package diskmatrix

import (
	"fmt"
	"path/filepath"

	"github.com/graphee-io/graphee/budget"
	"github.com/graphee-io/graphee/csr"
	"github.com/graphee-io/graphee/edgesource"
	"github.com/graphee-io/graphee/graphconfig"
)

// Matrix names one on-disk matrix instance ("A", "A_T", ...) rooted
// at dir; every tile and temp-shard file it reads or writes is
// derived from cfg.Name, the matrix name, and dir (spec §6 file
// naming).
type Matrix struct {
	cfg  *graphconfig.Config
	dir  string
	name string
}

// New returns a Matrix bound to cfg, writing/reading its files under
// dir with the given matrix name (the "<mat>" token in spec §6's file
// naming scheme).
func New(cfg *graphconfig.Config, dir, name string) *Matrix {
	return &Matrix{cfg: cfg, dir: dir, name: name}
}

// Config returns the bound GraphConfig.
func (m *Matrix) Config() *graphconfig.Config { return m.cfg }

// TilePath returns the on-disk path of tile (row, col).
func (m *Matrix) TilePath(row, col uint64) string {
	return filepath.Join(m.dir, fmt.Sprintf("%s_%s_dmatblk_%d_%d.gpe", m.cfg.Name, m.name, row, col))
}

func (m *Matrix) tempPath(row, col uint64) string {
	return filepath.Join(m.dir, fmt.Sprintf("%s_%s_tmpblk_%d_%d.gpe", m.cfg.Name, m.name, row, col))
}

// Build drives src to completion and produces all NBlocks CSR tile
// files (spec §4.6.1): Stage A shards and sorts the edge stream into
// per-block temp streams, then Stage B k-way merges each temp
// stream into a CSR tile under ctl's admission control.
func (m *Matrix) Build(src *edgesource.Source, ctl *budget.Controller) error {
	const readChunkSize = 1 << 20
	if err := m.buildStageA(src, readChunkSize); err != nil {
		return fmt.Errorf("diskmatrix: stage A: %w", err)
	}
	if err := m.buildStageB(ctl); err != nil {
		return fmt.Errorf("diskmatrix: stage B: %w", err)
	}
	return nil
}

// GetBlock loads tile (row, col) fresh from disk; there is no tile
// cache (spec §4.6.2), so every call rereads.
func (m *Matrix) GetBlock(row, col uint64) (*csr.CSR, error) {
	c := csr.New(m.cfg.Window)
	if err := c.Load(m.TilePath(row, col)); err != nil {
		return nil, fmt.Errorf("diskmatrix: get_block(%d,%d): %w", row, col, err)
	}
	return c, nil
}

// entrySize is the packed byte size of one (src, dst) edge pair in a
// temp shard stream (spec §6: "raw concatenation of u64 pairs").
const entrySize = 16

// capEntries returns how many edge pairs fit in one sort_limit_bytes
// buffer, at least 1 so a positive sort limit never yields a
// zero-capacity buffer.
func capEntries(sortLimitBytes uint64) int {
	n := sortLimitBytes / entrySize
	if n == 0 {
		n = 1
	}
	return int(n)
}
