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
	"fmt"
	"os"

	"github.com/graphee-io/graphee/budget"
	"github.com/graphee-io/graphee/csr"
	"github.com/graphee-io/graphee/internal/filefmt"
	"github.com/graphee-io/graphee/internal/workerr"
)

// buildStageB schedules one worker per block; a failing worker skips
// only its own tile and the others still proceed (spec §7
// BudgetExceeded / VerifyFailed policy).
func (m *Matrix) buildStageB(ctl *budget.Controller) error {
	n := int(m.cfg.NBlocks)
	return workerr.Run(n, func(b int) error {
		row, col := blockRowCol(uint64(b), m.cfg.NSlices)
		return m.buildTile(row, col, ctl)
	})
}

// buildTile k-way merges one block's temp stream into a CSR tile and
// saves it (spec §4.6.1 Stage B).
func (m *Matrix) buildTile(row, col uint64, ctl *budget.Controller) error {
	path := m.tempPath(row, col)
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("tile (%d,%d): %w", row, col, err)
	}
	streamLen := info.Size()
	nnz := uint64(streamLen) / entrySize
	window := m.cfg.Window
	allocNeed := (window+1)*8 + nnz*8

	if allocNeed > m.cfg.RAMLimitBytes {
		return fmt.Errorf("tile (%d,%d): %w", row, col, &budget.ExceededError{Requested: allocNeed, Limit: m.cfg.RAMLimitBytes})
	}
	if err := ctl.Acquire(allocNeed); err != nil {
		return fmt.Errorf("tile (%d,%d): %w", row, col, err)
	}
	defer ctl.Release(allocNeed)

	c := csr.NewForFill(window, nnz)
	if nnz > 0 {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("tile (%d,%d): %w", row, col, err)
		}
		runBytes := int64(capEntries(m.cfg.SortLimitBytes)) * entrySize
		cursors := openRunCursors(f, streamLen, runBytes)
		mergeFill(c, cursors, row*window, col*window)
		f.Close()
	}
	c.Finalize()
	if !c.Verify() {
		return fmt.Errorf("tile (%d,%d): %w", row, col, &csr.VerifyError{Row: row, Col: col, Got: c.IA[c.M], Want: c.NNZ})
	}
	if err := c.Save(m.TilePath(row, col), filefmt.SnappyChunked); err != nil {
		return fmt.Errorf("tile (%d,%d): %w", row, col, err)
	}
	return nil
}
