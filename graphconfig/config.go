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

// Package graphconfig holds the process-wide immutable configuration
// shared by every other package in this module: the graph's
// dimensions, its slicing into blocks, and the RAM/sort-buffer
// ceilings that the rest of the engine budgets against.
package graphconfig

import (
	"fmt"

	"github.com/docker/go-units"
)

// Config is immutable once built: every field is read-only after
// New returns successfully, and it is shared by reference (not
// copied) across the goroutines that consume it.
type Config struct {
	// Name prefixes every file this engine writes: tiles, temp
	// shards, and vector slices.
	Name string

	// NVerticesDeclared is the vertex count as configured by the
	// caller, before rounding.
	NVerticesDeclared uint64
	// NVertices is NVerticesDeclared rounded up to the nearest
	// multiple of NSlices.
	NVertices uint64

	NSlices  uint64
	NThreads uint64

	RAMLimitBytes  uint64
	SortLimitBytes uint64

	// NBlocks is NSlices^2.
	NBlocks uint64
	// Window is NVertices / NSlices: the row/column count of one
	// slice, and the length of one DenseVector slice.
	Window uint64
}

// ConfigError reports a fatal misconfiguration detected at
// construction time (spec §7: ConfigError is fatal at construction).
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return "graphconfig: " + e.Msg }

// New builds an immutable Config from the given parameters, rounding
// nverticesDeclared up to a multiple of nslices and deriving Window,
// NBlocks. ramLimit and sortLimit are sizes such as "5GiB" or
// "128MiB", parsed with the same unit suffixes docker/go-units
// recognizes (B, KB/KiB, MB/MiB, GB/GiB, ...).
func New(name string, nverticesDeclared, nslices, nthreads uint64, ramLimit, sortLimit string) (*Config, error) {
	if nslices == 0 {
		return nil, &ConfigError{Msg: "nslices must be > 0"}
	}
	if nthreads == 0 {
		return nil, &ConfigError{Msg: "nthreads must be > 0"}
	}
	ram, err := units.RAMInBytes(ramLimit)
	if err != nil {
		return nil, &ConfigError{Msg: fmt.Sprintf("invalid ram_limit %q: %s", ramLimit, err)}
	}
	sort, err := units.RAMInBytes(sortLimit)
	if err != nil {
		return nil, &ConfigError{Msg: fmt.Sprintf("invalid sort_limit %q: %s", sortLimit, err)}
	}
	if ram <= 0 || sort <= 0 {
		return nil, &ConfigError{Msg: "ram_limit and sort_limit must be positive"}
	}
	return NewFromBytes(name, nverticesDeclared, nslices, nthreads, uint64(ram), uint64(sort))
}

// NewFromBytes is New without string-size parsing, for callers that
// already have byte counts (e.g. tests, or a driver that did its own
// flag parsing).
func NewFromBytes(name string, nverticesDeclared, nslices, nthreads, ramLimitBytes, sortLimitBytes uint64) (*Config, error) {
	if nslices == 0 {
		return nil, &ConfigError{Msg: "nslices must be > 0"}
	}
	if nthreads == 0 {
		return nil, &ConfigError{Msg: "nthreads must be > 0"}
	}
	if ramLimitBytes == 0 || sortLimitBytes == 0 {
		return nil, &ConfigError{Msg: "ram_limit and sort_limit must be positive"}
	}

	nvertices := roundUp(nverticesDeclared, nslices)
	nblocks := nslices * nslices
	window := nvertices / nslices

	cfg := &Config{
		Name:              name,
		NVerticesDeclared: nverticesDeclared,
		NVertices:         nvertices,
		NSlices:           nslices,
		NThreads:          nthreads,
		RAMLimitBytes:     ramLimitBytes,
		SortLimitBytes:    sortLimitBytes,
		NBlocks:           nblocks,
		Window:            window,
	}

	if 2*cfg.SortLimitBytes*cfg.NBlocks > cfg.RAMLimitBytes {
		return nil, &ConfigError{Msg: fmt.Sprintf(
			"2*sort_limit_bytes*nblocks (%d) exceeds ram_limit_bytes (%d)",
			2*cfg.SortLimitBytes*cfg.NBlocks, cfg.RAMLimitBytes)}
	}

	return cfg, nil
}

// roundUp rounds n up to the nearest positive multiple of k (k > 0).
// n == 0 still rounds up to k, since a graph of zero declared
// vertices but nslices > 1 must still produce nslices non-empty
// slices for the disk vector/matrix layout to be well-formed.
func roundUp(n, k uint64) uint64 {
	if n == 0 {
		return k
	}
	rem := n % k
	if rem == 0 {
		return n
	}
	return n + (k - rem)
}
