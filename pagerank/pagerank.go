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

// Package pagerank drives the damped power iteration (spec C8) over a
// DiskMatrix that holds the transposed adjacency (in-link) matrix and
// two DiskVector rank estimates, redistributing dangling-vertex
// ("sink") mass uniformly every round.
package pagerank

import (
	"fmt"
	"sync"

	"github.com/graphee-io/graphee/diskmatrix"
	"github.com/graphee-io/graphee/diskvector"
	"github.com/graphee-io/graphee/graphconfig"
)

// DefaultDamping is the damping factor used when a caller has no
// reason to override it.
const DefaultDamping = 0.85

// Stats is one iteration's convergence diagnostics: the mass held by
// dangling vertices, the total rank mass, and the squared change from
// the previous round (spec §4.8 "stats").
type Stats struct {
	SinkScore float64
	SumScore  float64
	Variation float64
}

// Run computes PageRank over mat (the transposed adjacency, i.e.
// mat[i][j] == 1 iff there is an edge j -> i) for iterations rounds
// with the given damping factor, and returns the final rank vector
// together with one Stats record per iteration. dir is the directory
// the rank state vectors are written to under cfg.Name.
func Run(cfg *graphconfig.Config, dir string, mat *diskmatrix.Matrix, damping float64, iterations uint64) (*diskvector.Vector, []Stats, error) {
	if damping <= 0 || damping >= 1 {
		return nil, nil, fmt.Errorf("pagerank: damping must be in (0, 1), got %v", damping)
	}
	n := float64(cfg.NVertices)

	outDeg, err := diskvector.New(cfg, dir, "out_deg", 0)
	if err != nil {
		return nil, nil, fmt.Errorf("pagerank: out_deg: %w", err)
	}
	if err := outDeg.ColumnSum(mat); err != nil {
		return nil, nil, fmt.Errorf("pagerank: column_sum(out_deg): %w", err)
	}
	nSinks, err := outDeg.CountZeros()
	if err != nil {
		return nil, nil, fmt.Errorf("pagerank: count_zeros(out_deg): %w", err)
	}
	sinkScore := float64(nSinks) * (1 / n)

	pr, err := diskvector.New(cfg, dir, "pr", 1/n)
	if err != nil {
		return nil, nil, fmt.Errorf("pagerank: pr: %w", err)
	}
	prNext, err := diskvector.New(cfg, dir, "pr_next", 0)
	if err != nil {
		return nil, nil, fmt.Errorf("pagerank: pr_next: %w", err)
	}

	history := make([]Stats, 0, iterations)
	for t := uint64(0); t < iterations; t++ {
		base := (1-sinkScore)*(1-damping)/n + sinkScore/n
		if err := prNext.Fill(base); err != nil {
			return nil, nil, fmt.Errorf("pagerank: iteration %d: constant(base): %w", t, err)
		}
		if err := prNext.SpMVOver(damping, mat, pr, outDeg); err != nil {
			return nil, nil, fmt.Errorf("pagerank: iteration %d: spmv_over: %w", t, err)
		}
		st, err := stats(cfg, prNext, pr, outDeg)
		if err != nil {
			return nil, nil, fmt.Errorf("pagerank: iteration %d: stats: %w", t, err)
		}
		sinkScore = st.SinkScore
		history = append(history, st)
		if err := pr.Swap(prNext); err != nil {
			return nil, nil, fmt.Errorf("pagerank: iteration %d: swap: %w", t, err)
		}
	}
	return pr, history, nil
}

// stats performs one slice-parallel pass over prNext, pr, and outDeg,
// computing sum_score = sum(pr_next), variation = sum((pr-pr_next)^2),
// and sink_score = sum of pr_next[i] where out_deg[i] == 0 (spec
// §4.8).
func stats(cfg *graphconfig.Config, prNext, pr, outDeg *diskvector.Vector) (Stats, error) {
	var mu sync.Mutex
	var acc Stats
	var firstErr error
	var wg sync.WaitGroup
	wg.Add(int(cfg.NSlices))
	for i := uint64(0); i < cfg.NSlices; i++ {
		go func(k uint64) {
			defer wg.Done()
			nextSlice, err := prNext.GetSlice(k)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			prevSlice, err := pr.GetSlice(k)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			degSlice, err := outDeg.GetSlice(k)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			var sum, variation, sink float64
			for i, v := range nextSlice.Values {
				sum += v
				d := prevSlice.Values[i] - v
				variation += d * d
				if degSlice.Values[i] == 0 {
					sink += v
				}
			}
			mu.Lock()
			acc.SumScore += sum
			acc.Variation += variation
			acc.SinkScore += sink
			mu.Unlock()
		}(i)
	}
	wg.Wait()
	if firstErr != nil {
		return Stats{}, firstErr
	}
	return acc, nil
}
