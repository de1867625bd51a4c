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

// Package budget implements the shared RAM counter that gates tile
// construction (spec C9): workers block on Acquire until enough of
// the configured RAM limit is free, and Release wakes one waiter.
package budget

import (
	"fmt"
	"sync"
)

// ExceededError reports that a single request's size can never be
// satisfied: it exceeds the controller's total limit outright, so
// Acquire fails immediately instead of blocking forever (spec §7
// BudgetExceeded).
type ExceededError struct {
	Requested uint64
	Limit     uint64
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("budget: requested %d bytes exceeds limit %d bytes", e.Requested, e.Limit)
}

// Controller tracks alloc_mem against limit under a mutex and
// condition variable (spec C9). Zero value is not usable; use New.
type Controller struct {
	lock  sync.Mutex
	cond  sync.Cond
	used  uint64
	limit uint64
}

// New returns a Controller admitting at most limit bytes at once.
func New(limit uint64) *Controller {
	c := &Controller{limit: limit}
	c.cond.L = &c.lock
	return c
}

// Acquire blocks while used+n would exceed the limit, then reserves n
// bytes. It returns immediately with an ExceededError, without ever
// blocking, if n alone exceeds the limit (spec C9: "workers that
// cannot ever fit fail immediately without blocking").
func (c *Controller) Acquire(n uint64) error {
	if n > c.limit {
		return &ExceededError{Requested: n, Limit: c.limit}
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	for c.used+n > c.limit {
		c.cond.Wait()
	}
	c.used += n
	return nil
}

// Release returns n bytes to the budget and wakes one waiter.
func (c *Controller) Release(n uint64) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if n > c.used {
		panic("budget: Release of more bytes than are currently held")
	}
	c.used -= n
	c.cond.Signal()
}

// Used returns the currently reserved byte count. It exists for
// tests and monitoring probes (spec invariant 9, scenario S5); it is
// not part of the acquire/release admission logic.
func (c *Controller) Used() uint64 {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.used
}

// Limit returns the configured limit.
func (c *Controller) Limit() uint64 { return c.limit }
