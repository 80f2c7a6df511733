// Package dispatch runs data-parallel kernels over index ranges.
//
// The solver hands every color group to a Dispatcher. Members of one group
// write disjoint particles, so chunks of a group may run in any order and on
// any goroutine. Dispatch returns only after the whole range is processed,
// which is the barrier between consecutive groups.
package dispatch

import "github.com/gekko3d/cloth/pbd/core"

// Dispatcher executes kernel over [0, n) split into half-open chunks.
type Dispatcher interface {
	Dispatch(n int, kernel func(lo, hi int))
	Workers() int
	Close()
}

// Serial runs every kernel inline on the calling goroutine.
type Serial struct{}

func (Serial) Dispatch(n int, kernel func(lo, hi int)) {
	if n > 0 {
		kernel(0, n)
	}
}

func (Serial) Workers() int { return 1 }

func (Serial) Close() {}

// chunkSize splits n items over workers, rounded up to whole workgroups.
func chunkSize(n, workers int) int {
	per := (n + workers - 1) / workers
	groups := (per + core.WorkgroupSize - 1) / core.WorkgroupSize
	return max(groups, 1) * core.WorkgroupSize
}
