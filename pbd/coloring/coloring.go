// Package coloring partitions constraint lists into groups that touch
// disjoint particle sets, so each group can be projected in parallel.
//
// The colorer is greedy and online: every item only looks back over the last
// window items. It is tuned for the locality of grid-generated constraints and
// is not a general graph colorer.
package coloring

import (
	"errors"
	"fmt"

	"github.com/gekko3d/cloth/pbd/core"
)

// MaxColors is the color budget used for fabric constraints.
const MaxColors = 16

var (
	ErrColorsExhausted = errors.New("coloring: no free color within budget")
	ErrInvalidWindow   = errors.New("coloring: window and color budget must be positive")
	ErrConflict        = errors.New("coloring: group members share a particle")
	ErrLayout          = errors.New("coloring: groups do not tile the item array")
)

// Result is a colored item list flattened by ascending color.
type Result[T any] struct {
	// Items holds the input items reordered so that each color is contiguous.
	Items []T
	// Groups holds one range per color, in color order.
	Groups []core.ColorGroup
	// Colors holds the color assigned to each input item, by input index.
	Colors []int
}

func (r Result[T]) NumColors() int {
	return len(r.Groups)
}

// Color assigns every item the lowest color in [0, maxColors) not used by a
// conflicting item among the previous window items. It fails with
// ErrColorsExhausted rather than clamping when no color is free.
func Color[T any](items []T, shares func(a, b T) bool, window, maxColors int) (Result[T], error) {
	if window < 1 || maxColors < 1 || maxColors > 64 {
		return Result[T]{}, fmt.Errorf("%w: window=%d maxColors=%d", ErrInvalidWindow, window, maxColors)
	}
	if len(items) == 0 {
		return Result[T]{}, nil
	}

	colors := make([]int, len(items))
	numColors := 0
	for i := range items {
		var used uint64
		start := max(i-window, 0)
		for j := start; j < i; j++ {
			if shares(items[j], items[i]) {
				used |= 1 << uint(colors[j])
			}
		}

		color := -1
		for c := 0; c < maxColors; c++ {
			if used&(1<<uint(c)) == 0 {
				color = c
				break
			}
		}
		if color < 0 {
			return Result[T]{}, fmt.Errorf("%w: item %d conflicts with all %d colors within window %d",
				ErrColorsExhausted, i, maxColors, window)
		}
		colors[i] = color
		numColors = max(numColors, color+1)
	}

	counts := make([]int, numColors)
	for _, c := range colors {
		counts[c]++
	}
	groups := make([]core.ColorGroup, numColors)
	offset := 0
	for c, n := range counts {
		groups[c] = core.ColorGroup{Offset: offset, Length: n}
		offset += n
	}

	// Stable placement keeps generation order inside each group.
	flat := make([]T, len(items))
	cursor := make([]int, numColors)
	for c := range cursor {
		cursor[c] = groups[c].Offset
	}
	for i, item := range items {
		c := colors[i]
		flat[cursor[c]] = item
		cursor[c]++
	}

	return Result[T]{Items: flat, Groups: groups, Colors: colors}, nil
}

// VerifyDisjoint checks that groups tile items without gaps and that no
// particle appears twice inside one group. It runs in O(items + particleCount).
func VerifyDisjoint[T any](items []T, groups []core.ColorGroup, particles func(T) []int32, particleCount int) error {
	next := 0
	for gi, g := range groups {
		if g.Offset != next || g.Length < 0 || g.End() > len(items) {
			return fmt.Errorf("%w: group %d covers [%d,%d), expected offset %d",
				ErrLayout, gi, g.Offset, g.End(), next)
		}
		next = g.End()
	}
	if next != len(items) {
		return fmt.Errorf("%w: groups cover %d of %d items", ErrLayout, next, len(items))
	}

	stamp := make([]int, particleCount)
	for i := range stamp {
		stamp[i] = -1
	}
	for gi, g := range groups {
		for i := g.Offset; i < g.End(); i++ {
			for _, p := range particles(items[i]) {
				if p < 0 || int(p) >= particleCount {
					return fmt.Errorf("%w: group %d item %d references particle %d of %d",
						ErrConflict, gi, i, p, particleCount)
				}
				if stamp[p] == gi {
					return fmt.Errorf("%w: group %d reuses particle %d at item %d", ErrConflict, gi, p, i)
				}
				stamp[p] = gi
			}
		}
	}
	return nil
}
