package viewer

import (
	"fmt"
	"strconv"
	"strings"
)

// SelectAll is the selector value that picks every spawn spot.
const SelectAll = "all"

// Selector is the parsed form of the positions argument.
type Selector struct {
	All     bool
	Indices []int
}

// ParseSelector parses "all" or a comma separated list of integers. The
// list keeps its order and duplicates. Range checks happen per index when
// markers are drawn.
func ParseSelector(s string) (Selector, error) {
	s = strings.TrimSpace(s)
	if s == SelectAll {
		return Selector{All: true}, nil
	}
	if s == "" {
		return Selector{}, fmt.Errorf("%w: empty selector", ErrInvalidSelector)
	}

	parts := strings.Split(s, ",")
	indices := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return Selector{}, fmt.Errorf("%w: %q is not an integer", ErrInvalidSelector, p)
		}
		indices = append(indices, n)
	}
	return Selector{Indices: indices}, nil
}

// Resolve returns the indices to draw for a scene with count spawn spots.
func (s Selector) Resolve(count int) []int {
	if !s.All {
		return s.Indices
	}
	all := make([]int, count)
	for i := range all {
		all[i] = i
	}
	return all
}

func (s Selector) String() string {
	if s.All {
		return SelectAll
	}
	parts := make([]string, len(s.Indices))
	for i, n := range s.Indices {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}
