package common

import (
	"fmt"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// MemoryFootprint describes the memory consumption of a component as a tree,
// where the value of a node covers the component itself and children cover
// its sub-components. Shared children are counted only once in totals.
type MemoryFootprint struct {
	value    uintptr
	children map[string]*MemoryFootprint
}

// MemoryFootprintProvider is implemented by components able to report
// their own memory consumption.
type MemoryFootprintProvider interface {
	GetMemoryFootprint() *MemoryFootprint
}

// NewMemoryFootprint creates a footprint node accounting for the given
// number of bytes, not including any children added later.
func NewMemoryFootprint(value uintptr) *MemoryFootprint {
	return &MemoryFootprint{
		value:    value,
		children: map[string]*MemoryFootprint{},
	}
}

// AddChild attaches the footprint of a sub-component under the given name.
// A previously attached child of the same name is replaced.
func (mf *MemoryFootprint) AddChild(name string, child *MemoryFootprint) {
	mf.children[name] = child
}

// Value provides the number of bytes consumed by the component itself,
// excluding its sub-components.
func (mf *MemoryFootprint) Value() uintptr {
	return mf.value
}

// Total provides the number of bytes consumed by the component including
// all its sub-components. Nodes reachable through multiple paths are
// counted once.
func (mf *MemoryFootprint) Total() uintptr {
	seen := map[*MemoryFootprint]bool{}
	return mf.total(seen)
}

func (mf *MemoryFootprint) total(seen map[*MemoryFootprint]bool) uintptr {
	if seen[mf] {
		return 0
	}
	seen[mf] = true
	sum := mf.value
	for _, child := range mf.children {
		sum += child.total(seen)
	}
	return sum
}

// String renders the footprint tree with one line per node, children sorted
// by name for deterministic output.
func (mf *MemoryFootprint) String() string {
	var sb strings.Builder
	mf.describe(&sb, ".", 0)
	return sb.String()
}

func (mf *MemoryFootprint) describe(sb *strings.Builder, name string, indent int) {
	fmt.Fprintf(sb, "%s%s: %d B\n", strings.Repeat("  ", indent), name, mf.Total())
	names := maps.Keys(mf.children)
	slices.Sort(names)
	for _, childName := range names {
		mf.children[childName].describe(sb, childName, indent+1)
	}
}
