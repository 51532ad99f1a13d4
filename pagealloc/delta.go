package pagealloc

import (
	"fmt"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// PageDelta collects the pages modified in one state transition, keyed by
// their index. Which pages belong into a delta is decided by the caller;
// the delta itself is only a container handed to the serialization
// operations of an allocator.
type PageDelta struct {
	pages map[PageIndex]Page
}

// NewPageDelta creates an empty delta.
func NewPageDelta() *PageDelta {
	return &PageDelta{pages: map[PageIndex]Page{}}
}

// DeltaFromPages assembles a delta from allocated pages. The input indices
// must be unique, as guaranteed by a single Allocate call.
func DeltaFromPages(pages []IndexedPage) *PageDelta {
	res := NewPageDelta()
	for _, page := range pages {
		res.Add(page.Index, page.Page)
	}
	return res
}

// Add inserts a page under its index. Each index may occur at most once in
// a delta; adding a second page under an existing index is a contract
// violation reported by a panic carrying ErrDuplicateIndex.
func (d *PageDelta) Add(index PageIndex, page Page) {
	if _, exists := d.pages[index]; exists {
		panic(fmt.Errorf("%w: index %d", ErrDuplicateIndex, index))
	}
	d.pages[index] = page
}

// Get provides the page stored under the given index, if any.
func (d *PageDelta) Get(index PageIndex) (Page, bool) {
	page, exists := d.pages[index]
	return page, exists
}

// Size provides the number of pages in the delta.
func (d *PageDelta) Size() int {
	return len(d.pages)
}

// ForEach visits all pages in ascending index order. The deterministic
// order keeps serialized deltas bit-stable across runs.
func (d *PageDelta) ForEach(callback func(PageIndex, Page)) {
	indices := maps.Keys(d.pages)
	slices.Sort(indices)
	for _, index := range indices {
		callback(index, d.pages[index])
	}
}

// Release releases all page handles held by the delta and empties it.
func (d *PageDelta) Release() {
	for _, page := range d.pages {
		page.Release()
	}
	maps.Clear(d.pages)
}
