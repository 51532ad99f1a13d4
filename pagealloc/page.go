package pagealloc

import (
	"fmt"
	"sync/atomic"
)

// PageSize is the fixed size of every page in bytes. The wire formats of
// this package depend on it, so it is a constant rather than a value taken
// from the host.
const PageSize = 1 << 12

// PageIndex identifies the position of a page within the virtual address
// space of a machine state. Indices are unique within one allocation batch
// or delta.
type PageIndex uint64

// PageBytes is the content of a single page. It is always fully
// initialized; partial pages do not exist.
type PageBytes [PageSize]byte

// Page is a cheaply copyable handle to one page of content produced by a
// PageAllocator. The content is shared between all clones of a handle and
// released when the last clone is released. A Page must only be
// dereferenced together with the allocator that produced it; content
// accessors take that allocator as a parameter.
//
// Content is immutable from the perspective of readers. The only mutation
// path is CopyFromSlice, and serializing concurrent writers is the
// caller's responsibility.
type Page struct {
	inner *pageInner
}

type pageInner struct {
	refs    int32
	data    []byte // always PageSize bytes, a heap buffer or a mapping window
	offset  int64  // offset of the window within its mapping, heapPageOffset for heap pages
	tracker *Tracker
}

// heapPageOffset marks pages whose content lives on the Go heap rather
// than inside a memory mapping.
const heapPageOffset = int64(-1)

func newPage(data []byte, offset int64, tracker *Tracker) Page {
	tracker.inc()
	return Page{inner: &pageInner{
		refs:    1,
		data:    data,
		offset:  offset,
		tracker: tracker,
	}}
}

// Contents provides a read-only view of the page content. The allocator
// parameter must be the allocator this page was produced by; it models the
// borrowed backend context the content lives in.
func (p Page) Contents(allocator PageAllocator) *PageBytes {
	_ = allocator
	return (*PageBytes)(p.inner.data)
}

// CopyFromSlice overwrites page bytes starting at the given offset. The
// range described by offset and len(src) must lie within the page;
// violating this is a contract violation reported by a panic carrying
// ErrOutOfRange. Pages never resize.
func (p Page) CopyFromSlice(offset int, src []byte, allocator PageAllocator) {
	_ = allocator
	if offset < 0 || offset+len(src) > PageSize {
		panic(fmt.Errorf("%w: offset %d, length %d, page size %d",
			ErrOutOfRange, offset, len(src), PageSize))
	}
	copy(p.inner.data[offset:], src)
}

// Clone creates another handle sharing the same content. The operation is
// O(1) and never copies page bytes.
func (p Page) Clone() Page {
	atomic.AddInt32(&p.inner.refs, 1)
	return p
}

// Release drops this handle. When the last handle of a page is released,
// the page leaves the live-page accounting and, for heap pages, its
// storage becomes collectable. Mapped storage is reclaimed when the owning
// allocator is closed. A released handle must not be used again.
func (p Page) Release() {
	if atomic.AddInt32(&p.inner.refs, -1) == 0 {
		p.inner.tracker.dec()
		p.inner.data = nil
	}
}

// isMapped reports whether the page content lives inside a memory mapping.
func (p Page) isMapped() bool {
	return p.inner.offset != heapPageOffset
}

// mappingOffset provides the offset of the page content within the mapping
// of its allocator. Only valid for mapped pages.
func (p Page) mappingOffset() int64 {
	return p.inner.offset
}
