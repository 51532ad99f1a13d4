package pagealloc

import (
	"fmt"
	"unsafe"

	"github.com/veldt-labs/pagemap/common"
)

// HeapPageAllocator stores page content in plain process memory. It holds
// no shared context beyond the tracker and is therefore trivially safe for
// concurrent use. Its pages cannot be shared across process boundaries.
type HeapPageAllocator struct {
	tracker *Tracker
}

// NewHeapPageAllocator creates a heap-based allocator accounting into the
// process-wide AllocatedPages tracker.
func NewHeapPageAllocator() *HeapPageAllocator {
	return NewHeapPageAllocatorWithTracker(AllocatedPages)
}

// NewHeapPageAllocatorWithTracker creates a heap-based allocator
// accounting into the given tracker.
func NewHeapPageAllocatorWithTracker(tracker *Tracker) *HeapPageAllocator {
	return &HeapPageAllocator{tracker: tracker}
}

// DeserializeHeapPageAllocator reconstructs a heap-based allocator from
// its serialized identity. Passing an identity of a different backend is a
// contract violation reported by a panic carrying ErrBackendMismatch,
// since identities are always produced and consumed by matching backends.
func DeserializeHeapPageAllocator(serialized AllocatorSerialization, tracker *Tracker) *HeapPageAllocator {
	if serialized.Kind != BackendHeap {
		panic(fmt.Errorf("%w: cannot restore heap allocator from backend tag %d",
			ErrBackendMismatch, serialized.Kind))
	}
	return NewHeapPageAllocatorWithTracker(tracker)
}

// Allocate copies each input page into a freshly owned heap buffer. It
// never fails; the error result exists to satisfy the shared allocator
// contract.
func (a *HeapPageAllocator) Allocate(pages []PageEntry) ([]IndexedPage, error) {
	res := make([]IndexedPage, 0, len(pages))
	for _, entry := range pages {
		buffer := make([]byte, PageSize)
		copy(buffer, entry.Bytes[:])
		res = append(res, IndexedPage{
			Index: entry.Index,
			Page:  newPage(buffer, heapPageOffset, a.tracker),
		})
	}
	return res, nil
}

// Serialize produces the zero-payload identity of the heap backend; the
// allocator itself carries no state worth persisting.
func (a *HeapPageAllocator) Serialize() (AllocatorSerialization, error) {
	return AllocatorSerialization{Kind: BackendHeap}, nil
}

// SerializePageDelta copies the content of every page of the delta into a
// flat list of index/bytes records.
func (a *HeapPageAllocator) SerializePageDelta(delta *PageDelta) (PageDeltaSerialization, error) {
	res := PageDeltaSerialization{
		Kind:  BackendHeap,
		Pages: make([]PageRecord, 0, delta.Size()),
	}
	delta.ForEach(func(index PageIndex, page Page) {
		res.Pages = append(res.Pages, PageRecord{
			Index: index,
			Bytes: *page.Contents(a),
		})
	})
	return res, nil
}

// DeserializePageDelta re-allocates every record of a heap-tagged delta on
// the heap. A delta tagged for a different backend is a contract violation
// reported by a panic carrying ErrBackendMismatch.
func (a *HeapPageAllocator) DeserializePageDelta(serialized PageDeltaSerialization) ([]IndexedPage, error) {
	if serialized.Kind != BackendHeap {
		panic(fmt.Errorf("%w: heap allocator cannot restore delta with backend tag %d",
			ErrBackendMismatch, serialized.Kind))
	}
	res := make([]IndexedPage, 0, len(serialized.Pages))
	for i := range serialized.Pages {
		buffer := make([]byte, PageSize)
		copy(buffer, serialized.Pages[i].Bytes[:])
		res = append(res, IndexedPage{
			Index: serialized.Pages[i].Index,
			Page:  newPage(buffer, heapPageOffset, a.tracker),
		})
	}
	return res, nil
}

func (a *HeapPageAllocator) GetMemoryFootprint() *common.MemoryFootprint {
	return common.NewMemoryFootprint(unsafe.Sizeof(*a))
}
