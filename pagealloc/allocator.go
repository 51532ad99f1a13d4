package pagealloc

//go:generate mockgen -source allocator.go -destination allocator_mocks.go -package pagealloc

import (
	"github.com/veldt-labs/pagemap/common"
)

const (
	// ErrBackendMismatch reports an attempt to decode a serialized value
	// through an allocator of a different backend kind. Backend tags are
	// produced and consumed in matching pairs by correct callers, so this
	// condition signals internal misuse and is raised as a panic carrying
	// this error.
	ErrBackendMismatch = common.ConstError("serialized page data belongs to a different allocator backend")

	// ErrOutOfRange reports a page write whose offset and length do not
	// fit into a page. Raised as a panic, see Page.CopyFromSlice.
	ErrOutOfRange = common.ConstError("page access out of range")

	// ErrDuplicateIndex reports an attempt to add a page to a delta under
	// an index the delta already contains. Raised as a panic, see
	// PageDelta.Add.
	ErrDuplicateIndex = common.ConstError("duplicate page index")
)

// PageEntry is one page of input content to be allocated under an index.
type PageEntry struct {
	Index PageIndex
	Bytes *PageBytes
}

// IndexedPage is one allocated page together with its index.
type IndexedPage struct {
	Index PageIndex
	Page  Page
}

// PageAllocator turns raw page contents into Page handles and owns
// whatever context the pages of its backend share. Exactly two backends
// exist: heap-based storage in process memory (HeapPageAllocator) and
// storage inside an OS-level memory mapping shareable across process
// boundaries (MmapPageAllocator). Both behave identically from the
// caller's point of view; they differ in where page bytes live and in what
// their serialized context carries.
//
// Pages produced by an allocator instance must only be dereferenced
// together with that instance, and must not outlive it.
type PageAllocator interface {
	common.MemoryFootprintProvider

	// Allocate creates one page per input entry, copying the entry bytes
	// into backend storage. The input indices must be unique; the result
	// preserves the input order. Allocation fails only if the backend
	// cannot grow its storage, which cannot happen for the heap backend.
	Allocate(pages []PageEntry) ([]IndexedPage, error)

	// Serialize captures the identity and shared context of this
	// allocator so that a matching allocator can be reconstructed, also
	// in another process for the mapped backend.
	Serialize() (AllocatorSerialization, error)

	// SerializePageDelta captures the given pages, all produced by this
	// allocator, for transfer or checkpointing. The heap backend copies
	// page bytes into the result; the mapped backend references its
	// mapping instead and copies nothing.
	SerializePageDelta(delta *PageDelta) (PageDeltaSerialization, error)

	// DeserializePageDelta reconstructs the pages captured by
	// SerializePageDelta of a same-kind allocator. Feeding it a value
	// tagged for a different backend is a contract violation reported by
	// a panic carrying ErrBackendMismatch.
	DeserializePageDelta(serialized PageDeltaSerialization) ([]IndexedPage, error)
}
