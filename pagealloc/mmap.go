package pagealloc

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/veldt-labs/pagemap/common"
)

// The backing memory file grows in fixed-size chunks that are mapped
// individually, so windows handed out to pages stay valid while the
// mapping grows.
const (
	mappingChunkPages = 256
	mappingChunkSize  = mappingChunkPages * PageSize
)

// MmapPageAllocator stores page content in an anonymous memory file
// (memfd) mapped into the process. Since pages live in a descriptor-backed
// mapping, they can be handed to another process by transferring the
// descriptor, without copying payload bytes.
//
// The mapping is the shared context of all pages of this allocator; pages
// must not be dereferenced after the allocator is closed. Growth of the
// mapping mutates allocator state, so all allocations are serialized
// internally.
type MmapPageAllocator struct {
	mu        sync.Mutex
	fd        int
	fileSize  int64    // reserved bytes in the memory file, multiple of mappingChunkSize
	allocated int64    // bytes handed out to pages
	chunks    [][]byte // mapped windows, chunk i covers [i*mappingChunkSize, (i+1)*mappingChunkSize)
	tracker   *Tracker
}

// NewMmapPageAllocator creates a mapped allocator accounting into the
// process-wide AllocatedPages tracker.
func NewMmapPageAllocator() (*MmapPageAllocator, error) {
	return NewMmapPageAllocatorWithTracker(AllocatedPages)
}

// NewMmapPageAllocatorWithTracker creates a mapped allocator accounting
// into the given tracker.
func NewMmapPageAllocatorWithTracker(tracker *Tracker) (*MmapPageAllocator, error) {
	fd, err := unix.MemfdCreate("pagemap-pages", unix.MFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("failed to create page memory file: %w", err)
	}
	return &MmapPageAllocator{fd: fd, tracker: tracker}, nil
}

// DeserializeMmapPageAllocator reconstructs an allocator around the
// mapping described by the given identity. The allocator holds its own
// duplicate of the context descriptor, so the original allocator does not
// need to be alive anymore and the context remains owned by the caller.
// Passing an identity of a different backend is a contract violation
// reported by a panic carrying ErrBackendMismatch.
func DeserializeMmapPageAllocator(serialized AllocatorSerialization, tracker *Tracker) (*MmapPageAllocator, error) {
	if serialized.Kind != BackendMmap {
		panic(fmt.Errorf("%w: cannot restore mapped allocator from backend tag %d",
			ErrBackendMismatch, serialized.Kind))
	}
	ctx := serialized.Context
	if ctx.FileSize < 0 || ctx.FileSize%mappingChunkSize != 0 {
		return nil, fmt.Errorf("%w: mapping size %d is not a non-negative multiple of the chunk size %d",
			ErrInvalidEncoding, ctx.FileSize, int64(mappingChunkSize))
	}
	fd, err := unix.Dup(int(ctx.FileDescriptor))
	if err != nil {
		return nil, fmt.Errorf("failed to duplicate mapping descriptor: %w", err)
	}
	res := &MmapPageAllocator{fd: fd, tracker: tracker}
	for res.fileSize < ctx.FileSize {
		if err := res.mapNextChunk(); err != nil {
			_ = res.Close()
			return nil, err
		}
	}
	res.allocated = ctx.FileSize
	return res, nil
}

// Allocate copies each input page into the backing mapping, growing it as
// needed. The batch is atomic: if growth fails mid-way, already created
// pages are released and no page of the batch survives.
func (a *MmapPageAllocator) Allocate(pages []PageEntry) ([]IndexedPage, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	res := make([]IndexedPage, 0, len(pages))
	for _, entry := range pages {
		window, offset, err := a.grabPage()
		if err != nil {
			for _, allocated := range res {
				allocated.Page.Release()
			}
			return nil, err
		}
		copy(window, entry.Bytes[:])
		res = append(res, IndexedPage{
			Index: entry.Index,
			Page:  newPage(window, offset, a.tracker),
		})
	}
	return res, nil
}

// Serialize captures the mapping context of this allocator. The returned
// context holds a duplicated descriptor owned by the receiver, so it stays
// usable after this allocator is closed; receivers that do not hand it to
// DeserializeMmapPageAllocator must release it with Close.
func (a *MmapPageAllocator) Serialize() (AllocatorSerialization, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	ctx, err := a.shareContext()
	if err != nil {
		return AllocatorSerialization{}, err
	}
	return AllocatorSerialization{Kind: BackendMmap, Context: ctx}, nil
}

// SerializePageDelta captures the pages of the delta as their offsets
// within the shared mapping; no page bytes are copied. The embedded
// context borrows the descriptor of this allocator, so the record is only
// decodable while this allocator or an identity serialized from it is
// alive. All pages must have been produced by a mapped allocator; a heap
// page in the delta is a contract violation reported by a panic carrying
// ErrBackendMismatch.
func (a *MmapPageAllocator) SerializePageDelta(delta *PageDelta) (PageDeltaSerialization, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	res := PageDeltaSerialization{
		Kind:    BackendMmap,
		Context: MappingContext{FileDescriptor: int32(a.fd), FileSize: a.fileSize},
		Offsets: make([]MappedPageRecord, 0, delta.Size()),
	}
	delta.ForEach(func(index PageIndex, page Page) {
		if !page.isMapped() {
			panic(fmt.Errorf("%w: delta contains a page outside the mapping", ErrBackendMismatch))
		}
		res.Offsets = append(res.Offsets, MappedPageRecord{
			Index:  index,
			Offset: page.mappingOffset(),
		})
	})
	return res, nil
}

// DeserializePageDelta reconstructs pages from a mapped delta, referencing
// the mapping of this allocator at the recorded offsets. The delta must
// have been produced against the mapping this allocator was created or
// deserialized from. A delta tagged for a different backend is a contract
// violation reported by a panic carrying ErrBackendMismatch.
func (a *MmapPageAllocator) DeserializePageDelta(serialized PageDeltaSerialization) ([]IndexedPage, error) {
	if serialized.Kind != BackendMmap {
		panic(fmt.Errorf("%w: mapped allocator cannot restore delta with backend tag %d",
			ErrBackendMismatch, serialized.Kind))
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	res := make([]IndexedPage, 0, len(serialized.Offsets))
	for _, record := range serialized.Offsets {
		// The upper bound is phrased subtraction-side since Offset+PageSize
		// can wrap around for hostile offsets near the int64 maximum.
		if record.Offset < 0 || record.Offset%PageSize != 0 || record.Offset > a.fileSize-PageSize {
			for _, restored := range res {
				restored.Page.Release()
			}
			return nil, fmt.Errorf("%w: page offset %d outside mapping of %d bytes",
				ErrInvalidEncoding, record.Offset, a.fileSize)
		}
		res = append(res, IndexedPage{
			Index: record.Index,
			Page:  newPage(a.windowAt(record.Offset), record.Offset, a.tracker),
		})
	}
	return res, nil
}

// Close unmaps the backing mapping and closes its descriptor. Pages of
// this allocator become invalid. Contexts exported by Serialize hold their
// own descriptors and stay valid.
func (a *MmapPageAllocator) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	var errs []error
	for _, chunk := range a.chunks {
		if err := unix.Munmap(chunk); err != nil {
			errs = append(errs, fmt.Errorf("failed to unmap page chunk: %w", err))
		}
	}
	a.chunks = nil
	if a.fd >= 0 {
		if err := unix.Close(a.fd); err != nil {
			errs = append(errs, fmt.Errorf("failed to close page memory file: %w", err))
		}
		a.fd = -1
	}
	return errors.Join(errs...)
}

func (a *MmapPageAllocator) GetMemoryFootprint() *common.MemoryFootprint {
	a.mu.Lock()
	defer a.mu.Unlock()
	res := common.NewMemoryFootprint(unsafe.Sizeof(*a))
	res.AddChild("mapping", common.NewMemoryFootprint(uintptr(a.fileSize)))
	return res
}

// grabPage reserves the next free page-sized window, growing the memory
// file and mapping by one chunk when exhausted. Callers must hold the
// lock.
func (a *MmapPageAllocator) grabPage() ([]byte, int64, error) {
	if a.allocated == a.fileSize {
		if err := a.mapNextChunk(); err != nil {
			return nil, 0, err
		}
	}
	offset := a.allocated
	a.allocated += PageSize
	return a.windowAt(offset), offset, nil
}

// mapNextChunk extends the memory file by one chunk and maps it. Callers
// must hold the lock.
func (a *MmapPageAllocator) mapNextChunk() error {
	newSize := a.fileSize + mappingChunkSize
	if err := unix.Ftruncate(a.fd, newSize); err != nil {
		return fmt.Errorf("failed to grow page memory file to %d bytes: %w", newSize, err)
	}
	chunk, err := unix.Mmap(a.fd, a.fileSize, mappingChunkSize,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("failed to map page chunk at offset %d: %w", a.fileSize, err)
	}
	a.chunks = append(a.chunks, chunk)
	a.fileSize = newSize
	return nil
}

// windowAt provides the page-sized window starting at the given offset of
// the mapping. The offset must be page aligned and below fileSize.
func (a *MmapPageAllocator) windowAt(offset int64) []byte {
	chunk := a.chunks[offset/mappingChunkSize]
	start := offset % mappingChunkSize
	return chunk[start : start+PageSize]
}

// shareContext duplicates the backing descriptor into a context record
// that outlives this allocator. Callers must hold the lock.
func (a *MmapPageAllocator) shareContext() (MappingContext, error) {
	fd, err := unix.Dup(a.fd)
	if err != nil {
		return MappingContext{}, fmt.Errorf("failed to share page memory file: %w", err)
	}
	return MappingContext{FileDescriptor: int32(fd), FileSize: a.fileSize}, nil
}

// Close releases the descriptor of a context produced by Serialize.
// Contexts embedded in page-delta records borrow the descriptor of their
// allocator and must not be closed. Closing a context twice is a no-op.
func (c *MappingContext) Close() error {
	if c.FileDescriptor < 0 {
		return nil
	}
	fd := int(c.FileDescriptor)
	c.FileDescriptor = -1
	if err := unix.Close(fd); err != nil {
		return fmt.Errorf("failed to close mapping context: %w", err)
	}
	return nil
}
