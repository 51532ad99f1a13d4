package pagealloc

import (
	"testing"
)

func TestHeapAllocator_AllocatePreservesOrderAndContent(t *testing.T) {
	allocator := NewHeapPageAllocatorWithTracker(NewTracker())

	pages, err := allocator.Allocate([]PageEntry{
		{Index: 9, Bytes: pageWithValue(9)},
		{Index: 2, Bytes: pageWithValue(2)},
		{Index: 5, Bytes: pageWithValue(5)},
	})
	if err != nil {
		t.Fatalf("failed to allocate pages: %v", err)
	}
	defer releaseAll(pages)

	wantIndices := []PageIndex{9, 2, 5}
	for i, page := range pages {
		if page.Index != wantIndices[i] {
			t.Errorf("input order not preserved, got index %d at position %d", page.Index, i)
		}
		if *page.Page.Contents(allocator) != *pageWithValue(byte(page.Index)) {
			t.Errorf("wrong content of page %d", page.Index)
		}
	}
}

func TestHeapAllocator_AllocateCopiesInputBytes(t *testing.T) {
	allocator := NewHeapPageAllocatorWithTracker(NewTracker())

	input := pageWithValue(1)
	pages, err := allocator.Allocate([]PageEntry{{Index: 1, Bytes: input}})
	if err != nil {
		t.Fatalf("failed to allocate page: %v", err)
	}
	defer releaseAll(pages)

	input[0] = 0xFF
	if pages[0].Page.Contents(allocator)[0] != 1 {
		t.Errorf("page content aliases the caller's input buffer")
	}
}

func TestHeapAllocator_PageDeltaRoundTrip(t *testing.T) {
	allocator := NewHeapPageAllocatorWithTracker(NewTracker())

	pages, err := allocator.Allocate([]PageEntry{
		{Index: 3, Bytes: pageWithValue(0x00)},
		{Index: 7, Bytes: pageWithValue(0xFF)},
	})
	if err != nil {
		t.Fatalf("failed to allocate pages: %v", err)
	}
	delta := DeltaFromPages(pages)
	defer delta.Release()

	serialized, err := allocator.SerializePageDelta(delta)
	if err != nil {
		t.Fatalf("failed to serialize delta: %v", err)
	}
	decoded, err := PageDeltaFromBytes(serialized.ToBytes())
	if err != nil {
		t.Fatalf("failed to decode delta bytes: %v", err)
	}
	restored, err := allocator.DeserializePageDelta(decoded)
	if err != nil {
		t.Fatalf("failed to deserialize delta: %v", err)
	}
	defer releaseAll(restored)

	if len(restored) != 2 {
		t.Fatalf("wrong number of restored pages, got %d, want 2", len(restored))
	}
	byIndex := map[PageIndex]Page{}
	for _, page := range restored {
		byIndex[page.Index] = page.Page
	}
	if page, exists := byIndex[3]; !exists || *page.Contents(allocator) != *pageWithValue(0x00) {
		t.Errorf("page 3 not restored to an all-zero page")
	}
	if page, exists := byIndex[7]; !exists || *page.Contents(allocator) != *pageWithValue(0xFF) {
		t.Errorf("page 7 not restored to an all-0xFF page")
	}
}

func TestHeapAllocator_RestoredPagesAreIndependentCopies(t *testing.T) {
	allocator := NewHeapPageAllocatorWithTracker(NewTracker())

	pages, err := allocator.Allocate([]PageEntry{{Index: 1, Bytes: pageWithValue(1)}})
	if err != nil {
		t.Fatalf("failed to allocate page: %v", err)
	}
	delta := DeltaFromPages(pages)
	defer delta.Release()

	serialized, err := allocator.SerializePageDelta(delta)
	if err != nil {
		t.Fatalf("failed to serialize delta: %v", err)
	}
	restored, err := allocator.DeserializePageDelta(serialized)
	if err != nil {
		t.Fatalf("failed to deserialize delta: %v", err)
	}
	defer releaseAll(restored)

	pages[0].Page.CopyFromSlice(0, []byte{0xFF}, allocator)
	if restored[0].Page.Contents(allocator)[0] != 1 {
		t.Errorf("restored page shares storage with the original")
	}
}

func TestHeapAllocator_IdentityRoundTrip(t *testing.T) {
	allocator := NewHeapPageAllocatorWithTracker(NewTracker())

	identity, err := allocator.Serialize()
	if err != nil {
		t.Fatalf("failed to serialize allocator: %v", err)
	}
	decoded, err := AllocatorFromBytes(identity.ToBytes())
	if err != nil {
		t.Fatalf("failed to decode allocator bytes: %v", err)
	}
	restored := DeserializeHeapPageAllocator(decoded, NewTracker())

	page := allocateOne(t, restored, 1, 0x11)
	defer page.Release()
	if *page.Contents(restored) != *pageWithValue(0x11) {
		t.Errorf("restored allocator produces wrong pages")
	}
}

func TestHeapAllocator_RejectsForeignAllocatorTag(t *testing.T) {
	expectContractViolation(t, ErrBackendMismatch, func() {
		DeserializeHeapPageAllocator(AllocatorSerialization{Kind: BackendMmap}, NewTracker())
	})
	expectContractViolation(t, ErrBackendMismatch, func() {
		DeserializeHeapPageAllocator(AllocatorSerialization{Kind: BackendEmpty}, NewTracker())
	})
}

func TestHeapAllocator_RejectsForeignDeltaTag(t *testing.T) {
	allocator := NewHeapPageAllocatorWithTracker(NewTracker())
	expectContractViolation(t, ErrBackendMismatch, func() {
		_, _ = allocator.DeserializePageDelta(PageDeltaSerialization{Kind: BackendMmap})
	})
	expectContractViolation(t, ErrBackendMismatch, func() {
		_, _ = allocator.DeserializePageDelta(PageDeltaSerialization{Kind: BackendEmpty})
	})
}

func releaseAll(pages []IndexedPage) {
	for _, page := range pages {
		page.Page.Release()
	}
}
