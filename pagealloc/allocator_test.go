package pagealloc

import (
	"testing"
)

var (
	_ PageAllocator = (*HeapPageAllocator)(nil)
	_ PageAllocator = (*MmapPageAllocator)(nil)
)

// testEachBackend runs a test against both allocator backends to verify
// that they behave identically from the caller's point of view.
func testEachBackend(t *testing.T, test func(t *testing.T, allocator PageAllocator, tracker *Tracker)) {
	t.Run("heap", func(t *testing.T) {
		tracker := NewTracker()
		test(t, NewHeapPageAllocatorWithTracker(tracker), tracker)
	})
	t.Run("mmap", func(t *testing.T) {
		tracker := NewTracker()
		test(t, newMmapAllocator(t, tracker), tracker)
	})
}

func TestAllocators_DeltaRoundTripPreservesContent(t *testing.T) {
	testEachBackend(t, func(t *testing.T, allocator PageAllocator, tracker *Tracker) {
		entries := make([]PageEntry, 10)
		for i := range entries {
			entries[i] = PageEntry{Index: PageIndex(i * 11), Bytes: pageWithValue(byte(i + 1))}
		}
		pages, err := allocator.Allocate(entries)
		if err != nil {
			t.Fatalf("failed to allocate pages: %v", err)
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

		if len(restored) != len(entries) {
			t.Fatalf("wrong number of restored pages, got %d, want %d", len(restored), len(entries))
		}
		byIndex := map[PageIndex]Page{}
		for _, page := range restored {
			byIndex[page.Index] = page.Page
		}
		for i, entry := range entries {
			page, exists := byIndex[entry.Index]
			if !exists {
				t.Fatalf("page %d missing after round trip", entry.Index)
			}
			if *page.Contents(allocator) != *pageWithValue(byte(i+1)) {
				t.Errorf("content of page %d changed in round trip", entry.Index)
			}
		}
	})
}

func TestAllocators_DeserializationIsAccounted(t *testing.T) {
	testEachBackend(t, func(t *testing.T, allocator PageAllocator, tracker *Tracker) {
		pages, err := allocator.Allocate([]PageEntry{
			{Index: 1, Bytes: pageWithValue(1)},
			{Index: 2, Bytes: pageWithValue(2)},
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
		restored, err := allocator.DeserializePageDelta(serialized)
		if err != nil {
			t.Fatalf("failed to deserialize delta: %v", err)
		}

		if got, want := tracker.Get(), int64(4); got != want {
			t.Errorf("restored pages not accounted, got %d live pages, want %d", got, want)
		}
		releaseAll(restored)
		if got, want := tracker.Get(), int64(2); got != want {
			t.Errorf("releases not accounted, got %d live pages, want %d", got, want)
		}
	})
}

func TestAllocators_ReportMemoryFootprint(t *testing.T) {
	testEachBackend(t, func(t *testing.T, allocator PageAllocator, tracker *Tracker) {
		footprint := allocator.GetMemoryFootprint()
		if footprint == nil {
			t.Fatalf("allocator reports no memory footprint")
		}
		if footprint.Total() == 0 {
			t.Errorf("allocator reports a zero memory footprint")
		}
	})
}
