package pagealloc

import (
	"testing"
)

func TestPageDelta_HoldsPagesByIndex(t *testing.T) {
	tracker := NewTracker()
	allocator := NewHeapPageAllocatorWithTracker(tracker)

	delta := NewPageDelta()
	delta.Add(5, allocateOne(t, allocator, 5, 5))
	delta.Add(1, allocateOne(t, allocator, 1, 1))
	defer delta.Release()

	if got, want := delta.Size(), 2; got != want {
		t.Errorf("wrong delta size, got %d, want %d", got, want)
	}
	page, exists := delta.Get(5)
	if !exists {
		t.Fatalf("page 5 missing from delta")
	}
	if *page.Contents(allocator) != *pageWithValue(5) {
		t.Errorf("wrong page stored under index 5")
	}
	if _, exists := delta.Get(9); exists {
		t.Errorf("delta reports a page that was never added")
	}
}

func TestPageDelta_DuplicateIndexIsFatal(t *testing.T) {
	tracker := NewTracker()
	allocator := NewHeapPageAllocatorWithTracker(tracker)

	delta := NewPageDelta()
	first := allocateOne(t, allocator, 1, 1)
	second := allocateOne(t, allocator, 1, 2)
	defer second.Release()
	delta.Add(1, first)
	defer delta.Release()

	expectContractViolation(t, ErrDuplicateIndex, func() {
		delta.Add(1, second)
	})
}

func TestPageDelta_DuplicateBatchIndicesAreRejectedOnAssembly(t *testing.T) {
	tracker := NewTracker()
	allocator := NewHeapPageAllocatorWithTracker(tracker)

	// Allocation batches with duplicate indices violate the allocator
	// contract; the violation surfaces when the result is assembled into
	// a delta instead of silently keeping the last page.
	pages, err := allocator.Allocate([]PageEntry{
		{Index: 1, Bytes: pageWithValue(1)},
		{Index: 1, Bytes: pageWithValue(2)},
	})
	if err != nil {
		t.Fatalf("failed to allocate pages: %v", err)
	}
	defer releaseAll(pages)

	expectContractViolation(t, ErrDuplicateIndex, func() {
		DeltaFromPages(pages)
	})
}

func TestPageDelta_IterationIsOrderedByIndex(t *testing.T) {
	tracker := NewTracker()
	allocator := NewHeapPageAllocatorWithTracker(tracker)

	delta := NewPageDelta()
	for _, index := range []PageIndex{42, 7, 19, 3} {
		delta.Add(index, allocateOne(t, allocator, index, byte(index)))
	}
	defer delta.Release()

	var visited []PageIndex
	delta.ForEach(func(index PageIndex, page Page) {
		visited = append(visited, index)
	})

	want := []PageIndex{3, 7, 19, 42}
	if len(visited) != len(want) {
		t.Fatalf("wrong number of visited pages, got %d, want %d", len(visited), len(want))
	}
	for i := range want {
		if visited[i] != want[i] {
			t.Fatalf("iteration not ordered, got %v, want %v", visited, want)
		}
	}
}

func TestPageDelta_ReleaseDropsAllPages(t *testing.T) {
	tracker := NewTracker()
	allocator := NewHeapPageAllocatorWithTracker(tracker)

	pages, err := allocator.Allocate([]PageEntry{
		{Index: 1, Bytes: pageWithValue(1)},
		{Index: 2, Bytes: pageWithValue(2)},
	})
	if err != nil {
		t.Fatalf("failed to allocate pages: %v", err)
	}
	delta := DeltaFromPages(pages)

	delta.Release()
	if got := tracker.Get(); got != 0 {
		t.Errorf("pages still alive after releasing the delta, got %d", got)
	}
	if got := delta.Size(); got != 0 {
		t.Errorf("delta not empty after release, got %d pages", got)
	}
}
