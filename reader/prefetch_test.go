package reader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeSource struct {
	mu      sync.Mutex
	fetches map[string]int
	fail    map[string]bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{fetches: make(map[string]int), fail: make(map[string]bool)}
}

func (f *fakeSource) key(bookID string, idx int) string {
	return fmt.Sprintf("%s:%d", bookID, idx)
}

func (f *fakeSource) FetchImage(_ context.Context, bookID string, idx int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := f.key(bookID, idx)
	f.fetches[k]++
	if f.fail[k] {
		return nil, errors.New("boom")
	}
	return []byte{0xff, 0xd8}, nil
}

func (f *fakeSource) fetchCount(bookID string, idx int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches[f.key(bookID, idx)]
}

type fakeStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string][]byte)}
}

func (f *fakeStore) Has(bookID string, idx int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.data[fmt.Sprintf("%s:%d", bookID, idx)]
	return ok
}

func (f *fakeStore) Add(bookID string, idx int, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[fmt.Sprintf("%s:%d", bookID, idx)] = data
}

func (f *fakeStore) size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.data)
}

// newSyncPrefetcher builds a prefetcher without its worker goroutine so
// tests drive process directly and deterministically.
func newSyncPrefetcher(source ImageSource, store ImageStore, window int) *Prefetcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Prefetcher{
		requests: make(chan prefetchRequest, 16),
		ctx:      ctx,
		cancel:   cancel,
		source:   source,
		store:    store,
		window:   window,
		inflight: make(map[pageKey]bool),
		pageErrs: make(map[pageKey]error),
		enabled:  true,
	}
}

func TestPrefetchWindow(t *testing.T) {
	src := newFakeSource()
	store := newFakeStore()
	p := newSyncPrefetcher(src, store, 2)

	p.book = "b1"
	p.process(prefetchRequest{bookID: "b1", center: 5, pageCount: 10})

	for _, idx := range []int{3, 4, 5, 6, 7} {
		if !store.Has("b1", idx) {
			t.Errorf("page %d not resident", idx)
		}
	}
	if store.size() != 5 {
		t.Errorf("resident pages = %d, want 5", store.size())
	}
}

func TestPrefetchClampsToRealPages(t *testing.T) {
	src := newFakeSource()
	store := newFakeStore()
	p := newSyncPrefetcher(src, store, 3)

	p.book = "b1"
	// Center at the last page: the window must not cross the end sentinel.
	p.process(prefetchRequest{bookID: "b1", center: 9, pageCount: 10})

	if store.Has("b1", 10) {
		t.Error("sentinel index was fetched")
	}
	for _, idx := range []int{6, 7, 8, 9} {
		if !store.Has("b1", idx) {
			t.Errorf("page %d not resident", idx)
		}
	}

	p.process(prefetchRequest{bookID: "b1", center: 0, pageCount: 10})
	if src.fetchCount("b1", -1) != 0 {
		t.Error("negative index was fetched")
	}
}

func TestPrefetchIdempotent(t *testing.T) {
	src := newFakeSource()
	store := newFakeStore()
	p := newSyncPrefetcher(src, store, 2)

	p.book = "b1"
	req := prefetchRequest{bookID: "b1", center: 5, pageCount: 10}
	p.process(req)
	p.process(req)
	p.process(req)

	for _, idx := range []int{3, 4, 5, 6, 7} {
		if got := src.fetchCount("b1", idx); got != 1 {
			t.Errorf("page %d fetched %d times, want 1", idx, got)
		}
	}
}

func TestPrefetchFailureIsPerPage(t *testing.T) {
	src := newFakeSource()
	src.fail["b1:5"] = true
	store := newFakeStore()
	p := newSyncPrefetcher(src, store, 1)

	p.book = "b1"
	p.process(prefetchRequest{bookID: "b1", center: 5, pageCount: 10})

	// Neighbors still loaded.
	if !store.Has("b1", 4) || !store.Has("b1", 6) {
		t.Error("failure of page 5 blocked its neighbors")
	}
	if store.Has("b1", 5) {
		t.Error("failed page recorded as resident")
	}
	if _, ok := p.PageError("b1", 5); !ok {
		t.Error("no error recorded for page 5")
	}
	if p.Stats().Failed != 1 {
		t.Errorf("failed count = %d, want 1", p.Stats().Failed)
	}

	// Failed pages are not retried automatically.
	p.process(prefetchRequest{bookID: "b1", center: 5, pageCount: 10})
	if got := src.fetchCount("b1", 5); got != 1 {
		t.Errorf("failed page auto-refetched: %d fetches", got)
	}

	// Explicit retry clears the record and fetches again.
	src.fail["b1:5"] = false
	p.mu.Lock()
	delete(p.pageErrs, pageKey{"b1", 5})
	p.mu.Unlock()
	p.process(prefetchRequest{bookID: "b1", center: 5, pageCount: 10})
	if !store.Has("b1", 5) {
		t.Error("retry did not load the page")
	}
}

func TestPrefetchStaleBookDiscarded(t *testing.T) {
	src := newFakeSource()
	store := newFakeStore()
	p := newSyncPrefetcher(src, store, 1)

	// The session has since moved to book b2; a completion attributed to b1
	// must be discarded, not applied.
	p.book = "b2"
	p.process(prefetchRequest{bookID: "b1", center: 0, pageCount: 3})

	if store.size() != 0 {
		t.Errorf("stale completions were stored: %d entries", store.size())
	}
	if p.Stats().Loaded != 0 {
		t.Errorf("stale completions counted as loaded: %d", p.Stats().Loaded)
	}
}

func TestPrefetchDisabled(t *testing.T) {
	src := newFakeSource()
	store := newFakeStore()
	p := NewPrefetcher(src, store, 1)
	defer p.Stop()

	p.SetEnabled(false)
	p.OnCursorMoved("b1", 0, 5)
	time.Sleep(20 * time.Millisecond)
	if store.size() != 0 {
		t.Errorf("disabled prefetcher still loaded %d pages", store.size())
	}
}

func TestPrefetchEndToEnd(t *testing.T) {
	src := newFakeSource()
	store := newFakeStore()
	p := NewPrefetcher(src, store, 1)
	defer p.Stop()

	p.OnCursorMoved("b1", 1, 4)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if store.Has("b1", 0) && store.Has("b1", 1) && store.Has("b1", 2) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("window not resident after deadline; %d pages loaded", store.size())
}

func TestWindowIndicesCenterFirst(t *testing.T) {
	p := newSyncPrefetcher(newFakeSource(), newFakeStore(), 2)
	got := p.windowIndices(5, 10)
	want := []int{5, 6, 4, 7, 3}
	if len(got) != len(want) {
		t.Fatalf("windowIndices = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("windowIndices = %v, want %v", got, want)
		}
	}
}
