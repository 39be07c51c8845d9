package reader

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeCatalog struct {
	pages []Page
	err   error
}

func (f *fakeCatalog) LoadCatalog(_ context.Context, _ string) ([]Page, error) {
	return f.pages, f.err
}

type fakeProgress struct {
	mu    sync.Mutex
	saved []int
}

func (f *fakeProgress) SaveProgress(_ string, pageNumber int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, pageNumber)
}

func (f *fakeProgress) all() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int, len(f.saved))
	copy(out, f.saved)
	return out
}

type fakeNextBooks struct {
	next string
}

func (f *fakeNextBooks) NextBook(_ context.Context, _ string) (string, bool, error) {
	if f.next == "" {
		return "", false, nil
	}
	return f.next, true, nil
}

type fakeDirections struct {
	dir Direction
	ok  bool
}

func (f *fakeDirections) SeriesDirection(_ context.Context, _ string) (Direction, bool, error) {
	return f.dir, f.ok, nil
}

func catalogPages(n int) []Page {
	pages := make([]Page, n)
	for i := range pages {
		pages[i] = Page{Index: i, Number: i + 1, FileName: "p.jpg"}
	}
	return pages
}

func newTestSession(t *testing.T, cat CatalogSource, extra func(*Options)) (*Session, *fakeStore, *fakeProgress) {
	t.Helper()
	store := newFakeStore()
	progress := &fakeProgress{}
	opts := Options{
		Catalog:        cat,
		Images:         newFakeSource(),
		Store:          store,
		Progress:       progress,
		PrefetchWindow: 2,
		Capabilities:   Capabilities{ContinuousScroll: true},
	}
	if extra != nil {
		extra(&opts)
	}
	s := NewSession(opts)
	t.Cleanup(s.Close)
	return s, store, progress
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestSessionLoadBook(t *testing.T) {
	s, store, _ := newTestSession(t, &fakeCatalog{pages: catalogPages(10)}, nil)

	if err := s.LoadBook(context.Background(), "b1", "", 4); err != nil {
		t.Fatalf("LoadBook: %v", err)
	}
	if s.IsLoading() {
		t.Error("still loading after LoadBook returned")
	}
	if got := len(s.Pages()); got != 10 {
		t.Fatalf("pages = %d, want 10", got)
	}
	// 1-based hint 4 seeds 0-based index 3.
	if got := s.CurrentPageIndex(); got != 3 {
		t.Errorf("seeded index = %d, want 3", got)
	}

	// The initial prefetch warms the window around the seed.
	waitFor(t, func() bool { return store.Has("b1", 3) && store.Has("b1", 4) },
		"initial prefetch never warmed the window")
}

func TestSessionCatalogFailure(t *testing.T) {
	s, store, _ := newTestSession(t, &fakeCatalog{err: ErrCatalogUnavailable}, nil)

	err := s.LoadBook(context.Background(), "b1", "", 0)
	if err == nil {
		t.Fatal("expected error")
	}
	if s.IsLoading() {
		t.Error("isLoading stuck true")
	}
	if len(s.Pages()) != 0 {
		t.Errorf("pages = %d, want 0", len(s.Pages()))
	}
	if s.ErrorMessage() == "" {
		t.Error("no error message surfaced")
	}

	time.Sleep(30 * time.Millisecond)
	if store.size() != 0 {
		t.Errorf("prefetch ran after a failed catalog load: %d entries", store.size())
	}
}

func TestSessionEmptyCatalogIsUnavailable(t *testing.T) {
	s, _, _ := newTestSession(t, &fakeCatalog{pages: nil}, nil)
	err := s.LoadBook(context.Background(), "b1", "", 0)
	if err == nil {
		t.Fatal("expected error for empty catalog")
	}
}

func TestSessionProgressOnNavigation(t *testing.T) {
	s, _, progress := newTestSession(t, &fakeCatalog{pages: catalogPages(5)}, nil)
	if err := s.LoadBook(context.Background(), "b1", "", 0); err != nil {
		t.Fatal(err)
	}

	s.GoToNextPage()
	s.GoToNextPage()

	got := progress.all()
	// Page numbers are 1-based: indices 1 and 2 persist as 2 and 3.
	if len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Errorf("progress = %v, want [2 3]", got)
	}

	// Reaching the end slide marks the final page.
	s.JumpToPage(5)
	s.GoToNextPage()
	got = progress.all()
	if got[len(got)-1] != 5 {
		t.Errorf("end slide persisted %d, want 5", got[len(got)-1])
	}
	if !s.IsAtEndPage() {
		t.Error("not at end page")
	}
}

func TestSessionIncognito(t *testing.T) {
	s, _, progress := newTestSession(t, &fakeCatalog{pages: catalogPages(5)},
		func(o *Options) { o.Incognito = true })
	if err := s.LoadBook(context.Background(), "b1", "", 0); err != nil {
		t.Fatal(err)
	}
	s.GoToNextPage()
	if len(progress.all()) != 0 {
		t.Errorf("incognito session persisted progress: %v", progress.all())
	}
}

func TestSessionSeriesDirectionSeedsBeforePairing(t *testing.T) {
	s, _, _ := newTestSession(t, &fakeCatalog{pages: catalogPages(6)},
		func(o *Options) {
			o.Layout = LayoutDual
			o.Directions = &fakeDirections{dir: DirectionRTL, ok: true}
		})
	if err := s.LoadBook(context.Background(), "b1", "s1", 0); err != nil {
		t.Fatal(err)
	}
	if got := s.ReadingDirection(); got != DirectionRTL {
		t.Errorf("direction = %v, want rtl", got)
	}

	// RTL forward moves toward physical 0 from the very first step.
	s.GoToNextPage()
	if got := s.CurrentPageIndex(); got != RTLEndSentinel {
		t.Errorf("rtl forward from 0 = %d, want sentinel", got)
	}
}

func TestSessionWebtoonDowngrade(t *testing.T) {
	s, _, _ := newTestSession(t, &fakeCatalog{pages: catalogPages(6)},
		func(o *Options) {
			o.Capabilities = Capabilities{ContinuousScroll: false}
			o.Directions = &fakeDirections{dir: DirectionWebtoon, ok: true}
		})
	if err := s.LoadBook(context.Background(), "b1", "s1", 0); err != nil {
		t.Fatal(err)
	}
	if got := s.ReadingDirection(); got != DirectionVertical {
		t.Errorf("direction = %v, want vertical downgrade", got)
	}
}

func TestSessionLayoutUpdateRebuilds(t *testing.T) {
	s, _, _ := newTestSession(t, &fakeCatalog{pages: catalogPages(10)},
		func(o *Options) { o.ExcludeCover = true })
	if err := s.LoadBook(context.Background(), "b1", "", 5); err != nil {
		t.Fatal(err)
	}
	// Seeded at index 4.
	s.UpdatePageLayout(LayoutDual)
	// Index 4 lives in spread {3,4}; the cursor snaps to its lead.
	if got := s.CurrentPageIndex(); got != 3 {
		t.Errorf("after dual switch index = %d, want 3", got)
	}

	s.GoToNextPage()
	if got := s.CurrentPageIndex(); got != 5 {
		t.Errorf("dual next = %d, want 5", got)
	}

	s.UpdateDualPageSettings(false)
	// Pairing restarts at 0: pairs (0,1),(2,3),(4,5)... index 5 snaps to 4.
	if got := s.CurrentPageIndex(); got != 4 {
		t.Errorf("after cover toggle index = %d, want 4", got)
	}
}

func TestSessionWebtoonScrollFeedback(t *testing.T) {
	s, _, progress := newTestSession(t, &fakeCatalog{pages: catalogPages(10)},
		func(o *Options) {
			o.Direction = DirectionWebtoon
			o.PageWidth = 300
			o.PlaceholderRatio = 1.0
		})
	if err := s.LoadBook(context.Background(), "b1", "", 0); err != nil {
		t.Fatal(err)
	}

	// 10 pages x 300. Scroll so the viewport center is inside page 4.
	s.SyncScroll(900, 600)
	if got := s.CurrentPageIndex(); got != 4 {
		t.Errorf("scroll-derived page = %d, want 4", got)
	}
	// The feedback commit also persisted progress.
	got := progress.all()
	if len(got) == 0 || got[len(got)-1] != 5 {
		t.Errorf("progress = %v, want trailing 5", got)
	}

	// Remeasure above the viewport shifts the recorded offset.
	if delta := s.ReportMeasuredHeight(0, 450); delta != 150 {
		t.Errorf("compensation = %v, want 150", delta)
	}

	// Bottom of strip is the webtoon end-of-book signal.
	if s.AtWebtoonEnd() {
		t.Error("webtoon end before scrolling to the bottom")
	}
	s.SyncScroll(2600, 600)
	if !s.AtWebtoonEnd() {
		t.Error("webtoon end not detected at the bottom")
	}
	if got := s.CurrentPageIndex(); got != 9 {
		t.Errorf("page at bottom = %d, want 9", got)
	}
}

func TestSessionNextBook(t *testing.T) {
	cat := &fakeCatalog{pages: catalogPages(3)}
	s, _, _ := newTestSession(t, cat, func(o *Options) {
		o.NextBooks = &fakeNextBooks{next: "b2"}
	})
	if err := s.LoadBook(context.Background(), "b1", "", 0); err != nil {
		t.Fatal(err)
	}
	s.JumpToPage(3)
	s.GoToNextPage()
	if !s.IsAtEndPage() {
		t.Fatal("not at end page")
	}

	ok, err := s.NextBook(context.Background())
	if err != nil || !ok {
		t.Fatalf("NextBook = %v, %v", ok, err)
	}
	if got := s.BookID(); got != "b2" {
		t.Errorf("book = %s, want b2", got)
	}
	if got := s.CurrentPageIndex(); got != 0 {
		t.Errorf("next book starts at %d, want 0", got)
	}
	if s.IsAtEndPage() {
		t.Error("end-of-book state leaked across the book switch")
	}
}

func TestSessionNextBookAbsent(t *testing.T) {
	s, _, _ := newTestSession(t, &fakeCatalog{pages: catalogPages(3)},
		func(o *Options) { o.NextBooks = &fakeNextBooks{} })
	if err := s.LoadBook(context.Background(), "b1", "", 0); err != nil {
		t.Fatal(err)
	}
	ok, err := s.NextBook(context.Background())
	if err != nil || ok {
		t.Errorf("NextBook with no successor = %v, %v", ok, err)
	}
	if got := s.BookID(); got != "b1" {
		t.Errorf("book changed to %s", got)
	}
}

func TestSessionChangeEvents(t *testing.T) {
	s, _, _ := newTestSession(t, &fakeCatalog{pages: catalogPages(5)}, nil)

	var mu sync.Mutex
	var events []Change
	s.OnChange(func(ch Change) {
		mu.Lock()
		events = append(events, ch)
		mu.Unlock()
	})

	if err := s.LoadBook(context.Background(), "b1", "", 0); err != nil {
		t.Fatal(err)
	}
	s.GoToNextPage()
	s.JumpToPage(5)

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if events[0].PageIndex != 1 || events[1].PageIndex != 4 {
		t.Errorf("event pages = %d, %d, want 1, 4", events[0].PageIndex, events[1].PageIndex)
	}
}
