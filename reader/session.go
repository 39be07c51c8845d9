package reader

import (
	"context"
	"sync"
)

// Options configures a Session. Catalog, Images and Store are required;
// the remaining collaborators are optional and their absence degrades
// gracefully (no progress persistence, no next-book chaining, no
// series-level direction).
type Options struct {
	Catalog    CatalogSource
	Images     ImageSource
	Store      ImageStore
	Progress   ProgressSink
	NextBooks  NextBookResolver
	Directions DirectionSource

	Direction    Direction
	Layout       Layout
	ExcludeCover bool
	Incognito    bool

	PrefetchWindow int
	Capabilities   Capabilities

	// Webtoon strip geometry.
	PageWidth        float64
	PlaceholderRatio float64
}

// Session is the reading session for one open book: it owns the catalog,
// slide list, cursor, prefetcher and (in webtoon mode) virtualizer, and
// serializes every mutation behind one lock so the pieces see a consistent
// world. Opening another book resets the session state wholesale; nothing
// is patched across a book switch.
type Session struct {
	mu   sync.Mutex
	opts Options

	bookID   string
	seriesID string
	catalog  *Catalog
	dir      Direction
	layout   Layout

	slides     *SlideList
	cursor     *Cursor
	virt       *Virtualizer
	prefetcher *Prefetcher

	isLoading bool
	errMsg    string

	onChange func(Change)
}

// NewSession creates a session with no book open.
func NewSession(opts Options) *Session {
	if opts.PageWidth <= 0 {
		opts.PageWidth = 1080
	}
	s := &Session{
		opts:   opts,
		dir:    opts.Direction.Normalize(opts.Capabilities),
		layout: opts.Layout,
	}
	s.prefetcher = NewPrefetcher(opts.Images, opts.Store, opts.PrefetchWindow)
	return s
}

// OnChange registers the listener receiving committed cursor changes.
// Listeners run with the session lock held and must not call back into it.
func (s *Session) OnChange(fn func(Change)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
	if s.cursor != nil {
		s.cursor.OnChange(fn)
	}
}

// Close stops background work. The session is not usable afterwards.
func (s *Session) Close() {
	s.prefetcher.Stop()
}

// LoadBook opens a book: consults the series direction (best effort),
// loads the catalog, builds the slide list and seeds the cursor from the
// 1-based initialPageNumber hint (pass 0 to start at the first page).
//
// A catalog failure is fatal for this open attempt only: pages stay empty,
// the error message is set and no prefetch is issued. Metadata failures
// fall back silently to whatever direction is already set.
func (s *Session) LoadBook(ctx context.Context, bookID, seriesID string, initialPageNumber int) error {
	s.mu.Lock()
	s.isLoading = true
	s.errMsg = ""
	s.bookID = bookID
	s.seriesID = seriesID
	s.catalog = nil
	s.slides = nil
	s.cursor = nil
	s.virt = nil
	dir := s.dir
	s.mu.Unlock()

	if s.opts.Directions != nil && seriesID != "" {
		if d, ok, err := s.opts.Directions.SeriesDirection(ctx, seriesID); err == nil && ok {
			dir = d.Normalize(s.opts.Capabilities)
		} else if err != nil {
			debugLog("session: series direction for %s unavailable: %v", seriesID, err)
		}
	}

	catalog, start, err := LoadCatalog(ctx, s.opts.Catalog, bookID, initialPageNumber)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.isLoading = false
	if err != nil {
		s.errMsg = "no pages available"
		return err
	}

	s.dir = dir
	s.catalog = catalog
	s.rebuildLocked()
	s.cursor = NewCursor(s.dir, s.slides, start)
	s.cursor.OnCommit(s.committed)
	if s.onChange != nil {
		s.cursor.OnChange(s.onChange)
	}
	if s.dir == DirectionWebtoon {
		s.virt = NewVirtualizer(catalog.Pages, s.opts.PageWidth, s.opts.PlaceholderRatio)
	}

	debugLog("session: opened %s with %d pages at index %d (%s, %s)",
		bookID, catalog.PageCount(), start, s.dir, s.layout)
	s.prefetcher.OnCursorMoved(bookID, start, catalog.PageCount())
	return nil
}

// rebuildLocked recomputes the slide list for the current inputs.
func (s *Session) rebuildLocked() {
	s.slides = BuildSlides(s.catalog.PageCount(), s.layout, s.dir, s.opts.ExcludeCover)
}

// committed runs after every committed cursor change: persist progress and
// warm the prefetch window. Both are fire-and-forget and idempotent.
// Always invoked with s.mu held (cursor mutations happen under the lock).
func (s *Session) committed(pageIndex int) {
	n := s.catalog.PageCount()
	if n == 0 {
		return
	}
	if s.opts.Progress != nil && !s.opts.Incognito {
		number := pageIndex + 1
		if pageIndex == s.dir.EndSentinel(n) {
			number = n // the end slide marks the book finished
		}
		if number >= 1 && number <= n {
			s.opts.Progress.SaveProgress(s.bookID, number)
		}
	}
	center := pageIndex
	if center == s.dir.EndSentinel(n) {
		center = s.lastReadIndex(n)
	}
	s.prefetcher.OnCursorMoved(s.bookID, center, n)
}

// lastReadIndex is the physical index adjacent to the end sentinel.
func (s *Session) lastReadIndex(pageCount int) int {
	if s.dir == DirectionRTL {
		return 0
	}
	return pageCount - 1
}

// GoToNextPage advances one slide.
func (s *Session) GoToNextPage() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursor != nil {
		s.cursor.GoToNext()
	}
}

// GoToPreviousPage retreats one slide.
func (s *Session) GoToPreviousPage() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursor != nil {
		s.cursor.GoToPrevious()
	}
}

// JumpToPage navigates to a 1-based page number.
func (s *Session) JumpToPage(pageNumber int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursor != nil {
		s.cursor.JumpTo(pageNumber)
	}
}

// UpdatePageLayout switches between single and dual layout and rebuilds the
// slide list.
func (s *Session) UpdatePageLayout(layout Layout) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.layout == layout {
		return
	}
	s.layout = layout
	s.rebuildCursorLocked()
}

// UpdateDualPageSettings toggles the cover-exclusion rule.
func (s *Session) UpdateDualPageSettings(excludeCover bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.opts.ExcludeCover == excludeCover {
		return
	}
	s.opts.ExcludeCover = excludeCover
	s.rebuildCursorLocked()
}

// SetDirection changes the reading direction, downgrading it against the
// platform capabilities first.
func (s *Session) SetDirection(dir Direction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dir = dir.Normalize(s.opts.Capabilities)
	if s.dir == dir {
		return
	}
	s.dir = dir
	if s.catalog != nil && s.dir == DirectionWebtoon && s.virt == nil {
		s.virt = NewVirtualizer(s.catalog.Pages, s.opts.PageWidth, s.opts.PlaceholderRatio)
	}
	s.rebuildCursorLocked()
}

func (s *Session) rebuildCursorLocked() {
	if s.catalog == nil || s.cursor == nil {
		return
	}
	s.rebuildLocked()
	s.cursor.Rebuild(s.dir, s.slides)
}

// SetPrefetchEnabled toggles background prefetching.
func (s *Session) SetPrefetchEnabled(enabled bool) {
	s.prefetcher.SetEnabled(enabled)
}

// PreloadPages re-issues the prefetch window around the current position.
func (s *Session) PreloadPages() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursor == nil {
		return
	}
	n := s.catalog.PageCount()
	center := s.cursor.Current()
	if center == s.dir.EndSentinel(n) {
		center = s.lastReadIndex(n)
	}
	s.prefetcher.OnCursorMoved(s.bookID, center, n)
}

// UpdateProgress pushes the current position upstream immediately.
func (s *Session) UpdateProgress() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursor == nil {
		return
	}
	s.committed(s.cursor.Current())
}

// SyncScroll is the webtoon feedback loop: the renderer reports its scroll
// offset and viewport height, and the derived page is written back into the
// cursor. No-op outside webtoon mode.
func (s *Session) SyncScroll(scrollOffset, viewportHeight float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.virt == nil || s.cursor == nil {
		return
	}
	s.virt.SetViewport(scrollOffset, viewportHeight)
	if page, ok := s.virt.CurrentPage(); ok {
		s.cursor.SetFromScroll(page)
	}
}

// ReportMeasuredHeight feeds a real page height into the webtoon
// virtualizer and returns the scroll compensation the renderer must apply.
func (s *Session) ReportMeasuredHeight(pageIndex int, height float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.virt == nil {
		return 0
	}
	return s.virt.SetMeasuredHeight(pageIndex, height)
}

// AtWebtoonEnd reports whether the webtoon viewport has reached the bottom
// of the strip, the sole end-of-book signal in that mode.
func (s *Session) AtWebtoonEnd() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.virt != nil && s.virt.IsAtBottom()
}

// NextBook resolves the follow-up book and opens it from its first page.
// Returns false when there is none; resolver failures are treated the same
// way so the reader stays usable.
func (s *Session) NextBook(ctx context.Context) (bool, error) {
	s.mu.Lock()
	bookID := s.bookID
	seriesID := s.seriesID
	s.mu.Unlock()

	if s.opts.NextBooks == nil || bookID == "" {
		return false, nil
	}
	nextID, ok, err := s.opts.NextBooks.NextBook(ctx, bookID)
	if err != nil {
		debugLog("session: next book for %s unavailable: %v", bookID, err)
		return false, nil
	}
	if !ok {
		return false, nil
	}
	if err := s.LoadBook(ctx, nextID, seriesID, 0); err != nil {
		return false, err
	}
	return true, nil
}

// Accessors. Each takes the lock so callers on other goroutines see a
// consistent snapshot.

func (s *Session) BookID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bookID
}

func (s *Session) Pages() []Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.catalog == nil {
		return nil
	}
	return s.catalog.Pages
}

func (s *Session) CurrentPageIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursor == nil {
		return 0
	}
	return s.cursor.Current()
}

// TargetPageIndex reports a staged navigation target not yet settled, or
// false when nothing is pending.
func (s *Session) TargetPageIndex() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursor == nil {
		return 0, false
	}
	return s.cursor.Target()
}

func (s *Session) CurrentSlide() Slide {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursor == nil {
		return Slide{First: 0, Second: NoPage}
	}
	return s.cursor.CurrentSlide()
}

func (s *Session) SlideList() *SlideList {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slides
}

func (s *Session) ReadingDirection() Direction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dir
}

func (s *Session) PageLayout() Layout {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.layout
}

func (s *Session) IsAtEndPage() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor != nil && s.cursor.IsAtEndPage()
}

func (s *Session) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isLoading
}

func (s *Session) ErrorMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

func (s *Session) PrefetchStats() PrefetchStats {
	return s.prefetcher.Stats()
}

// PageFetchError surfaces a per-page prefetch failure for a retry
// affordance.
func (s *Session) PageFetchError(pageIndex int) (error, bool) {
	s.mu.Lock()
	bookID := s.bookID
	s.mu.Unlock()
	return s.prefetcher.PageError(bookID, pageIndex)
}

// RetryPage clears a page's fetch error and requests it again.
func (s *Session) RetryPage(pageIndex int) {
	s.mu.Lock()
	bookID := s.bookID
	s.mu.Unlock()
	s.prefetcher.Retry(bookID, pageIndex)
}
