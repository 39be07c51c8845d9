package reader

import (
	"context"
	"sync"
)

// defaultPrefetchWindow is how many pages around the cursor are kept
// image-resident.
const defaultPrefetchWindow = 3

// pageKey attributes a fetch to one page of one book, so completions that
// arrive after a book switch can be discarded instead of applied.
type pageKey struct {
	bookID string
	index  int
}

// prefetchRequest asks the worker to warm the window around a cursor
// position.
type prefetchRequest struct {
	bookID    string
	center    int
	pageCount int
}

// PrefetchStats reports what the prefetcher has done so far.
type PrefetchStats struct {
	Loaded     int
	Failed     int
	LastCenter int
}

// Prefetcher keeps a window of page images around the reading cursor
// resident in an ImageStore. Requests are de-duplicated per (book, page):
// cache-resident pages, pages already being fetched and pages with a
// recorded error are skipped, so invoking it many times per second during
// fast navigation is cheap and safe.
//
// A single worker goroutine services requests sequentially; a new request
// drains any queued ones first, so only the latest cursor position is
// warmed.
type Prefetcher struct {
	requests chan prefetchRequest
	ctx      context.Context
	cancel   context.CancelFunc

	source ImageSource
	store  ImageStore
	window int

	mu       sync.Mutex
	book     string
	inflight map[pageKey]bool
	pageErrs map[pageKey]error
	stats    PrefetchStats
	enabled  bool
}

// NewPrefetcher starts a prefetcher with the given window size (pages on
// each side of the cursor; values below 1 fall back to the default).
func NewPrefetcher(source ImageSource, store ImageStore, window int) *Prefetcher {
	if window < 1 {
		window = defaultPrefetchWindow
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Prefetcher{
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
	go p.worker()
	return p
}

// SetEnabled turns prefetching on or off.
func (p *Prefetcher) SetEnabled(on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enabled = on
}

// Stop shuts the worker down. Outstanding fetches finish but their results
// for a stopped prefetcher are discarded by the store at worst.
func (p *Prefetcher) Stop() {
	p.cancel()
}

// Stats returns a snapshot of the prefetch counters.
func (p *Prefetcher) Stats() PrefetchStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// OnCursorMoved schedules a warm-up of the window around centerIndex.
// Switching bookID invalidates attribution for the previous book: its
// in-flight completions are discarded on arrival and its error records are
// dropped. Never requests the end-of-book sentinel; the window is clamped
// to real pages.
func (p *Prefetcher) OnCursorMoved(bookID string, centerIndex, pageCount int) {
	p.mu.Lock()
	if !p.enabled {
		p.mu.Unlock()
		return
	}
	if p.book != bookID {
		p.book = bookID
		p.pageErrs = make(map[pageKey]error)
	}
	p.stats.LastCenter = centerIndex
	p.mu.Unlock()

	// Only the newest position matters; drop anything still queued.
drain:
	for {
		select {
		case <-p.requests:
		default:
			break drain
		}
	}

	select {
	case p.requests <- prefetchRequest{bookID: bookID, center: centerIndex, pageCount: pageCount}:
	case <-p.ctx.Done():
	default:
		debugLog("prefetch: request channel full, skipping")
	}
}

// PageError returns the recorded fetch error for a page, if any. Errors are
// per-page and retryable; they never abort prefetching of neighbors.
func (p *Prefetcher) PageError(bookID string, pageIndex int) (error, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	err, ok := p.pageErrs[pageKey{bookID, pageIndex}]
	return err, ok
}

// Retry clears a page's error record and schedules just that page again.
// This is the explicit user retry affordance; failed pages are otherwise
// not re-requested automatically.
func (p *Prefetcher) Retry(bookID string, pageIndex int) {
	p.mu.Lock()
	delete(p.pageErrs, pageKey{bookID, pageIndex})
	p.mu.Unlock()

	select {
	case p.requests <- prefetchRequest{bookID: bookID, center: pageIndex, pageCount: pageIndex + 1}:
	case <-p.ctx.Done():
	default:
	}
}

func (p *Prefetcher) worker() {
	for {
		select {
		case <-p.ctx.Done():
			return
		case req := <-p.requests:
			p.process(req)
		}
	}
}

// process fetches every index in the window that is not resident, not
// in flight and not already failed. Individual failures are recorded and do
// not stop the rest of the window.
func (p *Prefetcher) process(req prefetchRequest) {
	for _, idx := range p.windowIndices(req.center, req.pageCount) {
		select {
		case <-p.ctx.Done():
			return
		default:
		}
		p.fetchOne(req.bookID, idx)
	}
}

// windowIndices lists the physical indices to warm, the center first, then
// alternating outward so the nearest pages win when loads are slow.
func (p *Prefetcher) windowIndices(center, pageCount int) []int {
	var indices []int
	add := func(idx int) {
		if idx >= 0 && idx < pageCount {
			indices = append(indices, idx)
		}
	}
	add(center)
	for i := 1; i <= p.window; i++ {
		add(center + i)
		add(center - i)
	}
	return indices
}

func (p *Prefetcher) fetchOne(bookID string, idx int) {
	key := pageKey{bookID, idx}

	p.mu.Lock()
	if p.inflight[key] {
		p.mu.Unlock()
		return
	}
	if _, failed := p.pageErrs[key]; failed {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	if p.store.Has(bookID, idx) {
		return
	}

	p.mu.Lock()
	p.inflight[key] = true
	p.mu.Unlock()

	data, err := p.source.FetchImage(p.ctx, bookID, idx)

	p.mu.Lock()
	delete(p.inflight, key)
	stale := p.book != bookID
	if stale {
		p.mu.Unlock()
		debugLog("prefetch: dropping stale completion for %s page %d", bookID, idx)
		return
	}
	if err != nil {
		p.pageErrs[key] = err
		p.stats.Failed++
		p.mu.Unlock()
		debugLog("prefetch: page %d of %s failed: %v", idx, bookID, err)
		return
	}
	p.stats.Loaded++
	p.mu.Unlock()

	p.store.Add(bookID, idx, data)
	debugLog("prefetch: page %d of %s resident (%d bytes)", idx, bookID, len(data))
}
