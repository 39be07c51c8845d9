package reader

import "context"

// CatalogSource fetches the ordered page descriptors for a book.
type CatalogSource interface {
	LoadCatalog(ctx context.Context, bookID string) ([]Page, error)
}

// ImageSource fetches the raw image bytes for a single page.
type ImageSource interface {
	FetchImage(ctx context.Context, bookID string, pageIndex int) ([]byte, error)
}

// ImageStore is the residency predicate and byte sink backing prefetch.
// Implementations must be safe for concurrent use; the prefetch worker
// writes into it from its own goroutine.
type ImageStore interface {
	Has(bookID string, pageIndex int) bool
	Add(bookID string, pageIndex int, data []byte)
}

// ProgressSink persists read progress upstream. Calls are fire-and-forget:
// implementations must not block the caller and failures are swallowed at
// this boundary.
type ProgressSink interface {
	SaveProgress(bookID string, pageNumber int)
}

// NextBookResolver resolves the book that follows the given one, if any.
type NextBookResolver interface {
	NextBook(ctx context.Context, bookID string) (nextID string, ok bool, err error)
}

// DirectionSource reports a series-level reading direction, consulted once
// per book open to seed the direction before the first pairing pass.
type DirectionSource interface {
	SeriesDirection(ctx context.Context, seriesID string) (Direction, bool, error)
}
