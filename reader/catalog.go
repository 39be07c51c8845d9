package reader

import (
	"context"
	"errors"
	"fmt"
)

// Page describes one physical page of a book. Index is 0-based and stable
// for the lifetime of a loaded catalog; Number is the 1-based server-facing
// page number. Width/Height are aspect-ratio hints and may be zero when the
// source does not know them.
type Page struct {
	Index    int
	Number   int
	FileName string
	Width    int
	Height   int
}

// Catalog is the immutable per-book page list. It is loaded once per book
// open and never mutated afterwards; everything else in this package only
// reads it.
type Catalog struct {
	BookID string
	Pages  []Page
}

// ErrCatalogUnavailable marks a book with no readable pages (unsupported
// format, server error). Fatal for that open attempt; callers show a
// "no pages" state instead of retrying.
var ErrCatalogUnavailable = errors.New("page catalog unavailable")

// LoadCatalog fetches the page list for bookID and returns the catalog plus
// the 0-based start index derived from the optional 1-based initialPageNumber
// hint (0 or out-of-range hints fall back to the first page).
func LoadCatalog(ctx context.Context, src CatalogSource, bookID string, initialPageNumber int) (*Catalog, int, error) {
	pages, err := src.LoadCatalog(ctx, bookID)
	if err != nil {
		return nil, 0, fmt.Errorf("loading catalog for %s: %w", bookID, err)
	}
	if len(pages) == 0 {
		return nil, 0, fmt.Errorf("book %s: %w", bookID, ErrCatalogUnavailable)
	}

	start := 0
	if initialPageNumber >= 1 && initialPageNumber <= len(pages) {
		start = initialPageNumber - 1
	}

	return &Catalog{BookID: bookID, Pages: pages}, start, nil
}

// PageCount returns the number of physical pages.
func (c *Catalog) PageCount() int {
	if c == nil {
		return 0
	}
	return len(c.Pages)
}
