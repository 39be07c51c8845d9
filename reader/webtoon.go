package reader

// Webtoon layout constants.
const (
	// defaultPlaceholderRatio is the height-to-width ratio assumed for a
	// page whose real dimensions are not known yet.
	defaultPlaceholderRatio = 1.5

	// bottomThreshold is how close, in pixels, the viewport bottom must be
	// to the content bottom to count as "at the bottom". Crossing it is the
	// only end-of-book signal in webtoon mode.
	bottomThreshold = 16.0
)

// VirtualSlide is one strip item emitted for a renderer: where a page sits
// in the continuous strip and how tall it currently is.
type VirtualSlide struct {
	Index  int
	Offset float64
	Height float64
}

// Virtualizer models a continuous vertical strip of variable-height pages.
// Heights start as placeholders, derived from catalog width/height metadata
// when present or a constant multiple of the page width otherwise, and are
// replaced by measured heights as each image's true aspect ratio becomes
// known. It never touches renderer geometry; it emits offsets and sizes and
// derives the current page from the viewport.
//
// Like the cursor, it belongs to one book session and is not safe for
// concurrent mutation.
type Virtualizer struct {
	pages            []Page
	pageWidth        float64
	placeholderRatio float64

	measured map[int]float64

	scrollOffset   float64
	viewportHeight float64
}

// NewVirtualizer builds a virtualizer for the given pages laid out at
// pageWidth. placeholderRatio is the fallback height multiple for pages
// without metadata; values <= 0 use the default.
func NewVirtualizer(pages []Page, pageWidth, placeholderRatio float64) *Virtualizer {
	if placeholderRatio <= 0 {
		placeholderRatio = defaultPlaceholderRatio
	}
	return &Virtualizer{
		pages:            pages,
		pageWidth:        pageWidth,
		placeholderRatio: placeholderRatio,
		measured:         make(map[int]float64),
	}
}

// HeightFor returns the best known height for a page: measured if
// available, else scaled from catalog metadata, else the placeholder.
func (v *Virtualizer) HeightFor(index int) float64 {
	if h, ok := v.measured[index]; ok {
		return h
	}
	return v.placeholderHeight(index)
}

func (v *Virtualizer) placeholderHeight(index int) float64 {
	if index >= 0 && index < len(v.pages) {
		p := v.pages[index]
		if p.Width > 0 && p.Height > 0 {
			return v.pageWidth * float64(p.Height) / float64(p.Width)
		}
	}
	return v.pageWidth * v.placeholderRatio
}

// OffsetForPage sums the heights of all preceding pages. O(n) on purpose:
// n is one book's page count, hundreds at most, and a sparse height map
// makes anything cleverer pointless.
func (v *Virtualizer) OffsetForPage(index int) float64 {
	var off float64
	for i := 0; i < index && i < len(v.pages); i++ {
		off += v.HeightFor(i)
	}
	return off
}

// ContentHeight is the total strip height under current knowledge.
func (v *Virtualizer) ContentHeight() float64 {
	return v.OffsetForPage(len(v.pages))
}

// SetViewport records the renderer-reported scroll offset and viewport
// height.
func (v *Virtualizer) SetViewport(scrollOffset, viewportHeight float64) {
	if scrollOffset < 0 {
		scrollOffset = 0
	}
	v.scrollOffset = scrollOffset
	v.viewportHeight = viewportHeight
}

// ScrollOffset returns the recorded scroll offset, including any
// compensation applied by SetMeasuredHeight.
func (v *Virtualizer) ScrollOffset() float64 {
	return v.scrollOffset
}

// SetMeasuredHeight replaces a page's estimated height with its real one
// and returns the scroll compensation applied. When the remeasured page
// lies entirely above the viewport the strip above the reader grew or
// shrank, so the recorded offset shifts by the delta to keep the visible
// page still. Pages at or below the viewport need no compensation: content
// below simply grows or shrinks.
func (v *Virtualizer) SetMeasuredHeight(index int, height float64) float64 {
	if index < 0 || index >= len(v.pages) || height <= 0 {
		return 0
	}
	old := v.HeightFor(index)
	v.measured[index] = height
	delta := height - old
	if delta == 0 {
		return 0
	}

	top := v.OffsetForPage(index)
	if top+old <= v.scrollOffset {
		// Page sat fully above the viewport top before this measurement.
		v.scrollOffset += delta
		debugLog("webtoon: page %d remeasured %.0f -> %.0f, offset shifted by %+.0f", index, old, height, delta)
		return delta
	}
	return 0
}

// IsAtBottom reports whether the viewport bottom has reached the content
// bottom within the fixed threshold.
func (v *Virtualizer) IsAtBottom() bool {
	if len(v.pages) == 0 {
		return false
	}
	return v.scrollOffset+v.viewportHeight >= v.ContentHeight()-bottomThreshold
}

// VisibleRange returns the first and last page indices intersecting the
// viewport. Returns ok=false for an empty book.
func (v *Virtualizer) VisibleRange() (first, last int, ok bool) {
	n := len(v.pages)
	if n == 0 {
		return 0, 0, false
	}
	top := v.scrollOffset
	bottom := v.scrollOffset + v.viewportHeight

	first = -1
	var off float64
	for i := 0; i < n; i++ {
		h := v.HeightFor(i)
		if off+h > top && off < bottom {
			if first == -1 {
				first = i
			}
			last = i
		}
		off += h
		if off >= bottom && first != -1 {
			break
		}
	}
	if first == -1 {
		// Scrolled past everything; clamp to the last page.
		return n - 1, n - 1, true
	}
	return first, last, true
}

// CurrentPage derives the page the reader is on. The value is derived, not
// authoritative: (a) the last page once the viewport bottom reaches the
// content bottom, else (b) the page under the vertical center of the
// viewport, else (c) the median of the visible range.
func (v *Virtualizer) CurrentPage() (int, bool) {
	first, last, ok := v.VisibleRange()
	if !ok {
		return 0, false
	}
	if v.IsAtBottom() {
		return len(v.pages) - 1, true
	}

	center := v.scrollOffset + v.viewportHeight/2
	var off float64
	for i := 0; i < len(v.pages); i++ {
		h := v.HeightFor(i)
		if center >= off && center < off+h {
			return i, true
		}
		off += h
	}

	return (first + last) / 2, true
}

// Items emits (index, offset, height) tuples for every page, for a
// renderer to virtualize however it likes.
func (v *Virtualizer) Items() []VirtualSlide {
	items := make([]VirtualSlide, 0, len(v.pages))
	var off float64
	for i := range v.pages {
		h := v.HeightFor(i)
		items = append(items, VirtualSlide{Index: i, Offset: off, Height: h})
		off += h
	}
	return items
}
