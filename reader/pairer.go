package reader

// Layout selects single pages or two-page spreads. Dual is only honored for
// directions that can pair; the caller is responsible for only requesting it
// in landscape orientation.
type Layout int

const (
	LayoutSingle Layout = iota
	LayoutDual
)

func (l Layout) String() string {
	if l == LayoutDual {
		return "dual"
	}
	return "single"
}

// NoPage marks an absent second page in a Slide.
const NoPage = -1

// Slide is one screen's worth of content: a single page, a paired spread,
// or the terminal end-of-book sentinel. First < Second when both present.
type Slide struct {
	First  int
	Second int
}

// IsSpread reports whether the slide holds two pages.
func (s Slide) IsSpread() bool {
	return s.Second != NoPage
}

// Contains reports whether the slide owns the given physical page index.
func (s Slide) Contains(pageIndex int) bool {
	return s.First == pageIndex || (s.Second != NoPage && s.Second == pageIndex)
}

// SlideList is the static slide sequence derived from page count, layout and
// direction. Slides are always built in ascending physical order; RTL only
// reverses traversal, never the pairing itself. The last slide is always the
// end-of-book sentinel at First == pageCount. Rebuilt from scratch whenever
// an input changes; it is cheap and O(n).
type SlideList struct {
	Slides    []Slide
	pageCount int
	byPage    []int // physical index -> position in Slides
}

// BuildSlides groups physical pages into slides.
//
// Single layout and webtoon emit one singleton per page. Dual layout pairs
// pages two at a time; with excludeCover the cover (index 0) is emitted as a
// singleton and pairing starts at 1, so the spreads are (1,2), (3,4) and so
// on. A trailing unmatched page becomes a singleton.
func BuildSlides(pageCount int, layout Layout, dir Direction, excludeCover bool) *SlideList {
	l := &SlideList{
		pageCount: pageCount,
		byPage:    make([]int, pageCount),
	}

	if layout != LayoutDual || !dir.CanPair() {
		for i := 0; i < pageCount; i++ {
			l.byPage[i] = len(l.Slides)
			l.Slides = append(l.Slides, Slide{First: i, Second: NoPage})
		}
		l.appendSentinel()
		return l
	}

	start := 0
	if excludeCover && pageCount > 0 {
		l.byPage[0] = 0
		l.Slides = append(l.Slides, Slide{First: 0, Second: NoPage})
		start = 1
	}
	for i := start; i < pageCount; i += 2 {
		pos := len(l.Slides)
		if i+1 < pageCount {
			l.byPage[i] = pos
			l.byPage[i+1] = pos
			l.Slides = append(l.Slides, Slide{First: i, Second: i + 1})
		} else {
			l.byPage[i] = pos
			l.Slides = append(l.Slides, Slide{First: i, Second: NoPage})
		}
	}
	l.appendSentinel()
	return l
}

func (l *SlideList) appendSentinel() {
	l.Slides = append(l.Slides, Slide{First: l.pageCount, Second: NoPage})
}

// Len returns the number of slides including the sentinel.
func (l *SlideList) Len() int {
	return len(l.Slides)
}

// PageCount returns the physical page count the list was built for.
func (l *SlideList) PageCount() int {
	return l.pageCount
}

// Sentinel returns the terminal end-of-book slide.
func (l *SlideList) Sentinel() Slide {
	return l.Slides[len(l.Slides)-1]
}

// SlideFor resolves the slide owning a physical page index in O(1).
// The sentinel index (pageCount) resolves to the sentinel slide. Returns
// ok=false for indices outside [0, pageCount].
func (l *SlideList) SlideFor(pageIndex int) (Slide, int, bool) {
	if pageIndex == l.pageCount {
		pos := len(l.Slides) - 1
		return l.Slides[pos], pos, true
	}
	if pageIndex < 0 || pageIndex > l.pageCount {
		return Slide{}, 0, false
	}
	pos := l.byPage[pageIndex]
	return l.Slides[pos], pos, true
}

// At returns the slide at a list position.
func (l *SlideList) At(pos int) (Slide, bool) {
	if pos < 0 || pos >= len(l.Slides) {
		return Slide{}, false
	}
	return l.Slides[pos], true
}
