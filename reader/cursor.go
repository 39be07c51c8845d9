package reader

// State is the lifecycle phase of a navigation cursor.
type State int

const (
	StateLoading State = iota
	StateReady
	StateNavigating
	StateEndOfBook
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateNavigating:
		return "navigating"
	case StateEndOfBook:
		return "end-of-book"
	default:
		return "unknown"
	}
}

// Change describes a committed cursor transition, delivered to the change
// listener so presentation layers can subscribe to explicit events instead
// of observing fields.
type Change struct {
	PageIndex int
	Slide     Slide
	State     State
}

// Cursor is the navigation state machine for one open book. It owns the
// current and target physical page index and answers what slide is shown
// and what comes next. One cursor per book; switching books replaces the
// cursor wholesale rather than patching it.
//
// Cursor is not safe for concurrent mutation. Confine it to one goroutine
// or serialize access externally (Session does the latter).
type Cursor struct {
	dir    Direction
	slides *SlideList

	current   int
	target    int
	hasTarget bool
	state     State

	deferCommit bool

	onCommit func(pageIndex int) // fired after every committed change
	onChange func(Change)
}

// NewCursor creates a cursor over the given slide list, seeded at startIndex
// (clamped to the valid page range, 0 when the book is empty).
func NewCursor(dir Direction, slides *SlideList, startIndex int) *Cursor {
	n := slides.PageCount()
	if startIndex < 0 || startIndex >= n {
		startIndex = 0
	}
	c := &Cursor{
		dir:     dir,
		slides:  slides,
		current: startIndex,
		state:   StateReady,
	}
	return c
}

// OnCommit registers the side-effect hook invoked after every committed
// cursor change. Hooks must be idempotent: rapid navigation fires them many
// times per second.
func (c *Cursor) OnCommit(fn func(pageIndex int)) {
	c.onCommit = fn
}

// OnChange registers the change listener.
func (c *Cursor) OnChange(fn func(Change)) {
	c.onChange = fn
}

// DeferCommits switches the cursor to two-phase navigation: GoToNext,
// GoToPrevious and JumpTo only stage a target, and the presentation layer
// calls Settle once its animation lands. The default commits immediately.
func (c *Cursor) DeferCommits(on bool) {
	c.deferCommit = on
}

// Current returns the authoritative physical page index. Range is
// [0, pageCount] for LTR/Vertical where pageCount means "at end page",
// or [-1, pageCount-1] for RTL where -1 is the end page.
func (c *Cursor) Current() int {
	return c.current
}

// Target returns the pending navigation target, if any.
func (c *Cursor) Target() (int, bool) {
	return c.target, c.hasTarget
}

// State returns the cursor state.
func (c *Cursor) State() State {
	return c.state
}

// Direction returns the reading direction the cursor was built with.
func (c *Cursor) Direction() Direction {
	return c.dir
}

// Slides returns the slide list the cursor navigates over.
func (c *Cursor) Slides() *SlideList {
	return c.slides
}

// IsAtEndPage reports whether the cursor sits on the end-of-book sentinel.
func (c *Cursor) IsAtEndPage() bool {
	return c.current == c.dir.EndSentinel(c.slides.PageCount())
}

// CurrentSlide returns the slide containing the current page.
func (c *Cursor) CurrentSlide() Slide {
	if s, _, ok := c.slides.SlideFor(c.normalizedCurrent()); ok {
		return s
	}
	return Slide{First: c.current, Second: NoPage}
}

// normalizedCurrent maps the RTL sentinel onto the slide list's sentinel
// position so lookups work in one index space.
func (c *Cursor) normalizedCurrent() int {
	if c.dir == DirectionRTL && c.current == RTLEndSentinel {
		return c.slides.PageCount()
	}
	return c.current
}

// slidePos returns the position of the slide containing the current page.
func (c *Cursor) slidePos() int {
	_, pos, ok := c.slides.SlideFor(c.normalizedCurrent())
	if !ok {
		return 0
	}
	return pos
}

// GoToNext advances one slide toward the end sentinel. In dual layout this
// jumps a whole spread at a time via the slide lookup, never by a raw
// physical step that could land mid-pair.
func (c *Cursor) GoToNext() {
	n := c.slides.PageCount()
	if n == 0 {
		return
	}
	if c.IsAtEndPage() {
		return
	}

	pos := c.slidePos()
	var target int
	if c.dir == DirectionRTL {
		// Forward moves toward physical 0 and then off the front.
		if pos == 0 {
			target = RTLEndSentinel
		} else {
			s, _ := c.slides.At(pos - 1)
			target = s.First
		}
	} else {
		last := c.slides.Len() - 1
		if c.dir == DirectionWebtoon && pos >= last-1 {
			return // no index-based end for webtoon strips
		}
		next := pos + 1
		if next > last {
			next = last
		}
		s, _ := c.slides.At(next)
		target = s.First
	}
	c.stage(target)
}

// GoToPrevious retreats one slide away from the end sentinel.
func (c *Cursor) GoToPrevious() {
	n := c.slides.PageCount()
	if n == 0 {
		return
	}

	var target int
	if c.dir == DirectionRTL {
		if c.current == RTLEndSentinel {
			s, _ := c.slides.At(0)
			target = s.First
		} else {
			pos := c.slidePos()
			last := c.slides.Len() - 2 // last real slide
			next := pos + 1
			if next > last {
				return
			}
			s, _ := c.slides.At(next)
			target = s.First
		}
	} else {
		pos := c.slidePos()
		if pos == 0 {
			return
		}
		s, _ := c.slides.At(pos - 1)
		target = s.First
	}
	c.stage(target)
}

// JumpTo navigates to a 1-based page number, clamped to [1, pageCount].
// No-op on an empty book or when already on the requested page. In dual
// layout the target snaps to the leading index of the owning slide.
func (c *Cursor) JumpTo(pageNumber int) {
	n := c.slides.PageCount()
	if n == 0 {
		return
	}
	if pageNumber < 1 {
		pageNumber = 1
	}
	if pageNumber > n {
		pageNumber = n
	}
	idx := pageNumber - 1
	if s, _, ok := c.slides.SlideFor(idx); ok && s.First < n {
		idx = s.First
	}
	if idx == c.current {
		return
	}
	c.stage(idx)
}

// SetFromScroll force-commits a physical index derived from scroll position.
// This is the webtoon feedback path: the virtualizer, not the user, decides
// the current page. The index is clamped to real pages.
func (c *Cursor) SetFromScroll(pageIndex int) {
	n := c.slides.PageCount()
	if n == 0 {
		return
	}
	if pageIndex < 0 {
		pageIndex = 0
	}
	if pageIndex >= n {
		pageIndex = n - 1
	}
	if pageIndex == c.current {
		return
	}
	c.target = pageIndex
	c.hasTarget = true
	c.Settle()
}

// stage records a navigation target and either settles immediately or, in
// deferred mode, waits for the presentation layer to call Settle.
func (c *Cursor) stage(target int) {
	if target == c.current {
		return
	}
	c.target = target
	c.hasTarget = true
	if c.deferCommit {
		c.state = StateNavigating
		c.notify()
		return
	}
	c.Settle()
}

// Settle commits the pending target. The committed value always equals the
// requested target; there is nothing to reconcile because targets are
// resolved against the slide list when staged.
func (c *Cursor) Settle() {
	if !c.hasTarget {
		return
	}
	c.current = c.target
	c.hasTarget = false
	if c.IsAtEndPage() {
		c.state = StateEndOfBook
	} else {
		c.state = StateReady
	}
	debugLog("cursor: committed page %d (%s)", c.current, c.state)
	if c.onCommit != nil {
		c.onCommit(c.current)
	}
	c.notify()
}

// Rebuild swaps in a new slide list after a layout, direction or
// cover-exclusion change. Slide lists are recomputed, never patched. The
// current index snaps to the leading page of its owning slide so a dual
// toggle cannot leave the cursor mid-pair.
func (c *Cursor) Rebuild(dir Direction, slides *SlideList) {
	wasEnd := c.IsAtEndPage()
	c.dir = dir
	c.slides = slides
	n := slides.PageCount()
	c.hasTarget = false

	if wasEnd {
		c.current = dir.EndSentinel(n)
	} else {
		if c.current < 0 || c.current >= n {
			c.current = 0
		}
		if s, _, ok := slides.SlideFor(c.current); ok && s.First < n {
			c.current = s.First
		}
	}
	if c.IsAtEndPage() {
		c.state = StateEndOfBook
	} else {
		c.state = StateReady
	}
	c.notify()
}

func (c *Cursor) notify() {
	if c.onChange == nil {
		return
	}
	c.onChange(Change{
		PageIndex: c.current,
		Slide:     c.CurrentSlide(),
		State:     c.state,
	})
}
