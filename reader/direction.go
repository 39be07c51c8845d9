package reader

import "strings"

// Direction is the reading direction of a book. It determines the mapping
// between physical page indices and on-screen display order, the position of
// the end-of-book sentinel, and whether pages may be paired into spreads.
type Direction int

const (
	DirectionLTR Direction = iota
	DirectionRTL
	DirectionVertical
	DirectionWebtoon
)

// RTLEndSentinel is the physical index representing "past the last page"
// under right-to-left reading, where forward traversal moves from high
// physical indices toward 0 and then off the front of the book.
const RTLEndSentinel = -1

func (d Direction) String() string {
	switch d {
	case DirectionLTR:
		return "ltr"
	case DirectionRTL:
		return "rtl"
	case DirectionVertical:
		return "vertical"
	case DirectionWebtoon:
		return "webtoon"
	default:
		return "unknown"
	}
}

// ParseDirection accepts both the short names used in config files and the
// Komga metadata values (LEFT_TO_RIGHT, RIGHT_TO_LEFT, VERTICAL, WEBTOON).
func ParseDirection(s string) (Direction, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ltr", "left_to_right":
		return DirectionLTR, true
	case "rtl", "right_to_left":
		return DirectionRTL, true
	case "vertical":
		return DirectionVertical, true
	case "webtoon":
		return DirectionWebtoon, true
	default:
		return DirectionLTR, false
	}
}

// Capabilities describes what the hosting platform can present. Directions
// are validated against it once at the boundary instead of sprinkling
// platform conditionals through navigation logic.
type Capabilities struct {
	ContinuousScroll bool
}

// Normalize downgrades directions the platform cannot present. Webtoon
// requires continuous scroll; without it the book reads as Vertical.
func (d Direction) Normalize(caps Capabilities) Direction {
	if d == DirectionWebtoon && !caps.ContinuousScroll {
		return DirectionVertical
	}
	return d
}

// CanPair reports whether this direction is eligible for dual-page spreads.
// Webtoon strips never pair.
func (d Direction) CanPair() bool {
	return d != DirectionWebtoon
}

// EndSentinel returns the physical index that stands for "past the last
// real page". RTL approaches the end from physical 0, so its sentinel sits
// before the book; everything else ends past the last index. Webtoon has no
// index-based end (end of book is a viewport condition), but the value
// returned here still bounds clamping.
func (d Direction) EndSentinel(pageCount int) int {
	if d == DirectionRTL {
		return RTLEndSentinel
	}
	return pageCount
}

// DisplayIndex maps a physical page index (or the end sentinel) to its slot
// in on-screen traversal order. Display slots run 0..pageCount and the end
// sentinel occupies slot pageCount for every direction, so tabbing forward
// is a display increment toward the sentinel regardless of direction.
//
// LTR and Vertical are the identity. RTL mirrors the book (physical p at
// slot pageCount-1-p, so physical 0 sits at the highest real-page slot) and
// shifts the sentinel, which lives at physical -1, up to slot pageCount.
func (d Direction) DisplayIndex(physical, pageCount int) int {
	if d != DirectionRTL {
		return physical
	}
	if physical == RTLEndSentinel {
		return pageCount
	}
	return pageCount - 1 - physical
}

// PhysicalIndex is the inverse of DisplayIndex.
func (d Direction) PhysicalIndex(display, pageCount int) int {
	if d != DirectionRTL {
		return display
	}
	if display == pageCount {
		return RTLEndSentinel
	}
	return pageCount - 1 - display
}

// NextPhysical advances one physical page toward the end sentinel and clamps
// there. Forward always means "toward the end of the book": increment for
// LTR/Vertical, decrement for RTL. Webtoon clamps at the last real page
// since its end-of-book is detected from the viewport, not an index.
func (d Direction) NextPhysical(current, pageCount int) int {
	switch d {
	case DirectionRTL:
		if current <= RTLEndSentinel {
			return RTLEndSentinel
		}
		return current - 1
	case DirectionWebtoon:
		if current >= pageCount-1 {
			return pageCount - 1
		}
		return current + 1
	default:
		if current >= pageCount {
			return pageCount
		}
		return current + 1
	}
}

// PreviousPhysical retreats one physical page toward physical page 0 and
// clamps at it.
func (d Direction) PreviousPhysical(current, pageCount int) int {
	switch d {
	case DirectionRTL:
		if current >= pageCount-1 {
			return pageCount - 1
		}
		return current + 1
	default:
		if current <= 0 {
			return 0
		}
		return current - 1
	}
}
