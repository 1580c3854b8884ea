package stream

// NearBottom is the distance from the bottom, in pixels, within which an
// update keeps the view pinned to the bottom.
const NearBottom = 100

// Overflow is the vertical overflow mode of a Node.
type Overflow int

const (
	OverflowVisible Overflow = iota
	OverflowHidden
	OverflowAuto
	OverflowScroll
)

// Scrollable reports whether the mode lets the user scroll.
func (o Overflow) Scrollable() bool {
	return o == OverflowAuto || o == OverflowScroll
}

// Node is one element in the host's layout tree.
type Node interface {
	// Parent returns the enclosing node, or nil at the root.
	Parent() Node

	// OverflowY returns the node's vertical overflow mode.
	OverflowY() Overflow
}

// ScrollContainer is anything with a vertical scroll position: a scrollable
// Node or the top-level viewport.
type ScrollContainer interface {
	ScrollTop() float64
	ScrollHeight() float64
	ClientHeight() float64
	ScrollTo(top float64)
}

// FindScrollContainer walks up from n, n included, and returns the first node
// that scrolls vertically. It falls back to viewport when none does.
func FindScrollContainer(n Node, viewport ScrollContainer) ScrollContainer {
	for ; n != nil; n = n.Parent() {
		if !n.OverflowY().Scrollable() {
			continue
		}
		if sc, ok := n.(ScrollContainer); ok {
			return sc
		}
	}
	return viewport
}

// IsNearBottom reports whether c is scrolled to within NearBottom pixels of
// its bottom.
func IsNearBottom(c ScrollContainer) bool {
	bottom := c.ScrollHeight() - c.ClientHeight()
	return bottom-c.ScrollTop() <= NearBottom
}

// ScrollToBottom moves c to its bottom.
func ScrollToBottom(c ScrollContainer) {
	bottom := c.ScrollHeight() - c.ClientHeight()
	if bottom < 0 {
		bottom = 0
	}
	c.ScrollTo(bottom)
}

// FollowBottom runs update and then scrolls c to its new bottom if, before
// the update, it was near the bottom. A user who scrolled up stays put.
// A nil c just runs update.
func FollowBottom(c ScrollContainer, update func()) {
	if c == nil {
		update()
		return
	}
	pinned := IsNearBottom(c)
	update()
	if pinned {
		ScrollToBottom(c)
	}
}
