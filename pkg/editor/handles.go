package editor

import (
	"fmt"

	"github.com/menta2k/framecrop/pkg/types"
)

// Handle identifies what a drag session manipulates: the whole box or one of
// its eight resize handles.
type Handle int

const (
	HandleMove Handle = iota
	HandleTopLeft
	HandleTopRight
	HandleBottomLeft
	HandleBottomRight
	HandleTop
	HandleBottom
	HandleLeft
	HandleRight

	handleCount
)

// edges records which sides of the box a handle drags. Sides not listed stay
// anchored while the handle moves.
type edges struct {
	left, top, right, bottom bool
}

type handleRule struct {
	name  string
	edges edges
	apply func(start types.DisplayRect, dx, dy float64) types.DisplayRect
}

var handleTable = [handleCount]handleRule{
	HandleMove: {
		name:  "move",
		edges: edges{true, true, true, true},
		apply: func(r types.DisplayRect, dx, dy float64) types.DisplayRect {
			r.X += dx
			r.Y += dy
			return r
		},
	},
	HandleTopLeft: {
		name:  "resize-top-left",
		edges: edges{left: true, top: true},
		apply: func(r types.DisplayRect, dx, dy float64) types.DisplayRect {
			r.X += dx
			r.Y += dy
			r.Width -= dx
			r.Height -= dy
			return r
		},
	},
	HandleTopRight: {
		name:  "resize-top-right",
		edges: edges{top: true, right: true},
		apply: func(r types.DisplayRect, dx, dy float64) types.DisplayRect {
			r.Y += dy
			r.Width += dx
			r.Height -= dy
			return r
		},
	},
	HandleBottomLeft: {
		name:  "resize-bottom-left",
		edges: edges{left: true, bottom: true},
		apply: func(r types.DisplayRect, dx, dy float64) types.DisplayRect {
			r.X += dx
			r.Width -= dx
			r.Height += dy
			return r
		},
	},
	HandleBottomRight: {
		name:  "resize-bottom-right",
		edges: edges{right: true, bottom: true},
		apply: func(r types.DisplayRect, dx, dy float64) types.DisplayRect {
			r.Width += dx
			r.Height += dy
			return r
		},
	},
	HandleTop: {
		name:  "resize-top",
		edges: edges{top: true},
		apply: func(r types.DisplayRect, _, dy float64) types.DisplayRect {
			r.Y += dy
			r.Height -= dy
			return r
		},
	},
	HandleBottom: {
		name:  "resize-bottom",
		edges: edges{bottom: true},
		apply: func(r types.DisplayRect, _, dy float64) types.DisplayRect {
			r.Height += dy
			return r
		},
	},
	HandleLeft: {
		name:  "resize-left",
		edges: edges{left: true},
		apply: func(r types.DisplayRect, dx, _ float64) types.DisplayRect {
			r.X += dx
			r.Width -= dx
			return r
		},
	},
	HandleRight: {
		name:  "resize-right",
		edges: edges{right: true},
		apply: func(r types.DisplayRect, dx, _ float64) types.DisplayRect {
			r.Width += dx
			return r
		},
	},
}

// Handles returns every handle in declaration order.
func Handles() []Handle {
	out := make([]Handle, 0, handleCount)
	for h := HandleMove; h < handleCount; h++ {
		out = append(out, h)
	}
	return out
}

// Valid reports whether h is a known handle.
func (h Handle) Valid() bool {
	return h >= HandleMove && h < handleCount
}

// IsResize reports whether h changes the box size rather than moving it.
func (h Handle) IsResize() bool {
	return h.Valid() && h != HandleMove
}

func (h Handle) String() string {
	if !h.Valid() {
		return fmt.Sprintf("handle(%d)", int(h))
	}
	return handleTable[h].name
}

// ParseHandle resolves a handle from its name ("move", "resize-top-left", ...).
// The short names used by on-screen handles ("tl", "tm", "mr", ...) are accepted too.
func ParseHandle(name string) (Handle, error) {
	if h, ok := shortNames[name]; ok {
		return h, nil
	}
	for h := HandleMove; h < handleCount; h++ {
		if handleTable[h].name == name {
			return h, nil
		}
	}
	return 0, fmt.Errorf("unknown drag handle: %q", name)
}

var shortNames = map[string]Handle{
	"tl": HandleTopLeft,
	"tr": HandleTopRight,
	"bl": HandleBottomLeft,
	"br": HandleBottomRight,
	"tm": HandleTop,
	"bm": HandleBottom,
	"ml": HandleLeft,
	"mr": HandleRight,
}
