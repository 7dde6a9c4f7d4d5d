// Package editor implements the interactive crop box: a drag/resize state
// machine working in display coordinates, and the editor session that ties
// it to a live track and to persisted crop insets.
package editor

import (
	"math"

	"github.com/menta2k/framecrop/pkg/types"
)

// ControllerConfig holds configuration for the box controller
type ControllerConfig struct {
	// MinSize is the smallest width/height a resize may produce, in display units.
	MinSize float64
	Aspect  types.AspectMode
}

// DefaultControllerConfig returns the controller defaults.
func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{
		MinSize: 1,
		Aspect:  types.AspectFree,
	}
}

// DragSession tracks one continuous pointer interaction with the box.
type DragSession struct {
	Handle    Handle
	StartX    float64
	StartY    float64
	StartRect types.DisplayRect
}

// Controller owns the live crop box in display coordinates. It is driven from
// a single UI goroutine and is not safe for concurrent use.
type Controller struct {
	config    ControllerConfig
	container types.Size
	box       types.DisplayRect
	aspect    types.AspectMode
	session   *DragSession
	listeners []func(types.DisplayRect)
}

// NewController creates a controller with default configuration.
func NewController(container types.Size, box types.DisplayRect) *Controller {
	return NewControllerWithConfig(DefaultControllerConfig(), container, box)
}

// NewControllerWithConfig creates a controller with custom configuration.
func NewControllerWithConfig(config ControllerConfig, container types.Size, box types.DisplayRect) *Controller {
	if config.MinSize < 0 {
		config.MinSize = 0
	}
	aspect := config.Aspect
	if !aspect.Valid() {
		aspect = types.AspectFree
	}
	return &Controller{
		config:    config,
		container: container,
		box:       box,
		aspect:    aspect,
	}
}

// Box returns the current crop box.
func (c *Controller) Box() types.DisplayRect { return c.box }

// SetBox replaces the box, e.g. after it was re-derived from insets. Any
// active drag session is discarded.
func (c *Controller) SetBox(r types.DisplayRect) {
	c.session = nil
	c.box = r
	c.emit()
}

// Container returns the size of the editing container.
func (c *Controller) Container() types.Size { return c.container }

// SetContainer updates the container size used for clamping.
func (c *Controller) SetContainer(s types.Size) { c.container = s }

// Aspect returns the current aspect mode.
func (c *Controller) Aspect() types.AspectMode { return c.aspect }

// SetAspect switches the aspect mode. It only affects subsequent resizes.
func (c *Controller) SetAspect(m types.AspectMode) {
	if m.Valid() {
		c.aspect = m
	}
}

// OnChange registers fn to be called with every updated box.
func (c *Controller) OnChange(fn func(types.DisplayRect)) {
	if fn != nil {
		c.listeners = append(c.listeners, fn)
	}
}

// Session returns the active drag session, if any.
func (c *Controller) Session() (DragSession, bool) {
	if c.session == nil {
		return DragSession{}, false
	}
	return *c.session, true
}

// Dragging reports whether a drag session is active.
func (c *Controller) Dragging() bool { return c.session != nil }

// BeginDrag starts a drag session for handle h at pointer (x, y). It does
// nothing and returns false if a session is already active or h is unknown.
func (c *Controller) BeginDrag(h Handle, x, y float64) bool {
	if c.session != nil || !h.Valid() {
		return false
	}
	c.session = &DragSession{
		Handle:    h,
		StartX:    x,
		StartY:    y,
		StartRect: c.box,
	}
	return true
}

// UpdateDrag applies the pointer movement since BeginDrag and returns the
// updated box. Without an active session it returns the current box and false.
func (c *Controller) UpdateDrag(x, y float64) (types.DisplayRect, bool) {
	if c.session == nil {
		return c.box, false
	}
	s := c.session
	rule := handleTable[s.Handle]
	dx, dy := x-s.StartX, y-s.StartY

	candidate := rule.apply(s.StartRect, dx, dy)
	if s.Handle == HandleMove {
		c.box = c.clampMove(candidate)
	} else {
		c.box = c.constrainResize(rule.edges, candidate)
	}
	c.emit()
	return c.box, true
}

// EndDrag ends the active session; the current box becomes the committed state.
func (c *Controller) EndDrag() types.DisplayRect {
	c.session = nil
	return c.box
}

// CancelDrag ends the active session and restores the box it started from.
func (c *Controller) CancelDrag() types.DisplayRect {
	if c.session != nil {
		c.box = c.session.StartRect
		c.session = nil
		c.emit()
	}
	return c.box
}

func (c *Controller) emit() {
	for _, fn := range c.listeners {
		fn(c.box)
	}
}

// clampMove keeps the box inside the container by translating it; the size
// is only reduced when the box is larger than the container.
func (c *Controller) clampMove(r types.DisplayRect) types.DisplayRect {
	if !c.container.Known() {
		return r
	}
	r.Width = math.Min(r.Width, c.container.Width)
	r.Height = math.Min(r.Height, c.container.Height)
	r.X = clamp(r.X, 0, c.container.Width-r.Width)
	r.Y = clamp(r.Y, 0, c.container.Height-r.Height)
	return r
}

// constrainResize applies the minimum size, the square constraint and the
// container bounds. Edges the handle does not drag stay where they were.
func (c *Controller) constrainResize(e edges, r types.DisplayRect) types.DisplayRect {
	r = c.enforceMinSize(e, r)
	if c.aspect == types.AspectSquare {
		r = square(e, r)
	}
	if c.container.Known() {
		r = clampEdges(r, c.container)
		// clamping may shorten one side, so square up again
		if c.aspect == types.AspectSquare {
			r = square(e, r)
		}
	}
	return r
}

func (c *Controller) enforceMinSize(e edges, r types.DisplayRect) types.DisplayRect {
	minSize := c.config.MinSize
	if r.Width < minSize {
		right := r.Right()
		r.Width = minSize
		if e.left {
			r.X = right - minSize
		}
	}
	if r.Height < minSize {
		bottom := r.Bottom()
		r.Height = minSize
		if e.top {
			r.Y = bottom - minSize
		}
	}
	return r
}

// square shrinks r to a square of its shorter side, keeping the edges
// opposite the dragged ones fixed.
func square(e edges, r types.DisplayRect) types.DisplayRect {
	s := math.Min(r.Width, r.Height)
	right, bottom := r.Right(), r.Bottom()
	if e.left {
		r.X = right - s
	}
	if e.top {
		r.Y = bottom - s
	}
	r.Width, r.Height = s, s
	return r
}

// clampEdges moves every edge that lies outside the container onto its
// boundary. Edges already inside are left untouched.
func clampEdges(r types.DisplayRect, container types.Size) types.DisplayRect {
	left := clamp(r.X, 0, container.Width)
	top := clamp(r.Y, 0, container.Height)
	right := clamp(r.Right(), 0, container.Width)
	bottom := clamp(r.Bottom(), 0, container.Height)
	return types.DisplayRect{
		X:      left,
		Y:      top,
		Width:  math.Max(0, right-left),
		Height: math.Max(0, bottom-top),
	}
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
