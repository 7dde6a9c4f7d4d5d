package editor

import (
	"testing"

	"github.com/menta2k/framecrop/pkg/types"
)

func TestHandleTable(t *testing.T) {
	start := types.DisplayRect{X: 100, Y: 100, Width: 200, Height: 100}
	dx, dy := 10.0, 20.0

	tests := []struct {
		handle Handle
		want   types.DisplayRect
	}{
		{HandleMove, types.DisplayRect{X: 110, Y: 120, Width: 200, Height: 100}},
		{HandleTopLeft, types.DisplayRect{X: 110, Y: 120, Width: 190, Height: 80}},
		{HandleTopRight, types.DisplayRect{X: 100, Y: 120, Width: 210, Height: 80}},
		{HandleBottomLeft, types.DisplayRect{X: 110, Y: 100, Width: 190, Height: 120}},
		{HandleBottomRight, types.DisplayRect{X: 100, Y: 100, Width: 210, Height: 120}},
		{HandleTop, types.DisplayRect{X: 100, Y: 120, Width: 200, Height: 80}},
		{HandleBottom, types.DisplayRect{X: 100, Y: 100, Width: 200, Height: 120}},
		{HandleLeft, types.DisplayRect{X: 110, Y: 100, Width: 190, Height: 100}},
		{HandleRight, types.DisplayRect{X: 100, Y: 100, Width: 210, Height: 100}},
	}

	if len(tests) != int(handleCount) {
		t.Fatalf("Expected a case for every handle, have %d of %d", len(tests), handleCount)
	}

	for _, tt := range tests {
		t.Run(tt.handle.String(), func(t *testing.T) {
			got := handleTable[tt.handle].apply(start, dx, dy)
			if got != tt.want {
				t.Errorf("Expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

// Every handle must move exactly the edges it declares.
func TestHandleEdgesMatchApply(t *testing.T) {
	start := types.DisplayRect{X: 50, Y: 50, Width: 100, Height: 100}
	for _, h := range Handles() {
		rule := handleTable[h]
		got := rule.apply(start, 7, 7)

		moved := edges{
			left:   got.X != start.X,
			top:    got.Y != start.Y,
			right:  got.Right() != start.Right(),
			bottom: got.Bottom() != start.Bottom(),
		}
		if moved != rule.edges {
			t.Errorf("%s: declared edges %+v, apply moved %+v", h, rule.edges, moved)
		}
	}
}

func TestParseHandle(t *testing.T) {
	for _, h := range Handles() {
		got, err := ParseHandle(h.String())
		if err != nil {
			t.Fatalf("ParseHandle(%q) failed: %v", h.String(), err)
		}
		if got != h {
			t.Errorf("ParseHandle(%q) = %v", h.String(), got)
		}
	}

	short := map[string]Handle{"tl": HandleTopLeft, "br": HandleBottomRight, "tm": HandleTop, "mr": HandleRight}
	for name, want := range short {
		if got, err := ParseHandle(name); err != nil || got != want {
			t.Errorf("ParseHandle(%q) = %v, %v", name, got, err)
		}
	}

	if _, err := ParseHandle("diagonal"); err == nil {
		t.Error("Expected error for unknown handle")
	}
}

func TestHandleValid(t *testing.T) {
	if Handle(-1).Valid() || handleCount.Valid() {
		t.Error("Expected out-of-range handles to be invalid")
	}
	if HandleMove.IsResize() {
		t.Error("move is not a resize")
	}
	if !HandleLeft.IsResize() {
		t.Error("left is a resize")
	}
	if Handle(42).String() != "handle(42)" {
		t.Errorf("unexpected name %q", Handle(42).String())
	}
}
