package schemas

import (
	"context"
	"image"
)

// -- Capability Interfaces --
//
// The core never talks to the screen or the input devices directly. It
// consumes these two capabilities so tests can substitute synthetic frames and
// a recording input device.

// ScreenCapability produces pixels for a region of the screen. The returned
// image's Bounds() are expressed in absolute screen coordinates and equal the
// requested region.
type ScreenCapability interface {
	Capture(ctx context.Context, region Rect) (image.Image, error)
}

// ScrollDirection is the direction of a list scroll.
type ScrollDirection string

const (
	ScrollDown ScrollDirection = "down"
	ScrollUp   ScrollDirection = "up"
)

// ClickStyle selects how a click is performed. Motion characteristics (path
// smoothing, jitter magnitude) are parameters of the input capability itself.
type ClickStyle string

const (
	// ClickPrecise aims at the point with minimal jitter (confirm buttons).
	ClickPrecise ClickStyle = "precise"
	// ClickNatural aims at the point with the configured jitter.
	ClickNatural ClickStyle = "natural"
)

// InputCapability drives the mouse and keyboard with human-like motion.
// Implementations block until the gesture has completed.
type InputCapability interface {
	MoveClick(ctx context.Context, p Point, style ClickStyle) error
	Scroll(ctx context.Context, dir ScrollDirection, amount int) error
	Type(ctx context.Context, text string) error
}
