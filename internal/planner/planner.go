// Package planner computes per-frame delay, dirty rectangle, and
// disposal for an indexed animation frame sequence.
package planner

import "math"

// Disposal describes what happens to the canvas after a frame is
// displayed, before the next frame is composited.
type Disposal int

const (
	// DisposeKeep leaves the canvas as rendered; the next frame blends
	// over it.
	DisposeKeep Disposal = iota
	// DisposeRestoreBackground clears the frame's rectangle to the
	// background (transparent) color before the next frame is drawn.
	DisposeRestoreBackground
	// DisposeRestorePrevious restores the canvas to its state before
	// this frame was drawn, used to prevent palette bleed across a
	// local-palette boundary.
	DisposeRestorePrevious
)

// Rect is an axis-aligned pixel rectangle within the canvas.
type Rect struct {
	X, Y, W, H int
}

// Frame is one quantized frame ready for planning: palette indices over
// the full canvas, its timestamp, and an identifier distinguishing
// which palette generation it was quantized against (two frames sharing
// a palette must report equal PaletteID).
type Frame struct {
	Width, Height    int
	Indices          []byte
	TimestampMS      uint64
	PaletteID        int
	HasTransparent   bool
	TransparentIndex int
}

// Planned is the result of planning one frame: its delay, the
// rectangle of the canvas it touches, how the canvas should be disposed
// afterward, and the (possibly transparency-carried) indices for that
// rectangle.
type Planned struct {
	Rect        Rect
	Disposal    Disposal
	DelayMS     uint32
	RawDeltaMS  uint32 // nextTS - curTS, before the min/max delay floor
	Indices     []byte // Rect.W * Rect.H indices, row-major
	FullOverlay bool   // true when Rect covers the entire canvas
}

// changedFractionThreshold is the fraction of changed pixels above which
// the dirty rectangle is widened to the full canvas and disposal becomes
// restore-background.
const changedFractionThreshold = 0.70

// Plan computes the Planned result for cur, given the immediately
// preceding frame (nil for the first frame) and the next frame's
// timestamp (used to derive delay). minDelayMS and maxDelayMS bound the
// computed delay.
func Plan(prev *Frame, cur Frame, nextTS uint64, minDelayMS, maxDelayMS uint32) Planned {
	delay := computeDelay(cur.TimestampMS, nextTS, minDelayMS, maxDelayMS)
	raw := rawDelta(cur.TimestampMS, nextTS)

	if prev == nil {
		return Planned{
			Rect:        Rect{0, 0, cur.Width, cur.Height},
			Disposal:    DisposeRestoreBackground,
			DelayMS:     delay,
			RawDeltaMS:  raw,
			Indices:     append([]byte(nil), cur.Indices...),
			FullOverlay: true,
		}
	}

	rect, changedFraction := dirtyRect(prev, cur)
	full := cur.Width * cur.Height

	disposal := DisposeKeep
	if changedFraction > changedFractionThreshold {
		rect = Rect{0, 0, cur.Width, cur.Height}
		disposal = DisposeRestoreBackground
	}
	if cur.PaletteID != prev.PaletteID {
		disposal = DisposeRestorePrevious
	}

	indices := extractRect(cur, rect)
	carryTransparency(prev, cur, rect, indices)

	return Planned{
		Rect:        rect,
		Disposal:    disposal,
		DelayMS:     delay,
		RawDeltaMS:  raw,
		Indices:     indices,
		FullOverlay: rect.W*rect.H == full,
	}
}

func computeDelay(curTS, nextTS uint64, minDelayMS, maxDelayMS uint32) uint32 {
	d := rawDelta(curTS, nextTS)
	if d < minDelayMS {
		d = minDelayMS
	}
	if d > maxDelayMS {
		d = maxDelayMS
	}
	return d
}

// rawDelta is the unfloored, unclamped gap between cur and next's
// timestamps, before minDelayMS/maxDelayMS are applied. Format writers
// that must detect a too-small source interval regardless of the
// configured delay floor (the GIF browser clamp) use this instead of
// the floored DelayMS.
func rawDelta(curTS, nextTS uint64) uint32 {
	if nextTS <= curTS {
		return 0
	}
	d := nextTS - curTS
	if d > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(d)
}

// dirtyRect returns the smallest rectangle covering every pixel where
// cur differs from prev, and the fraction of the canvas that changed.
func dirtyRect(prev *Frame, cur Frame) (Rect, float64) {
	w, h := cur.Width, cur.Height
	minX, minY, maxX, maxY := w, h, -1, -1
	changed := 0

	for y := 0; y < h; y++ {
		rowStart := y * w
		for x := 0; x < w; x++ {
			i := rowStart + x
			if prev.Indices[i] != cur.Indices[i] {
				changed++
				if x < minX {
					minX = x
				}
				if x > maxX {
					maxX = x
				}
				if y < minY {
					minY = y
				}
				if y > maxY {
					maxY = y
				}
			}
		}
	}

	fraction := float64(changed) / float64(w*h)
	if maxX < minX || maxY < minY {
		// identical frames: keep a minimal 1x1 rect at the origin.
		return Rect{0, 0, 1, 1}, 0
	}
	return Rect{X: minX, Y: minY, W: maxX - minX + 1, H: maxY - minY + 1}, fraction
}

func extractRect(f Frame, r Rect) []byte {
	out := make([]byte, r.W*r.H)
	for y := 0; y < r.H; y++ {
		srcOff := (r.Y+y)*f.Width + r.X
		dstOff := y * r.W
		copy(out[dstOff:dstOff+r.W], f.Indices[srcOff:srcOff+r.W])
	}
	return out
}

// carryTransparency rewrites pixels in indices (already extracted for
// rect) to cur's transparent index wherever the source pixel equals the
// previous frame's pixel at the same canvas position, improving run-length
// compressibility. A no-op when cur's palette has no transparent slot.
func carryTransparency(prev *Frame, cur Frame, r Rect, indices []byte) {
	if !cur.HasTransparent {
		return
	}
	for y := 0; y < r.H; y++ {
		for x := 0; x < r.W; x++ {
			cx, cy := r.X+x, r.Y+y
			ci := cy*cur.Width + cx
			if cur.Indices[ci] == prev.Indices[ci] {
				indices[y*r.W+x] = byte(cur.TransparentIndex)
			}
		}
	}
}
