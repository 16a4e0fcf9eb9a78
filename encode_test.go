package animcore

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

// sliceSource replays a fixed list of RgbaFrames, in order.
type sliceSource struct {
	frames []RgbaFrame
	pos    int
}

func (s *sliceSource) Next() (RgbaFrame, bool, error) {
	if s.pos >= len(s.frames) {
		return RgbaFrame{}, false, nil
	}
	f := s.frames[s.pos]
	s.pos++
	return f, true, nil
}

func solidRGBA(w, h int, r, g, b, a byte, ts uint64) RgbaFrame {
	pix := make([]byte, w*h*4)
	for i := 0; i < w*h; i++ {
		off := i * 4
		pix[off], pix[off+1], pix[off+2], pix[off+3] = r, g, b, a
	}
	return RgbaFrame{Width: w, Height: h, Pix: pix, TimestampMS: ts}
}

func TestEncodeSingleSolidFrameGIF(t *testing.T) {
	src := &sliceSource{frames: []RgbaFrame{solidRGBA(8, 8, 200, 0, 0, 255, 0)}}
	opts := Options{Format: FormatGIF, Width: 8, Height: 8}

	out, err := Encode(src, opts, nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if out.FrameCount != 1 {
		t.Fatalf("FrameCount = %d, want 1", out.FrameCount)
	}
	if !bytes.HasPrefix(out.Data, []byte("GIF89a")) {
		t.Fatalf("missing GIF89a header")
	}
	if out.Data[len(out.Data)-1] != 0x3B {
		t.Fatalf("missing GIF trailer")
	}
	if !bytes.Contains(out.Data, []byte("NETSCAPE2.0")) {
		t.Fatalf("missing infinite-loop Netscape extension")
	}
}

func TestEncodeTwoFrameDeltaGIF(t *testing.T) {
	frames := []RgbaFrame{
		solidRGBA(8, 8, 255, 0, 0, 255, 0),
		solidRGBA(8, 8, 0, 255, 0, 255, 100),
	}
	src := &sliceSource{frames: frames}
	opts := Options{Format: FormatGIF, Width: 8, Height: 8}

	out, err := Encode(src, opts, nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if out.FrameCount != 2 {
		t.Fatalf("FrameCount = %d, want 2", out.FrameCount)
	}
	if out.DurationMS == 0 {
		t.Fatalf("DurationMS = 0, want > 0")
	}
	// Two image descriptors (0x2C) should appear in the stream.
	if bytes.Count(out.Data, []byte{0x2C}) != 2 {
		t.Fatalf("expected 2 image descriptors, got %d", bytes.Count(out.Data, []byte{0x2C}))
	}
}

func TestEncodeWebPAnimationMagicBytes(t *testing.T) {
	frames := []RgbaFrame{
		solidRGBA(8, 8, 255, 0, 0, 255, 0),
		solidRGBA(8, 8, 0, 0, 255, 255, 100),
	}
	src := &sliceSource{frames: frames}
	opts := Options{Format: FormatWebP, Width: 8, Height: 8}

	out, err := Encode(src, opts, nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.HasPrefix(out.Data, []byte("RIFF")) {
		t.Fatalf("missing RIFF header")
	}
	if !bytes.Contains(out.Data[:16], []byte("WEBP")) {
		t.Fatalf("missing WEBP fourCC")
	}
	if !bytes.Contains(out.Data, []byte("ANIM")) {
		t.Fatalf("missing ANIM chunk for a multi-frame animation")
	}
}

func TestEncodeBrowserDelayClampSurvivesMinDelayFloor(t *testing.T) {
	// Four frames 10ms apart with a 20ms min-delay floor configured: the
	// planner floors DelayMS to 20ms, but the raw 10ms source gap must
	// still trip the GIF writer's sub-20ms browser clamp, so every
	// emitted delay is 0x000A (100ms), never 0x0002 (20ms).
	frames := []RgbaFrame{
		solidRGBA(4, 4, 10, 10, 10, 255, 0),
		solidRGBA(4, 4, 20, 20, 20, 255, 10),
		solidRGBA(4, 4, 30, 30, 30, 255, 20),
		solidRGBA(4, 4, 40, 40, 40, 255, 30),
	}
	src := &sliceSource{frames: frames}
	opts := Options{Format: FormatGIF, Width: 4, Height: 4, MinDelayMS: 20}

	out, err := Encode(src, opts, nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if out.FrameCount != 4 {
		t.Fatalf("FrameCount = %d, want 4", out.FrameCount)
	}

	delays := gceDelays(t, out.Data)
	if len(delays) != 4 {
		t.Fatalf("found %d graphic control extensions, want 4", len(delays))
	}
	for i, d := range delays {
		if d != 0x000A {
			t.Fatalf("frame %d delay = %#04x, want 0x000A (100ms)", i, d)
		}
	}
}

// gceDelays scans raw GIF bytes for Graphic Control Extension blocks
// (0x21, 0xF9, 0x04) and returns each one's little-endian delay field.
func gceDelays(t *testing.T, data []byte) []uint16 {
	t.Helper()
	var delays []uint16
	for i := 0; i+7 < len(data); i++ {
		if data[i] == 0x21 && data[i+1] == 0xF9 && data[i+2] == 0x04 {
			delays = append(delays, uint16(data[i+4])|uint16(data[i+5])<<8)
			i += 7
		}
	}
	return delays
}

func TestEncodeCancellation(t *testing.T) {
	frames := []RgbaFrame{
		solidRGBA(4, 4, 1, 2, 3, 255, 0),
		solidRGBA(4, 4, 4, 5, 6, 255, 50),
	}
	src := &sliceSource{frames: frames}
	opts := Options{Format: FormatGIF, Width: 4, Height: 4}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	job := NewJob(ctx, nil, zerolog.Nop())

	_, err := Encode(src, opts, job)
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("got %v, want ErrCancelled", err)
	}
}

func TestEncodeRejectsEmptySource(t *testing.T) {
	src := &sliceSource{}
	opts := Options{Format: FormatGIF, Width: 4, Height: 4}

	_, err := Encode(src, opts, nil)
	if !errors.Is(err, ErrInvalidFrameBuffer) {
		t.Fatalf("got %v, want ErrInvalidFrameBuffer", err)
	}
}

func TestEncodeLoggingIsSideEffectOnly(t *testing.T) {
	frames := []RgbaFrame{
		solidRGBA(8, 8, 255, 0, 0, 255, 0),
		solidRGBA(8, 8, 0, 255, 0, 255, 40),
	}
	opts := Options{Format: FormatGIF, Width: 8, Height: 8}

	quiet, err := Encode(&sliceSource{frames: frames}, opts, nil)
	if err != nil {
		t.Fatalf("Encode (quiet): %v", err)
	}

	var logged int
	var logBuf bytes.Buffer
	loud := NewJob(context.Background(), ProgressFunc(func(ProgressEvent) { logged++ }), zerolog.New(&logBuf))
	verbose, err := Encode(&sliceSource{frames: frames}, opts, loud)
	if err != nil {
		t.Fatalf("Encode (verbose): %v", err)
	}

	if !bytes.Equal(quiet.Data, verbose.Data) {
		t.Fatal("logging and progress reporting changed the encoded bytes")
	}
	if logged == 0 {
		t.Fatal("expected progress events from the verbose job")
	}
}

func TestEncodeReportsPaletteStats(t *testing.T) {
	frames := []RgbaFrame{
		solidRGBA(8, 8, 255, 0, 0, 255, 0),
		solidRGBA(8, 8, 0, 255, 0, 255, 40),
	}
	out, err := Encode(&sliceSource{frames: frames}, Options{Format: FormatGIF, Width: 8, Height: 8}, nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if out.PaletteStats.SampledColors == 0 {
		t.Fatal("SampledColors = 0, want > 0")
	}
	if out.PaletteStats.PaletteSize == 0 {
		t.Fatal("PaletteSize = 0, want > 0")
	}
}

func TestEncodeProgressEventsEmittedInOrder(t *testing.T) {
	frames := []RgbaFrame{
		solidRGBA(4, 4, 1, 2, 3, 255, 0),
		solidRGBA(4, 4, 4, 5, 6, 255, 50),
	}
	src := &sliceSource{frames: frames}
	opts := Options{Format: FormatGIF, Width: 4, Height: 4}

	var stages []Stage
	job := NewJob(context.Background(), ProgressFunc(func(e ProgressEvent) {
		stages = append(stages, e.Stage)
	}), zerolog.Nop())

	if _, err := Encode(src, opts, job); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(stages) == 0 {
		t.Fatal("expected at least one progress event")
	}
	if stages[len(stages)-1] != StageWrite {
		t.Fatalf("last stage = %v, want StageWrite", stages[len(stages)-1])
	}
}
