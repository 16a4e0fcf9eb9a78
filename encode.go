package animcore

import (
	"bytes"
	"context"
	"fmt"
	"image"

	"github.com/rs/zerolog"

	"github.com/loopreel/animcore/internal/gifenc"
	"github.com/loopreel/animcore/internal/planner"
	"github.com/loopreel/animcore/internal/pool"
	"github.com/loopreel/animcore/internal/quantize"
	"github.com/loopreel/animcore/internal/scale"
	"github.com/loopreel/animcore/internal/webpenc/mux"
	"github.com/loopreel/animcore/internal/webpenc/vp8l"
)

// maxDelayMS is the largest delay the planner will emit: the 16-bit
// ceiling on a frame delay, which fits both GIF's 16-bit centisecond
// field and WebP's 24-bit millisecond field.
const maxDelayMS = 65535

// Encode runs the full pipeline — scale, quantize, plan, write — over
// src and returns the finished animation. job scopes progress reporting,
// logging, and cancellation; pass nil to run with a background context
// and no progress sink.
func Encode(src FrameSource, opts Options, job *Job) (EncodedArtifact, error) {
	opts = opts.withDefaults()
	if job == nil {
		job = NewJob(context.Background(), nil, zerolog.Nop())
	}

	scaled, err := collectAndScale(src, opts, job)
	if err != nil {
		return EncodedArtifact{}, err
	}
	if job.cancelled() {
		return EncodedArtifact{}, ErrCancelled
	}
	if len(scaled) == 0 {
		return EncodedArtifact{}, fmt.Errorf("%w: no frames supplied", ErrInvalidFrameBuffer)
	}

	frameCount := len(scaled)
	job.Logger.Debug().Int("frame_count", frameCount).Msg("frames scaled")

	qFrames, err := quantizeFrames(scaled, opts, job)
	if err != nil {
		return EncodedArtifact{}, err
	}
	if job.cancelled() {
		return EncodedArtifact{}, ErrCancelled
	}

	planned := planFrames(scaled, qFrames, opts, job)
	if job.cancelled() {
		return EncodedArtifact{}, ErrCancelled
	}

	canvasW, canvasH := scaled[0].Width, scaled[0].Height

	var data []byte
	switch opts.Format {
	case FormatWebP:
		data, err = writeWebP(qFrames, planned, canvasW, canvasH, opts.Loop, opts.Metadata, job)
	default:
		data, err = writeGIF(qFrames, planned, canvasW, canvasH, opts.Loop, job)
	}
	if err != nil {
		return EncodedArtifact{}, err
	}

	var totalDelay uint64
	for _, p := range planned {
		totalDelay += uint64(p.DelayMS)
	}

	job.emit(ProgressEvent{Stage: StageWrite, FrameIndex: frameCount - 1, FrameCount: frameCount, BytesWritten: len(data)})
	job.Logger.Info().Int("bytes", len(data)).Int("frame_count", frameCount).Msg("encode complete")

	stats := PaletteStats{
		SampledColors: countDistinctColors(scaled),
		PaletteSize:   len(qFrames[0].Palette.Colors),
		Dithered:      opts.resolveDither(),
	}

	return EncodedArtifact{
		Format:       opts.Format,
		Data:         data,
		Width:        scaled[0].Width,
		Height:       scaled[0].Height,
		FrameCount:   frameCount,
		DurationMS:   totalDelay,
		ByteSize:     len(data),
		PaletteStats: stats,
	}, nil
}

// countDistinctColors scans every scaled frame's opaque pixels and counts
// distinct RGB values, for PaletteStats diagnostics only.
func countDistinctColors(scaled []ScaledFrame) int {
	seen := make(map[uint32]struct{})
	for _, s := range scaled {
		for i := 0; i < len(s.Pix); i += 4 {
			if s.Pix[i+3] < 128 {
				continue
			}
			key := uint32(s.Pix[i])<<16 | uint32(s.Pix[i+1])<<8 | uint32(s.Pix[i+2])
			seen[key] = struct{}{}
		}
	}
	return len(seen)
}

// collectAndScale drains src, validating and resampling each frame to
// the output dimensions.
func collectAndScale(src FrameSource, opts Options, job *Job) ([]ScaledFrame, error) {
	target := scale.Target{Width: opts.Width, Height: opts.Height, Mode: scale.ModeFitPreserveAspect}

	var out []ScaledFrame
	var havePrev bool
	var prevTS uint64
	idx := 0

	for {
		if job.cancelled() {
			return nil, ErrCancelled
		}
		f, ok, err := src.Next()
		if err != nil {
			return nil, &FrameSourceError{Err: err}
		}
		if !ok {
			break
		}
		if err := f.validate(); err != nil {
			return nil, err
		}
		if havePrev && f.TimestampMS == prevTS {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateTimestamp, f.TimestampMS)
		}
		prevTS = f.TimestampMS
		havePrev = true

		dstW, dstH, err := scale.Resolve(f.Width, f.Height, target)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDimensions, err)
		}

		nrgba := &image.NRGBA{Pix: f.Pix, Stride: f.Width * 4, Rect: image.Rect(0, 0, f.Width, f.Height)}
		dst := scale.Image(nrgba, dstW, dstH)

		out = append(out, ScaledFrame{Width: dstW, Height: dstH, Pix: dst.Pix, TimestampMS: f.TimestampMS})
		job.emit(ProgressEvent{Stage: StageScale, FrameIndex: idx, FrameCount: -1})
		idx++
	}
	return out, nil
}

func quantizeFrames(scaled []ScaledFrame, opts Options, job *Job) ([]quantize.Frame, error) {
	sources := make([]quantize.Source, len(scaled))
	for i, s := range scaled {
		sources[i] = quantize.Source{Width: s.Width, Height: s.Height, Pix: s.Pix}
	}

	strategy := quantize.StrategyGlobal
	if opts.resolvePaletteStrategy(len(scaled)) == PalettePerFrame {
		strategy = quantize.StrategyPerFrame
	}

	frames, err := quantize.Quantize(sources, opts.Quality.paletteSize(), strategy, opts.resolveDither())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaletteBuildFailed, err)
	}
	for i := range frames {
		job.emit(ProgressEvent{Stage: StageQuantize, FrameIndex: i, FrameCount: len(frames)})
	}
	return frames, nil
}

// planFrames runs the Frame Planner over the quantized sequence,
// tracking palette identity so the planner can detect a local-palette
// boundary. It polls for cancellation after each planned frame and stops
// early when the job is cancelled; the caller then returns ErrCancelled.
func planFrames(scaled []ScaledFrame, qFrames []quantize.Frame, opts Options, job *Job) []planner.Planned {
	ids := assignPaletteIDs(qFrames)

	out := make([]planner.Planned, len(qFrames))
	var prev *planner.Frame
	for i, qf := range qFrames {
		cur := planner.Frame{
			Width:            qf.Width,
			Height:           qf.Height,
			Indices:          qf.Indices,
			TimestampMS:      scaled[i].TimestampMS,
			PaletteID:        ids[i],
			HasTransparent:   qf.Palette.HasTransparent,
			TransparentIndex: 0,
		}
		nextTS := cur.TimestampMS
		if i+1 < len(qFrames) {
			nextTS = scaled[i+1].TimestampMS
		}

		p := planner.Plan(prev, cur, nextTS, uint32(opts.MinDelayMS), maxDelayMS)
		out[i] = p

		curCopy := cur
		prev = &curCopy
		job.emit(ProgressEvent{Stage: StagePlan, FrameIndex: i, FrameCount: len(qFrames)})
		if job.cancelled() {
			return out
		}
	}
	return out
}

// assignPaletteIDs gives consecutive frames with byte-identical palettes
// the same id, so the planner can detect a palette boundary between a
// frame and its predecessor. A palette that recurs after a different one
// gets a new id.
func assignPaletteIDs(frames []quantize.Frame) []int {
	ids := make([]int, len(frames))
	if len(frames) == 0 {
		return ids
	}
	nextID := 0
	for i := 1; i < len(frames); i++ {
		if palettesEqual(frames[i].Palette, frames[i-1].Palette) {
			ids[i] = ids[i-1]
		} else {
			nextID++
			ids[i] = nextID
		}
	}
	return ids
}

func palettesEqual(a, b quantize.Palette) bool {
	if a.HasTransparent != b.HasTransparent || len(a.Colors) != len(b.Colors) {
		return false
	}
	for i := range a.Colors {
		if a.Colors[i] != b.Colors[i] {
			return false
		}
	}
	return true
}

func loopCountValue(l Loop) uint16 {
	if l.Once {
		return 1
	}
	return l.Count
}

func writeGIF(qFrames []quantize.Frame, planned []planner.Planned, width, height int, loop Loop, job *Job) ([]byte, error) {
	frames := make([]gifenc.Frame, len(qFrames))
	for i, qf := range qFrames {
		frames[i] = gifenc.Frame{
			Planned:         planned[i],
			Palette:         qf.Palette,
			UseLocalPalette: i > 0 && !palettesEqual(qf.Palette, qFrames[0].Palette),
		}
	}

	anim := gifenc.Anim{
		Width:         width,
		Height:        height,
		GlobalPalette: qFrames[0].Palette,
		LoopCount:     loopCountValue(loop),
		Frames:        frames,
	}

	var buf bytes.Buffer
	if err := gifenc.Encode(&buf, anim); err != nil {
		return nil, translateGIFErr(err)
	}
	return buf.Bytes(), nil
}

func translateGIFErr(err error) error {
	switch err {
	case gifenc.ErrDimensionOverflow:
		return ErrDimensionOverflow
	case gifenc.ErrPaletteTooLarge:
		return ErrPaletteTooLarge
	default:
		return err
	}
}

func writeWebP(qFrames []quantize.Frame, planned []planner.Planned, width, height int, loop Loop, meta Metadata, job *Job) ([]byte, error) {
	m := mux.NewMuxer()
	m.SetCanvasSize(width, height)
	m.SetLoopCount(int(loopCountValue(loop)))
	if len(meta.ICCProfile) > 0 {
		m.SetICCProfile(meta.ICCProfile)
	}
	if len(meta.EXIF) > 0 {
		m.SetEXIF(meta.EXIF)
	}
	if len(meta.XMP) > 0 {
		m.SetXMP(meta.XMP)
	}

	for i, p := range planned {
		rect := snapRectEven(p.Rect, width, height)

		idxBuf := pool.Get(rect.W * rect.H)
		indices := extractIndicesInto(qFrames[i].Indices, qFrames[i].Width, rect, idxBuf)

		pixBuf := pool.Get(len(indices) * 4)
		pix := expandIndicesToRGBAInto(qFrames[i].Palette, indices, pixBuf)

		argb := rgbaToARGB32(pix)
		data := vp8l.WriteImage(argb, rect.W, rect.H)

		pool.Put(pixBuf)
		pool.Put(idxBuf)

		blend := mux.BlendAlpha
		if rect.W*rect.H == width*height {
			blend = mux.BlendNone
		}
		dispose := mux.DisposeNone
		if p.Disposal == planner.DisposeRestoreBackground {
			dispose = mux.DisposeBackground
		}

		if err := m.AddFrame(data, &mux.FrameOptions{
			Duration:    int(p.DelayMS),
			OffsetX:     rect.X,
			OffsetY:     rect.Y,
			BlendMode:   blend,
			DisposeMode: dispose,
		}); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := m.Assemble(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// snapRectEven widens r so its offsets are even, matching the 2-pixel
// offset granularity ANMF chunks encode; the extra margin pixel is
// clamped to the canvas.
func snapRectEven(r planner.Rect, canvasW, canvasH int) planner.Rect {
	w := r.W + (r.X & 1)
	h := r.H + (r.Y & 1)
	x := r.X &^ 1
	y := r.Y &^ 1
	if x+w > canvasW {
		w = canvasW - x
	}
	if y+h > canvasH {
		h = canvasH - y
	}
	return planner.Rect{X: x, Y: y, W: w, H: h}
}

// extractIndicesInto copies the r sub-rectangle of full (a fullWidth-wide
// index plane) into dst, a pool-backed scratch buffer sized r.W*r.H by the
// caller.
func extractIndicesInto(full []byte, fullWidth int, r planner.Rect, dst []byte) []byte {
	out := dst[:r.W*r.H]
	for y := 0; y < r.H; y++ {
		srcOff := (r.Y+y)*fullWidth + r.X
		copy(out[y*r.W:(y+1)*r.W], full[srcOff:srcOff+r.W])
	}
	return out
}

// expandIndicesToRGBAInto re-expands palette indices to non-premultiplied
// RGBA bytes in dst, a pool-backed scratch buffer sized len(indices)*4 by
// the caller; the reserved transparent index maps to zero alpha.
func expandIndicesToRGBAInto(p quantize.Palette, indices []byte, dst []byte) []byte {
	out := dst[:len(indices)*4]
	for i, idx := range indices {
		off := i * 4
		if p.HasTransparent && idx == 0 {
			out[off], out[off+1], out[off+2], out[off+3] = 0, 0, 0, 0
			continue
		}
		c := p.Colors[idx]
		out[off], out[off+1], out[off+2], out[off+3] = c.R, c.G, c.B, 255
	}
	return out
}

func rgbaToARGB32(pix []byte) []uint32 {
	out := make([]uint32, len(pix)/4)
	for i := range out {
		off := i * 4
		r, g, b, a := pix[off], pix[off+1], pix[off+2], pix[off+3]
		out[i] = uint32(a)<<24 | uint32(r)<<16 | uint32(g)<<8 | uint32(b)
	}
	return out
}
