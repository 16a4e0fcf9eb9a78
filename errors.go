package animcore

import "errors"

// Sentinel errors returned by Encode, checked with errors.Is and wrapped
// with fmt.Errorf("%w", ...) for caller context.
var (
	// ErrInvalidDimensions is returned when a frame's width or height is
	// outside [1, 8192], or a requested output width/height is not a
	// positive integer (odd values are rounded up to even, not rejected).
	ErrInvalidDimensions = errors.New("animcore: invalid dimensions")

	// ErrInvalidFrameBuffer is returned when a frame's pixel buffer length
	// does not equal 4*width*height.
	ErrInvalidFrameBuffer = errors.New("animcore: invalid frame buffer")

	// ErrDuplicateTimestamp is returned when two consecutive frames share
	// the same timestamp.
	ErrDuplicateTimestamp = errors.New("animcore: duplicate frame timestamp")

	// ErrPaletteBuildFailed is returned when quantization cannot produce a
	// usable palette.
	ErrPaletteBuildFailed = errors.New("animcore: palette build failed")

	// ErrPaletteTooLarge is returned when a palette exceeds 256 entries.
	ErrPaletteTooLarge = errors.New("animcore: palette too large")

	// ErrDimensionOverflow is returned when a dimension exceeds the
	// format's addressable range.
	ErrDimensionOverflow = errors.New("animcore: dimension overflow")

	// ErrFrameCountOverflow is returned when the frame count exceeds the
	// format's addressable range.
	ErrFrameCountOverflow = errors.New("animcore: frame count overflow")

	// ErrCancelled is returned when the job's context was cancelled before
	// encoding completed. No partial artifact is produced.
	ErrCancelled = errors.New("animcore: encode cancelled")
)

// FrameSourceError wraps a failure reported by a FrameSource while it was
// producing frames.
type FrameSourceError struct {
	Err error
}

func (e *FrameSourceError) Error() string { return "animcore: frame source failed: " + e.Err.Error() }

func (e *FrameSourceError) Unwrap() error { return e.Err }
