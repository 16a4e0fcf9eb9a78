package animcore

// Format selects the output container/bitstream.
type Format int

const (
	FormatGIF Format = iota
	FormatWebP
)

// Quality controls palette size and dithering defaults.
type Quality int

const (
	QualityLow Quality = iota
	QualityMedium
	QualityHigh
)

// paletteSize returns the target palette size for a quality tier, per the
// configuration table.
func (q Quality) paletteSize() int {
	switch q {
	case QualityLow:
		return 128
	case QualityHigh:
		return 256
	default:
		return 192
	}
}

// PaletteStrategy selects how the quantizer builds its color palette.
type PaletteStrategy int

const (
	PaletteAuto PaletteStrategy = iota
	PaletteGlobal
	PalettePerFrame
)

// Dither selects whether Floyd-Steinberg error diffusion is applied.
type Dither int

const (
	DitherAuto Dither = iota
	DitherOn
	DitherOff
)

// Loop selects how many times the animation repeats.
type Loop struct {
	// Count is the number of repeats: 0 means infinite. Ignored when Once
	// is true.
	Count uint16
	Once  bool
}

// LoopInfinite, LoopOnce are the two named Loop presets; LoopN builds an
// explicit repeat count.
func LoopInfinite() Loop { return Loop{Count: 0} }
func LoopOnce() Loop     { return Loop{Once: true} }
func LoopN(n uint16) Loop {
	return Loop{Count: n}
}

// Options configures a single Encode call.
type Options struct {
	Format Format
	Width  int
	Height int

	Quality   Quality
	TargetFPS int
	Loop      Loop

	// MinDelayMS floors the delay assigned to each frame, in the range
	// 0..1000. The zero value is indistinguishable from an explicit 0 and
	// is treated as "unset": withDefaults resolves it to 20ms, the
	// default floor. There is currently no way to configure a real 0ms
	// floor (no minimum) through this field.
	MinDelayMS int

	PaletteStrategy PaletteStrategy
	Dither          Dither

	// Metadata carries optional ICC/EXIF/XMP blocks to echo into a WebP
	// container's metadata chunks. Ignored for GIF output, which has no
	// equivalent chunk types.
	Metadata Metadata
}

// Metadata holds optional source metadata blocks passed through to the
// output container unmodified.
type Metadata struct {
	ICCProfile []byte
	EXIF       []byte
	XMP        []byte
}

// withDefaults fills zero-valued options with the documented defaults.
//
// MinDelayMS == 0 is treated as "unset" rather than "no floor": it
// resolves to the default 20ms floor. A genuine 0ms floor is not
// reachable through this field.
func (o Options) withDefaults() Options {
	if o.MinDelayMS == 0 {
		o.MinDelayMS = 20
	}
	return o
}

// resolveDither resolves the auto dithering default: off for low quality,
// on otherwise.
func (o Options) resolveDither() bool {
	switch o.Dither {
	case DitherOn:
		return true
	case DitherOff:
		return false
	default:
		return o.Quality != QualityLow
	}
}

// resolvePaletteStrategy resolves the auto palette strategy: global when
// frameCount <= 24, per-frame otherwise.
func (o Options) resolvePaletteStrategy(frameCount int) PaletteStrategy {
	switch o.PaletteStrategy {
	case PaletteGlobal, PalettePerFrame:
		return o.PaletteStrategy
	default:
		if frameCount <= 24 {
			return PaletteGlobal
		}
		return PalettePerFrame
	}
}
