package animcore

// PaletteStats records informational, non-authoritative detail about the
// palette the quantizer built, attached to EncodedArtifact for diagnostics.
// It never influences control flow or the encoded bytes.
type PaletteStats struct {
	// SampledColors is the number of distinct opaque colors seen across
	// every pixel of the scaled frames before quantization.
	SampledColors int
	// PaletteSize is the number of colors in the built palette, including
	// the reserved transparent slot when present.
	PaletteSize int
	// Dithered reports whether Floyd-Steinberg diffusion was applied.
	Dithered bool
}

// EncodedArtifact is the byte-exact output of a completed Encode call.
type EncodedArtifact struct {
	Format       Format
	Data         []byte
	Width        int
	Height       int
	FrameCount   int
	DurationMS   uint64
	ByteSize     int
	PaletteStats PaletteStats
}
