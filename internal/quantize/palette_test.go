package quantize

import "testing"

func TestBuildPaletteReducesToMaxColors(t *testing.T) {
	samples := make([]Color, 0, 256)
	for r := 0; r < 16; r++ {
		for g := 0; g < 16; g++ {
			samples = append(samples, Color{R: uint8(r * 16), G: uint8(g * 16), B: 0})
		}
	}
	p, err := BuildPalette(samples, 16)
	if err != nil {
		t.Fatalf("BuildPalette: %v", err)
	}
	if len(p.Colors) > 16 {
		t.Fatalf("got %d colors, want <= 16", len(p.Colors))
	}
	if len(p.Colors) < 2 {
		t.Fatalf("got %d colors, want more than 1 for varied input", len(p.Colors))
	}
}

func TestBuildPaletteSingleColorPadsToTwo(t *testing.T) {
	// A single distinct color (e.g. a solid-fill frame) must still
	// produce a palette satisfying the [2,256] size invariant, padded
	// with black.
	samples := []Color{{R: 10, G: 20, B: 30}}
	p, err := BuildPalette(samples, 256)
	if err != nil {
		t.Fatalf("BuildPalette: %v", err)
	}
	if len(p.Colors) != 2 {
		t.Fatalf("got %d colors, want 2 (padded)", len(p.Colors))
	}
	if p.Colors[0] != (Color{R: 10, G: 20, B: 30}) {
		t.Fatalf("Colors[0] = %+v, want the sampled color", p.Colors[0])
	}
	if p.Colors[1] != (Color{}) {
		t.Fatalf("Colors[1] = %+v, want black padding", p.Colors[1])
	}
}

func TestBuildPaletteEmptyPadsWithBlack(t *testing.T) {
	// No samples at all (e.g. a fully transparent frame) must not fail;
	// it pads to a minimal 2-entry black palette instead.
	p, err := BuildPalette(nil, 16)
	if err != nil {
		t.Fatalf("BuildPalette: %v", err)
	}
	if len(p.Colors) != 2 {
		t.Fatalf("got %d colors, want 2 (padded)", len(p.Colors))
	}
	for i, c := range p.Colors {
		if c != (Color{}) {
			t.Fatalf("Colors[%d] = %+v, want black", i, c)
		}
	}
}

func TestBuildPaletteNeverExceedsDistinctColors(t *testing.T) {
	samples := []Color{{R: 1, G: 1, B: 1}, {R: 1, G: 1, B: 1}, {R: 2, G: 2, B: 2}}
	p, err := BuildPalette(samples, 256)
	if err != nil {
		t.Fatalf("BuildPalette: %v", err)
	}
	if len(p.Colors) != 2 {
		t.Fatalf("got %d colors, want 2 distinct", len(p.Colors))
	}
}
