package scale

import (
	"image"
	"testing"
)

func TestResolveExact(t *testing.T) {
	w, h, err := Resolve(640, 480, Target{Width: 100, Height: 51, Mode: ModeExact})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if w != 100 || h != 52 {
		t.Fatalf("got %dx%d, want 100x52 (odd height snapped up)", w, h)
	}
}

func TestResolveFitPreserveAspect(t *testing.T) {
	w, h, err := Resolve(1280, 720, Target{Width: 640, Height: 640, Mode: ModeFitPreserveAspect})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if w != 640 {
		t.Fatalf("want width 640, got %d", w)
	}
	if h < 354 || h > 362 {
		t.Fatalf("expected height near 360 for 16:9 fit, got %d", h)
	}
}

func TestResolveInvalid(t *testing.T) {
	if _, _, err := Resolve(10, 10, Target{Width: 0, Height: 10}); err == nil {
		t.Fatal("expected error for zero width")
	}
}

func TestImageDownscaleExactSize(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 800, 600))
	for i := range src.Pix {
		src.Pix[i] = 200
	}
	dst := Image(src, 100, 75)
	if dst.Bounds().Dx() != 100 || dst.Bounds().Dy() != 75 {
		t.Fatalf("got %v, want 100x75", dst.Bounds())
	}
}

func TestImageUpscale(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for i := 0; i < len(src.Pix); i += 4 {
		src.Pix[i], src.Pix[i+1], src.Pix[i+2], src.Pix[i+3] = 10, 20, 30, 255
	}
	dst := Image(src, 16, 16)
	if dst.Bounds().Dx() != 16 || dst.Bounds().Dy() != 16 {
		t.Fatalf("got %v, want 16x16", dst.Bounds())
	}
}

func TestHalveAreaAverageUniform(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for i := range src.Pix {
		src.Pix[i] = 64
	}
	half := halveAreaAverage(src)
	if half.Bounds().Dx() != 4 || half.Bounds().Dy() != 4 {
		t.Fatalf("got %v, want 4x4", half.Bounds())
	}
	for _, v := range half.Pix {
		if v != 64 {
			t.Fatalf("uniform halving changed value: got %d, want 64", v)
		}
	}
}
