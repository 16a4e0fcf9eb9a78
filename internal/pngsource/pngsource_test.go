package pngsource

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func writePNG(t *testing.T, dir, name string, w, h int, c color.NRGBA) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
	return path
}

func TestDirSynthesizesTimestampsFromFPS(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "0.png", 4, 4, color.NRGBA{255, 0, 0, 255})
	writePNG(t, dir, "1.png", 4, 4, color.NRGBA{0, 255, 0, 255})
	writePNG(t, dir, "2.png", 4, 4, color.NRGBA{0, 0, 255, 255})

	entries, err := Dir(dir, 100)
	if err != nil {
		t.Fatalf("Dir: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("len(entries) = %d, want 3", len(entries))
	}
	want := []uint64{0, 100, 200}
	for i, e := range entries {
		if e.TimestampMS != want[i] {
			t.Errorf("entries[%d].TimestampMS = %d, want %d", i, e.TimestampMS, want[i])
		}
	}
}

func TestDirParsesExplicitTimestampSuffix(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "0_0.png", 2, 2, color.NRGBA{1, 1, 1, 255})
	writePNG(t, dir, "1_333.png", 2, 2, color.NRGBA{2, 2, 2, 255})

	entries, err := Dir(dir, 1000)
	if err != nil {
		t.Fatalf("Dir: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	if entries[0].TimestampMS != 0 || entries[1].TimestampMS != 333 {
		t.Fatalf("got timestamps %d, %d; want 0, 333", entries[0].TimestampMS, entries[1].TimestampMS)
	}
}

func TestDirOrdersByNumericIndexNotLexical(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "2.png", 2, 2, color.NRGBA{1, 1, 1, 255})
	writePNG(t, dir, "10.png", 2, 2, color.NRGBA{2, 2, 2, 255})
	writePNG(t, dir, "1.png", 2, 2, color.NRGBA{3, 3, 3, 255})

	entries, err := Dir(dir, 10)
	if err != nil {
		t.Fatalf("Dir: %v", err)
	}
	wantOrder := []string{"1.png", "2.png", "10.png"}
	for i, e := range entries {
		if filepath.Base(e.Path) != wantOrder[i] {
			t.Errorf("entries[%d] = %s, want %s", i, filepath.Base(e.Path), wantOrder[i])
		}
	}
}

func TestDirSkipsNonPNGFiles(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "0.png", 2, 2, color.NRGBA{1, 1, 1, 255})
	if err := os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatalf("write readme: %v", err)
	}

	entries, err := Dir(dir, 10)
	if err != nil {
		t.Fatalf("Dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
}

func TestSourceNextDecodesAndConvertsToNRGBA(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "0.png", 3, 2, color.NRGBA{10, 20, 30, 255})

	entries, err := Dir(dir, 100)
	if err != nil {
		t.Fatalf("Dir: %v", err)
	}
	src := New(entries)

	f, ok, err := src.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if !ok {
		t.Fatal("Next returned ok=false on first call")
	}
	if f.Width != 3 || f.Height != 2 {
		t.Fatalf("dims = %dx%d, want 3x2", f.Width, f.Height)
	}
	if len(f.Pix) != 4*3*2 {
		t.Fatalf("len(Pix) = %d, want %d", len(f.Pix), 4*3*2)
	}
	if f.Pix[0] != 10 || f.Pix[1] != 20 || f.Pix[2] != 30 || f.Pix[3] != 255 {
		t.Fatalf("Pix[0:4] = %v, want [10 20 30 255]", f.Pix[0:4])
	}

	_, ok, err = src.Next()
	if err != nil {
		t.Fatalf("Next (second call): %v", err)
	}
	if ok {
		t.Fatal("Next returned ok=true after exhausting entries")
	}
}
