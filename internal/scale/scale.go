// Package scale resamples RGBA frames to an output size, preserving
// aspect ratio and legibility under heavy downscaling.
package scale

import (
	"fmt"
	"image"
	"image/draw"

	xdraw "golang.org/x/image/draw"
)

// Mode selects how target dimensions are resolved against a frame's
// native aspect ratio.
type Mode int

const (
	ModeExact Mode = iota
	ModeFitPreserveAspect
)

// Target describes the requested output dimensions and resize mode.
type Target struct {
	Width, Height int
	Mode          Mode
}

// ErrInvalidDimensions is returned when a target's width or height is not
// a positive integer.
type ErrInvalidDimensions struct {
	Width, Height int
}

func (e *ErrInvalidDimensions) Error() string {
	return fmt.Sprintf("scale: invalid target dimensions %dx%d", e.Width, e.Height)
}

// Resolve computes the concrete, even, >=2 output dimensions for a source
// image of size srcW x srcH against a target.
func Resolve(srcW, srcH int, t Target) (int, int, error) {
	if t.Width < 1 || t.Height < 1 {
		return 0, 0, &ErrInvalidDimensions{t.Width, t.Height}
	}
	w, h := t.Width, t.Height
	if t.Mode == ModeFitPreserveAspect && srcW > 0 && srcH > 0 {
		srcRatio := float64(srcW) / float64(srcH)
		boxRatio := float64(t.Width) / float64(t.Height)
		if srcRatio > boxRatio {
			w = t.Width
			h = int(float64(t.Width)/srcRatio + 0.5)
		} else {
			h = t.Height
			w = int(float64(t.Height)*srcRatio + 0.5)
		}
	}
	return snapEven(w), snapEven(h), nil
}

// snapEven rounds v to the nearest even integer >= 2.
func snapEven(v int) int {
	if v < 2 {
		return 2
	}
	if v%2 != 0 {
		v++
	}
	return v
}

// Image resamples src (an image.NRGBA) to dstW x dstH. Downscale ratios
// greater than 2x are performed in successive 2x area-average halving
// steps (preserving legibility of text overlays) before a final bilinear
// pass; upscales and ratios <= 2x use a single bilinear pass.
func Image(src *image.NRGBA, dstW, dstH int) *image.NRGBA {
	cur := src
	for isDownscale(cur.Bounds().Dx(), cur.Bounds().Dy(), dstW, dstH) &&
		ratio(cur.Bounds().Dx(), dstW) > 2 && ratio(cur.Bounds().Dy(), dstH) > 2 {
		cur = halveAreaAverage(cur)
	}

	if cur.Bounds().Dx() == dstW && cur.Bounds().Dy() == dstH {
		return cur
	}

	dst := image.NewNRGBA(image.Rect(0, 0, dstW, dstH))
	xdraw.BiLinear.Scale(dst, dst.Bounds(), cur, cur.Bounds(), draw.Src, nil)
	return dst
}

func isDownscale(srcW, srcH, dstW, dstH int) bool {
	return srcW > dstW && srcH > dstH
}

func ratio(src, dst int) float64 {
	if dst == 0 {
		return 0
	}
	return float64(src) / float64(dst)
}

// halveAreaAverage reduces an image to half its size (rounding down, with
// a minimum of 1), averaging each 2x2 block of source pixels.
func halveAreaAverage(src *image.NRGBA) *image.NRGBA {
	b := src.Bounds()
	sw, sh := b.Dx(), b.Dy()
	dw, dh := sw/2, sh/2
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}
	dst := image.NewNRGBA(image.Rect(0, 0, dw, dh))
	for y := 0; y < dh; y++ {
		sy0 := b.Min.Y + y*2
		sy1 := sy0 + 1
		if sy1 >= b.Max.Y {
			sy1 = sy0
		}
		for x := 0; x < dw; x++ {
			sx0 := b.Min.X + x*2
			sx1 := sx0 + 1
			if sx1 >= b.Max.X {
				sx1 = sx0
			}
			var r, g, bl, a uint32
			for _, sy := range [2]int{sy0, sy1} {
				for _, sx := range [2]int{sx0, sx1} {
					off := (sy-b.Min.Y)*src.Stride + (sx-b.Min.X)*4
					r += uint32(src.Pix[off])
					g += uint32(src.Pix[off+1])
					bl += uint32(src.Pix[off+2])
					a += uint32(src.Pix[off+3])
				}
			}
			doff := y*dst.Stride + x*4
			dst.Pix[doff] = uint8(r / 4)
			dst.Pix[doff+1] = uint8(g / 4)
			dst.Pix[doff+2] = uint8(bl / 4)
			dst.Pix[doff+3] = uint8(a / 4)
		}
	}
	return dst
}
