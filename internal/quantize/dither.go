package quantize

// errDiffusion carries the accumulated quantization error for one pixel
// across the three color channels.
type errDiffusion struct {
	r, g, b float32
}

// ditherMap maps an RGBA buffer (stride w*4) to palette indices using
// Floyd-Steinberg error diffusion. alpha values below 128 map to index 0
// without contributing to the diffused error. tree resolves the nearest
// opaque palette entry; when hasTransparent, opaque entries occupy
// indices 1..N so every opaque index is offset by one.
func ditherMap(pix []byte, w, h int, tree *kdTree, transparentIndex int, hasTransparent bool) []byte {
	out := make([]byte, w*h)
	errs := make([]errDiffusion, w*h)
	offset := 0
	if hasTransparent {
		offset = 1
	}

	at := func(x, y int) *errDiffusion { return &errs[y*w+x] }

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			off := (y*w + x) * 4
			a := pix[off+3]
			if hasTransparent && a < 128 {
				out[y*w+x] = byte(transparentIndex)
				continue
			}

			e := at(x, y)
			r := clamp255(float32(pix[off]) + e.r)
			g := clamp255(float32(pix[off+1]) + e.g)
			b := clamp255(float32(pix[off+2]) + e.b)

			idx := tree.nearest(Color{R: r, G: g, B: b})
			out[y*w+x] = byte(idx + offset)

			chosen := tree.colorAt(idx)
			errR := float32(r) - float32(chosen.R)
			errG := float32(g) - float32(chosen.G)
			errB := float32(b) - float32(chosen.B)

			diffuse(errs, w, h, x+1, y, errR, errG, errB, 7.0/16.0)
			diffuse(errs, w, h, x-1, y+1, errR, errG, errB, 3.0/16.0)
			diffuse(errs, w, h, x, y+1, errR, errG, errB, 5.0/16.0)
			diffuse(errs, w, h, x+1, y+1, errR, errG, errB, 1.0/16.0)
		}
	}
	return out
}

// nearestMap maps an RGBA buffer to palette indices with plain nearest-
// color lookup and no dithering. See ditherMap for the index-offset
// convention when hasTransparent is set.
func nearestMap(pix []byte, w, h int, tree *kdTree, transparentIndex int, hasTransparent bool) []byte {
	out := make([]byte, w*h)
	offset := 0
	if hasTransparent {
		offset = 1
	}
	for i := 0; i < w*h; i++ {
		off := i * 4
		if hasTransparent && pix[off+3] < 128 {
			out[i] = byte(transparentIndex)
			continue
		}
		idx := tree.nearest(Color{R: pix[off], G: pix[off+1], B: pix[off+2]})
		out[i] = byte(idx + offset)
	}
	return out
}

func diffuse(errs []errDiffusion, w, h, x, y int, r, g, b, factor float32) {
	if x < 0 || x >= w || y < 0 || y >= h {
		return
	}
	e := &errs[y*w+x]
	e.r += r * factor
	e.g += g * factor
	e.b += b * factor
}

func clamp255(v float32) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}
