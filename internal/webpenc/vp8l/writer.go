package vp8l

import (
	"github.com/loopreel/animcore/internal/bitio"
)

// WriteImage encodes pix (tightly-packed, row-major ARGB32 pixels, one
// uint32 per pixel in 0xAARRGGBB order) as a literal-only VP8L bitstream
// and returns the encoded bytes, including the VP8L signature and header.
//
// Every pixel is written as a literal through four per-channel Huffman
// trees (green, red, blue, alpha). The length alphabet a full VP8L
// encoder would use for backward references shares the green tree with
// zero counts, and the distance alphabet is a single-symbol placeholder
// tree, since this writer never emits a backward reference.
func WriteImage(pix []uint32, width, height int) []byte {
	bw := bitio.NewWriter(width*height + 64)

	// VP8L signature byte.
	bw.WriteBits(0x2f, 8)

	hasAlpha := pixelsHaveAlpha(pix)

	// Header: width-1 (14 bits), height-1 (14 bits), alpha-used (1 bit),
	// version (3 bits).
	bw.WriteBits(uint32(width-1), 14)
	bw.WriteBits(uint32(height-1), 14)
	if hasAlpha {
		bw.WriteBits(1, 1)
	} else {
		bw.WriteBits(0, 1)
	}
	bw.WriteBits(0, 3) // version 0

	// No transforms: a single 0 bit terminates the (empty) transform chain.
	bw.WriteBits(0, 1)

	// No color cache: a single 0 bit for the color-cache flag.
	bw.WriteBits(0, 1)
	// A single Huffman code group for the whole image (no meta-Huffman
	// image): a single 0 bit for the top-level meta-prefix flag.
	bw.WriteBits(0, 1)

	trees := writeHuffmanTrees(bw, pix)
	writePixels(bw, pix, trees)

	return bw.Finish()
}

func pixelsHaveAlpha(pix []uint32) bool {
	for _, p := range pix {
		if p>>24 != 0xff {
			return true
		}
	}
	return false
}

// writeHuffmanTrees builds and writes the five per-meta-code Huffman
// trees: green (which also carries the unused length alphabet), red,
// blue, alpha, and the unused distance tree.
func writeHuffmanTrees(bw *bitio.Writer, pix []uint32) perImageTrees {
	var histGreen, histRed, histBlue, histAlpha [256 + 24]uint32 // +24 unused length codes
	for _, p := range pix {
		a := uint8(p >> 24)
		r := uint8(p >> 16)
		g := uint8(p >> 8)
		b := uint8(p)
		histGreen[g]++
		histRed[r]++
		histBlue[b]++
		histAlpha[a]++
	}

	greenTree := createHuffmanTree(histGreen[:], maxAllowedCodeLength)
	redTree := createHuffmanTree(histRed[:256], maxAllowedCodeLength)
	blueTree := createHuffmanTree(histBlue[:256], maxAllowedCodeLength)
	alphaTree := createHuffmanTree(histAlpha[:256], maxAllowedCodeLength)

	// Trivial single-symbol placeholder tree for the length/distance
	// alphabets, which this literal-only writer never indexes into.
	trivialHist := []uint32{1}
	distTree := createHuffmanTree(trivialHist, maxAllowedCodeLength)

	storeHuffmanCode(bw, greenTree)
	storeHuffmanCode(bw, redTree)
	storeHuffmanCode(bw, blueTree)
	storeHuffmanCode(bw, alphaTree)
	storeHuffmanCode(bw, distTree)

	// A decoder reads no bits for a symbol of a single-symbol code, so
	// such trees must emit zero-length codes for every pixel.
	for _, t := range []*huffmanTreeCode{greenTree, redTree, blueTree, alphaTree} {
		clearHuffmanTreeIfOnlyOneSymbol(t)
	}

	return perImageTrees{green: greenTree, red: redTree, blue: blueTree, alpha: alphaTree}
}

type perImageTrees struct {
	green, red, blue, alpha *huffmanTreeCode
}

func writePixels(bw *bitio.Writer, pix []uint32, trees perImageTrees) {
	g, r, b, a := trees.green, trees.red, trees.blue, trees.alpha
	for _, p := range pix {
		av := uint8(p >> 24)
		rv := uint8(p >> 16)
		gv := uint8(p >> 8)
		bv := uint8(p)

		bw.WriteBits(uint32(g.codes[gv]), int(g.codeLengths[gv]))
		bw.WriteBits(uint32(r.codes[rv]), int(r.codeLengths[rv]))
		bw.WriteBits(uint32(b.codes[bv]), int(b.codeLengths[bv]))
		bw.WriteBits(uint32(a.codes[av]), int(a.codeLengths[av]))
	}
}
