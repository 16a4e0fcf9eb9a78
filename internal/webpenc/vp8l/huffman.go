// Package vp8l implements a literal-only VP8L lossless bitstream writer.
//
// This is a deliberately-scoped subset of the VP8L image format: every
// pixel is written as a literal ARGB symbol through canonical Huffman
// trees, with no backward references, no color cache, and no predictor /
// cross-color / subtract-green transforms. A conforming VP8L decoder must
// support literal-only streams, so the output is a valid bitstream; it
// simply forgoes the LZ77-style compression pass a full encoder attempts.
package vp8l

import (
	"container/heap"
	"sort"

	"github.com/loopreel/animcore/internal/bitio"
)

// Per-pixel Huffman tree indices. Distance and length codes are never
// used by this literal-only writer, but the bitstream format still
// requires them: the length alphabet shares the green tree, and the
// distance alphabet gets its own placeholder tree.
const (
	treeGreen = iota
	treeRed
	treeBlue
	treeAlpha
	treeDist
	numTrees
)

const (
	maxAllowedCodeLength = 15
	codeLengthCodes      = 19
	codeLengthRepeatCode = 16
)

// codeLengthCodeOrder is the order in which code-length codes are
// transmitted in the VP8L bitstream.
var codeLengthCodeOrder = [codeLengthCodes]int{
	17, 18, 0, 1, 2, 3, 4, 5, 16, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15,
}

var codeLengthExtraBits = [3]uint8{2, 3, 7}

// huffmanTreeToken is a single code-length RLE token: a literal code
// length (0..15) or a repeat instruction (16, 17, 18).
type huffmanTreeToken struct {
	code      uint8
	extraBits uint8
}

// huffmanTreeCode holds the canonical code length and bit-reversed
// codeword for every symbol in an alphabet.
type huffmanTreeCode struct {
	numSymbols  int
	codeLengths []uint8
	codes       []uint16
}

type huffmanTreeNode struct {
	totalCount uint32
	value      int // symbol index for leaves, -1 for internal nodes
	left       int
	right      int
}

type nodeHeap struct {
	pool    []huffmanTreeNode
	indices []int
}

func (h *nodeHeap) Len() int { return len(h.indices) }

func (h *nodeHeap) Less(i, j int) bool {
	a, b := h.pool[h.indices[i]], h.pool[h.indices[j]]
	if a.totalCount != b.totalCount {
		return a.totalCount < b.totalCount
	}
	return h.indices[i] < h.indices[j]
}

func (h *nodeHeap) Swap(i, j int) { h.indices[i], h.indices[j] = h.indices[j], h.indices[i] }

func (h *nodeHeap) Push(x any) { h.indices = append(h.indices, x.(int)) }

func (h *nodeHeap) Pop() any {
	old := h.indices
	n := len(old)
	idx := old[n-1]
	h.indices = old[:n-1]
	return idx
}

// createHuffmanTree builds canonical Huffman codes from a symbol
// histogram. codeLengthLimit caps the maximum code length.
func createHuffmanTree(histogram []uint32, codeLengthLimit int) *huffmanTreeCode {
	numSymbols := len(histogram)
	tree := &huffmanTreeCode{
		numSymbols:  numSymbols,
		codeLengths: make([]uint8, numSymbols),
		codes:       make([]uint16, numSymbols),
	}

	var nonZero []int
	for i, c := range histogram {
		if c > 0 {
			nonZero = append(nonZero, i)
		}
	}

	switch len(nonZero) {
	case 0:
		return tree
	case 1:
		tree.codeLengths[nonZero[0]] = 1
		generateCanonicalCodes(tree)
		return tree
	case 2:
		tree.codeLengths[nonZero[0]] = 1
		tree.codeLengths[nonZero[1]] = 1
		generateCanonicalCodes(tree)
		return tree
	}

	buildTreeAndExtractLengths(histogram, numSymbols, codeLengthLimit, tree.codeLengths)
	generateCanonicalCodes(tree)
	return tree
}

// buildTreeAndExtractLengths constructs the Huffman tree from frequencies
// and writes the resulting code lengths into codeLengths. If any code
// length exceeds the limit, it doubles the minimum leaf count and rebuilds.
func buildTreeAndExtractLengths(histogram []uint32, numSymbols, limit int, codeLengths []uint8) {
	treeSize := 0
	for i := 0; i < numSymbols; i++ {
		if histogram[i] != 0 {
			treeSize++
		}
	}
	if treeSize == 0 {
		return
	}

	for countMin := uint32(1); ; countMin *= 2 {
		for i := range codeLengths {
			codeLengths[i] = 0
		}

		maxNodes := 2*numSymbols + 1
		h := &nodeHeap{pool: make([]huffmanTreeNode, 0, maxNodes)}
		for sym := 0; sym < numSymbols; sym++ {
			if histogram[sym] != 0 {
				count := histogram[sym]
				if count < countMin {
					count = countMin
				}
				idx := len(h.pool)
				h.pool = append(h.pool, huffmanTreeNode{totalCount: count, value: sym, left: -1, right: -1})
				h.indices = append(h.indices, idx)
			}
		}

		if len(h.indices) == 1 {
			codeLengths[h.pool[h.indices[0]].value] = 1
			return
		}

		heap.Init(h)
		for h.Len() > 1 {
			leftIdx := heap.Pop(h).(int)
			rightIdx := heap.Pop(h).(int)
			parentIdx := len(h.pool)
			h.pool = append(h.pool, huffmanTreeNode{
				totalCount: h.pool[leftIdx].totalCount + h.pool[rightIdx].totalCount,
				value:      -1,
				left:       leftIdx,
				right:      rightIdx,
			})
			heap.Push(h, parentIdx)
		}

		rootIdx := h.indices[0]
		assignCodeLengths(h.pool, rootIdx, 0, codeLengths)

		maxDepth := 0
		for _, cl := range codeLengths {
			if int(cl) > maxDepth {
				maxDepth = int(cl)
			}
		}
		if maxDepth <= limit {
			return
		}
	}
}

func assignCodeLengths(pool []huffmanTreeNode, nodeIdx, depth int, codeLengths []uint8) {
	node := &pool[nodeIdx]
	if node.value >= 0 {
		codeLengths[node.value] = uint8(depth)
		return
	}
	if node.left >= 0 {
		assignCodeLengths(pool, node.left, depth+1, codeLengths)
	}
	if node.right >= 0 {
		assignCodeLengths(pool, node.right, depth+1, codeLengths)
	}
}

// generateCanonicalCodes computes bit-reversed canonical codes from the
// code lengths stored in tree.codeLengths.
func generateCanonicalCodes(tree *huffmanTreeCode) {
	n := tree.numSymbols
	maxLen := 0
	for _, cl := range tree.codeLengths {
		if int(cl) > maxLen {
			maxLen = int(cl)
		}
	}
	if maxLen == 0 {
		return
	}

	type symLen struct {
		symbol int
		length uint8
	}
	symbols := make([]symLen, 0, n)
	for i := 0; i < n; i++ {
		if tree.codeLengths[i] > 0 {
			symbols = append(symbols, symLen{i, tree.codeLengths[i]})
		}
	}
	sort.SliceStable(symbols, func(i, j int) bool {
		if symbols[i].length != symbols[j].length {
			return symbols[i].length < symbols[j].length
		}
		return symbols[i].symbol < symbols[j].symbol
	})

	code := uint32(0)
	prevLen := uint8(0)
	for _, s := range symbols {
		if s.length > prevLen {
			code <<= s.length - prevLen
			prevLen = s.length
		}
		tree.codes[s.symbol] = reverseBits(code, int(s.length))
		code++
	}
}

func reverseBits(v uint32, nBits int) uint16 {
	var result uint32
	for i := 0; i < nBits; i++ {
		result = (result << 1) | (v & 1)
		v >>= 1
	}
	return uint16(result)
}

// buildCodeLengthTokens encodes a code-length array into RLE tokens using
// the VP8L code-length scheme: 0..15 literal, 16 repeat-previous (2 extra
// bits), 17 repeat-zero short (3 extra bits), 18 repeat-zero long (7
// extra bits).
func buildCodeLengthTokens(codeLengths []uint8) []huffmanTreeToken {
	n := len(codeLengths)
	var tokens []huffmanTreeToken

	// prevValue starts at 8, matching libwebp, so a leading run of code
	// length 8 can use repeat-previous instead of a literal.
	prevValue := uint8(8)

	i := 0
	for i < n {
		value := codeLengths[i]
		k := i + 1
		for k < n && codeLengths[k] == value {
			k++
		}
		runs := k - i
		i = k

		if value == 0 {
			tokens = codeRepeatedZeros(tokens, runs)
		} else {
			tokens = codeRepeatedValues(tokens, runs, value, prevValue)
			prevValue = value
		}
	}
	return tokens
}

func codeRepeatedZeros(tokens []huffmanTreeToken, repetitions int) []huffmanTreeToken {
	for repetitions >= 1 {
		switch {
		case repetitions < 3:
			for i := 0; i < repetitions; i++ {
				tokens = append(tokens, huffmanTreeToken{code: 0})
			}
			return tokens
		case repetitions < 11:
			tokens = append(tokens, huffmanTreeToken{code: 17, extraBits: uint8(repetitions - 3)})
			return tokens
		case repetitions < 139:
			tokens = append(tokens, huffmanTreeToken{code: 18, extraBits: uint8(repetitions - 11)})
			return tokens
		default:
			tokens = append(tokens, huffmanTreeToken{code: 18, extraBits: 0x7f})
			repetitions -= 138
		}
	}
	return tokens
}

func codeRepeatedValues(tokens []huffmanTreeToken, repetitions int, value, prevValue uint8) []huffmanTreeToken {
	if value != prevValue {
		tokens = append(tokens, huffmanTreeToken{code: value})
		repetitions--
	}
	for repetitions >= 1 {
		switch {
		case repetitions < 3:
			for i := 0; i < repetitions; i++ {
				tokens = append(tokens, huffmanTreeToken{code: value})
			}
			return tokens
		case repetitions < 7:
			tokens = append(tokens, huffmanTreeToken{code: 16, extraBits: uint8(repetitions - 3)})
			return tokens
		default:
			tokens = append(tokens, huffmanTreeToken{code: 16, extraBits: 3})
			repetitions -= 6
		}
	}
	return tokens
}

// storeHuffmanCode writes a complete Huffman code to the bitstream, using
// the simple 1-or-2-symbol encoding when possible and the full
// code-length-tree encoding otherwise.
func storeHuffmanCode(bw *bitio.Writer, tree *huffmanTreeCode) {
	const kMaxSymbol = 256

	var uniqueSymbols []int
	for i := 0; i < tree.numSymbols; i++ {
		if tree.codeLengths[i] > 0 {
			uniqueSymbols = append(uniqueSymbols, i)
		}
	}

	if len(uniqueSymbols) == 0 {
		storeSimpleHuffmanCode(bw, uniqueSymbols)
		return
	}

	if len(uniqueSymbols) <= 2 {
		allFit := true
		for _, s := range uniqueSymbols {
			if s >= kMaxSymbol {
				allFit = false
				break
			}
		}
		if allFit {
			storeSimpleHuffmanCode(bw, uniqueSymbols)
			return
		}
	}

	storeFullHuffmanCode(bw, tree)
}

func storeSimpleHuffmanCode(bw *bitio.Writer, symbols []int) {
	bw.WriteBits(1, 1) // is_simple

	if len(symbols) == 0 {
		bw.WriteBits(0, 1)
		bw.WriteBits(0, 1)
		bw.WriteBits(0, 1)
		return
	}

	if len(symbols) == 1 {
		bw.WriteBits(0, 1)
		sym := symbols[0]
		if sym < 2 {
			bw.WriteBits(0, 1)
			bw.WriteBits(uint32(sym), 1)
		} else {
			bw.WriteBits(1, 1)
			bw.WriteBits(uint32(sym), 8)
		}
		return
	}

	bw.WriteBits(1, 1) // num_symbols - 1 = 1
	sym0, sym1 := symbols[0], symbols[1]
	if sym0 > sym1 {
		sym0, sym1 = sym1, sym0
	}
	if sym0 <= 1 {
		bw.WriteBits(0, 1)
		bw.WriteBits(uint32(sym0), 1)
	} else {
		bw.WriteBits(1, 1)
		bw.WriteBits(uint32(sym0), 8)
	}
	bw.WriteBits(uint32(sym1), 8)
}

// clearHuffmanTreeIfOnlyOneSymbol zeroes out code lengths when at most one
// symbol has a non-zero length, after the code has been stored: a decoder
// reads zero bits for a symbol of a single-symbol code, so writing the
// symbol must emit zero bits too.
func clearHuffmanTreeIfOnlyOneSymbol(tree *huffmanTreeCode) {
	count := 0
	for _, cl := range tree.codeLengths {
		if cl != 0 {
			count++
			if count > 1 {
				return
			}
		}
	}
	for i := range tree.codeLengths {
		tree.codeLengths[i] = 0
		tree.codes[i] = 0
	}
}

func storeFullHuffmanCode(bw *bitio.Writer, tree *huffmanTreeCode) {
	bw.WriteBits(0, 1) // is_simple = 0

	tokens := buildCodeLengthTokens(tree.codeLengths)
	numTokens := len(tokens)

	var tokenHistogram [codeLengthCodes]uint32
	for _, tok := range tokens {
		tokenHistogram[tok.code]++
	}

	codeLengthTree := createHuffmanTree(tokenHistogram[:], 7)

	// Code-length tree header: trimmed count + 3-bit code lengths.
	numCodes := 4
	for i := codeLengthCodes - 1; i >= 4; i-- {
		if codeLengthTree.codeLengths[codeLengthCodeOrder[i]] != 0 {
			numCodes = i + 1
			break
		}
	}
	bw.WriteBits(uint32(numCodes-4), 4)
	for i := 0; i < numCodes; i++ {
		bw.WriteBits(uint32(codeLengthTree.codeLengths[codeLengthCodeOrder[i]]), 3)
	}

	clearHuffmanTreeIfOnlyOneSymbol(codeLengthTree)

	trailingZeroBits := 0
	trimmedLength := numTokens
	for i := numTokens - 1; i >= 0; i-- {
		ix := tokens[i].code
		if ix == 0 || ix == 17 || ix == 18 {
			trimmedLength--
			trailingZeroBits += int(codeLengthTree.codeLengths[ix])
			if ix == 17 {
				trailingZeroBits += 3
			} else if ix == 18 {
				trailingZeroBits += 7
			}
		} else {
			break
		}
	}

	writeTrimmedLength := trimmedLength > 1 && trailingZeroBits > 12
	length := numTokens
	if writeTrimmedLength {
		length = trimmedLength
	}

	if writeTrimmedLength {
		bw.WriteBits(1, 1)
		if trimmedLength == 2 {
			bw.WriteBits(0, 5)
		} else {
			nbits := bitsLog2Floor(trimmedLength - 2)
			nbitpairs := nbits/2 + 1
			bw.WriteBits(uint32(nbitpairs-1), 3)
			bw.WriteBits(uint32(trimmedLength-2), nbitpairs*2)
		}
	} else {
		bw.WriteBits(0, 1)
	}

	for i := 0; i < length; i++ {
		tok := tokens[i]
		code := tok.code
		bw.WriteBits(uint32(codeLengthTree.codes[code]), int(codeLengthTree.codeLengths[code]))
		if code >= codeLengthRepeatCode {
			extraIdx := code - codeLengthRepeatCode
			bw.WriteBits(uint32(tok.extraBits), int(codeLengthExtraBits[extraIdx]))
		}
	}
}

func bitsLog2Floor(n int) int {
	log := 0
	for n > 1 {
		log++
		n >>= 1
	}
	return log
}
