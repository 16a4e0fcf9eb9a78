// Package pngsource reads a directory of numbered PNG frames as a
// sequence of RGBA frames, for command-line use and tests. Callers wrap
// Source to satisfy animcore.FrameSource.
package pngsource

import (
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Entry is one source frame on disk: its path and display timestamp.
type Entry struct {
	Path        string
	TimestampMS uint64
}

// Dir reads a directory of PNG files named "<index>.png" or
// "<index>_<timestamp_ms>.png" and returns entries in ascending index
// order. When no timestamp suffix is present, frames are assigned
// timestamps at fpsMS intervals starting from 0.
func Dir(dir string, fpsMS uint64) ([]Entry, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("pngsource: reading %s: %w", dir, err)
	}

	type indexed struct {
		idx   int
		ts    uint64
		hasTS bool
		path  string
	}
	var files []indexed
	for _, e := range ents {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".png") {
			continue
		}
		base := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		idxStr, tsStr, hasTS := strings.Cut(base, "_")
		idx, err := strconv.Atoi(idxStr)
		if err != nil {
			continue
		}
		item := indexed{idx: idx, path: filepath.Join(dir, e.Name())}
		if hasTS {
			ts, err := strconv.ParseUint(tsStr, 10, 64)
			if err == nil {
				item.ts = ts
				item.hasTS = true
			}
		}
		files = append(files, item)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].idx < files[j].idx })

	out := make([]Entry, len(files))
	for i, f := range files {
		ts := f.ts
		if !f.hasTS {
			ts = uint64(i) * fpsMS
		}
		out[i] = Entry{Path: f.path, TimestampMS: ts}
	}
	return out, nil
}

// Source yields frames over a fixed list of Entry, decoding and
// NRGBA-converting each PNG lazily on Next. Its Next has the shape of
// animcore.FrameSource's but returns this package's RgbaFrame, so it does
// not implement that interface directly.
type Source struct {
	entries []Entry
	pos     int
}

// New returns a Source iterating entries in order.
func New(entries []Entry) *Source {
	return &Source{entries: entries}
}

// Next decodes the next PNG file and returns it as an RGBA frame. It
// returns ok=false once every entry has been consumed.
func (s *Source) Next() (RgbaFrame, bool, error) {
	if s.pos >= len(s.entries) {
		return RgbaFrame{}, false, nil
	}
	e := s.entries[s.pos]
	s.pos++

	f, err := os.Open(e.Path)
	if err != nil {
		return RgbaFrame{}, false, fmt.Errorf("pngsource: opening %s: %w", e.Path, err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return RgbaFrame{}, false, fmt.Errorf("pngsource: decoding %s: %w", e.Path, err)
	}

	b := img.Bounds()
	nrgba := image.NewNRGBA(b)
	draw.Draw(nrgba, b, img, b.Min, draw.Src)

	return RgbaFrame{
		Width:       b.Dx(),
		Height:      b.Dy(),
		Pix:         nrgba.Pix,
		TimestampMS: e.TimestampMS,
	}, true, nil
}

// RgbaFrame mirrors animcore.RgbaFrame's shape; pngsource has no
// dependency on the root package, so callers convert between the two
// with a plain struct literal.
type RgbaFrame struct {
	Width, Height int
	Pix           []byte
	TimestampMS   uint64
}
