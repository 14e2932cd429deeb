// Package palette maps 8 bit Quake colour indices to real colours.
//
// QAsset
//
// Copyright (C) Thomas Habets <thomas@habets.se> 2015
// https://github.com/ThomasHabets/qasset
//
//   This program is free software; you can redistribute it and/or modify
//   it under the terms of the GNU General Public License as published by
//   the Free Software Foundation; either version 2 of the License, or
//   (at your option) any later version.
//
//   This program is distributed in the hope that it will be useful,
//   but WITHOUT ANY WARRANTY; without even the implied warranty of
//   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
//   GNU General Public License for more details.
//
//   You should have received a copy of the GNU General Public License along
//   with this program; if not, write to the Free Software Foundation, Inc.,
//   51 Franklin Street, Fifth Floor, Boston, MA 02110-1301 USA.
//
// The palette itself normally lives in gfx/palette.lmp in pak0.pak, as 256
// RGB triplets with no header.
package palette

import (
	"image"
	"image/color"

	"github.com/ThomasHabets/qasset/pkg/qerr"
)

const (
	// NumColors is the number of entries in a Quake palette.
	NumColors = 256

	// FileSize is the size of palette.lmp.
	FileSize = NumColors * 3

	// Name is where the palette is found in the game data.
	Name = "gfx/palette.lmp"
)

type Color struct {
	R, G, B uint8
}

type Palette struct {
	colors [NumColors]Color
}

// Parse loads a palette from the contents of palette.lmp.
func Parse(b []byte) (*Palette, error) {
	if len(b) != FileSize {
		return nil, qerr.New(qerr.Corrupt, "palette.Parse", "palette is %d bytes, want %d", len(b), FileSize)
	}
	p := &Palette{}
	for i := range p.colors {
		p.colors[i] = Color{R: b[i*3], G: b[i*3+1], B: b[i*3+2]}
	}
	return p, nil
}

// FromColors builds a palette from a list of at most 256 colors. Missing
// entries are black.
func FromColors(cs []Color) (*Palette, error) {
	if len(cs) > NumColors {
		return nil, qerr.New(qerr.Corrupt, "palette.FromColors", "%d colors, max %d", len(cs), NumColors)
	}
	p := &Palette{}
	copy(p.colors[:], cs)
	return p, nil
}

// Colors returns a copy of the palette entries.
func (p *Palette) Colors() []Color {
	ret := make([]Color, NumColors)
	copy(ret, p.colors[:])
	return ret
}

func (p *Palette) At(i uint8) Color {
	return p.colors[i]
}

// ApplyPalette converts indices into interleaved B,G,R,A bytes, with alpha
// always 255.
func (p *Palette) ApplyPalette(indices []byte) []byte {
	// Every byte is a valid index into a full palette.
	ret, _ := ApplyPalette(indices, p.colors[:])
	return ret
}

// ApplyPalette converts indices into interleaved B,G,R,A bytes using colors.
// Indices not in colors give an OutOfRangePaletteIndex error.
func ApplyPalette(indices []byte, colors []Color) ([]byte, error) {
	ret := make([]byte, 0, 4*len(indices))
	for n, idx := range indices {
		if int(idx) >= len(colors) {
			return nil, qerr.New(qerr.OutOfRangePaletteIndex, "palette.ApplyPalette", "pixel %d has index %d, palette has %d colors", n, idx, len(colors))
		}
		c := colors[idx]
		ret = append(ret, c.B, c.G, c.R, 255)
	}
	return ret, nil
}

// ColorPalette returns the palette as an image/color palette.
func (p *Palette) ColorPalette() color.Palette {
	ret := make(color.Palette, NumColors)
	for i, c := range p.colors {
		ret[i] = color.RGBA{R: c.R, G: c.G, B: c.B, A: 255}
	}
	return ret
}

// Image wraps w*h indices in a paletted image.
func (p *Palette) Image(w, h int, indices []byte) (*image.Paletted, error) {
	if w < 0 || h < 0 || len(indices) != w*h {
		return nil, qerr.New(qerr.Corrupt, "palette.Image", "%d bytes of pixel data for %dx%d image", len(indices), w, h)
	}
	img := image.NewPaletted(image.Rect(0, 0, w, h), p.ColorPalette())
	copy(img.Pix, indices)
	return img, nil
}
