package bsp

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

import (
	"fmt"
	"strings"

	"github.com/ThomasHabets/qasset/pkg/cursor"
	"github.com/ThomasHabets/qasset/pkg/qerr"
)

const (
	skyPrefix      = "sky"
	flipbookPrefix = "+"
)

// A Texture is the full size mip level of a miptex.
//
// Textures are stored four times in the file. One in original size, and
// three precalculated downsamples. Only the first is kept.
type Texture struct {
	Name          string
	Width, Height uint32 // Multiples of 8.
	Mip0          []byte // Width*Height palette indices, row major.
}

// IsSky returns true for the sky textures. These are drawn by a separate
// pass and never become triangles.
func (t *Texture) IsSky() bool {
	return strings.HasPrefix(t.Name, skyPrefix)
}

// SplitSky splits a sky texture into its left (front) and right (back)
// halves. Each half is width/2 wide, except the back that gets the extra
// column if width is odd.
func (t *Texture) SplitSky() (front, back []byte) {
	w := int(t.Width)
	half := w / 2
	front = make([]byte, 0, half*int(t.Height))
	back = make([]byte, 0, (w-half)*int(t.Height))
	for y := 0; y < int(t.Height); y++ {
		row := t.Mip0[y*w : (y+1)*w]
		front = append(front, row[:half]...)
		back = append(back, row[half:]...)
	}
	return front, back
}

// flipbookFrame returns the frame number and base name of an animated
// texture name such as "+0slip".
func flipbookFrame(name string) (int, string, bool) {
	if len(name) < 3 || !strings.HasPrefix(name, flipbookPrefix) {
		return 0, "", false
	}
	ch := name[1]
	if ch < '0' || ch > '9' {
		return 0, "", false
	}
	return int(ch - '0'), name[2:], true
}

// A Flipbook is an animated texture, made of the textures "+0name",
// "+1name" and so on.
type Flipbook struct {
	Name   string // Name of the first frame.
	Frames []*Texture
}

// Width returns the width of a frame.
func (f *Flipbook) Width() uint32 {
	return f.Frames[0].Width
}

// Height returns the height of a frame.
func (f *Flipbook) Height() uint32 {
	return f.Frames[0].Height
}

// Atlas returns all frames stacked vertically, first frame at the top.
func (f *Flipbook) Atlas() []byte {
	var ret []byte
	for _, t := range f.Frames {
		ret = append(ret, t.Mip0...)
	}
	return ret
}

// Flipbooks finds the animated textures. A flipbook starts at a "+0" texture
// and continues with "+1", "+2" and so on for as long as there are frames of
// the same size.
func Flipbooks(textures []*Texture) []*Flipbook {
	byName := make(map[string]*Texture)
	for _, t := range textures {
		if t != nil {
			byName[t.Name] = t
		}
	}
	var ret []*Flipbook
	for _, t := range textures {
		if t == nil {
			continue
		}
		n, base, ok := flipbookFrame(t.Name)
		if !ok || n != 0 {
			continue
		}
		fb := &Flipbook{
			Name:   t.Name,
			Frames: []*Texture{t},
		}
		for i := 1; i < 10; i++ {
			next, found := byName[fmt.Sprintf("%s%d%s", flipbookPrefix, i, base)]
			if !found || next.Width != t.Width || next.Height != t.Height {
				break
			}
			fb.Frames = append(fb.Frames, next)
		}
		ret = append(ret, fb)
	}
	return ret
}

// decodeTextures reads the texture lump.
//
// The lump starts with a count and that many offsets, relative to the start
// of the lump. Each offset points to a miptex header, and the offsets of the
// mip levels in that header are relative to the header.
func decodeTextures(data []byte, l Lump) ([]*Texture, error) {
	const op = "bsp.decodeTextures"
	c, err := cursor.New(data).Sub(int(l.Offset), int(l.Length))
	if err != nil {
		return nil, err
	}
	if l.Length == 0 {
		return nil, nil
	}
	num, err := c.ReadInt32()
	if err != nil {
		return nil, err
	}
	if num < 0 || int(num) > c.Remaining()/4 {
		return nil, qerr.New(qerr.TruncatedBuffer, op, "%d texture offsets don't fit in lump of %d bytes", num, l.Length)
	}
	offsets := make([]int32, num)
	for n := range offsets {
		if offsets[n], err = c.ReadInt32(); err != nil {
			return nil, err
		}
	}

	ret := make([]*Texture, num)
	for n, ofs := range offsets {
		if ofs == unusedMipTexOffset {
			continue
		}
		if err := c.Seek(int(ofs)); err != nil {
			return nil, err
		}
		f := c.Fields()
		name := f.Name(16)
		width := f.Uint32()
		height := f.Uint32()
		var mips [4]uint32
		for i := range mips {
			mips[i] = f.Uint32()
		}
		if err := f.Err(); err != nil {
			return nil, err
		}

		size := int64(width) * int64(height)
		pos := int64(ofs) + int64(mips[0])
		if size > int64(c.Len()) || pos > int64(c.Len()) {
			return nil, qerr.New(qerr.TruncatedBuffer, op, "texture %d (%q) of %dx%d at %d+%d past end of lump of %d bytes", n, name, width, height, ofs, mips[0], c.Len())
		}
		if err := c.Seek(int(pos)); err != nil {
			return nil, err
		}
		mip0, err := c.ReadBytes(int(size))
		if err != nil {
			return nil, err
		}
		ret[n] = &Texture{
			Name:   name,
			Width:  width,
			Height: height,
			Mip0:   mip0,
		}
	}
	return ret, nil
}
