// Package lmp loads raw Quake .lmp pictures, such as the menu graphics.
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
package lmp

import (
	"image"

	"github.com/ThomasHabets/qasset/pkg/cursor"
	"github.com/ThomasHabets/qasset/pkg/palette"
	"github.com/ThomasHabets/qasset/pkg/qerr"
)

const (
	// MaxSize is the largest width or height accepted.
	MaxSize = 512

	headerSize = 4 + 4
)

// Image is a palette indexed picture.
type Image struct {
	Width, Height int
	Pixels        []byte // Width*Height palette indices, row major.
}

// Decode parses an .lmp picture.
func Decode(data []byte) (*Image, error) {
	const op = "lmp.Decode"
	c := cursor.New(data)
	w, err := c.ReadInt32()
	if err != nil {
		return nil, err
	}
	h, err := c.ReadInt32()
	if err != nil {
		return nil, err
	}
	if w < 0 || h < 0 || w > MaxSize || h > MaxSize {
		return nil, qerr.New(qerr.Corrupt, op, "bad picture size %dx%d, max %d", w, h, MaxSize)
	}
	pix, err := c.ReadBytes(int(w) * int(h))
	if err != nil {
		return nil, err
	}
	return &Image{
		Width:  int(w),
		Height: int(h),
		Pixels: pix,
	}, nil
}

// BGRA returns the picture as B,G,R,A bytes.
func (i *Image) BGRA(p *palette.Palette) []byte {
	return p.ApplyPalette(i.Pixels)
}

// Paletted returns the picture as an image.
func (i *Image) Paletted(p *palette.Palette) (*image.Paletted, error) {
	return p.Image(i.Width, i.Height, i.Pixels)
}
