// Package asset picks the right decoder for an asset and summarizes the result.
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
package asset

import (
	"fmt"
	"path"
	"strings"

	"github.com/pkg/errors"

	"github.com/ThomasHabets/qasset/pkg/bsp"
	"github.com/ThomasHabets/qasset/pkg/lmp"
	"github.com/ThomasHabets/qasset/pkg/mdl"
	"github.com/ThomasHabets/qasset/pkg/qerr"
)

// DefaultMaxBufferSize is the largest asset decoded unless Options say otherwise.
// The largest stock level is about 4MB.
const DefaultMaxBufferSize = 64 << 20

type Format int

const (
	FormatUnknown Format = iota
	FormatBSP
	FormatMDL
	FormatLMP
)

var formatNames = map[Format]string{
	FormatBSP: "bsp",
	FormatMDL: "mdl",
	FormatLMP: "lmp",
}

func (f Format) String() string {
	if s, found := formatNames[f]; found {
		return s
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// ParseFormat parses "bsp", "mdl" or "lmp".
func ParseFormat(s string) (Format, error) {
	for f, n := range formatNames {
		if strings.EqualFold(n, s) {
			return f, nil
		}
	}
	return FormatUnknown, qerr.New(qerr.UnknownFormat, "asset.ParseFormat", "unknown format %q", s)
}

// FormatFromName guesses the format from a file name such as
// "maps/e1m1.bsp" or "e1m1.bsp.zst".
func FormatFromName(fn string) (Format, error) {
	fn = strings.TrimSuffix(fn, ".zst")
	ext := strings.TrimPrefix(path.Ext(fn), ".")
	if ext == "" {
		return FormatUnknown, qerr.New(qerr.UnknownFormat, "asset.FormatFromName", "no extension in %q", fn)
	}
	return ParseFormat(ext)
}

type Options struct {
	MaxBufferSize int // 0 means DefaultMaxBufferSize.
}

func (o Options) maxSize() int {
	if o.MaxBufferSize <= 0 {
		return DefaultMaxBufferSize
	}
	return o.MaxBufferSize
}

// Decoded holds exactly one decoded asset.
type Decoded struct {
	Format Format
	BSP    *bsp.Model
	MDL    *mdl.Model
	LMP    *lmp.Image
}

// Decode decodes data as the given format.
func Decode(f Format, data []byte, opts Options) (*Decoded, error) {
	const op = "asset.Decode"
	if limit := opts.maxSize(); len(data) > limit {
		return nil, qerr.New(qerr.TooLarge, op, "%d bytes is larger than max %d", len(data), limit)
	}
	ret := &Decoded{Format: f}
	var err error
	switch f {
	case FormatBSP:
		ret.BSP, err = bsp.Decode(data)
	case FormatMDL:
		ret.MDL, err = mdl.Decode(data)
	case FormatLMP:
		ret.LMP, err = lmp.Decode(data)
	default:
		return nil, qerr.New(qerr.UnknownFormat, op, "can't decode %v", f)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %v", f)
	}
	return ret, nil
}
