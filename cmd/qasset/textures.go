package main

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
	"context"
	"flag"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path"
	"strings"

	"github.com/ftrvxmtrx/tga"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/ThomasHabets/qasset/pkg/bsp"
	"github.com/ThomasHabets/qasset/pkg/config"
	"github.com/ThomasHabets/qasset/pkg/palette"
	"github.com/ThomasHabets/qasset/pkg/source"
)

const (
	pngCompressionLevel = png.BestCompression
)

type encoder func(io.Writer, image.Image) error

func encoderFor(format string) (encoder, string, error) {
	switch format {
	case "png":
		return (&png.Encoder{CompressionLevel: pngCompressionLevel}).Encode, ".png", nil
	case "tga":
		return tga.Encode, ".tga", nil
	}
	return nil, "", errors.Errorf("unknown image format %q, want png or tga", format)
}

// fileName makes a texture name safe to use as a file name. Quake uses "*"
// for liquids and "+" for animations.
func fileName(name string) string {
	return strings.NewReplacer("*", "#", "/", "_").Replace(name)
}

type exporter struct {
	dir    string
	pal    *palette.Palette
	encode encoder
	ext    string
}

func (e *exporter) write(name string, w, h int, pix []byte) error {
	img, err := e.pal.Image(w, h, pix)
	if err != nil {
		return errors.Wrapf(err, "texture %q", name)
	}
	fn := path.Join(e.dir, fileName(name)+e.ext)
	of, err := os.Create(fn)
	if err != nil {
		return err
	}
	if err := e.encode(of, img); err != nil {
		of.Close()
		os.Remove(fn)
		return errors.Wrapf(err, "encoding %q", fn)
	}
	log.Debugf("Wrote %q", fn)
	return of.Close()
}

func (e *exporter) bsp(m *bsp.Model) error {
	for _, t := range m.Textures {
		if t == nil {
			continue
		}
		if err := e.write(t.Name, int(t.Width), int(t.Height), t.Mip0); err != nil {
			return err
		}
		if t.IsSky() {
			front, back := t.SplitSky()
			half := int(t.Width) / 2
			if err := e.write(t.Name+"_front", half, int(t.Height), front); err != nil {
				return err
			}
			if err := e.write(t.Name+"_back", int(t.Width)-half, int(t.Height), back); err != nil {
				return err
			}
		}
	}
	for _, fb := range bsp.Flipbooks(m.Textures) {
		h := int(fb.Height()) * len(fb.Frames)
		if err := e.write(fb.Name+"_atlas", int(fb.Width()), h, fb.Atlas()); err != nil {
			return err
		}
	}
	return nil
}

func cmdTextures(ctx context.Context, c *config.Config, l *source.Loader, args []string) error {
	fs := flag.NewFlagSet("textures", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s -pak pak0,pak1,... textures [options] <asset>\n", os.Args[0])
		fs.PrintDefaults()
	}
	outDir := fs.String("out", ".", "Output directory.")
	imgFormat := fs.String("image_format", "png", "Output image format: png or tga.")
	format := fs.String("format", "", "Asset format. Default is from the file name.")
	fs.Parse(args)
	if fs.NArg() != 1 {
		fs.Usage()
		return errors.New("need exactly one asset")
	}
	name := fs.Arg(0)

	enc, ext, err := encoderFor(*imgFormat)
	if err != nil {
		return err
	}
	pb, err := l.Load(ctx, palette.Name)
	if err != nil {
		return errors.Wrap(err, "loading palette")
	}
	pal, err := palette.Parse(pb)
	if err != nil {
		return err
	}
	d, _, err := decodeNamed(ctx, c, l, name, *format)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(*outDir, 0755); err != nil {
		return err
	}

	e := &exporter{
		dir:    *outDir,
		pal:    pal,
		encode: enc,
		ext:    ext,
	}
	base := strings.TrimSuffix(path.Base(name), path.Ext(name))
	switch {
	case d.BSP != nil:
		return e.bsp(d.BSP)
	case d.MDL != nil:
		for n, skin := range d.MDL.Skins {
			if err := e.write(fmt.Sprintf("%s_skin_%d", base, n), int(d.MDL.SkinWidth), int(d.MDL.SkinHeight), skin); err != nil {
				return err
			}
		}
	case d.LMP != nil:
		return e.write(base, d.LMP.Width, d.LMP.Height, d.LMP.Pixels)
	}
	return nil
}
