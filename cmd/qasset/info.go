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
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"

	"github.com/ThomasHabets/qasset/pkg/asset"
	"github.com/ThomasHabets/qasset/pkg/config"
	"github.com/ThomasHabets/qasset/pkg/source"
)

// decodeNamed loads and decodes one asset. An empty format is taken from the
// file name.
func decodeNamed(ctx context.Context, c *config.Config, l *source.Loader, name, format string) (*asset.Decoded, int, error) {
	var f asset.Format
	var err error
	if format == "" {
		f, err = asset.FormatFromName(name)
	} else {
		f, err = asset.ParseFormat(format)
	}
	if err != nil {
		return nil, 0, err
	}
	b, err := l.Load(ctx, name)
	if err != nil {
		return nil, 0, err
	}
	d, err := asset.Decode(f, b, asset.Options{MaxBufferSize: c.Decode.MaxBufferSize})
	if err != nil {
		return nil, len(b), errors.Wrapf(err, "%q", name)
	}
	return d, len(b), nil
}

func printSummary(s *asset.Summary) {
	fmt.Printf("%s (%v, %d bytes)\n", s.Name, s.Format, s.Size)
	w := tabwriter.NewWriter(os.Stdout, 0, 8, 1, ' ', 0)
	for _, k := range s.CountNames() {
		fmt.Fprintf(w, "  %s:\t%d\n", k, s.Counts[k])
	}
	w.Flush()
	switch s.Format {
	case asset.FormatBSP:
		fmt.Printf("  Level: %v\n", s.IsLevel)
		fmt.Printf("  Textures: %s\n", strings.Join(s.Textures, " "))
		if len(s.Sky) > 0 {
			fmt.Printf("  Sky: %s\n", strings.Join(s.Sky, " "))
		}
		if len(s.Flipbooks) > 0 {
			fmt.Printf("  Flipbooks: %s\n", strings.Join(s.Flipbooks, " "))
		}
		var classes []string
		for cls := range s.EntityClasses {
			classes = append(classes, cls)
		}
		sort.Strings(classes)
		for _, cls := range classes {
			fmt.Printf("  Entity %s: %d\n", cls, s.EntityClasses[cls])
		}
	case asset.FormatMDL:
		fmt.Printf("  Skin: %dx%d\n", s.Width, s.Height)
		fmt.Printf("  Frames: %s\n", strings.Join(s.Frames, " "))
	case asset.FormatLMP:
		fmt.Printf("  Size: %dx%d\n", s.Width, s.Height)
	}
}

func cmdInfo(ctx context.Context, c *config.Config, l *source.Loader, args []string) error {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] info [-format bsp|mdl|lmp] <asset...>\n", os.Args[0])
		fs.PrintDefaults()
	}
	format := fs.String("format", "", "Asset format. Default is from the file name.")
	fs.Parse(args)
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("need at least one asset")
	}
	for _, name := range fs.Args() {
		d, size, err := decodeNamed(ctx, c, l, name, *format)
		if err != nil {
			return err
		}
		printSummary(asset.Summarize(name, size, d))
	}
	return nil
}

func cmdFrames(ctx context.Context, c *config.Config, l *source.Loader, args []string) error {
	if len(args) != 1 {
		return errors.New("frames takes exactly one model")
	}
	d, _, err := decodeNamed(ctx, c, l, args[0], "mdl")
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 8, 1, ' ', 0)
	fmt.Fprintf(w, "Frame\tName\tKind\tFirst pose\tPoses\tInterval\n")
	for n, f := range d.MDL.FrameTable() {
		fmt.Fprintf(w, "%d\t%s\t%v\t%d\t%d\t%g\n", n, f.Name, f.Kind, f.Start, f.NumPoses, f.Interval)
	}
	return w.Flush()
}
