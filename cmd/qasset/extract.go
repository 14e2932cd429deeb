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
	"os"
	"path"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/ThomasHabets/qasset/pkg/source"
)

// cmdExtract writes one file from the sources to disk. The output defaults
// to the base name of the file.
func cmdExtract(ctx context.Context, l *source.Loader, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return errors.New("extract takes a file name and optionally an output file")
	}
	fn := args[0]
	out := path.Base(fn)
	if len(args) == 2 {
		out = args[1]
	}
	b, err := l.Load(ctx, fn)
	if err != nil {
		return errors.Wrapf(err, "getting %q", fn)
	}
	if err := os.WriteFile(out, b, 0644); err != nil {
		os.Remove(out)
		return errors.Wrapf(err, "failed to extract %q", fn)
	}
	log.Infof("Extracted %q to %q (%d bytes)", fn, out, len(b))
	return nil
}
