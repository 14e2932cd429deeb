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
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/ThomasHabets/qasset/pkg/asset"
	"github.com/ThomasHabets/qasset/pkg/catalog"
	"github.com/ThomasHabets/qasset/pkg/config"
	"github.com/ThomasHabets/qasset/pkg/source"
)

func listImport(ctx context.Context, cat *catalog.Catalog, importID string) error {
	rows, err := cat.ListAssets(ctx, importID)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 8, 1, ' ', 0)
	fmt.Fprintf(w, "Name\tFormat\tSize\tError\n")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", r.Name, r.Format, r.Size, r.Error)
	}
	return w.Flush()
}

func cmdCatalog(ctx context.Context, c *config.Config, l *source.Loader, args []string) error {
	fs := flag.NewFlagSet("catalog", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] catalog [-all] [-list <import>] [asset...]\n", os.Args[0])
		fs.PrintDefaults()
	}
	all := fs.Bool("all", false, "Catalog every known asset in the PAK files.")
	list := fs.String("list", "", "Show the assets of an import instead of importing.")
	label := fs.String("source", "", "Name of the import. Default is the PAK file list.")
	fs.Parse(args)

	cat, err := catalog.Open(ctx, c.Catalog.Driver, c.Catalog.DSN)
	if err != nil {
		return err
	}
	defer cat.Close()
	if err := cat.Migrate(ctx); err != nil {
		return err
	}
	if *list != "" {
		return listImport(ctx, cat, *list)
	}

	names := fs.Args()
	if *all {
		for _, fn := range l.List() {
			if _, err := asset.FormatFromName(fn); err == nil {
				names = append(names, fn)
			}
		}
	}
	if len(names) == 0 {
		fs.Usage()
		return errors.New("nothing to catalog")
	}
	if *label == "" {
		*label = strings.Join(c.Sources.PakFiles, ",")
	}

	importID, err := cat.RecordImport(ctx, *label)
	if err != nil {
		return err
	}
	var failed int
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		d, size, err := decodeNamed(ctx, c, l, name, "")
		s := &asset.Summary{Name: name, Size: size}
		if err == nil {
			s = asset.Summarize(name, size, d)
		} else {
			failed++
			s.Format, _ = asset.FormatFromName(name)
			log.Warningf("Decoding %q: %v", name, err)
		}
		if _, err := cat.RecordAsset(ctx, importID, s, err); err != nil {
			return err
		}
	}
	log.Infof("Import %s: %d assets, %d failed", importID, len(names), failed)
	fmt.Println(importID)
	return nil
}
