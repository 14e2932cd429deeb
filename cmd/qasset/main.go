// qasset decodes Quake BSP, MDL and LMP files.
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
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/ThomasHabets/qasset/pkg/config"
	"github.com/ThomasHabets/qasset/pkg/server"
	"github.com/ThomasHabets/qasset/pkg/source"
)

var (
	configFile = flag.String("config", "", "YAML config file.")
	verbose    = flag.Int("v", 0, "gRPC library verbosity. 0 disables gRPC logging.")
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [options] <command> [command options]\n\nCommands:\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  list                     List files in the PAK files.\n")
	fmt.Fprintf(os.Stderr, "  info <asset...>          Decode assets and show what's in them.\n")
	fmt.Fprintf(os.Stderr, "  frames <model.mdl>       Show the animation frames of a model.\n")
	fmt.Fprintf(os.Stderr, "  textures <asset>         Export textures, skins and pictures.\n")
	fmt.Fprintf(os.Stderr, "  catalog <asset...>       Decode assets and record them in the catalog.\n")
	fmt.Fprintf(os.Stderr, "  extract <file> [out]     Copy a file out of the PAK files.\n")
	fmt.Fprintf(os.Stderr, "  serve                    Serve the decoders over HTTP and gRPC.\n")
	fmt.Fprintf(os.Stderr, "  remote <asset...>        Decode assets on a remote server.\n\nOptions:\n")
	flag.PrintDefaults()
}

// setupLogging applies the log config. Validate has already checked it.
func setupLogging(c config.Log) {
	level, err := log.ParseLevel(c.Level)
	if err != nil {
		log.Fatalf("Bad log level %q: %v", c.Level, err)
	}
	log.SetLevel(level)
	switch c.Format {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "text":
		log.SetFormatter(&log.TextFormatter{
			DisableColors: true,
			FullTimestamp: true,
		})
	default:
		if term.IsTerminal(int(os.Stderr.Fd())) {
			log.SetFormatter(&log.TextFormatter{ForceColors: true})
		} else {
			log.SetFormatter(&log.JSONFormatter{})
		}
	}
}

func loadConfig(fl *config.Flags) *config.Config {
	c := config.Default()
	if *configFile != "" {
		var err error
		if c, err = config.Load(*configFile); err != nil {
			log.Fatalf("Loading config: %v", err)
		}
	}
	fl.Apply(c)
	if err := c.Validate(); err != nil {
		log.Fatalf("Bad config: %v", err)
	}
	return c
}

func newLoader(c *config.Config) *source.Loader {
	l, err := source.NewLoader(source.Options{
		PakFiles:       c.Sources.PakFiles,
		GCSCredentials: c.Sources.GCSCredentials,
		MaxSize:        int64(c.Decode.MaxBufferSize),
	})
	if err != nil {
		log.Fatalf("Opening sources: %v", err)
	}
	return l
}

func main() {
	fl := config.RegisterFlags(flag.CommandLine)
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() < 1 {
		usage()
		os.Exit(1)
	}
	c := loadConfig(fl)
	setupLogging(c.Log)
	if *verbose > 0 {
		server.SetRPCLogger(*verbose)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	l := newLoader(c)
	defer l.Close()

	args := flag.Args()[1:]
	var err error
	switch flag.Arg(0) {
	case "list":
		for _, fn := range l.List() {
			fmt.Println(fn)
		}
	case "info":
		err = cmdInfo(ctx, c, l, args)
	case "frames":
		err = cmdFrames(ctx, c, l, args)
	case "textures":
		err = cmdTextures(ctx, c, l, args)
	case "catalog":
		err = cmdCatalog(ctx, c, l, args)
	case "serve":
		err = cmdServe(ctx, c, args)
	case "remote":
		err = cmdRemote(ctx, l, args)
	case "extract":
		err = cmdExtract(ctx, l, args)
	default:
		usage()
		log.Fatalf("Unknown command %q", flag.Arg(0))
	}
	if err != nil {
		log.Fatal(err)
	}
}
