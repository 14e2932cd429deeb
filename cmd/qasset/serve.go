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

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/ThomasHabets/qasset/pkg/asset"
	"github.com/ThomasHabets/qasset/pkg/config"
	"github.com/ThomasHabets/qasset/pkg/server"
)

func cmdServe(ctx context.Context, c *config.Config, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	fs.Parse(args)

	if c.Server.HTTPAddr == "" && c.Server.GRPCAddr == "" {
		return errors.New("no HTTP or gRPC address to serve on")
	}
	if c.Server.JWTSecret == "" {
		log.Warningf("No JWT secret set. Serving without authentication.")
	}
	s := server.New(server.Options{
		Decode:    asset.Options{MaxBufferSize: c.Decode.MaxBufferSize},
		JWTSecret: c.Server.JWTSecret,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	errs := make(chan error, 2)
	n := 0
	if c.Server.HTTPAddr != "" {
		n++
		go func() {
			errs <- errors.Wrap(s.ListenAndServeHTTP(ctx, c.Server.HTTPAddr, c.Server.MaxConns), "HTTP")
		}()
	}
	if c.Server.GRPCAddr != "" {
		n++
		go func() {
			errs <- errors.Wrap(s.ServeGRPC(ctx, c.Server.GRPCAddr), "gRPC")
		}()
	}

	// First server to stop takes the other one down with it.
	var ret error
	for ; n > 0; n-- {
		if err := <-errs; err != nil && ret == nil {
			ret = err
		}
		cancel()
	}
	return ret
}
