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
	"crypto/tls"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/golang/protobuf/jsonpb"
	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/ThomasHabets/qasset/pkg/asset"
	"github.com/ThomasHabets/qasset/pkg/server"
	"github.com/ThomasHabets/qasset/pkg/source"
)

// cmdRemote sends assets to a decoder server and prints the replies.
func cmdRemote(ctx context.Context, l *source.Loader, args []string) error {
	fs := flag.NewFlagSet("remote", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] remote [-addr host:port] [-token jwt] <asset...>\n", os.Args[0])
		fs.PrintDefaults()
	}
	addr := fs.String("addr", "localhost:9999", "Decoder server address.")
	token := fs.String("token", "", "Bearer token.")
	plaintext := fs.Bool("plaintext", false, "Connect without TLS.")
	timeout := fs.Duration("timeout", time.Minute, "Timeout per asset.")
	fs.Parse(args)
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("need at least one asset")
	}

	var opts []grpc.DialOption
	if *plaintext {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	} else {
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{})))
	}
	if *token != "" {
		opts = append(opts, grpc.WithPerRPCCredentials(server.NewPerRPC(*token, !*plaintext)))
	}
	conn, err := grpc.NewClient(*addr, opts...)
	if err != nil {
		return errors.Wrapf(err, "connecting to %q", *addr)
	}
	defer conn.Close()
	c := server.NewDecoderClient(conn)

	m := &jsonpb.Marshaler{Indent: "  "}
	for _, name := range fs.Args() {
		f, err := asset.FormatFromName(name)
		if err != nil {
			return err
		}
		b, err := l.Load(ctx, name)
		if err != nil {
			return err
		}
		if err := func() error {
			ctx, cancel := context.WithTimeout(server.WithAssetName(ctx, name), *timeout)
			defer cancel()
			reply, err := c.Decode(ctx, f, b)
			if err != nil {
				return errors.Wrapf(err, "decoding %q", name)
			}
			if err := m.Marshal(os.Stdout, reply); err != nil {
				return err
			}
			fmt.Println()
			return nil
		}(); err != nil {
			return err
		}
	}
	return nil
}
