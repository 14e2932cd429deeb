package server

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
	"net"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/grpclog"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/ThomasHabets/qasset/pkg/asset"
	"github.com/ThomasHabets/qasset/pkg/qerr"
)

const (
	serviceName   = "qasset.Decoder"
	methodPrefix  = "/" + serviceName + "/"
	metadataAuth  = "authorization"
	metadataAsset = "asset-name"
	metadataHost  = "hostname"

	// Room for the message framing around the asset bytes.
	rpcOverhead = 1024
)

// DecoderServer is the gRPC decoder service. Requests carry the raw asset
// bytes and replies the same summary as the HTTP API.
type DecoderServer interface {
	DecodeBSP(context.Context, *wrapperspb.BytesValue) (*structpb.Struct, error)
	DecodeMDL(context.Context, *wrapperspb.BytesValue) (*structpb.Struct, error)
	DecodeLMP(context.Context, *wrapperspb.BytesValue) (*structpb.Struct, error)
}

func decoderHandler(method string, call func(DecoderServer, context.Context, *wrapperspb.BytesValue) (*structpb.Struct, error)) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(wrapperspb.BytesValue)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(DecoderServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: methodPrefix + method,
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(DecoderServer), ctx, req.(*wrapperspb.BytesValue))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var decoderServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*DecoderServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "DecodeBSP",
			Handler:    decoderHandler("DecodeBSP", DecoderServer.DecodeBSP),
		},
		{
			MethodName: "DecodeMDL",
			Handler:    decoderHandler("DecodeMDL", DecoderServer.DecodeMDL),
		},
		{
			MethodName: "DecodeLMP",
			Handler:    decoderHandler("DecodeLMP", DecoderServer.DecodeLMP),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "qasset.proto",
}

// DecoderClient calls a remote decoder service.
type DecoderClient struct {
	cc grpc.ClientConnInterface
}

func NewDecoderClient(cc grpc.ClientConnInterface) *DecoderClient {
	return &DecoderClient{cc: cc}
}

// Decode sends an asset to the remote decoder.
func (c *DecoderClient) Decode(ctx context.Context, f asset.Format, data []byte, opts ...grpc.CallOption) (*structpb.Struct, error) {
	var method string
	switch f {
	case asset.FormatBSP:
		method = "DecodeBSP"
	case asset.FormatMDL:
		method = "DecodeMDL"
	case asset.FormatLMP:
		method = "DecodeLMP"
	default:
		return nil, qerr.New(qerr.UnknownFormat, "server.Decode", "no remote decoder for %v", f)
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodPrefix+method, wrapperspb.Bytes(data), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Server) DecodeBSP(ctx context.Context, in *wrapperspb.BytesValue) (*structpb.Struct, error) {
	return s.decodeRPC(ctx, asset.FormatBSP, in)
}

func (s *Server) DecodeMDL(ctx context.Context, in *wrapperspb.BytesValue) (*structpb.Struct, error) {
	return s.decodeRPC(ctx, asset.FormatMDL, in)
}

func (s *Server) DecodeLMP(ctx context.Context, in *wrapperspb.BytesValue) (*structpb.Struct, error) {
	return s.decodeRPC(ctx, asset.FormatLMP, in)
}

func (s *Server) decodeRPC(ctx context.Context, f asset.Format, in *wrapperspb.BytesValue) (*structpb.Struct, error) {
	pb, err := s.decode(firstMetadata(ctx, metadataAsset), f, in.GetValue())
	if err != nil {
		log.Infof("RPC decoding %d bytes of %v: %v", len(in.GetValue()), f, err)
		return nil, status.Error(rpcCode(err), err.Error())
	}
	return pb, nil
}

// rpcCode picks the gRPC status code for a decode error.
func rpcCode(err error) codes.Code {
	switch qerr.KindOf(err) {
	case qerr.TooLarge:
		return codes.ResourceExhausted
	case qerr.Unknown:
		return codes.Internal
	}
	return codes.InvalidArgument
}

func firstMetadata(ctx context.Context, key string) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get(key); len(v) > 0 {
			return v[0]
		}
	}
	return ""
}

// authInterceptor checks the bearer token in the request metadata.
func (s *Server) authInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	if s.secret == nil {
		return handler(ctx, req)
	}
	user, err := s.checkToken(firstMetadata(ctx, metadataAuth))
	if err != nil {
		log.Infof("RPC auth failed for %s: %v", info.FullMethod, err)
		return nil, status.Error(codes.Unauthenticated, "unauthenticated")
	}
	log.Debugf("RPC %s from %q", info.FullMethod, user)
	return handler(ctx, req)
}

// logInterceptor logs every RPC with a request ID.
func logInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	st := time.Now()
	resp, err := handler(ctx, req)
	l := log.WithFields(log.Fields{
		"request":  uuid.New().String(),
		"method":   info.FullMethod,
		"host":     firstMetadata(ctx, metadataHost),
		"duration": time.Since(st),
	})
	if err != nil {
		l.Infof("RPC failed: %v", err)
	} else {
		l.Debugf("RPC done")
	}
	return resp, err
}

// GRPCServer returns a gRPC server with the decoder service registered.
func (s *Server) GRPCServer(opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts,
		grpc.MaxRecvMsgSize(s.maxSize()+rpcOverhead),
		grpc.ChainUnaryInterceptor(logInterceptor, s.authInterceptor))
	srv := grpc.NewServer(opts...)
	srv.RegisterService(&decoderServiceDesc, s)
	return srv
}

// ServeGRPC serves the decoder service on addr until ctx is done.
func (s *Server) ServeGRPC(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "listening on %q", addr)
	}
	srv := s.GRPCServer()
	go func() {
		<-ctx.Done()
		srv.GracefulStop()
	}()
	log.Infof("Serving gRPC on %v", lis.Addr())
	return srv.Serve(lis)
}

type rpcLogger struct {
	level int
}

func (rpcLogger) Info(args ...interface{})                    { log.Info(args...) }
func (rpcLogger) Infof(format string, args ...interface{})    { log.Infof(format, args...) }
func (rpcLogger) Infoln(args ...interface{})                  { log.Infoln(args...) }
func (rpcLogger) Warning(args ...interface{})                 { log.Warning(args...) }
func (rpcLogger) Warningf(format string, args ...interface{}) { log.Warningf(format, args...) }
func (rpcLogger) Warningln(args ...interface{})               { log.Warningln(args...) }
func (rpcLogger) Error(args ...interface{})                   { log.Error(args...) }
func (rpcLogger) Errorf(format string, args ...interface{})   { log.Errorf(format, args...) }
func (rpcLogger) Errorln(args ...interface{})                 { log.Errorln(args...) }
func (rpcLogger) Fatal(args ...interface{})                   { log.Fatal(args...) }
func (rpcLogger) Fatalf(format string, args ...interface{})   { log.Fatalf(format, args...) }
func (rpcLogger) Fatalln(args ...interface{})                 { log.Fatalln(args...) }
func (r rpcLogger) V(l int) bool                              { return l >= r.level }

// SetRPCLogger sends gRPC library logs to logrus.
func SetRPCLogger(level int) {
	grpclog.SetLoggerV2(rpcLogger{level: level})
}

// bearer returns an authorization value for a token.
func bearer(token string) string {
	if strings.HasPrefix(token, bearerPrefix) {
		return token
	}
	return bearerPrefix + token
}

// PerRPC is called by the gRPC framework on every RPC, and adds the bearer
// token and the client hostname to the request metadata.
type PerRPC struct {
	token  string
	secure bool
}

// NewPerRPC returns credentials sending token. Unless secure is false they
// are only sent over TLS.
func NewPerRPC(token string, secure bool) *PerRPC {
	return &PerRPC{
		token:  token,
		secure: secure,
	}
}

func (p *PerRPC) RequireTransportSecurity() bool {
	return p.secure
}

func (p *PerRPC) GetRequestMetadata(ctx context.Context, uri ...string) (map[string]string, error) {
	ret := map[string]string{
		metadataAuth: bearer(p.token),
	}
	if h, err := os.Hostname(); err == nil {
		ret[metadataHost] = h
	}
	return ret, nil
}

// WithAssetName names the asset of outgoing RPCs.
func WithAssetName(ctx context.Context, name string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, metadataAsset, name)
}
