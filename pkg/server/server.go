// Package server serves the decoders over HTTP and gRPC.
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
package server

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/golang/protobuf/jsonpb"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/netutil"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ThomasHabets/qasset/pkg/asset"
	"github.com/ThomasHabets/qasset/pkg/qerr"
)

const bearerPrefix = "Bearer "

type Options struct {
	Decode    asset.Options
	JWTSecret string // Empty disables authentication.
}

// Server decodes assets sent to it. Every request is independent.
type Server struct {
	opts   asset.Options
	secret []byte
}

func New(opts Options) *Server {
	s := &Server{opts: opts.Decode}
	if opts.JWTSecret != "" {
		s.secret = []byte(opts.JWTSecret)
	}
	return s
}

// maxSize returns the largest asset accepted.
func (s *Server) maxSize() int {
	if s.opts.MaxBufferSize <= 0 {
		return asset.DefaultMaxBufferSize
	}
	return s.opts.MaxBufferSize
}

// decode decodes one asset and returns its summary.
func (s *Server) decode(name string, f asset.Format, data []byte) (*structpb.Struct, error) {
	d, err := asset.Decode(f, data, s.opts)
	if err != nil {
		return nil, err
	}
	return asset.Summarize(name, len(data), d).Proto()
}

// checkToken verifies a bearer token, and returns its subject.
func (s *Server) checkToken(auth string) (string, error) {
	if s.secret == nil {
		return "", nil
	}
	if !strings.HasPrefix(auth, bearerPrefix) {
		return "", errors.New("missing bearer token")
	}
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(strings.TrimPrefix(auth, bearerPrefix), claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errors.New("invalid token")
	}
	return claims.Subject, nil
}

// httpStatus picks the HTTP status for a decode error.
func httpStatus(err error) int {
	switch qerr.KindOf(err) {
	case qerr.TooLarge:
		return http.StatusRequestEntityTooLarge
	case qerr.UnknownFormat:
		return http.StatusNotFound
	case qerr.Unknown:
		return http.StatusInternalServerError
	}
	return http.StatusUnprocessableEntity
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, "ok")
}

func (s *Server) handleDecode(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.New()
	l := log.WithFields(log.Fields{"request": requestID.String(), "remote": r.RemoteAddr})

	user, err := s.checkToken(r.Header.Get("Authorization"))
	if err != nil {
		l.Infof("Auth failed: %v", err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	f, err := asset.ParseFormat(mux.Vars(r)["format"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, int64(s.maxSize())+1))
	if err != nil {
		l.Warningf("Reading request: %v", err)
		http.Error(w, "failed to read request", http.StatusBadRequest)
		return
	}
	if len(data) > s.maxSize() {
		// The body was cut at maxSize+1, so its real size is unknown.
		err := qerr.New(qerr.TooLarge, "server.Decode", "request body is more than %d bytes", s.maxSize())
		l.Infof("Rejecting %v for %q: %v", f, user, err)
		http.Error(w, err.Error(), httpStatus(err))
		return
	}
	name := r.URL.Query().Get("name")
	st := time.Now()
	pb, err := s.decode(name, f, data)
	if err != nil {
		l.Infof("Decoding %d bytes of %v for %q: %v", len(data), f, user, err)
		http.Error(w, err.Error(), httpStatus(err))
		return
	}
	l.Infof("Decoded %d bytes of %v for %q in %v", len(data), f, user, time.Since(st))
	w.Header().Set("Content-Type", "application/json")
	if err := (&jsonpb.Marshaler{Indent: "  "}).Marshal(w, pb); err != nil {
		l.Errorf("Writing reply: %v", err)
	}
}

// Handler returns the HTTP API.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/v1/healthz", s.handleHealthz).Methods("GET")
	r.HandleFunc("/v1/decode/{format}", s.handleDecode).Methods("POST")
	return r
}

// ListenAndServeHTTP serves the HTTP API on addr until ctx is done, with at most
// maxConns connections at a time.
func (s *Server) ListenAndServeHTTP(ctx context.Context, addr string, maxConns int) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "listening on %q", addr)
	}
	return s.serveHTTP(ctx, netutil.LimitListener(lis, maxConns))
}

func (s *Server) serveHTTP(ctx context.Context, lis net.Listener) error {
	srv := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  time.Minute,
		WriteTimeout: time.Minute,
	}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(sctx)
	}()
	log.Infof("Serving HTTP on %v", lis.Addr())
	if err := srv.Serve(lis); err != http.ErrServerClosed {
		return err
	}
	return nil
}
