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
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/ThomasHabets/qasset/pkg/asset"
)

const testSecret = "sekrit"

// testLMP returns a 2x3 picture.
func testLMP() []byte {
	var b bytes.Buffer
	binary.Write(&b, binary.LittleEndian, []int32{2, 3})
	b.Write([]byte{1, 2, 3, 4, 5, 6})
	return b.Bytes()
}

func token(t *testing.T, key string, exp time.Duration) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "tester",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(exp)),
	})
	s, err := tok.SignedString([]byte(key))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestHealthz(t *testing.T) {
	ts := httptest.NewServer(New(Options{}).Handler())
	defer ts.Close()
	resp, err := http.Get(ts.URL + "/v1/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("got status %d, want 200", resp.StatusCode)
	}
}

func TestDecodeHTTP(t *testing.T) {
	s := New(Options{Decode: asset.Options{MaxBufferSize: 200}})
	for _, test := range []struct {
		name   string
		path   string
		body   []byte
		status int
	}{
		{"lmp", "/v1/decode/lmp?name=gfx/pause.lmp", testLMP(), http.StatusOK},
		{"upper case", "/v1/decode/LMP", testLMP(), http.StatusOK},
		{"bad format", "/v1/decode/wad", testLMP(), http.StatusNotFound},
		{"truncated", "/v1/decode/lmp", testLMP()[:9], http.StatusUnprocessableEntity},
		{"bad version", "/v1/decode/bsp", make([]byte, 124), http.StatusUnprocessableEntity},
		{"at limit", "/v1/decode/bsp", make([]byte, 200), http.StatusUnprocessableEntity},
		{"too large", "/v1/decode/lmp", make([]byte, 201), http.StatusRequestEntityTooLarge},
	} {
		t.Run(test.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", test.path, bytes.NewReader(test.body))
			w := httptest.NewRecorder()
			s.Handler().ServeHTTP(w, req)
			if w.Code != test.status {
				t.Fatalf("got status %d, want %d: %s", w.Code, test.status, w.Body.String())
			}
			if test.status != http.StatusOK {
				return
			}
			var got map[string]interface{}
			if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
				t.Fatalf("bad JSON %q: %v", w.Body.String(), err)
			}
			if got["format"] != "lmp" || got["width"] != 2.0 || got["height"] != 3.0 {
				t.Errorf("wrong summary %v", got)
			}
		})
	}
}

func TestDecodeHTTPTooLarge(t *testing.T) {
	s := New(Options{Decode: asset.Options{MaxBufferSize: 100}})
	req := httptest.NewRequest("POST", "/v1/decode/bsp", bytes.NewReader(make([]byte, 124)))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusRequestEntityTooLarge)
	}
	body := w.Body.String()
	if !strings.Contains(body, "more than 100 bytes") || strings.Contains(body, "101") {
		t.Errorf("wrong error message %q", body)
	}
}

func TestDecodeHTTPMethod(t *testing.T) {
	req := httptest.NewRequest("GET", "/v1/decode/lmp", nil)
	w := httptest.NewRecorder()
	New(Options{}).Handler().ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("got status %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}
}

func TestAuthHTTP(t *testing.T) {
	s := New(Options{JWTSecret: testSecret})
	for _, test := range []struct {
		name   string
		auth   string
		status int
	}{
		{"none", "", http.StatusUnauthorized},
		{"not bearer", "Basic Zm9vOmJhcg==", http.StatusUnauthorized},
		{"garbage", "Bearer foo", http.StatusUnauthorized},
		{"wrong key", "Bearer " + token(t, "other", time.Hour), http.StatusUnauthorized},
		{"expired", "Bearer " + token(t, testSecret, -time.Hour), http.StatusUnauthorized},
		{"good", "Bearer " + token(t, testSecret, time.Hour), http.StatusOK},
	} {
		t.Run(test.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/v1/decode/lmp", bytes.NewReader(testLMP()))
			if test.auth != "" {
				req.Header.Set("Authorization", test.auth)
			}
			w := httptest.NewRecorder()
			s.Handler().ServeHTTP(w, req)
			if w.Code != test.status {
				t.Errorf("got status %d, want %d", w.Code, test.status)
			}
		})
	}
}

func TestServeHTTP(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- New(Options{}).serveHTTP(ctx, lis)
	}()
	resp, err := http.Get("http://" + lis.Addr().String() + "/v1/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	cancel()
	if err := <-done; err != nil {
		t.Errorf("serveHTTP: %v", err)
	}
}

func TestDecodeRPC(t *testing.T) {
	s := New(Options{Decode: asset.Options{MaxBufferSize: 100}})
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(metadataAsset, "gfx/pause.lmp"))
	got, err := s.DecodeLMP(ctx, wrapperspb.Bytes(testLMP()))
	if err != nil {
		t.Fatal(err)
	}
	if n := got.GetFields()["name"].GetStringValue(); n != "gfx/pause.lmp" {
		t.Errorf("got name %q, want gfx/pause.lmp", n)
	}
	if w := got.GetFields()["width"].GetNumberValue(); w != 2 {
		t.Errorf("got width %v, want 2", w)
	}

	for _, test := range []struct {
		name string
		call func(context.Context, *wrapperspb.BytesValue) (interface{}, error)
		in   []byte
		code codes.Code
	}{
		{"bsp", func(ctx context.Context, in *wrapperspb.BytesValue) (interface{}, error) { return s.DecodeBSP(ctx, in) }, nil, codes.InvalidArgument},
		{"mdl", func(ctx context.Context, in *wrapperspb.BytesValue) (interface{}, error) { return s.DecodeMDL(ctx, in) }, []byte("IDPO"), codes.InvalidArgument},
		{"large", func(ctx context.Context, in *wrapperspb.BytesValue) (interface{}, error) { return s.DecodeLMP(ctx, in) }, make([]byte, 200), codes.ResourceExhausted},
	} {
		t.Run(test.name, func(t *testing.T) {
			_, err := test.call(context.Background(), wrapperspb.Bytes(test.in))
			if got := status.Code(err); got != test.code {
				t.Errorf("got code %v, want %v (%v)", got, test.code, err)
			}
		})
	}
}

func TestServiceDesc(t *testing.T) {
	s := New(Options{})
	h := decoderServiceDesc.Methods[2].Handler
	dec := func(v interface{}) error {
		v.(*wrapperspb.BytesValue).Value = testLMP()
		return nil
	}
	if _, err := h(s, context.Background(), dec, nil); err != nil {
		t.Fatal(err)
	}

	var method string
	icpt := func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		method = info.FullMethod
		return handler(ctx, req)
	}
	if _, err := h(s, context.Background(), dec, icpt); err != nil {
		t.Fatal(err)
	}
	if want := "/qasset.Decoder/DecodeLMP"; method != want {
		t.Errorf("got method %q, want %q", method, want)
	}
}

func TestAuthRPC(t *testing.T) {
	s := New(Options{JWTSecret: testSecret})
	info := &grpc.UnaryServerInfo{FullMethod: "/qasset.Decoder/DecodeLMP"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return "ok", nil
	}
	for _, test := range []struct {
		name string
		md   metadata.MD
		code codes.Code
	}{
		{"none", nil, codes.Unauthenticated},
		{"wrong key", metadata.Pairs(metadataAuth, bearer(token(t, "other", time.Hour))), codes.Unauthenticated},
		{"no prefix", metadata.Pairs(metadataAuth, token(t, testSecret, time.Hour)), codes.Unauthenticated},
		{"good", metadata.Pairs(metadataAuth, bearer(token(t, testSecret, time.Hour))), codes.OK},
	} {
		t.Run(test.name, func(t *testing.T) {
			ctx := context.Background()
			if test.md != nil {
				ctx = metadata.NewIncomingContext(ctx, test.md)
			}
			_, err := s.authInterceptor(ctx, nil, info, handler)
			if got := status.Code(err); got != test.code {
				t.Errorf("got code %v, want %v", got, test.code)
			}
		})
	}
}

func TestPerRPC(t *testing.T) {
	md, err := NewPerRPC("tok", true).GetRequestMetadata(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got, want := md[metadataAuth], "Bearer tok"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if !NewPerRPC("tok", true).RequireTransportSecurity() {
		t.Error("secure credentials don't require TLS")
	}
}

func TestLogInterceptor(t *testing.T) {
	info := &grpc.UnaryServerInfo{FullMethod: "/qasset.Decoder/DecodeLMP"}
	want := status.Error(codes.InvalidArgument, "bad")
	_, err := logInterceptor(context.Background(), nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, want
	})
	if err != want {
		t.Errorf("got %v, want %v", err, want)
	}
}

func TestClient(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	srv := New(Options{JWTSecret: testSecret}).GRPCServer()
	go srv.Serve(lis)
	defer srv.Stop()

	dial := func(opts ...grpc.DialOption) *DecoderClient {
		opts = append(opts,
			grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
				return lis.DialContext(ctx)
			}),
			grpc.WithTransportCredentials(insecure.NewCredentials()))
		conn, err := grpc.NewClient("passthrough:///bufnet", opts...)
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { conn.Close() })
		return NewDecoderClient(conn)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := dial().Decode(ctx, asset.FormatLMP, testLMP()); status.Code(err) != codes.Unauthenticated {
		t.Errorf("without token: got %v, want Unauthenticated", err)
	}
	if _, err := dial(grpc.WithPerRPCCredentials(NewPerRPC(token(t, "other", time.Hour), false))).Decode(ctx, asset.FormatLMP, testLMP()); status.Code(err) != codes.Unauthenticated {
		t.Errorf("with wrong token: got %v, want Unauthenticated", err)
	}
	c := dial(grpc.WithPerRPCCredentials(NewPerRPC(token(t, testSecret, time.Hour), false)))
	ctx = WithAssetName(ctx, "gfx/pause.lmp")
	got, err := c.Decode(ctx, asset.FormatLMP, testLMP())
	if err != nil {
		t.Fatal(err)
	}
	if n := got.GetFields()["name"].GetStringValue(); n != "gfx/pause.lmp" {
		t.Errorf("got name %q, want gfx/pause.lmp", n)
	}
	if _, err := c.Decode(ctx, asset.FormatUnknown, nil); err == nil {
		t.Error("decoding unknown format succeeded")
	}
}
