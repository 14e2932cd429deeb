// Package source loads asset bytes from disk, PAK files or Google Cloud Storage.
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
// Names are resolved in this order:
// * "gs://bucket/object" is read from Cloud Storage.
// * A file that exists on disk is read from disk.
// * Anything else is looked up in the PAK files, last PAK first.
//
// Names ending in ".zst" are decompressed.
package source

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	cloudopt "google.golang.org/api/option"

	"github.com/ThomasHabets/qasset/pkg/asset"
	"github.com/ThomasHabets/qasset/pkg/pak"
	"github.com/ThomasHabets/qasset/pkg/qerr"
)

const (
	gcsPrefix = "gs://"
	zstSuffix = ".zst"

	minDecoderMemory = 1 << 20
)

type Options struct {
	PakFiles       []string // In search order. Later ones override earlier.
	GCSCredentials string   // Service account JSON file. Empty for default credentials.
	MaxSize        int64    // 0 means asset.DefaultMaxBufferSize.
}

// Loader reads assets. Safe for concurrent use.
type Loader struct {
	paks    pak.MultiPak
	creds   string
	maxSize int64

	mu  sync.Mutex
	gcs *storage.Client // Created on first use.
}

// NewLoader opens the PAK files. Close the Loader when done.
func NewLoader(opts Options) (*Loader, error) {
	paks, err := pak.MultiOpen(opts.PakFiles...)
	if err != nil {
		return nil, err
	}
	l := &Loader{
		paks:    paks,
		creds:   opts.GCSCredentials,
		maxSize: opts.MaxSize,
	}
	if l.maxSize <= 0 {
		l.maxSize = asset.DefaultMaxBufferSize
	}
	return l, nil
}

func (l *Loader) Close() error {
	err := l.paks.Close()
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.gcs != nil {
		if err2 := l.gcs.Close(); err == nil {
			err = err2
		}
		l.gcs = nil
	}
	return err
}

// List returns the names of all files in the PAKs.
func (l *Loader) List() []string {
	return l.paks.List()
}

// Load returns the contents of an asset, decompressed if needed.
func (l *Loader) Load(ctx context.Context, name string) ([]byte, error) {
	var b []byte
	var err error
	switch {
	case strings.HasPrefix(name, gcsPrefix):
		b, err = l.loadGCS(ctx, name)
	case fileExists(name):
		b, err = l.loadFile(name)
	default:
		b, err = l.loadPak(name)
	}
	if err != nil {
		return nil, err
	}
	log.Debugf("Loaded %q: %d bytes", name, len(b))
	if strings.HasSuffix(name, zstSuffix) {
		return l.decompress(name, b)
	}
	return b, nil
}

func fileExists(fn string) bool {
	st, err := os.Stat(fn)
	return err == nil && st.Mode().IsRegular()
}

// readLimited reads all of r, failing if it's larger than the max size.
func (l *Loader) readLimited(name string, r io.Reader) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r, l.maxSize+1))
	if err != nil {
		return nil, errors.Wrapf(err, "reading %q", name)
	}
	if int64(len(b)) > l.maxSize {
		return nil, qerr.New(qerr.TooLarge, "source.Load", "%q is larger than max %d bytes", name, l.maxSize)
	}
	return b, nil
}

func (l *Loader) loadFile(fn string) ([]byte, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return l.readLimited(fn, f)
}

func (l *Loader) loadPak(name string) ([]byte, error) {
	r, err := l.paks.Get(name)
	if err != nil {
		return nil, err
	}
	return l.readLimited(name, r)
}

// parseGCS splits "gs://bucket/some/object" into bucket and object.
func parseGCS(name string) (string, string, error) {
	s := strings.TrimPrefix(name, gcsPrefix)
	bucket, object, found := strings.Cut(s, "/")
	if !found || bucket == "" || object == "" {
		return "", "", errors.Errorf("bad cloud storage name %q, want gs://bucket/object", name)
	}
	return bucket, object, nil
}

func (l *Loader) gcsClient(ctx context.Context) (*storage.Client, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.gcs != nil {
		return l.gcs, nil
	}
	var opts []cloudopt.ClientOption
	if l.creds != "" {
		opts = append(opts, cloudopt.WithServiceAccountFile(l.creds))
	}
	c, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "creating cloud storage client")
	}
	l.gcs = c
	return c, nil
}

func (l *Loader) loadGCS(ctx context.Context, name string) ([]byte, error) {
	bucket, object, err := parseGCS(name)
	if err != nil {
		return nil, err
	}
	c, err := l.gcsClient(ctx)
	if err != nil {
		return nil, err
	}
	r, err := c.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %q", name)
	}
	defer r.Close()
	return l.readLimited(name, r)
}

func (l *Loader) decompress(name string, b []byte) ([]byte, error) {
	// The output is bounded by readLimited. This only bounds the decoder buffers.
	mem := uint64(l.maxSize)
	if mem < minDecoderMemory {
		mem = minDecoderMemory
	}
	dec, err := zstd.NewReader(bytes.NewReader(b), zstd.WithDecoderMaxMemory(mem))
	if err != nil {
		return nil, errors.Wrapf(err, "decompressing %q", name)
	}
	defer dec.Close()
	out, err := l.readLimited(name, dec)
	if err != nil {
		return nil, errors.Wrapf(err, "decompressing %q", name)
	}
	return out, nil
}
