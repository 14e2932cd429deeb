// Package pak loads Quake PAK files.
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
package pak

import (
	"io"
	"os"
	"sort"

	"github.com/pkg/errors"

	"github.com/ThomasHabets/qasset/pkg/cursor"
	"github.com/ThomasHabets/qasset/pkg/qerr"
)

const (
	magic = 0x4b434150 // "PACK"

	fileHeaderSize = 4 + 4 + 4
	fileEntrySize  = 56 + 4 + 4
	entryNameSize  = 56
)

type Entry struct {
	Pos  uint32
	Size uint32
}

// Pak is an open PAK file.
type Pak struct {
	r       io.ReaderAt
	closer  io.Closer // nil if the caller owns r.
	Entries map[string]Entry
}

// Open reads the directory of a PAK file of size bytes.
func Open(r io.ReaderAt, size int64) (*Pak, error) {
	const op = "pak.Open"
	hb := make([]byte, fileHeaderSize)
	if _, err := r.ReadAt(hb, 0); err != nil {
		if err == io.EOF {
			return nil, qerr.New(qerr.TruncatedBuffer, op, "file of %d bytes too short for header", size)
		}
		return nil, errors.Wrap(err, "reading header")
	}
	f := cursor.New(hb).Fields()
	id := f.Uint32()
	dirOfs := int64(f.Uint32())
	dirSize := int64(f.Uint32())
	if id != magic {
		return nil, qerr.New(qerr.UnknownFormat, op, "bad magic %08x, want %08x", id, magic)
	}
	if dirSize%fileEntrySize != 0 {
		return nil, qerr.New(qerr.LumpSizeMismatch, op, "directory size %d not divisible by %d", dirSize, fileEntrySize)
	}
	if dirOfs+dirSize > size {
		return nil, qerr.New(qerr.TruncatedBuffer, op, "directory %d+%d past end of file of %d bytes", dirOfs, dirSize, size)
	}

	dir := make([]byte, dirSize)
	if _, err := r.ReadAt(dir, dirOfs); err != nil && !(err == io.EOF && dirSize == 0) {
		return nil, errors.Wrap(err, "reading directory")
	}
	ret := &Pak{
		r:       r,
		Entries: make(map[string]Entry),
	}
	f = cursor.New(dir).Fields()
	for i := int64(0); i < dirSize/fileEntrySize; i++ {
		name := f.Name(entryNameSize)
		e := Entry{
			Pos:  f.Uint32(),
			Size: f.Uint32(),
		}
		if err := f.Err(); err != nil {
			return nil, err
		}
		if int64(e.Pos)+int64(e.Size) > size {
			return nil, qerr.New(qerr.TruncatedBuffer, op, "entry %q at %d+%d past end of file of %d bytes", name, e.Pos, e.Size, size)
		}
		ret.Entries[name] = e
	}
	return ret, nil
}

// OpenFile opens a PAK file on disk. Close the returned Pak when done.
func OpenFile(fn string) (*Pak, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	p, err := Open(f, st.Size())
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "%q", fn)
	}
	p.closer = f
	return p, nil
}

func (p *Pak) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer.Close()
}

// Get returns a reader for one file in the PAK.
func (p *Pak) Get(fn string) (*io.SectionReader, error) {
	entry, found := p.Entries[fn]
	if !found {
		return nil, errors.Wrapf(os.ErrNotExist, "%q not in pak", fn)
	}
	return io.NewSectionReader(p.r, int64(entry.Pos), int64(entry.Size)), nil
}

// ReadFile returns the contents of one file in the PAK.
func (p *Pak) ReadFile(fn string) ([]byte, error) {
	r, err := p.Get(fn)
	if err != nil {
		return nil, err
	}
	b := make([]byte, r.Size())
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, errors.Wrapf(err, "reading %q", fn)
	}
	return b, nil
}

// List returns the sorted names of all files in the PAK.
func (p *Pak) List() []string {
	ret := make([]string, 0, len(p.Entries))
	for fn := range p.Entries {
		ret = append(ret, fn)
	}
	sort.Strings(ret)
	return ret
}

// MultiPak is a search path of PAK files. Later PAKs override earlier ones,
// the way pak1.pak overrides pak0.pak.
type MultiPak []*Pak

func (m MultiPak) List() []string {
	seen := make(map[string]bool)
	var ret []string
	for _, p := range m {
		for fn := range p.Entries {
			if !seen[fn] {
				seen[fn] = true
				ret = append(ret, fn)
			}
		}
	}
	sort.Strings(ret)
	return ret
}

// MultiOpen opens PAK files in search order. Empty names are skipped.
func MultiOpen(fns ...string) (MultiPak, error) {
	var ret MultiPak
	for _, fn := range fns {
		if fn == "" {
			continue
		}
		p, err := OpenFile(fn)
		if err != nil {
			ret.Close()
			return nil, err
		}
		ret = append(ret, p)
	}
	return ret, nil
}

func (m MultiPak) Get(s string) (*io.SectionReader, error) {
	for i := len(m); i > 0; i-- {
		if r, err := m[i-1].Get(s); err == nil {
			return r, nil
		}
	}
	return nil, errors.Wrapf(os.ErrNotExist, "%q not in any pak", s)
}

func (m MultiPak) ReadFile(s string) ([]byte, error) {
	for i := len(m); i > 0; i-- {
		if _, found := m[i-1].Entries[s]; found {
			return m[i-1].ReadFile(s)
		}
	}
	return nil, errors.Wrapf(os.ErrNotExist, "%q not in any pak", s)
}

func (m MultiPak) Close() error {
	var ret error
	for _, p := range m {
		if err := p.Close(); err != nil && ret == nil {
			ret = err
		}
	}
	return ret
}
