// Package cursor reads little endian values out of an in-memory file.
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
// Every read is bounds checked, and a read past the end returns a
// qerr.TruncatedBuffer error without moving the cursor.
package cursor

import (
	"encoding/binary"
	"math"

	"github.com/ThomasHabets/qasset/pkg/qerr"
	"github.com/ThomasHabets/qasset/pkg/vec"
)

const op = "cursor"

type Cursor struct {
	buf  []byte
	pos  int
	base int // Offset of buf in the outermost buffer, for error messages.
}

func New(b []byte) *Cursor {
	return &Cursor{buf: b}
}

// Pos returns the current read position.
func (c *Cursor) Pos() int { return c.pos }

// Len returns the total size of the buffer.
func (c *Cursor) Len() int { return len(c.buf) }

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int { return len(c.buf) - c.pos }

func (c *Cursor) need(n int) error {
	if n < 0 || n > len(c.buf)-c.pos {
		return qerr.New(qerr.TruncatedBuffer, op, "need %d bytes at offset %d, have %d", n, c.base+c.pos, len(c.buf)-c.pos)
	}
	return nil
}

// Seek sets the absolute read position. Seeking to the very end is allowed.
func (c *Cursor) Seek(pos int) error {
	if pos < 0 || pos > len(c.buf) {
		return qerr.New(qerr.TruncatedBuffer, op, "seek to %d outside buffer of %d bytes", c.base+pos, len(c.buf))
	}
	c.pos = pos
	return nil
}

func (c *Cursor) Skip(n int) error {
	if err := c.need(n); err != nil {
		return err
	}
	c.pos += n
	return nil
}

// Sub returns a new cursor over [off, off+n) of this buffer. The new cursor
// starts at position 0.
func (c *Cursor) Sub(off, n int) (*Cursor, error) {
	if off < 0 || n < 0 || off > len(c.buf) || n > len(c.buf)-off {
		return nil, qerr.New(qerr.TruncatedBuffer, op, "range %d+%d outside buffer of %d bytes", c.base+off, n, len(c.buf))
	}
	return &Cursor{
		buf:  c.buf[off : off+n : off+n],
		base: c.base + off,
	}, nil
}

func (c *Cursor) take(n int) ([]byte, error) {
	if err := c.need(n); err != nil {
		return nil, err
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

func (c *Cursor) ReadUint8() (uint8, error) {
	b, err := c.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (c *Cursor) ReadUint16() (uint16, error) {
	b, err := c.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (c *Cursor) ReadInt16() (int16, error) {
	v, err := c.ReadUint16()
	return int16(v), err
}

func (c *Cursor) ReadUint32() (uint32, error) {
	b, err := c.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (c *Cursor) ReadInt32() (int32, error) {
	v, err := c.ReadUint32()
	return int32(v), err
}

func (c *Cursor) ReadFloat32() (float32, error) {
	v, err := c.ReadUint32()
	return math.Float32frombits(v), err
}

// ReadVec3 reads three float32s.
func (c *Cursor) ReadVec3() (vec.Vec3, error) {
	b, err := c.take(12)
	if err != nil {
		return vec.Vec3{}, err
	}
	return vec.Vec3{
		X: math.Float32frombits(binary.LittleEndian.Uint32(b[0:])),
		Y: math.Float32frombits(binary.LittleEndian.Uint32(b[4:])),
		Z: math.Float32frombits(binary.LittleEndian.Uint32(b[8:])),
	}, nil
}

// ReadBytes returns a copy of the next n bytes.
func (c *Cursor) ReadBytes(n int) ([]byte, error) {
	b, err := c.take(n)
	if err != nil {
		return nil, err
	}
	ret := make([]byte, n)
	copy(ret, b)
	return ret, nil
}

// ReadName reads a fixed size ASCIIZ string field of n bytes.
func (c *Cursor) ReadName(n int) (string, error) {
	b, err := c.take(n)
	if err != nil {
		return "", err
	}
	return CString(b), nil
}

// CString returns the bytes of b up to the first NUL.
func CString(b []byte) string {
	for i, ch := range b {
		if ch == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// Fields reads fixed layout records one field at a time. The first error is
// kept and every read after it returns the zero value, so a whole record can
// be read and then checked once with Err.
type Fields struct {
	c   *Cursor
	err error
}

func (c *Cursor) Fields() *Fields {
	return &Fields{c: c}
}

func (f *Fields) Err() error { return f.err }

func (f *Fields) Uint8() uint8 {
	if f.err != nil {
		return 0
	}
	v, err := f.c.ReadUint8()
	f.err = err
	return v
}

func (f *Fields) Uint16() uint16 {
	if f.err != nil {
		return 0
	}
	v, err := f.c.ReadUint16()
	f.err = err
	return v
}

func (f *Fields) Int16() int16 {
	return int16(f.Uint16())
}

func (f *Fields) Uint32() uint32 {
	if f.err != nil {
		return 0
	}
	v, err := f.c.ReadUint32()
	f.err = err
	return v
}

func (f *Fields) Int32() int32 {
	return int32(f.Uint32())
}

func (f *Fields) Float32() float32 {
	return math.Float32frombits(f.Uint32())
}

func (f *Fields) Vec3() vec.Vec3 {
	if f.err != nil {
		return vec.Vec3{}
	}
	v, err := f.c.ReadVec3()
	f.err = err
	return v
}

func (f *Fields) Name(n int) string {
	if f.err != nil {
		return ""
	}
	v, err := f.c.ReadName(n)
	f.err = err
	return v
}
