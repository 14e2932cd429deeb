// Package qerr holds the error kinds returned by the asset decoders.
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
// Decoders return a *Error wrapped with a stack. Callers add context with
// errors.Wrapf and can still recover the Kind with KindOf.
package qerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a decode failure.
type Kind int

const (
	Unknown Kind = iota

	// TruncatedBuffer means a read went past the end of the input.
	TruncatedBuffer

	// UnsupportedVersion means the file header version is not handled.
	UnsupportedVersion

	// LumpSizeMismatch means a lump length is not a multiple of its element size.
	LumpSizeMismatch

	// MalformedEntityBlock means an entity block has an odd number of quoted tokens,
	// or an unterminated quote.
	MalformedEntityBlock

	// UnsupportedSkinType means an alias model skin is not a single skin.
	UnsupportedSkinType

	OutOfRangePaletteIndex
	OutOfRangeNormalIndex

	// Corrupt means the data is structurally readable but references something
	// that isn't there, or has impossible dimensions.
	Corrupt

	UnknownFormat
	TooLarge
)

var kindNames = map[Kind]string{
	Unknown:                "unknown",
	TruncatedBuffer:        "truncated buffer",
	UnsupportedVersion:     "unsupported version",
	LumpSizeMismatch:       "lump size mismatch",
	MalformedEntityBlock:   "malformed entity block",
	UnsupportedSkinType:    "unsupported skin type",
	OutOfRangePaletteIndex: "palette index out of range",
	OutOfRangeNormalIndex:  "normal index out of range",
	Corrupt:                "corrupt data",
	UnknownFormat:          "unknown format",
	TooLarge:               "input too large",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is a decode failure of a known kind.
type Error struct {
	Kind Kind
	Op   string // Operation that failed, e.g. "bsp.Decode".
	Msg  string
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%v: %s", e.Kind, e.Msg)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind, e.Msg)
}

// New returns an error of the given kind, with a stack trace attached.
func New(k Kind, op, format string, args ...interface{}) error {
	return errors.WithStack(&Error{
		Kind: k,
		Op:   op,
		Msg:  fmt.Sprintf(format, args...),
	})
}

// KindOf returns the Kind of the first *Error in err's chain, or Unknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Is returns true if err has kind k.
func Is(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}
