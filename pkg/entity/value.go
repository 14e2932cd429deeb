package entity

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
	"regexp"
	"strconv"
	"strings"

	"github.com/ThomasHabets/qasset/pkg/vec"
)

// Leading number of a token, the way atof() sees it.
var numberRE = regexp.MustCompile(`^[-+]?([0-9]+\.?[0-9]*|\.[0-9]+)([eE][-+]?[0-9]+)?`)

// A Value is an attribute value, with its whitespace separated tokens.
type Value struct {
	raw    string
	tokens []string
}

func NewValue(s string) Value {
	return Value{
		raw:    s,
		tokens: strings.Fields(s),
	}
}

func (v Value) String() string {
	return v.raw
}

// Tokens returns the whitespace separated parts of the value.
func (v Value) Tokens() []string {
	return v.tokens
}

func parseFloat32(s string) float32 {
	m := numberRE.FindString(s)
	if m == "" {
		return 0
	}
	f, err := strconv.ParseFloat(m, 32)
	if err != nil {
		return 0
	}
	return float32(f)
}

// Float returns the first token as a number, or 0.
func (v Value) Float() float32 {
	if len(v.tokens) == 0 {
		return 0
	}
	return parseFloat32(v.tokens[0])
}

// Int returns the first token as an integer, or 0. "200.7" is 200.
func (v Value) Int() int {
	if len(v.tokens) == 0 {
		return 0
	}
	if i, err := strconv.Atoi(v.tokens[0]); err == nil {
		return i
	}
	return int(parseFloat32(v.tokens[0]))
}

// Vector returns the first three tokens as a position, with X negated.
// Fewer than three tokens gives the zero vector.
func (v Value) Vector() vec.Vec3 {
	if len(v.tokens) < 3 {
		return vec.Vec3{}
	}
	return vec.Vec3{
		X: -parseFloat32(v.tokens[0]),
		Y: parseFloat32(v.tokens[1]),
		Z: parseFloat32(v.tokens[2]),
	}
}
