// Package entity parses the entity text found in BSP files.
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
// Entities is a big string with a list of key values per entity. E.g.:
//   {
//     "classname" "light"
//     "origin" "1 2 3"
//   }
//   {
//     "classname" "weapon_shotgun"
//     "origin" "4 5 6"
//   }
//
// Blocks don't nest. A block runs from a '{' to the next '}', whatever is
// between them.
package entity

import (
	"sort"
	"strings"

	"github.com/ThomasHabets/qasset/pkg/qerr"
)

const (
	ClassPlayerStart = "info_player_start"
	ClassLight       = "light"
)

// Keys that are kept. Everything else is dropped while parsing.
var knownKeys = map[string]bool{
	"angle":      true,
	"classname":  true,
	"light":      true,
	"message":    true,
	"model":      true,
	"origin":     true,
	"spawnflags": true,
	"sound":      true,
	"speed":      true,
	"wait":       true,
}

// Known returns true if key is kept by the parser.
func Known(key string) bool {
	return knownKeys[key]
}

// A Group is the set of attributes of one entity.
type Group struct {
	attrs map[string]Value
}

func (g *Group) set(key, value string) {
	if !knownKeys[key] {
		return
	}
	if g.attrs == nil {
		g.attrs = make(map[string]Value)
	}
	g.attrs[key] = NewValue(value)
}

// Get returns the value of key, if set.
func (g Group) Get(key string) (Value, bool) {
	v, ok := g.attrs[key]
	return v, ok
}

// Keys returns the set keys, sorted.
func (g Group) Keys() []string {
	var ret []string
	for k := range g.attrs {
		ret = append(ret, k)
	}
	sort.Strings(ret)
	return ret
}

func (g Group) Len() int {
	return len(g.attrs)
}

// Classname returns the classname attribute, or "".
func (g Group) Classname() string {
	return g.attrs["classname"].String()
}

// Scanner lazily splits entity text into Groups.
// A Scanner is single use.
type Scanner struct {
	rest  string
	group Group
	err   error
	done  bool
}

func NewScanner(text string) *Scanner {
	return &Scanner{rest: text}
}

// Scan advances to the next group. It returns false at the end of the
// text, on a '{' with no matching '}', or on error.
func (s *Scanner) Scan() bool {
	if s.done {
		return false
	}
	open := strings.IndexByte(s.rest, '{')
	if open < 0 {
		s.done = true
		return false
	}
	body := s.rest[open+1:]
	end := strings.IndexByte(body, '}')
	if end < 0 {
		s.done = true
		return false
	}
	s.rest = body[end+1:]
	g, err := parseBlock(body[:end])
	if err != nil {
		s.err = err
		s.done = true
		return false
	}
	s.group = g
	return true
}

// Group returns the group found by the last successful Scan.
func (s *Scanner) Group() Group {
	return s.group
}

// Err returns the first error encountered, if any.
func (s *Scanner) Err() error {
	return s.err
}

// parseBlock pairs up the quoted strings of one block as keys and values.
func parseBlock(block string) (Group, error) {
	var tokens []string
	rest := block
	for {
		open := strings.IndexByte(rest, '"')
		if open < 0 {
			break
		}
		rest = rest[open+1:]
		end := strings.IndexByte(rest, '"')
		if end < 0 {
			return Group{}, qerr.New(qerr.MalformedEntityBlock, "entity.Parse", "unterminated quote in block %q", block)
		}
		tokens = append(tokens, rest[:end])
		rest = rest[end+1:]
	}
	if len(tokens)%2 != 0 {
		return Group{}, qerr.New(qerr.MalformedEntityBlock, "entity.Parse", "odd number of tokens (%d) in block %q", len(tokens), block)
	}
	var g Group
	for i := 0; i < len(tokens); i += 2 {
		g.set(tokens[i], tokens[i+1])
	}
	return g, nil
}

// ParseAll parses every group in text.
func ParseAll(text string) ([]Group, error) {
	var ret []Group
	s := NewScanner(text)
	for s.Scan() {
		ret = append(ret, s.Group())
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

// FindClass returns the groups with the given classname.
func FindClass(groups []Group, classname string) []Group {
	var ret []Group
	for _, g := range groups {
		if g.Classname() == classname {
			ret = append(ret, g)
		}
	}
	return ret
}

// HasPlayerStart returns true if there's a player start point.
// BSPs without one are not levels, but things like ammo boxes.
func HasPlayerStart(groups []Group) bool {
	return len(FindClass(groups, ClassPlayerStart)) > 0
}
