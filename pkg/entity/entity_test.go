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
	"reflect"
	"testing"

	"github.com/ThomasHabets/qasset/pkg/qerr"
	"github.com/ThomasHabets/qasset/pkg/vec"
)

func TestParseAll(t *testing.T) {
	for _, test := range []struct {
		name    string
		in      string
		classes []string
		kind    qerr.Kind
	}{
		{"light", `{ "classname" "light" "light" "200" }`, []string{"light"}, qerr.Unknown},
		{"empty", ``, nil, qerr.Unknown},
		{"no close", `{ "classname" "light"`, nil, qerr.Unknown},
		{"second unclosed", "{\n\"classname\" \"worldspawn\"\n}\n{ \"classname\" \"light\"", []string{"worldspawn"}, qerr.Unknown},
		{"two", "{\n\"classname\" \"worldspawn\"\n}\n{\n\"classname\" \"info_player_start\"\n\"origin\" \"1 2 3\"\n}\n\x00", []string{"worldspawn", "info_player_start"}, qerr.Unknown},
		{"empty block", `{}`, []string{""}, qerr.Unknown},
		{"odd", `{ "classname" "light" "light" }`, nil, qerr.MalformedEntityBlock},
		{"unterminated quote", `{ "classname" "light }`, nil, qerr.MalformedEntityBlock},
	} {
		groups, err := ParseAll(test.in)
		if k := qerr.KindOf(err); k != test.kind {
			t.Errorf("%s: got error %v, want kind %v", test.name, err, test.kind)
			continue
		}
		var got []string
		for _, g := range groups {
			got = append(got, g.Classname())
		}
		if !reflect.DeepEqual(got, test.classes) {
			t.Errorf("%s: got classes %q, want %q", test.name, got, test.classes)
		}
	}
}

func TestLightEntity(t *testing.T) {
	groups, err := ParseAll(`{ "classname" "light" "light" "200" }`)
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 1 {
		t.Fatalf("got %d groups, want 1", len(groups))
	}
	g := groups[0]
	if got, want := g.Keys(), []string{"classname", "light"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Keys: got %q, want %q", got, want)
	}
	v, ok := g.Get("light")
	if !ok {
		t.Fatalf("light not set")
	}
	if got, want := v.Int(), 200; got != want {
		t.Errorf("light: got %d, want %d", got, want)
	}
}

func TestUnknownKeysDropped(t *testing.T) {
	groups, err := ParseAll(`{ "classname" "func_door" "targetname" "t1" "_color" "1 0 0" "wait" "-1" }`)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := groups[0].Keys(), []string{"classname", "wait"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Keys: got %q, want %q", got, want)
	}
	if _, ok := groups[0].Get("targetname"); ok {
		t.Errorf("targetname was kept")
	}
	if Known("targetname") || !Known("origin") {
		t.Errorf("Known() disagrees with the allow-list")
	}
}

func TestScannerStops(t *testing.T) {
	s := NewScanner(`{ "classname" "a" } { "x" } { "classname" "b" }`)
	if !s.Scan() {
		t.Fatalf("first Scan failed: %v", s.Err())
	}
	if s.Scan() {
		t.Fatalf("second Scan succeeded on a malformed block")
	}
	if !qerr.Is(s.Err(), qerr.MalformedEntityBlock) {
		t.Errorf("Err: got %v", s.Err())
	}
	if s.Scan() {
		t.Errorf("Scan after error succeeded")
	}
}

func TestValue(t *testing.T) {
	for _, test := range []struct {
		in     string
		tokens int
		f      float32
		i      int
		v      vec.Vec3
	}{
		{"", 0, 0, 0, vec.Vec3{}},
		{"200", 1, 200, 200, vec.Vec3{}},
		{"  1.5   2  ", 2, 1.5, 1, vec.Vec3{}},
		{"-1", 1, -1, -1, vec.Vec3{}},
		{"480 -352 88", 3, 480, 480, vec.Vec3{X: -480, Y: -352, Z: 88}},
		{"1 2 3 4", 4, 1, 1, vec.Vec3{X: -1, Y: 2, Z: 3}},
		{"abc", 1, 0, 0, vec.Vec3{}},
		{"12abc", 1, 12, 12, vec.Vec3{}},
	} {
		v := NewValue(test.in)
		if got := v.String(); got != test.in {
			t.Errorf("%q String: got %q", test.in, got)
		}
		if got := len(v.Tokens()); got != test.tokens {
			t.Errorf("%q Tokens: got %d, want %d", test.in, got, test.tokens)
		}
		if got := v.Float(); got != test.f {
			t.Errorf("%q Float: got %v, want %v", test.in, got, test.f)
		}
		if got := v.Int(); got != test.i {
			t.Errorf("%q Int: got %v, want %v", test.in, got, test.i)
		}
		if got := v.Vector(); got != test.v {
			t.Errorf("%q Vector: got %v, want %v", test.in, got, test.v)
		}
	}
}

func TestPlayerStart(t *testing.T) {
	groups, err := ParseAll(`{ "classname" "worldspawn" } { "classname" "info_player_start" "origin" "0 0 0" } { "classname" "light" }`)
	if err != nil {
		t.Fatal(err)
	}
	if !HasPlayerStart(groups) {
		t.Errorf("HasPlayerStart: got false")
	}
	if got := len(FindClass(groups, ClassLight)); got != 1 {
		t.Errorf("FindClass(light): got %d, want 1", got)
	}
	if HasPlayerStart(groups[:1]) {
		t.Errorf("HasPlayerStart on worldspawn only: got true")
	}
}
