package bsp

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
	"encoding/binary"
	"reflect"
	"testing"

	"github.com/ThomasHabets/qasset/pkg/cursor"
	"github.com/ThomasHabets/qasset/pkg/qerr"
	"github.com/ThomasHabets/qasset/pkg/vec"
)

func le(vals ...interface{}) []byte {
	var b bytes.Buffer
	for _, v := range vals {
		if err := binary.Write(&b, binary.LittleEndian, v); err != nil {
			panic(err)
		}
	}
	return b.Bytes()
}

// buildFile lays out the lumps one after the other after the header.
func buildFile(version int32, lumps [NumLumps][]byte) []byte {
	var hdr, body bytes.Buffer
	binary.Write(&hdr, binary.LittleEndian, version)
	ofs := fileHeaderSize
	for _, l := range lumps {
		binary.Write(&hdr, binary.LittleEndian, [2]int32{int32(ofs), int32(len(l))})
		body.Write(l)
		ofs += len(l)
	}
	return append(hdr.Bytes(), body.Bytes()...)
}

// textureLump builds a texture lump. nil entries become empty slots.
func textureLump(texs ...*Texture) []byte {
	var body bytes.Buffer
	offsets := make([]int32, len(texs))
	start := 4 + 4*len(texs)
	for n, t := range texs {
		if t == nil {
			offsets[n] = unusedMipTexOffset
			continue
		}
		offsets[n] = int32(start + body.Len())
		var name [16]byte
		copy(name[:], t.Name)
		body.Write(le(name, t.Width, t.Height, [4]uint32{fileMiptexSize, fileMiptexSize, fileMiptexSize, fileMiptexSize}))
		body.Write(t.Mip0)
	}
	return le(int32(len(texs)), offsets, body.Bytes())
}

func face(firstEdge int32, numEdges, texInfo uint16) []byte {
	return faceOn(0, 0, firstEdge, numEdges, texInfo)
}

func faceOn(plane, side uint16, firstEdge int32, numEdges, texInfo uint16) []byte {
	return le(plane, side, firstEdge, numEdges, texInfo, [4]uint8{0, 0xff, 0xff, 0xff}, int32(-1))
}

func texInfo(s, t vec.Vec3, sOff, tOff float32, miptex int32) []byte {
	return le(s.Array(), sOff, t.Array(), tOff, miptex, int32(0))
}

func submodel(firstFace, numFaces int32) []byte {
	return le([9]float32{}, [4]int32{}, int32(0), firstFace, numFaces)
}

const testEntities = "{\n\"classname\" \"worldspawn\"\n\"message\" \"Test\"\n}\n{\n\"classname\" \"info_player_start\"\n\"origin\" \"0 0 24\"\n}\n\x00"

// testLumps returns a small level. Face 0 is the quad (0,1,2,3) and face 1
// the triangle (0,1,2), both with the wall texture. The triangle is on the
// back of the plane. Face 2 is the quad again with a sky texture. Submodel 0 is all faces, submodel 1 is face 1.
func testLumps() [NumLumps][]byte {
	var l [NumLumps][]byte
	l[LumpEntities] = []byte(testEntities)
	l[LumpPlanes] = le([3]float32{0, 0, 1}, float32(0), int32(2))
	l[LumpTextures] = textureLump(
		&Texture{Name: "wall", Width: 8, Height: 8, Mip0: bytes.Repeat([]byte{1}, 64)},
		&Texture{Name: "sky1", Width: 4, Height: 2, Mip0: []byte{1, 2, 3, 4, 5, 6, 7, 8}},
		nil,
	)
	l[LumpVertices] = le([]float32{
		0, 0, 0,
		8, 0, 0,
		8, 8, 0,
		0, 8, 0,
	})
	l[LumpVisibility] = []byte{0xff, 0x00}
	l[LumpNodes] = le(int32(0), [2]int16{-1, -2}, [3]int16{0, 0, 0}, [3]int16{8, 8, 0}, uint16(0), uint16(3))
	l[LumpTexInfo] = append(
		texInfo(vec.Vec3{X: 1}, vec.Vec3{Y: 1}, 0, 0, 0),
		texInfo(vec.Vec3{X: 1}, vec.Vec3{Y: 1}, 0, 0, 1)...)
	l[LumpFaces] = bytes.Join([][]byte{
		face(0, 4, 0),
		faceOn(0, 1, 4, 3, 0),
		face(0, 4, 1),
	}, nil)
	l[LumpLighting] = []byte{1, 2, 3, 4}
	l[LumpClipNodes] = le(int32(0), [2]int16{-1, -2})
	l[LumpLeaves] = le(int32(-2), int32(-1), [3]int16{}, [3]int16{}, uint16(0), uint16(0), [4]uint8{})
	l[LumpMarkSurfaces] = le([]uint16{0, 1})
	l[LumpEdges] = le([][2]int16{
		{0, 0},
		{0, 1},
		{1, 2},
		{2, 3},
		{3, 0},
		{0, 2},
	})
	l[LumpSurfedges] = le([]int32{1, 2, 3, 4, 1, 2, -5})
	l[LumpModels] = append(submodel(0, 3), submodel(1, 1)...)
	return l
}

func TestSizes(t *testing.T) {
	for _, test := range []struct {
		name string
		got  int
		want int
	}{
		{"header", fileHeaderSize, 124},
		{"vertex", fileVertexSize, 12},
		{"edge", fileEdgeSize, 4},
		{"surfedge", fileSurfedgeSize, 4},
		{"marksurface", fileMarkSurfaceSize, 2},
		{"plane", filePlaneSize, 20},
		{"face", fileFaceSize, 20},
		{"texinfo", fileTexInfoSize, 40},
		{"leaf", fileLeafSize, 28},
		{"node", fileNodeSize, 24},
		{"clipnode", fileClipNodeSize, 8},
		{"model", fileModelSize, 64},
		{"miptex", fileMiptexSize, 40},
	} {
		if test.got != test.want {
			t.Errorf("Size of %q: got %v, want %v", test.name, test.got, test.want)
		}
	}
}

func TestDecode(t *testing.T) {
	m, err := Decode(buildFile(Version, testLumps()))
	if err != nil {
		t.Fatal(err)
	}
	for _, test := range []struct {
		name      string
		got, want int
	}{
		{"vertices", len(m.Vertices), 4},
		{"edges", len(m.Edges), 6},
		{"surfedges", len(m.Surfedges), 7},
		{"faces", len(m.Faces), 3},
		{"planes", len(m.Planes), 1},
		{"texinfos", len(m.TexInfos), 2},
		{"leaves", len(m.Leaves), 1},
		{"nodes", len(m.Nodes), 1},
		{"clipnodes", len(m.ClipNodes), 1},
		{"submodels", len(m.Submodels), 2},
		{"marksurfaces", len(m.MarkSurfaces), 2},
		{"textures", len(m.Textures), 3},
		{"entity groups", len(m.EntityGroups), 2},
		{"lighting", len(m.LightData), 4},
		{"visibility", len(m.VisData), 2},
	} {
		if test.got != test.want {
			t.Errorf("%s: got %d, want %d", test.name, test.got, test.want)
		}
	}
	if got, want := m.Vertices[2], (vec.Vec3{X: 8, Y: 8}); got != want {
		t.Errorf("vertex 2: got %v, want %v", got, want)
	}
	if got, want := m.Faces[1], (Face{Side: 1, FirstEdge: 4, NumEdges: 3, Styles: [4]uint8{0, 0xff, 0xff, 0xff}, LightOfs: -1}); got != want {
		t.Errorf("face 1: got %+v, want %+v", got, want)
	}
	if got, want := m.Edges[5].Second(), 2; got != want {
		t.Errorf("edge 5 second: got %d, want %d", got, want)
	}
	if got, want := m.Submodels[1].FirstFace, int32(1); got != want {
		t.Errorf("submodel 1 first face: got %d, want %d", got, want)
	}
	if got, want := m.Planes[0].Type, int32(2); got != want {
		t.Errorf("plane type: got %d, want %d", got, want)
	}
	if m.Textures[2] != nil {
		t.Errorf("texture 2: got %+v, want empty slot", m.Textures[2])
	}
	if got, want := m.Textures[1].Name, "sky1"; got != want {
		t.Errorf("texture 1 name: got %q, want %q", got, want)
	}
	if got, want := len(m.Textures[0].Mip0), 64; got != want {
		t.Errorf("texture 0 mip0: got %d bytes, want %d", got, want)
	}
	if m.Entities[len(m.Entities)-1] == 0 {
		t.Errorf("entity string has trailing NUL")
	}
	if !m.IsLevel() {
		t.Errorf("IsLevel: got false")
	}
}

func TestDecodeCopies(t *testing.T) {
	data := buildFile(Version, testLumps())
	m, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	before := m.Textures[1].Mip0[0]
	for i := range data {
		data[i] = 0xAA
	}
	if m.Textures[1].Mip0[0] != before || m.LightData[0] != 1 {
		t.Errorf("decoded model shares memory with input")
	}
}

func TestDecodeVersion(t *testing.T) {
	for _, v := range []int32{0, 28, 30, 38} {
		m, err := Decode(buildFile(v, testLumps()))
		if !qerr.Is(err, qerr.UnsupportedVersion) {
			t.Errorf("version %d: got %v, want UnsupportedVersion", v, err)
		}
		if m != nil {
			t.Errorf("version %d: got model with error", v)
		}
	}
}

func TestDecodeErrors(t *testing.T) {
	good := buildFile(Version, testLumps())
	for _, test := range []struct {
		name string
		data []byte
		kind qerr.Kind
	}{
		{"empty", nil, qerr.TruncatedBuffer},
		{"short header", good[:fileHeaderSize-1], qerr.TruncatedBuffer},
		{"truncated", good[:len(good)-1], qerr.TruncatedBuffer},
		{"face lump size", func() []byte {
			l := testLumps()
			l[LumpFaces] = append(l[LumpFaces], 0)
			return buildFile(Version, l)
		}(), qerr.LumpSizeMismatch},
		{"edge lump size", func() []byte {
			l := testLumps()
			l[LumpEdges] = l[LumpEdges][:len(l[LumpEdges])-1]
			return buildFile(Version, l)
		}(), qerr.LumpSizeMismatch},
		{"bad entities", func() []byte {
			l := testLumps()
			l[LumpEntities] = []byte(`{ "classname" }`)
			return buildFile(Version, l)
		}(), qerr.MalformedEntityBlock},
		{"texture past lump", func() []byte {
			l := testLumps()
			l[LumpTextures] = l[LumpTextures][:len(l[LumpTextures])-10]
			return buildFile(Version, l)
		}(), qerr.TruncatedBuffer},
		{"texture count", func() []byte {
			l := testLumps()
			l[LumpTextures] = le(int32(1000))
			return buildFile(Version, l)
		}(), qerr.TruncatedBuffer},
	} {
		m, err := Decode(test.data)
		if k := qerr.KindOf(err); k != test.kind {
			t.Errorf("%s: got error %v, want kind %v", test.name, err, test.kind)
		}
		if m != nil {
			t.Errorf("%s: got model with error", test.name)
		}
	}
}

func TestDecodeLump(t *testing.T) {
	data := make([]byte, 100)
	for _, test := range []struct {
		lump Lump
		n    int
		kind qerr.Kind
	}{
		{Lump{0, 0}, 0, qerr.Unknown},
		{Lump{10, fileVertexSize - 1}, 0, qerr.LumpSizeMismatch},
		{Lump{10, fileVertexSize}, 1, qerr.Unknown},
		{Lump{4, 8 * fileVertexSize}, 8, qerr.Unknown},
		{Lump{4, 8*fileVertexSize + 1}, 0, qerr.LumpSizeMismatch},
		{Lump{90, fileVertexSize}, 0, qerr.TruncatedBuffer},
		{Lump{-12, fileVertexSize}, 0, qerr.TruncatedBuffer},
	} {
		got, err := DecodeLump(data, test.lump, fileVertexSize, readVertex)
		if k := qerr.KindOf(err); k != test.kind {
			t.Errorf("%+v: got error %v, want kind %v", test.lump, err, test.kind)
			continue
		}
		if len(got) != test.n {
			t.Errorf("%+v: got %d elements, want %d", test.lump, len(got), test.n)
		}
	}

	// Every length gives length/size elements or a mismatch.
	for _, size := range []int{fileEdgeSize, filePlaneSize, fileFaceSize, fileLeafSize, fileModelSize} {
		for length := 0; length <= 100; length++ {
			got, err := DecodeLump(data, Lump{0, int32(length)}, size, func(f *cursor.Fields) byte {
				f.Uint8()
				return 0
			})
			if length%size != 0 {
				if !qerr.Is(err, qerr.LumpSizeMismatch) {
					t.Errorf("size %d length %d: got %v, want LumpSizeMismatch", size, length, err)
				}
				continue
			}
			if err != nil || len(got) != length/size {
				t.Errorf("size %d length %d: got %d elements, %v", size, length, len(got), err)
			}
		}
	}
}

func TestFaceLoop(t *testing.T) {
	m, err := Decode(buildFile(Version, testLumps()))
	if err != nil {
		t.Fatal(err)
	}
	for _, test := range []struct {
		face int
		want []int
	}{
		{0, []int{0, 1, 2, 3}},
		{1, []int{0, 1, 2}},
	} {
		got, err := m.FaceLoop(test.face)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(got, test.want) {
			t.Errorf("face %d: got %v, want %v", test.face, got, test.want)
		}
	}

	m.Surfedges[6] = -100
	if _, err := m.FaceLoop(1); !qerr.Is(err, qerr.Corrupt) {
		t.Errorf("bad surfedge: got %v, want Corrupt", err)
	}
	m.Faces[1].FirstEdge = 6
	if _, err := m.FaceLoop(1); !qerr.Is(err, qerr.Corrupt) {
		t.Errorf("surfedges past end: got %v, want Corrupt", err)
	}
	if _, err := m.FaceLoop(3); !qerr.Is(err, qerr.Corrupt) {
		t.Errorf("face out of range: got %v, want Corrupt", err)
	}
}

func TestTriangulate(t *testing.T) {
	m, err := Decode(buildFile(Version, testLumps()))
	if err != nil {
		t.Fatal(err)
	}

	tris, err := Triangulate(m, 0)
	if err != nil {
		t.Fatal(err)
	}
	var got [][3]int
	for _, tri := range tris {
		got = append(got, tri.Indices)
		if tri.Face == 2 {
			t.Errorf("sky face was triangulated")
		}
	}
	want := [][3]int{
		{0, 1, 2}, // Quad, first half.
		{0, 2, 3}, // Quad, second half.
		{0, 1, 2}, // Triangle.
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("submodel 0: got %v, want %v", got, want)
	}
	if got, want := tris[0].UV, [3]UV{{0, 0}, {1, 0}, {1, 1}}; got != want {
		t.Errorf("UV: got %v, want %v", got, want)
	}
	for n, want := range []vec.Vec3{{Z: 1}, {Z: 1}, {Z: -1}} {
		if got := tris[n].Normal; got != want {
			t.Errorf("triangle %d normal: got %v, want %v", n, got, want)
		}
	}

	tris, err = Triangulate(m, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(tris) != 1 || tris[0].Indices != [3]int{0, 1, 2} || tris[0].Face != 1 {
		t.Errorf("submodel 1: got %+v, want one triangle equal to the loop", tris)
	}

	if _, err := Triangulate(m, 2); !qerr.Is(err, qerr.Corrupt) {
		t.Errorf("submodel 2: got %v, want Corrupt", err)
	}

	m.Textures[0] = nil
	tris, err = Triangulate(m, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := tris[0].UV, [3]UV{{0, 0}, {8, 0}, {8, 8}}; got != want {
		t.Errorf("empty texture slot UV: got %v, want %v", got, want)
	}

	m.Faces[1].PlaneNum = 1
	if _, err := m.FaceNormal(1); !qerr.Is(err, qerr.Corrupt) {
		t.Errorf("bad plane: got %v, want Corrupt", err)
	}
	if _, err := Triangulate(m, 1); !qerr.Is(err, qerr.Corrupt) {
		t.Errorf("bad plane in submodel: got %v, want Corrupt", err)
	}
}

func TestUVOffsets(t *testing.T) {
	ti := TexInfo{S: vec.Vec3{X: 1}, SOffset: 4, T: vec.Vec3{Z: -1}, TOffset: 2}
	tex := &Texture{Width: 8, Height: 4}
	if got, want := projectUV(vec.Vec3{X: 4, Y: 100, Z: 2}, ti, tex), (UV{U: 1, V: 0}); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := projectUV(vec.Vec3{X: 4}, ti, nil), (UV{U: 8, V: 2}); got != want {
		t.Errorf("no texture: got %v, want %v", got, want)
	}
}

func TestMesh(t *testing.T) {
	m, err := Decode(buildFile(Version, testLumps()))
	if err != nil {
		t.Fatal(err)
	}
	mesh, err := m.Mesh(0)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := len(mesh.Vertices), 4; got != want {
		t.Errorf("vertices: got %d, want %d", got, want)
	}
	if got, want := len(mesh.Triangles), 3; got != want {
		t.Errorf("triangles: got %d, want %d", got, want)
	}
	for _, tri := range mesh.Triangles {
		for _, i := range tri.Indices {
			if i >= len(mesh.Vertices) {
				t.Errorf("index %d out of range", i)
			}
		}
	}
}

func TestSky(t *testing.T) {
	tex := &Texture{Name: "sky4", Width: 4, Height: 2, Mip0: []byte{1, 2, 3, 4, 5, 6, 7, 8}}
	if !tex.IsSky() {
		t.Errorf("IsSky(%q): got false", tex.Name)
	}
	front, back := tex.SplitSky()
	if !bytes.Equal(front, []byte{1, 2, 5, 6}) || !bytes.Equal(back, []byte{3, 4, 7, 8}) {
		t.Errorf("SplitSky: got %v %v", front, back)
	}
	if (&Texture{Name: "*water0"}).IsSky() {
		t.Errorf("IsSky(*water0): got true")
	}
}

func TestFlipbooks(t *testing.T) {
	tex := func(name string, w uint32) *Texture {
		return &Texture{Name: name, Width: w, Height: 1, Mip0: bytes.Repeat([]byte(name[1:2]), int(w))}
	}
	fbs := Flipbooks([]*Texture{
		tex("+1slip", 2),
		tex("+0slip", 2),
		nil,
		tex("+2slip", 2),
		tex("+4slip", 2),
		tex("+0exit", 2),
		tex("+1exit", 4),
		tex("+asw", 2),
		tex("wall", 2),
	})
	if len(fbs) != 2 {
		t.Fatalf("got %d flipbooks, want 2", len(fbs))
	}
	if got, want := fbs[0].Name, "+0slip"; got != want {
		t.Errorf("name: got %q, want %q", got, want)
	}
	if got, want := len(fbs[0].Frames), 3; got != want {
		t.Errorf("+0slip frames: got %d, want %d", got, want)
	}
	if got, want := fbs[0].Atlas(), []byte("001122"); !bytes.Equal(got, want) {
		t.Errorf("atlas: got %q, want %q", got, want)
	}
	if got, want := len(fbs[1].Frames), 1; got != want {
		t.Errorf("+0exit frames: got %d, want %d", got, want)
	}
	if fbs[0].Width() != 2 || fbs[0].Height() != 1 {
		t.Errorf("frame size: got %dx%d", fbs[0].Width(), fbs[0].Height())
	}
}
