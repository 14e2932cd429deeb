// Package mdl loads Quake alias models (MDL version 6).
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
// References:
// * http://tfc.duke.free.fr/coding/mdl-specs-en.html
package mdl

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/ThomasHabets/qasset/pkg/cursor"
	"github.com/ThomasHabets/qasset/pkg/qerr"
	"github.com/ThomasHabets/qasset/pkg/vec"
)

const (
	Version = 6
	magic   = 1330660425 // "IDPO"

	fileHeaderSize       = 4 + 4 + 3*4 + 3*4 + 4 + 3*4 + 8*4 + 4
	fileTexCoordSize     = 3 * 4
	fileTriangleSize     = 4 + 3*4
	filePackedVertexSize = 4
	frameNameSize        = 16
	skinTagSize          = 4

	// Only static skins are supported.
	skinTypeSingle = 0

	frameTypeSingle = 0
)

// Header is the first thing in the file.
type Header struct {
	Ident      int32
	Version    int32
	Scale      vec.Vec3
	Origin     vec.Vec3 // Translation of packed vertices.
	Radius     float32
	EyeOffset  vec.Vec3
	NumSkins   int32
	SkinWidth  int32
	SkinHeight int32
	NumVerts   int32
	NumTris    int32
	NumFrames  int32
	SyncType   int32 // 0 = synchron, 1 = random.
	Flags      int32
	Size       float32
}

// TexCoord is the skin position of one model vertex.
type TexCoord struct {
	OnSeam int32 // 0 or 0x20.
	S, T   int32 // In texels.
}

type Triangle struct {
	FrontFacing bool
	Indices     [3]int32 // Vertex indices.
}

type FrameKind int

const (
	FrameSingle FrameKind = iota
	FrameGroup
)

func (k FrameKind) String() string {
	switch k {
	case FrameSingle:
		return "single"
	case FrameGroup:
		return "group"
	}
	return fmt.Sprintf("FrameKind(%d)", int(k))
}

// A Pose is one set of positions for all vertices of the model.
type Pose struct {
	Points []PackedVertex
}

// A Frame is a named animation step, made of one or more poses.
type Frame struct {
	Kind      FrameKind
	Name      string
	FirstPose int     // Index into Model.Poses.
	NumPoses  int     // At least 1.
	Interval  float32 // First interval of a group. 0 for single frames.
	BBoxMin   PackedVertex
	BBoxMax   PackedVertex
}

// Model is a decoded MDL file.
type Model struct {
	Scale      vec.Vec3
	Origin     vec.Vec3
	EyeOffset  vec.Vec3
	Radius     float32
	SkinWidth  int32
	SkinHeight int32
	SyncType   int32
	Flags      int32
	NumVerts   int

	Skins     [][]byte // Palette indices, SkinWidth*SkinHeight each.
	TexCoords []TexCoord
	Triangles []Triangle
	Frames    []Frame
	Poses     []Pose
}

// sections are the file offsets of the parts of the file. The format has
// no directory, so they are computed from the header counts.
type sections struct {
	skins     int64
	skinSize  int64 // Pixel bytes per skin.
	texCoords int64
	triangles int64
	frames    int64
}

// layout computes where each section starts, and checks that they are
// inside a file of fileSize bytes.
func layout(h Header, fileSize int) (sections, error) {
	const op = "mdl.layout"
	for _, c := range []struct {
		name string
		n    int32
	}{
		{"skins", h.NumSkins},
		{"skin width", h.SkinWidth},
		{"skin height", h.SkinHeight},
		{"vertices", h.NumVerts},
		{"triangles", h.NumTris},
		{"frames", h.NumFrames},
	} {
		if c.n < 0 {
			return sections{}, qerr.New(qerr.TruncatedBuffer, op, "negative number of %s: %d", c.name, c.n)
		}
	}
	size := int64(fileSize)
	var s sections
	s.skins = fileHeaderSize
	s.skinSize = int64(h.SkinWidth) * int64(h.SkinHeight)
	if s.skinSize > size {
		return sections{}, qerr.New(qerr.TruncatedBuffer, op, "skin of %dx%d larger than file of %d bytes", h.SkinWidth, h.SkinHeight, fileSize)
	}
	s.texCoords = s.skins + int64(h.NumSkins)*(skinTagSize+s.skinSize)
	s.triangles = s.texCoords + int64(h.NumVerts)*fileTexCoordSize
	s.frames = s.triangles + int64(h.NumTris)*fileTriangleSize
	for _, o := range []struct {
		name string
		ofs  int64
	}{
		{"texcoords", s.texCoords},
		{"triangles", s.triangles},
		{"frames", s.frames},
	} {
		if o.ofs > size {
			return sections{}, qerr.New(qerr.TruncatedBuffer, op, "%s section at %d past end of file of %d bytes", o.name, o.ofs, fileSize)
		}
	}
	return s, nil
}

func readHeader(c *cursor.Cursor) (Header, error) {
	f := c.Fields()
	h := Header{
		Ident:      f.Int32(),
		Version:    f.Int32(),
		Scale:      f.Vec3(),
		Origin:     f.Vec3(),
		Radius:     f.Float32(),
		EyeOffset:  f.Vec3(),
		NumSkins:   f.Int32(),
		SkinWidth:  f.Int32(),
		SkinHeight: f.Int32(),
		NumVerts:   f.Int32(),
		NumTris:    f.Int32(),
		NumFrames:  f.Int32(),
		SyncType:   f.Int32(),
		Flags:      f.Int32(),
		Size:       f.Float32(),
	}
	return h, f.Err()
}

func readPackedVertex(f *cursor.Fields) PackedVertex {
	return PackedVertex{
		X:           f.Uint8(),
		Y:           f.Uint8(),
		Z:           f.Uint8(),
		NormalIndex: f.Uint8(),
	}
}

// readPose reads n packed vertices.
func readPose(c *cursor.Cursor, n int) (Pose, error) {
	if n*filePackedVertexSize > c.Remaining() {
		return Pose{}, qerr.New(qerr.TruncatedBuffer, "mdl.readPose", "pose of %d vertices at %d past end of file", n, c.Pos())
	}
	p := Pose{Points: make([]PackedVertex, n)}
	f := c.Fields()
	for i := range p.Points {
		p.Points[i] = readPackedVertex(f)
	}
	if err := f.Err(); err != nil {
		return Pose{}, err
	}
	for i, v := range p.Points {
		if int(v.NormalIndex) >= NumNormals {
			return Pose{}, qerr.New(qerr.OutOfRangeNormalIndex, "mdl.readPose", "vertex %d normal index %d out of range [0,%d)", i, v.NormalIndex, NumNormals)
		}
	}
	return p, nil
}

// readFrameHeader reads the bounding box and name that start every pose.
func readFrameHeader(c *cursor.Cursor) (PackedVertex, PackedVertex, string, error) {
	f := c.Fields()
	bboxMin := readPackedVertex(f)
	bboxMax := readPackedVertex(f)
	name := f.Name(frameNameSize)
	return bboxMin, bboxMax, name, f.Err()
}

// Decode loads an MDL file from memory. The returned model does not reference data.
func Decode(data []byte) (*Model, error) {
	const op = "mdl.Decode"
	c := cursor.New(data)
	h, err := readHeader(c)
	if err != nil {
		return nil, errors.Wrap(err, "reading header")
	}
	if h.Ident != magic {
		return nil, qerr.New(qerr.UnknownFormat, op, "bad magic %08x, want %08x", uint32(h.Ident), magic)
	}
	if h.Version != Version {
		return nil, qerr.New(qerr.UnsupportedVersion, op, "wrong version %d, only %d supported", h.Version, Version)
	}
	s, err := layout(h, len(data))
	if err != nil {
		return nil, err
	}

	m := &Model{
		Scale:      h.Scale,
		Origin:     h.Origin,
		EyeOffset:  h.EyeOffset,
		Radius:     h.Radius,
		SkinWidth:  h.SkinWidth,
		SkinHeight: h.SkinHeight,
		SyncType:   h.SyncType,
		Flags:      h.Flags,
		NumVerts:   int(h.NumVerts),
	}

	// Load skins.
	if err := c.Seek(int(s.skins)); err != nil {
		return nil, err
	}
	for i := 0; i < int(h.NumSkins); i++ {
		typ, err := c.ReadInt32()
		if err != nil {
			return nil, errors.Wrapf(err, "skin %d", i)
		}
		if typ != skinTypeSingle {
			return nil, qerr.New(qerr.UnsupportedSkinType, op, "skin %d has type %d, only static skins supported", i, typ)
		}
		skin, err := c.ReadBytes(int(s.skinSize))
		if err != nil {
			return nil, errors.Wrapf(err, "skin %d", i)
		}
		m.Skins = append(m.Skins, skin)
	}

	// Load texcoords.
	if err := c.Seek(int(s.texCoords)); err != nil {
		return nil, err
	}
	m.TexCoords = make([]TexCoord, h.NumVerts)
	f := c.Fields()
	for i := range m.TexCoords {
		m.TexCoords[i] = TexCoord{
			OnSeam: f.Int32(),
			S:      f.Int32(),
			T:      f.Int32(),
		}
	}
	if err := f.Err(); err != nil {
		return nil, errors.Wrap(err, "texcoords")
	}

	// Load triangles.
	if err := c.Seek(int(s.triangles)); err != nil {
		return nil, err
	}
	m.Triangles = make([]Triangle, h.NumTris)
	f = c.Fields()
	for i := range m.Triangles {
		m.Triangles[i] = Triangle{
			FrontFacing: f.Int32() != 0,
			Indices:     [3]int32{f.Int32(), f.Int32(), f.Int32()},
		}
	}
	if err := f.Err(); err != nil {
		return nil, errors.Wrap(err, "triangles")
	}
	for i, t := range m.Triangles {
		for _, v := range t.Indices {
			if v < 0 || v >= h.NumVerts {
				return nil, qerr.New(qerr.Corrupt, op, "triangle %d vertex %d out of range [0,%d)", i, v, h.NumVerts)
			}
		}
	}

	// Load frames.
	if err := c.Seek(int(s.frames)); err != nil {
		return nil, err
	}
	if int(h.NumFrames) > c.Remaining()/4 {
		return nil, qerr.New(qerr.TruncatedBuffer, op, "%d frames don't fit in %d bytes", h.NumFrames, c.Remaining())
	}
	for i := 0; i < int(h.NumFrames); i++ {
		if err := m.readFrame(c); err != nil {
			return nil, errors.Wrapf(err, "frame %d", i)
		}
	}
	return m, nil
}

// readFrame reads one single frame or frame group, and appends it and its
// poses to the model.
func (m *Model) readFrame(c *cursor.Cursor) error {
	const op = "mdl.readFrame"
	typ, err := c.ReadInt32()
	if err != nil {
		return err
	}
	if typ == frameTypeSingle {
		bboxMin, bboxMax, name, err := readFrameHeader(c)
		if err != nil {
			return err
		}
		pose, err := readPose(c, m.NumVerts)
		if err != nil {
			return errors.Wrapf(err, "frame %q", name)
		}
		m.Frames = append(m.Frames, Frame{
			Kind:      FrameSingle,
			Name:      name,
			FirstPose: len(m.Poses),
			NumPoses:  1,
			BBoxMin:   bboxMin,
			BBoxMax:   bboxMax,
		})
		m.Poses = append(m.Poses, pose)
		return nil
	}

	f := c.Fields()
	num := f.Int32()
	fr := Frame{
		Kind:      FrameGroup,
		FirstPose: len(m.Poses),
		BBoxMin:   readPackedVertex(f),
		BBoxMax:   readPackedVertex(f),
	}
	if err := f.Err(); err != nil {
		return err
	}
	if num < 1 {
		return qerr.New(qerr.Corrupt, op, "frame group with %d poses", num)
	}
	if int(num) > c.Remaining()/4 {
		return qerr.New(qerr.TruncatedBuffer, op, "%d intervals don't fit in %d bytes", num, c.Remaining())
	}
	fr.NumPoses = int(num)

	// Only the first interval is kept.
	for i := 0; i < int(num); i++ {
		v, err := c.ReadFloat32()
		if err != nil {
			return err
		}
		if i == 0 {
			fr.Interval = v
		}
	}
	for i := 0; i < int(num); i++ {
		_, _, name, err := readFrameHeader(c)
		if err != nil {
			return errors.Wrapf(err, "group pose %d", i)
		}
		if i == 0 {
			fr.Name = name
		}
		pose, err := readPose(c, m.NumVerts)
		if err != nil {
			return errors.Wrapf(err, "group pose %d (%q)", i, name)
		}
		m.Poses = append(m.Poses, pose)
	}
	m.Frames = append(m.Frames, fr)
	return nil
}

// SkinUV returns the skin coordinate of one corner of a triangle, in units
// of the skin size. Vertices on the seam use the right half of the skin
// when seen from the back.
func (m *Model) SkinUV(tri, corner int) (u, v float32, err error) {
	const op = "mdl.SkinUV"
	if tri < 0 || tri >= len(m.Triangles) || corner < 0 || corner > 2 {
		return 0, 0, qerr.New(qerr.Corrupt, op, "triangle %d corner %d out of range", tri, corner)
	}
	if m.SkinWidth <= 0 || m.SkinHeight <= 0 {
		return 0, 0, qerr.New(qerr.Corrupt, op, "no skin size (%dx%d)", m.SkinWidth, m.SkinHeight)
	}
	t := m.Triangles[tri]
	tc := m.TexCoords[t.Indices[corner]]
	u = float32(tc.S) / float32(m.SkinWidth)
	v = float32(tc.T) / float32(m.SkinHeight)
	if tc.OnSeam != 0 && !t.FrontFacing {
		u += 0.5
	}
	return u, v, nil
}

// FrameRow is one frame in a FrameTable.
type FrameRow struct {
	Name     string
	Kind     FrameKind
	Start    int // First pose.
	NumPoses int
	Interval float32
}

// FrameTable lists the frames as pose ranges, for animation consumers.
func (m *Model) FrameTable() []FrameRow {
	ret := make([]FrameRow, 0, len(m.Frames))
	for _, f := range m.Frames {
		ret = append(ret, FrameRow{
			Name:     f.Name,
			Kind:     f.Kind,
			Start:    f.FirstPose,
			NumPoses: f.NumPoses,
			Interval: f.Interval,
		})
	}
	return ret
}
