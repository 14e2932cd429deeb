package mdl

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
	"github.com/ThomasHabets/qasset/pkg/qerr"
	"github.com/ThomasHabets/qasset/pkg/vec"
)

// NumNormals is the size of the normal table.
const NumNormals = 162

// A PackedVertex is a vertex position compressed to one byte per axis,
// plus an index into the normal table. Use Unpack to get the position.
type PackedVertex struct {
	X, Y, Z     uint8
	NormalIndex uint8
}

// Pos returns the packed position.
func (v PackedVertex) Pos() [3]uint8 {
	return [3]uint8{v.X, v.Y, v.Z}
}

// Unpack returns the position of a packed vertex in model space.
func Unpack(scale, origin vec.Vec3, v PackedVertex) vec.Vec3 {
	return vec.Vec3{
		X: scale.X*float32(v.X) + origin.X,
		Y: scale.Y*float32(v.Y) + origin.Y,
		Z: scale.Z*float32(v.Z) + origin.Z,
	}
}

// NormalFor returns entry index of the normal table.
func NormalFor(index uint8) (vec.Vec3, error) {
	if int(index) >= NumNormals {
		return vec.Vec3{}, qerr.New(qerr.OutOfRangeNormalIndex, "mdl.NormalFor", "normal index %d out of range [0,%d)", index, NumNormals)
	}
	return vec.FromArray(anorms[index]), nil
}

// EncodeNormal packs a unit normal into a B,G,R,A pixel, with each axis
// mapped from [-1,1] to [0,255]. Blue is Z and red is X.
func EncodeNormal(n vec.Vec3) [4]byte {
	enc := func(f float32) byte {
		v := (f + 1) * 0.5 * 255
		switch {
		case v < 0:
			return 0
		case v > 255:
			return 255
		}
		return byte(v)
	}
	return [4]byte{enc(n.Z), enc(n.Y), enc(n.X), 255}
}

// UnpackVertex unpacks v using the scale and origin of the model.
func (m *Model) UnpackVertex(v PackedVertex) vec.Vec3 {
	return Unpack(m.Scale, m.Origin, v)
}

// PoseDeltas returns how far each vertex of a pose has moved from pose 0.
func (m *Model) PoseDeltas(pose int) ([]vec.Vec3, error) {
	if pose < 0 || pose >= len(m.Poses) {
		return nil, qerr.New(qerr.Corrupt, "mdl.PoseDeltas", "pose %d out of range [0,%d)", pose, len(m.Poses))
	}
	base := m.Poses[0].Points
	ret := make([]vec.Vec3, len(base))
	for i, p := range m.Poses[pose].Points {
		ret[i] = vec.Sub(m.UnpackVertex(p), m.UnpackVertex(base[i]))
	}
	return ret, nil
}

// NormalMap returns the normals of all poses as a BGRA image, one row per
// pose and one column per vertex.
func (m *Model) NormalMap() ([]byte, error) {
	ret := make([]byte, 0, 4*m.NumVerts*len(m.Poses))
	for _, p := range m.Poses {
		for _, v := range p.Points {
			n, err := NormalFor(v.NormalIndex)
			if err != nil {
				return nil, err
			}
			px := EncodeNormal(n)
			ret = append(ret, px[:]...)
		}
	}
	return ret, nil
}
