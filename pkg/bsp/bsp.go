// Package bsp loads Quake BSP (version 29) level files.
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
// * http://www.gamers.org/dEngine/quake/spec/quake-spec34/qkspec_4.htm
// * http://www.gamers.org/dEngine/quake/QDP/qmapspec.html
package bsp

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/ThomasHabets/qasset/pkg/cursor"
	"github.com/ThomasHabets/qasset/pkg/entity"
	"github.com/ThomasHabets/qasset/pkg/qerr"
	"github.com/ThomasHabets/qasset/pkg/vec"
)

// Model is a decoded BSP file.
//
// Indirections such as Face->surfedge->Edge->Vertex are not removed. Use
// FaceLoop or Triangulate for that.
type Model struct {
	Header       Header
	Vertices     []vec.Vec3
	Edges        []Edge     // Connections between vertices.
	Surfedges    []int32    // Signed edge indices. Connect faces with edges.
	Faces        []Face     // Polygons.
	Planes       []Plane    // Used by faces and the BSP tree.
	TexInfos     []TexInfo  // How to apply a texture to a face.
	Leaves       []Leaf     // BSP leaves.
	Nodes        []Node     // BSP nodes.
	ClipNodes    []ClipNode // Collision hull nodes.
	Submodels    []Submodel // Parts of geometry. 0 is everything non-movable.
	MarkSurfaces []uint16   // List of faces. Used by leaves.
	Textures     []*Texture // nil for slots with no texture.
	Entities     string     // Player start point, weapons, enemies, ...
	EntityGroups []entity.Group
	LightData    []byte
	VisData      []byte
}

// Decode loads a BSP file from memory. The returned model does not reference data.
func Decode(data []byte) (*Model, error) {
	const op = "bsp.Decode"
	m := &Model{}

	// Load file header.
	h, err := readHeader(cursor.New(data))
	if err != nil {
		return nil, errors.Wrap(err, "reading header")
	}
	if h.Version != Version {
		return nil, qerr.New(qerr.UnsupportedVersion, op, "wrong version %d, only %d supported", h.Version, Version)
	}
	m.Header = h

	// Fixed size lumps.
	if m.Vertices, err = DecodeLump(data, h.Lumps[LumpVertices], fileVertexSize, readVertex); err != nil {
		return nil, lumpError(err, LumpVertices)
	}
	if m.Edges, err = DecodeLump(data, h.Lumps[LumpEdges], fileEdgeSize, readEdge); err != nil {
		return nil, lumpError(err, LumpEdges)
	}
	if m.Surfedges, err = DecodeLump(data, h.Lumps[LumpSurfedges], fileSurfedgeSize, readSurfedge); err != nil {
		return nil, lumpError(err, LumpSurfedges)
	}
	if m.Faces, err = DecodeLump(data, h.Lumps[LumpFaces], fileFaceSize, readFace); err != nil {
		return nil, lumpError(err, LumpFaces)
	}
	if m.Planes, err = DecodeLump(data, h.Lumps[LumpPlanes], filePlaneSize, readPlane); err != nil {
		return nil, lumpError(err, LumpPlanes)
	}
	if m.MarkSurfaces, err = DecodeLump(data, h.Lumps[LumpMarkSurfaces], fileMarkSurfaceSize, readMarkSurface); err != nil {
		return nil, lumpError(err, LumpMarkSurfaces)
	}
	if m.Leaves, err = DecodeLump(data, h.Lumps[LumpLeaves], fileLeafSize, readLeaf); err != nil {
		return nil, lumpError(err, LumpLeaves)
	}
	if m.Nodes, err = DecodeLump(data, h.Lumps[LumpNodes], fileNodeSize, readNode); err != nil {
		return nil, lumpError(err, LumpNodes)
	}
	if m.ClipNodes, err = DecodeLump(data, h.Lumps[LumpClipNodes], fileClipNodeSize, readClipNode); err != nil {
		return nil, lumpError(err, LumpClipNodes)
	}
	if m.Submodels, err = DecodeLump(data, h.Lumps[LumpModels], fileModelSize, readSubmodel); err != nil {
		return nil, lumpError(err, LumpModels)
	}
	if m.TexInfos, err = DecodeLump(data, h.Lumps[LumpTexInfo], fileTexInfoSize, readTexInfo); err != nil {
		return nil, lumpError(err, LumpTexInfo)
	}

	// Opaque lumps.
	if m.LightData, err = rawLump(data, h.Lumps[LumpLighting]); err != nil {
		return nil, lumpError(err, LumpLighting)
	}
	if m.VisData, err = rawLump(data, h.Lumps[LumpVisibility]); err != nil {
		return nil, lumpError(err, LumpVisibility)
	}

	if m.Textures, err = decodeTextures(data, h.Lumps[LumpTextures]); err != nil {
		return nil, lumpError(err, LumpTextures)
	}

	// Load entities.
	{
		b, err := rawLump(data, h.Lumps[LumpEntities])
		if err != nil {
			return nil, lumpError(err, LumpEntities)
		}
		m.Entities = strings.TrimRight(string(b), "\x00")
		if m.EntityGroups, err = entity.ParseAll(m.Entities); err != nil {
			return nil, lumpError(err, LumpEntities)
		}
	}
	return m, nil
}

func lumpError(err error, lump int) error {
	return errors.Wrapf(err, "%s lump", lumpNames[lump])
}

func rawLump(data []byte, l Lump) ([]byte, error) {
	c, err := cursor.New(data).Sub(int(l.Offset), int(l.Length))
	if err != nil {
		return nil, err
	}
	return c.ReadBytes(int(l.Length))
}

// IsLevel returns true if the BSP is a playable level, as opposed to a BSP
// used as an item model such as an ammo box.
func (m *Model) IsLevel() bool {
	return entity.HasPlayerStart(m.EntityGroups)
}

// TextureForFace returns the texture index and texture of a face. The texture
// is nil if the slot is empty.
func (m *Model) TextureForFace(face int) (int, *Texture, error) {
	const op = "bsp.TextureForFace"
	if face < 0 || face >= len(m.Faces) {
		return 0, nil, qerr.New(qerr.Corrupt, op, "face %d out of range [0,%d)", face, len(m.Faces))
	}
	ti := int(m.Faces[face].TexInfo)
	if ti >= len(m.TexInfos) {
		return 0, nil, qerr.New(qerr.Corrupt, op, "face %d texinfo %d out of range [0,%d)", face, ti, len(m.TexInfos))
	}
	mt := int(m.TexInfos[ti].MipTex)
	if mt < 0 || mt >= len(m.Textures) {
		return 0, nil, qerr.New(qerr.Corrupt, op, "texinfo %d texture %d out of range [0,%d)", ti, mt, len(m.Textures))
	}
	return mt, m.Textures[mt], nil
}

// FaceNormal returns the normal of the plane a face lies in, flipped if the
// face is on the back side of the plane.
func (m *Model) FaceNormal(face int) (vec.Vec3, error) {
	const op = "bsp.FaceNormal"
	if face < 0 || face >= len(m.Faces) {
		return vec.Vec3{}, qerr.New(qerr.Corrupt, op, "face %d out of range [0,%d)", face, len(m.Faces))
	}
	f := m.Faces[face]
	if int(f.PlaneNum) >= len(m.Planes) {
		return vec.Vec3{}, qerr.New(qerr.Corrupt, op, "face %d plane %d out of range [0,%d)", face, f.PlaneNum, len(m.Planes))
	}
	n := m.Planes[f.PlaneNum].Normal
	if f.Side != 0 {
		n = n.Scale(-1)
	}
	return n, nil
}

// FaceLoop returns the vertex indices of a face, in order.
//
// A positive surfedge uses the first vertex of its edge, a negative one the
// second vertex of edge -surfedge.
func (m *Model) FaceLoop(face int) ([]int, error) {
	const op = "bsp.FaceLoop"
	if face < 0 || face >= len(m.Faces) {
		return nil, qerr.New(qerr.Corrupt, op, "face %d out of range [0,%d)", face, len(m.Faces))
	}
	f := m.Faces[face]
	first := int64(f.FirstEdge)
	if first < 0 || first+int64(f.NumEdges) > int64(len(m.Surfedges)) {
		return nil, qerr.New(qerr.Corrupt, op, "face %d surfedges %d+%d out of range [0,%d)", face, f.FirstEdge, f.NumEdges, len(m.Surfedges))
	}
	loop := make([]int, 0, f.NumEdges)
	for _, se := range m.Surfedges[first : first+int64(f.NumEdges)] {
		e := int64(se)
		var v int
		if e >= 0 {
			if e >= int64(len(m.Edges)) {
				return nil, qerr.New(qerr.Corrupt, op, "face %d edge %d out of range [0,%d)", face, e, len(m.Edges))
			}
			v = m.Edges[e].First()
		} else {
			e = -e
			if e >= int64(len(m.Edges)) {
				return nil, qerr.New(qerr.Corrupt, op, "face %d edge %d out of range [0,%d)", face, e, len(m.Edges))
			}
			v = m.Edges[e].Second()
		}
		if v >= len(m.Vertices) {
			return nil, qerr.New(qerr.Corrupt, op, "face %d vertex %d out of range [0,%d)", face, v, len(m.Vertices))
		}
		loop = append(loop, v)
	}
	return loop, nil
}
