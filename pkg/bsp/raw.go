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
//

// The file contains the raw file records and how to read them.

import (
	"github.com/ThomasHabets/qasset/pkg/cursor"
	"github.com/ThomasHabets/qasset/pkg/qerr"
	"github.com/ThomasHabets/qasset/pkg/vec"
)

const (
	// Sizes of the records that are part of the file format.
	// Records are read field by field, so these are the only place the sizes live.
	fileHeaderSize      = 4 + NumLumps*(4+4)
	fileVertexSize      = 4 * 3
	fileEdgeSize        = 2 + 2
	fileSurfedgeSize    = 4
	fileMarkSurfaceSize = 2
	filePlaneSize       = 3*4 + 4 + 4
	fileFaceSize        = 2 + 2 + 4 + 2 + 2 + 4*1 + 4
	fileTexInfoSize     = 3*4 + 4 + 3*4 + 4 + 4 + 4
	fileLeafSize        = 4 + 4 + 3*2 + 3*2 + 2 + 2 + 4*1
	fileNodeSize        = 4 + 2*2 + 3*2 + 3*2 + 2 + 2
	fileClipNodeSize    = 4 + 2*2
	fileModelSize       = 2*3*4 + 3*4 + 4*4 + 3*4
	fileMiptexSize      = 16 + 4 + 4 + 4*4

	// BSP file version.
	Version = 29

	// Texture directory entry for a slot with no texture.
	unusedMipTexOffset = -1
)

// Lump numbers, in header order.
const (
	LumpEntities = iota
	LumpPlanes
	LumpTextures
	LumpVertices
	LumpVisibility
	LumpNodes
	LumpTexInfo
	LumpFaces
	LumpLighting
	LumpClipNodes
	LumpLeaves
	LumpMarkSurfaces
	LumpEdges
	LumpSurfedges
	LumpModels

	NumLumps
)

var lumpNames = [NumLumps]string{
	"entities", "planes", "textures", "vertices", "visibility",
	"nodes", "texinfo", "faces", "lighting", "clipnodes",
	"leaves", "marksurfaces", "edges", "surfedges", "models",
}

// A Lump is a section of the file.
type Lump struct {
	Offset int32
	Length int32
}

// Header is the first thing in the file.
type Header struct {
	Version int32 // 29 (const Version)
	Lumps   [NumLumps]Lump
}

// A Plane is a plane used by faces and the BSP tree.
type Plane struct {
	Normal vec.Vec3
	Dist   float32
	Type   int32 // 0-2 axial along X, Y, Z. 3-5 non axial, snapped to nearest.
}

// An Edge connects two vertices.
// Edges are not referenced directly from faces, only via surfedges.
type Edge struct {
	V [2]int16
}

// First returns the vertex index of the start of the edge.
func (e Edge) First() int { return int(uint16(e.V[0])) }

// Second returns the vertex index of the end of the edge.
func (e Edge) Second() int { return int(uint16(e.V[1])) }

// A Face is a convex polygon as it appears in the BSP file.
type Face struct {
	PlaneNum  uint16
	Side      uint16 // 0 if in front of the plane.
	FirstEdge int32  // First surfedge.
	NumEdges  uint16 // Number of surfedges.
	TexInfo   uint16

	// 0 = normal light map.
	// 1 = fast pulse.
	// 2 = slow pulse.
	// 3-10 = other light effects.
	// 0xff = no light map
	Styles   [4]uint8
	LightOfs int32 // Offset into the lighting lump, or -1.
}

// A TexInfo is information about how to apply a texture onto a face.
// Texture coordinates are not attached to vertices, but are calculated by
// mapping world coordinates onto the S and T vectors:
//
//	s = (v dot S) + SOffset
//	t = (v dot T) + TOffset
type TexInfo struct {
	S       vec.Vec3 // S vector, horizontal in texture space.
	SOffset float32
	T       vec.Vec3 // T vector, vertical in texture space.
	TOffset float32
	MipTex  int32 // Index into the texture table.
	Flags   int32 // 0 for ordinary textures, 1 for water, etc.
}

type Leaf struct {
	Contents         int32 // -1 empty, -2 solid, -3 water, -4 slime, -5 lava, -6 sky.
	VisOfs           int32
	Mins, Maxs       [3]int16
	FirstMarkSurface uint16
	NumMarkSurfaces  uint16
	Ambient          [4]uint8
}

type Node struct {
	PlaneNum   int32
	Children   [2]int16 // Negative numbers are -(leaf+1).
	Mins, Maxs [3]int16
	FirstFace  uint16
	NumFaces   uint16
}

type ClipNode struct {
	PlaneNum int32
	Children [2]int16 // Negative numbers are contents.
}

// A Submodel is a contiguous range of faces.
// Most of a level is in submodel 0. Others are doors and other movables, and
// show up in the entities as model "*N".
type Submodel struct {
	Mins, Maxs vec.Vec3
	Origin     vec.Vec3 // Usually (0,0,0).
	HeadNode   [4]int32
	VisLeafs   int32
	FirstFace  int32
	NumFaces   int32
}

func readHeader(c *cursor.Cursor) (Header, error) {
	var h Header
	f := c.Fields()
	h.Version = f.Int32()
	for i := range h.Lumps {
		h.Lumps[i].Offset = f.Int32()
		h.Lumps[i].Length = f.Int32()
	}
	return h, f.Err()
}

// DecodeLump reads the fixed size records of a lump. The lump length must be a
// multiple of size.
func DecodeLump[T any](data []byte, l Lump, size int, read func(*cursor.Fields) T) ([]T, error) {
	if size <= 0 {
		return nil, qerr.New(qerr.Corrupt, "bsp.DecodeLump", "bad element size %d", size)
	}
	if int(l.Length)%size != 0 {
		return nil, qerr.New(qerr.LumpSizeMismatch, "bsp.DecodeLump", "lump size %d not divisible by %d", l.Length, size)
	}
	c, err := cursor.New(data).Sub(int(l.Offset), int(l.Length))
	if err != nil {
		return nil, err
	}
	n := int(l.Length) / size
	ret := make([]T, 0, n)
	f := c.Fields()
	for i := 0; i < n; i++ {
		ret = append(ret, read(f))
	}
	if err := f.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

func readVertex(f *cursor.Fields) vec.Vec3 {
	return f.Vec3()
}

func readEdge(f *cursor.Fields) Edge {
	return Edge{V: [2]int16{f.Int16(), f.Int16()}}
}

func readSurfedge(f *cursor.Fields) int32 {
	return f.Int32()
}

func readMarkSurface(f *cursor.Fields) uint16 {
	return f.Uint16()
}

func readPlane(f *cursor.Fields) Plane {
	return Plane{
		Normal: f.Vec3(),
		Dist:   f.Float32(),
		Type:   f.Int32(),
	}
}

func readFace(f *cursor.Fields) Face {
	return Face{
		PlaneNum:  f.Uint16(),
		Side:      f.Uint16(),
		FirstEdge: f.Int32(),
		NumEdges:  f.Uint16(),
		TexInfo:   f.Uint16(),
		Styles:    [4]uint8{f.Uint8(), f.Uint8(), f.Uint8(), f.Uint8()},
		LightOfs:  f.Int32(),
	}
}

func readTexInfo(f *cursor.Fields) TexInfo {
	return TexInfo{
		S:       f.Vec3(),
		SOffset: f.Float32(),
		T:       f.Vec3(),
		TOffset: f.Float32(),
		MipTex:  f.Int32(),
		Flags:   f.Int32(),
	}
}

func readShort3(f *cursor.Fields) [3]int16 {
	return [3]int16{f.Int16(), f.Int16(), f.Int16()}
}

func readLeaf(f *cursor.Fields) Leaf {
	return Leaf{
		Contents:         f.Int32(),
		VisOfs:           f.Int32(),
		Mins:             readShort3(f),
		Maxs:             readShort3(f),
		FirstMarkSurface: f.Uint16(),
		NumMarkSurfaces:  f.Uint16(),
		Ambient:          [4]uint8{f.Uint8(), f.Uint8(), f.Uint8(), f.Uint8()},
	}
}

func readNode(f *cursor.Fields) Node {
	return Node{
		PlaneNum:  f.Int32(),
		Children:  [2]int16{f.Int16(), f.Int16()},
		Mins:      readShort3(f),
		Maxs:      readShort3(f),
		FirstFace: f.Uint16(),
		NumFaces:  f.Uint16(),
	}
}

func readClipNode(f *cursor.Fields) ClipNode {
	return ClipNode{
		PlaneNum: f.Int32(),
		Children: [2]int16{f.Int16(), f.Int16()},
	}
}

func readSubmodel(f *cursor.Fields) Submodel {
	return Submodel{
		Mins:      f.Vec3(),
		Maxs:      f.Vec3(),
		Origin:    f.Vec3(),
		HeadNode:  [4]int32{f.Int32(), f.Int32(), f.Int32(), f.Int32()},
		VisLeafs:  f.Int32(),
		FirstFace: f.Int32(),
		NumFaces:  f.Int32(),
	}
}
