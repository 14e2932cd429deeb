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
	"github.com/pkg/errors"

	"github.com/ThomasHabets/qasset/pkg/qerr"
	"github.com/ThomasHabets/qasset/pkg/vec"
)

// UV is a texture coordinate, in units of the texture size.
type UV struct {
	U, V float32
}

// A Triangle is one part of a face.
type Triangle struct {
	Face    int    // Face the triangle came from.
	Texture int    // Index into Model.Textures.
	Indices [3]int // Vertex indices.
	UV      [3]UV
	Normal  vec.Vec3 // Normal of the face.
}

// Triangulate takes the faces from one submodel and returns them as triangles.
//
// Faces are convex, so each is split as a fan from its first vertex. Sky
// faces are left out. Every triangle gets the normal of its face's plane.
//
// UVs are divided by the texture size, except for faces using an empty
// texture slot. Those keep their UVs in texels.
func Triangulate(m *Model, submodel int) ([]Triangle, error) {
	const op = "bsp.Triangulate"
	if submodel < 0 || submodel >= len(m.Submodels) {
		return nil, qerr.New(qerr.Corrupt, op, "submodel %d out of range [0,%d)", submodel, len(m.Submodels))
	}
	sm := m.Submodels[submodel]
	if sm.FirstFace < 0 || sm.NumFaces < 0 || int64(sm.FirstFace)+int64(sm.NumFaces) > int64(len(m.Faces)) {
		return nil, qerr.New(qerr.Corrupt, op, "submodel %d faces %d+%d out of range [0,%d)", submodel, sm.FirstFace, sm.NumFaces, len(m.Faces))
	}

	var tris []Triangle
	for fn := int(sm.FirstFace); fn < int(sm.FirstFace+sm.NumFaces); fn++ {
		texID, tex, err := m.TextureForFace(fn)
		if err != nil {
			return nil, errors.Wrapf(err, "submodel %d", submodel)
		}
		if tex != nil && tex.IsSky() {
			continue
		}
		loop, err := m.FaceLoop(fn)
		if err != nil {
			return nil, errors.Wrapf(err, "submodel %d", submodel)
		}
		normal, err := m.FaceNormal(fn)
		if err != nil {
			return nil, errors.Wrapf(err, "submodel %d", submodel)
		}
		ti := m.TexInfos[m.Faces[fn].TexInfo]
		uv := func(v int) UV {
			return projectUV(m.Vertices[v], ti, tex)
		}
		for k := 1; k+1 < len(loop); k++ {
			a, b, c := loop[0], loop[k], loop[k+1]
			tris = append(tris, Triangle{
				Face:    fn,
				Texture: texID,
				Indices: [3]int{a, b, c},
				UV:      [3]UV{uv(a), uv(b), uv(c)},
				Normal:  normal,
			})
		}
	}
	return tris, nil
}

// projectUV maps a world position onto the texture plane. With no texture
// the coordinates are left in texels.
func projectUV(p vec.Vec3, ti TexInfo, tex *Texture) UV {
	u := vec.Dot(p, ti.S) + ti.SOffset
	v := vec.Dot(p, ti.T) + ti.TOffset
	if tex != nil && tex.Width > 0 && tex.Height > 0 {
		u /= float32(tex.Width)
		v /= float32(tex.Height)
	}
	return UV{U: u, V: v}
}

// A Mesh is a submodel with only the vertices it uses.
type Mesh struct {
	Vertices  []vec.Vec3
	Triangles []Triangle // Indices are into Vertices of the Mesh.
}

// remapVertex returns an existing vertex ID if it's in the list,
// else add it to the list and return that ID.
// This is used to prevent duplicate vertices when creating the mesh.
func (m *Model) remapVertex(in int, list *[]vec.Vec3, vertexMap map[int]int) int {
	if newV, found := vertexMap[in]; found {
		return newV
	}
	newV := len(*list)
	*list = append(*list, m.Vertices[in])
	vertexMap[in] = newV
	return newV
}

// Mesh triangulates a submodel and renumbers the vertices so that only the
// ones used are included.
func (m *Model) Mesh(submodel int) (*Mesh, error) {
	tris, err := Triangulate(m, submodel)
	if err != nil {
		return nil, err
	}
	ret := &Mesh{Triangles: tris}
	vertexMap := make(map[int]int)
	for n := range ret.Triangles {
		for i := range ret.Triangles[n].Indices {
			ret.Triangles[n].Indices[i] = m.remapVertex(ret.Triangles[n].Indices[i], &ret.Vertices, vertexMap)
		}
	}
	return ret, nil
}
