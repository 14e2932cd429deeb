package asset

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
	"sort"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ThomasHabets/qasset/pkg/bsp"
)

// Summary is a short description of a decoded asset, used by the catalog,
// the server and the command line tool.
type Summary struct {
	Name   string
	Format Format
	Size   int

	// Number of each kind of element, such as "faces" or "poses".
	Counts map[string]int

	// BSP only.
	IsLevel       bool
	Textures      []string // Empty texture slots are left out.
	Sky           []string
	Flipbooks     []string
	EntityClasses map[string]int

	// MDL only.
	Frames []string

	// Images and skins.
	Width, Height int
}

// Summarize describes a decoded asset. size is the encoded size in bytes.
func Summarize(name string, size int, d *Decoded) *Summary {
	s := &Summary{
		Name:   name,
		Format: d.Format,
		Size:   size,
		Counts: make(map[string]int),
	}
	switch {
	case d.BSP != nil:
		summarizeBSP(s, d.BSP)
	case d.MDL != nil:
		m := d.MDL
		s.Counts["skins"] = len(m.Skins)
		s.Counts["vertices"] = m.NumVerts
		s.Counts["triangles"] = len(m.Triangles)
		s.Counts["frames"] = len(m.Frames)
		s.Counts["poses"] = len(m.Poses)
		s.Width = int(m.SkinWidth)
		s.Height = int(m.SkinHeight)
		for _, f := range m.Frames {
			s.Frames = append(s.Frames, f.Name)
		}
	case d.LMP != nil:
		s.Width = d.LMP.Width
		s.Height = d.LMP.Height
		s.Counts["pixels"] = len(d.LMP.Pixels)
	}
	return s
}

func summarizeBSP(s *Summary, m *bsp.Model) {
	s.Counts["vertices"] = len(m.Vertices)
	s.Counts["edges"] = len(m.Edges)
	s.Counts["faces"] = len(m.Faces)
	s.Counts["planes"] = len(m.Planes)
	s.Counts["texinfos"] = len(m.TexInfos)
	s.Counts["leaves"] = len(m.Leaves)
	s.Counts["nodes"] = len(m.Nodes)
	s.Counts["clipnodes"] = len(m.ClipNodes)
	s.Counts["submodels"] = len(m.Submodels)
	s.Counts["marksurfaces"] = len(m.MarkSurfaces)
	s.Counts["textures"] = len(m.Textures)
	s.Counts["entities"] = len(m.EntityGroups)
	s.Counts["lighting_bytes"] = len(m.LightData)
	s.Counts["visibility_bytes"] = len(m.VisData)
	if len(m.Submodels) > 0 {
		if tris, err := bsp.Triangulate(m, 0); err == nil {
			s.Counts["triangles"] = len(tris)
		}
	}
	s.IsLevel = m.IsLevel()
	for _, t := range m.Textures {
		if t == nil {
			continue
		}
		s.Textures = append(s.Textures, t.Name)
		if t.IsSky() {
			s.Sky = append(s.Sky, t.Name)
		}
	}
	for _, fb := range bsp.Flipbooks(m.Textures) {
		s.Flipbooks = append(s.Flipbooks, fb.Name)
	}
	s.EntityClasses = make(map[string]int)
	for _, g := range m.EntityGroups {
		s.EntityClasses[g.Classname()]++
	}
}

func stringList(ss []string) []interface{} {
	ret := make([]interface{}, len(ss))
	for n, s := range ss {
		ret[n] = s
	}
	return ret
}

func intMap(m map[string]int) map[string]interface{} {
	ret := make(map[string]interface{}, len(m))
	for k, v := range m {
		ret[k] = v
	}
	return ret
}

// Proto returns the summary as a protobuf Struct, for RPC replies and JSON.
func (s *Summary) Proto() (*structpb.Struct, error) {
	m := map[string]interface{}{
		"name":   s.Name,
		"format": s.Format.String(),
		"size":   s.Size,
		"counts": intMap(s.Counts),
	}
	switch s.Format {
	case FormatBSP:
		m["is_level"] = s.IsLevel
		m["textures"] = stringList(s.Textures)
		m["sky"] = stringList(s.Sky)
		m["flipbooks"] = stringList(s.Flipbooks)
		m["entity_classes"] = intMap(s.EntityClasses)
	case FormatMDL:
		m["frames"] = stringList(s.Frames)
		m["skin_width"] = s.Width
		m["skin_height"] = s.Height
	case FormatLMP:
		m["width"] = s.Width
		m["height"] = s.Height
	}
	return structpb.NewStruct(m)
}

// CountNames returns the keys of Counts in sorted order.
func (s *Summary) CountNames() []string {
	ret := make([]string, 0, len(s.Counts))
	for k := range s.Counts {
		ret = append(ret, k)
	}
	sort.Strings(ret)
	return ret
}
