// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package codestream

import (
	"encoding/binary"
	"sort"

	"github.com/bitmark-inc/jpipd/fault"
	"github.com/bitmark-inc/jpipd/target"
	"github.com/bitmark-inc/jpipd/window"
)

// PrecinctKey - a precinct given by its raster index within a
// tile-component resolution
type PrecinctKey struct {
	Tile       int
	Component  int
	Resolution int
	Index      int64
}

// Codestream - a codestream split into data-bin contents
type Codestream struct {
	structure   *target.Structure
	mainHeader  []byte
	tileHeaders map[int][]byte
	precincts   map[PrecinctKey]target.Precinct
}

// check the interface is satisfied
var _ target.Codestream = (*Codestream)(nil)

// coding style from COD or COC
type codingStyle struct {
	levels    int
	precincts []window.Coords
}

// per tile contents gathered from its tile-parts
type tileContents struct {
	header  []byte
	lengths []int
	body    []byte
}

// Parse - split a raw codestream
func Parse(data []byte) (*Codestream, error) {
	if len(data) < 4 || markerSOC != binary.BigEndian.Uint16(data) {
		return nil, fault.InvalidCodestream
	}

	s := &target.Structure{}
	var cod *codingStyle
	coc := map[int]*codingStyle{}
	haveSIZ := false

	pos := 2
main_header:
	for {
		if pos+2 > len(data) {
			return nil, fault.InvalidCodestreamHeader
		}
		marker := binary.BigEndian.Uint16(data[pos:])
		if markerSOT == marker || markerEOC == marker {
			break main_header
		}
		if pos+4 > len(data) {
			return nil, fault.InvalidCodestreamHeader
		}
		length := int(binary.BigEndian.Uint16(data[pos+2:]))
		end := pos + 2 + length
		if length < 2 || end > len(data) {
			return nil, fault.InvalidCodestreamHeader
		}
		segment := data[pos+4 : end]

		switch marker {
		case markerSIZ:
			if err := parseSIZ(segment, s); nil != err {
				return nil, err
			}
			haveSIZ = true

		case markerCOD:
			style, progression, layers, err := parseCOD(segment)
			if nil != err {
				return nil, err
			}
			cod = style
			s.Progression = progression
			s.Layers = layers

		case markerCOC:
			if !haveSIZ {
				return nil, fault.InvalidCodestreamHeader
			}
			component, style, err := parseCOC(segment, len(s.Components))
			if nil != err {
				return nil, err
			}
			coc[component] = style

		case markerPPM:
			return nil, fault.InvalidCodestream
		}
		pos = end
	}

	if !haveSIZ || nil == cod {
		return nil, fault.InvalidCodestreamHeader
	}
	for i := range s.Components {
		style := cod
		if c, ok := coc[i]; ok {
			style = c
		}
		s.Components[i].Levels = style.levels
		s.Components[i].Precincts = style.precincts
	}

	c := &Codestream{
		structure:   s,
		mainHeader:  data[:pos],
		tileHeaders: make(map[int][]byte),
		precincts:   make(map[PrecinctKey]target.Precinct),
	}

	tiles, err := parseTileParts(data, pos, s.NumTiles())
	if nil != err {
		return nil, err
	}

	for t, contents := range tiles {
		if 0 != len(contents.header) {
			c.tileHeaders[t] = contents.header
		}
		if err := c.assignPackets(t, contents); nil != err {
			return nil, err
		}
	}
	return c, nil
}

func parseSIZ(segment []byte, s *target.Structure) error {
	if len(segment) < lengthSIZ-2 {
		return fault.InvalidCodestreamHeader
	}
	u32 := func(offset int) int {
		return int(binary.BigEndian.Uint32(segment[offset:]))
	}
	x1 := u32(2)
	y1 := u32(6)
	x0 := u32(10)
	y0 := u32(14)
	s.Image = window.Dims{
		Pos:  window.Coords{X: x0, Y: y0},
		Size: window.Coords{X: x1 - x0, Y: y1 - y0},
	}
	s.TileSize = window.Coords{X: u32(18), Y: u32(22)}
	s.TileOrigin = window.Coords{X: u32(26), Y: u32(30)}

	components := int(binary.BigEndian.Uint16(segment[34:]))
	if components < 1 || len(segment) < lengthSIZ-2+3*components {
		return fault.InvalidCodestreamHeader
	}
	if s.Image.IsEmpty() || s.TileSize.X <= 0 || s.TileSize.Y <= 0 {
		return fault.InvalidCodestreamHeader
	}

	s.Components = make([]target.Component, components)
	for i := 0; i < components; i += 1 {
		record := segment[lengthSIZ-2+3*i:]
		s.Components[i].Subsampling = window.Coords{
			X: int(record[1]),
			Y: int(record[2]),
		}
	}
	return nil
}

// SPcod and SPcoc share a layout
func parseStyle(flags byte, parameters []byte) (*codingStyle, error) {
	if len(parameters) < 5 {
		return nil, fault.InvalidCodestreamHeader
	}
	style := &codingStyle{
		levels: int(parameters[0]),
	}
	if style.levels > 32 {
		return nil, fault.InvalidCodestreamHeader
	}
	if 0 != flags&styleUserPrecincts {
		sizes := parameters[5:]
		if len(sizes) < style.levels+1 {
			return nil, fault.InvalidCodestreamHeader
		}
		style.precincts = make([]window.Coords, style.levels+1)
		for r := range style.precincts {
			style.precincts[r] = window.Coords{
				X: int(sizes[r] & 0x0f),
				Y: int(sizes[r] >> 4),
			}
		}
	}
	return style, nil
}

func parseCOD(segment []byte) (*codingStyle, int, int, error) {
	if len(segment) < 10 {
		return nil, 0, 0, fault.InvalidCodestreamHeader
	}
	progression := int(segment[1])
	if progression > target.CPRL {
		return nil, 0, 0, fault.InvalidCodestreamHeader
	}
	layers := int(binary.BigEndian.Uint16(segment[2:]))
	style, err := parseStyle(segment[0], segment[5:])
	return style, progression, layers, err
}

func parseCOC(segment []byte, components int) (int, *codingStyle, error) {
	width := 1
	if components > 256 {
		width = 2
	}
	if len(segment) < width+1 {
		return 0, nil, fault.InvalidCodestreamHeader
	}
	component := int(segment[0])
	if 2 == width {
		component = int(binary.BigEndian.Uint16(segment))
	}
	if component >= components {
		return 0, nil, fault.InvalidCodestreamHeader
	}
	style, err := parseStyle(segment[width], segment[width+1:])
	return component, style, err
}

// packet lengths: 7 bits per byte, high bit set on all but the last
func parsePLT(segment []byte) ([]int, error) {
	if len(segment) < 1 {
		return nil, fault.InvalidCodestream
	}
	lengths := []int{}
	value := 0
	pending := false
	for _, b := range segment[1:] {
		value = value<<7 | int(b&0x7f)
		pending = 0 != b&0x80
		if !pending {
			lengths = append(lengths, value)
			value = 0
		}
	}
	if pending {
		return nil, fault.InvalidCodestream
	}
	return lengths, nil
}

func parseTileParts(data []byte, pos int, numTiles int) ([]tileContents, error) {
	tiles := make([]tileContents, numTiles)

tile_parts:
	for pos+2 <= len(data) {
		marker := binary.BigEndian.Uint16(data[pos:])
		if markerEOC == marker {
			break tile_parts
		}
		if markerSOT != marker || pos+2+lengthSOT > len(data) {
			return nil, fault.InvalidCodestream
		}
		if lengthSOT != binary.BigEndian.Uint16(data[pos+2:]) {
			return nil, fault.InvalidCodestream
		}
		tile := int(binary.BigEndian.Uint16(data[pos+4:]))
		psot := int(binary.BigEndian.Uint32(data[pos+6:]))

		end := pos + psot
		if 0 == psot {
			end = len(data)
			if end >= 2 && markerEOC == binary.BigEndian.Uint16(data[end-2:]) {
				end -= 2
			}
		}
		if tile >= numTiles || end > len(data) || end < pos+2+lengthSOT {
			return nil, fault.InvalidCodestream
		}

		p := pos + 2 + lengthSOT
	header:
		for {
			if p+2 > end {
				return nil, fault.InvalidCodestream
			}
			m := binary.BigEndian.Uint16(data[p:])
			if markerSOD == m {
				p += 2
				break header
			}
			if p+4 > end {
				return nil, fault.InvalidCodestream
			}
			segmentEnd := p + 2 + int(binary.BigEndian.Uint16(data[p+2:]))
			if segmentEnd > end {
				return nil, fault.InvalidCodestream
			}
			switch m {
			case markerPLT:
				lengths, err := parsePLT(data[p+4 : segmentEnd])
				if nil != err {
					return nil, err
				}
				tiles[tile].lengths = append(tiles[tile].lengths, lengths...)
			case markerPPT, markerCOD, markerCOC:
				return nil, fault.InvalidCodestream
			default:
				tiles[tile].header = append(tiles[tile].header, data[p:segmentEnd]...)
			}
			p = segmentEnd
		}
		tiles[tile].body = append(tiles[tile].body, data[p:end]...)
		pos = end
	}
	return tiles, nil
}

// divide a tile body into precinct layers
func (c *Codestream) assignPackets(tile int, contents tileContents) error {
	order, err := packetOrder(c.structure, tile)
	if nil != err {
		return err
	}
	if 0 == len(contents.body) && 0 == len(contents.lengths) {
		return nil
	}
	if len(order) != len(contents.lengths) {
		return fault.InvalidCodestream
	}

	offset := 0
	for n, ref := range order {
		length := contents.lengths[n]
		if offset+length > len(contents.body) {
			return fault.InvalidCodestream
		}
		key := PrecinctKey{
			Tile:       tile,
			Component:  ref.component,
			Resolution: ref.resolution,
			Index:      ref.index,
		}
		p := c.precincts[key]
		p.Data = append(p.Data, contents.body[offset:offset+length]...)
		p.Layers = append(p.Layers, len(p.Data))
		c.precincts[key] = p
		offset += length
	}
	return nil
}

// Structure - geometry from the main header
func (c *Codestream) Structure() *target.Structure {
	return c.structure
}

// MainHeader - SOC up to the first SOT
func (c *Codestream) MainHeader() []byte {
	return c.mainHeader
}

// TileHeader - tile-part header markers of a tile without SOT, PLT
// and SOD
func (c *Codestream) TileHeader(tile int) []byte {
	return c.tileHeaders[tile]
}

// Precinct - packets of one precinct
func (c *Codestream) Precinct(tile int, component int, resolution int, index int64) target.Precinct {
	return c.precincts[PrecinctKey{
		Tile:       tile,
		Component:  component,
		Resolution: resolution,
		Index:      index,
	}]
}

// Keys - every precinct with data, ordered by tile, component,
// resolution then index
func (c *Codestream) Keys() []PrecinctKey {
	keys := make([]PrecinctKey, 0, len(c.precincts))
	for k := range c.precincts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i int, j int) bool {
		a := keys[i]
		b := keys[j]
		if a.Tile != b.Tile {
			return a.Tile < b.Tile
		}
		if a.Component != b.Component {
			return a.Component < b.Component
		}
		if a.Resolution != b.Resolution {
			return a.Resolution < b.Resolution
		}
		return a.Index < b.Index
	})
	return keys
}
