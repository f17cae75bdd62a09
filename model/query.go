// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package model

import (
	"github.com/bitmark-inc/jpipd/databin"
	"github.com/bitmark-inc/jpipd/window"
)

// accumulates matching instructions for one data-bin
type combiner struct {
	precinct bool
	matched  bool

	complete bool

	addBytes        int
	addBytesSeq     uint64
	addLayers       int
	addLayersSeq    uint64
	subBytes        int // exclusive upper bound, 0 when absent
	subLayers       int
	haveAddBytes    bool
	haveAddLayers   bool
	haveSubBytes    bool
	haveSubLayers   bool
	backgroundIsSet bool
}

func (c *combiner) add(i *instruction) {
	c.matched = true
	if i.subtractive {
		bound := i.limit + 1
		if i.layers {
			if !c.haveSubLayers || bound < c.subLayers {
				c.subLayers = bound
			}
			c.haveSubLayers = true
		} else {
			if !c.haveSubBytes || bound < c.subBytes {
				c.subBytes = bound
			}
			c.haveSubBytes = true
		}
		return
	}
	if i.limit < 0 {
		c.complete = true
		return
	}
	if i.layers {
		if !c.haveAddLayers || i.limit > c.addLayers {
			c.addLayers = i.limit
		}
		if i.sequence > c.addLayersSeq {
			c.addLayersSeq = i.sequence
		}
		c.haveAddLayers = true
	} else {
		if !c.haveAddBytes || i.limit > c.addBytes {
			c.addBytes = i.limit
		}
		if i.sequence > c.addBytesSeq {
			c.addBytesSeq = i.sequence
		}
		c.haveAddBytes = true
	}
}

// resolve byte and layer statements into one Statement
//
// a subtractive statement in one unit removes additive statements in
// the other, two subtractive statements mean empty and of two
// surviving additive statements the most recently added wins
func (c *combiner) statement() Statement {
	s := Statement{}

	if !c.precinct {
		switch {
		case c.complete || c.backgroundIsSet:
			s.Additive = -1
		case c.haveAddBytes:
			s.Additive = c.addBytes
		}
		if c.haveSubBytes {
			s.Subtractive = c.subBytes
		}
		return s
	}

	addBytes := c.haveAddBytes && !c.haveSubLayers
	addLayers := c.haveAddLayers && !c.haveSubBytes
	if addBytes && addLayers {
		if c.addLayersSeq > c.addBytesSeq {
			addBytes = false
		} else {
			addLayers = false
		}
	}
	switch {
	case c.complete || c.backgroundIsSet:
		s.Additive = -1
	case addBytes:
		s.Additive = 2 * c.addBytes
	case addLayers:
		s.Additive = 2*c.addLayers + 1
	}

	switch {
	case c.haveSubBytes && c.haveSubLayers:
		s.Subtractive = 2
	case c.haveSubBytes:
		s.Subtractive = 2 * c.subBytes
	case c.haveSubLayers:
		s.Subtractive = 2*c.subLayers + 1
		if 3 == s.Subtractive {
			s.Subtractive = 2
		}
	}
	return s
}

// remove the given instructions, keeping order
func discard(list []*instruction, drop map[*instruction]bool) []*instruction {
	if 0 == len(drop) {
		return list
	}
	kept := list[:0]
	for _, i := range list {
		if !drop[i] {
			kept = append(kept, i)
		}
	}
	for n := len(kept); n < len(list); n += 1 {
		list[n] = nil
	}
	return kept
}

// MetaInstructions - the statement for one meta data-bin
//
// with binID >= 0 atomic and non-atomic instructions for that bin are
// used.  With a negative binID the first remaining atomic instruction
// picks the bin, which is only possible for stateful models.  Matched
// atomic instructions are discarded.  Returns the bin id and false if
// nothing matched.
func (m *Model) MetaInstructions(binID int64) (int64, Statement, bool) {
	if binID < 0 {
		if m.stateless {
			return -1, Statement{}, false
		}
		for _, i := range m.meta {
			if i.atomic {
				binID = i.binID
				break
			}
		}
		if binID < 0 {
			return -1, Statement{}, false
		}
	}

	c := combiner{
		backgroundIsSet: m.backgroundFull,
	}
	drop := map[*instruction]bool{}
	for _, i := range m.meta {
		if i.binID >= 0 && i.binID != binID {
			continue
		}
		c.add(i)
		if i.atomic {
			drop[i] = true
		}
	}
	m.meta = discard(m.meta, drop)

	if !c.matched && !m.backgroundFull {
		return binID, Statement{}, false
	}
	return binID, c.statement(), true
}

// FirstAtomicStream - codestream of the first remaining atomic
// instruction, -1 if there is none
func (m *Model) FirstAtomicStream() int {
	for _, sc := range m.contexts {
		if !sc.isAtomic() {
			continue
		}
		for _, i := range sc.instructions {
			if i.atomic {
				return sc.smin
			}
		}
	}
	return -1
}

func headerKey(tile int) (databin.Class, int64) {
	if tile < 0 {
		return databin.MainHeader, 0
	}
	return databin.TileHeader, int64(tile)
}

// HeaderInstructions - the statement for the main header (tile < 0)
// or a tile header of a codestream
func (m *Model) HeaderInstructions(stream int, tile int) (Statement, bool) {
	class, binID := headerKey(tile)

	c := combiner{
		backgroundIsSet: m.backgroundFull,
	}
	for _, sc := range m.contexts {
		if !sc.covers(stream) {
			continue
		}
		drop := map[*instruction]bool{}
		for _, i := range sc.instructions {
			if !i.explicit || i.class != class || (i.binID >= 0 && i.binID != binID) {
				continue
			}
			c.add(i)
			if i.atomic {
				drop[i] = true
			}
		}
		sc.instructions = discard(sc.instructions, drop)
	}
	if !c.matched && !m.backgroundFull {
		return Statement{}, false
	}
	return c.statement(), true
}

// NextHeaderInstructions - the first atomic header instruction of a
// codestream, returning its tile (-1 for the main header)
//
// always false for stateless models
func (m *Model) NextHeaderInstructions(stream int) (int, Statement, bool) {
	if m.stateless {
		return 0, Statement{}, false
	}
	for _, sc := range m.contexts {
		if !sc.isAtomic() || sc.smin != stream {
			continue
		}
		for _, i := range sc.instructions {
			if !i.atomic || !i.explicit {
				continue
			}
			switch i.class {
			case databin.MainHeader:
				s, ok := m.HeaderInstructions(stream, -1)
				return -1, s, ok
			case databin.TileHeader:
				tile := int(i.binID)
				s, ok := m.HeaderInstructions(stream, tile)
				return tile, s, ok
			}
		}
	}
	return 0, Statement{}, false
}

// PrecinctID - a precinct named by an instruction, either by absolute
// id (Tile, Component and Resolution are -1) or by coordinates with
// ID relative to the tile-component-resolution
type PrecinctID struct {
	Tile       int
	Component  int
	Resolution int
	ID         int64
}

// PrecinctInstructions - the first atomic precinct instruction of a
// codestream, together with every other atomic instruction for the
// same precinct
//
// always false for stateless models
func (m *Model) PrecinctInstructions(stream int) (PrecinctID, Statement, bool) {
	if m.stateless {
		return PrecinctID{}, Statement{}, false
	}
	for _, sc := range m.contexts {
		if !sc.isAtomic() || sc.smin != stream {
			continue
		}
		var first *instruction
		for _, i := range sc.instructions {
			if i.atomic && databin.Precinct == i.class {
				first = i
				break
			}
		}
		if nil == first {
			continue
		}

		c := combiner{
			precinct: true,
		}
		drop := map[*instruction]bool{}
		for _, i := range sc.instructions {
			if !i.atomic || databin.Precinct != i.class || i.explicit != first.explicit {
				continue
			}
			if i.explicit && i.binID != first.binID {
				continue
			}
			if !i.explicit && (i.tmin != first.tmin || i.cmin != first.cmin || i.rmin != first.rmin || i.pmin != first.pmin) {
				continue
			}
			c.add(i)
			drop[i] = true
		}
		sc.instructions = discard(sc.instructions, drop)

		id := PrecinctID{
			Tile:       -1,
			Component:  -1,
			Resolution: -1,
			ID:         first.binID,
		}
		if !first.explicit {
			id = PrecinctID{
				Tile:       first.tmin,
				Component:  first.cmin,
				Resolution: first.rmin,
				ID:         first.pmin,
			}
		}
		return id, c.statement(), true
	}
	return PrecinctID{}, Statement{}, false
}

// PrecinctBlock - statements for a block of precincts in one
// tile-component-resolution of a codestream
//
// tilesAcross and precinctsAcross are the numbers of tile and
// precinct columns.  The absolute id of the precinct in row y and
// column x is idBase + (y*precinctsAcross + x)*idGap.  region selects
// the block in precinct units.  The result has one Statement per
// precinct in raster order.  Matched atomic instructions are
// discarded; the flag is true if anything matched.
func (m *Model) PrecinctBlock(stream int, tile int, component int, resolution int, tilesAcross int, precinctsAcross int, idBase int64, idGap int64, region window.Dims) ([]Statement, bool) {
	width := region.Size.X
	height := region.Size.Y
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	combiners := make([]combiner, width*height)
	for n := range combiners {
		combiners[n].precinct = true
		combiners[n].backgroundIsSet = m.backgroundFull
	}

	found := false
	for _, sc := range m.contexts {
		if !sc.covers(stream) {
			continue
		}
		drop := map[*instruction]bool{}
		for _, i := range sc.instructions {
			if databin.Precinct != i.class {
				continue
			}
			if !i.explicit && !implicitCovers(i, tile, component, resolution, tilesAcross) {
				continue
			}
			matched := false
			for y := 0; y < height; y += 1 {
				py := region.Pos.Y + y
				for x := 0; x < width; x += 1 {
					px := region.Pos.X + x
					relative := int64(py)*int64(precinctsAcross) + int64(px)
					if i.explicit {
						if i.binID >= 0 && i.binID != idBase+relative*idGap {
							continue
						}
					} else if !blockCovers(i.pmin, i.pmax, relative, int64(precinctsAcross)) {
						continue
					}
					combiners[y*width+x].add(i)
					matched = true
				}
			}
			if matched {
				found = true
				if i.atomic {
					drop[i] = true
				}
			}
		}
		sc.instructions = discard(sc.instructions, drop)
	}

	statements := make([]Statement, len(combiners))
	for n := range combiners {
		statements[n] = combiners[n].statement()
	}
	return statements, found || (m.backgroundFull && 0 != len(combiners))
}

func implicitCovers(i *instruction, tile int, component int, resolution int, tilesAcross int) bool {
	if !blockCovers(int64(i.tmin), int64(i.tmax), int64(tile), int64(tilesAcross)) {
		return false
	}
	if i.cmin >= 0 && (component < i.cmin || component > i.cmax) {
		return false
	}
	if i.rmin >= 0 && (resolution < i.rmin || resolution > i.rmax) {
		return false
	}
	return true
}

// index lies in the rectangle whose corners are min and max in a
// raster of the given width, a negative min covers everything
func blockCovers(min int64, max int64, index int64, across int64) bool {
	if min < 0 {
		return true
	}
	if across <= 0 {
		return index >= min && index <= max
	}
	x, y := index%across, index/across
	x0, y0 := min%across, min/across
	x1, y1 := max%across, max/across
	return x >= x0 && x <= x1 && y >= y0 && y <= y1
}
