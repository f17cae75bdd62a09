// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package codestream

import (
	"encoding/binary"

	"github.com/bitmark-inc/jpipd/fault"
	"github.com/bitmark-inc/jpipd/target"
	"github.com/bitmark-inc/jpipd/window"
)

// PacketFunc - supplies the bytes of one packet
type PacketFunc func(tile int, component int, resolution int, index int64, layer int) []byte

// largest PLT payload after Lplt and Zplt
const maximumPLT = 0xffff - 3

// Encode - write a codestream with PLT markers for a structure
//
// every tile is a single tile-part; packet bodies are opaque so the
// result is only meaningful to code that splits it back into
// data-bins
func Encode(s *target.Structure, packets PacketFunc) ([]byte, error) {
	if 0 == len(s.Components) || s.Image.IsEmpty() {
		return nil, fault.InvalidCodestream
	}

	buffer := []byte{}
	buffer = appendU16(buffer, markerSOC)
	buffer = appendSIZ(buffer, s)

	cod := s.Components[0]
	buffer = appendCOD(buffer, s, cod)
	for i, c := range s.Components[1:] {
		if !sameStyle(c, cod) {
			buffer = appendCOC(buffer, len(s.Components), i+1, c)
		}
	}

	for t := 0; t < s.NumTiles(); t += 1 {
		order, err := packetOrder(s, t)
		if nil != err {
			return nil, err
		}
		body := []byte{}
		lengths := []int{}
		for _, p := range order {
			data := packets(t, p.component, p.resolution, p.index, p.layer)
			body = append(body, data...)
			lengths = append(lengths, len(data))
		}

		header := appendPLT(nil, lengths)
		psot := 2 + lengthSOT + len(header) + 2 + len(body)

		buffer = appendU16(buffer, markerSOT)
		buffer = appendU16(buffer, lengthSOT)
		buffer = appendU16(buffer, uint16(t))
		buffer = appendU32(buffer, uint32(psot))
		buffer = append(buffer, 0, 1) // tile-part 0 of 1
		buffer = append(buffer, header...)
		buffer = appendU16(buffer, markerSOD)
		buffer = append(buffer, body...)
	}
	return appendU16(buffer, markerEOC), nil
}

func appendU16(buffer []byte, value uint16) []byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], value)
	return append(buffer, b[:]...)
}

func appendU32(buffer []byte, value uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], value)
	return append(buffer, b[:]...)
}

func appendSIZ(buffer []byte, s *target.Structure) []byte {
	x1 := s.Image.Pos.X + s.Image.Size.X
	y1 := s.Image.Pos.Y + s.Image.Size.Y
	tileSize := s.TileSize
	if tileSize.X <= 0 || tileSize.Y <= 0 {
		tileSize = window.Coords{X: x1, Y: y1}
	}

	buffer = appendU16(buffer, markerSIZ)
	buffer = appendU16(buffer, uint16(lengthSIZ+3*len(s.Components)))
	buffer = appendU16(buffer, 0) // Rsiz
	buffer = appendU32(buffer, uint32(x1))
	buffer = appendU32(buffer, uint32(y1))
	buffer = appendU32(buffer, uint32(s.Image.Pos.X))
	buffer = appendU32(buffer, uint32(s.Image.Pos.Y))
	buffer = appendU32(buffer, uint32(tileSize.X))
	buffer = appendU32(buffer, uint32(tileSize.Y))
	buffer = appendU32(buffer, uint32(s.TileOrigin.X))
	buffer = appendU32(buffer, uint32(s.TileOrigin.Y))
	buffer = appendU16(buffer, uint16(len(s.Components)))
	for _, c := range s.Components {
		x := c.Subsampling.X
		y := c.Subsampling.Y
		if x <= 0 {
			x = 1
		}
		if y <= 0 {
			y = 1
		}
		buffer = append(buffer, 7, byte(x), byte(y)) // 8 bit unsigned
	}
	return buffer
}

// SPcod/SPcoc: levels, 64x64 code-blocks, no style bits, 5/3 wavelet
func appendStyle(buffer []byte, c target.Component) []byte {
	buffer = append(buffer, byte(c.Levels), 4, 4, 0, 1)
	if 0 != len(c.Precincts) {
		for r := 0; r <= c.Levels; r += 1 {
			e := window.Coords{X: defaultExponent, Y: defaultExponent}
			if r < len(c.Precincts) {
				e = c.Precincts[r]
			}
			buffer = append(buffer, byte(e.Y<<4|e.X&0x0f))
		}
	}
	return buffer
}

const defaultExponent = 15

func styleFlags(c target.Component) byte {
	if 0 != len(c.Precincts) {
		return styleUserPrecincts
	}
	return 0
}

func appendCOD(buffer []byte, s *target.Structure, c target.Component) []byte {
	parameters := appendStyle(nil, c)
	buffer = appendU16(buffer, markerCOD)
	buffer = appendU16(buffer, uint16(2+5+len(parameters)))
	buffer = append(buffer, styleFlags(c), byte(s.Progression))
	buffer = appendU16(buffer, uint16(s.Layers))
	buffer = append(buffer, 0) // no component transform
	return append(buffer, parameters...)
}

func appendCOC(buffer []byte, components int, index int, c target.Component) []byte {
	parameters := appendStyle(nil, c)
	width := 1
	if components > 256 {
		width = 2
	}
	buffer = appendU16(buffer, markerCOC)
	buffer = appendU16(buffer, uint16(2+width+1+len(parameters)))
	if 2 == width {
		buffer = appendU16(buffer, uint16(index))
	} else {
		buffer = append(buffer, byte(index))
	}
	buffer = append(buffer, styleFlags(c))
	return append(buffer, parameters...)
}

func sameStyle(a target.Component, b target.Component) bool {
	if a.Levels != b.Levels || len(a.Precincts) != len(b.Precincts) {
		return false
	}
	for i := range a.Precincts {
		if a.Precincts[i] != b.Precincts[i] {
			return false
		}
	}
	return true
}

// one or more PLT segments, never splitting a length
func appendPLT(buffer []byte, lengths []int) []byte {
	payload := []byte{}
	index := 0
	flush := func() {
		buffer = appendU16(buffer, markerPLT)
		buffer = appendU16(buffer, uint16(3+len(payload)))
		buffer = append(buffer, byte(index))
		buffer = append(buffer, payload...)
		payload = payload[:0]
		index += 1
	}
	for _, l := range lengths {
		encoded := encodeLength(l)
		if len(payload)+len(encoded) > maximumPLT {
			flush()
		}
		payload = append(payload, encoded...)
	}
	if 0 != len(payload) {
		flush()
	}
	return buffer
}

func encodeLength(value int) []byte {
	groups := []byte{byte(value & 0x7f)}
	value >>= 7
	for value > 0 {
		groups = append([]byte{byte(value&0x7f) | 0x80}, groups...)
		value >>= 7
	}
	return groups
}
