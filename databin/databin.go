// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package databin - addressing of incrementally delivered content
//
// every byte moved between a JPIP client and server belongs to one
// data-bin, identified by (class, codestream id, in-class id)
package databin

import (
	"encoding/binary"
	"fmt"
)

// Class - data-bin class
type Class int

// data-bin classes
const (
	Precinct   Class = 0
	TileHeader Class = 1
	Tile       Class = 2
	MainHeader Class = 3
	Meta       Class = 4
	Undefined  Class = 5

	NumClasses = 5
)

// Valid - true for one of the five defined classes
func (c Class) Valid() bool {
	return c >= Precinct && c < Undefined
}

// String - class name
func (c Class) String() string {
	switch c {
	case Precinct:
		return "precinct"
	case TileHeader:
		return "tile-header"
	case Tile:
		return "tile"
	case MainHeader:
		return "main-header"
	case Meta:
		return "meta"
	default:
		return "undefined"
	}
}

// class codes carried in JPIP message headers
const (
	WirePrecinct         = 0
	WireExtendedPrecinct = 1
	WireTileHeader       = 2
	WireTile             = 4
	WireExtendedTile     = 5
	WireMainHeader       = 6
	WireMeta             = 8
)

// ToWire - message header class code and whether the extended form
// (with an Aux field) is in use
func (c Class) ToWire(extended bool) int {
	switch c {
	case Precinct:
		if extended {
			return WireExtendedPrecinct
		}
		return WirePrecinct
	case TileHeader:
		return WireTileHeader
	case Tile:
		if extended {
			return WireExtendedTile
		}
		return WireTile
	case MainHeader:
		return WireMainHeader
	case Meta:
		return WireMeta
	default:
		return -1
	}
}

// FromWire - convert a message header class code
//
// returns Undefined for unknown codes
func FromWire(code int) (Class, bool) {
	switch code {
	case WirePrecinct:
		return Precinct, false
	case WireExtendedPrecinct:
		return Precinct, true
	case WireTileHeader:
		return TileHeader, false
	case WireTile:
		return Tile, false
	case WireExtendedTile:
		return Tile, true
	case WireMainHeader:
		return MainHeader, false
	case WireMeta:
		return Meta, false
	default:
		return Undefined, false
	}
}

// Key - full identity of a data-bin
type Key struct {
	Class  Class
	Stream int64
	ID     int64
}

// NewKey - build a key, meta data-bins do not belong to any codestream
func NewKey(class Class, stream int64, id int64) Key {
	if Meta == class {
		stream = 0
	}
	return Key{
		Class:  class,
		Stream: stream,
		ID:     id,
	}
}

// String - printable form
func (k Key) String() string {
	if Meta == k.Class {
		return fmt.Sprintf("%s:%d", k.Class, k.ID)
	}
	return fmt.Sprintf("%s:%d:%d", k.Class, k.Stream, k.ID)
}

// KeyBytes - length of a packed key
const KeyBytes = 17

// Pack - fixed width big endian form that sorts by class, stream then id
func (k Key) Pack() []byte {
	buffer := make([]byte, KeyBytes)
	buffer[0] = byte(k.Class)
	binary.BigEndian.PutUint64(buffer[1:], uint64(k.Stream))
	binary.BigEndian.PutUint64(buffer[9:], uint64(k.ID))
	return buffer
}

// UnpackKey - reverse of Pack
func UnpackKey(buffer []byte) (Key, bool) {
	if len(buffer) < KeyBytes {
		return Key{}, false
	}
	k := Key{
		Class:  Class(buffer[0]),
		Stream: int64(binary.BigEndian.Uint64(buffer[1:])),
		ID:     int64(binary.BigEndian.Uint64(buffer[9:])),
	}
	if !k.Class.Valid() {
		return Key{}, false
	}
	return k, true
}

// PrecinctID - absolute precinct data-bin identifier
//
//   I = t + (c + s * numComponents) * numTiles
//
// where s is the sequence number of the precinct within its
// tile-component, counting from the lowest resolution upwards
func PrecinctID(tile int, component int, sequence int64, numTiles int, numComponents int) int64 {
	return int64(tile) + (int64(component)+sequence*int64(numComponents))*int64(numTiles)
}

// SplitPrecinctID - reverse of PrecinctID
func SplitPrecinctID(id int64, numTiles int, numComponents int) (tile int, component int, sequence int64) {
	if numTiles <= 0 || numComponents <= 0 || id < 0 {
		return -1, -1, -1
	}
	tile = int(id % int64(numTiles))
	rest := id / int64(numTiles)
	component = int(rest % int64(numComponents))
	sequence = rest / int64(numComponents)
	return
}
