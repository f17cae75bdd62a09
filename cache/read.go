// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cache

import (
	"io"

	"github.com/bitmark-inc/jpipd/databin"
)

// sequential read position within one data-bin
type readCursor struct {
	key databin.Key
	set bool
	pos int64
}

// SetReadScope - point the read cursor at the start of a data-bin
//
// returns the number of contiguous bytes currently available and
// whether the data-bin is complete
func (c *Cache) SetReadScope(class databin.Class, stream int64, id int64) (int64, bool) {
	c.Lock()
	c.cursor = readCursor{
		key: databin.NewKey(class, stream, id),
		set: class.Valid(),
	}
	c.Unlock()

	return c.DatabinLength(class, stream, id)
}

// SetTileHeaderScope - point the read cursor at a tile header of the
// current codestream
//
// returns false if the tile header is not yet complete, in which case
// a codestream reader must not rely on its contents
func (c *Cache) SetTileHeaderScope(tile int, numTiles int) bool {
	if tile < 0 || tile >= numTiles {
		return false
	}
	c.Lock()
	stream := c.cursor.key.Stream
	c.Unlock()

	_, complete := c.SetReadScope(databin.TileHeader, stream, int64(tile))
	return complete
}

// SetPrecinctScope - point the read cursor at a precinct of the
// current codestream, id is the absolute in-class id
//
// returns true if any bytes of the precinct are available
func (c *Cache) SetPrecinctScope(id int64) bool {
	if id < 0 {
		return false
	}
	c.Lock()
	stream := c.cursor.key.Stream
	c.Unlock()

	length, _ := c.SetReadScope(databin.Precinct, stream, id)
	return length > 0
}

// Read - read from the current data-bin, io.Reader compatible
//
// only the initial contiguous run is visible; io.EOF is returned at
// its end even if later bytes might arrive
func (c *Cache) Read(p []byte) (int, error) {
	c.Lock()
	cursor := c.cursor
	c.Unlock()

	if !cursor.set {
		return 0, io.EOF
	}
	if 0 == len(p) {
		return 0, nil
	}

	s, _ := c.acquire()
	n := 0
	if e, ok := s.bins[cursor.key]; ok {
		n = e.readAt(p, cursor.pos)
	}
	s.Unlock()

	if 0 == n {
		return 0, io.EOF
	}

	c.Lock()
	if c.cursor.set && c.cursor.key == cursor.key {
		c.cursor.pos += int64(n)
	}
	c.Unlock()
	return n, nil
}

// Seek - move the read cursor relative to the start of the current
// data-bin
//
// the position is clipped to the available contiguous bytes;
// returns false if no read scope is set
func (c *Cache) Seek(offset int64) bool {
	c.Lock()
	cursor := c.cursor
	c.Unlock()

	if !cursor.set {
		return false
	}
	if offset < 0 {
		offset = 0
	}
	s, _ := c.acquire()
	available := int64(0)
	if e, ok := s.bins[cursor.key]; ok {
		available = e.initialLength()
	}
	s.Unlock()

	if offset > available {
		offset = available
	}

	c.Lock()
	c.cursor.pos = offset
	c.Unlock()
	return true
}

// Pos - position of the read cursor in the current data-bin
func (c *Cache) Pos() int64 {
	c.Lock()
	defer c.Unlock()
	return c.cursor.pos
}

// DatabinPrefix - copy up to len(buffer) bytes from the start of a
// data-bin without using the read cursor
func (c *Cache) DatabinPrefix(class databin.Class, stream int64, id int64, buffer []byte) int {
	s, _ := c.acquire()
	defer s.Unlock()

	e := s.lookup(class, stream, id)
	if nil == e {
		return 0
	}
	return e.readAt(buffer, 0)
}

// DatabinPrefixOrWait - as DatabinPrefix, but returns -1 if fewer
// than len(buffer) bytes are available and the data-bin is not yet
// complete, so the caller knows to try again later
func (c *Cache) DatabinPrefixOrWait(class databin.Class, stream int64, id int64, buffer []byte) int {
	s, _ := c.acquire()
	defer s.Unlock()

	e := s.lookup(class, stream, id)
	if nil == e {
		if 0 == len(buffer) {
			return 0
		}
		return -1
	}
	n := e.readAt(buffer, 0)
	if n < len(buffer) && !e.isComplete() {
		return -1
	}
	return n
}
