// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package serve

import (
	"github.com/bitmark-inc/jpipd/databin"
)

// Chunk - a run of complete messages ready for transmission
//
// Data starts with PrefixBytes reserved for the transport and never
// grows beyond MaxBytes.  Set Abandoned before calling ReleaseChunks
// if the chunk was not delivered.
type Chunk struct {
	MaxBytes    int
	PrefixBytes int
	Data        []byte
	Abandoned   bool

	bins []binRef
}

// a data-bin advanced by a chunk and its state before the first
// message the chunk carries for it
type binRef struct {
	key    databin.Key
	before binState
}

// Body - the chunk without its prefix
func (c *Chunk) Body() []byte {
	return c.Data[c.PrefixBytes:]
}

// IsEmpty - true if nothing follows the prefix
func (c *Chunk) IsEmpty() bool {
	return len(c.Data) <= c.PrefixBytes
}

func (c *Chunk) available() int {
	return c.MaxBytes - len(c.Data)
}

func (c *Chunk) addBin(key databin.Key, before binState) {
	for _, b := range c.bins {
		if b.key == key {
			return
		}
	}
	c.bins = append(c.bins, binRef{
		key:    key,
		before: before,
	})
}

func newChunk(maxBytes int, prefixBytes int) *Chunk {
	return &Chunk{
		MaxBytes:    maxBytes,
		PrefixBytes: prefixBytes,
		Data:        make([]byte, prefixBytes, maxBytes),
	}
}
