// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package client

import (
	"github.com/bitmark-inc/jpipd/cache"
	"github.com/bitmark-inc/jpipd/window"
)

// Translator - maps codestream contexts to codestreams using what the
// cache holds of the file format metadata
type Translator interface {
	// Init - bind to a cache, called on connection
	Init(c *cache.Cache)

	// Update - read newly arrived metadata, true if anything changed
	Update() bool

	// Close - forget everything learned from the cache
	Close()

	// NumContextMembers - codestreams in a context, 0 if unknown yet
	NumContextMembers(contextType int, contextIndex int, remapping [2]int) int

	// ContextCodestream - codestream of one member, -1 if unknown
	ContextCodestream(contextType int, contextIndex int, remapping [2]int, member int) int

	// ContextComponents - components of one member, nil for all
	ContextComponents(contextType int, contextIndex int, remapping [2]int, member int) []int

	// RemapContext - map a frame size and region onto a member
	RemapContext(contextType int, contextIndex int, remapping [2]int, member int, resolution *window.Coords, region *window.Dims) bool
}

// NullTranslator - a translator that knows no contexts
type NullTranslator struct{}

var _ Translator = NullTranslator{}

func (NullTranslator) Init(c *cache.Cache) {}
func (NullTranslator) Update() bool        { return false }
func (NullTranslator) Close()              {}

func (NullTranslator) NumContextMembers(contextType int, contextIndex int, remapping [2]int) int {
	return 0
}

func (NullTranslator) ContextCodestream(contextType int, contextIndex int, remapping [2]int, member int) int {
	return -1
}

func (NullTranslator) ContextComponents(contextType int, contextIndex int, remapping [2]int, member int) []int {
	return nil
}

func (NullTranslator) RemapContext(contextType int, contextIndex int, remapping [2]int, member int, resolution *window.Coords, region *window.Dims) bool {
	return false
}

// contextCodestreams - codestreams that the contexts of a window
// expand to, nil if the window has no contexts or none are known
func contextCodestreams(t Translator, w *window.Window) []int {
	streams := []int(nil)
	for i := 0; i < w.Contexts.NumRanges(); i += 1 {
		r := w.Contexts.Range(i)
		for index := r.From; index <= r.To; index += r.Step {
			n := t.NumContextMembers(r.ContextType, index, r.RemappingIDs)
			for member := 0; member < n; member += 1 {
				if s := t.ContextCodestream(r.ContextType, index, r.RemappingIDs, member); s >= 0 {
					streams = append(streams, s)
				}
			}
		}
	}
	return streams
}
