// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package serve

import (
	"github.com/bitmark-inc/jpipd/databin"
	"github.com/bitmark-inc/jpipd/model"
	"github.com/bitmark-inc/jpipd/target"
)

// what the client is assumed to hold of one data-bin
type binState struct {
	held     int // contiguous bytes from the start of the bin
	complete bool
}

// cacheModel - the server's view of the client cache, shared by all
// window contexts
type cacheModel struct {
	bins     map[databin.Key]binState
	complete int
}

func newCacheModel() *cacheModel {
	return &cacheModel{
		bins: make(map[databin.Key]binState),
	}
}

func (m *cacheModel) get(key databin.Key) binState {
	return m.bins[key]
}

func (m *cacheModel) set(key databin.Key, s binState) {
	if m.bins[key].complete {
		m.complete -= 1
	}
	if s.complete {
		m.complete += 1
	}
	if 0 == s.held && !s.complete {
		delete(m.bins, key)
		return
	}
	m.bins[key] = s
}

func (m *cacheModel) clear() {
	m.bins = make(map[databin.Key]binState)
	m.complete = 0
}

// restore - undo whatever was recorded after before was taken, while
// keeping any reduction made since
func (m *cacheModel) restore(key databin.Key, before binState) {
	s := m.get(key)
	if before.held < s.held {
		s.held = before.held
	}
	s.complete = s.complete && before.complete
	m.set(key, s)
}

// statement value in bytes; precinct values are doubled, odd values
// counting quality layers
func statementBytes(value int, p *target.Precinct) int {
	if nil == p {
		return value
	}
	if 0 == value&1 {
		return value >> 1
	}
	return p.LayerBytes(value >> 1)
}

// apply - fold a cache-model statement into the state of a bin
//
// length is the full length of the bin and p is non-nil for
// precincts.  The subtractive bound is applied before the additive one.
func (m *cacheModel) apply(key databin.Key, st model.Statement, length int, p *target.Precinct) {
	s := m.get(key)

	if st.Subtractive > 0 {
		limit := 0
		if nil == p {
			limit = st.Subtractive - 1
		} else if 0 == st.Subtractive&1 {
			limit = st.Subtractive>>1 - 1
		} else {
			limit = p.LayerBytes(st.Subtractive>>1 - 1)
		}
		if limit < 0 {
			limit = 0
		}
		if s.held > limit {
			s.held = limit
		}
		if s.held < length {
			s.complete = false
		}
	}

	if st.Additive < 0 {
		s.held = length
		s.complete = true
	} else if st.Additive > 0 {
		n := statementBytes(st.Additive, p)
		if n > length {
			n = length
		}
		if n > s.held {
			s.held = n
		}
		if s.held == length {
			s.complete = true
		}
	}
	m.set(key, s)
}
