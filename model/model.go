// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package model

import (
	"github.com/bitmark-inc/jpipd/databin"
)

// instruction flags
const (
	FlagComplete    = 0x01
	FlagLayers      = 0x02
	FlagSubtractive = 0x04
)

// Statement - what the instructions say about one data-bin
//
// the client holds B bytes with Additive <= B < Subtractive.  A
// negative Additive means complete, zero Subtractive means no upper
// bound.  For precincts both values are doubled: an even value 2P
// counts bytes and an odd value 2P+1 counts quality layers.
type Statement struct {
	Additive    int
	Subtractive int
}

// IsEmpty - the statement carries no information
func (s Statement) IsEmpty() bool {
	return 0 == s.Additive && 0 == s.Subtractive
}

type instruction struct {
	sequence    uint64 // order of addition
	atomic      bool
	subtractive bool
	layers      bool
	limit       int // inclusive, negative is complete for additive

	explicit bool
	class    databin.Class
	binID    int64 // explicit: negative is every bin of the class

	// implicit precinct coordinates, negative minimum is everything
	tmin, tmax int
	cmin, cmax int
	rmin, rmax int
	pmin, pmax int64
}

type streamContext struct {
	smin, smax   int // smin < 0 covers every codestream
	instructions []*instruction
}

func (sc *streamContext) isAtomic() bool {
	return sc.smin == sc.smax && sc.smin >= 0
}

func (sc *streamContext) covers(stream int) bool {
	return sc.smin < 0 || (stream >= sc.smin && stream <= sc.smax)
}

// Model - the cache model instructions of one request
type Model struct {
	stateless      bool
	backgroundFull bool

	contexts []*streamContext // ordered by smin
	current  *streamContext
	meta     []*instruction
	sequence uint64
}

// Clear - drop all instructions and the codestream context
func (m *Model) Clear() {
	m.contexts = nil
	m.current = nil
	m.meta = nil
}

// Init - empty the model and set its statelessness
func (m *Model) Init(stateless bool) {
	m.Clear()
	m.stateless = stateless
	m.backgroundFull = false
}

// InitBackground - empty the model and open the default codestream
// context for AddInstruction
//
// backgroundFull is only honoured for stateless models: every data-bin
// starts out complete and every instruction is subtractive
func (m *Model) InitBackground(stateless bool, backgroundFull bool, defaultStream int) {
	m.Clear()
	m.stateless = stateless
	m.backgroundFull = stateless && backgroundFull
	m.SetCodestreamContext(defaultStream, defaultStream)
}

// IsStateless - instructions apply to a stateless request
func (m *Model) IsStateless() bool {
	return m.stateless
}

// IsEmpty - the model says nothing about any cache
func (m *Model) IsEmpty() bool {
	if m.backgroundFull || 0 != len(m.meta) {
		return false
	}
	for _, sc := range m.contexts {
		if 0 != len(sc.instructions) {
			return false
		}
	}
	return true
}

// SetCodestreamContext - the codestreams later instructions apply to
//
// a negative min means every codestream
func (m *Model) SetCodestreamContext(min int, max int) {
	if min < 0 {
		min, max = -1, -1
	} else if max < min {
		max = min
	}
	position := len(m.contexts)
	for i, sc := range m.contexts {
		if sc.smin == min && sc.smax == max {
			m.current = sc
			return
		}
		if sc.smin > min && position == len(m.contexts) {
			position = i
		}
	}
	sc := &streamContext{
		smin: min,
		smax: max,
	}
	m.contexts = append(m.contexts, nil)
	copy(m.contexts[position+1:], m.contexts[position:])
	m.contexts[position] = sc
	m.current = sc
}

func (m *Model) next() uint64 {
	m.sequence += 1
	return m.sequence
}

func (m *Model) context() *streamContext {
	if nil == m.current {
		m.SetCodestreamContext(0, 0)
	}
	return m.current
}

// AddInstruction - an explicit instruction for a data-bin id, or for
// every data-bin of the class when binID is negative
//
// FlagLayers only applies to precincts.  A negative additive limit
// says the data-bin is complete.
func (m *Model) AddInstruction(class databin.Class, binID int64, flags int, limit int) {
	if !class.Valid() {
		return
	}
	if binID < 0 {
		binID = -1
	}
	i := &instruction{
		sequence:    m.next(),
		subtractive: m.backgroundFull || 0 != flags&FlagSubtractive,
		layers:      databin.Precinct == class && 0 != flags&FlagLayers,
		limit:       limit,
		explicit:    true,
		class:       class,
		binID:       binID,
	}
	if 0 != flags&FlagComplete && !i.subtractive {
		i.limit = -1
	}
	if i.subtractive && i.limit < 0 {
		i.limit = 0
	}

	if databin.Meta == class {
		i.atomic = binID >= 0
		m.meta = append(m.meta, i)
		return
	}
	sc := m.context()
	i.atomic = binID >= 0 && sc.isAtomic()
	sc.instructions = append(sc.instructions, i)
}

// AddImplicitInstruction - an instruction for precincts named by
// tile, component, resolution and precinct ranges
//
// a negative minimum covers everything.  Tile and precinct ranges
// name the corners of a rectangular block.  Only FlagLayers gives the
// limit a meaning: without it an additive instruction says complete
// and a subtractive one says empty.
func (m *Model) AddImplicitInstruction(tmin int, tmax int, cmin int, cmax int, rmin int, rmax int, pmin int64, pmax int64, flags int, limit int) {
	normalise := func(min int, max int) (int, int) {
		if min < 0 {
			return -1, -1
		}
		if max < min {
			return min, min
		}
		return min, max
	}
	tmin, tmax = normalise(tmin, tmax)
	cmin, cmax = normalise(cmin, cmax)
	rmin, rmax = normalise(rmin, rmax)
	if pmin < 0 {
		pmin, pmax = -1, -1
	} else if pmax < pmin {
		pmax = pmin
	}

	i := &instruction{
		sequence:    m.next(),
		subtractive: m.backgroundFull || 0 != flags&FlagSubtractive,
		layers:      true,
		limit:       limit,
		class:       databin.Precinct,
		tmin:        tmin,
		tmax:        tmax,
		cmin:        cmin,
		cmax:        cmax,
		rmin:        rmin,
		rmax:        rmax,
		pmin:        pmin,
		pmax:        pmax,
	}
	if 0 == flags&FlagLayers || 0 != flags&FlagComplete {
		if i.subtractive {
			i.limit = 0
		} else {
			i.limit = -1
		}
	}
	if i.subtractive && i.limit < 0 {
		i.limit = 0
	}

	sc := m.context()
	i.atomic = sc.isAtomic() && tmin >= 0 && tmin == tmax && cmin >= 0 && cmin == cmax &&
		rmin >= 0 && rmin == rmax && pmin >= 0 && pmin == pmax
	sc.instructions = append(sc.instructions, i)
}

// Append - add copies of all instructions of src after those of m
func (m *Model) Append(src *Model) {
	if m == src {
		return
	}
	current := m.current

	type ordered struct {
		sc *streamContext
		i  *instruction
	}
	all := []ordered{}
	for _, sc := range src.contexts {
		for _, i := range sc.instructions {
			all = append(all, ordered{sc, i})
		}
	}
	for _, i := range src.meta {
		all = append(all, ordered{nil, i})
	}
	// keep the relative order of addition in src
	for a := 1; a < len(all); a += 1 {
		for b := a; b > 0 && all[b].i.sequence < all[b-1].i.sequence; b -= 1 {
			all[b], all[b-1] = all[b-1], all[b]
		}
	}

	for _, o := range all {
		c := *o.i
		c.sequence = m.next()
		if nil == o.sc {
			m.meta = append(m.meta, &c)
			continue
		}
		m.SetCodestreamContext(o.sc.smin, o.sc.smax)
		m.current.instructions = append(m.current.instructions, &c)
	}

	if nil != current {
		m.current = current
	} else if nil != src.current {
		m.SetCodestreamContext(src.current.smin, src.current.smax)
	}
}

// CopyFrom - replace m by a copy of src
func (m *Model) CopyFrom(src *Model) {
	if m == src {
		return
	}
	m.Clear()
	m.stateless = src.stateless
	m.backgroundFull = src.backgroundFull
	m.Append(src)
	if nil != src.current {
		m.SetCodestreamContext(src.current.smin, src.current.smax)
	}
}
