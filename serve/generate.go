// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package serve

import (
	"github.com/bitmark-inc/jpipd/databin"
	"github.com/bitmark-inc/jpipd/message"
	"github.com/bitmark-inc/jpipd/target"
)

// size of reads from rubber length metadata groups
const rubberReadSize = 4096

// state of one GenerateIncrements call
type generation struct {
	server   *Server
	chunks   []*Chunk
	coupling message.Coupling
	decouple bool
	align    bool
	extended bool
	total    int
	maxBytes int
	limited  bool
}

// GenerateIncrements - messages for the window of a context
//
// generation stops at the first data-bin boundary after suggested
// bytes have been produced and never produces more than maxBytes
// message bytes, cutting a data-bin short if need be.  With align set
// a cut precinct ends on a packet boundary where one is available.
// Extended selects extended precinct headers carrying the layer count
// and decouple makes every chunk decodable on its own.
//
// queued extra data comes first and does not count against the
// limits.  The result always holds at least one chunk.  The second
// value is what remains of maxBytes, and is 0 if the limit was reached
// before the window was complete.
func (s *Server) GenerateIncrements(suggested int, maxBytes int, align bool, extended bool, decouple bool, contextID int) ([]*Chunk, int) {
	s.Lock()
	defer s.Unlock()

	if nil == s.target {
		return []*Chunk{{}}, maxBytes
	}

	ctx, ok := s.contexts[contextID]
	chunks := []*Chunk(nil)
	if ok {
		chunks = ctx.extra
		ctx.extra = nil
	}
	if 0 == len(chunks) {
		chunks = []*Chunk{newChunk(s.maxChunkSize, s.prefixBytes)}
	}
	if !ok || !ctx.active || ctx.done {
		return chunks, maxBytes
	}

	if nil == ctx.plan {
		ctx.plan = s.buildPlan(ctx)
	}
	p := ctx.plan

	if 0 != len(p.streams) {
		s.target.Lock(p.streams, s.token)
		defer s.target.Release(p.streams, s.token)
	}

	g := &generation{
		server:   s,
		chunks:   chunks,
		decouple: decouple,
		align:    align,
		extended: extended,
		maxBytes: maxBytes,
	}

	for p.position < len(p.items) {
		if g.total >= suggested {
			break
		}
		if !g.deliver(p, &p.items[p.position]) {
			break
		}
		p.position += 1
	}

	if p.position >= len(p.items) {
		ctx.done = true
		if s.stateless {
			s.statelessDone = true
			s.cache.clear()
		}
	}

	s.transferred.Add(uint64(g.total))
	remaining := maxBytes - g.total
	if g.limited || remaining < 0 {
		remaining = 0
	}
	s.log.Tracef("context: %d  generated: %d bytes  chunks: %d  position: %d/%d", contextID, g.total, len(g.chunks), p.position, len(p.items))
	return g.chunks, remaining
}

// deliver - send what the client lacks of one increment, false if the
// byte limit stopped it
func (g *generation) deliver(p *plan, inc *increment) bool {
	s := g.server

	data, length, end, precinct, ok := s.content(p, inc)
	if !ok {
		return true
	}
	if st, ok := p.statements[inc.key]; ok {
		s.cache.apply(inc.key, st, length, precinct)
		delete(p.statements, inc.key)
	}
	return g.send(inc.key, data, end, length, precinct)
}

// content - the bytes of an increment's data-bin, its full length and
// where this increment stops; precinct is non-nil for precinct bins
func (s *Server) content(p *plan, inc *increment) ([]byte, int, int, *target.Precinct, bool) {
	switch inc.key.Class {
	case databin.MainHeader:
		data := inc.view.codestream.MainHeader()
		return data, len(data), len(data), nil, true
	case databin.TileHeader:
		data := inc.view.codestream.TileHeader(inc.tile)
		return data, len(data), len(data), nil, true
	case databin.Precinct:
		pr := inc.view.codestream.Precinct(inc.tile, inc.component, inc.resolution, inc.index)
		end := len(pr.Data)
		if inc.layers < len(pr.Layers) {
			end = pr.LayerBytes(inc.layers)
		}
		return pr.Data, len(pr.Data), end, &pr, true
	case databin.Meta:
		m := s.readMetabin(p, inc.bin)
		end := inc.limit
		if end > len(m.data) {
			end = len(m.data)
		}
		return m.data, m.length, end, nil, true
	}
	return nil, 0, 0, nil, false
}

// settle - apply the statements a plan took from the cache model but
// never reached, so they outlive the plan
func (s *Server) settle(p *plan) {
	if 0 == len(p.statements) {
		return
	}
	if 0 != len(p.streams) {
		s.target.Lock(p.streams, s.token)
		defer s.target.Release(p.streams, s.token)
	}
	for i := range p.items {
		inc := &p.items[i]
		st, ok := p.statements[inc.key]
		if !ok {
			continue
		}
		delete(p.statements, inc.key)
		if _, length, _, precinct, ok := s.content(p, inc); ok {
			s.cache.apply(inc.key, st, length, precinct)
		}
	}
	if 0 != len(p.statements) {
		s.log.Debugf("statements for unplanned data-bins: %d", len(p.statements))
	}
}

// readMetabin - contents of a meta data-bin, as far as available
func (s *Server) readMetabin(p *plan, bin *target.Metabin) metaContent {
	if m, ok := p.metadata[bin.ID]; ok {
		return m
	}
	m := metaContent{}
	available := true
	for _, g := range bin.Groups {
		if !available {
			break
		}
		if g.IsRubberLength {
			buffer := make([]byte, rubberReadSize)
			offset := 0
			for {
				n := s.target.ReadMetagroup(g, buffer, offset)
				m.data = append(m.data, buffer[:n]...)
				offset += n
				if n < len(buffer) {
					break
				}
			}
			continue
		}
		buffer := make([]byte, g.Length)
		n := s.target.ReadMetagroup(g, buffer, 0)
		m.data = append(m.data, buffer[:n]...)
		available = n == g.Length
	}
	if length, ok := bin.Length(); ok {
		m.length = length
	} else {
		m.length = len(m.data)
	}
	p.metadata[bin.ID] = m
	return m
}

// send - messages carrying bytes from what the client holds up to end
//
// length is the full bin length; precinct is non-nil for precinct
// data-bins
func (g *generation) send(key databin.Key, data []byte, end int, length int, precinct *target.Precinct) bool {
	s := g.server
	state := s.cache.get(key)
	final := end == length

	from := state.held
	if from > end {
		from = end
	}
	if from == end && (state.complete || !final) {
		return true
	}

	for {
		h := message.Header{
			Class:  key.Class,
			Stream: key.Stream,
			ID:     key.ID,
			Offset: int64(from),
			Length: int64(end - from),
			Final:  final,
		}
		if g.extended && nil != precinct {
			h.Extended = true
			h.Aux = int64(precinct.LayersIn(end))
		}
		overhead := s.encoder.MaximumHeaderLength(&h)
		need := overhead
		if end > from {
			need += 1
		}
		if g.maxBytes-g.total < need {
			g.limited = true
			return false
		}

		chunk := g.chunks[len(g.chunks)-1]
		if chunk.available() < need {
			if chunk.IsEmpty() {
				s.log.Errorf("chunk of %d bytes cannot hold a %d byte message header", chunk.MaxBytes, overhead)
				g.limited = true
				return false
			}
			g.chunks = append(g.chunks, newChunk(s.maxChunkSize, s.prefixBytes))
			if g.decouple {
				g.coupling = g.coupling.Decouple()
			}
			continue
		}

		chunkRoom := chunk.available() - overhead
		budgetRoom := g.maxBytes - g.total - overhead
		n := end - from
		if n > chunkRoom {
			n = chunkRoom
		}
		if n > budgetRoom {
			n = budgetRoom
		}

		// an aligned cut ends on a packet boundary, a packet is only
		// split if it cannot fit anywhere else
		if n < end-from && g.align && nil != precinct {
			boundary := 0
			for _, e := range precinct.Layers {
				if e > from && e <= from+n {
					boundary = e
				}
			}
			if boundary > from {
				n = boundary - from
			} else if chunkRoom < budgetRoom && !chunk.IsEmpty() {
				g.chunks = append(g.chunks, newChunk(s.maxChunkSize, s.prefixBytes))
				if g.decouple {
					g.coupling = g.coupling.Decouple()
				}
				continue
			} else if g.total > 0 {
				g.limited = true
				return false
			}
		}

		h.Length = int64(n)
		h.Final = final && from+n == length
		if h.Extended {
			h.Aux = int64(precinct.LayersIn(from + n))
		}

		chunk.addBin(key, state)
		before := len(chunk.Data)
		chunk.Data, g.coupling = s.encoder.AppendHeader(chunk.Data, &h, g.coupling)
		chunk.Data = append(chunk.Data, data[from:from+n]...)
		g.total += len(chunk.Data) - before

		from += n
		state.held = from
		if h.Final {
			state.complete = true
		}
		s.cache.set(key, state)

		if from >= end {
			return true
		}
	}
}
