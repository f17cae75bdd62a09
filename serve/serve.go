// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package serve

import (
	"sync"

	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/jpipd/counter"
	"github.com/bitmark-inc/jpipd/databin"
	"github.com/bitmark-inc/jpipd/fault"
	"github.com/bitmark-inc/jpipd/model"
	"github.com/bitmark-inc/jpipd/target"
	"github.com/bitmark-inc/jpipd/window"
)

// smallest chunk body able to hold a useful message
const minimumChunkBody = 32

// per context state
type windowContext struct {
	id     int
	window window.Window
	prefs  window.Prefs
	model  *model.Model
	extra  []*Chunk
	plan   *plan
	active bool
	done   bool
}

// Server - response generator for one client session
type Server struct {
	sync.Mutex

	log             *logger.L
	target          target.Target
	token           target.Token
	encoder         Encoder
	maxChunkSize    int
	prefixBytes     int
	ignoreRelevance bool

	statelessSet  bool
	stateless     bool
	statelessDone bool

	cache     *cacheModel
	totalBins int
	contexts  map[int]*windowContext

	transferred counter.Counter
}

// Initialize - attach to a target
//
// every chunk is at most maxChunkSize bytes including chunkPrefixBytes
// reserved at its start.  A nil encoder selects JPIPEncoder.
func (s *Server) Initialize(t target.Target, maxChunkSize int, chunkPrefixBytes int, ignoreRelevance bool, encoder Encoder) error {
	s.Lock()
	defer s.Unlock()

	if nil != s.target {
		return fault.AlreadyInitialised
	}
	if chunkPrefixBytes < 0 || maxChunkSize < chunkPrefixBytes+minimumChunkBody {
		return fault.ChunkTooSmall
	}
	if nil == encoder {
		encoder = JPIPEncoder{}
	}

	s.log = logger.New("serve")
	s.target = t
	s.token = target.NewToken()
	s.encoder = encoder
	s.maxChunkSize = maxChunkSize
	s.prefixBytes = chunkPrefixBytes
	s.ignoreRelevance = ignoreRelevance
	s.statelessSet = false
	s.cache = newCacheModel()
	s.contexts = make(map[int]*windowContext)
	s.totalBins = countBins(t)

	s.log.Infof("target: %q  bins: %d  chunk: %d", t.ID(), s.totalBins, maxChunkSize)
	return nil
}

// Destroy - detach from the target, dropping all state
func (s *Server) Destroy() {
	s.Lock()
	defer s.Unlock()

	if nil == s.target {
		return
	}
	for _, ctx := range s.contexts {
		s.release(ctx.plan)
		ctx.plan = nil
	}
	s.log.Infof("destroy: transferred: %d bytes", s.transferred.Uint64())
	s.contexts = nil
	s.cache = nil
	s.target = nil
}

// Transferred - message bytes generated so far
func (s *Server) Transferred() uint64 {
	return s.transferred.Uint64()
}

// every data-bin of the target
func countBins(t target.Target) int {
	total := 0
	for _, r := range t.CodestreamRanges(-1) {
		for stream := r.From; stream <= r.To; stream += 1 {
			st, ok := t.Structure(stream)
			if !ok {
				continue
			}
			total += 1 + st.NumTiles()
			for tile := 0; tile < st.NumTiles(); tile += 1 {
				for c := range st.Components {
					for res := 0; res < st.NumResolutions(c); res += 1 {
						total += int(st.NumPrecincts(tile, c, res))
					}
				}
			}
		}
	}
	if root := t.Metatree(); nil != root {
		root.Walk(func(bin *target.Metabin, depth int) bool {
			total += 1
			return true
		})
	}
	return total
}

func (s *Server) context(id int) *windowContext {
	ctx, ok := s.contexts[id]
	if !ok {
		ctx = &windowContext{
			id:    id,
			model: &model.Model{},
		}
		ctx.window.Init()
		ctx.prefs.Init()
		ctx.model.Init(s.stateless)
		s.contexts[id] = ctx
	}
	return ctx
}

// SetWindow - replace the window of interest of a context
//
// instructions are the cache-model instructions received with the
// window, and may be nil.  A stateless window must use context 0 and
// cannot follow a stateful one, or the reverse.
func (s *Server) SetWindow(w *window.Window, prefs *window.Prefs, instructions *model.Model, stateless bool, contextID int) error {
	s.Lock()
	defer s.Unlock()

	if nil == s.target {
		return fault.NotInitialised
	}
	if stateless && 0 != contextID {
		return fault.InvalidStatelessContext
	}
	if s.statelessSet && s.stateless != stateless {
		return fault.MixedStatelessness
	}
	if nil != instructions && instructions.IsStateless() != stateless {
		return fault.MixedStatelessness
	}
	s.statelessSet = true
	s.stateless = stateless

	ctx := s.context(contextID)

	if nil != ctx.plan {
		if !stateless {
			s.settle(ctx.plan)
		}
		s.release(ctx.plan)
		ctx.plan = nil
	}

	if stateless {
		s.cache.clear()
		s.statelessDone = false
		ctx.model.Init(true)
		if nil != instructions {
			ctx.model.Append(instructions)
		}
		ctx.prefs.Init()
	} else {
		for _, other := range s.contexts {
			s.flushAtomic(other.model)
		}
		m := &model.Model{}
		m.Init(false)
		m.Append(ctx.model)
		if nil != instructions {
			m.Append(instructions)
		}
		ctx.model = m
	}
	if nil != prefs {
		ctx.prefs.Update(prefs)
	}

	ctx.window.CopyFrom(w, false)
	ctx.active = !w.IsEmpty()
	ctx.done = !ctx.active

	s.log.Debugf("context: %d  window: %dx%d  stateless: %t", contextID, w.Resolution.X, w.Resolution.Y, stateless)
	return nil
}

// Window - the window of a context as modified for serving, false if
// there is nothing left to serve for it
//
// the resolution and region may differ from the requested ones once
// generation has started
func (s *Server) Window(w *window.Window, contextID int) bool {
	s.Lock()
	defer s.Unlock()

	ctx, ok := s.contexts[contextID]
	if !ok {
		w.Init()
		return false
	}
	if ctx.active && nil == ctx.plan {
		ctx.plan = s.buildPlan(ctx)
	}
	w.CopyFrom(&ctx.window, true)
	return ctx.active && !ctx.done
}

// ImageDone - true if the client has been sent everything
//
// in stateless mode only the last window is considered
func (s *Server) ImageDone() bool {
	s.Lock()
	defer s.Unlock()

	if nil == s.target {
		return false
	}
	if s.stateless {
		return s.statelessDone
	}
	return s.totalBins > 0 && s.cache.complete >= s.totalBins
}

// flushAtomic - apply every atomic instruction that no window will
// ask about, so that later windows see them
func (s *Server) flushAtomic(m *model.Model) {
	if m.IsStateless() {
		return
	}

	root := s.target.Metatree()
	for {
		id, st, ok := m.MetaInstructions(-1)
		if id < 0 {
			break
		}
		if !ok || nil == root {
			continue
		}
		if bin := root.Find(id); nil != bin {
			if length, ok := bin.Length(); ok {
				s.cache.apply(databin.NewKey(databin.Meta, 0, id), st, length, nil)
			}
		}
	}

	previous := -1
	for {
		stream := m.FirstAtomicStream()
		if stream < 0 {
			return
		}
		progress := s.flushStream(m, stream)
		if !progress && stream == previous {
			s.log.Warnf("stream: %d  unused atomic instructions", stream)
			return
		}
		previous = stream
	}
}

// apply the atomic header and precinct instructions of one codestream
func (s *Server) flushStream(m *model.Model, stream int) bool {
	cs, attached := s.target.Attach(stream, s.token)
	if attached {
		s.target.Lock([]int{stream}, s.token)
		defer func() {
			s.target.Release([]int{stream}, s.token)
			s.target.Detach(stream, s.token)
		}()
	}

	progress := false
	for {
		tile, st, ok := m.NextHeaderInstructions(stream)
		if !ok {
			break
		}
		progress = true
		if !attached {
			continue
		}
		if tile < 0 {
			s.cache.apply(databin.NewKey(databin.MainHeader, int64(stream), 0), st, len(cs.MainHeader()), nil)
		} else {
			s.cache.apply(databin.NewKey(databin.TileHeader, int64(stream), int64(tile)), st, len(cs.TileHeader(tile)), nil)
		}
	}
	for {
		id, st, ok := m.PrecinctInstructions(stream)
		if !ok {
			break
		}
		progress = true
		if !attached {
			continue
		}
		structure := cs.Structure()
		tile, component, resolution, index := id.Tile, id.Component, id.Resolution, id.ID
		if id.Tile < 0 {
			tile, component, resolution, index, ok = structure.LocatePrecinct(id.ID)
			if !ok {
				continue
			}
		}
		p := cs.Precinct(tile, component, resolution, index)
		key := databin.NewKey(databin.Precinct, int64(stream), structure.PrecinctID(tile, component, resolution, index))
		s.cache.apply(key, st, len(p.Data), &p)
	}
	return progress
}

// PushExtraData - queue bytes to go out ahead of the next increments
// of a context, returning the space left in the last queued chunk
func (s *Server) PushExtraData(data []byte, contextID int) (int, error) {
	s.Lock()
	defer s.Unlock()

	if nil == s.target {
		return 0, fault.NotInitialised
	}
	ctx := s.context(contextID)
	chunks, remaining, err := s.appendExtra(ctx.extra, data)
	if nil != err {
		return 0, err
	}
	ctx.extra = chunks
	return remaining, nil
}

// AppendExtraData - add bytes to the end of a chunk list, returning
// the list and the space left in its last chunk
func (s *Server) AppendExtraData(chunks []*Chunk, data []byte) ([]*Chunk, int, error) {
	s.Lock()
	defer s.Unlock()

	if nil == s.target {
		return chunks, 0, fault.NotInitialised
	}
	return s.appendExtra(chunks, data)
}

func (s *Server) appendExtra(chunks []*Chunk, data []byte) ([]*Chunk, int, error) {
	if len(data) > s.maxChunkSize-s.prefixBytes {
		return chunks, 0, fault.ExtraDataTooLong
	}
	n := len(chunks)
	if 0 == n || chunks[n-1].available() < len(data) {
		chunks = append(chunks, newChunk(s.maxChunkSize, s.prefixBytes))
		n += 1
	}
	last := chunks[n-1]
	last.Data = append(last.Data, data...)
	return chunks, last.available(), nil
}

// RetrieveExtraDataChunks - take the queued extra data of a context,
// nil if there is none
func (s *Server) RetrieveExtraDataChunks(contextID int) []*Chunk {
	s.Lock()
	defer s.Unlock()

	ctx, ok := s.contexts[contextID]
	if !ok {
		return nil
	}
	chunks := ctx.extra
	ctx.extra = nil
	return chunks
}

// ReleaseChunks - finished with chunks from GenerateIncrements
//
// with checkAbandoned the cache model forgets the contents of every
// chunk marked Abandoned and affected windows are served again
func (s *Server) ReleaseChunks(chunks []*Chunk, checkAbandoned bool) {
	s.Lock()
	defer s.Unlock()

	if nil == s.target || !checkAbandoned {
		return
	}
	rolledBack := 0
	for _, c := range chunks {
		if !c.Abandoned {
			continue
		}
		for i := len(c.bins) - 1; i >= 0; i -= 1 {
			s.cache.restore(c.bins[i].key, c.bins[i].before)
			rolledBack += 1
		}
		c.bins = nil
	}
	if 0 == rolledBack {
		return
	}
	s.statelessDone = false
	for _, ctx := range s.contexts {
		if nil != ctx.plan {
			ctx.plan.position = 0
		}
		if ctx.active {
			ctx.done = false
		}
	}
	s.log.Debugf("rolled back: %d data-bins", rolledBack)
}
