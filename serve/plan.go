// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package serve

import (
	"math"
	"sort"

	"github.com/bitmark-inc/jpipd/databin"
	"github.com/bitmark-inc/jpipd/model"
	"github.com/bitmark-inc/jpipd/target"
	"github.com/bitmark-inc/jpipd/window"
)

// limits on how far a window may expand
const (
	maximumStreams       = 1024
	maximumContextLength = 4096
)

// streamView - one codestream as seen through a window
type streamView struct {
	stream     int
	structure  *target.Structure
	codestream target.Codestream
	imagery    bool
	discard    int
	region     window.Dims // high resolution canvas
	components []int
	layers     int
	slopes     []int
}

// increment - one step of the delivery sequence
type increment struct {
	key        databin.Key
	view       *streamView
	tile       int
	component  int
	resolution int
	index      int64
	layers     int // precincts: deliver the first layers
	bin        *target.Metabin
	limit      int // meta: deliver the first limit bytes
}

// plan - everything a window context will deliver, in order
type plan struct {
	views      []*streamView
	streams    []int
	items      []increment
	position   int
	statements map[databin.Key]model.Statement
	metadata   map[int64]metaContent
}

type metaContent struct {
	data   []byte
	length int
}

// a precinct selected for delivery
type precinctRef struct {
	view       int
	tile       int
	component  int
	resolution int
	index      int64
	key        databin.Key
	relevance  float64
}

type packet struct {
	precinct int
	layer    int
	round    int
}

// a codestream asked for, with geometry relative to that codestream
type streamRequest struct {
	stream     int
	resolution window.Coords
	region     window.Dims
	components []int
}

// buildPlan - resolve the window of a context into an ordered list of
// increments, consuming matching cache-model instructions
func (s *Server) buildPlan(ctx *windowContext) *plan {
	p := &plan{
		statements: make(map[databin.Key]model.Statement),
		metadata:   make(map[int64]metaContent),
	}
	w := &ctx.window

	for i, r := range s.resolveStreams(w) {
		v := s.attach(r, w, 0 == i && nil == r.components)
		if nil == v {
			continue
		}
		p.views = append(p.views, v)
		p.streams = append(p.streams, v.stream)
	}
	if 0 != ctx.prefs.Preferred&window.PrefCodestreamBackward || 0 != ctx.prefs.Required&window.PrefCodestreamBackward {
		for i, j := 0, len(p.views)-1; i < j; i, j = i+1, j-1 {
			p.views[i], p.views[j] = p.views[j], p.views[i]
		}
	}
	interleaved := 0 != (ctx.prefs.Preferred|ctx.prefs.Required)&window.PrefCodestreamInterleaved

	meta := selectMetadata(s.target.Metatree(), w, p.views)
	for _, m := range meta {
		_, st, ok := ctx.model.MetaInstructions(m.bin.ID)
		if ok {
			p.statements[databin.NewKey(databin.Meta, 0, m.bin.ID)] = st
		}
	}

	if w.MetadataOnly {
		for _, m := range meta {
			p.items = append(p.items, metaIncrement(m))
		}
		return p
	}

	headers := []increment{}
	tileHeaders := []increment{}
	precincts := []precinctRef{}
	for n, v := range p.views {
		key := databin.NewKey(databin.MainHeader, int64(v.stream), 0)
		if st, ok := ctx.model.HeaderInstructions(v.stream, -1); ok {
			p.statements[key] = st
		}
		headers = append(headers, increment{
			key:  key,
			view: v,
			tile: -1,
		})
		if !v.imagery {
			continue
		}
		for _, t := range v.structure.Tiles(v.region) {
			key := databin.NewKey(databin.TileHeader, int64(v.stream), int64(t))
			if st, ok := ctx.model.HeaderInstructions(v.stream, t); ok {
				p.statements[key] = st
			}
			tileHeaders = append(tileHeaders, increment{
				key:  key,
				view: v,
				tile: t,
			})
			precincts = s.selectPrecincts(ctx.model, p, n, v, t, precincts)
		}
	}

	packets := s.orderPackets(p.views, precincts, interleaved)

	imagery := make([]increment, len(packets))
	for i, pk := range packets {
		pr := precincts[pk.precinct]
		imagery[i] = increment{
			key:        pr.key,
			view:       p.views[pr.view],
			tile:       pr.tile,
			component:  pr.component,
			resolution: pr.resolution,
			index:      pr.index,
			layers:     pk.layer + 1,
		}
	}

	p.items = append(p.items, headers...)
	m := 0
	for ; m < len(meta) && target.SequenceImagery == meta[m].sequence; m += 1 {
		p.items = append(p.items, metaIncrement(meta[m]))
	}
	p.items = append(p.items, tileHeaders...)

	// remaining metadata is spread through the imagery in proportion
	// to its sequence
	for i, inc := range imagery {
		for ; m < len(meta) && meta[m].sequence < target.MaxSequence; m += 1 {
			if meta[m].sequence*len(imagery) > i*(target.MaxSequence+1) {
				break
			}
			p.items = append(p.items, metaIncrement(meta[m]))
		}
		p.items = append(p.items, inc)
	}
	for ; m < len(meta); m += 1 {
		p.items = append(p.items, metaIncrement(meta[m]))
	}
	return p
}

func metaIncrement(m metaItem) increment {
	return increment{
		key:   databin.NewKey(databin.Meta, 0, m.bin.ID),
		bin:   m.bin,
		limit: m.end,
	}
}

// resolveStreams - the codestreams named by a window either directly
// or through codestream contexts, recording each context expansion
func (s *Server) resolveStreams(w *window.Window) []streamRequest {
	ranges := s.target.CodestreamRanges(-1)
	if 0 == len(ranges) {
		return nil
	}
	exists := func(stream int) bool {
		for _, r := range ranges {
			if stream >= r.From && stream <= r.To {
				return true
			}
		}
		return false
	}
	last := ranges[len(ranges)-1].To

	requests := []streamRequest{}
	seen := map[int]bool{}
	add := func(r streamRequest) {
		if seen[r.stream] || len(requests) >= maximumStreams {
			return
		}
		seen[r.stream] = true
		requests = append(requests, r)
	}

	for _, stream := range w.Codestreams.Expand(0, last) {
		if exists(stream) {
			add(streamRequest{
				stream:     stream,
				resolution: w.Resolution,
				region:     w.Region,
			})
		}
	}

	for n := 0; n < w.Contexts.NumRanges(); n += 1 {
		r := w.Contexts.Range(n)
		if window.ContextNone == r.ContextType || window.ContextTranslated == r.ContextType || r.IsEmpty() {
			continue
		}
		expansion := w.CreateContextExpansion(n)
		step := r.Step
		if step < 1 {
			step = 1
		}
		count := 0
	contexts:
		for index := r.From; index <= r.To && count < maximumContextLength; index += step {
			count += 1
			remapping := r.RemappingIDs
			members := s.target.NumContextMembers(r.ContextType, index, &remapping)
			for member := 0; member < members; member += 1 {
				stream := s.target.ContextCodestream(r.ContextType, index, remapping, member)
				if stream < 0 || !exists(stream) {
					continue
				}
				resolution := w.Resolution
				region := w.Region
				if !s.target.RemapContext(r.ContextType, index, remapping, member, &resolution, &region) {
					continue
				}
				expansion.AddValue(stream)
				add(streamRequest{
					stream:     stream,
					resolution: resolution,
					region:     region,
					components: s.target.ContextComponents(r.ContextType, index, remapping, member),
				})
				if len(requests) >= maximumStreams {
					break contexts
				}
			}
		}
	}

	if w.Codestreams.IsEmpty() && w.Contexts.IsEmpty() {
		stream := ranges[0].From
		if exists(0) {
			stream = 0
		}
		add(streamRequest{
			stream:     stream,
			resolution: w.Resolution,
			region:     w.Region,
		})
	}
	return requests
}

// attach - open a requested codestream and work out its geometry
//
// with rewrite set the window resolution and region become what is
// actually served
func (s *Server) attach(r streamRequest, w *window.Window, rewrite bool) *streamView {
	structure, ok := s.target.Structure(r.stream)
	if !ok {
		return nil
	}
	cs, ok := s.target.Attach(r.stream, s.token)
	if !ok {
		return nil
	}

	v := &streamView{
		stream:     r.stream,
		structure:  structure,
		codestream: cs,
		imagery:    !w.MetadataOnly && r.resolution.X > 0 && r.resolution.Y > 0,
		layers:     structure.Layers,
	}
	if w.MaxLayers > 0 && w.MaxLayers < v.layers {
		v.layers = w.MaxLayers
	}
	if rd, ok := s.target.RDInfo(r.stream); ok && len(rd.Slopes) >= v.layers {
		v.slopes = rd.Slopes
	}

	if !v.imagery {
		return v
	}
	v.discard = structure.DiscardLevels(r.resolution, w.RoundDirection)
	v.region = structure.CanvasRegion(r.resolution, r.region, v.discard)
	if v.region.IsEmpty() {
		v.imagery = false
	}

	components := r.components
	if nil == components {
		components = w.Components.Expand(0, structure.NumComponents()-1)
		if w.Components.IsEmpty() {
			components = make([]int, structure.NumComponents())
			for i := range components {
				components[i] = i
			}
		}
	}
	for _, c := range components {
		if c >= 0 && c < structure.NumComponents() {
			v.components = append(v.components, c)
		}
	}

	size := structure.ImageSize(v.discard)
	if rewrite && size != r.resolution {
		w.Region = scaleRegion(w.Region, r.resolution, size)
		w.Resolution = size
	}
	return v
}

func scaleRegion(region window.Dims, from window.Coords, to window.Coords) window.Dims {
	if region.IsEmpty() || from.X <= 0 || from.Y <= 0 {
		return region
	}
	x0 := int64(region.Pos.X) * int64(to.X) / int64(from.X)
	y0 := int64(region.Pos.Y) * int64(to.Y) / int64(from.Y)
	x1 := (int64(region.Pos.X+region.Size.X)*int64(to.X) + int64(from.X) - 1) / int64(from.X)
	y1 := (int64(region.Pos.Y+region.Size.Y)*int64(to.Y) + int64(from.Y) - 1) / int64(from.Y)
	return window.Dims{
		Pos:  window.Coords{X: int(x0), Y: int(y0)},
		Size: window.Coords{X: int(x1 - x0), Y: int(y1 - y0)},
	}
}

// selectPrecincts - precincts of one tile that overlap the region,
// with the cache-model statements that apply to them
func (s *Server) selectPrecincts(m *model.Model, p *plan, viewIndex int, v *streamView, tile int, precincts []precinctRef) []precinctRef {
	st := v.structure
	grid := st.TileGrid()
	for _, c := range v.components {
		top := st.Components[c].Levels - v.discard
		for r := 0; r <= top; r += 1 {
			block := st.PrecinctBlock(tile, c, r, v.region)
			if block.IsEmpty() {
				continue
			}
			across := st.PrecinctGrid(tile, c, r).X
			statements, found := m.PrecinctBlock(v.stream, tile, c, r, grid.X, across, st.PrecinctID(tile, c, r, 0), st.PrecinctIDGap(), block)

			for y := 0; y < block.Size.Y; y += 1 {
				for x := 0; x < block.Size.X; x += 1 {
					index := int64(block.Pos.Y+y)*int64(across) + int64(block.Pos.X+x)
					area := st.PrecinctRegion(tile, c, r, index)
					overlap := area.Intersect(v.region).Area()
					if 0 == overlap {
						continue
					}
					key := databin.NewKey(databin.Precinct, int64(v.stream), st.PrecinctID(tile, c, r, index))
					if n := y*block.Size.X + x; found && !statements[n].IsEmpty() {
						p.statements[key] = statements[n]
					}
					precincts = append(precincts, precinctRef{
						view:       viewIndex,
						tile:       tile,
						component:  c,
						resolution: r,
						index:      index,
						key:        key,
						relevance:  float64(overlap) / float64(area.Area()),
					})
				}
			}
		}
	}
	return precincts
}

// orderPackets - the delivery order of every packet of the selected
// precincts
//
// without rate-distortion hints a packet of layer l is sent in round
// l.  With hints its slope is reduced by the precinct's relevance and
// it moves to the first round whose threshold it still meets.
func (s *Server) orderPackets(views []*streamView, precincts []precinctRef, interleaved bool) []packet {
	packets := []packet{}
	for n, pr := range precincts {
		v := views[pr.view]
		weight := 0
		if nil != v.slopes && !s.ignoreRelevance && pr.relevance < 1 {
			weight = int(256 * math.Log2(pr.relevance))
		}
		round := 0
		for l := 0; l < v.layers; l += 1 {
			if round < l {
				round = l
			}
			if nil != v.slopes {
				adjusted := v.slopes[l] + weight
				for round < v.layers-1 && v.slopes[round] > adjusted {
					round += 1
				}
			}
			packets = append(packets, packet{
				precinct: n,
				layer:    l,
				round:    round,
			})
		}
	}

	sort.SliceStable(packets, func(i int, j int) bool {
		a := packets[i]
		b := packets[j]
		pa := &precincts[a.precinct]
		pb := &precincts[b.precinct]
		if !interleaved && len(views) > 1 && pa.view != pb.view {
			return pa.view < pb.view
		}
		if a.round != b.round {
			return a.round < b.round
		}
		if pa.resolution != pb.resolution {
			return pa.resolution < pb.resolution
		}
		if !s.ignoreRelevance && pa.relevance != pb.relevance {
			return pa.relevance > pb.relevance
		}
		if a.precinct != b.precinct {
			return a.precinct < b.precinct
		}
		return a.layer < b.layer
	})
	return packets
}

// release - detach every codestream of the plan
func (s *Server) release(p *plan) {
	if nil == p {
		return
	}
	for _, v := range p.views {
		s.target.Detach(v.stream, s.token)
	}
	p.views = nil
	p.streams = nil
}
