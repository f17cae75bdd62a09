// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package serve

import (
	"sort"

	"github.com/bitmark-inc/jpipd/target"
	"github.com/bitmark-inc/jpipd/window"
)

// a meta data-bin to deliver up to end bytes
type metaItem struct {
	bin      *target.Metabin
	end      int
	sequence int
	order    int
}

// selector - walks the metadata tree choosing groups for a window
type selector struct {
	window  *window.Window
	views   []*streamView
	items   []metaItem
	seen    map[int64]bool
	counter int
}

// selectMetadata - meta data-bins relevant to a window, ordered by
// sequence then by position in the tree
func selectMetadata(root *target.Metabin, w *window.Window, views []*streamView) []metaItem {
	if nil == root {
		return nil
	}
	sel := &selector{
		window: w,
		views:  views,
		seen:   make(map[int64]bool),
	}

	n := len(w.Metareqs)
	inside := make([]int, n)
	for i := range inside {
		inside[i] = -1
	}
	if ok, _ := sel.visit(root, 0, inside, make([]bool, n)); !ok {
		// an empty root bin is still sent, as a final empty message
		sel.items = append(sel.items, metaItem{
			bin:      root,
			sequence: target.SequenceImagery,
		})
	}

	sort.SliceStable(sel.items, func(i int, j int) bool {
		if sel.items[i].sequence != sel.items[j].sequence {
			return sel.items[i].sequence < sel.items[j].sequence
		}
		return sel.items[i].order < sel.items[j].order
	})
	return sel.items
}

// visit - choose groups of a bin and its descendants
//
// inside holds, per metadata request, the depth at which its root bin
// was entered or -1; recursing marks requests whose matched box is an
// ancestor.  Returns whether anything in the bin was chosen and the
// lowest sequence chosen.
func (sel *selector) visit(bin *target.Metabin, depth int, inside []int, recursing []bool) (bool, int) {
	if sel.seen[bin.ID] {
		return false, 0
	}
	sel.seen[bin.ID] = true

	order := sel.counter
	sel.counter += 1

	inside = append([]int(nil), inside...)
	for i, m := range sel.window.Metareqs {
		if inside[i] < 0 && m.RootBinID == bin.ID {
			inside[i] = depth
		}
	}

	included := false
	end := 0
	sequence := target.MaxSequence + 1
	offset := 0
	for _, g := range bin.Groups {
		take, limit, seq, recurse := sel.match(g, depth, inside, recursing)

		if nil != g.Placeholder {
			below := append([]bool(nil), recursing...)
			for i := range below {
				below[i] = below[i] || recurse[i]
			}
			if ok, childSequence := sel.visit(g.Placeholder, depth+1, inside, below); ok {
				take = true
				limit = g.Length
				if childSequence < seq {
					seq = childSequence
				}
			}
		}

		if take {
			included = true
			if offset+limit > end {
				end = offset + limit
			}
			if seq < sequence {
				sequence = seq
			}
		}
		offset += g.Length
	}

	if included {
		sel.items = append(sel.items, metaItem{
			bin:      bin,
			end:      end,
			sequence: sequence,
			order:    order,
		})
	}
	return included, sequence
}

// match - whether a group is wanted, the bytes of it, its sequence and
// which requests recurse into its descendants
func (sel *selector) match(g *target.Metagroup, depth int, inside []int, recursing []bool) (bool, int, int, []bool) {
	recurse := make([]bool, len(sel.window.Metareqs))
	take := false
	limit := 0
	sequence := target.MaxSequence + 1

	scope := g.Scope
	groupSequence := target.SequenceRegion
	if nil != scope {
		groupSequence = scope.Sequence
		if 0 != scope.Flags&target.ScopeMandatory || (0 != scope.Flags&target.ScopeImageMandatory && sel.streamMatches(scope)) {
			if !sel.window.MetadataOnly || 0 != scope.Flags&target.ScopeMandatory {
				take = true
				limit = g.Length
				sequence = target.SequenceImagery
			}
		}
	}

	for i, m := range sel.window.Metareqs {
		if recursing[i] {
			take = true
			limit = g.Length
			recurse[i] = true
			if groupSequence < sequence {
				sequence = groupSequence
			}
			continue
		}
		if inside[i] < 0 || depth-inside[i] > m.MaxDepth {
			continue
		}
		if !g.HasBoxType(m.BoxType) || !sel.scopeMatches(m.Qualifier, scope) {
			continue
		}
		take = true
		n := g.Length
		if m.ByteLimit < n {
			n = m.ByteLimit
		}
		if n > limit {
			limit = n
		}
		s := groupSequence
		if m.Priority {
			s = target.SequenceImagery
		}
		if s < sequence {
			sequence = s
		}
		recurse[i] = m.Recurse
	}
	return take, limit, sequence, recurse
}

func (sel *selector) scopeMatches(qualifier int, scope *target.Metascope) bool {
	if 0 != qualifier&window.MetareqAll {
		return true
	}
	if nil == scope {
		return 0 != qualifier&window.MetareqGlobal
	}

	imageFlags := target.ScopeHasImageSpecificData | target.ScopeHasImageWideData | target.ScopeHasRegionSpecificData
	if 0 != qualifier&window.MetareqGlobal {
		if 0 != scope.Flags&target.ScopeHasGlobalData || 0 == scope.Flags&imageFlags {
			return true
		}
	}
	if 0 != qualifier&window.MetareqStream {
		if 0 != scope.Flags&(target.ScopeHasImageSpecificData|target.ScopeHasImageWideData) && sel.streamMatches(scope) {
			return true
		}
	}
	if 0 != qualifier&window.MetareqWindow {
		if 0 != scope.Flags&target.ScopeHasImageWideData && sel.streamMatches(scope) {
			return true
		}
		if 0 != scope.Flags&target.ScopeHasRegionSpecificData && sel.regionMatches(scope) {
			return true
		}
	}
	return false
}

func (sel *selector) streamMatches(scope *target.Metascope) bool {
	for _, v := range sel.views {
		if scope.Entities.TestCodestream(v.stream) {
			return true
		}
	}
	return false
}

// scope regions are relative to the image origin
func (sel *selector) regionMatches(scope *target.Metascope) bool {
	for _, v := range sel.views {
		if !v.imagery || !scope.Entities.TestCodestream(v.stream) || v.discard > scope.MaxDiscardLevels {
			continue
		}
		r := v.region
		r.Pos.X -= v.structure.Image.Pos.X
		r.Pos.Y -= v.structure.Image.Pos.Y
		if !r.Intersect(scope.Region).IsEmpty() {
			return true
		}
	}
	return false
}
