// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package window

import (
	"sort"
	"strconv"
	"strings"
)

// context types for SampledRange.ContextType
const (
	ContextNone       = 0
	ContextJPXL       = 1  // JPX compositing layers
	ContextMJ2T       = 2  // MJ2 video tracks, numbered from 1
	ContextTranslated = -1 // codestreams produced by translating a context
)

// MaximumIndex - upper bound used for open ended ranges such as "5-"
const MaximumIndex = 1<<31 - 1

// SampledRange - the indices From + k*Step that do not exceed To
//
// the range is empty when To < From.  RemappingIDs are interpreted
// according to ContextType and ignored when it is ContextNone.
// Expansion is owned by the Window that created it.
type SampledRange struct {
	From         int
	To           int
	Step         int
	RemappingIDs [2]int
	ContextType  int
	Expansion    *RangeSet
}

// NewSampledRange - a plain range, step must be positive
func NewSampledRange(from int, to int, step int) SampledRange {
	if step < 1 {
		step = 1
	}
	return SampledRange{
		From:         from,
		To:           to,
		Step:         step,
		RemappingIDs: [2]int{-1, -1},
	}
}

// IsEmpty - true if the range holds no indices
func (r SampledRange) IsEmpty() bool {
	return r.To < r.From
}

// Count - number of indices in the range
func (r SampledRange) Count() int {
	if r.IsEmpty() {
		return 0
	}
	return (r.To-r.From)/r.Step + 1
}

// Test - true if index is one of the range's values
func (r SampledRange) Test(index int) bool {
	return r.From >= 0 && r.From <= index && r.To >= index &&
		(1 == r.Step || 0 == (index-r.From)%r.Step)
}

// same qualifiers, so ranges may be merged or compared
func (r SampledRange) compatible(other SampledRange) bool {
	if r.ContextType != other.ContextType {
		return false
	}
	return ContextNone == r.ContextType || r.RemappingIDs == other.RemappingIDs
}

// tighten To to the last member and give single values a unit step
func (r SampledRange) normalised() SampledRange {
	if r.Step < 1 {
		r.Step = 1
	}
	if r.IsEmpty() {
		return r
	}
	r.To = r.From + (r.To-r.From)/r.Step*r.Step
	if r.From == r.To {
		r.Step = 1
	}
	return r
}

// String - JPIP range syntax: from[-to][:step]
func (r SampledRange) String() string {
	s := strconv.Itoa(r.From)
	if r.To == r.From {
		return s
	}
	s += "-"
	if r.To < MaximumIndex {
		s += strconv.Itoa(r.To)
	}
	if r.Step > 1 {
		s += ":" + strconv.Itoa(r.Step)
	}
	return s
}

// try to represent the union of two compatible, normalised ranges as one
func merge(a SampledRange, b SampledRange) (SampledRange, bool) {
	if b.From < a.From {
		a, b = b, a
	}

	// b lies inside a contiguous a
	if 1 == a.Step && b.From >= a.From && b.To <= a.To {
		return a, true
	}

	step := a.Step
	switch {
	case a.From == a.To && b.From == b.To:
		step = b.From - a.From
		if 0 == step {
			return a, true
		}
		if 1 != step {
			return a, false
		}
	case a.From == a.To:
		step = b.Step
	case b.From == b.To:
		step = a.Step
	case a.Step != b.Step:
		return a, false
	}

	if 0 != (b.From-a.From)%step {
		return a, false
	}
	if b.From > a.To+step {
		return a, false
	}

	merged := a
	merged.Step = step
	if b.To > merged.To {
		merged.To = b.To
	}
	if nil == merged.Expansion {
		merged.Expansion = b.Expansion
	}
	return merged.normalised(), true
}

// RangeSet - a union of sampled ranges, ordered by From
type RangeSet struct {
	ranges []SampledRange
}

// Init - empty the set
func (s *RangeSet) Init() {
	s.ranges = s.ranges[:0]
}

// IsEmpty - true if the set has no ranges
func (s *RangeSet) IsEmpty() bool {
	return 0 == len(s.ranges)
}

// NumRanges - number of ranges in the set
func (s *RangeSet) NumRanges() int {
	return len(s.ranges)
}

// Range - the n'th range, empty if n is out of bounds
func (s *RangeSet) Range(n int) SampledRange {
	if n < 0 || n >= len(s.ranges) {
		return NewSampledRange(0, -1, 1)
	}
	return s.ranges[n]
}

// CopyFrom - replace the contents by those of src, without expansions
func (s *RangeSet) CopyFrom(src *RangeSet) {
	s.ranges = s.ranges[:0]
	for _, r := range src.ranges {
		r.Expansion = nil
		s.ranges = append(s.ranges, r)
	}
}

// Add - include a range
//
// To is tightened to the last member.  With allowMerging the range is
// merged with compatible ranges where one range can represent the
// union, otherwise it is appended without reordering.
func (s *RangeSet) Add(r SampledRange, allowMerging bool) {
	r = r.normalised()
	if r.IsEmpty() {
		return
	}
	if !allowMerging {
		s.ranges = append(s.ranges, r)
		return
	}

merging:
	for {
		for i, existing := range s.ranges {
			if !existing.compatible(r) {
				continue
			}
			if merged, ok := merge(existing, r); ok {
				s.ranges = append(s.ranges[:i], s.ranges[i+1:]...)
				r = merged
				continue merging
			}
		}
		break merging
	}

	position := sort.Search(len(s.ranges), func(i int) bool {
		return s.ranges[i].From > r.From
	})
	s.ranges = append(s.ranges, SampledRange{})
	copy(s.ranges[position+1:], s.ranges[position:])
	s.ranges[position] = r
}

// AddValue - include a single index
func (s *RangeSet) AddValue(value int) {
	s.Add(NewSampledRange(value, value, 1), true)
}

// AddRange - include from..to inclusive
func (s *RangeSet) AddRange(from int, to int) {
	s.Add(NewSampledRange(from, to, 1), true)
}

// AddSampled - include from, from+step, ... up to to
func (s *RangeSet) AddSampled(from int, to int, step int) {
	s.Add(NewSampledRange(from, to, step), true)
}

// Test - membership
func (s *RangeSet) Test(index int) bool {
	for _, r := range s.ranges {
		if r.Test(index) {
			return true
		}
	}
	return false
}

// Expand - the sorted distinct members within [min, max]
func (s *RangeSet) Expand(min int, max int) []int {
	seen := make(map[int]struct{})
	values := []int{}
	for _, r := range s.ranges {
		if r.IsEmpty() || r.To < min || r.From > max {
			continue
		}
		first := r.From
		if first < min {
			first += (min - first + r.Step - 1) / r.Step * r.Step
		}
		for v := first; v <= r.To && v <= max; v += r.Step {
			if _, ok := seen[v]; !ok {
				seen[v] = struct{}{}
				values = append(values, v)
			}
		}
	}
	sort.Ints(values)
	return values
}

// find a range of s covering value with the given qualifiers,
// returning the last value of the run it guarantees for steps of step
func (s *RangeSet) cover(value int, like SampledRange, step int) (int, bool) {
	best := -1
	found := false
	for _, q := range s.ranges {
		if ContextTranslated == q.ContextType || !q.compatible(like) || !q.Test(value) {
			continue
		}
		end := value
		if 1 == q.Step || 0 == step%q.Step {
			end = q.To
		}
		if !found || end > best {
			best = end
			found = true
		}
	}
	return best, found
}

// Contains - true if every index of rhs is in the set
//
// expansions and translated codestream ranges are ignored.  With
// emptyDefaultsToZero an empty set stands for the single index 0.
func (s *RangeSet) Contains(rhs *RangeSet, emptyDefaultsToZero bool) bool {
	self := s
	if emptyDefaultsToZero {
		if self.IsEmpty() {
			self = zeroSet()
		}
		if rhs.IsEmpty() {
			rhs = zeroSet()
		}
	}

	for _, r := range rhs.ranges {
		if ContextTranslated == r.ContextType || r.IsEmpty() {
			continue
		}
		for v := r.From; v <= r.To; {
			end, ok := self.cover(v, r, r.Step)
			if !ok {
				return false
			}
			// advance to the first member of r beyond end
			next := r.From + ((end-r.From)/r.Step+1)*r.Step
			if next <= v {
				next = v + r.Step
			}
			v = next
		}
	}
	return true
}

// Equals - both sets contain each other
func (s *RangeSet) Equals(rhs *RangeSet, emptyDefaultsToZero bool) bool {
	return s.Contains(rhs, emptyDefaultsToZero) && rhs.Contains(s, emptyDefaultsToZero)
}

func zeroSet() *RangeSet {
	z := &RangeSet{}
	z.AddValue(0)
	return z
}

// String - comma separated JPIP ranges
func (s *RangeSet) String() string {
	parts := make([]string, len(s.ranges))
	for i, r := range s.ranges {
		parts[i] = r.String()
	}
	return strings.Join(parts, ",")
}
