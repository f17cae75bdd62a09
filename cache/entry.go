// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cache

import (
	"sort"

	"github.com/bitmark-inc/jpipd/databin"
)

// a contiguous run of cached bytes
type segment struct {
	offset int64
	data   []byte
}

func (s *segment) end() int64 {
	return s.offset + int64(len(s.data))
}

// one cached data-bin
type entry struct {
	key      databin.Key
	segments []segment // sorted, disjoint and never adjacent
	final    bool
	length   int64 // total length, valid once final is set
	marked   bool

	// LRU links within the partition, prev is more recent
	prev *entry
	next *entry
}

// length of the run starting at byte 0
func (e *entry) initialLength() int64 {
	if 0 == len(e.segments) || 0 != e.segments[0].offset {
		return 0
	}
	return int64(len(e.segments[0].data))
}

// no holes and the final byte has been seen
func (e *entry) isComplete() bool {
	if !e.final {
		return false
	}
	switch len(e.segments) {
	case 0:
		return 0 == e.length
	case 1:
		return 0 == e.segments[0].offset && e.segments[0].end() >= e.length
	default:
		return false
	}
}

// merge a byte range, returning the number of bytes not previously
// cached (which is also the growth in stored bytes)
func (e *entry) merge(data []byte, offset int64) int64 {
	if 0 == len(data) {
		return 0
	}
	start := offset
	end := offset + int64(len(data))

	// first segment that ends at or after start (adjacency merges too)
	first := sort.Search(len(e.segments), func(i int) bool {
		return e.segments[i].end() >= start
	})
	// one past the last segment that begins at or before end
	last := first
	for last < len(e.segments) && e.segments[last].offset <= end {
		last += 1
	}

	if first == last {
		// no overlap: insert a fresh segment
		s := segment{
			offset: start,
			data:   append([]byte(nil), data...),
		}
		e.segments = append(e.segments, segment{})
		copy(e.segments[first+1:], e.segments[first:])
		e.segments[first] = s
		return int64(len(data))
	}

	// fast path: extending a single segment at its end
	if last == first+1 {
		s := &e.segments[first]
		if s.offset <= start && end > s.end() {
			added := data[s.end()-start:]
			s.data = append(s.data, added...)
			return int64(len(added))
		}
		if s.offset <= start && end <= s.end() {
			return 0
		}
	}

	newStart := start
	if e.segments[first].offset < newStart {
		newStart = e.segments[first].offset
	}
	newEnd := end
	if e.segments[last-1].end() > newEnd {
		newEnd = e.segments[last-1].end()
	}

	buffer := make([]byte, newEnd-newStart)
	copy(buffer[start-newStart:], data)
	existing := int64(0)
	for i := first; i < last; i += 1 {
		s := &e.segments[i]
		copy(buffer[s.offset-newStart:], s.data)
		existing += int64(len(s.data))
	}

	merged := segment{
		offset: newStart,
		data:   buffer,
	}
	e.segments[first] = merged
	e.segments = append(e.segments[:first+1], e.segments[last:]...)

	return int64(len(buffer)) - existing
}

// copy from the initial run into buffer starting at position
func (e *entry) readAt(buffer []byte, position int64) int {
	available := e.initialLength() - position
	if available <= 0 {
		return 0
	}
	n := len(buffer)
	if int64(n) > available {
		n = int(available)
	}
	return copy(buffer[:n], e.segments[0].data[position:])
}
