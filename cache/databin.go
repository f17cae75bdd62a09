// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cache

import (
	"sort"

	"github.com/bitmark-inc/jpipd/databin"
	"github.com/bitmark-inc/jpipd/fault"
)

// AddToDatabin - merge a byte range into a data-bin
//
// the data-bin is created if absent, at the head of its LRU list if
// addAsMostRecent, otherwise at the tail.  An existing data-bin is
// promoted only if addAsMostRecent.  isFinal says that the range ends
// at the last byte of the data-bin.  With markIfAugmented the mark is
// set only when this call added bytes or newly finalised the bin.
// Redundant and overlapping writes are absorbed silently.
func (c *Cache) AddToDatabin(class databin.Class, stream int64, id int64, data []byte, offset int64, isFinal bool, addAsMostRecent bool, markIfAugmented bool) error {
	s, writable := c.acquire()
	defer s.Unlock()

	if !writable {
		return fault.CacheAttached
	}
	if !class.Valid() || stream < 0 || id < 0 || offset < 0 {
		return fault.InvalidCount
	}
	s.add(databin.NewKey(class, stream, id), data, offset, isFinal, addAsMostRecent, markIfAugmented)
	return nil
}

func (s *store) add(key databin.Key, data []byte, offset int64, isFinal bool, addAsMostRecent bool, markIfAugmented bool) {
	s.transferred[key.Class].Add(uint64(len(data)))

	e, ok := s.bins[key]
	if !ok {
		if 0 == len(data) && !isFinal {
			return
		}
		e = &entry{
			key: key,
		}
		s.bins[key] = e
		s.addMemory(entryOverhead)
		list := s.list(key)
		if addAsMostRecent {
			list.pushHead(e)
		} else {
			list.pushTail(e)
		}
		if databin.Meta != key.Class {
			s.streams[key.Stream] += 1
		}
	} else if addAsMostRecent {
		s.list(key).promote(e)
	}

	segments := len(e.segments)
	added := e.merge(data, offset)
	s.addMemory(added + int64(len(e.segments)-segments)*segmentOverhead)

	augmented := added > 0
	if isFinal {
		end := offset + int64(len(data))
		if !e.final {
			augmented = true
			e.final = true
			e.length = end
		}
	}
	if augmented && markIfAugmented {
		e.marked = true
	}
}

func partitionOf(key databin.Key) partition {
	return partition{
		class:  key.Class,
		stream: key.Stream,
	}
}

// the LRU list for a key's partition, created if need be
func (s *store) list(key databin.Key) *lruList {
	p := partitionOf(key)
	l, ok := s.partitions[p]
	if !ok {
		l = &lruList{}
		s.partitions[p] = l
	}
	return l
}

// the LRU list for a key's partition, nil if it has none
func (s *store) existingList(key databin.Key) *lruList {
	return s.partitions[partitionOf(key)]
}

func (s *store) lookup(class databin.Class, stream int64, id int64) *entry {
	if !class.Valid() {
		return nil
	}
	return s.bins[databin.NewKey(class, stream, id)]
}

// DatabinLength - length of the contiguous bytes from offset 0
//
// complete is true only when there are no holes and the final byte
// has been received
func (c *Cache) DatabinLength(class databin.Class, stream int64, id int64) (length int64, complete bool) {
	s, _ := c.acquire()
	defer s.Unlock()
	return s.length(class, stream, id)
}

func (s *store) length(class databin.Class, stream int64, id int64) (int64, bool) {
	e := s.lookup(class, stream, id)
	if nil == e {
		return 0, false
	}
	return e.initialLength(), e.isComplete()
}

// PromoteDatabin - move to the head of the most recently used list
//
// nothing happens if the data-bin is not cached
func (c *Cache) PromoteDatabin(class databin.Class, stream int64, id int64) error {
	s, writable := c.acquire()
	defer s.Unlock()

	if !writable {
		return fault.CacheAttached
	}
	s.promote(class, stream, id)
	return nil
}

func (s *store) promote(class databin.Class, stream int64, id int64) {
	if e := s.lookup(class, stream, id); nil != e {
		s.list(e.key).promote(e)
	}
}

// DemoteDatabin - move to the tail of the most recently used list
func (c *Cache) DemoteDatabin(class databin.Class, stream int64, id int64) error {
	s, writable := c.acquire()
	defer s.Unlock()

	if !writable {
		return fault.CacheAttached
	}
	s.demote(class, stream, id)
	return nil
}

func (s *store) demote(class databin.Class, stream int64, id int64) {
	if e := s.lookup(class, stream, id); nil != e {
		s.list(e.key).demote(e)
	}
}

// NextCodestream - the next codestream after stream that has any
// data-bins, -1 starts from the beginning, -1 is returned at the end
func (c *Cache) NextCodestream(stream int64) int64 {
	s, _ := c.acquire()
	defer s.Unlock()
	return s.nextCodestream(stream)
}

func (s *store) nextCodestream(stream int64) int64 {
	next := int64(-1)
	for id := range s.streams {
		if id > stream && (next < 0 || id < next) {
			next = id
		}
	}
	return next
}

// Codestreams - sorted ids of all codestreams with cached data-bins
func (c *Cache) Codestreams() []int64 {
	s, _ := c.acquire()
	defer s.Unlock()

	ids := make([]int64, 0, len(s.streams))
	for id := range s.streams {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// NextMRUDatabin - walk a partition from most to least recently used
//
// a negative or unknown id starts at the most recently used data-bin;
// -1 means there are no more
func (c *Cache) NextMRUDatabin(class databin.Class, stream int64, id int64, onlyIfMarked bool) int64 {
	s, _ := c.acquire()
	defer s.Unlock()
	return s.nextMRU(class, stream, id, onlyIfMarked)
}

func (s *store) nextMRU(class databin.Class, stream int64, id int64, onlyIfMarked bool) int64 {
	if !class.Valid() {
		return -1
	}
	var e *entry
	if id >= 0 {
		e = s.lookup(class, stream, id)
	}
	if nil == e {
		if l := s.existingList(databin.NewKey(class, stream, 0)); nil != l {
			e = l.head
		}
	} else {
		e = e.next
	}
	for ; nil != e; e = e.next {
		if !onlyIfMarked || e.marked {
			return e.key.ID
		}
	}
	return -1
}

// NextLRUDatabin - walk a partition from least to most recently used
//
// a negative or unknown id starts at the least recently used data-bin
func (c *Cache) NextLRUDatabin(class databin.Class, stream int64, id int64, onlyIfMarked bool) int64 {
	s, _ := c.acquire()
	defer s.Unlock()
	return s.nextLRU(class, stream, id, onlyIfMarked)
}

func (s *store) nextLRU(class databin.Class, stream int64, id int64, onlyIfMarked bool) int64 {
	if !class.Valid() {
		return -1
	}
	var e *entry
	if id >= 0 {
		e = s.lookup(class, stream, id)
	}
	if nil == e {
		if l := s.existingList(databin.NewKey(class, stream, 0)); nil != l {
			e = l.tail
		}
	} else {
		e = e.prev
	}
	for ; nil != e; e = e.prev {
		if !onlyIfMarked || e.marked {
			return e.key.ID
		}
	}
	return -1
}

// MarkDatabin - set or clear the mark, returning the previous state
//
// data-bins that are not cached are never created and count as unmarked
func (c *Cache) MarkDatabin(class databin.Class, stream int64, id int64, mark bool) (bool, error) {
	s, writable := c.acquire()
	defer s.Unlock()

	if !writable {
		return false, fault.CacheAttached
	}
	return s.mark(class, stream, id, mark), nil
}

func (s *store) mark(class databin.Class, stream int64, id int64, mark bool) bool {
	e := s.lookup(class, stream, id)
	if nil == e {
		return false
	}
	was := e.marked
	e.marked = mark
	return was
}

// IsMarked - current mark state
func (c *Cache) IsMarked(class databin.Class, stream int64, id int64) bool {
	s, _ := c.acquire()
	defer s.Unlock()

	e := s.lookup(class, stream, id)
	return nil != e && e.marked
}

// ClearAllMarks - unmark every data-bin
func (c *Cache) ClearAllMarks() error {
	return c.setAllMarks(false)
}

// SetAllMarks - mark every data-bin that has cached content
func (c *Cache) SetAllMarks() error {
	return c.setAllMarks(true)
}

func (c *Cache) setAllMarks(mark bool) error {
	s, writable := c.acquire()
	defer s.Unlock()

	if !writable {
		return fault.CacheAttached
	}
	for _, e := range s.bins {
		e.marked = mark
	}
	return nil
}

// operations on a locked cache

// DatabinLength - as Cache.DatabinLength
func (l *Locked) DatabinLength(class databin.Class, stream int64, id int64) (int64, bool) {
	return l.s.length(class, stream, id)
}

// NextCodestream - as Cache.NextCodestream
func (l *Locked) NextCodestream(stream int64) int64 {
	return l.s.nextCodestream(stream)
}

// NextMRUDatabin - as Cache.NextMRUDatabin
func (l *Locked) NextMRUDatabin(class databin.Class, stream int64, id int64, onlyIfMarked bool) int64 {
	return l.s.nextMRU(class, stream, id, onlyIfMarked)
}

// NextLRUDatabin - as Cache.NextLRUDatabin
func (l *Locked) NextLRUDatabin(class databin.Class, stream int64, id int64, onlyIfMarked bool) int64 {
	return l.s.nextLRU(class, stream, id, onlyIfMarked)
}

// PromoteDatabin - as Cache.PromoteDatabin
func (l *Locked) PromoteDatabin(class databin.Class, stream int64, id int64) error {
	if !l.writable {
		return fault.CacheAttached
	}
	l.s.promote(class, stream, id)
	return nil
}

// DemoteDatabin - as Cache.DemoteDatabin
func (l *Locked) DemoteDatabin(class databin.Class, stream int64, id int64) error {
	if !l.writable {
		return fault.CacheAttached
	}
	l.s.demote(class, stream, id)
	return nil
}

// MarkDatabin - as Cache.MarkDatabin
func (l *Locked) MarkDatabin(class databin.Class, stream int64, id int64, mark bool) (bool, error) {
	if !l.writable {
		return false, fault.CacheAttached
	}
	return l.s.mark(class, stream, id, mark), nil
}

// DatabinPrefix - as Cache.DatabinPrefix
func (l *Locked) DatabinPrefix(class databin.Class, stream int64, id int64, buffer []byte) int {
	e := l.s.lookup(class, stream, id)
	if nil == e {
		return 0
	}
	return e.readAt(buffer, 0)
}
