// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cache

import (
	"sync"

	"github.com/bitmark-inc/jpipd/counter"
	"github.com/bitmark-inc/jpipd/databin"
	"github.com/bitmark-inc/jpipd/fault"
)

// approximate bookkeeping costs used for memory statistics
const (
	entryOverhead   = 96
	segmentOverhead = 40
)

// identifies one LRU list
type partition struct {
	class  databin.Class
	stream int64
}

// the shared storage, owned by one Cache and visible to attached ones
type store struct {
	sync.Mutex

	bins       map[databin.Key]*entry
	partitions map[partition]*lruList
	streams    map[int64]int // codestream -> number of non-meta data-bins

	memory      int64
	peakMemory  counter.Counter
	transferred [databin.NumClasses]counter.Counter
}

func newStore() *store {
	return &store{
		bins:       make(map[databin.Key]*entry),
		partitions: make(map[partition]*lruList),
		streams:    make(map[int64]int),
	}
}

// Cache - a sparse data-bin cache
//
// all methods are safe for concurrent use; the read cursor
// (SetReadScope/Read/Seek/Pos) is per Cache value and must only be
// used by one goroutine at a time
type Cache struct {
	sync.Mutex // protects the fields below, not the data

	own      *store
	attached *Cache

	cursor readCursor
}

// New - create an empty cache
func New() *Cache {
	return &Cache{
		own: newStore(),
	}
}

// the storage this cache currently reads from and whether it is
// its own
func (c *Cache) storage() (*store, bool) {
	c.Lock()
	attached := c.attached
	if nil == attached && nil == c.own {
		c.own = newStore()
	}
	own := c.own
	c.Unlock()

	if nil != attached {
		s, _ := attached.storage()
		return s, false
	}
	return own, true
}

// lock the effective storage, returning it and whether mutation is allowed
func (c *Cache) acquire() (*store, bool) {
	s, writable := c.storage()
	s.Lock()
	return s, writable
}

// Attach - make this cache a read-only view of existing
//
// any content of this cache is discarded first; mutating operations
// fail with fault.CacheAttached until Close is called
func (c *Cache) Attach(existing *Cache) error {
	if nil == existing {
		return fault.InvalidCount
	}
	for e := existing; nil != e; e = e.attachedTo() {
		if c == e {
			return fault.InvalidCount
		}
	}
	c.Close()

	c.Lock()
	c.attached = existing
	c.own = nil
	c.cursor = readCursor{}
	c.Unlock()
	return nil
}

func (c *Cache) attachedTo() *Cache {
	c.Lock()
	defer c.Unlock()
	return c.attached
}

// IsAttached - true while this cache is a view of another
func (c *Cache) IsAttached() bool {
	c.Lock()
	defer c.Unlock()
	return nil != c.attached
}

// Close - discard all data-bins, or detach if attached
//
// always returns true; afterwards every length query returns 0
func (c *Cache) Close() bool {
	c.Lock()
	defer c.Unlock()

	c.cursor = readCursor{}
	if nil != c.attached {
		c.attached = nil
		c.own = newStore()
		return true
	}
	c.own = newStore()
	return true
}

// AcquireLock - hold the cache lock across a sequence of operations
//
// the returned view performs the same operations without locking
// again; calling methods on the Cache itself before ReleaseLock would
// deadlock
func (c *Cache) AcquireLock() *Locked {
	s, writable := c.acquire()
	return &Locked{
		s:        s,
		writable: writable,
	}
}

// Locked - operations on a cache whose lock is held
type Locked struct {
	s        *store
	writable bool
}

// ReleaseLock - give back the lock obtained by AcquireLock
func (l *Locked) ReleaseLock() {
	l.s.Unlock()
}

// PeakCacheMemory - highest memory used for cached data and bookkeeping
func (c *Cache) PeakCacheMemory() int64 {
	s, _ := c.storage()
	return int64(s.peakMemory.Uint64())
}

// TransferredBytes - total bytes offered to AddToDatabin for a class
func (c *Cache) TransferredBytes(class databin.Class) int64 {
	if !class.Valid() {
		return 0
	}
	s, _ := c.storage()
	return int64(s.transferred[class].Uint64())
}

// NumDatabins - number of data-bins with any cached state
func (c *Cache) NumDatabins() int {
	s, _ := c.acquire()
	defer s.Unlock()
	return len(s.bins)
}

func (s *store) addMemory(delta int64) {
	s.memory += delta
	if s.memory > 0 {
		s.peakMemory.Max(uint64(s.memory))
	}
}
