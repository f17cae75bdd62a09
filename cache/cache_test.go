// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cache_test

import (
	"bytes"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitmark-inc/jpipd/cache"
	"github.com/bitmark-inc/jpipd/databin"
	"github.com/bitmark-inc/jpipd/fault"
)

func makeBytes(n int, start byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = start + byte(i)
	}
	return b
}

func TestMainHeaderComplete(t *testing.T) {
	c := cache.New()
	data := makeBytes(64, 1)

	err := c.AddToDatabin(databin.MainHeader, 0, 0, data, 0, true, true, false)
	require.NoError(t, err, "add")

	length, complete := c.DatabinLength(databin.MainHeader, 0, 0)
	assert.Equal(t, int64(64), length, "length")
	assert.True(t, complete, "complete")
}

func TestHoleAtStart(t *testing.T) {
	c := cache.New()

	err := c.AddToDatabin(databin.Precinct, 0, 5, makeBytes(5, 10), 10, false, true, false)
	require.NoError(t, err, "add")

	length, complete := c.DatabinLength(databin.Precinct, 0, 5)
	assert.Equal(t, int64(0), length, "length")
	assert.False(t, complete, "complete")

	// filling the hole joins the runs
	err = c.AddToDatabin(databin.Precinct, 0, 5, makeBytes(10, 0), 0, false, true, false)
	require.NoError(t, err, "fill")

	length, _ = c.DatabinLength(databin.Precinct, 0, 5)
	assert.Equal(t, int64(15), length, "joined length")

	buffer := make([]byte, 20)
	n := c.DatabinPrefix(databin.Precinct, 0, 5, buffer)
	assert.Equal(t, 15, n, "prefix count")
	assert.Equal(t, makeBytes(15, 0), buffer[:n], "prefix data")
}

func TestIdempotentMerge(t *testing.T) {
	once := cache.New()
	twice := cache.New()

	writes := []struct {
		offset int64
		size   int
	}{
		{0, 7},
		{20, 4},
		{5, 10},
		{30, 1},
	}
	for _, w := range writes {
		data := makeBytes(w.size, byte(w.offset))
		require.NoError(t, once.AddToDatabin(databin.Tile, 2, 1, data, w.offset, false, true, false))
		require.NoError(t, twice.AddToDatabin(databin.Tile, 2, 1, data, w.offset, false, true, false))
		require.NoError(t, twice.AddToDatabin(databin.Tile, 2, 1, data, w.offset, false, true, false))
	}

	l1, c1 := once.DatabinLength(databin.Tile, 2, 1)
	l2, c2 := twice.DatabinLength(databin.Tile, 2, 1)
	assert.Equal(t, l1, l2, "length")
	assert.Equal(t, c1, c2, "complete")
	assert.Equal(t, int64(15), l1, "run length")

	b1 := make([]byte, 40)
	b2 := make([]byte, 40)
	n1 := once.DatabinPrefix(databin.Tile, 2, 1, b1)
	n2 := twice.DatabinPrefix(databin.Tile, 2, 1, b2)
	assert.Equal(t, n1, n2, "prefix count")
	assert.Equal(t, b1, b2, "prefix data")
	assert.Equal(t, once.PeakCacheMemory(), twice.PeakCacheMemory(), "memory")
}

func TestCompletenessMonotonic(t *testing.T) {
	c := cache.New()
	data := makeBytes(32, 0)

	require.NoError(t, c.AddToDatabin(databin.TileHeader, 0, 3, data[16:], 16, true, true, false))
	_, complete := c.DatabinLength(databin.TileHeader, 0, 3)
	assert.False(t, complete, "hole remains")

	require.NoError(t, c.AddToDatabin(databin.TileHeader, 0, 3, data[:16], 0, false, true, false))
	length, complete := c.DatabinLength(databin.TileHeader, 0, 3)
	assert.Equal(t, int64(32), length, "length")
	assert.True(t, complete, "complete")

	for i := 0; i < 4; i += 1 {
		require.NoError(t, c.AddToDatabin(databin.TileHeader, 0, 3, data[i:i+8], int64(i), i%2 == 0, true, false))
		length, complete = c.DatabinLength(databin.TileHeader, 0, 3)
		assert.Equal(t, int64(32), length, "length after %d", i)
		assert.True(t, complete, "complete after %d", i)
	}
}

func TestEmptyFinalDatabin(t *testing.T) {
	c := cache.New()

	require.NoError(t, c.AddToDatabin(databin.Meta, 0, 9, nil, 0, false, true, false))
	assert.Equal(t, 0, c.NumDatabins(), "non-final empty write creates nothing")

	require.NoError(t, c.AddToDatabin(databin.Meta, 0, 9, nil, 0, true, true, false))
	length, complete := c.DatabinLength(databin.Meta, 0, 9)
	assert.Equal(t, int64(0), length, "length")
	assert.True(t, complete, "complete")
}

func TestMetaIgnoresStream(t *testing.T) {
	c := cache.New()

	require.NoError(t, c.AddToDatabin(databin.Meta, 7, 1, makeBytes(4, 0), 0, false, true, false))
	length, _ := c.DatabinLength(databin.Meta, 0, 1)
	assert.Equal(t, int64(4), length, "meta stream ignored")
	assert.Equal(t, int64(-1), c.NextCodestream(-1), "meta does not create a codestream")
}

func TestLRUOrdering(t *testing.T) {
	c := cache.New()
	const (
		a = 10
		b = 20
		d = 30
	)
	for _, id := range []int64{a, b, d} {
		require.NoError(t, c.AddToDatabin(databin.Precinct, 0, id, makeBytes(3, 0), 0, false, true, false))
	}

	assert.Equal(t, []int64{d, b, a}, walkMRU(c), "mru order")
	assert.Equal(t, []int64{a, b, d}, walkLRU(c), "lru order")

	require.NoError(t, c.PromoteDatabin(databin.Precinct, 0, a))
	assert.Equal(t, int64(a), c.NextMRUDatabin(databin.Precinct, 0, -1, false), "promoted first")
	assert.Equal(t, []int64{a, d, b}, walkMRU(c), "after promote")

	require.NoError(t, c.DemoteDatabin(databin.Precinct, 0, d))
	assert.Equal(t, []int64{a, b, d}, walkMRU(c), "after demote")

	// absent data-bins are ignored
	require.NoError(t, c.PromoteDatabin(databin.Precinct, 0, 99))
	assert.Equal(t, []int64{a, b, d}, walkMRU(c), "after absent promote")

	// other partitions are independent
	assert.Equal(t, int64(-1), c.NextMRUDatabin(databin.Precinct, 1, -1, false), "other stream")
	assert.Equal(t, int64(-1), c.NextMRUDatabin(databin.Tile, 0, -1, false), "other class")
}

func TestAddAsLeastRecent(t *testing.T) {
	c := cache.New()
	require.NoError(t, c.AddToDatabin(databin.Precinct, 0, 1, makeBytes(3, 0), 0, false, true, false))
	require.NoError(t, c.AddToDatabin(databin.Precinct, 0, 2, makeBytes(3, 0), 0, false, false, false))
	require.NoError(t, c.AddToDatabin(databin.Precinct, 0, 3, makeBytes(3, 0), 0, false, true, false))

	assert.Equal(t, []int64{3, 1, 2}, walkMRU(c), "order")

	// a later write without the hint does not promote
	require.NoError(t, c.AddToDatabin(databin.Precinct, 0, 2, makeBytes(3, 0), 3, false, false, false))
	assert.Equal(t, []int64{3, 1, 2}, walkMRU(c), "order unchanged")
}

func walkMRU(c *cache.Cache) []int64 {
	ids := []int64{}
	for id := c.NextMRUDatabin(databin.Precinct, 0, -1, false); id >= 0; id = c.NextMRUDatabin(databin.Precinct, 0, id, false) {
		ids = append(ids, id)
	}
	return ids
}

func walkLRU(c *cache.Cache) []int64 {
	ids := []int64{}
	for id := c.NextLRUDatabin(databin.Precinct, 0, -1, false); id >= 0; id = c.NextLRUDatabin(databin.Precinct, 0, id, false) {
		ids = append(ids, id)
	}
	return ids
}

func TestMarks(t *testing.T) {
	c := cache.New()
	data := makeBytes(8, 0)

	require.NoError(t, c.AddToDatabin(databin.Precinct, 0, 1, data, 0, false, true, true))
	assert.True(t, c.IsMarked(databin.Precinct, 0, 1), "augmented write marks")

	was, err := c.MarkDatabin(databin.Precinct, 0, 1, false)
	require.NoError(t, err, "unmark")
	assert.True(t, was, "previous state")

	// redundant data does not mark
	require.NoError(t, c.AddToDatabin(databin.Precinct, 0, 1, data, 0, false, true, true))
	assert.False(t, c.IsMarked(databin.Precinct, 0, 1), "redundant write")

	// newly final does
	require.NoError(t, c.AddToDatabin(databin.Precinct, 0, 1, nil, 8, true, true, true))
	assert.True(t, c.IsMarked(databin.Precinct, 0, 1), "newly final")

	require.NoError(t, c.AddToDatabin(databin.Precinct, 0, 2, data, 0, false, true, false))
	assert.Equal(t, int64(1), c.NextMRUDatabin(databin.Precinct, 0, -1, true), "only marked")

	require.NoError(t, c.SetAllMarks())
	assert.Equal(t, int64(2), c.NextMRUDatabin(databin.Precinct, 0, -1, true), "all marked")

	require.NoError(t, c.ClearAllMarks())
	assert.Equal(t, int64(-1), c.NextMRUDatabin(databin.Precinct, 0, -1, true), "none marked")

	was, err = c.MarkDatabin(databin.Precinct, 0, 77, true)
	require.NoError(t, err, "absent")
	assert.False(t, was, "absent previous state")
	assert.False(t, c.IsMarked(databin.Precinct, 0, 77), "absent stays unmarked")
}

func TestNextCodestream(t *testing.T) {
	c := cache.New()
	for _, stream := range []int64{4, 0, 9} {
		require.NoError(t, c.AddToDatabin(databin.MainHeader, stream, 0, makeBytes(2, 0), 0, false, true, false))
	}

	assert.Equal(t, int64(0), c.NextCodestream(-1), "first")
	assert.Equal(t, int64(4), c.NextCodestream(0), "second")
	assert.Equal(t, int64(9), c.NextCodestream(4), "third")
	assert.Equal(t, int64(-1), c.NextCodestream(9), "end")
	assert.Equal(t, []int64{0, 4, 9}, c.Codestreams(), "sorted")
}

func TestReadCursor(t *testing.T) {
	c := cache.New()
	data := makeBytes(10, 0)
	require.NoError(t, c.AddToDatabin(databin.TileHeader, 3, 2, data, 0, true, true, false))
	require.NoError(t, c.AddToDatabin(databin.Precinct, 3, 40, data[:6], 0, false, true, false))

	_, err := c.Read(make([]byte, 4))
	assert.Equal(t, io.EOF, err, "no scope")

	length, complete := c.SetReadScope(databin.MainHeader, 3, 0)
	assert.Equal(t, int64(0), length, "main header absent")
	assert.False(t, complete, "main header incomplete")

	assert.False(t, c.SetTileHeaderScope(2, 2), "tile out of range")
	assert.True(t, c.SetTileHeaderScope(2, 4), "tile header complete")

	buffer := make([]byte, 4)
	n, err := c.Read(buffer)
	require.NoError(t, err, "read")
	assert.Equal(t, 4, n, "count")
	assert.Equal(t, data[:4], buffer, "data")
	assert.Equal(t, int64(4), c.Pos(), "position")

	assert.True(t, c.Seek(8), "seek")
	n, err = c.Read(buffer)
	require.NoError(t, err, "read after seek")
	assert.Equal(t, 2, n, "short read")
	assert.Equal(t, data[8:], buffer[:n], "tail data")

	_, err = c.Read(buffer)
	assert.Equal(t, io.EOF, err, "end of data-bin")

	assert.True(t, c.SetPrecinctScope(40), "precinct in same stream")
	assert.Equal(t, int64(0), c.Pos(), "scope resets position")
	assert.True(t, c.Seek(100), "seek past end")
	assert.Equal(t, int64(6), c.Pos(), "clipped")

	assert.False(t, c.SetPrecinctScope(41), "absent precinct")
}

func TestDatabinPrefixOrWait(t *testing.T) {
	c := cache.New()
	require.NoError(t, c.AddToDatabin(databin.Meta, 0, 0, makeBytes(4, 0), 0, false, true, false))

	assert.Equal(t, -1, c.DatabinPrefixOrWait(databin.Meta, 0, 0, make([]byte, 8)), "incomplete")
	assert.Equal(t, 2, c.DatabinPrefixOrWait(databin.Meta, 0, 0, make([]byte, 2)), "enough")

	require.NoError(t, c.AddToDatabin(databin.Meta, 0, 0, nil, 4, true, true, false))
	assert.Equal(t, 4, c.DatabinPrefixOrWait(databin.Meta, 0, 0, make([]byte, 8)), "complete")
	assert.Equal(t, -1, c.DatabinPrefixOrWait(databin.Meta, 0, 1, make([]byte, 8)), "absent")
}

func TestAttach(t *testing.T) {
	primary := cache.New()
	view := cache.New()
	require.NoError(t, primary.AddToDatabin(databin.MainHeader, 0, 0, makeBytes(5, 0), 0, true, true, false))
	require.NoError(t, view.AddToDatabin(databin.MainHeader, 1, 0, makeBytes(5, 0), 0, true, true, false))

	require.NoError(t, view.Attach(primary), "attach")
	assert.True(t, view.IsAttached(), "attached")

	length, _ := view.DatabinLength(databin.MainHeader, 0, 0)
	assert.Equal(t, int64(5), length, "sees primary")
	length, _ = view.DatabinLength(databin.MainHeader, 1, 0)
	assert.Equal(t, int64(0), length, "own content discarded")

	err := view.AddToDatabin(databin.MainHeader, 0, 1, makeBytes(1, 0), 0, false, true, false)
	assert.Equal(t, fault.CacheAttached, err, "add while attached")
	assert.Equal(t, fault.CacheAttached, view.PromoteDatabin(databin.MainHeader, 0, 0), "promote while attached")
	assert.Equal(t, fault.CacheAttached, view.ClearAllMarks(), "marks while attached")

	// writes to the primary are visible through the view
	require.NoError(t, primary.AddToDatabin(databin.Tile, 0, 2, makeBytes(3, 0), 0, false, true, false))
	length, _ = view.DatabinLength(databin.Tile, 0, 2)
	assert.Equal(t, int64(3), length, "live view")

	assert.Error(t, primary.Attach(view), "cycle")

	assert.True(t, view.Close(), "close")
	assert.False(t, view.IsAttached(), "detached")
	length, _ = view.DatabinLength(databin.MainHeader, 0, 0)
	assert.Equal(t, int64(0), length, "empty after detach")
	require.NoError(t, view.AddToDatabin(databin.MainHeader, 0, 1, makeBytes(1, 0), 0, false, true, false))
}

func TestCloseEmpties(t *testing.T) {
	c := cache.New()
	require.NoError(t, c.AddToDatabin(databin.Precinct, 2, 3, makeBytes(4, 0), 0, true, true, false))
	assert.True(t, c.Close(), "close")
	assert.Equal(t, 0, c.NumDatabins(), "no data-bins")
	assert.Equal(t, int64(-1), c.NextMRUDatabin(databin.Precinct, 2, -1, false), "lru cleared")
}

func TestStatistics(t *testing.T) {
	c := cache.New()
	require.NoError(t, c.AddToDatabin(databin.Precinct, 0, 1, makeBytes(100, 0), 0, false, true, false))
	require.NoError(t, c.AddToDatabin(databin.Precinct, 0, 1, makeBytes(100, 0), 0, false, true, false))
	require.NoError(t, c.AddToDatabin(databin.Meta, 0, 1, makeBytes(10, 0), 0, false, true, false))

	assert.Equal(t, int64(200), c.TransferredBytes(databin.Precinct), "precinct bytes")
	assert.Equal(t, int64(10), c.TransferredBytes(databin.Meta), "meta bytes")
	assert.Equal(t, int64(0), c.TransferredBytes(databin.Tile), "tile bytes")
	assert.True(t, c.PeakCacheMemory() >= 110, "peak memory")
}

func TestLockedOperations(t *testing.T) {
	c := cache.New()
	require.NoError(t, c.AddToDatabin(databin.Precinct, 0, 1, makeBytes(4, 0), 0, false, true, true))
	require.NoError(t, c.AddToDatabin(databin.Precinct, 0, 2, makeBytes(4, 0), 0, false, true, false))

	l := c.AcquireLock()
	length, _ := l.DatabinLength(databin.Precinct, 0, 1)
	assert.Equal(t, int64(4), length, "length")
	assert.Equal(t, int64(2), l.NextMRUDatabin(databin.Precinct, 0, -1, false), "mru")
	assert.Equal(t, int64(1), l.NextLRUDatabin(databin.Precinct, 0, -1, false), "lru")
	was, err := l.MarkDatabin(databin.Precinct, 0, 1, false)
	assert.NoError(t, err, "mark")
	assert.True(t, was, "was marked")
	assert.NoError(t, l.PromoteDatabin(databin.Precinct, 0, 1), "promote")
	assert.Equal(t, 4, l.DatabinPrefix(databin.Precinct, 0, 1, make([]byte, 8)), "prefix")
	l.ReleaseLock()

	assert.Equal(t, int64(1), c.NextMRUDatabin(databin.Precinct, 0, -1, false), "promoted under lock")
}

func TestConcurrentWriterReader(t *testing.T) {
	c := cache.New()
	data := makeBytes(200, 0)
	wg := sync.WaitGroup{}
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < len(data); i += 10 {
			_ = c.AddToDatabin(databin.Precinct, 0, 0, data[i:i+10], int64(i), i+10 == len(data), true, true)
		}
	}()
	go func() {
		defer wg.Done()
		buffer := make([]byte, 200)
		for i := 0; i < 100; i += 1 {
			n := c.DatabinPrefix(databin.Precinct, 0, 0, buffer)
			if !bytes.Equal(data[:n], buffer[:n]) {
				t.Errorf("prefix mismatch at %d", n)
				return
			}
		}
	}()
	wg.Wait()

	length, complete := c.DatabinLength(databin.Precinct, 0, 0)
	assert.Equal(t, int64(200), length, "length")
	assert.True(t, complete, "complete")
}
