// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package serve_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitmark-inc/jpipd/cache"
	"github.com/bitmark-inc/jpipd/databin"
	"github.com/bitmark-inc/jpipd/fault"
	"github.com/bitmark-inc/jpipd/model"
	"github.com/bitmark-inc/jpipd/serve"
	"github.com/bitmark-inc/jpipd/window"
)

func TestInitialize(t *testing.T) {
	tgt := newTarget(t, singleTile())

	s := &serve.Server{}
	err := s.Initialize(tgt, 10, 8, false, nil)
	assert.Equal(t, fault.ChunkTooSmall, err, "tiny chunks")

	err = s.Initialize(tgt, chunkSize, prefixBytes, false, nil)
	require.NoError(t, err, "initialize")

	err = s.Initialize(tgt, chunkSize, prefixBytes, false, nil)
	assert.Equal(t, fault.AlreadyInitialised, err, "second initialize")

	s.Destroy()
	assert.Equal(t, 0, tgt.attachments(), "attachments after destroy")
}

func TestUnknownContextGivesEmptyChunk(t *testing.T) {
	s := newServer(t, newTarget(t, singleTile()))
	defer s.Destroy()

	chunks, remaining := s.GenerateIncrements(100, 200, false, false, false, 7)
	require.Equal(t, 1, len(chunks), "chunk count")
	assert.True(t, chunks[0].IsEmpty(), "chunk is empty")
	assert.Equal(t, prefixBytes, len(chunks[0].Data), "prefix reserved")
	assert.Equal(t, 200, remaining, "nothing used")

	assert.Nil(t, s.RetrieveExtraDataChunks(7), "no extra data")

	var w window.Window
	assert.False(t, s.Window(&w, 7), "no window")
}

func TestStatelessContextRules(t *testing.T) {
	s := newServer(t, newTarget(t, singleTile()))
	defer s.Destroy()

	w := imageWindow(64, 64)

	err := s.SetWindow(w, nil, nil, true, 1)
	assert.Equal(t, fault.InvalidStatelessContext, err, "stateless on context 1")

	err = s.SetWindow(w, nil, nil, false, 1)
	require.NoError(t, err, "stateful window")

	err = s.SetWindow(w, nil, nil, true, 0)
	assert.Equal(t, fault.MixedStatelessness, err, "stateless after stateful")

	m := &model.Model{}
	m.Init(true)
	err = s.SetWindow(w, nil, m, false, 0)
	assert.Equal(t, fault.MixedStatelessness, err, "stateless instructions")
}

func TestFullWindow(t *testing.T) {
	tgt := newTarget(t, singleTile())
	s := newServer(t, tgt)
	defer s.Destroy()

	err := s.SetWindow(imageWindow(64, 64), nil, nil, false, 0)
	require.NoError(t, err, "set window")
	assert.False(t, s.ImageDone(), "nothing sent yet")

	c := cache.New()
	chunks, remaining := s.GenerateIncrements(unlimited, unlimited, false, false, false, 0)
	decode(t, c, chunks, false)
	s.ReleaseChunks(chunks, false)
	assert.True(t, remaining > 0, "budget left over")

	cs := tgt.streams[0]
	length, complete := c.DatabinLength(databin.MainHeader, 0, 0)
	assert.Equal(t, int64(len(cs.MainHeader())), length, "main header length")
	assert.True(t, complete, "main header complete")

	_, complete = c.DatabinLength(databin.TileHeader, 0, 0)
	assert.True(t, complete, "tile header complete")

	_, complete = c.DatabinLength(databin.Meta, 0, 0)
	assert.True(t, complete, "root meta data-bin complete")

	st := cs.Structure()
	for r := 0; r < 3; r += 1 {
		id := st.PrecinctID(0, 0, r, 0)
		length, complete := c.DatabinLength(databin.Precinct, 0, id)
		assert.Equal(t, int64(6), length, "precinct %d length", r)
		assert.True(t, complete, "precinct %d complete", r)

		data := make([]byte, 6)
		n := c.DatabinPrefix(databin.Precinct, 0, id, data)
		assert.Equal(t, 6, n, "precinct %d prefix", r)
		assert.Equal(t, cs.Precinct(0, 0, r, 0).Data, data, "precinct %d data", r)
	}

	assert.True(t, s.ImageDone(), "image done")

	var w window.Window
	assert.False(t, s.Window(&w, 0), "window served")

	chunks, remaining = s.GenerateIncrements(unlimited, 500, false, false, false, 0)
	assert.Equal(t, 0, bodyBytes(chunks), "nothing more")
	assert.Equal(t, 500, remaining, "budget untouched")
}

func TestHardLimit(t *testing.T) {
	tgt := newTarget(t, singleTile())
	s := newServer(t, tgt)
	defer s.Destroy()

	err := s.SetWindow(imageWindow(64, 64), nil, nil, false, 0)
	require.NoError(t, err, "set window")

	c := cache.New()
	var w window.Window
	calls := 0
	for s.Window(&w, 0) {
		chunks, remaining := s.GenerateIncrements(unlimited, 20, false, false, false, 0)
		assert.True(t, bodyBytes(chunks) <= 20, "call %d exceeded the limit", calls)
		if s.Window(&w, 0) {
			assert.Equal(t, 0, remaining, "call %d was limited", calls)
		}
		decode(t, c, chunks, false)
		s.ReleaseChunks(chunks, false)
		calls += 1
		require.True(t, calls < 1000, "window never completed")
	}
	assert.True(t, calls > 1, "several calls needed")
	assert.True(t, s.ImageDone(), "image done")

	st := tgt.streams[0].Structure()
	for r := 0; r < 3; r += 1 {
		length, complete := c.DatabinLength(databin.Precinct, 0, st.PrecinctID(0, 0, r, 0))
		assert.Equal(t, int64(6), length, "precinct %d length", r)
		assert.True(t, complete, "precinct %d complete", r)
	}
}

func TestSuggestedLimitIsSoft(t *testing.T) {
	tgt := newTarget(t, singleTile())
	s := newServer(t, tgt)
	defer s.Destroy()

	err := s.SetWindow(imageWindow(64, 64), nil, nil, false, 0)
	require.NoError(t, err, "set window")

	c := cache.New()
	chunks, remaining := s.GenerateIncrements(1, unlimited, false, false, false, 0)
	headers := decode(t, c, chunks, false)

	require.Equal(t, 1, len(headers), "one data-bin")
	assert.Equal(t, databin.MainHeader, headers[0].Class, "main header first")
	assert.True(t, headers[0].Final, "whole main header")
	assert.True(t, remaining > 0, "not limited")

	var w window.Window
	assert.True(t, s.Window(&w, 0), "more to come")
}

func TestCacheModelSkipsHeldBins(t *testing.T) {
	tgt := newTarget(t, singleTile())
	s := newServer(t, tgt)
	defer s.Destroy()

	m := &model.Model{}
	m.Init(false)
	m.SetCodestreamContext(0, 0)
	m.AddInstruction(databin.MainHeader, 0, model.FlagComplete, 0)
	m.AddImplicitInstruction(-1, -1, -1, -1, -1, -1, -1, -1, 0, 0)

	err := s.SetWindow(imageWindow(64, 64), nil, m, false, 0)
	require.NoError(t, err, "set window")

	c := cache.New()
	chunks, _ := s.GenerateIncrements(unlimited, unlimited, false, false, false, 0)
	headers := decode(t, c, chunks, false)

	for _, h := range headers {
		assert.NotEqual(t, databin.MainHeader, h.Class, "main header sent")
		assert.NotEqual(t, databin.Precinct, h.Class, "precinct sent")
	}
	assert.True(t, s.ImageDone(), "model says the client has everything")
}

func TestReplacedWindowKeepsCacheModel(t *testing.T) {
	tgt := newTarget(t, singleTile())
	s := newServer(t, tgt)
	defer s.Destroy()

	m := &model.Model{}
	m.Init(false)
	m.SetCodestreamContext(0, 0)
	m.AddInstruction(databin.MainHeader, 0, model.FlagComplete, -1)

	err := s.SetWindow(imageWindow(64, 64), nil, m, false, 0)
	require.NoError(t, err, "set window")

	var w window.Window
	require.True(t, s.Window(&w, 0), "window to serve")

	err = s.SetWindow(imageWindow(64, 64), nil, nil, false, 0)
	require.NoError(t, err, "replace window")

	c := cache.New()
	chunks, _ := s.GenerateIncrements(unlimited, unlimited, false, false, false, 0)
	headers := decode(t, c, chunks, false)
	require.NotEqual(t, 0, len(headers), "imagery sent")
	for _, h := range headers {
		assert.NotEqual(t, databin.MainHeader, h.Class, "main header sent after the client held it")
	}
}

func TestLayerLimitedWindow(t *testing.T) {
	tgt := newTarget(t, singleTile())
	s := newServer(t, tgt)
	defer s.Destroy()

	w := imageWindow(64, 64)
	w.MaxLayers = 1
	err := s.SetWindow(w, nil, nil, false, 0)
	require.NoError(t, err, "set window")

	c := cache.New()
	generateAll(t, s, c, unlimited, unlimited, 0)

	st := tgt.streams[0].Structure()
	for r := 0; r < 3; r += 1 {
		length, complete := c.DatabinLength(databin.Precinct, 0, st.PrecinctID(0, 0, r, 0))
		assert.Equal(t, int64(1), length, "precinct %d holds one layer", r)
		assert.False(t, complete, "precinct %d incomplete", r)
	}
	assert.False(t, s.ImageDone(), "layers missing")
}

func TestRegionSelectsTiles(t *testing.T) {
	tgt := newTarget(t, twoTiles())
	s := newServer(t, tgt)
	defer s.Destroy()

	w := imageWindow(128, 64)
	w.Region = window.Dims{Size: window.Coords{X: 32, Y: 32}}
	err := s.SetWindow(w, nil, nil, false, 0)
	require.NoError(t, err, "set window")

	c := cache.New()
	generateAll(t, s, c, unlimited, unlimited, 0)

	st := tgt.streams[0].Structure()
	for r := 0; r < 2; r += 1 {
		_, complete := c.DatabinLength(databin.Precinct, 0, st.PrecinctID(0, 0, r, 0))
		assert.True(t, complete, "left tile resolution %d", r)

		length, _ := c.DatabinLength(databin.Precinct, 0, st.PrecinctID(1, 0, r, 0))
		assert.Equal(t, int64(0), length, "right tile resolution %d", r)
	}
	_, complete := c.DatabinLength(databin.TileHeader, 0, 0)
	assert.True(t, complete, "left tile header")
}

func TestReducedResolution(t *testing.T) {
	tgt := newTarget(t, singleTile())
	s := newServer(t, tgt)
	defer s.Destroy()

	err := s.SetWindow(imageWindow(20, 20), nil, nil, false, 0)
	require.NoError(t, err, "set window")

	var w window.Window
	require.True(t, s.Window(&w, 0), "window pending")
	assert.Equal(t, window.Coords{X: 16, Y: 16}, w.Resolution, "resolution rounded down")

	c := cache.New()
	generateAll(t, s, c, unlimited, unlimited, 0)

	st := tgt.streams[0].Structure()
	_, complete := c.DatabinLength(databin.Precinct, 0, st.PrecinctID(0, 0, 0, 0))
	assert.True(t, complete, "lowest resolution sent")
	length, _ := c.DatabinLength(databin.Precinct, 0, st.PrecinctID(0, 0, 2, 0))
	assert.Equal(t, int64(0), length, "highest resolution not sent")
}

func TestAbandonedChunksRollBack(t *testing.T) {
	tgt := newTarget(t, singleTile())
	s := newServer(t, tgt)
	defer s.Destroy()

	err := s.SetWindow(imageWindow(64, 64), nil, nil, false, 0)
	require.NoError(t, err, "set window")

	chunks, _ := s.GenerateIncrements(unlimited, unlimited, false, false, false, 0)
	first := bodyBytes(chunks)
	require.True(t, s.ImageDone(), "image done")

	for _, c := range chunks {
		c.Abandoned = true
	}
	s.ReleaseChunks(chunks, true)
	assert.False(t, s.ImageDone(), "rolled back")

	var w window.Window
	assert.True(t, s.Window(&w, 0), "window to serve again")

	c := cache.New()
	chunks, _ = s.GenerateIncrements(unlimited, unlimited, false, false, false, 0)
	decode(t, c, chunks, false)
	assert.Equal(t, first, bodyBytes(chunks), "same content again")
	assert.True(t, s.ImageDone(), "image done again")
}

func TestPartialRollBack(t *testing.T) {
	tgt := newTarget(t, singleTile())
	s := newServer(t, tgt)
	defer s.Destroy()

	err := s.SetWindow(imageWindow(64, 64), nil, nil, false, 0)
	require.NoError(t, err, "set window")

	c := cache.New()
	delivered, _ := s.GenerateIncrements(unlimited, 30, false, false, false, 0)
	decode(t, c, delivered, false)
	s.ReleaseChunks(delivered, true)

	lost, _ := s.GenerateIncrements(unlimited, 15, false, false, false, 0)
	for _, chunk := range lost {
		chunk.Abandoned = true
	}
	s.ReleaseChunks(lost, true)

	generateAll(t, s, c, unlimited, unlimited, 0)
	assert.True(t, s.ImageDone(), "image done")

	st := tgt.streams[0].Structure()
	for r := 0; r < 3; r += 1 {
		length, complete := c.DatabinLength(databin.Precinct, 0, st.PrecinctID(0, 0, r, 0))
		assert.Equal(t, int64(6), length, "precinct %d length", r)
		assert.True(t, complete, "precinct %d complete", r)
	}
}

func TestExtendedHeaders(t *testing.T) {
	s := newServer(t, newTarget(t, singleTile()))
	defer s.Destroy()

	err := s.SetWindow(imageWindow(64, 64), nil, nil, false, 0)
	require.NoError(t, err, "set window")

	c := cache.New()
	chunks, _ := s.GenerateIncrements(unlimited, unlimited, false, true, false, 0)
	headers := decode(t, c, chunks, false)

	precincts := 0
	for _, h := range headers {
		if databin.Precinct != h.Class {
			assert.False(t, h.Extended, "%s extended", h.Class)
			continue
		}
		precincts += 1
		assert.True(t, h.Extended, "precinct header extended")
		assert.True(t, h.Aux >= 1 && h.Aux <= 3, "layer count: %d", h.Aux)
	}
	assert.Equal(t, 9, precincts, "one message per packet")
}

func TestAlignedTruncation(t *testing.T) {
	s := newServer(t, newTarget(t, singleTile()))
	defer s.Destroy()

	err := s.SetWindow(imageWindow(64, 64), nil, nil, false, 0)
	require.NoError(t, err, "set window")

	c := cache.New()
	var w window.Window
	calls := 0
	for s.Window(&w, 0) {
		chunks, _ := s.GenerateIncrements(unlimited, 12, true, false, false, 0)
		for _, h := range decode(t, c, chunks, false) {
			if databin.Precinct != h.Class {
				continue
			}
			end := int(h.Offset + h.Length)
			assert.Contains(t, []int{1, 3, 6}, end, "precinct %d cut inside a packet", h.ID)
		}
		calls += 1
		require.True(t, calls < 1000, "window never completed")
	}
	assert.True(t, s.ImageDone(), "image done")
}

func TestDecoupledChunks(t *testing.T) {
	tgt := newTarget(t, twoTiles())
	s := &serve.Server{}
	err := s.Initialize(tgt, 48, 0, false, nil)
	require.NoError(t, err, "initialize")
	defer s.Destroy()

	err = s.SetWindow(imageWindow(128, 64), nil, nil, false, 0)
	require.NoError(t, err, "set window")

	chunks, _ := s.GenerateIncrements(unlimited, unlimited, false, false, true, 0)
	require.True(t, len(chunks) > 1, "several chunks")

	// every chunk decodes without the ones before it
	c := cache.New()
	for _, chunk := range chunks {
		assert.True(t, len(chunk.Data) <= 48, "chunk size")
		decode(t, c, []*serve.Chunk{chunk}, true)
	}
	assert.True(t, s.ImageDone(), "image done")
}

func TestExtraData(t *testing.T) {
	s := newServer(t, newTarget(t, singleTile()))
	defer s.Destroy()

	remaining, err := s.PushExtraData([]byte("hello"), 3)
	require.NoError(t, err, "push")
	assert.Equal(t, chunkSize-prefixBytes-5, remaining, "space left")

	_, err = s.PushExtraData(make([]byte, chunkSize), 3)
	assert.Equal(t, fault.ExtraDataTooLong, err, "too long")

	chunks := s.RetrieveExtraDataChunks(3)
	require.Equal(t, 1, len(chunks), "one chunk")
	assert.Equal(t, []byte("hello"), chunks[0].Body(), "contents")
	assert.Nil(t, s.RetrieveExtraDataChunks(3), "taken")

	chunks, remaining, err = s.AppendExtraData(nil, []byte("abc"))
	require.NoError(t, err, "append")
	chunks, _, err = s.AppendExtraData(chunks, []byte("def"))
	require.NoError(t, err, "append")
	assert.Equal(t, chunkSize-prefixBytes-3, remaining, "space left")
	require.Equal(t, 1, len(chunks), "shared chunk")
	assert.Equal(t, []byte("abcdef"), chunks[0].Body(), "contents")
}

func TestExtraDataLeadsIncrements(t *testing.T) {
	s := newServer(t, newTarget(t, singleTile()))
	defer s.Destroy()

	err := s.SetWindow(imageWindow(64, 64), nil, nil, false, 0)
	require.NoError(t, err, "set window")

	_, err = s.PushExtraData(make([]byte, chunkSize-prefixBytes), 0)
	require.NoError(t, err, "push")

	chunks, _ := s.GenerateIncrements(unlimited, unlimited, false, false, false, 0)
	require.True(t, len(chunks) >= 2, "extra data chunk then messages")
	assert.Equal(t, chunkSize, len(chunks[0].Data), "extra data fills the first chunk")

	decode(t, cache.New(), chunks[1:], false)
	assert.True(t, s.ImageDone(), "image done")
}

func TestStatelessWindows(t *testing.T) {
	s := newServer(t, newTarget(t, singleTile()))
	defer s.Destroy()

	err := s.SetWindow(imageWindow(64, 64), nil, nil, true, 0)
	require.NoError(t, err, "set window")

	chunks, _ := s.GenerateIncrements(unlimited, unlimited, false, false, false, 0)
	first := bodyBytes(chunks)
	assert.True(t, s.ImageDone(), "image done")

	// nothing is remembered between stateless requests
	err = s.SetWindow(imageWindow(64, 64), nil, nil, true, 0)
	require.NoError(t, err, "set window")
	assert.False(t, s.ImageDone(), "new request")

	chunks, _ = s.GenerateIncrements(unlimited, unlimited, false, false, false, 0)
	assert.Equal(t, first, bodyBytes(chunks), "everything again")
}

func TestContextsShareCacheModel(t *testing.T) {
	s := newServer(t, newTarget(t, singleTile()))
	defer s.Destroy()

	err := s.SetWindow(imageWindow(64, 64), nil, nil, false, 0)
	require.NoError(t, err, "set window 0")
	err = s.SetWindow(imageWindow(64, 64), nil, nil, false, 1)
	require.NoError(t, err, "set window 1")

	chunks, _ := s.GenerateIncrements(unlimited, unlimited, false, false, false, 0)
	assert.True(t, bodyBytes(chunks) > 0, "context 0 sends")

	chunks, _ = s.GenerateIncrements(unlimited, unlimited, false, false, false, 1)
	assert.Equal(t, 0, bodyBytes(chunks), "context 1 has nothing new")
}
