// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitmark-inc/jpipd/databin"
	"github.com/bitmark-inc/jpipd/model"
	"github.com/bitmark-inc/jpipd/window"
)

func block(x int, y int, w int, h int) window.Dims {
	return window.Dims{
		Pos:  window.Coords{X: x, Y: y},
		Size: window.Coords{X: w, Y: h},
	}
}

func TestAtomicConsumption(t *testing.T) {
	m := model.Model{}
	m.InitBackground(false, false, 0)
	m.AddInstruction(databin.Meta, 7, 0, 100)
	m.AddInstruction(databin.MainHeader, 0, 0, -1)
	m.AddInstruction(databin.TileHeader, 3, 0, 20)

	id, s, ok := m.MetaInstructions(7)
	require.True(t, ok, "meta found")
	assert.Equal(t, int64(7), id, "meta id")
	assert.Equal(t, model.Statement{Additive: 100}, s, "meta statement")
	_, _, ok = m.MetaInstructions(7)
	assert.False(t, ok, "meta consumed")

	s, ok = m.HeaderInstructions(0, -1)
	require.True(t, ok, "main header found")
	assert.Equal(t, -1, s.Additive, "complete")
	_, ok = m.HeaderInstructions(0, -1)
	assert.False(t, ok, "main header consumed")

	s, ok = m.HeaderInstructions(0, 3)
	require.True(t, ok, "tile header found")
	assert.Equal(t, 20, s.Additive, "tile header bytes")
	_, ok = m.HeaderInstructions(0, 3)
	assert.False(t, ok, "tile header consumed")

	assert.True(t, m.IsEmpty(), "everything consumed")
}

func TestNonAtomicPersists(t *testing.T) {
	m := model.Model{}
	m.InitBackground(false, false, 0)
	m.SetCodestreamContext(0, 4)
	m.AddInstruction(databin.TileHeader, 2, 0, -1)
	m.SetCodestreamContext(-1, 0)
	m.AddInstruction(databin.MainHeader, -1, model.FlagSubtractive, 9)

	for i := 0; i < 3; i += 1 {
		s, ok := m.HeaderInstructions(3, 2)
		require.True(t, ok, "%d: stream range", i)
		assert.Equal(t, -1, s.Additive, "%d: complete", i)

		s, ok = m.HeaderInstructions(17, -1)
		require.True(t, ok, "%d: all streams", i)
		assert.Equal(t, 10, s.Subtractive, "%d: less than limit+1", i)
	}
	_, ok := m.HeaderInstructions(5, 2)
	assert.False(t, ok, "outside stream range")
	assert.False(t, m.IsEmpty(), "instructions remain")
	assert.Equal(t, -1, m.FirstAtomicStream(), "nothing atomic")
}

func TestUntargetedLookups(t *testing.T) {
	m := model.Model{}
	m.InitBackground(false, false, 2)
	m.AddInstruction(databin.Meta, -1, 0, -1)
	m.AddInstruction(databin.Meta, 12, model.FlagSubtractive, 0)
	m.AddInstruction(databin.TileHeader, 5, 0, 8)
	m.AddInstruction(databin.Precinct, 40, model.FlagLayers, 2)

	assert.Equal(t, 2, m.FirstAtomicStream(), "first atomic stream")

	id, s, ok := m.MetaInstructions(-1)
	require.True(t, ok, "atomic meta")
	assert.Equal(t, int64(12), id, "picked bin")
	assert.Equal(t, model.Statement{Additive: -1, Subtractive: 1}, s, "non-atomic joins in")
	_, _, ok = m.MetaInstructions(-1)
	assert.False(t, ok, "no atomic meta left")

	tile, s, ok := m.NextHeaderInstructions(2)
	require.True(t, ok, "header")
	assert.Equal(t, 5, tile, "tile")
	assert.Equal(t, 8, s.Additive, "bytes")
	_, _, ok = m.NextHeaderInstructions(2)
	assert.False(t, ok, "header consumed")

	id2, s, ok := m.PrecinctInstructions(2)
	require.True(t, ok, "precinct")
	assert.Equal(t, model.PrecinctID{Tile: -1, Component: -1, Resolution: -1, ID: 40}, id2, "explicit id")
	assert.Equal(t, 5, s.Additive, "2 layers")
	_, _, ok = m.PrecinctInstructions(2)
	assert.False(t, ok, "precinct consumed")

	assert.Equal(t, -1, m.FirstAtomicStream(), "nothing atomic left")
}

func TestStatelessLookups(t *testing.T) {
	m := model.Model{}
	m.InitBackground(true, false, 0)
	m.AddInstruction(databin.Meta, 3, 0, 10)
	m.AddInstruction(databin.TileHeader, 1, 0, -1)
	m.AddInstruction(databin.Precinct, 4, 0, 6)

	assert.True(t, m.IsStateless(), "stateless")
	_, _, ok := m.MetaInstructions(-1)
	assert.False(t, ok, "untargeted meta")
	_, _, ok = m.NextHeaderInstructions(0)
	assert.False(t, ok, "untargeted header")
	_, _, ok = m.PrecinctInstructions(0)
	assert.False(t, ok, "untargeted precinct")

	_, s, ok := m.MetaInstructions(3)
	assert.True(t, ok, "targeted meta")
	assert.Equal(t, 10, s.Additive, "meta bytes")

	s, ok = m.HeaderInstructions(0, 1)
	assert.True(t, ok, "targeted header")
	assert.Equal(t, -1, s.Additive, "complete")

	statements, ok := m.PrecinctBlock(0, 0, 0, 0, 1, 4, 0, 2, block(0, 0, 4, 1))
	require.True(t, ok, "block")
	assert.Equal(t, []model.Statement{{}, {}, {Additive: 12}, {}}, statements, "id 4 is the third precinct")
}

func TestByteLayerConflict(t *testing.T) {
	items := []struct {
		flags    []int
		limits   []int
		expected model.Statement
	}{
		// the most recent additive statement wins
		{[]int{0, model.FlagLayers}, []int{10, 3}, model.Statement{Additive: 7}},
		{[]int{model.FlagLayers, 0}, []int{3, 10}, model.Statement{Additive: 20}},
		// subtractive obliterates the other unit
		{[]int{0, model.FlagLayers | model.FlagSubtractive}, []int{10, 5}, model.Statement{Subtractive: 13}},
		{[]int{model.FlagLayers, model.FlagSubtractive}, []int{3, 99}, model.Statement{Subtractive: 200}},
		{[]int{model.FlagLayers, model.FlagLayers | model.FlagSubtractive}, []int{3, 5}, model.Statement{Additive: 7, Subtractive: 13}},
		// two subtractive statements collapse to empty
		{[]int{model.FlagSubtractive, model.FlagLayers | model.FlagSubtractive}, []int{40, 4}, model.Statement{Subtractive: 2}},
		{[]int{model.FlagLayers | model.FlagSubtractive}, []int{0}, model.Statement{Subtractive: 2}},
		// same unit keeps the largest lower bound
		{[]int{0, 0}, []int{30, 12}, model.Statement{Additive: 60}},
		{[]int{0, model.FlagComplete}, []int{30, 0}, model.Statement{Additive: -1}},
	}

	for n, item := range items {
		m := model.Model{}
		m.InitBackground(false, false, 0)
		for k := range item.flags {
			m.AddInstruction(databin.Precinct, 9, item.flags[k], item.limits[k])
		}
		statements, ok := m.PrecinctBlock(0, 0, 0, 0, 1, 1, 9, 1, block(0, 0, 1, 1))
		require.True(t, ok, "%d: matched", n)
		assert.Equal(t, item.expected, statements[0], "%d: statement", n)
	}
}

func TestImplicitBlock(t *testing.T) {
	m := model.Model{}
	m.InitBackground(false, false, 1)

	// tiles 0..4 on a 4 wide grid is the block of columns 0..0 rows 0..1
	m.AddImplicitInstruction(0, 4, 0, 0, 2, 2, 1, 6, model.FlagLayers, 4)
	m.AddImplicitInstruction(-1, -1, -1, -1, -1, -1, 0, 0, 0, 0)

	statements, ok := m.PrecinctBlock(1, 4, 0, 2, 4, 5, 100, 3, block(0, 0, 3, 2))
	require.True(t, ok, "matched")
	// precincts 1 to 6 on a 5 wide grid is column 1 of rows 0 and 1
	expected := []model.Statement{
		{Additive: -1}, {Additive: 9}, {},
		{}, {Additive: 9}, {},
	}
	assert.Equal(t, expected, statements, "block")

	statements, ok = m.PrecinctBlock(1, 1, 0, 2, 4, 5, 100, 3, block(0, 0, 2, 1))
	require.True(t, ok, "other tile")
	assert.Equal(t, []model.Statement{{Additive: -1}, {}}, statements, "tile 1 outside the tile block")

	_, ok = m.PrecinctBlock(2, 4, 0, 2, 4, 5, 100, 3, block(0, 0, 1, 1))
	assert.False(t, ok, "other codestream")
}

func TestImplicitAtomic(t *testing.T) {
	m := model.Model{}
	m.InitBackground(false, false, 0)
	m.AddImplicitInstruction(1, 1, 2, 2, 3, 3, 4, 4, model.FlagLayers, 2)
	m.AddImplicitInstruction(1, 1, 2, 2, 3, 3, 4, 4, model.FlagLayers|model.FlagSubtractive, 6)

	id, s, ok := m.PrecinctInstructions(0)
	require.True(t, ok, "found")
	assert.Equal(t, model.PrecinctID{Tile: 1, Component: 2, Resolution: 3, ID: 4}, id, "coordinates")
	assert.Equal(t, model.Statement{Additive: 5, Subtractive: 15}, s, "combined")
	assert.True(t, m.IsEmpty(), "consumed")
}

func TestBackgroundFull(t *testing.T) {
	m := model.Model{}
	m.InitBackground(true, true, 0)
	assert.False(t, m.IsEmpty(), "background makes the model non-empty")

	m.AddInstruction(databin.Meta, 2, 0, 50)

	_, s, ok := m.MetaInstructions(2)
	require.True(t, ok, "meta")
	assert.Equal(t, model.Statement{Additive: -1, Subtractive: 51}, s, "complete then truncated")

	_, s, ok = m.MetaInstructions(3)
	require.True(t, ok, "untouched meta")
	assert.Equal(t, model.Statement{Additive: -1}, s, "complete")

	statements, ok := m.PrecinctBlock(0, 0, 0, 0, 1, 2, 0, 1, block(0, 0, 2, 1))
	require.True(t, ok, "block")
	assert.Equal(t, []model.Statement{{Additive: -1}, {Additive: -1}}, statements, "all complete")

	stateful := model.Model{}
	stateful.InitBackground(false, true, 0)
	assert.True(t, stateful.IsEmpty(), "background ignored for stateful models")
}

func TestAppendCopy(t *testing.T) {
	a := model.Model{}
	a.InitBackground(false, false, 0)
	a.AddInstruction(databin.Precinct, 1, model.FlagLayers, 3)

	b := model.Model{}
	b.InitBackground(false, false, 0)
	b.AddInstruction(databin.Precinct, 1, 0, 10)

	// b's instruction is appended after a's, so it is the most recent
	a.Append(&b)
	statements, ok := a.PrecinctBlock(0, 0, 0, 0, 1, 1, 1, 1, block(0, 0, 1, 1))
	require.True(t, ok, "appended")
	assert.Equal(t, 20, statements[0].Additive, "bytes are newer")

	c := model.Model{}
	c.CopyFrom(&b)
	c.AddInstruction(databin.Precinct, 2, 0, 1)
	_, s, ok := c.PrecinctInstructions(0)
	require.True(t, ok, "copied")
	assert.Equal(t, 20, s.Additive, "copy keeps order")

	_, _, ok = b.PrecinctInstructions(0)
	assert.True(t, ok, "source untouched")

	a.Clear()
	assert.True(t, a.IsEmpty(), "clear")
}
