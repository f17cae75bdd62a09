// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package codestream_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitmark-inc/jpipd/codestream"
	"github.com/bitmark-inc/jpipd/fault"
	"github.com/bitmark-inc/jpipd/target"
	"github.com/bitmark-inc/jpipd/window"
)

func twoComponents(progression int) *target.Structure {
	return &target.Structure{
		Image: window.Dims{
			Size: window.Coords{X: 100, Y: 80},
		},
		TileSize: window.Coords{X: 64, Y: 64},
		Components: []target.Component{
			{
				Subsampling: window.Coords{X: 1, Y: 1},
				Levels:      2,
				Precincts: []window.Coords{
					{X: 3, Y: 3}, {X: 3, Y: 3}, {X: 4, Y: 4},
				},
			},
			{
				Subsampling: window.Coords{X: 2, Y: 2},
				Levels:      1,
			},
		},
		Layers:      2,
		Progression: progression,
	}
}

// packet contents identify the component and layer, length grows
// with the layer
func packetBytes(tile int, component int, resolution int, index int64, layer int) []byte {
	return bytes.Repeat([]byte{byte(10*layer + component)}, 2*(layer+1))
}

func TestRoundTrip(t *testing.T) {
	for _, progression := range []int{target.LRCP, target.RLCP} {
		s := twoComponents(progression)
		data, err := codestream.Encode(s, packetBytes)
		require.NoError(t, err, "encode %d", progression)

		c, err := codestream.Parse(data)
		require.NoError(t, err, "parse %d", progression)

		assert.Equal(t, s, c.Structure(), "structure %d", progression)
		assert.Equal(t, []byte{0xff, 0x4f}, c.MainHeader()[:2], "SOC")
		assert.Equal(t, []byte{0xff, 0x90}, data[len(c.MainHeader()):len(c.MainHeader())+2], "ends at SOT")
		assert.Nil(t, c.TileHeader(0), "only PLT in the tile header")

		expected := append(bytes.Repeat([]byte{1}, 2), bytes.Repeat([]byte{11}, 4)...)
		p := c.Precinct(3, 1, 1, 0)
		assert.Equal(t, expected, p.Data, "precinct data %d", progression)
		assert.Equal(t, []int{2, 6}, p.Layers, "layers %d", progression)

		// every precinct of every tile appears once
		total := int64(0)
		for tile := 0; tile < s.NumTiles(); tile += 1 {
			for component := range s.Components {
				for r := 0; r < s.NumResolutions(component); r += 1 {
					total += s.NumPrecincts(tile, component, r)
				}
			}
		}
		assert.Equal(t, total, int64(len(c.Keys())), "keys %d", progression)
	}
}

func TestKeysAreOrdered(t *testing.T) {
	data, err := codestream.Encode(twoComponents(target.LRCP), packetBytes)
	require.NoError(t, err)
	c, err := codestream.Parse(data)
	require.NoError(t, err)

	keys := c.Keys()
	for i := 1; i < len(keys); i += 1 {
		a := keys[i-1]
		b := keys[i]
		less := a.Tile < b.Tile ||
			a.Tile == b.Tile && (a.Component < b.Component ||
				a.Component == b.Component && (a.Resolution < b.Resolution ||
					a.Resolution == b.Resolution && a.Index < b.Index))
		assert.True(t, less, "key %d out of order", i)
	}
}

func TestPositionOrders(t *testing.T) {
	s := &target.Structure{
		Image: window.Dims{
			Size: window.Coords{X: 32, Y: 32},
		},
		TileSize: window.Coords{X: 32, Y: 32},
		Components: []target.Component{
			{Subsampling: window.Coords{X: 1, Y: 1}, Levels: 1},
		},
		Layers:      3,
		Progression: target.RPCL,
	}
	data, err := codestream.Encode(s, packetBytes)
	require.NoError(t, err)
	c, err := codestream.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 6, 12}, c.Precinct(0, 0, 1, 0).Layers)

	_, err = codestream.Encode(twoComponents(target.CPRL), packetBytes)
	assert.Equal(t, fault.InvalidCodestream, err, "several precincts per resolution")
}

func TestInvalidCodestreams(t *testing.T) {
	data, err := codestream.Encode(twoComponents(target.LRCP), packetBytes)
	require.NoError(t, err)

	_, err = codestream.Parse(data[2:])
	assert.Equal(t, fault.InvalidCodestream, err, "missing SOC")

	_, err = codestream.Parse(data[:20])
	assert.Equal(t, fault.InvalidCodestreamHeader, err, "truncated main header")

	c, err := codestream.Parse(twoComponentsHeaderOnly(t))
	require.NoError(t, err, "no tile-parts")
	assert.Equal(t, 0, len(c.Keys()))

	truncated := data[:len(data)-10]
	_, err = codestream.Parse(truncated)
	assert.Equal(t, fault.InvalidCodestream, err, "truncated tile-part")
}

// a codestream that ends immediately after its main header
func twoComponentsHeaderOnly(t *testing.T) []byte {
	data, err := codestream.Encode(twoComponents(target.LRCP), packetBytes)
	require.NoError(t, err)
	c, err := codestream.Parse(data)
	require.NoError(t, err)
	header := append([]byte{}, c.MainHeader()...)
	return append(header, 0xff, 0xd9)
}
