// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitmark-inc/jpipd/cache"
	"github.com/bitmark-inc/jpipd/databin"
)

func TestSummarise(t *testing.T) {
	jc := cache.New()
	defer jc.Close()

	add := func(class databin.Class, stream int64, id int64, size int, final bool) {
		err := jc.AddToDatabin(class, stream, id, bytes.Repeat([]byte{0x55}, size), 0, final, true, false)
		require.NoError(t, err, "add")
	}
	add(databin.MainHeader, 1, 0, 40, true)
	add(databin.TileHeader, 1, 0, 10, true)
	add(databin.Precinct, 1, 0, 100, false)
	add(databin.Precinct, 1, 3, 25, true)
	add(databin.Precinct, 2, 0, 7, true)

	s := summarise(jc, 1)
	assert.Equal(t, int64(1), s.Stream, "stream")
	require.Contains(t, s.Classes, "precinct", "precincts")
	assert.Equal(t, &classSummary{Databins: 2, Complete: 1, Bytes: 125}, s.Classes["precinct"], "precinct summary")
	assert.Equal(t, &classSummary{Databins: 1, Complete: 1, Bytes: 40}, s.Classes["main-header"], "main header summary")
	assert.Equal(t, &classSummary{Databins: 1, Complete: 1, Bytes: 10}, s.Classes["tile-header"], "tile header summary")
	assert.NotContains(t, s.Classes, "meta", "no meta data-bins")

	s = summarise(jc, 2)
	assert.Equal(t, 1, len(s.Classes), "one class")
	assert.Equal(t, []int64{1, 2}, jc.Codestreams(), "codestreams")
}
