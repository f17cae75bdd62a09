// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitmark-inc/jpipd/databin"
)

func TestWalksDoNotCreatePartitions(t *testing.T) {
	c := New()
	err := c.AddToDatabin(databin.Precinct, 0, 7, []byte{1, 2, 3}, 0, true, false, false)
	require.NoError(t, err, "add")
	require.Equal(t, 1, len(c.own.partitions), "one partition")

	for stream := int64(1); stream < 4; stream += 1 {
		assert.Equal(t, int64(-1), c.NextMRUDatabin(databin.Precinct, stream, -1, false), "mru: stream: %d", stream)
		assert.Equal(t, int64(-1), c.NextLRUDatabin(databin.TileHeader, stream, -1, false), "lru: stream: %d", stream)
	}
	assert.Equal(t, int64(-1), c.NextMRUDatabin(databin.Meta, 0, 5, true), "unknown meta id")
	assert.Equal(t, 1, len(c.own.partitions), "walks left partitions alone")

	assert.Equal(t, int64(7), c.NextMRUDatabin(databin.Precinct, 0, -1, false), "existing partition")
	assert.Equal(t, int64(7), c.NextLRUDatabin(databin.Precinct, 0, -1, false), "existing partition")
}
