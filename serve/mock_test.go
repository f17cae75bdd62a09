// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package serve_test

import (
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitmark-inc/jpipd/fault"
	"github.com/bitmark-inc/jpipd/mocks"
	"github.com/bitmark-inc/jpipd/serve"
	"github.com/bitmark-inc/jpipd/target"
	"github.com/bitmark-inc/jpipd/window"
)

func TestInitializeCountsBins(t *testing.T) {
	ctl := gomock.NewController(t)
	defer ctl.Finish()

	m := mocks.NewMockTarget(ctl)
	m.EXPECT().ID().Return("mock").AnyTimes()
	m.EXPECT().CodestreamRanges(-1).Return([]target.Range{{From: 3, To: 3}}).Times(1)
	m.EXPECT().Structure(3).Return(singleTile(), true).Times(1)
	m.EXPECT().Metatree().Return(nil).AnyTimes()

	s := &serve.Server{}
	err := s.Initialize(m, chunkSize, prefixBytes, false, nil)
	require.NoError(t, err, "initialize")

	err = s.Initialize(m, chunkSize, prefixBytes, false, nil)
	assert.Equal(t, fault.AlreadyInitialised, err, "second initialize")

	assert.False(t, s.ImageDone(), "nothing sent")

	// an empty window never touches the codestreams
	w := &window.Window{}
	w.Init()
	err = s.SetWindow(w, nil, nil, false, 0)
	require.NoError(t, err, "set window")

	var served window.Window
	assert.False(t, s.Window(&served, 0), "nothing to serve")
	assert.True(t, served.IsEmpty(), "served window")

	chunks, remaining := s.GenerateIncrements(chunkSize, unlimited, false, false, false, 0)
	assert.Equal(t, 1, len(chunks), "one chunk")
	assert.True(t, chunks[0].IsEmpty(), "chunk is empty")
	assert.Equal(t, unlimited, remaining, "budget untouched")
	s.ReleaseChunks(chunks, false)

	s.Destroy()
	assert.Equal(t, fault.NotInitialised, s.SetWindow(w, nil, nil, false, 0), "destroyed")
}

func TestInitializeRejectsSmallChunks(t *testing.T) {
	ctl := gomock.NewController(t)
	defer ctl.Finish()

	m := mocks.NewMockTarget(ctl)

	s := &serve.Server{}
	err := s.Initialize(m, prefixBytes+8, prefixBytes, false, nil)
	assert.Equal(t, fault.ChunkTooSmall, err, "chunk too small")
}
