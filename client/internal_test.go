// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package client

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/bitmark-inc/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitmark-inc/jpipd/databin"
	"github.com/bitmark-inc/jpipd/message"
	"github.com/bitmark-inc/jpipd/protocol"
	"github.com/bitmark-inc/jpipd/window"
)

func TestDecoderAcrossReads(t *testing.T) {
	headers := []message.Header{
		{Class: databin.MainHeader, Stream: 0, ID: 0, Offset: 0, Length: 5, Final: true},
		{Class: databin.Precinct, Stream: 2, ID: 300, Offset: 7, Length: 3},
		{Class: databin.Precinct, Stream: 2, ID: 301, Offset: 0, Length: 0, Final: true},
	}
	body := []byte{}
	coupling := message.Coupling{}
	for i := range headers {
		body, coupling = message.AppendHeader(body, &headers[i], coupling)
		for j := int64(0); j < headers[i].Length; j += 1 {
			body = append(body, byte(i))
		}
	}
	body = message.AppendEOR(body, message.WindowDone, nil)

	// one byte at a time
	d := decoder{}
	got := []*message.Header{}
	for _, b := range body {
		d.write([]byte{b})
		for {
			h, data, err := d.next()
			require.NoError(t, err, "next")
			if nil == h {
				break
			}
			assert.Equal(t, int(h.Length), len(data), "data length")
			got = append(got, h)
		}
	}
	require.True(t, d.ended, "end of response")
	assert.Equal(t, message.WindowDone, d.reason)
	require.Equal(t, len(headers), len(got))
	for i := range headers {
		assert.Equal(t, headers[i], *got[i], "header: %d", i)
	}
}

func TestDecoderError(t *testing.T) {
	d := decoder{}
	d.write([]byte{0x10, 0x7f, 0x00})
	_, _, err := d.next()
	assert.Error(t, err, "zero bin-id indicator")
}

func TestCacheFilePath(t *testing.T) {
	assert.Equal(t, filepath.Join("dir", "a_b.jp2_x.kjc"), cacheFilePath("dir", "a/b.jp2", "x"))
	assert.Equal(t, filepath.Join("dir", "image-1.jp2.kjc"), cacheFilePath("dir", "image-1.jp2", ""))
}

func TestResolveLiteral(t *testing.T) {
	r := newResolver(logger.New("testing"), "/no/such/resolv.conf")
	assert.Nil(t, r.servers, "no name servers")

	for _, host := range []string{"127.0.0.1", "::1"} {
		addresses, err := r.lookup(context.Background(), host)
		require.NoError(t, err, "lookup: %s", host)
		assert.Equal(t, []string{host}, addresses)
	}
}

type fixedTranslator struct {
	NullTranslator
}

func (fixedTranslator) NumContextMembers(contextType int, contextIndex int, remapping [2]int) int {
	return 2
}

func (fixedTranslator) ContextCodestream(contextType int, contextIndex int, remapping [2]int, member int) int {
	return 10*contextIndex + member
}

func TestContextCodestreams(t *testing.T) {
	w := &window.Window{}
	w.Init()
	assert.Nil(t, contextCodestreams(fixedTranslator{}, w), "no contexts")

	w.Contexts.AddRange(1, 2)
	assert.Equal(t, []int{10, 11, 20, 21}, contextCodestreams(fixedTranslator{}, w))
	assert.Nil(t, contextCodestreams(NullTranslator{}, w), "null translator")
}

func sizedWindow(size int) *window.Window {
	w := &window.Window{}
	w.Init()
	w.Resolution = window.Coords{X: size, Y: size}
	return w
}

func TestPreemptivePost(t *testing.T) {
	items := []struct {
		title       string
		channel     bool
		preemptive  bool
		pending     int  // left in the posting queue
		cancelled   bool // in-flight request of the posting queue
		dispatching bool // the new request may go out at once
	}{
		{"queued without channel", false, false, 2, false, false},
		{"preemptive without channel", false, true, 1, true, false},
		{"queued on a channel", true, false, 2, false, false},
		{"preemptive on a channel", true, true, 1, false, true},
	}

	for _, item := range items {
		c := New()
		c.active = true
		c.interactive = true
		c.useChannels = item.channel

		c.Lock()
		own := c.newQueueLocked()
		other := c.newQueueLocked()
		c.Unlock()

		cancelled := false
		sent := &request{
			cancel: func() { cancelled = true },
		}
		sent.window.CopyFrom(sizedWindow(16), false)
		own.inFlight = []*request{sent}

		waiting := &request{}
		waiting.window.CopyFrom(sizedWindow(32), false)
		own.pending = []*request{waiting}

		untouched := &request{}
		untouched.window.CopyFrom(sizedWindow(32), false)
		other.pending = []*request{untouched}
		if item.channel {
			own.channel = &protocol.Channel{ID: "own"}
			other.channel = &protocol.Channel{ID: "other"}
		}

		err := c.PostWindow(sizedWindow(64), own.id, item.preemptive, nil)
		require.NoError(t, err, "%s: post", item.title)

		require.Equal(t, item.pending, len(own.pending), "%s: pending", item.title)
		posted := own.pending[len(own.pending)-1]
		assert.Equal(t, 64, posted.window.Resolution.X, "%s: posted window last", item.title)
		assert.Equal(t, item.preemptive, posted.preemptive, "%s: preemptive flag", item.title)
		if !item.preemptive {
			assert.True(t, waiting == own.pending[0], "%s: earlier window kept", item.title)
		}

		assert.Equal(t, item.cancelled, cancelled, "%s: in-flight cancelled", item.title)
		assert.Equal(t, 1, len(own.inFlight), "%s: in-flight kept until its response ends", item.title)

		require.Equal(t, 1, len(other.pending), "%s: other queue", item.title)
		assert.True(t, untouched == other.pending[0], "%s: other queue untouched", item.title)

		if item.preemptive {
			c.Lock()
			assert.Equal(t, item.dispatching, c.dispatchable(own), "%s: dispatchable", item.title)
			c.Unlock()
		}
	}
}

func TestWindowChangeIsNotCompletion(t *testing.T) {
	r := &request{
		replied:  true,
		finished: true,
		reason:   message.WindowChange,
	}
	assert.Equal(t, StatusReplyReceived, r.status(), "cut short by a later window")

	r.reason = message.WindowDone
	assert.Equal(t, StatusReplyReceived|StatusWindowCompleted, r.status(), "served in full")
}
