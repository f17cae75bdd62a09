// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package client

import (
	"context"
	"time"

	"github.com/bitmark-inc/jpipd/message"
	"github.com/bitmark-inc/jpipd/protocol"
	"github.com/bitmark-inc/jpipd/window"
)

// window status flags
const (
	StatusReplyReceived   = 1 << iota // the server has answered
	StatusWindowCompleted             // everything in the window has arrived
)

// one posted window
type request struct {
	window     window.Window
	prefs      window.Prefs
	preemptive bool
	closing    bool // closes the channel, no window

	// filled in by the transfer
	served   window.Window
	replied  bool
	finished bool
	reason   message.Reason
	received int64
	cancel   context.CancelFunc
}

func (r *request) status() int {
	flags := 0
	if r.replied {
		flags |= StatusReplyReceived
	}
	if r.finished && (message.WindowDone == r.reason || message.ImageDone == r.reason) {
		flags |= StatusWindowCompleted
	}
	return flags
}

// queue - a sequence of requests on one channel
type queue struct {
	id      int
	channel *protocol.Channel

	// the channel has been asked for and not yet granted
	opening bool

	pending  []*request // posted, not yet sent
	inFlight []*request // sent, oldest first
	last     *request   // most recently finished

	alive    bool
	closing  bool
	deadline time.Time

	received int64
	err      error
}

// busy - requests are outstanding
func (q *queue) busy() bool {
	return 0 != len(q.pending) || 0 != len(q.inFlight)
}

// remove a finished request
func (q *queue) finish(r *request) {
	for i, f := range q.inFlight {
		if f == r {
			q.inFlight = append(q.inFlight[:i], q.inFlight[i+1:]...)
			break
		}
	}
	if !r.closing {
		q.last = r
	}
}

// latest - the newest request with a reply, nil if none
func (q *queue) latest() *request {
	for i := len(q.inFlight) - 1; i >= 0; i -= 1 {
		if q.inFlight[i].replied {
			return q.inFlight[i]
		}
	}
	return q.last
}

// posted - the newest window posted, nil if none
func (q *queue) posted() *request {
	if n := len(q.pending); n > 0 {
		return q.pending[n-1]
	}
	if n := len(q.inFlight); n > 0 {
		return q.inFlight[n-1]
	}
	return q.last
}

// cancel every transfer and drop every request
func (q *queue) abort() {
	for _, r := range q.inFlight {
		if nil != r.cancel {
			r.cancel()
		}
	}
	q.pending = nil
}
