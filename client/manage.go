// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package client

import (
	"context"
	"io"
	"io/ioutil"
	"net/http"
	"time"

	"github.com/bitmark-inc/jpipd/databin"
	"github.com/bitmark-inc/jpipd/fault"
	"github.com/bitmark-inc/jpipd/message"
	"github.com/bitmark-inc/jpipd/protocol"
	"github.com/bitmark-inc/jpipd/window"
)

const (
	pollInterval  = 50 * time.Millisecond
	readSize      = 16384
	maxModelItems = 512

	// an old response may still be arriving while its replacement
	// waits at the server
	maxInFlight = 2
)

// Run - the management goroutine
//
// sends pending requests and closes queues whose disconnect timeout
// has expired
func (c *Client) Run(args interface{}, shutdown <-chan struct{}) {
	c.log.Info("starting…")
	ticker := time.NewTicker(pollInterval)
loop:
	for {
		select {
		case <-shutdown:
			break loop
		case <-c.wake:
		case <-ticker.C:
		}
		c.schedule()
	}
	ticker.Stop()
	c.log.Info("stopped")
}

func (c *Client) schedule() {
	c.Lock()
	defer c.Unlock()

	now := time.Now()
	for _, q := range c.queues {
		if !q.alive {
			continue
		}
		if q.closing && now.After(q.deadline) {
			c.log.Warnf("queue: %d  disconnect timed out", q.id)
			c.killQueueLocked(q, nil)
			continue
		}
		for c.dispatchable(q) {
			c.dispatchLocked(q)
		}
	}
}

func (c *Client) dispatchable(q *queue) bool {
	if 0 == len(q.pending) || q.opening {
		return false
	}
	if 0 == len(q.inFlight) {
		return true
	}
	return q.pending[0].preemptive && nil != q.channel && len(q.inFlight) < maxInFlight
}

// send the oldest pending request of a queue
func (c *Client) dispatchLocked(q *queue) {
	r := q.pending[0]
	q.pending = q.pending[1:]

	req := c.requestLocked(q, r)
	if nil == q.channel && 0 != len(req.NewChannel) {
		q.opening = true
	}

	path := c.path
	if nil != q.channel && "" != q.channel.Path {
		path = q.channel.Path
	}
	target := "http://" + c.server + "/" + path
	if query := req.Encode(); "" != query {
		target += "?" + query
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	q.inFlight = append(q.inFlight, r)

	c.log.Debugf("queue: %d  request: %s", q.id, target)
	c.transfers.Add(1)
	go c.transfer(ctx, cancel, q, r, target)
}

// requestLocked - the JPIP request for a posted window
func (c *Client) requestLocked(q *queue, r *request) *protocol.Request {
	req := &protocol.Request{}
	req.Init()

	if r.closing {
		req.ChannelID = q.channel.ID
		req.Close = []string{q.channel.ID}
		return req
	}

	if !c.interactive {
		req.Target = c.base.Target
		req.Subtarget = c.base.Subtarget
		req.TargetID = c.targetID
		req.Type = c.base.Type
		req.Align = c.base.Align
		req.Length = c.base.Length
		req.Model = c.base.Model
		req.Prefs = c.base.Prefs
		req.Window.CopyFrom(&c.base.Window, false)
		return req
	}

	if nil != q.channel {
		req.ChannelID = q.channel.ID
	} else {
		req.Target = c.base.Target
		req.Subtarget = c.base.Subtarget
		req.TargetID = c.targetID
		if c.useChannels {
			req.NewChannel = []string{protocol.TransportHTTP}
		}
		// a new channel or a stateless request knows nothing of the cache
		req.Model = c.modelLocked(&r.window)
	}
	req.Window.CopyFrom(&r.window, false)
	req.Prefs = r.prefs
	return req
}

// modelLocked - model field describing the cached data-bins, most
// recently used first and limited in number
func (c *Client) modelLocked(w *window.Window) string {
	items := []protocol.ModelItem{}

	add := func(class databin.Class, stream int64, id int64) bool {
		if len(items) >= maxModelItems {
			return false
		}
		length, complete := c.cache.DatabinLength(class, stream, id)
		item := protocol.ModelItem{
			Class:  class,
			Stream: int(stream),
			ID:     id,
			Limit:  int(length),
		}
		if complete {
			item.Limit = -1
		} else if 0 == length {
			return true
		}
		items = append(items, item)
		return true
	}

	for id := c.cache.NextMRUDatabin(databin.Meta, 0, -1, false); id >= 0; id = c.cache.NextMRUDatabin(databin.Meta, 0, id, false) {
		if !add(databin.Meta, 0, id) {
			break
		}
	}

	wanted := map[int64]bool{}
	for _, s := range contextCodestreams(c.translator, w) {
		wanted[int64(s)] = true
	}
	for _, stream := range c.cache.Codestreams() {
		if 0 != len(wanted) && !wanted[stream] {
			continue
		}
		for _, class := range []databin.Class{databin.MainHeader, databin.TileHeader, databin.Precinct} {
			for id := c.cache.NextMRUDatabin(class, stream, -1, false); id >= 0; id = c.cache.NextMRUDatabin(class, stream, id, false) {
				if !add(class, stream, id) {
					break
				}
			}
		}
	}
	return protocol.WriteModel(items)
}

// transfer - one HTTP exchange
func (c *Client) transfer(ctx context.Context, cancel context.CancelFunc, q *queue, r *request, target string) {
	defer c.transfers.Done()
	defer cancel()

	err := c.exchange(ctx, q, r, target)

	c.Lock()
	q.finish(r)
	if nil == q.channel {
		q.opening = false
	}
	switch {
	case nil != err && nil == ctx.Err():
		c.killQueueLocked(q, err)
	case nil != err:
		c.log.Debugf("queue: %d  request abandoned", q.id)
	case r.closing:
		q.channel = nil
		c.killQueueLocked(q, nil)
	case !c.interactive:
		c.killQueueLocked(q, nil)
	case q.closing && !q.busy():
		c.killQueueLocked(q, nil)
	}
	c.idle.Broadcast()
	c.Unlock()

	c.signal()
	c.notify()
}

// exchange - send a request and read its response into the cache
func (c *Client) exchange(ctx context.Context, q *queue, r *request, target string) error {
	req, err := http.NewRequest(http.MethodGet, target, nil)
	if nil != err {
		return err
	}
	resp, err := c.http.Do(req.WithContext(ctx))
	if nil != err {
		return err
	}
	defer resp.Body.Close()

	if http.StatusOK != resp.StatusCode {
		c.log.Warnf("queue: %d  status: %s", q.id, resp.Status)
		return fault.InvalidServerStatus
	}
	if r.closing {
		_, err := io.Copy(ioutil.Discard, resp.Body)
		return err
	}

	response := protocol.Response{}
	if err := response.Read(resp.Header); nil != err {
		return err
	}

	c.Lock()
	if "" != response.TargetID && response.TargetID != c.targetID {
		if "" != c.targetID {
			c.log.Warnf("target id: %q replaced by: %q  cache discarded", c.targetID, response.TargetID)
			c.cache.Close()
		}
		c.targetID = response.TargetID
	}
	if nil != response.Channel {
		q.channel = response.Channel
		q.opening = false
		c.log.Infof("queue: %d  channel: %s", q.id, response.Channel.ID)
	}
	if response.Modified {
		r.served.CopyFrom(&response.Window, false)
	} else {
		r.served.CopyFrom(&r.window, false)
	}
	r.replied = true
	c.Unlock()
	c.notify()

	return c.receive(q, r, resp.Body)
}

// receive - decode a response body into the cache
func (c *Client) receive(q *queue, r *request, body io.Reader) error {
	d := decoder{}
	buffer := make([]byte, readSize)
	for {
		n, err := body.Read(buffer)
		if n > 0 {
			d.write(buffer[:n])
			added, derr := c.store(&d)

			c.Lock()
			q.received += int64(n)
			r.received += int64(n)
			if d.ended {
				r.finished = true
				r.reason = d.reason
			}
			translator := c.translator
			c.Unlock()
			c.received.Add(uint64(n))

			if added {
				translator.Update()
			}
			if nil != derr {
				return derr
			}
			c.notify()
			if d.ended {
				return nil
			}
		}
		if io.EOF == err {
			return io.ErrUnexpectedEOF
		}
		if nil != err {
			return err
		}
	}
}

// store - add the complete messages received so far to the cache
func (c *Client) store(d *decoder) (bool, error) {
	added := false
	for {
		h, data, err := d.next()
		if nil != err {
			return added, err
		}
		if nil == h {
			return added, nil
		}
		err = c.cache.AddToDatabin(h.Class, h.Stream, h.ID, data, h.Offset, h.Final, true, true)
		if nil != err {
			return added, err
		}
		added = true
	}
}

// decoder - splits a response body into messages
type decoder struct {
	buffer   []byte
	coupling message.Coupling
	ended    bool
	reason   message.Reason
}

func (d *decoder) write(data []byte) {
	d.buffer = append(d.buffer, data...)
}

// next - the next complete message, nil with no error when more data
// is needed or the response has ended
func (d *decoder) next() (*message.Header, []byte, error) {
	if d.ended {
		return nil, nil, nil
	}
	h, n, next, err := message.ReadHeader(d.buffer, d.coupling)
	if message.ErrEndOfResponse == err {
		if len(d.buffer) < 3 {
			return nil, nil, nil
		}
		reason, _, used, err := message.ReadEOR(d.buffer)
		if fault.VBASTruncated == err {
			return nil, nil, nil
		}
		if nil != err {
			return nil, nil, err
		}
		d.buffer = d.buffer[used:]
		d.reason = reason
		d.ended = true
		return nil, nil, nil
	}
	if fault.VBASTruncated == err {
		return nil, nil, nil
	}
	if nil != err {
		return nil, nil, err
	}
	if int64(len(d.buffer)-n) < h.Length {
		return nil, nil, nil
	}
	end := n + int(h.Length)
	data := d.buffer[n:end]
	d.buffer = d.buffer[end:]
	d.coupling = next
	return h, data, nil
}
