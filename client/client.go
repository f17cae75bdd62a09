// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package client

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/jpipd/background"
	"github.com/bitmark-inc/jpipd/cache"
	"github.com/bitmark-inc/jpipd/counter"
	"github.com/bitmark-inc/jpipd/fault"
	"github.com/bitmark-inc/jpipd/protocol"
	"github.com/bitmark-inc/jpipd/window"
)

// Mode - how Connect chooses between interactive and one-time use
type Mode int

// connection modes
const (
	ModeAuto Mode = iota
	ModeInteractive
	ModeNonInteractive
)

// Notifier - told whenever data arrives or the state changes
type Notifier interface {
	Notify()
}

// NotifierFunc - a function as a Notifier
type NotifierFunc func()

// Notify - call the function
func (f NotifierFunc) Notify() {
	f()
}

// Client - a JPIP client and the cache it fills
type Client struct {
	sync.Mutex

	log   *logger.L
	cache *cache.Cache
	idle  *sync.Cond

	active      bool
	interactive bool
	useChannels bool
	server      string
	path        string
	base        protocol.Request

	targetID   string
	cacheFile  string
	queues     map[int]*queue
	nextQueue  int
	notifier   Notifier
	translator Translator

	resolver  *resolver
	transport *http.Transport
	http      *http.Client
	wake      chan struct{}
	processes *background.T
	transfers sync.WaitGroup

	received counter.Counter
}

// New - an inactive client with an empty cache
func New() *Client {
	c := &Client{
		log:        logger.New("client"),
		cache:      cache.New(),
		queues:     make(map[int]*queue),
		translator: NullTranslator{},
	}
	c.idle = sync.NewCond(&c.Mutex)
	return c
}

// Cache - the cache filled by the client
func (c *Client) Cache() *cache.Cache {
	return c.cache
}

// InstallNotifier - replace the notifier, nil removes it
func (c *Client) InstallNotifier(n Notifier) {
	c.Lock()
	c.notifier = n
	c.Unlock()
}

// InstallTranslator - replace the context translator, nil restores
// the null translator
func (c *Client) InstallTranslator(t Translator) {
	if nil == t {
		t = NullTranslator{}
	}
	t.Init(c.cache)
	c.Lock()
	old := c.translator
	c.translator = t
	c.Unlock()
	old.Close()
}

// Connect - start talking to a server
//
// server is <host>[:<port>], proxy is empty or <host>[:<port>] and
// requestPath is <resource>?<query> where the query names the target.
// channelTransport "http" opens a JPIP channel, empty asks for
// stateless requests.  With a cache directory, cached data for the
// target is loaded now and saved by Close.  Returns the id of the
// first request queue
func (c *Client) Connect(server string, proxy string, requestPath string, channelTransport string, cacheDir string, mode Mode) (int, error) {
	c.Lock()
	defer c.Unlock()

	if c.active {
		return -1, fault.ClientAlreadyActive
	}
	if "" == server {
		return -1, fault.MissingParameters
	}

	path := requestPath
	query := ""
	if n := strings.IndexByte(requestPath, '?'); n >= 0 {
		path = requestPath[:n]
		query = requestPath[n+1:]
	}
	base := protocol.Request{}
	if err := base.Parse(query); nil != err {
		return -1, err
	}
	if "" == base.Target {
		return -1, fault.MissingParameters
	}

	switch channelTransport {
	case "", "none":
		c.useChannels = false
	case protocol.TransportHTTP:
		c.useChannels = true
	default:
		return -1, fault.UnsupportedTransport
	}

	switch mode {
	case ModeInteractive:
		c.interactive = true
	case ModeNonInteractive:
		c.interactive = false
	default:
		c.interactive = base.Window.IsEmpty() && "" == base.Model && base.Length < 0
	}

	c.transport = &http.Transport{
		DialContext:         c.resolverLocked().dial,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	}
	if "" != proxy {
		u, err := url.Parse("http://" + proxy)
		if nil != err {
			return -1, fault.IncompatibleURL
		}
		c.transport.Proxy = http.ProxyURL(u)
	}
	c.http = &http.Client{
		Transport: c.transport,
	}

	c.server = server
	c.path = strings.TrimPrefix(path, "/")
	c.base = base
	c.targetID = base.TargetID
	c.queues = make(map[int]*queue)
	c.nextQueue = 0
	c.wake = make(chan struct{}, 1)
	c.active = true

	if c.interactive && "" != cacheDir {
		c.cacheFile = cacheFilePath(cacheDir, base.Target, base.Subtarget)
		c.loadCacheFileLocked()
	}

	q := c.newQueueLocked()
	if !c.interactive {
		// the query is sent once as given
		r := &request{}
		r.window.CopyFrom(&base.Window, false)
		r.prefs = base.Prefs
		q.pending = append(q.pending, r)
	}

	c.log.Infof("connect: server: %q  target: %q  interactive: %t  channels: %t", server, base.Target, c.interactive, c.useChannels)
	c.processes = background.Start(background.Processes{c}, nil)
	c.signal()
	return q.id, nil
}

// resolution is only set up once
func (c *Client) resolverLocked() *resolver {
	if nil == c.resolver {
		c.resolver = newResolver(c.log, resolvConf)
	}
	return c.resolver
}

func (c *Client) newQueueLocked() *queue {
	q := &queue{
		id:    c.nextQueue,
		alive: true,
	}
	c.nextQueue += 1
	c.queues[q.id] = q
	return q
}

// AddQueue - another request queue, with its own channel when
// channels are in use
func (c *Client) AddQueue() (int, error) {
	c.Lock()
	defer c.Unlock()

	if !c.active {
		return -1, fault.ClientNotActive
	}
	if !c.interactive {
		return -1, fault.InvalidQueue
	}
	q := c.newQueueLocked()
	c.log.Debugf("add queue: %d", q.id)
	return q.id, nil
}

// PostWindow - ask for a window on a queue
//
// a preemptive post replaces anything not yet sent and asks the
// server to cut short the response in progress; otherwise the window
// is served after the ones before it.  Posting the window that was
// last posted does nothing
func (c *Client) PostWindow(w *window.Window, queueID int, preemptive bool, prefs *window.Prefs) error {
	c.Lock()
	defer c.Unlock()

	if !c.active {
		return fault.ClientNotActive
	}
	if !c.interactive {
		return fault.InvalidQueue
	}
	q, ok := c.queues[queueID]
	if !ok {
		return fault.InvalidQueue
	}
	if !q.alive || q.closing {
		return fault.QueueNotAlive
	}

	if last := q.posted(); nil != last && !last.closing && last.window.Equals(w) && nil == prefs {
		return nil
	}

	r := &request{
		preemptive: preemptive,
	}
	r.window.CopyFrom(w, false)
	r.prefs.Init()
	if nil != prefs {
		r.prefs = *prefs
	}

	if preemptive {
		q.pending = nil
		if !c.useChannels {
			// without a channel the only way to stop a response
			for _, f := range q.inFlight {
				if nil != f.cancel {
					f.cancel()
				}
			}
		}
	}
	q.pending = append(q.pending, r)
	c.signal()
	return nil
}

// Disconnect - close request queues, all of them for a negative id
//
// a queue with a channel sends a close request, and is closed by force
// if that has not completed within the timeout.  With wait the call
// returns once the queues are closed.  keepTransport leaves idle
// connections open for another Connect
func (c *Client) Disconnect(keepTransport bool, timeout time.Duration, queueID int, wait bool) error {
	c.Lock()
	defer c.Unlock()

	if !c.active {
		return fault.ClientNotActive
	}
	targets := []*queue{}
	for id, q := range c.queues {
		if queueID < 0 || id == queueID {
			targets = append(targets, q)
		}
	}
	if 0 == len(targets) {
		return fault.InvalidQueue
	}

	deadline := time.Now().Add(timeout)
	for _, q := range targets {
		if !q.alive {
			continue
		}
		c.closeQueueLocked(q, deadline)
	}
	c.signal()

	if wait {
		for !allClosed(targets) {
			c.idle.Wait()
		}
	}
	if !keepTransport && nil != c.transport {
		c.transport.CloseIdleConnections()
	}
	return nil
}

func (c *Client) closeQueueLocked(q *queue, deadline time.Time) {
	q.closing = true
	q.deadline = deadline
	q.pending = nil
	if nil != q.channel {
		q.pending = append(q.pending, &request{
			preemptive: true,
			closing:    true,
		})
	} else if q.opening {
		// nothing to close until the channel is granted
		q.abort()
	}
	if !q.busy() {
		c.killQueueLocked(q, nil)
	}
}

// killQueueLocked - the queue is no longer alive
func (c *Client) killQueueLocked(q *queue, err error) {
	if !q.alive {
		return
	}
	q.abort()
	q.alive = false
	if nil != err {
		q.err = err
		c.log.Warnf("queue: %d  closed: %s", q.id, err)
	} else {
		c.log.Debugf("queue: %d  closed", q.id)
	}
	c.idle.Broadcast()
}

func allClosed(queues []*queue) bool {
	for _, q := range queues {
		if q.alive {
			return false
		}
	}
	return true
}

// Close - close every queue at once and stop the management goroutine
//
// cached data stays available and is written to the cache file when
// one was named on Connect
func (c *Client) Close() error {
	c.Lock()
	if !c.active {
		c.Unlock()
		return fault.ClientNotActive
	}
	now := time.Now()
	for _, q := range c.queues {
		c.killQueueLocked(q, nil)
		q.deadline = now
	}
	processes := c.processes
	c.processes = nil
	c.Unlock()

	processes.Stop()
	c.transfers.Wait()

	c.Lock()
	defer c.Unlock()

	c.saveCacheFileLocked()
	c.transport.CloseIdleConnections()
	c.active = false
	c.log.Infof("closed  received: %d bytes", c.received.Uint64())
	return nil
}

// IsActive - between Connect and Close
func (c *Client) IsActive() bool {
	c.Lock()
	defer c.Unlock()
	return c.active
}

// IsInteractive - windows may be posted
func (c *Client) IsInteractive() bool {
	c.Lock()
	defer c.Unlock()
	return c.active && c.interactive
}

// IsOneTimeRequest - the request given to Connect is all that will be
// sent
func (c *Client) IsOneTimeRequest() bool {
	c.Lock()
	defer c.Unlock()
	return c.active && !c.interactive
}

// IsAlive - the queue can still be used, any queue for a negative id
func (c *Client) IsAlive(queueID int) bool {
	c.Lock()
	defer c.Unlock()
	for id, q := range c.queues {
		if (queueID < 0 || id == queueID) && q.alive {
			return true
		}
	}
	return false
}

// IsIdle - an alive queue with nothing outstanding
func (c *Client) IsIdle(queueID int) bool {
	c.Lock()
	defer c.Unlock()
	q, ok := c.queues[queueID]
	return ok && q.alive && !q.busy()
}

// TargetName - the target requested on Connect
func (c *Client) TargetName() string {
	c.Lock()
	defer c.Unlock()
	if "" == c.base.Subtarget {
		return c.base.Target
	}
	return c.base.Target + "(" + c.base.Subtarget + ")"
}

// TargetID - the target id reported by the server or cache file
func (c *Client) TargetID() string {
	c.Lock()
	defer c.Unlock()
	return c.targetID
}

// Received - body bytes received on all queues
func (c *Client) Received() uint64 {
	return c.received.Uint64()
}

// WindowInProgress - the window the server is serving, or last
// served, on a queue as possibly modified by the server
//
// returns the status flags and false if nothing has been answered
func (c *Client) WindowInProgress(w *window.Window, queueID int) (int, bool) {
	c.Lock()
	defer c.Unlock()

	q, ok := c.queues[queueID]
	if !ok {
		return 0, false
	}
	r := q.latest()
	if nil == r {
		return 0, false
	}
	w.CopyFrom(&r.served, false)
	return r.status(), true
}

// Status - a description of the state of a queue
func (c *Client) Status(queueID int) string {
	c.Lock()
	defer c.Unlock()

	if !c.active {
		return "Not connected"
	}
	q, ok := c.queues[queueID]
	if !ok {
		return "No such queue"
	}
	switch {
	case !q.alive && nil != q.err:
		return "Disconnected: " + q.err.Error()
	case !q.alive:
		return "Disconnected"
	case q.closing:
		return "Closing"
	case q.opening:
		return "Opening channel"
	case 0 != len(q.inFlight) && q.inFlight[0].replied:
		return "Receiving data"
	case 0 != len(q.inFlight):
		return "Waiting for reply"
	case 0 != len(q.pending):
		return "Request pending"
	default:
		return "Idle"
	}
}

// wake the management goroutine
func (c *Client) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// notify - call the notifier, the lock must not be held
func (c *Client) notify() {
	c.Lock()
	n := c.notifier
	c.Unlock()
	if nil != n {
		n.Notify()
	}
}
