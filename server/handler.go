// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package server

import (
	"io"
	"io/ioutil"
	"net/http"

	cache "github.com/patrickmn/go-cache"

	"github.com/bitmark-inc/jpipd/fault"
	"github.com/bitmark-inc/jpipd/message"
	"github.com/bitmark-inc/jpipd/model"
	"github.com/bitmark-inc/jpipd/protocol"
	"github.com/bitmark-inc/jpipd/publish"
	"github.com/bitmark-inc/jpipd/serve"
	"github.com/bitmark-inc/jpipd/window"
)

const (
	maxRequestBody = 1 << 16
	unlimitedBytes = 1 << 30
	chunksPerCall  = 8
)

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.requests.Increment()
	if s.connections.Increment() > s.configuration.MaximumConnections {
		s.connections.Decrement()
		s.log.Warnf("connection limit: %d reached", s.configuration.MaximumConnections)
		http.Error(w, "connection limit reached", http.StatusServiceUnavailable)
		return
	}
	defer s.connections.Decrement()

	query := r.URL.RawQuery
	switch r.Method {
	case http.MethodGet:
	case http.MethodPost:
		body, err := ioutil.ReadAll(io.LimitReader(r.Body, maxRequestBody))
		if nil != err {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if 0 != len(body) {
			if "" != query {
				query += "&"
			}
			query += string(body)
		}
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req := protocol.Request{}
	if err := req.Parse(query); nil != err {
		s.log.Debugf("query: %q  error: %s", query, err)
		http.Error(w, err.Error(), statusOf(err))
		return
	}
	if "" != req.Type && protocol.TypeJPPStream != req.Type {
		http.Error(w, "unsupported return type", http.StatusNotImplemented)
		return
	}
	for _, id := range req.Close {
		if s.CloseChannel(id) {
			s.log.Debugf("cclose: %s", id)
		}
	}
	if "" != req.ChannelID && contains(req.Close, req.ChannelID) {
		w.WriteHeader(http.StatusOK)
		return
	}

	sess, created, err := s.session(&req)
	if nil != err {
		s.log.Debugf("session: %s", err)
		http.Error(w, err.Error(), statusOf(err))
		return
	}
	if nil == sess {
		w.WriteHeader(http.StatusOK)
		return
	}
	if sess.stateless {
		defer sess.close(s.targets)
	}

	sess.waiting.Increment()
	sess.Lock()
	sess.waiting.Decrement()
	defer sess.Unlock()
	if sess.closed {
		http.Error(w, fault.ChannelNotFound.Error(), http.StatusNotFound)
		return
	}
	s.respond(w, &req, sess, created)
}

// find or create the session of a request, nil for a request that
// only closes channels
func (s *Server) session(req *protocol.Request) (*session, bool, error) {
	if "" != req.ChannelID {
		item, ok := s.sessions.Get(req.ChannelID)
		if !ok {
			return nil, false, fault.ChannelNotFound
		}
		sess := item.(*session)

		// restart the idle timer
		s.sessions.Set(sess.id, sess, cache.DefaultExpiration)
		return sess, false, nil
	}

	if "" == req.Target {
		if 0 != len(req.Close) {
			return nil, false, nil
		}
		return nil, false, fault.MissingParameters
	}

	stateless := req.IsStateless()
	if !stateless && !contains(req.NewChannel, protocol.TransportHTTP) {
		return nil, false, fault.InvalidRequestField
	}

	archive, err := s.targets.Acquire(req.Target)
	if nil != err {
		return nil, false, err
	}

	id := ""
	if !stateless {
		id = newChannelID()
	}
	sess, err := s.newSession(id, req.Target, archive, stateless)
	if nil != err {
		s.targets.Release(archive)
		return nil, false, err
	}
	if !stateless {
		s.sessions.Set(id, sess, cache.DefaultExpiration)
		s.log.Infof("channel: %s  target: %q  opened", id, req.Target)
		publish.SendChannel(publish.Channel{
			Channel: id,
			Target:  req.Target,
			Open:    true,
		})
	}
	return sess, true, nil
}

// set the window and stream the response body
func (s *Server) respond(w http.ResponseWriter, req *protocol.Request, sess *session, created bool) {
	tid := sess.archive.ID()
	mismatch := "" != req.TargetID && tid != req.TargetID

	// a model for some other target is meaningless
	m := &model.Model{}
	if mismatch {
		m.Init(req.IsStateless())
	} else if err := req.CacheModel(m); nil != err {
		http.Error(w, err.Error(), statusOf(err))
		return
	}
	err := sess.serve.SetWindow(&req.Window, &req.Prefs, m, sess.stateless, 0)
	if nil != err {
		http.Error(w, err.Error(), statusOf(err))
		return
	}
	sess.setPrefs(s, &req.Prefs)

	served := window.Window{}
	active := sess.serve.Window(&served, 0)

	resp := protocol.Response{}
	resp.Init()
	if created || mismatch {
		resp.TargetID = tid
	}
	if created && !sess.stateless {
		resp.Channel = &protocol.Channel{
			ID:        sess.id,
			Path:      s.configuration.Path[1:],
			Transport: protocol.TransportHTTP,
		}
	}
	if !req.Window.IsEmpty() && !served.Equals(&req.Window) {
		resp.Modified = true
		resp.Window.CopyFrom(&served, false)
	}
	resp.Write(w.Header())
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)

	budget := req.Length
	if budget < 0 {
		budget = unlimitedBytes
	}
	suggested := chunksPerCall * s.configuration.MaxChunkSize
	reason := message.WindowDone
	total := 0

	if 0 == req.Length {
		reason = message.ByteLimitReached
		active = false
	}

	for active {
		chunks, remaining := sess.serve.GenerateIncrements(suggested, budget, req.Align, false, false, 0)
		n, err := s.write(w, sess, chunks)
		total += n
		if nil != err {
			s.log.Debugf("channel: %q  write error: %s", sess.id, err)
			sess.serve.ReleaseChunks(chunks, true)
			return
		}
		sess.serve.ReleaseChunks(chunks, false)
		if nil != flusher {
			flusher.Flush()
		}

		if req.Length >= 0 {
			budget = remaining
		}
		active = sess.serve.Window(&served, 0)
		if active && 0 == remaining {
			reason = message.ByteLimitReached
			break
		}
		if active && !sess.waiting.IsZero() {
			reason = message.WindowChange
			break
		}
	}
	if !active && reason == message.WindowDone && sess.serve.ImageDone() {
		reason = message.ImageDone
	}

	eor := message.AppendEOR(nil, reason, nil)
	if _, err := w.Write(eor); nil != err {
		s.log.Debugf("channel: %q  write EOR error: %s", sess.id, err)
	}

	s.log.Debugf("channel: %q  target: %q  sent: %d bytes  reason: %s", sess.id, sess.name, total, reason)
	publish.SendServed(publish.Served{
		Channel: sess.id,
		Target:  sess.name,
		Request: req.Encode(),
		Bytes:   total,
		Reason:  reason.String(),
	})
}

// write chunk bodies at the channel rate, marking everything not
// written as abandoned on error
func (s *Server) write(w http.ResponseWriter, sess *session, chunks []*serve.Chunk) (int, error) {
	total := 0
	for i, c := range chunks {
		body := c.Body()
		if 0 == len(body) {
			continue
		}
		err := limitN(sess.limiter, len(body))
		if nil == err {
			_, err = w.Write(body)
		}
		if nil != err {
			for _, a := range chunks[i:] {
				a.Abandoned = true
			}
			return total, err
		}
		total += len(body)
		s.transferred.Add(uint64(len(body)))
	}
	return total, nil
}

func contains(list []string, item string) bool {
	for _, s := range list {
		if s == item {
			return true
		}
	}
	return false
}
