// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package server

import (
	"sync"

	"golang.org/x/time/rate"

	"github.com/bitmark-inc/jpipd/counter"
	"github.com/bitmark-inc/jpipd/serve"
	"github.com/bitmark-inc/jpipd/storage"
	"github.com/bitmark-inc/jpipd/window"
)

// session - a JPIP channel, or a single stateless request
type session struct {
	sync.Mutex

	id        string
	name      string
	stateless bool
	archive   *storage.Archive
	serve     *serve.Server
	limiter   *rate.Limiter
	closed    bool

	// requests waiting for the lock, a response in progress ends
	// early when this is non-zero
	waiting counter.Counter
}

// create the response generator for a target
func (s *Server) newSession(id string, name string, archive *storage.Archive, stateless bool) (*session, error) {
	srv := &serve.Server{}
	err := srv.Initialize(archive, s.configuration.MaxChunkSize, 0, s.configuration.IgnoreRelevance, nil)
	if nil != err {
		return nil, err
	}
	return &session{
		id:        id,
		name:      name,
		stateless: stateless,
		archive:   archive,
		serve:     srv,
		limiter:   newLimiter(s.configuration.Bandwidth, nil, s.configuration.MaxChunkSize),
	}, nil
}

// apply a new bandwidth preference
func (sess *session) setPrefs(s *Server, prefs *window.Prefs) {
	if 0 != (prefs.Preferred|prefs.Required)&window.PrefMaxBandwidth {
		sess.limiter = newLimiter(s.configuration.Bandwidth, prefs, s.configuration.MaxChunkSize)
	}
}

// release everything, ending a response in progress early
func (sess *session) close(targets *Targets) {
	sess.waiting.Increment()
	sess.Lock()
	sess.waiting.Decrement()
	defer sess.Unlock()

	if sess.closed {
		return
	}
	sess.closed = true
	sess.serve.Destroy()
	targets.Release(sess.archive)
}
