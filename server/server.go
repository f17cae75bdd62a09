// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package server

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/bitmark-inc/logger"
	"github.com/google/uuid"
	cache "github.com/patrickmn/go-cache"

	"github.com/bitmark-inc/jpipd/counter"
	"github.com/bitmark-inc/jpipd/fault"
)

const (
	readTimeout     = 10 * time.Second
	shutdownTimeout = 5 * time.Second
	maxHeaderBytes  = 1 << 16
)

// Server - JPIP listener state
type Server struct {
	log           *logger.L
	configuration Configuration
	targets       *Targets
	tlsConfig     *tls.Config
	sessions      *cache.Cache
	mux           *http.ServeMux

	connections counter.Counter
	requests    counter.Counter
	transferred counter.Counter
}

// New - prepare a listener, the TLS key pair is loaded if configured
func New(configuration *Configuration, targets *Targets) (*Server, error) {
	log := logger.New("server")

	c := *configuration
	if err := c.validate(); nil != err {
		log.Errorf("invalid configuration: %s", err)
		return nil, err
	}

	s := &Server{
		log:           log,
		configuration: c,
		targets:       targets,
	}

	if "" != c.Certificate {
		keyPair, err := tls.LoadX509KeyPair(c.Certificate, c.PrivateKey)
		if nil != err {
			log.Errorf("certificate: %q  error: %s", c.Certificate, err)
			return nil, err
		}
		s.tlsConfig = &tls.Config{
			Certificates: []tls.Certificate{keyPair},
			NextProtos:   []string{"http/1.1"},
		}
	}

	timeout := time.Duration(c.SessionTimeout) * time.Second
	s.sessions = cache.New(timeout, timeout/2)
	s.sessions.OnEvicted(func(id string, item interface{}) {
		s.log.Infof("channel: %s  closed", id)
		item.(*session).close(s.targets)
	})

	s.mux = http.NewServeMux()
	s.mux.HandleFunc(c.Path, s.handle)
	return s, nil
}

// Handler - the HTTP handler serving JPIP requests
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Channels - number of open channels
func (s *Server) Channels() int {
	return s.sessions.ItemCount()
}

// Transferred - body bytes sent
func (s *Server) Transferred() uint64 {
	return s.transferred.Uint64()
}

// CloseChannel - drop a channel, false if it does not exist
func (s *Server) CloseChannel(id string) bool {
	if _, ok := s.sessions.Get(id); !ok {
		return false
	}
	s.sessions.Delete(id)
	return true
}

// Run - background process running the listeners until shutdown
func (s *Server) Run(args interface{}, shutdown <-chan struct{}) {
	servers := []*http.Server{}
	for _, listen := range s.configuration.Listen {
		if strings.HasPrefix(listen, "*:") {
			// "*:PORT" listens on both tcp4 and tcp6
			listen = "[::]" + listen[1:]
		}
		hs := &http.Server{
			Addr:           listen,
			Handler:        s.mux,
			ReadTimeout:    readTimeout,
			MaxHeaderBytes: maxHeaderBytes,
			TLSConfig:      s.tlsConfig,
		}
		ln, err := net.Listen("tcp", listen)
		if nil != err {
			s.log.Errorf("listen: %q  error: %s", listen, err)
			continue
		}
		if nil != s.tlsConfig {
			ln = tls.NewListener(ln, s.tlsConfig)
		}
		s.log.Infof("listening on: %q  TLS: %t", listen, nil != s.tlsConfig)
		servers = append(servers, hs)
		go func(ln net.Listener) {
			err := hs.Serve(ln)
			if http.ErrServerClosed != err {
				s.log.Errorf("serve: %q  error: %s", hs.Addr, err)
			}
		}(ln)
	}

	<-shutdown

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, hs := range servers {
		_ = hs.Shutdown(ctx)
	}
	s.Close()
	s.log.Infof("stopped  requests: %d  transferred: %d bytes", s.requests.Uint64(), s.transferred.Uint64())
}

// Close - drop every channel
func (s *Server) Close() {
	for id := range s.sessions.Items() {
		s.sessions.Delete(id)
	}
}

// create a channel id
func newChannelID() string {
	return strings.Replace(uuid.New().String(), "-", "", -1)
}

// errors to HTTP status
func statusOf(err error) int {
	switch {
	case fault.IsErrNotFound(err):
		return http.StatusNotFound
	case fault.IsErrInvalid(err), fault.IsErrLength(err):
		return http.StatusBadRequest
	case fault.RateLimiting == err:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
