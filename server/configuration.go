// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package server

import (
	"github.com/bitmark-inc/jpipd/fault"
)

// defaults for unset configuration values
const (
	DefaultPath           = "/jpip"
	DefaultMaxChunkSize   = 4096
	DefaultSessionTimeout = 300
	minimumChunkSize      = 256
	minConnectionCount    = 1
)

// Configuration - server section of the configuration file
type Configuration struct {
	Listen             []string `gluamapper:"listen" json:"listen"`
	MaximumConnections uint64   `gluamapper:"maximum_connections" json:"maximum_connections"`
	Certificate        string   `gluamapper:"certificate" json:"certificate"`
	PrivateKey         string   `gluamapper:"private_key" json:"private_key"`
	Path               string   `gluamapper:"path" json:"path"`
	MaxChunkSize       int      `gluamapper:"max_chunk_size" json:"max_chunk_size"`
	SessionTimeout     int      `gluamapper:"session_timeout" json:"session_timeout"`
	Bandwidth          int64    `gluamapper:"bandwidth" json:"bandwidth"`
	IgnoreRelevance    bool     `gluamapper:"ignore_relevance" json:"ignore_relevance"`
}

// fill in defaults and check limits
func (c *Configuration) validate() error {
	if "" == c.Path {
		c.Path = DefaultPath
	}
	if 0 == c.MaxChunkSize {
		c.MaxChunkSize = DefaultMaxChunkSize
	}
	if 0 == c.SessionTimeout {
		c.SessionTimeout = DefaultSessionTimeout
	}
	if c.MaxChunkSize < minimumChunkSize {
		return fault.ChunkTooSmall
	}
	if c.MaximumConnections < minConnectionCount {
		return fault.MissingParameters
	}
	if ("" == c.Certificate) != ("" == c.PrivateKey) {
		return fault.MissingParameters
	}
	if c.Bandwidth < 0 || c.SessionTimeout < 0 {
		return fault.MissingParameters
	}
	return nil
}
