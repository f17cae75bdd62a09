// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package client

import (
	"net"
	"strconv"
	"strings"

	"github.com/bitmark-inc/jpipd/fault"
)

// URL - the parts of a JPIP URL
//
// Host has no brackets, Port is empty if not given.  Host, Resource
// and Query have %XX sequences decoded, RawQuery is as given
type URL struct {
	Scheme   string
	Host     string
	Port     string
	Resource string
	Query    string
	RawQuery string
}

// Server - host and port suitable for Connect
func (u *URL) Server() string {
	if "" == u.Port {
		if strings.Contains(u.Host, ":") {
			return "[" + u.Host + "]"
		}
		return u.Host
	}
	return net.JoinHostPort(u.Host, u.Port)
}

// Request - resource and query suitable for Connect
func (u *URL) Request() string {
	if "" == u.RawQuery {
		return u.Resource
	}
	return u.Resource + "?" + u.RawQuery
}

// CheckCompatibleURL - split a jpip:// or http:// URL
//
// the form is <scheme>://<host>[:<port>]/<resource>[?<query>] where
// host is a name, a dotted IPv4 address or a bracketed IPv4 or IPv6
// address.  With requireResource an empty resource is an error
func CheckCompatibleURL(s string, requireResource bool) (*URL, error) {
	n := strings.Index(s, "://")
	if n <= 0 {
		return nil, fault.IncompatibleURL
	}
	scheme := strings.ToLower(s[:n])
	if "jpip" != scheme && "http" != scheme {
		return nil, fault.IncompatibleURL
	}
	s = s[n+3:]

	u := &URL{
		Scheme: scheme,
	}

	authority := s
	rest := ""
	if n := strings.IndexByte(s, '/'); n >= 0 {
		authority = s[:n]
		rest = s[n+1:]
	} else if requireResource {
		return nil, fault.IncompatibleURL
	}

	if strings.HasPrefix(authority, "[") {
		end := strings.IndexByte(authority, ']')
		if end < 0 {
			return nil, fault.IncompatibleURL
		}
		host := hexHexDecode(authority[1:end])
		if nil == net.ParseIP(host) {
			return nil, fault.IncompatibleURL
		}
		u.Host = host
		authority = authority[end+1:]
		if "" != authority && !strings.HasPrefix(authority, ":") {
			return nil, fault.IncompatibleURL
		}
	} else {
		host := authority
		if n := strings.IndexByte(authority, ':'); n >= 0 {
			host = authority[:n]
			authority = authority[n:]
		} else {
			authority = ""
		}
		u.Host = hexHexDecode(host)
	}
	if "" == u.Host {
		return nil, fault.IncompatibleURL
	}

	if strings.HasPrefix(authority, ":") {
		port := authority[1:]
		p, err := strconv.Atoi(port)
		if nil != err || p <= 0 || p > 65535 {
			return nil, fault.IncompatibleURL
		}
		u.Port = port
	}

	if n := strings.IndexByte(rest, '?'); n >= 0 {
		u.RawQuery = rest[n+1:]
		rest = rest[:n]
	}
	u.Resource = hexHexDecode(rest)
	u.Query = hexHexDecode(u.RawQuery)
	if requireResource && "" == u.Resource {
		return nil, fault.IncompatibleURL
	}
	return u, nil
}

// decode %XX sequences, leaving malformed ones as they are
func hexHexDecode(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	b := make([]byte, 0, len(s))
	for i := 0; i < len(s); i += 1 {
		if '%' == s[i] && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]) {
			b = append(b, unhex(s[i+1])<<4|unhex(s[i+2]))
			i += 2
			continue
		}
		b = append(b, s[i])
	}
	return string(b)
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}
