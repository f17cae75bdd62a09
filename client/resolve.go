// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package client

import (
	"context"
	"net"
	"time"

	"github.com/bitmark-inc/logger"
	"github.com/miekg/dns"

	"github.com/bitmark-inc/jpipd/fault"
)

const (
	resolvConf      = "/etc/resolv.conf"
	resolveTimeout  = 5 * time.Second
	maxNameServers  = 3
	defaultHTTPPort = "80"
)

// resolver - host name lookup through the configured name servers,
// falling back to the system resolver for names they do not know
type resolver struct {
	log     *logger.L
	servers []string
	timeout time.Duration
}

func newResolver(log *logger.L, configFile string) *resolver {
	r := &resolver{
		log:     log,
		timeout: resolveTimeout,
	}
	conf, err := dns.ClientConfigFromFile(configFile)
	if nil != err {
		log.Warnf("reading %s error: %s", configFile, err)
		return r
	}
	servers := conf.Servers
	if len(servers) > maxNameServers {
		servers = servers[:maxNameServers]
	}
	for _, s := range servers {
		r.servers = append(r.servers, net.JoinHostPort(s, conf.Port))
	}
	if 0 != conf.Timeout {
		r.timeout = time.Duration(conf.Timeout) * time.Second
	}
	return r
}

// lookup - addresses of a host, literal addresses are returned as is
func (r *resolver) lookup(ctx context.Context, host string) ([]string, error) {
	if nil != net.ParseIP(host) {
		return []string{host}, nil
	}

	name := dns.Fqdn(host)
	addresses := []string{}
	for _, server := range r.servers {
		for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
			if nil != ctx.Err() {
				return nil, ctx.Err()
			}
			c := dns.Client{
				Timeout: r.timeout,
			}
			msg := dns.Msg{}
			msg.SetQuestion(name, qtype)

			resp, _, err := c.Exchange(&msg, server)
			if nil != err {
				r.log.Debugf("exchange with dns server %q error: %s", server, err)
				continue
			}
			for _, rr := range resp.Answer {
				switch a := rr.(type) {
				case *dns.A:
					addresses = append(addresses, a.A.String())
				case *dns.AAAA:
					addresses = append(addresses, a.AAAA.String())
				}
			}
		}
		if 0 != len(addresses) {
			return addresses, nil
		}
	}

	// hosts file and other local sources
	found, err := net.DefaultResolver.LookupHost(ctx, host)
	if nil != err || 0 == len(found) {
		r.log.Warnf("host: %q  not found", host)
		return nil, fault.HostNotFound
	}
	return found, nil
}

// dial - connect to the first reachable address of a host
func (r *resolver) dial(ctx context.Context, network string, address string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(address)
	if nil != err {
		host = address
		port = defaultHTTPPort
	}
	addresses, err := r.lookup(ctx, host)
	if nil != err {
		return nil, err
	}
	d := net.Dialer{
		Timeout: r.timeout,
	}
	for _, a := range addresses {
		conn, err := d.DialContext(ctx, network, net.JoinHostPort(a, port))
		if nil == err {
			return conn, nil
		}
		r.log.Debugf("dial: %s  error: %s", a, err)
		if nil != ctx.Err() {
			return nil, ctx.Err()
		}
	}
	return nil, fault.HostNotFound
}
