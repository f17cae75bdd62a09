// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package zmqutil

import (
	"strings"
	"time"

	"github.com/bitmark-inc/logger"
	zmq "github.com/pebbe/zmq4"
)

const (
	heartbeatInterval = 15 * time.Second
	heartbeatTimeout  = 60 * time.Second
	heartbeatTTL      = 120 * time.Second
	lingerTime        = 0
)

// Endpoint - ZeroMQ endpoint for an address
//
// "*:PORT" and "host:port" become tcp endpoints, anything with a
// scheme is used as is
func Endpoint(address string) (string, bool) {
	if strings.Contains(address, "://") {
		return address, strings.Contains(address, "[")
	}
	if strings.HasPrefix(address, "*:") {
		return "tcp://" + address, false
	}
	return "tcp://" + address, strings.HasPrefix(address, "[")
}

// NewBind - one socket bound to every listen address
//
// with a key pair the socket is a CURVE server accepting any client
// from the allowed addresses, without one traffic is unencrypted
func NewBind(log *logger.L, socketType zmq.Type, zapDomain string, privateKey []byte, publicKey []byte, listen []string, allow []string) (*zmq.Socket, error) {
	socket, err := zmq.NewSocket(socketType)
	if nil != err {
		return nil, err
	}

	if 0 != len(privateKey) {
		err = StartAuthentication(zapDomain, allow)
		if nil != err {
			socket.Close()
			return nil, err
		}
		socket.SetCurveServer(1)
		socket.SetCurveSecretkey(string(privateKey))
		socket.SetZapDomain(zapDomain)
		socket.SetIdentity(string(publicKey))
	}

	socket.SetLinger(lingerTime)
	socket.SetHeartbeatIvl(heartbeatInterval)
	socket.SetHeartbeatTimeout(heartbeatTimeout)
	socket.SetHeartbeatTtl(heartbeatTTL)

	for i, address := range listen {
		bindTo, v6 := Endpoint(address)
		if v6 {
			socket.SetIpv6(true)
		}
		err = socket.Bind(bindTo)
		if nil != err {
			log.Errorf("cannot bind[%d]: %q  error: %s", i, bindTo, err)
			socket.Close()
			return nil, err
		}
		log.Infof("bind[%d]: %q  IPv6: %t", i, bindTo, v6)
	}
	return socket, nil
}
