// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package zmqutil

import (
	"sync"

	zmq "github.com/pebbe/zmq4"
)

// the ZAP handler is process wide
var authentication struct {
	sync.Mutex
	started bool
}

// StartAuthentication - run the ZAP handler and accept CURVE clients
// with any key in a domain
//
// a non-empty allow list restricts the domain to those addresses
func StartAuthentication(zapDomain string, allow []string) error {
	authentication.Lock()
	defer authentication.Unlock()

	if !authentication.started {
		zmq.AuthSetVerbose(false)
		if err := zmq.AuthStart(); nil != err {
			return err
		}
		authentication.started = true
	}
	zmq.AuthCurveAdd(zapDomain, zmq.CURVE_ALLOW_ANY)
	if 0 != len(allow) {
		zmq.AuthAllow(zapDomain, allow...)
	}
	return nil
}

// StopAuthentication - stop the ZAP handler, sockets using it must be
// closed first
func StopAuthentication() {
	authentication.Lock()
	defer authentication.Unlock()

	if authentication.started {
		zmq.AuthStop()
		authentication.started = false
	}
}
