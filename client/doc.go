// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package client - JPIP client
//
// a Client owns a data-bin cache that it fills from one server.
// Windows of interest are posted to request queues; each queue maps
// to a JPIP channel, or to a series of stateless requests when no
// channel transport is requested.  A management goroutine issues the
// requests and decodes the responses into the cache, so application
// goroutines only ever post windows and read the cache.
//
// a notifier, if installed, is called whenever new data or a state
// change is available.  It must not call back into the Client.
package client
