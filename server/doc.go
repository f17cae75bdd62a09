// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package server - JPIP over HTTP(S)
//
// requests name a target, an archive directory below the configured
// targets directory, and are answered with a jpp-stream body produced
// by a serve.Server.  Requests with cnew=http open a channel whose
// serve.Server and cache model persist until the channel is closed or
// idles out; all other requests are stateless.
package server
