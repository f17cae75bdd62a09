// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package protocol - JPIP request fields and response headers
//
// a Request is the parsed form of a JPIP query string.  It converts
// to and from a window of interest and a cache model, so that the
// client and the server share one encoding of every field.
//
// Response holds the JPIP-xxx header values a server returns when it
// modifies a window or opens a channel.
package protocol
