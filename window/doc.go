// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package window - JPIP windows of interest
//
// A Window names the resolution, region, components, codestreams,
// codestream contexts, quality layers and metadata a client wants.
// Index lists are RangeSets of SampledRanges; an empty set means no
// restriction.  Prefs holds the JPIP "pref" request state.
//
// The text forms follow the JPIP request field syntax, without any
// hex-hex encoding.
package window
