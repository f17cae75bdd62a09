// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package serve generates JPIP response data for a target
//
// A Server holds any number of window contexts, all sharing one model
// of the client's cache.  SetWindow gives a context a new window of
// interest together with the cache-model instructions that arrived
// with the request; GenerateIncrements then produces chunks of
// messages in priority order until a byte budget is used up.
//
// Every chunk remembers which data-bins it advanced so that
// ReleaseChunks can roll the cache model back for chunks that were
// never delivered.
package serve
