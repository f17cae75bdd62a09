// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package model - cache model instructions sent with a JPIP request
//
// A client tells the server what it already holds with "model"
// statements.  They are recorded here unprocessed and only resolved
// when the server reaches the content they describe, which lets open
// ranges of codestreams or tiles be handled cheaply.
//
// Atomic instructions name exactly one data-bin of one codestream and
// are discarded once they have been matched; all others persist.
//
// A Model is not safe for concurrent use.
package model
