// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package message - JPIP response message headers
//
// all integers are Variable-length Byte-Aligned Segments (VBAS): the
// top bit of every byte except the last is set and the remaining 7
// bits are concatenated most significant first
//
// a message header is
//
//   Bin-ID [, Class] [, CSn], Msg-Offset, Msg-Length [, Aux]
//
// where the first byte of Bin-ID carries two bits saying whether
// Class and CSn are present, one bit for "last byte of data-bin" and
// the first four bits of the in-class identifier.  Omitted Class and
// CSn values are inherited from the previous header, which is why
// encoding and decoding thread a Coupling value from one header to
// the next.
//
// a header whose first byte is zero is an End-of-Response message
package message
