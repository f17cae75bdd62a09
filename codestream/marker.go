// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package codestream

// marker codes
const (
	markerSOC uint16 = 0xff4f
	markerSOT uint16 = 0xff90
	markerSOD uint16 = 0xff93
	markerEOC uint16 = 0xffd9
	markerSIZ uint16 = 0xff51
	markerCOD uint16 = 0xff52
	markerCOC uint16 = 0xff53
	markerPLT uint16 = 0xff58
	markerPPM uint16 = 0xff60
	markerPPT uint16 = 0xff61
)

// coding style flags
const (
	styleUserPrecincts = 0x01
)

// fixed segment lengths
const (
	lengthSOT = 10
	lengthSIZ = 38 // without component records
)
