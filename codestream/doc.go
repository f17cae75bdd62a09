// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package codestream - split a JPEG2000 codestream into data-bins
//
// Only the marker segments needed to locate data are decoded: SIZ,
// COD and COC give the geometry, SOT, PLT and SOD locate tile
// headers and packets.  Packet boundaries come from PLT markers so a
// codestream without them cannot be split into precincts.  Entropy
// coded data is never interpreted.
package codestream
