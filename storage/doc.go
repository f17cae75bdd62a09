// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package storage - on-disk data-bin archive
//
// An archive is a LevelDB database holding one JPIP target split into
// data-bin contents.  It implements target.Target so the serve package
// can deliver it without touching the original file.
//
// Each table is defined by a prefix byte obtained from the prefix tag
// in the struct defining the available tables.
//
// Notes:
// 1. each separate pool has a single byte prefix
// 2. ++         = concatenation of byte data
// 3. stream     = codestream index as big endian uint32 (4 bytes)
// 4. tile       = tile index as big endian uint32 (4 bytes)
// 5. component  = big endian uint16 (2 bytes)
// 6. resolution = single byte, 0 is the lowest resolution
// 7. index      = precinct raster index as big endian uint64 (8 bytes)
// 8. bin        = meta data-bin id as big endian uint64 (8 bytes)
// 9. group      = group index within a meta data-bin as big endian uint32
//
// Information:
//
//   I ++ "name"                      - archive name
//   I ++ "id"                        - target id: hex of SHA3-256 over name and main headers
//
// Codestreams:
//
//   S ++ stream                      - structure summary
//                                      data: JSON
//   M ++ stream                      - main header data-bin
//   H ++ stream ++ tile              - tile header data-bin (absent if empty)
//   P ++ stream ++ tile ++ component ++ resolution ++ index
//                                    - precinct packets
//                                      data: uvarint layers ++ uvarint(layer end)... ++ packet bytes
//
// Metadata:
//
//   G ++ bin                         - meta data-bin groups, placeholders refer to other bins
//                                      data: JSON
//   D ++ bin ++ group                - contents of one group
//
// Regions of interest:
//
//   O ++ count                       - named region: stream, name, frame size and region
//                                      data: JSON
package storage
