// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package cache - sparse data-bin cache for a JPIP client
//
// Data-bins arrive as byte ranges in any order, possibly overlapping
// and possibly repeated.  Each data-bin keeps a sorted list of
// disjoint segments, so holes are allowed and redundant writes are
// absorbed.  The nominal content of a data-bin never changes, so an
// overlapping write may keep either copy of the bytes.
//
// Data-bins are ordered by recent use within each (class, codestream)
// partition.  The cache itself never discards anything: an external
// policy walks the lists with NextLRUDatabin/NextMRUDatabin and decides
// what to do, typically under AcquireLock.
//
// No query reports an error for missing data: lengths of zero, -1 ids
// and false completeness are the normal state of an incrementally
// filled cache.
package cache
