// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package fault_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bitmark-inc/jpipd/fault"
)

// every error class must be distinguishable by its predicate
func TestErrorClasses(t *testing.T) {
	errorList := []struct {
		err      error
		exists   bool
		invalid  bool
		length   bool
		notFound bool
		process  bool
		record   bool
	}{
		{fault.AlreadyInitialised, true, false, false, false, false, false},
		{fault.CacheAttached, false, true, false, false, false, false},
		{fault.InvalidQueue, false, true, false, false, false, false},
		{fault.VBASTruncated, false, false, true, false, false, false},
		{fault.ExtraDataTooLong, false, false, true, false, false, false},
		{fault.ContextNotFound, false, false, false, true, false, false},
		{fault.TargetNotFound, false, false, false, true, false, false},
		{fault.TransportClosed, false, false, false, false, true, false},
		{fault.RateLimiting, false, false, false, false, true, false},
		{fault.CorruptCacheFile, false, false, false, false, false, true},
		{fault.CacheFileVersion, false, false, false, false, false, true},
	}

	for i, e := range errorList {
		err := e.err
		assert.Equal(t, e.exists, fault.IsErrExists(err), "%d: exists: %v", i, err)
		assert.Equal(t, e.invalid, fault.IsErrInvalid(err), "%d: invalid: %v", i, err)
		assert.Equal(t, e.length, fault.IsErrLength(err), "%d: length: %v", i, err)
		assert.Equal(t, e.notFound, fault.IsErrNotFound(err), "%d: not found: %v", i, err)
		assert.Equal(t, e.process, fault.IsErrProcess(err), "%d: process: %v", i, err)
		assert.Equal(t, e.record, fault.IsErrRecord(err), "%d: record: %v", i, err)
	}
}

func TestErrorText(t *testing.T) {
	assert.Equal(t, "corrupt cache file", fault.CorruptCacheFile.Error())
	assert.Equal(t, "VBAS truncated", fault.VBASTruncated.Error())
}

func TestPanicIfError(t *testing.T) {
	assert.NotPanics(t, func() { fault.PanicIfError("nothing", nil) })
	assert.Panics(t, func() { fault.PanicIfError("something", fault.InvalidCount) })
}
