// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package counter_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bitmark-inc/jpipd/counter"
)

func TestCounter(t *testing.T) {
	var c counter.Counter

	assert.True(t, c.IsZero(), "counter is not zero at start")

	for i := 0; i < 5; i += 1 {
		c.Increment()
	}
	assert.Equal(t, uint64(5), c.Uint64(), "after incrementing")

	c.Decrement()
	assert.Equal(t, uint64(4), c.Uint64(), "after decrementing")

	assert.Equal(t, uint64(104), c.Add(100), "after add")
	assert.Equal(t, uint64(104), c.Reset(), "reset returns old value")
	assert.True(t, c.IsZero(), "counter did not reset")

	c.Decrement()
	assert.Equal(t, ^uint64(0), c.Uint64(), "counter did not underflow")
}

func TestMax(t *testing.T) {
	var c counter.Counter

	assert.Equal(t, uint64(10), c.Max(10))
	assert.Equal(t, uint64(10), c.Max(3))
	assert.Equal(t, uint64(11), c.Max(11))
}

func TestConcurrentAdd(t *testing.T) {
	var c counter.Counter
	var wg sync.WaitGroup

	for i := 0; i < 8; i += 1 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j += 1 {
				c.Add(2)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(16000), c.Uint64())
}
