// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"time"

	cache "github.com/patrickmn/go-cache"
)

// Cache - records written by an open batch, visible to reads before
// the batch is committed
type Cache interface {
	Get(string) ([]byte, bool)
	Deleted(string) bool
	Set(int, string, []byte)
	Clear()
}

const (
	dbPut = iota
	dbDelete
)

const (
	defaultCleanup    = 1 * time.Minute
	defaultExpiration = 10 * time.Minute
)

type dbCache struct {
	cache *cache.Cache
}

type cacheData struct {
	op    int
	value []byte
}

func newCache() Cache {
	return &dbCache{
		cache: cache.New(defaultExpiration, defaultCleanup),
	}
}

// Get - second result is false for a missing or deleted key
func (c *dbCache) Get(key string) ([]byte, bool) {
	obj, found := c.cache.Get(key)
	if !found {
		return nil, false
	}
	data := obj.(cacheData)
	if dbDelete == data.op {
		return nil, false
	}
	return data.value, true
}

// Deleted - true if the key was deleted in the open batch
func (c *dbCache) Deleted(key string) bool {
	obj, found := c.cache.Get(key)
	return found && dbDelete == obj.(cacheData).op
}

func (c *dbCache) Set(op int, key string, value []byte) {
	c.cache.Set(key, cacheData{
		op:    op,
		value: value,
	}, cache.NoExpiration)
}

func (c *dbCache) Clear() {
	c.cache.Flush()
}
