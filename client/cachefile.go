// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package client

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/bitmark-inc/jpipd/fault"
)

// CacheFileExtension - suffix of saved cache files
const CacheFileExtension = ".kjc"

// cacheFilePath - file holding the cache of a target
func cacheFilePath(dir string, target string, subtarget string) string {
	name := target
	if "" != subtarget {
		name += "_" + subtarget
	}
	name = strings.Map(func(r rune) rune {
		switch {
		case 'a' <= r && r <= 'z', 'A' <= r && r <= 'Z', '0' <= r && r <= '9':
			return r
		case '.' == r, '-' == r:
			return r
		default:
			return '_'
		}
	}, name)
	return filepath.Join(dir, name+CacheFileExtension)
}

// loadCacheFileLocked - fill the cache from the cache file
//
// a file that cannot be used is deleted and the cache starts empty
func (c *Client) loadCacheFileLocked() {
	f, err := os.Open(c.cacheFile)
	if nil != err {
		c.log.Debugf("no cache file: %q", c.cacheFile)
		return
	}
	targetID, err := c.cache.Load(f)
	f.Close()

	if nil == err && "" != c.targetID && targetID != c.targetID {
		err = fault.CacheFileVersion
	}
	if nil != err {
		c.log.Warnf("cache file: %q  error: %s  deleted", c.cacheFile, err)
		c.cache.Close()
		os.Remove(c.cacheFile)
		return
	}
	c.targetID = targetID
	c.log.Infof("cache file: %q  target id: %q  data-bins: %d", c.cacheFile, targetID, c.cache.NumDatabins())
}

// saveCacheFileLocked - write the cache to the cache file, replacing
// it only once the new file is complete
func (c *Client) saveCacheFileLocked() {
	if "" == c.cacheFile || "" == c.targetID {
		return
	}
	temporary := c.cacheFile + ".new"
	f, err := os.OpenFile(temporary, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if nil != err {
		c.log.Errorf("cache file: %q  error: %s", temporary, err)
		return
	}
	err = c.cache.Save(f, c.targetID)
	if closeErr := f.Close(); nil == err {
		err = closeErr
	}
	if nil == err {
		err = os.Rename(temporary, c.cacheFile)
	}
	if nil != err {
		c.log.Errorf("cache file: %q  error: %s", c.cacheFile, err)
		os.Remove(temporary)
		return
	}
	c.log.Infof("cache file: %q  saved", c.cacheFile)
}
