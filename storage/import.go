// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"encoding/hex"
	"encoding/json"

	"golang.org/x/crypto/sha3"

	"github.com/bitmark-inc/jpipd/codestream"
	"github.com/bitmark-inc/jpipd/fault"
	"github.com/bitmark-inc/jpipd/target"
	"github.com/bitmark-inc/jpipd/window"
)

// SetName - name the archive, changes the target id
func (a *Archive) SetName(name string) error {
	return a.update(func() error {
		a.pool.Info.Put(nameKey, []byte(name))
		return nil
	})
}

// ImportFile - parse a raw codestream and store it as stream
func (a *Archive) ImportFile(stream int, data []byte) error {
	c, err := codestream.Parse(data)
	if nil != err {
		return err
	}
	return a.ImportCodestream(stream, c)
}

// ImportCodestream - store every data-bin of a parsed codestream,
// replacing any previous codestream with the same index
func (a *Archive) ImportCodestream(stream int, c *codestream.Codestream) error {
	if stream < 0 {
		return fault.InvalidCodestream
	}
	record, err := packStructure(c.Structure())
	if nil != err {
		return err
	}

	err = a.update(func() error {
		a.deleteCodestream(stream)

		a.pool.Structures.Put(streamKey(stream), record)
		a.pool.MainHeaders.Put(streamKey(stream), c.MainHeader())
		for t := 0; t < c.Structure().NumTiles(); t += 1 {
			if header := c.TileHeader(t); 0 != len(header) {
				a.pool.TileHeaders.Put(tileKey(stream, t), header)
			}
		}
		for _, k := range c.Keys() {
			p := c.Precinct(k.Tile, k.Component, k.Resolution, k.Index)
			a.pool.Precincts.Put(precinctKey(stream, k.Tile, k.Component, k.Resolution, k.Index), packPrecinct(p))
		}
		return nil
	})
	if nil != err {
		return err
	}

	a.mutex.Lock()
	a.structures[stream] = c.Structure()
	a.mutex.Unlock()

	a.log.Infof("imported stream: %d  precincts: %d", stream, len(c.Keys()))
	return nil
}

// delete all records of a stream in the open batch
func (a *Archive) deleteCodestream(stream int) {
	pools := []*PoolHandle{a.pool.TileHeaders, a.pool.Precincts}
	for _, p := range pools {
		p.NewFetchCursor().Prefix(streamKey(stream)).Map(func(key []byte, value []byte) error {
			p.Delete(key)
			return nil
		})
	}
	a.pool.Structures.Delete(streamKey(stream))
	a.pool.MainHeaders.Delete(streamKey(stream))
}

// ImportMetadata - replace the metadata tree
//
// contents maps groups to their bytes; a group's length is taken from
// its contents when present
func (a *Archive) ImportMetadata(root *target.Metabin, contents map[*target.Metagroup][]byte) error {
	if nil == root || 0 != root.ID {
		return fault.InvalidMetatree
	}

	bins := []*target.Metabin{}
	root.Walk(func(bin *target.Metabin, depth int) bool {
		bins = append(bins, bin)
		return true
	})

	err := a.update(func() error {
		for _, p := range []*PoolHandle{a.pool.Metabins, a.pool.Metadata} {
			p.NewFetchCursor().Map(func(key []byte, value []byte) error {
				p.Delete(key)
				return nil
			})
		}
		for _, bin := range bins {
			for i, g := range bin.Groups {
				if data, ok := contents[g]; ok {
					g.Length = len(data)
					a.pool.Metadata.Put(metadataKey(bin.ID, i), data)
				}
			}
			record, err := packMetabin(bin)
			if nil != err {
				return err
			}
			a.pool.Metabins.Put(binKey(bin.ID), record)
		}
		return nil
	})
	if nil != err {
		return err
	}

	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.loadMetatree()
}

// AddROI - store a named region of interest, an empty name is the
// default region of the codestream
func (a *Archive) AddROI(stream int, name string, resolution window.Coords, r window.Dims) error {
	record, err := json.Marshal(region{
		Stream:     stream,
		Name:       name,
		Resolution: resolution,
		Region:     r,
	})
	if nil != err {
		return err
	}

	a.mutex.RLock()
	n := len(a.regions)
	a.mutex.RUnlock()

	err = a.update(func() error {
		a.pool.Regions.Put(countKey(n), record)
		return nil
	})
	if nil != err {
		return err
	}

	a.mutex.Lock()
	a.regions = append(a.regions, region{
		Stream:     stream,
		Name:       name,
		Resolution: resolution,
		Region:     r,
	})
	a.mutex.Unlock()
	return nil
}

// run f in a batch then refresh the target id
func (a *Archive) update(f func() error) error {
	if a.readOnly {
		return fault.ReadOnlyArchive
	}
	err := a.access.Begin()
	if nil != err {
		return err
	}

	err = f()
	if nil != err {
		a.access.Abort()
		return err
	}
	err = a.access.Commit()
	if nil != err {
		return err
	}

	err = a.access.Begin()
	if nil != err {
		return err
	}
	a.pool.Info.Put(idKey, []byte(a.targetID()))
	return a.access.Commit()
}

// hex of SHA3-256 over the name and every committed main header
func (a *Archive) targetID() string {
	h := sha3.New256()
	h.Write(a.pool.Info.Get(nameKey))

	a.pool.MainHeaders.NewFetchCursor().Map(func(key []byte, value []byte) error {
		h.Write(key)
		h.Write(value)
		return nil
	})
	return hex.EncodeToString(h.Sum(nil)[:16])
}
