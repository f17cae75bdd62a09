// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"encoding/binary"
	"encoding/json"
	"sort"

	"github.com/bitmark-inc/jpipd/fault"
	"github.com/bitmark-inc/jpipd/target"
	"github.com/bitmark-inc/jpipd/window"
)

// read everything needed to answer target queries without the database
func (a *Archive) load() error {
	err := a.pool.Structures.NewFetchCursor().Map(func(key []byte, value []byte) error {
		if 4 != len(key) {
			return fault.CorruptArchiveRecord
		}
		s, err := unpackStructure(value)
		if nil != err {
			return err
		}
		a.structures[int(binary.BigEndian.Uint32(key))] = s
		return nil
	})
	if nil != err {
		return err
	}

	regions := []region{}
	err = a.pool.Regions.NewFetchCursor().Map(func(key []byte, value []byte) error {
		r := region{}
		if err := json.Unmarshal(value, &r); nil != err {
			return err
		}
		regions = append(regions, r)
		return nil
	})
	if nil != err {
		return err
	}
	a.regions = regions

	return a.loadMetatree()
}

// link the stored meta data-bins into a tree rooted at bin 0
func (a *Archive) loadMetatree() error {
	bins := make(map[int64]*target.Metabin)
	links := make(map[int64][]int64)

	err := a.pool.Metabins.NewFetchCursor().Map(func(key []byte, value []byte) error {
		if 8 != len(key) {
			return fault.CorruptArchiveRecord
		}
		id := int64(binary.BigEndian.Uint64(key))
		bin, l, err := unpackMetabin(id, value)
		if nil != err {
			return err
		}
		bins[id] = bin
		links[id] = l
		return nil
	})
	if nil != err {
		return err
	}

	a.metatree = nil
	a.groups = make(map[*target.Metagroup]groupKey)

	root, ok := bins[0]
	if !ok {
		return nil
	}
	for id, bin := range bins {
		for i, g := range bin.Groups {
			a.groups[g] = groupKey{bin: id, group: i}
			link := links[id][i]
			if link < 0 {
				continue
			}
			child, ok := bins[link]
			if !ok {
				a.log.Errorf("meta data-bin: %d  group: %d  links to missing bin: %d", id, i, link)
				return fault.CorruptArchiveRecord
			}
			g.Placeholder = child
		}
	}
	a.metatree = root
	return nil
}

// ID - target id, empty until something is imported
func (a *Archive) ID() string {
	return string(a.pool.Info.Get(idKey))
}

// Name - the name given at import
func (a *Archive) Name() string {
	return string(a.pool.Info.Get(nameKey))
}

// Codestreams - ordered indices of all codestreams
func (a *Archive) Codestreams() []int {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	return a.codestreams()
}

func (a *Archive) codestreams() []int {
	streams := make([]int, 0, len(a.structures))
	for s := range a.structures {
		streams = append(streams, s)
	}
	sort.Ints(streams)
	return streams
}

// CodestreamRanges - every codestream for a negative layer; each
// codestream is its own compositing layer
func (a *Archive) CodestreamRanges(layer int) []target.Range {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	if layer >= 0 {
		if _, ok := a.structures[layer]; !ok {
			return nil
		}
		return []target.Range{{From: layer, To: layer}}
	}

	ranges := []target.Range{}
	for _, s := range a.codestreams() {
		n := len(ranges)
		if n > 0 && ranges[n-1].To+1 == s {
			ranges[n-1].To = s
		} else {
			ranges = append(ranges, target.Range{From: s, To: s})
		}
	}
	if 0 == len(ranges) {
		return nil
	}
	return ranges
}

// Structure - summary of a codestream
func (a *Archive) Structure(stream int) (*target.Structure, bool) {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	s, ok := a.structures[stream]
	return s, ok
}

// Attach - open a codestream for serving
func (a *Archive) Attach(stream int, token target.Token) (target.Codestream, bool) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	s, ok := a.structures[stream]
	if !ok || nil == a.db {
		return nil, false
	}
	a.attached[stream] += 1
	return &storedCodestream{
		archive:   a,
		stream:    stream,
		structure: s,
	}, true
}

// Detach - finished with a codestream, any lock still held by token
// on it is released
func (a *Archive) Detach(stream int, token target.Token) {
	a.mutex.Lock()
	if a.attached[stream] > 0 {
		a.attached[stream] -= 1
	}
	a.mutex.Unlock()

	if owner, ok := a.locks.Owner(stream); ok && owner == token {
		a.log.Warnf("detach: stream: %d  released orphan lock", stream)
		a.locks.Release([]int{stream}, token)
	}
}

// Lock - block until token holds every listed codestream
func (a *Archive) Lock(streams []int, token target.Token) {
	a.locks.Lock(streams, token)
}

// Release - release locks taken by Lock
func (a *Archive) Release(streams []int, token target.Token) {
	a.locks.Release(streams, token)
}

// NumContextMembers - a compositing layer has exactly one member
func (a *Archive) NumContextMembers(contextType int, contextIndex int, remapping *[2]int) int {
	if window.ContextJPXL != contextType {
		return 0
	}
	if _, ok := a.Structure(contextIndex); !ok {
		return 0
	}
	return 1
}

func (a *Archive) ContextCodestream(contextType int, contextIndex int, remapping [2]int, member int) int {
	if 0 != member || 0 == a.NumContextMembers(contextType, contextIndex, &remapping) {
		return -1
	}
	return contextIndex
}

func (a *Archive) ContextComponents(contextType int, contextIndex int, remapping [2]int, member int) []int {
	if -1 == a.ContextCodestream(contextType, contextIndex, remapping, member) {
		return nil
	}
	s, _ := a.Structure(contextIndex)
	components := make([]int, s.NumComponents())
	for i := range components {
		components[i] = i
	}
	return components
}

// RemapContext - layers cover their codestream exactly so geometry is
// unchanged
func (a *Archive) RemapContext(contextType int, contextIndex int, remapping [2]int, member int, resolution *window.Coords, region *window.Dims) bool {
	return -1 != a.ContextCodestream(contextType, contextIndex, remapping, member)
}

// Metatree - stored tree, or a single empty group if there is none
func (a *Archive) Metatree() *target.Metabin {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	if nil == a.metatree {
		return a.Null.Metatree()
	}
	return a.metatree
}

// ReadMetagroup - copy group contents from offset
func (a *Archive) ReadMetagroup(group *target.Metagroup, buffer []byte, offset int) int {
	a.mutex.RLock()
	key, ok := a.groups[group]
	a.mutex.RUnlock()
	if !ok || offset < 0 {
		return 0
	}

	data := a.pool.Metadata.Get(metadataKey(key.bin, key.group))
	if offset >= len(data) {
		return 0
	}
	return copy(buffer, data[offset:])
}

// FindROI - 1 based index into the stored regions
func (a *Archive) FindROI(stream int, name string) int {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	for i, r := range a.regions {
		if r.Stream == stream && r.Name == name {
			return i + 1
		}
	}
	return 0
}

func (a *Archive) ROIDetails(index int) (string, window.Coords, window.Dims, bool) {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	if index < 1 || index > len(a.regions) {
		return "", window.Coords{}, window.Dims{}, false
	}
	r := a.regions[index-1]
	return r.Name, r.Resolution, r.Region, true
}

// a codestream read from the precinct pools on demand
type storedCodestream struct {
	archive   *Archive
	stream    int
	structure *target.Structure
}

func (c *storedCodestream) Structure() *target.Structure {
	return c.structure
}

func (c *storedCodestream) MainHeader() []byte {
	return c.archive.pool.MainHeaders.Get(streamKey(c.stream))
}

func (c *storedCodestream) TileHeader(tile int) []byte {
	return c.archive.pool.TileHeaders.Get(tileKey(c.stream, tile))
}

func (c *storedCodestream) Precinct(tile int, component int, resolution int, index int64) target.Precinct {
	record := c.archive.pool.Precincts.Get(precinctKey(c.stream, tile, component, resolution, index))
	if nil == record {
		return target.Precinct{}
	}
	p, err := unpackPrecinct(record)
	if nil != err {
		c.archive.log.Errorf("stream: %d  precinct: %d/%d/%d/%d  error: %s", c.stream, tile, component, resolution, index, err)
		return target.Precinct{}
	}
	return p
}
