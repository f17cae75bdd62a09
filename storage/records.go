// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"encoding/binary"
	"encoding/json"

	"github.com/bitmark-inc/jpipd/fault"
	"github.com/bitmark-inc/jpipd/target"
	"github.com/bitmark-inc/jpipd/window"
)

// info keys
var (
	nameKey = []byte("name")
	idKey   = []byte("id")
)

// identifies one group in the metadata pool
type groupKey struct {
	bin   int64
	group int
}

// a named region of interest
type region struct {
	Stream     int           `json:"stream"`
	Name       string        `json:"name"`
	Resolution window.Coords `json:"resolution"`
	Region     window.Dims   `json:"region"`
}

// one group of a meta data-bin, placeholders link by bin id
type groupRecord struct {
	IsPlaceholder       bool             `json:"placeholder,omitempty"`
	IsLastInBin         bool             `json:"last,omitempty"`
	IsRubberLength      bool             `json:"rubber,omitempty"`
	FilePos             int64            `json:"filePos"`
	Length              int              `json:"length"`
	BoxTypes            []uint32         `json:"boxTypes,omitempty"`
	LastBoxHeaderPrefix int              `json:"lastBoxHeaderPrefix,omitempty"`
	LastBoxType         uint32           `json:"lastBoxType,omitempty"`
	LinkFilePos         int64            `json:"linkFilePos"`
	Link                int64            `json:"link"`
	Scope               target.Metascope `json:"scope"`
}

func streamKey(stream int) []byte {
	key := make([]byte, 4)
	binary.BigEndian.PutUint32(key, uint32(stream))
	return key
}

func tileKey(stream int, tile int) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint32(key, uint32(stream))
	binary.BigEndian.PutUint32(key[4:], uint32(tile))
	return key
}

func precinctKey(stream int, tile int, component int, resolution int, index int64) []byte {
	key := make([]byte, 19)
	binary.BigEndian.PutUint32(key, uint32(stream))
	binary.BigEndian.PutUint32(key[4:], uint32(tile))
	binary.BigEndian.PutUint16(key[8:], uint16(component))
	key[10] = byte(resolution)
	binary.BigEndian.PutUint64(key[11:], uint64(index))
	return key
}

func binKey(bin int64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(bin))
	return key
}

func metadataKey(bin int64, group int) []byte {
	key := make([]byte, 12)
	binary.BigEndian.PutUint64(key, uint64(bin))
	binary.BigEndian.PutUint32(key[8:], uint32(group))
	return key
}

func countKey(n int) []byte {
	return streamKey(n)
}

// packPrecinct - layer count, cumulative layer ends then the data
func packPrecinct(p target.Precinct) []byte {
	buffer := make([]byte, 0, len(p.Data)+binary.MaxVarintLen64*(len(p.Layers)+1))
	var b [binary.MaxVarintLen64]byte

	n := binary.PutUvarint(b[:], uint64(len(p.Layers)))
	buffer = append(buffer, b[:n]...)
	for _, end := range p.Layers {
		n = binary.PutUvarint(b[:], uint64(end))
		buffer = append(buffer, b[:n]...)
	}
	return append(buffer, p.Data...)
}

func unpackPrecinct(record []byte) (target.Precinct, error) {
	p := target.Precinct{}

	count, n := binary.Uvarint(record)
	if n <= 0 {
		return p, fault.CorruptArchiveRecord
	}
	record = record[n:]

	p.Layers = make([]int, count)
	for i := range p.Layers {
		end, n := binary.Uvarint(record)
		if n <= 0 {
			return target.Precinct{}, fault.CorruptArchiveRecord
		}
		p.Layers[i] = int(end)
		record = record[n:]
	}
	if count > 0 && p.Layers[count-1] != len(record) {
		return target.Precinct{}, fault.CorruptArchiveRecord
	}
	p.Data = record
	return p, nil
}

func packStructure(s *target.Structure) ([]byte, error) {
	return json.Marshal(s)
}

func unpackStructure(record []byte) (*target.Structure, error) {
	s := &target.Structure{}
	err := json.Unmarshal(record, s)
	if nil != err {
		return nil, err
	}
	if 0 == len(s.Components) {
		return nil, fault.CorruptArchiveRecord
	}
	return s, nil
}

func packMetabin(bin *target.Metabin) ([]byte, error) {
	records := make([]groupRecord, len(bin.Groups))
	for i, g := range bin.Groups {
		link := int64(-1)
		if nil != g.Placeholder {
			link = g.Placeholder.ID
		}
		r := groupRecord{
			IsPlaceholder:       g.IsPlaceholder,
			IsLastInBin:         g.IsLastInBin,
			IsRubberLength:      g.IsRubberLength,
			FilePos:             g.FilePos,
			Length:              g.Length,
			BoxTypes:            g.BoxTypes,
			LastBoxHeaderPrefix: g.LastBoxHeaderPrefix,
			LastBoxType:         g.LastBoxType,
			LinkFilePos:         g.LinkFilePos,
			Link:                link,
		}
		if nil != g.Scope {
			r.Scope = *g.Scope
		}
		records[i] = r
	}
	return json.Marshal(records)
}

// unpackMetabin - groups with the ids of any linked bins
func unpackMetabin(id int64, record []byte) (*target.Metabin, []int64, error) {
	records := []groupRecord{}
	err := json.Unmarshal(record, &records)
	if nil != err {
		return nil, nil, err
	}

	bin := &target.Metabin{
		ID:     id,
		Groups: make([]*target.Metagroup, len(records)),
	}
	links := make([]int64, len(records))
	for i, r := range records {
		scope := r.Scope
		bin.Groups[i] = &target.Metagroup{
			IsPlaceholder:       r.IsPlaceholder,
			IsLastInBin:         r.IsLastInBin,
			IsRubberLength:      r.IsRubberLength,
			FilePos:             r.FilePos,
			Length:              r.Length,
			BoxTypes:            r.BoxTypes,
			LastBoxHeaderPrefix: r.LastBoxHeaderPrefix,
			LastBoxType:         r.LastBoxType,
			LinkFilePos:         r.LinkFilePos,
			Scope:               &scope,
		}
		links[i] = r.Link
	}
	return bin, links, nil
}
