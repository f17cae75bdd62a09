// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cache

import (
	"bufio"
	"encoding/binary"
	"hash/crc32"
	"io"
	"io/ioutil"

	"github.com/bitmark-inc/jpipd/databin"
	"github.com/bitmark-inc/jpipd/fault"
)

// cache file layout (.kjc)
//
//   magic[4] version[2] tidLength(uvarint) tid
//   { class+1[1] stream(uvarint) id(uvarint) flags[1] [length(uvarint)]
//     segments(uvarint) { offset(uvarint) size(uvarint) data } }
//   0x00 crc32[4]
//
// records appear in most recently used first order within each partition
const (
	fileVersion uint16 = 1

	flagFinal = 0x01

	// sanity limits when loading
	maximumTargetIDLength = 4096
	maximumSegments       = 1 << 20
)

var fileMagic = []byte{'K', 'J', 'C', 0x1a}

// Save - write all cached data-bins to w
//
// marks are not saved: on reload the server has not been told about
// any of the content
func (c *Cache) Save(w io.Writer, targetID string) error {
	s, _ := c.acquire()
	defer s.Unlock()

	crc := crc32.NewIEEE()
	out := bufio.NewWriter(io.MultiWriter(w, crc))

	buffer := make([]byte, 0, 64)
	buffer = append(buffer, fileMagic...)
	buffer = append(buffer, byte(fileVersion>>8), byte(fileVersion))
	buffer = appendUvarint(buffer, uint64(len(targetID)))
	buffer = append(buffer, targetID...)
	if _, err := out.Write(buffer); nil != err {
		return err
	}

	for _, list := range s.partitions {
		for e := list.head; nil != e; e = e.next {
			buffer = buffer[:0]
			buffer = append(buffer, byte(e.key.Class)+1)
			buffer = appendUvarint(buffer, uint64(e.key.Stream))
			buffer = appendUvarint(buffer, uint64(e.key.ID))
			if e.final {
				buffer = append(buffer, flagFinal)
				buffer = appendUvarint(buffer, uint64(e.length))
			} else {
				buffer = append(buffer, 0)
			}
			buffer = appendUvarint(buffer, uint64(len(e.segments)))
			if _, err := out.Write(buffer); nil != err {
				return err
			}
			for _, seg := range e.segments {
				buffer = buffer[:0]
				buffer = appendUvarint(buffer, uint64(seg.offset))
				buffer = appendUvarint(buffer, uint64(len(seg.data)))
				if _, err := out.Write(buffer); nil != err {
					return err
				}
				if _, err := out.Write(seg.data); nil != err {
					return err
				}
			}
		}
	}

	if err := out.WriteByte(0); nil != err {
		return err
	}
	if err := out.Flush(); nil != err {
		return err
	}

	sum := make([]byte, 4)
	binary.BigEndian.PutUint32(sum, crc.Sum32())
	_, err := w.Write(sum)
	return err
}

// Load - replace the cache contents with a saved cache file
//
// returns the target id recorded in the file; on any error the
// cache is left empty, fault.CacheFileVersion means the file was
// written by an incompatible version, anything else means corrupt
func (c *Cache) Load(r io.Reader) (string, error) {
	if c.IsAttached() {
		return "", fault.CacheAttached
	}
	c.Close()

	data, err := ioutil.ReadAll(r)
	if nil != err {
		return "", err
	}

	targetID, loaded, err := decodeFile(data)
	if nil != err {
		return "", err
	}

	c.Lock()
	c.own = loaded
	c.Unlock()

	return targetID, nil
}

func decodeFile(data []byte) (string, *store, error) {
	if len(data) < len(fileMagic)+2+1+4 {
		return "", nil, fault.CorruptCacheFile
	}
	for i, b := range fileMagic {
		if data[i] != b {
			return "", nil, fault.CorruptCacheFile
		}
	}
	n := len(fileMagic)
	version := uint16(data[n])<<8 | uint16(data[n+1])
	if fileVersion != version {
		return "", nil, fault.CacheFileVersion
	}

	body := data[:len(data)-4]
	if crc32.ChecksumIEEE(body) != binary.BigEndian.Uint32(data[len(data)-4:]) {
		return "", nil, fault.CorruptCacheFile
	}

	d := &decoder{
		buffer: body,
		offset: n + 2,
	}

	tidLength := d.uvarint()
	if tidLength > maximumTargetIDLength {
		return "", nil, fault.CorruptCacheFile
	}
	targetID := string(d.bytes(tidLength))

	s := newStore()
	for d.ok() {
		tag := d.byte()
		if 0 == tag {
			break
		}
		class := databin.Class(tag - 1)
		if !class.Valid() {
			return "", nil, fault.CorruptCacheFile
		}
		stream := d.uvarint()
		id := d.uvarint()
		flags := d.byte()
		final := 0 != flags&flagFinal
		length := uint64(0)
		if final {
			length = d.uvarint()
		}
		count := d.uvarint()
		if count > maximumSegments {
			return "", nil, fault.CorruptCacheFile
		}
		key := databin.NewKey(class, int64(stream), int64(id))
		if _, duplicate := s.bins[key]; duplicate {
			return "", nil, fault.CorruptCacheFile
		}

		previousEnd := int64(-1)
		segments := make([]segment, 0, count)
		for i := uint64(0); i < count && d.ok(); i += 1 {
			offset := int64(d.uvarint())
			size := d.uvarint()
			chunk := d.bytes(size)
			if !d.ok() || 0 == size || offset <= previousEnd {
				return "", nil, fault.CorruptCacheFile
			}
			segments = append(segments, segment{
				offset: offset,
				data:   append([]byte(nil), chunk...),
			})
			previousEnd = offset + int64(size)
		}
		if !d.ok() {
			return "", nil, fault.CorruptCacheFile
		}
		if final && previousEnd > int64(length) {
			return "", nil, fault.CorruptCacheFile
		}

		// rebuild through add so the bookkeeping matches live insertion
		for _, seg := range segments {
			s.add(key, seg.data, seg.offset, false, false, false)
		}
		if final {
			s.add(key, nil, int64(length), true, false, false)
		}
		if _, ok := s.bins[key]; !ok {
			return "", nil, fault.CorruptCacheFile
		}
	}
	if !d.ok() || d.offset != len(body) {
		return "", nil, fault.CorruptCacheFile
	}

	// loading is not a transfer
	for i := range s.transferred {
		s.transferred[i].Reset()
	}
	return targetID, s, nil
}

// bounds-checked reader, the first failure sticks
type decoder struct {
	buffer []byte
	offset int
	failed bool
}

func (d *decoder) ok() bool {
	return !d.failed
}

func (d *decoder) byte() byte {
	if d.failed || d.offset >= len(d.buffer) {
		d.failed = true
		return 0
	}
	b := d.buffer[d.offset]
	d.offset += 1
	return b
}

func (d *decoder) uvarint() uint64 {
	if d.failed {
		return 0
	}
	value, n := binary.Uvarint(d.buffer[d.offset:])
	if n <= 0 || value > 1<<62 {
		d.failed = true
		return 0
	}
	d.offset += n
	return value
}

func (d *decoder) bytes(n uint64) []byte {
	if d.failed || n > uint64(len(d.buffer)-d.offset) {
		d.failed = true
		return nil
	}
	b := d.buffer[d.offset : d.offset+int(n)]
	d.offset += int(n)
	return b
}

func appendUvarint(buffer []byte, value uint64) []byte {
	var b [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(b[:], value)
	return append(buffer, b[:n]...)
}
