// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package message

import (
	"github.com/bitmark-inc/jpipd/fault"
)

// VBASMaximumBytes - enough 7 bit groups for a 64 bit value
const VBASMaximumBytes = 10

// AppendVBAS - append the VBAS form of value to dst
//
// byte 1:  ext | Bn+6 ... Bn      most significant group first
// ...
// byte k:    0 | B06 | B05 | B04 | B03 | B02 | B01 | B00
func AppendVBAS(dst []byte, value uint64) []byte {
	n := 1
	for v := value >> 7; 0 != v; v >>= 7 {
		n += 1
	}
	for i := n - 1; i > 0; i -= 1 {
		dst = append(dst, byte(value>>(7*uint(i)))&0x7f|0x80)
	}
	return append(dst, byte(value)&0x7f)
}

// VBASLength - number of bytes AppendVBAS would write
func VBASLength(value uint64) int {
	n := 1
	for v := value >> 7; 0 != v; v >>= 7 {
		n += 1
	}
	return n
}

// ReadVBAS - decode a VBAS from the start of buffer
//
// returns the value and the number of bytes consumed
func ReadVBAS(buffer []byte) (uint64, int, error) {
	value := uint64(0)
	for count := 0; count < len(buffer); count += 1 {
		if count >= VBASMaximumBytes {
			return 0, 0, fault.VBASTooLong
		}
		b := buffer[count]
		value = value<<7 | uint64(b&0x7f)
		if 0 == b&0x80 {
			return value, count + 1, nil
		}
	}
	return 0, 0, fault.VBASTruncated
}

// appendBinID - the first byte holds the flags and only 4 id bits
func appendBinID(dst []byte, id uint64, indicator byte, final bool) []byte {
	n := 1
	for v := id >> 4; 0 != v; v >>= 7 {
		n += 1
	}

	first := indicator << 5
	if final {
		first |= 0x10
	}
	first |= byte(id>>(7*uint(n-1))) & 0x0f
	if n > 1 {
		first |= 0x80
	}
	dst = append(dst, first)

	for i := n - 2; i >= 0; i -= 1 {
		b := byte(id>>(7*uint(i))) & 0x7f
		if i > 0 {
			b |= 0x80
		}
		dst = append(dst, b)
	}
	return dst
}

// readBinID - reverse of appendBinID
func readBinID(buffer []byte) (id uint64, indicator byte, final bool, count int, err error) {
	if 0 == len(buffer) {
		return 0, 0, false, 0, fault.VBASTruncated
	}
	first := buffer[0]
	indicator = (first >> 5) & 0x03
	final = 0 != first&0x10
	id = uint64(first & 0x0f)
	count = 1
	if 0 == first&0x80 {
		return id, indicator, final, count, nil
	}
	for ; count < len(buffer); count += 1 {
		if count >= VBASMaximumBytes {
			return 0, 0, false, 0, fault.VBASTooLong
		}
		b := buffer[count]
		id = id<<7 | uint64(b&0x7f)
		if 0 == b&0x80 {
			return id, indicator, final, count + 1, nil
		}
	}
	return 0, 0, false, 0, fault.VBASTruncated
}
