// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package window

import (
	"strings"
)

// WriteTypeCode - render a box type as four printable characters
//
// alphanumerics are written as is, a space as '_' and anything else
// as a backslash followed by three octal digits
func WriteTypeCode(typeCode uint32) string {
	b := strings.Builder{}
	for shift := 24; shift >= 0; shift -= 8 {
		c := byte(typeCode >> uint(shift))
		switch {
		case ' ' == c:
			b.WriteByte('_')
		case (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9'):
			b.WriteByte(c)
		default:
			b.WriteByte('\\')
			b.WriteByte('0' + (c>>6)&7)
			b.WriteByte('0' + (c>>3)&7)
			b.WriteByte('0' + c&7)
		}
	}
	return b.String()
}

// ParseTypeCode - inverse of WriteTypeCode
//
// '_' is a space and a backslash followed by three octal digits, the
// first below 4, is one byte; any other character stands for itself.
// Parsing never fails: bytes missing at the end of s are zero.
// Returns the code and the number of characters consumed, which is
// less than 4 only if s ended early
func ParseTypeCode(s string) (uint32, int) {
	code := uint32(0)
	n := 0
	for i := 0; i < 4; i += 1 {
		code <<= 8
		if n >= len(s) {
			continue
		}
		c := s[n]
		n += 1
		switch {
		case '_' == c:
			c = ' '
		case '\\' == c && isOctalByte(s[n:]):
			c = (s[n]-'0')<<6 | (s[n+1]-'0')<<3 | (s[n+2] - '0')
			n += 3
		}
		code |= uint32(c)
	}
	return code, n
}

// three octal digits with a value below 256
func isOctalByte(s string) bool {
	return len(s) >= 3 &&
		s[0] >= '0' && s[0] < '4' &&
		s[1] >= '0' && s[1] < '8' &&
		s[2] >= '0' && s[2] < '8'
}
