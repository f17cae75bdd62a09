// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package window

import (
	"strconv"
	"strings"

	"github.com/bitmark-inc/jpipd/fault"
)

// metadata request qualifiers
const (
	MetareqAll     = 1
	MetareqGlobal  = 2
	MetareqStream  = 4
	MetareqWindow  = 8
	MetareqDefault = MetareqGlobal | MetareqStream | MetareqWindow
	MetareqAny     = 15
)

// limits for unrestricted metadata requests
const (
	UnlimitedBytes = 1<<31 - 1
	UnlimitedDepth = 1<<31 - 1
)

// Metareq - interest in one box type
//
// BoxType 0 matches every box.  RootBinID and MaxDepth bound the
// part of the metadata tree that is searched.
type Metareq struct {
	BoxType   uint32
	Qualifier int
	Priority  bool
	ByteLimit int
	Recurse   bool
	RootBinID int64
	MaxDepth  int
}

// Equals - strict field comparison
func (m Metareq) Equals(rhs Metareq) bool {
	return m == rhs
}

// JPIP request syntax for one box property
func (m Metareq) boxProperty() string {
	s := "*"
	if 0 != m.BoxType {
		s = WriteTypeCode(m.BoxType)
	}
	if m.Recurse {
		s += ":r"
	} else if m.ByteLimit < UnlimitedBytes {
		s += ":" + strconv.Itoa(m.ByteLimit)
	}
	if MetareqDefault != m.Qualifier {
		s += "/"
		if 0 != m.Qualifier&MetareqWindow {
			s += "w"
		}
		if 0 != m.Qualifier&MetareqStream {
			s += "s"
		}
		if 0 != m.Qualifier&MetareqGlobal {
			s += "g"
		}
		if 0 != m.Qualifier&MetareqAll {
			s += "a"
		}
	}
	if m.Priority {
		s += "!"
	}
	return s
}

// parse one "[props]R<root>D<depth>" group
func parseMetareqGroup(s string) ([]Metareq, string, error) {
	if !strings.HasPrefix(s, "[") {
		return nil, s, fault.InvalidMetareq
	}
	end := strings.IndexByte(s, ']')
	if end < 0 {
		return nil, s, fault.InvalidMetareq
	}
	body := s[1:end]
	rest := s[end+1:]

	group := []Metareq{}
	for _, prop := range strings.Split(body, ";") {
		m := Metareq{
			Qualifier: MetareqDefault,
			ByteLimit: UnlimitedBytes,
			MaxDepth:  UnlimitedDepth,
		}
		if strings.HasPrefix(prop, "*") {
			prop = prop[1:]
		} else {
			code, n := ParseTypeCode(prop)
			if n < 4 {
				return nil, s, fault.InvalidMetareq
			}
			m.BoxType = code
			prop = prop[n:]
		}
		if strings.HasPrefix(prop, ":") {
			prop = prop[1:]
			if strings.HasPrefix(prop, "r") {
				m.Recurse = true
				prop = prop[1:]
			} else {
				value, n := leadingInt(prop)
				if n == 0 {
					return nil, s, fault.InvalidMetareq
				}
				m.ByteLimit = value
				prop = prop[n:]
			}
		}
		if strings.HasPrefix(prop, "/") {
			prop = prop[1:]
			m.Qualifier = 0
		qualifiers:
			for 0 != len(prop) {
				switch prop[0] {
				case 'w':
					m.Qualifier |= MetareqWindow
				case 's':
					m.Qualifier |= MetareqStream
				case 'g':
					m.Qualifier |= MetareqGlobal
				case 'a':
					m.Qualifier |= MetareqAll
				default:
					break qualifiers
				}
				prop = prop[1:]
			}
			if 0 == m.Qualifier {
				return nil, s, fault.InvalidMetareq
			}
		}
		if strings.HasPrefix(prop, "!") {
			m.Priority = true
			prop = prop[1:]
		}
		if 0 != len(prop) {
			return nil, s, fault.InvalidMetareq
		}
		group = append(group, m)
	}

	root := int64(0)
	depth := UnlimitedDepth
	if strings.HasPrefix(rest, "R") {
		value, n := leadingInt(rest[1:])
		if 0 == n {
			return nil, s, fault.InvalidMetareq
		}
		root = int64(value)
		rest = rest[1+n:]
	}
	if strings.HasPrefix(rest, "D") {
		value, n := leadingInt(rest[1:])
		if 0 == n {
			return nil, s, fault.InvalidMetareq
		}
		depth = value
		rest = rest[1+n:]
	}
	for i := range group {
		group[i].RootBinID = root
		group[i].MaxDepth = depth
	}
	return group, rest, nil
}

// decimal prefix of s and its length
func leadingInt(s string) (int, int) {
	n := 0
	value := 0
	for n < len(s) && s[n] >= '0' && s[n] <= '9' {
		if value < MaximumIndex/10 {
			value = value*10 + int(s[n]-'0')
		} else {
			value = MaximumIndex
		}
		n += 1
	}
	return value, n
}
