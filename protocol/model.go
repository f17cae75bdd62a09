// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package protocol

import (
	"strconv"
	"strings"

	"github.com/bitmark-inc/jpipd/databin"
	"github.com/bitmark-inc/jpipd/fault"
	"github.com/bitmark-inc/jpipd/model"
)

// ModelItem - one explicit cache-model statement
//
// Limit is in bytes, or in quality layers with Layers set; a negative
// Limit says the data-bin is complete.  ID -1 names every data-bin of
// the class.
type ModelItem struct {
	Class       databin.Class
	Stream      int
	ID          int64
	Subtractive bool
	Layers      bool
	Limit       int
}

// String - the item in model field syntax, without codestream qualifier
func (item ModelItem) String() string {
	s := ""
	if item.Subtractive {
		s = "-"
	}
	id := "*"
	if item.ID >= 0 {
		id = strconv.FormatInt(item.ID, 10)
	}
	switch item.Class {
	case databin.MainHeader:
		s += "Hm"
	case databin.TileHeader:
		s += "H" + id
	case databin.Precinct:
		s += "P" + id
	case databin.Meta:
		s += "M" + id
	default:
		return ""
	}
	if item.Limit >= 0 {
		if item.Layers && databin.Precinct == item.Class {
			s += ":L" + strconv.Itoa(item.Limit)
		} else {
			s += ":" + strconv.Itoa(item.Limit)
		}
	}
	return s
}

// WriteModel - a model field for a list of items
//
// a codestream qualifier is written whenever the codestream of a
// header or precinct item differs from the previous one
func WriteModel(items []ModelItem) string {
	parts := make([]string, 0, len(items))
	stream := 0
	for _, item := range items {
		s := item.String()
		if "" == s {
			continue
		}
		if databin.Meta != item.Class && item.Stream != stream {
			stream = item.Stream
			s = "[" + strconv.Itoa(stream) + "]" + s
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, ",")
}

// ParseModel - add the instructions of a model field to m
//
// explicit items are Hm, H<n>, P<n> and M<n> with * for every bin and
// an optional :<bytes> or :L<layers> limit; implicit precinct items
// are built from t, c, r and p ranges with an optional :L<layers>.
// A leading - makes an item subtractive.  A [<from>-<to>] qualifier,
// alone or ahead of an item, selects the codestreams of the items
// that follow.
func ParseModel(s string, m *model.Model) error {
	for _, item := range splitModel(s) {
		if strings.HasPrefix(item, "[") {
			end := strings.IndexByte(item, ']')
			if end < 0 {
				return fault.InvalidRequestField
			}
			from, to, err := parseUintRange(item[1:end])
			if nil != err {
				return err
			}
			m.SetCodestreamContext(from, to)
			item = item[end+1:]
			if "" == item {
				continue
			}
		}
		if err := parseModelItem(item, m); nil != err {
			return err
		}
	}
	return nil
}

// split on commas outside brackets
func splitModel(s string) []string {
	items := []string{}
	depth := 0
	start := 0
	for i := 0; i < len(s); i += 1 {
		switch s[i] {
		case '[':
			depth += 1
		case ']':
			depth -= 1
		case ',':
			if 0 == depth {
				if i > start {
					items = append(items, s[start:i])
				}
				start = i + 1
			}
		}
	}
	if start < len(s) {
		items = append(items, s[start:])
	}
	return items
}

func parseModelItem(item string, m *model.Model) error {
	flags := 0
	if strings.HasPrefix(item, "-") {
		flags |= model.FlagSubtractive
		item = item[1:]
	}

	limit := 0
	hasLimit := false
	if i := strings.IndexByte(item, ':'); i >= 0 {
		l := item[i+1:]
		item = item[:i]
		if strings.HasPrefix(l, "L") {
			flags |= model.FlagLayers
			l = l[1:]
		}
		n, err := strconv.Atoi(l)
		if nil != err || n < 0 {
			return fault.InvalidRequestField
		}
		limit = n
		hasLimit = true
	}
	if !hasLimit {
		flags |= model.FlagComplete
	}
	if "" == item {
		return fault.InvalidRequestField
	}

	class := databin.Undefined
	switch item[0] {
	case 'H':
		if "Hm" == item {
			if 0 != flags&model.FlagLayers {
				return fault.InvalidRequestField
			}
			m.AddInstruction(databin.MainHeader, 0, flags, limit)
			return nil
		}
		class = databin.TileHeader
	case 'P':
		class = databin.Precinct
	case 'M':
		class = databin.Meta
	case 't', 'c', 'r', 'p':
		return parseImplicit(item, flags, limit, m)
	default:
		return fault.InvalidRequestField
	}
	if databin.Precinct != class && 0 != flags&model.FlagLayers {
		return fault.InvalidRequestField
	}

	id := int64(-1)
	if "*" != item[1:] {
		n, err := strconv.ParseInt(item[1:], 10, 64)
		if nil != err || n < 0 {
			return fault.InvalidRequestField
		}
		id = n
	}
	m.AddInstruction(class, id, flags, limit)
	return nil
}

// implicit precinct descriptor such as t0-3c1r2p4-8
func parseImplicit(item string, flags int, limit int, m *model.Model) error {
	if 0 != flags&model.FlagComplete {
		flags &^= model.FlagComplete
	} else if 0 == flags&model.FlagLayers {
		return fault.InvalidRequestField
	}

	ranges := map[byte][2]int{
		't': {-1, -1},
		'c': {-1, -1},
		'r': {-1, -1},
		'p': {-1, -1},
	}
	for 0 != len(item) {
		letter := item[0]
		if _, ok := ranges[letter]; !ok {
			return fault.InvalidRequestField
		}
		end := 1
		for end < len(item) && ('-' == item[end] || (item[end] >= '0' && item[end] <= '9')) {
			end += 1
		}
		from, to, err := parseUintRange(item[1:end])
		if nil != err {
			return err
		}
		ranges[letter] = [2]int{from, to}
		item = item[end:]
	}

	t, c, r, p := ranges['t'], ranges['c'], ranges['r'], ranges['p']
	m.AddImplicitInstruction(t[0], t[1], c[0], c[1], r[0], r[1], int64(p[0]), int64(p[1]), flags, limit)
	return nil
}

// a-b or a, an open upper bound means a single value
func parseUintRange(s string) (int, int, error) {
	parts := strings.SplitN(s, "-", 2)
	from, err := strconv.Atoi(parts[0])
	if nil != err || from < 0 {
		return 0, 0, fault.InvalidRequestField
	}
	to := from
	if 2 == len(parts) && "" != parts[1] {
		to, err = strconv.Atoi(parts[1])
		if nil != err || to < from {
			return 0, 0, fault.InvalidRequestField
		}
	}
	return from, to, nil
}
