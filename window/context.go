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

// ParseRange - one "from[-[to]][:step]" expression
//
// returns the range and the unparsed remainder
func ParseRange(s string) (SampledRange, string, error) {
	from, n := leadingInt(s)
	if 0 == n {
		return SampledRange{}, s, fault.InvalidRequestField
	}
	s = s[n:]
	r := NewSampledRange(from, from, 1)
	if strings.HasPrefix(s, "-") {
		s = s[1:]
		to, n := leadingInt(s)
		if 0 == n {
			r.To = MaximumIndex
		} else {
			if to < from {
				return SampledRange{}, s, fault.InvalidRequestField
			}
			r.To = to
			s = s[n:]
		}
	}
	if strings.HasPrefix(s, ":") {
		step, n := leadingInt(s[1:])
		if 0 == n || 0 == step {
			return SampledRange{}, s, fault.InvalidRequestField
		}
		r.Step = step
		s = s[1+n:]
	}
	return r.normalised(), s, nil
}

// ParseRangeSet - a comma separated list of ranges added to set
func ParseRangeSet(s string, set *RangeSet) error {
	for {
		r, rest, err := ParseRange(s)
		if nil != err {
			return err
		}
		set.Add(r, true)
		if 0 == len(rest) {
			return nil
		}
		if ',' != rest[0] {
			return fault.InvalidRequestField
		}
		s = rest[1:]
	}
}

// ParseContext - parse one context range expression, appending it to
// Contexts along with any "=" expansion
//
// recognised forms are jpxl<range>[[s<set>i<index>]] and
// mj2t<range>[/track|/movie][+now].  Unrecognised expressions are
// skipped.  The remainder, usually starting at a ',' or ';'
// separator, is returned.
func (w *Window) ParseContext(s string) (string, error) {
	var r SampledRange
	var err error

	switch {
	case strings.HasPrefix(s, "jpxl<"):
		r, s, err = parseAngled(s[len("jpxl<"):])
		if nil != err {
			return s, err
		}
		r.ContextType = ContextJPXL
		if strings.HasPrefix(s, "[s") {
			set, n := leadingInt(s[2:])
			s = s[2+n:]
			if 0 == n || !strings.HasPrefix(s, "i") {
				return s, fault.InvalidRequestField
			}
			index, n := leadingInt(s[1:])
			s = s[1+n:]
			if 0 == n || !strings.HasPrefix(s, "]") {
				return s, fault.InvalidRequestField
			}
			s = s[1:]
			r.RemappingIDs = [2]int{set, index}
		}

	case strings.HasPrefix(s, "mj2t<"):
		r, s, err = parseAngled(s[len("mj2t<"):])
		if nil != err {
			return s, err
		}
		r.ContextType = ContextMJ2T
		switch {
		case strings.HasPrefix(s, "/track"):
			r.RemappingIDs[0] = 0
			s = s[len("/track"):]
		case strings.HasPrefix(s, "/movie"):
			r.RemappingIDs[0] = 1
			s = s[len("/movie"):]
		}
		if strings.HasPrefix(s, "+now") {
			r.RemappingIDs[1] = 0
			s = s[len("+now"):]
		}

	default:
		end := strings.IndexAny(s, ",;")
		if end < 0 {
			return "", nil
		}
		return s[end:], nil
	}

	var expansion *RangeSet
	if strings.HasPrefix(s, "=") {
		expansion = &RangeSet{}
		s = s[1:]
		for {
			e, rest, err := ParseRange(s)
			if nil != err {
				return rest, err
			}
			expansion.Add(e, false)
			s = rest
			if !strings.HasPrefix(s, ",") {
				break
			}
			if _, _, err := ParseRange(s[1:]); nil != err {
				// a following context expression, not part of this expansion
				break
			}
			s = s[1:]
		}
	}

	w.Contexts.Add(r, false)
	if nil != expansion {
		e := w.CreateContextExpansion(w.Contexts.NumRanges() - 1)
		e.CopyFrom(expansion)
	}
	return s, nil
}

func parseAngled(s string) (SampledRange, string, error) {
	r, rest, err := ParseRange(s)
	if nil != err {
		return r, rest, err
	}
	if !strings.HasPrefix(rest, ">") {
		return r, rest, fault.InvalidRequestField
	}
	return r, rest[1:], nil
}

// ParseContexts - a list of context expressions separated by ',' or ';'
func (w *Window) ParseContexts(s string) error {
	for 0 != len(s) {
		rest, err := w.ParseContext(s)
		if nil != err {
			return err
		}
		if 0 == len(rest) {
			return nil
		}
		if ',' != rest[0] && ';' != rest[0] {
			return fault.InvalidRequestField
		}
		s = rest[1:]
	}
	return nil
}

// ContextString - one context range in request syntax, with its
// expansion if withExpansion is set
func (w *Window) ContextString(which int, withExpansion bool) string {
	r := w.Contexts.Range(which)
	s := ""
	switch r.ContextType {
	case ContextJPXL:
		s = "jpxl<" + r.String() + ">"
		if r.RemappingIDs[0] >= 0 && r.RemappingIDs[1] >= 0 {
			s += "[s" + itoa(r.RemappingIDs[0]) + "i" + itoa(r.RemappingIDs[1]) + "]"
		}
	case ContextMJ2T:
		s = "mj2t<" + r.String() + ">"
		switch r.RemappingIDs[0] {
		case 0:
			s += "/track"
		case 1:
			s += "/movie"
		}
		if 0 == r.RemappingIDs[1] {
			s += "+now"
		}
	default:
		return ""
	}
	if withExpansion && nil != r.Expansion && !r.Expansion.IsEmpty() {
		s += "=" + r.Expansion.String()
	}
	return s
}

// ContextsString - all context ranges joined by sep
func (w *Window) ContextsString(sep string, withExpansion bool) string {
	parts := []string{}
	for i := 0; i < w.Contexts.NumRanges(); i += 1 {
		if s := w.ContextString(i, withExpansion); "" != s {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, sep)
}

func itoa(i int) string {
	return strconv.Itoa(i)
}

func itoa64(i int64) string {
	return strconv.FormatInt(i, 10)
}
