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

// preference flags, options within one mask are mutually exclusive
const (
	PrefFullWindow  = 0x00000001
	PrefProgressive = 0x00000002
	PrefWindowMask  = 0x00000003

	PrefConcise         = 0x00000010
	PrefLoose           = 0x00000020
	PrefConcisenessMask = 0x00000030

	PrefPlaceholderIncremental = 0x00000100
	PrefPlaceholderEquivalent  = 0x00000200
	PrefPlaceholderOriginal    = 0x00000400
	PrefPlaceholderMask        = 0x00000700

	PrefCodestreamForward     = 0x00001000
	PrefCodestreamBackward    = 0x00002000
	PrefCodestreamInterleaved = 0x00004000
	PrefCodestreamMask        = 0x00007000

	PrefMaxBandwidth   = 0x00010000
	PrefBandwidthSlice = 0x00020000
	PrefColourMethod   = 0x00040000
)

// the related preference sets, in the order they are written
var prefSets = []int{
	PrefWindowMask,
	PrefConcisenessMask,
	PrefPlaceholderMask,
	PrefCodestreamMask,
	PrefMaxBandwidth,
	PrefBandwidthSlice,
	PrefColourMethod,
}

var prefNames = map[int]string{
	PrefFullWindow:             "fullwindow",
	PrefProgressive:            "progressive",
	PrefConcise:                "concise",
	PrefLoose:                  "loose",
	PrefPlaceholderIncremental: "placeholder:incr",
	PrefPlaceholderEquivalent:  "placeholder:equiv",
	PrefPlaceholderOriginal:    "placeholder:orig",
	PrefCodestreamForward:      "codeseq:sequential",
	PrefCodestreamBackward:     "codeseq:reverse-sequential",
	PrefCodestreamInterleaved:  "codeseq:interleaved",
}

// colour description methods
const (
	ColourEnumerated     = 0
	ColourRestrictedICC  = 1
	ColourAnyICC         = 2
	ColourVendor         = 3
	colourMethodCount    = 4
	colourUnlimitedLimit = 255
)

var colourNames = [colourMethodCount]string{"enum", "sicc", "ricc", "vend"}

// Prefs - JPIP preference state
//
// a flag appears in at most one of Preferred, Required and Denied;
// Denied only ever grows
type Prefs struct {
	Preferred int
	Required  int
	Denied    int

	MaxBandwidth     int64
	BandwidthSlice   uint32
	ColourMethLimits [colourMethodCount]byte
}

// Init - no preferences
func (p *Prefs) Init() {
	*p = Prefs{}
}

func setOf(flag int) int {
	for _, mask := range prefSets {
		if 0 != flag&mask {
			return mask
		}
	}
	return 0
}

func singleFlag(flag int) bool {
	return 0 != flag && 0 == flag&(flag-1)
}

// SetPref - select a simple preference option
//
// other options of the same set are cleared.  Returns false for an
// unknown or denied option.
func (p *Prefs) SetPref(flag int, required bool) bool {
	if !singleFlag(flag) {
		return false
	}
	if _, ok := prefNames[flag]; !ok {
		return false
	}
	return p.set(flag, required)
}

func (p *Prefs) set(flag int, required bool) bool {
	if 0 != p.Denied&flag {
		return false
	}
	mask := setOf(flag)
	p.Preferred &^= mask
	p.Required &^= mask
	if required {
		p.Required |= flag
	} else {
		p.Preferred |= flag
	}
	return true
}

// SetMaxBandwidth - bytes per second
func (p *Prefs) SetMaxBandwidth(limit int64, required bool) bool {
	if limit <= 0 || !p.set(PrefMaxBandwidth, required) {
		return false
	}
	p.MaxBandwidth = limit
	return true
}

// SetBandwidthSlice - share of the session bandwidth for this channel
func (p *Prefs) SetBandwidthSlice(slice uint32, required bool) bool {
	if 0 == slice || !p.set(PrefBandwidthSlice, required) {
		return false
	}
	p.BandwidthSlice = slice
	return true
}

// SetColourMethodLimit - approximation limit for one colour method,
// 255 means the method is not wanted
func (p *Prefs) SetColourMethodLimit(method int, limit byte, required bool) bool {
	if method < 0 || method >= colourMethodCount {
		return false
	}
	if 0 == (p.Preferred|p.Required)&PrefColourMethod {
		for i := range p.ColourMethLimits {
			p.ColourMethLimits[i] = colourUnlimitedLimit
		}
	}
	if !p.set(PrefColourMethod, required) {
		return false
	}
	p.ColourMethLimits[method] = limit
	return true
}

// ColourDescriptionPriority - rank a colour description, higher is
// better, 0 means the client does not want it
//
// without colour method preferences every method has the same rank
func (p *Prefs) ColourDescriptionPriority(method int, approximation int) int {
	if method < 0 || method >= colourMethodCount {
		return 0
	}
	if 0 == (p.Preferred|p.Required)&PrefColourMethod {
		return 1
	}
	limit := int(p.ColourMethLimits[method])
	if colourUnlimitedLimit == limit || approximation > limit {
		return 0
	}
	return 1 + limit - approximation
}

// Update - take over every preference set that src says something
// about, OR in its Denied flags
//
// returns the masks of the sets that changed
func (p *Prefs) Update(src *Prefs) int {
	changed := 0
	for _, mask := range prefSets {
		given := (src.Preferred | src.Required) & mask
		if 0 == given {
			continue
		}
		before := *p
		p.Preferred = p.Preferred&^mask | src.Preferred&mask
		p.Required = p.Required&^mask | src.Required&mask
		switch mask {
		case PrefMaxBandwidth:
			p.MaxBandwidth = src.MaxBandwidth
		case PrefBandwidthSlice:
			p.BandwidthSlice = src.BandwidthSlice
		case PrefColourMethod:
			p.ColourMethLimits = src.ColourMethLimits
		}
		if before != *p {
			changed |= mask
		}
	}
	p.Denied |= src.Denied
	p.Preferred &^= p.Denied
	p.Required &^= p.Denied
	return changed
}

// Parse - replace the state by a JPIP "pref" field
//
// unknown preferences are ignored unless marked required
func (p *Prefs) Parse(s string) error {
	p.Init()
	if "" == s {
		return nil
	}
	for _, item := range strings.Split(s, ",") {
		required := false
		if strings.HasSuffix(item, "/r") {
			required = true
			item = item[:len(item)-2]
		}

		ok := false
		switch {
		case strings.HasPrefix(item, "mbw:"):
			value, err := parseBandwidth(item[4:])
			if nil != err {
				return err
			}
			ok = p.SetMaxBandwidth(value, required)
		case strings.HasPrefix(item, "slice:"):
			value, err := strconv.ParseUint(item[6:], 10, 32)
			if nil != err {
				return fault.InvalidPreference
			}
			ok = p.SetBandwidthSlice(uint32(value), required)
		case strings.HasPrefix(item, "color-meth:"):
			for _, part := range strings.Split(item[len("color-meth:"):], ";") {
				name := part
				limit := 0
				if i := strings.IndexByte(part, '='); i >= 0 {
					name = part[:i]
					value, err := strconv.ParseUint(part[i+1:], 10, 8)
					if nil != err {
						return fault.InvalidPreference
					}
					limit = int(value)
				}
				method := -1
				for m, n := range colourNames {
					if n == name {
						method = m
					}
				}
				if method < 0 {
					return fault.InvalidPreference
				}
				ok = p.SetColourMethodLimit(method, byte(limit), required)
			}
		default:
			for flag, name := range prefNames {
				if name == item {
					ok = p.SetPref(flag, required)
					break
				}
			}
		}
		if !ok && required {
			return fault.InvalidPreference
		}
	}
	return nil
}

func parseBandwidth(s string) (int64, error) {
	multiplier := int64(1)
	if n := len(s); n > 0 {
		switch s[n-1] {
		case 'K':
			multiplier = 1 << 10
		case 'M':
			multiplier = 1 << 20
		case 'G':
			multiplier = 1 << 30
		case 'T':
			multiplier = 1 << 40
		}
		if 1 != multiplier {
			s = s[:n-1]
		}
	}
	value, err := strconv.ParseInt(s, 10, 64)
	if nil != err || value <= 0 {
		return 0, fault.InvalidPreference
	}
	return value * multiplier, nil
}

// Write - the JPIP "pref" field body for the selected preference sets,
// -1 writes everything
func (p *Prefs) Write(relatedSets int) string {
	items := []string{}
	for _, mask := range prefSets {
		if 0 == relatedSets&mask {
			continue
		}
		for _, word := range []struct {
			flags  int
			suffix string
		}{
			{p.Preferred, ""},
			{p.Required, "/r"},
		} {
			flags := word.flags & mask
			if 0 == flags {
				continue
			}
			item := ""
			switch mask {
			case PrefMaxBandwidth:
				item = "mbw:" + strconv.FormatInt(p.MaxBandwidth, 10)
			case PrefBandwidthSlice:
				item = "slice:" + strconv.FormatUint(uint64(p.BandwidthSlice), 10)
			case PrefColourMethod:
				parts := []string{}
				for m, limit := range p.ColourMethLimits {
					if colourUnlimitedLimit != limit {
						parts = append(parts, colourNames[m]+"="+strconv.Itoa(int(limit)))
					}
				}
				item = "color-meth:" + strings.Join(parts, ";")
			default:
				item = prefNames[flags]
			}
			items = append(items, item+word.suffix)
		}
	}
	return strings.Join(items, ",")
}
