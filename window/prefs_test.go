// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package window_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitmark-inc/jpipd/window"
)

func TestSetPrefExclusive(t *testing.T) {
	p := window.Prefs{}

	assert.True(t, p.SetPref(window.PrefFullWindow, false), "full")
	assert.True(t, p.SetPref(window.PrefProgressive, true), "progressive")
	assert.Equal(t, 0, p.Preferred&window.PrefWindowMask, "preferred cleared")
	assert.Equal(t, window.PrefProgressive, p.Required&window.PrefWindowMask, "required")

	assert.False(t, p.SetPref(window.PrefWindowMask, false), "mask is not an option")
	assert.False(t, p.SetPref(window.PrefMaxBandwidth, false), "needs a parameter")
}

func TestPrefsUpdate(t *testing.T) {
	p := window.Prefs{}
	p.SetPref(window.PrefConcise, false)
	p.SetMaxBandwidth(1000, false)

	src := window.Prefs{}
	src.SetPref(window.PrefLoose, true)
	src.SetPref(window.PrefCodestreamBackward, false)
	src.Denied = window.PrefPlaceholderOriginal

	changed := p.Update(&src)
	assert.Equal(t, window.PrefConcisenessMask|window.PrefCodestreamMask, changed, "changed sets")
	assert.Equal(t, window.PrefLoose, p.Required&window.PrefConcisenessMask, "loose required")
	assert.Equal(t, int64(1000), p.MaxBandwidth, "untouched set kept")

	assert.Equal(t, 0, p.Update(&src), "no change")

	other := window.Prefs{}
	p.Update(&other)
	assert.Equal(t, window.PrefPlaceholderOriginal, p.Denied, "denied accumulates")
	assert.False(t, p.SetPref(window.PrefPlaceholderOriginal, false), "denied option")
	assert.True(t, p.SetPref(window.PrefPlaceholderIncremental, false), "other option")
}

func TestPrefsText(t *testing.T) {
	p := window.Prefs{}
	require.NoError(t, p.Parse("fullwindow,concise/r,mbw:2M,slice:3,codeseq:interleaved,color-meth:enum=1;ricc=3,unknown"), "parse")

	assert.Equal(t, window.PrefFullWindow, p.Preferred&window.PrefWindowMask, "full window")
	assert.Equal(t, window.PrefConcise, p.Required&window.PrefConcisenessMask, "concise")
	assert.Equal(t, int64(2<<20), p.MaxBandwidth, "bandwidth")
	assert.Equal(t, uint32(3), p.BandwidthSlice, "slice")
	assert.Equal(t, window.PrefCodestreamInterleaved, p.Preferred&window.PrefCodestreamMask, "interleaved")

	assert.Equal(t, 2, p.ColourDescriptionPriority(window.ColourEnumerated, 0), "enum")
	assert.Equal(t, 0, p.ColourDescriptionPriority(window.ColourEnumerated, 2), "enum too approximate")
	assert.Equal(t, 0, p.ColourDescriptionPriority(window.ColourVendor, 0), "vendor not wanted")

	text := p.Write(-1)
	assert.Equal(t, "fullwindow,concise/r,codeseq:interleaved,mbw:2097152,slice:3,color-meth:enum=1;ricc=3", text, "written")

	again := window.Prefs{}
	require.NoError(t, again.Parse(text), "reparse")
	assert.Equal(t, p, again, "round trip")

	assert.Equal(t, "concise/r", p.Write(window.PrefConcisenessMask), "selected set")

	assert.Error(t, again.Parse("unknown/r"), "required unknown")
	assert.Error(t, again.Parse("mbw:x"), "bad bandwidth")
}
