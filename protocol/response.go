// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package protocol

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/bitmark-inc/jpipd/fault"
	"github.com/bitmark-inc/jpipd/window"
)

// response header names
const (
	HeaderTargetID   = "JPIP-tid"
	HeaderNewChannel = "JPIP-cnew"
	HeaderQueueID    = "JPIP-qid"
	HeaderFrameSize  = "JPIP-fsiz"
	HeaderOffset     = "JPIP-roff"
	HeaderSize       = "JPIP-rsiz"
	HeaderComponents = "JPIP-comps"
	HeaderStream     = "JPIP-stream"
	HeaderLayers     = "JPIP-layers"
	HeaderLength     = "JPIP-len"
	HeaderPref       = "JPIP-pref"
	ContentType      = "image/jpp-stream"
)

// Channel - the channel granted by a cnew request
type Channel struct {
	ID        string
	Path      string
	Transport string
}

// String - JPIP-cnew header value
func (c Channel) String() string {
	parts := []string{"cid=" + c.ID}
	if "" != c.Path {
		parts = append(parts, "path="+c.Path)
	}
	if "" != c.Transport {
		parts = append(parts, "transport="+c.Transport)
	}
	return strings.Join(parts, ",")
}

// ParseChannel - decode a JPIP-cnew header value
func ParseChannel(s string) (Channel, error) {
	c := Channel{}
	for _, part := range strings.Split(s, ",") {
		i := strings.IndexByte(part, '=')
		if i < 0 {
			return Channel{}, fault.InvalidResponse
		}
		value := part[i+1:]
		switch strings.TrimSpace(part[:i]) {
		case "cid":
			c.ID = value
		case "path":
			c.Path = value
		case "transport":
			c.Transport = value
		}
	}
	if "" == c.ID {
		return Channel{}, fault.InvalidResponse
	}
	return c, nil
}

// Response - the JPIP header values of a response
//
// window fields are only written when the server changed what the
// client asked for
type Response struct {
	TargetID string
	Channel  *Channel
	QueueID  int

	Modified bool
	Window   window.Window

	Length int
	Prefs  string
}

// Init - no headers
func (r *Response) Init() {
	r.TargetID = ""
	r.Channel = nil
	r.QueueID = -1
	r.Modified = false
	r.Window.Init()
	r.Length = -1
	r.Prefs = ""
}

// Write - set the headers of an HTTP reply
func (r *Response) Write(h http.Header) {
	h.Set("Content-Type", ContentType)
	if "" != r.TargetID {
		h.Set(HeaderTargetID, r.TargetID)
	}
	if nil != r.Channel {
		h.Set(HeaderNewChannel, r.Channel.String())
	}
	if r.QueueID >= 0 {
		h.Set(HeaderQueueID, strconv.Itoa(r.QueueID))
	}
	if r.Length >= 0 {
		h.Set(HeaderLength, strconv.Itoa(r.Length))
	}
	if "" != r.Prefs {
		h.Set(HeaderPref, r.Prefs)
	}
	if !r.Modified {
		return
	}
	w := &r.Window
	h.Set(HeaderFrameSize, strconv.Itoa(w.Resolution.X)+","+strconv.Itoa(w.Resolution.Y))
	if !w.Region.IsEmpty() {
		h.Set(HeaderOffset, strconv.Itoa(w.Region.Pos.X)+","+strconv.Itoa(w.Region.Pos.Y))
		h.Set(HeaderSize, strconv.Itoa(w.Region.Size.X)+","+strconv.Itoa(w.Region.Size.Y))
	}
	if !w.Components.IsEmpty() {
		h.Set(HeaderComponents, w.Components.String())
	}
	if !w.Codestreams.IsEmpty() {
		h.Set(HeaderStream, w.Codestreams.String())
	}
	if w.MaxLayers > 0 {
		h.Set(HeaderLayers, strconv.Itoa(w.MaxLayers))
	}
}

// Read - decode the headers of an HTTP reply
func (r *Response) Read(h http.Header) error {
	r.Init()
	r.TargetID = h.Get(HeaderTargetID)
	if s := h.Get(HeaderNewChannel); "" != s {
		c, err := ParseChannel(s)
		if nil != err {
			return err
		}
		r.Channel = &c
	}
	if s := h.Get(HeaderQueueID); "" != s {
		n, err := strconv.Atoi(s)
		if nil != err {
			return fault.InvalidResponse
		}
		r.QueueID = n
	}
	if s := h.Get(HeaderLength); "" != s {
		n, err := strconv.Atoi(s)
		if nil != err {
			return fault.InvalidResponse
		}
		r.Length = n
	}
	r.Prefs = h.Get(HeaderPref)

	w := &r.Window
	if s := h.Get(HeaderFrameSize); "" != s {
		c, err := parsePair(s)
		if nil != err {
			return fault.InvalidResponse
		}
		w.Resolution = c
		r.Modified = true
	}
	if s := h.Get(HeaderOffset); "" != s {
		c, err := parsePair(s)
		if nil != err {
			return fault.InvalidResponse
		}
		w.Region.Pos = c
		r.Modified = true
	}
	if s := h.Get(HeaderSize); "" != s {
		c, err := parsePair(s)
		if nil != err {
			return fault.InvalidResponse
		}
		w.Region.Size = c
		r.Modified = true
	}
	if s := h.Get(HeaderComponents); "" != s {
		if err := window.ParseRangeSet(s, &w.Components); nil != err {
			return fault.InvalidResponse
		}
		r.Modified = true
	}
	if s := h.Get(HeaderStream); "" != s {
		if err := window.ParseRangeSet(s, &w.Codestreams); nil != err {
			return fault.InvalidResponse
		}
		r.Modified = true
	}
	if s := h.Get(HeaderLayers); "" != s {
		n, err := strconv.Atoi(s)
		if nil != err || n < 0 {
			return fault.InvalidResponse
		}
		w.MaxLayers = n
		r.Modified = true
	}
	return nil
}
