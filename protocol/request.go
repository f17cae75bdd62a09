// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package protocol

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/bitmark-inc/jpipd/fault"
	"github.com/bitmark-inc/jpipd/model"
	"github.com/bitmark-inc/jpipd/window"
)

// request field names
const (
	FieldTarget     = "target"
	FieldSubtarget  = "subtarget"
	FieldTargetID   = "tid"
	FieldNewChannel = "cnew"
	FieldChannelID  = "cid"
	FieldClose      = "cclose"
	FieldQueueID    = "qid"
	FieldFrameSize  = "fsiz"
	FieldOffset     = "roff"
	FieldSize       = "rsiz"
	FieldComponents = "comps"
	FieldStream     = "stream"
	FieldContext    = "context"
	FieldLayers     = "layers"
	FieldLength     = "len"
	FieldModel      = "model"
	FieldPref       = "pref"
	FieldMetareq    = "metareq"
	FieldType       = "type"
	FieldWait       = "wait"
	FieldAlign      = "align"
)

// the only channel transport supported
const TransportHTTP = "http"

// the only return type supported
const TypeJPPStream = "jpp-stream"

// fields in the order they are written
var fieldOrder = []string{
	FieldTarget,
	FieldSubtarget,
	FieldTargetID,
	FieldChannelID,
	FieldNewChannel,
	FieldClose,
	FieldQueueID,
	FieldType,
	FieldFrameSize,
	FieldOffset,
	FieldSize,
	FieldComponents,
	FieldStream,
	FieldContext,
	FieldLayers,
	FieldLength,
	FieldMetareq,
	FieldModel,
	FieldPref,
	FieldAlign,
	FieldWait,
}

// Request - one JPIP request
//
// an empty string or a negative number is an absent field, except
// for Length where -1 is absent and 0 asks for no data at all
type Request struct {
	Target    string
	Subtarget string
	TargetID  string

	NewChannel []string
	ChannelID  string
	Close      []string
	QueueID    int

	Type   string
	Wait   bool
	Align  bool
	Length int

	Window window.Window
	Prefs  window.Prefs
	Model  string
}

// Init - an empty request
func (r *Request) Init() {
	r.Target = ""
	r.Subtarget = ""
	r.TargetID = ""
	r.NewChannel = nil
	r.ChannelID = ""
	r.Close = nil
	r.QueueID = -1
	r.Type = ""
	r.Wait = false
	r.Align = false
	r.Length = -1
	r.Window.Init()
	r.Prefs.Init()
	r.Model = ""
}

// IsStateless - true if the request neither opens nor uses a channel
func (r *Request) IsStateless() bool {
	return "" == r.ChannelID && 0 == len(r.NewChannel)
}

// Parse - replace the request by the fields of a query string
func (r *Request) Parse(query string) error {
	values, err := url.ParseQuery(query)
	if nil != err {
		return fault.InvalidRequestField
	}
	return r.ParseValues(values)
}

// ParseValues - replace the request by decoded query fields
func (r *Request) ParseValues(values url.Values) error {
	r.Init()
	for name, v := range values {
		if 0 == len(v) {
			continue
		}
		if err := r.set(name, v[len(v)-1]); nil != err {
			return err
		}
	}
	w := &r.Window
	if w.Resolution.X <= 0 || w.Resolution.Y <= 0 {
		if !w.Region.IsEmpty() {
			return fault.InvalidRequestField
		}
		return nil
	}

	// an offset without a size extends to the frame edge
	if (0 != w.Region.Pos.X || 0 != w.Region.Pos.Y) && w.Region.IsEmpty() {
		w.Region.Size.X = w.Resolution.X - w.Region.Pos.X
		w.Region.Size.Y = w.Resolution.Y - w.Region.Pos.Y
		if w.Region.IsEmpty() {
			return fault.InvalidRequestField
		}
	}
	return nil
}

func (r *Request) set(name string, value string) error {
	w := &r.Window
	switch name {
	case FieldTarget:
		r.Target = value
	case FieldSubtarget:
		r.Subtarget = value
	case FieldTargetID:
		r.TargetID = value
	case FieldNewChannel:
		r.NewChannel = strings.Split(value, ",")
	case FieldChannelID:
		r.ChannelID = value
	case FieldClose:
		r.Close = strings.Split(value, ",")
	case FieldQueueID:
		n, err := parseCount(value)
		if nil != err {
			return err
		}
		r.QueueID = n
	case FieldType:
		r.Type = value
	case FieldWait:
		yes, err := parseYesNo(value)
		if nil != err {
			return err
		}
		r.Wait = yes
	case FieldAlign:
		yes, err := parseYesNo(value)
		if nil != err {
			return err
		}
		r.Align = yes
	case FieldLength:
		n, err := parseCount(value)
		if nil != err {
			return err
		}
		r.Length = n
	case FieldFrameSize:
		parts := strings.Split(value, ",")
		if len(parts) < 2 || len(parts) > 3 {
			return fault.InvalidRequestField
		}
		x, err := parseCount(parts[0])
		if nil != err {
			return err
		}
		y, err := parseCount(parts[1])
		if nil != err {
			return err
		}
		w.Resolution = window.Coords{X: x, Y: y}
		w.RoundDirection = window.RoundDown
		if 3 == len(parts) {
			switch parts[2] {
			case "round-down":
			case "round-up":
				w.RoundDirection = window.RoundUp
			case "closest":
				w.RoundDirection = window.RoundClosest
			default:
				return fault.InvalidRequestField
			}
		}
	case FieldOffset:
		c, err := parsePair(value)
		if nil != err {
			return err
		}
		w.Region.Pos = c
	case FieldSize:
		c, err := parsePair(value)
		if nil != err {
			return err
		}
		w.Region.Size = c
	case FieldComponents:
		return window.ParseRangeSet(value, &w.Components)
	case FieldStream:
		return window.ParseRangeSet(value, &w.Codestreams)
	case FieldContext:
		return w.ParseContexts(value)
	case FieldLayers:
		n, err := parseCount(value)
		if nil != err {
			return err
		}
		w.MaxLayers = n
	case FieldMetareq:
		return w.ParseMetareq(value)
	case FieldModel:
		r.Model = value
	case FieldPref:
		return r.Prefs.Parse(value)
	default:
		// unknown fields are ignored
	}
	return nil
}

// Values - the non-empty fields of the request
func (r *Request) Values() url.Values {
	values := url.Values{}
	add := func(name string, value string) {
		if "" != value {
			values.Set(name, value)
		}
	}
	w := &r.Window

	add(FieldTarget, r.Target)
	add(FieldSubtarget, r.Subtarget)
	add(FieldTargetID, r.TargetID)
	add(FieldNewChannel, strings.Join(r.NewChannel, ","))
	add(FieldChannelID, r.ChannelID)
	add(FieldClose, strings.Join(r.Close, ","))
	if r.QueueID >= 0 {
		add(FieldQueueID, strconv.Itoa(r.QueueID))
	}
	add(FieldType, r.Type)
	if r.Wait {
		add(FieldWait, "yes")
	}
	if r.Align {
		add(FieldAlign, "yes")
	}
	if r.Length >= 0 {
		add(FieldLength, strconv.Itoa(r.Length))
	}
	if w.Resolution.X > 0 && w.Resolution.Y > 0 {
		s := strconv.Itoa(w.Resolution.X) + "," + strconv.Itoa(w.Resolution.Y)
		switch w.RoundDirection {
		case window.RoundUp:
			s += ",round-up"
		case window.RoundClosest:
			s += ",closest"
		}
		add(FieldFrameSize, s)
		if !w.Region.IsEmpty() {
			add(FieldOffset, strconv.Itoa(w.Region.Pos.X)+","+strconv.Itoa(w.Region.Pos.Y))
			add(FieldSize, strconv.Itoa(w.Region.Size.X)+","+strconv.Itoa(w.Region.Size.Y))
		}
	}
	add(FieldComponents, w.Components.String())
	add(FieldStream, w.Codestreams.String())
	add(FieldContext, w.ContextsString(";", false))
	if w.MaxLayers > 0 {
		add(FieldLayers, strconv.Itoa(w.MaxLayers))
	}
	add(FieldMetareq, w.MetareqString())
	add(FieldModel, r.Model)
	add(FieldPref, r.Prefs.Write(-1))
	return values
}

// Encode - the query string, fields in a fixed order
func (r *Request) Encode() string {
	values := r.Values()
	parts := make([]string, 0, len(values))
	for _, name := range fieldOrder {
		if v, ok := values[name]; ok {
			parts = append(parts, name+"="+escape(v[0]))
		}
	}
	return strings.Join(parts, "&")
}

// CacheModel - the model field as cache-model instructions
func (r *Request) CacheModel(m *model.Model) error {
	m.Init(r.IsStateless())
	if "" == r.Model {
		return nil
	}
	return ParseModel(r.Model, m)
}

// query escaping that leaves the JPIP punctuation readable
func escape(s string) string {
	e := url.QueryEscape(s)
	return strings.NewReplacer(
		"%2C", ",",
		"%3A", ":",
		"%3B", ";",
		"%3C", "<",
		"%3E", ">",
		"%5B", "[",
		"%5D", "]",
		"%2A", "*",
		"%21", "!",
		"%2F", "/",
	).Replace(e)
}

func parseCount(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if nil != err || n < 0 {
		return 0, fault.InvalidRequestField
	}
	return n, nil
}

func parsePair(s string) (window.Coords, error) {
	parts := strings.Split(s, ",")
	if 2 != len(parts) {
		return window.Coords{}, fault.InvalidRequestField
	}
	x, err := parseCount(parts[0])
	if nil != err {
		return window.Coords{}, err
	}
	y, err := parseCount(parts[1])
	if nil != err {
		return window.Coords{}, err
	}
	return window.Coords{X: x, Y: y}, nil
}

func parseYesNo(s string) (bool, error) {
	switch s {
	case "yes":
		return true, nil
	case "no":
		return false, nil
	default:
		return false, fault.InvalidRequestField
	}
}
