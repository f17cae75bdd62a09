// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package message

import (
	"github.com/bitmark-inc/jpipd/databin"
	"github.com/bitmark-inc/jpipd/fault"
)

// Header - one JPIP message header
type Header struct {
	Class    databin.Class
	Stream   int64
	ID       int64
	Offset   int64
	Length   int64
	Final    bool  // the message ends at the last byte of the data-bin
	Extended bool  // Aux field present
	Aux      int64 // number of complete quality layers for extended precincts
}

// Key - the data-bin this message belongs to
func (h *Header) Key() databin.Key {
	return databin.NewKey(h.Class, h.Stream, h.ID)
}

// State - whether the next header may rely on the one before it
type State int

// coupling states
const (
	Decoupled State = iota
	Coupled
)

// Coupling - the differential coding state carried between headers
//
// the zero value is Decoupled with the JPIP defaults (precinct
// class, codestream 0), which is also what a decoder assumes at the
// start of a response
type Coupling struct {
	state  State
	class  int
	stream int64
}

// State - current coupling state
func (c Coupling) State() State {
	return c.state
}

// Decouple - forget the previous header
//
// the next header encoded from the result writes Class and CSn
// explicitly and so can be decoded without the messages before it
func (c Coupling) Decouple() Coupling {
	return Coupling{}
}

// bin-id indicator values
const (
	indicatorNone        = 1 // no Class, no CSn
	indicatorClass       = 2 // Class, no CSn
	indicatorClassStream = 3 // Class and CSn
)

// AppendHeader - encode a header onto dst
//
// returns the extended buffer and the coupling for the next header
func AppendHeader(dst []byte, h *Header, c Coupling) ([]byte, Coupling) {
	wireClass := h.Class.ToWire(h.Extended)
	stream := h.Stream
	if databin.Meta == h.Class && Coupled == c.state {
		stream = c.stream // codestream is irrelevant for meta data
	}

	indicator := byte(indicatorNone)
	if Decoupled == c.state || stream != c.stream {
		indicator = indicatorClassStream
	} else if wireClass != c.class {
		indicator = indicatorClass
	}

	dst = appendBinID(dst, uint64(h.ID), indicator, h.Final)
	if indicator >= indicatorClass {
		dst = AppendVBAS(dst, uint64(wireClass))
	}
	if indicatorClassStream == indicator {
		dst = AppendVBAS(dst, uint64(stream))
	}
	dst = AppendVBAS(dst, uint64(h.Offset))
	dst = AppendVBAS(dst, uint64(h.Length))
	if h.Extended {
		dst = AppendVBAS(dst, uint64(h.Aux))
	}

	return dst, Coupling{
		state:  Coupled,
		class:  wireClass,
		stream: stream,
	}
}

// HeaderLength - bytes needed to encode a header in the given state
func HeaderLength(h *Header, c Coupling) int {
	var scratch [4 * VBASMaximumBytes]byte
	b, _ := AppendHeader(scratch[:0], h, c)
	return len(b)
}

// MaximumHeaderLength - an upper bound that is independent of coupling
func MaximumHeaderLength(h *Header) int {
	return HeaderLength(h, Coupling{})
}

// ReadHeader - decode a header from the start of buffer
//
// returns the header, the bytes consumed and the coupling for the
// next header.  An End-of-Response message returns ErrEndOfResponse
func ReadHeader(buffer []byte, c Coupling) (*Header, int, Coupling, error) {
	if 0 == len(buffer) {
		return nil, 0, c, fault.VBASTruncated
	}
	if 0 == buffer[0] {
		return nil, 0, c, ErrEndOfResponse
	}

	id, indicator, final, n, err := readBinID(buffer)
	if nil != err {
		return nil, 0, c, err
	}
	if 0 == indicator {
		return nil, 0, c, fault.InvalidMessageHeader
	}
	count := n

	wireClass := c.class
	stream := c.stream
	if indicator >= indicatorClass {
		v, n, err := ReadVBAS(buffer[count:])
		if nil != err {
			return nil, 0, c, err
		}
		wireClass = int(v)
		count += n
	}
	if indicatorClassStream == indicator {
		v, n, err := ReadVBAS(buffer[count:])
		if nil != err {
			return nil, 0, c, err
		}
		stream = int64(v)
		count += n
	}

	class, extended := databin.FromWire(wireClass)
	if databin.Undefined == class {
		return nil, 0, c, fault.InvalidMessageHeader
	}

	offset, n, err := ReadVBAS(buffer[count:])
	if nil != err {
		return nil, 0, c, err
	}
	count += n

	length, n, err := ReadVBAS(buffer[count:])
	if nil != err {
		return nil, 0, c, err
	}
	count += n

	h := &Header{
		Class:    class,
		Stream:   stream,
		ID:       int64(id),
		Offset:   int64(offset),
		Length:   int64(length),
		Final:    final,
		Extended: extended,
	}
	if databin.Meta == class {
		h.Stream = 0
	}

	if extended {
		aux, n, err := ReadVBAS(buffer[count:])
		if nil != err {
			return nil, 0, c, err
		}
		h.Aux = int64(aux)
		count += n
	}

	next := Coupling{
		state:  Coupled,
		class:  wireClass,
		stream: stream,
	}
	return h, count, next, nil
}
