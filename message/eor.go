// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package message

import (
	"github.com/bitmark-inc/jpipd/fault"
)

// ErrEndOfResponse - returned by ReadHeader on an EOR message
var ErrEndOfResponse = fault.ProcessError("end of response")

// Reason - End-of-Response reason code
type Reason byte

// reason codes
const (
	ImageDone          Reason = 1
	WindowDone         Reason = 2
	WindowChange       Reason = 3
	ByteLimitReached   Reason = 4
	QualityLimit       Reason = 5
	SessionLimit       Reason = 6
	ResponseLimit      Reason = 7
	NonSpecifiedReason Reason = 0xff
)

// String - name of the reason
func (r Reason) String() string {
	switch r {
	case ImageDone:
		return "image-done"
	case WindowDone:
		return "window-done"
	case WindowChange:
		return "window-change"
	case ByteLimitReached:
		return "byte-limit"
	case QualityLimit:
		return "quality-limit"
	case SessionLimit:
		return "session-limit"
	case ResponseLimit:
		return "response-limit"
	default:
		return "non-specified"
	}
}

// AppendEOR - End-of-Response message: 0x00, reason, VBAS length, body
func AppendEOR(dst []byte, reason Reason, body []byte) []byte {
	dst = append(dst, 0, byte(reason))
	dst = AppendVBAS(dst, uint64(len(body)))
	return append(dst, body...)
}

// ReadEOR - decode an End-of-Response message
//
// returns the reason, the body and the bytes consumed
func ReadEOR(buffer []byte) (Reason, []byte, int, error) {
	if len(buffer) < 3 || 0 != buffer[0] {
		return 0, nil, 0, fault.InvalidMessageHeader
	}
	reason := Reason(buffer[1])
	length, n, err := ReadVBAS(buffer[2:])
	if nil != err {
		return 0, nil, 0, err
	}
	start := 2 + n
	end := start + int(length)
	if end > len(buffer) || end < start {
		return 0, nil, 0, fault.VBASTruncated
	}
	return reason, buffer[start:end], end, nil
}
