// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package serve

import (
	"github.com/bitmark-inc/jpipd/message"
)

// Encoder - writes message headers
//
// MaximumHeaderLength must not be exceeded by AppendHeader for the
// same header in any coupling state
type Encoder interface {
	AppendHeader(dst []byte, h *message.Header, c message.Coupling) ([]byte, message.Coupling)
	MaximumHeaderLength(h *message.Header) int
}

// JPIPEncoder - the standard JPIP message header coding
type JPIPEncoder struct{}

// AppendHeader - encode h after dst
func (JPIPEncoder) AppendHeader(dst []byte, h *message.Header, c message.Coupling) ([]byte, message.Coupling) {
	return message.AppendHeader(dst, h, c)
}

// MaximumHeaderLength - longest encoding of h
func (JPIPEncoder) MaximumHeaderLength(h *message.Header) int {
	return message.MaximumHeaderLength(h)
}
