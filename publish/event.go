// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package publish

import (
	"encoding/json"

	"github.com/bitmark-inc/jpipd/messagebus"
)

// event commands
const (
	CommandServed  = "served"
	CommandChannel = "channel"
)

// Served - one answered request
type Served struct {
	Channel string `json:"channel,omitempty"`
	Target  string `json:"target"`
	Request string `json:"request"`
	Bytes   int    `json:"bytes"`
	Reason  string `json:"reason"`
}

// Channel - a channel opened or closed
type Channel struct {
	Channel string `json:"channel"`
	Target  string `json:"target"`
	Open    bool   `json:"open"`
}

// SendServed - queue a served event, false if it was dropped
func SendServed(e Served) bool {
	return send(CommandServed, e)
}

// SendChannel - queue a channel event, false if it was dropped
func SendChannel(e Channel) bool {
	return send(CommandChannel, e)
}

func send(command string, item interface{}) bool {
	data, err := json.Marshal(item)
	if nil != err {
		return false
	}
	return messagebus.Bus.Broadcast.Send(command, data)
}
