// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package messagebus

import (
	"github.com/bitmark-inc/jpipd/counter"
)

// internal constants
const (
	queueSize = 1000
)

// Message - a command with its parameter frames
type Message struct {
	Command    string
	Parameters [][]byte
}

// Queue - one bounded message queue
type Queue struct {
	c       chan Message
	dropped counter.Counter
}

// Bus - the queues of the process
var Bus = struct {
	Broadcast *Queue
}{
	Broadcast: New(queueSize),
}

// New - an empty queue holding up to size messages
func New(size int) *Queue {
	return &Queue{
		c: make(chan Message, size),
	}
}

// Send - queue a message, false if it was dropped
func (q *Queue) Send(command string, parameters ...[]byte) bool {
	select {
	case q.c <- Message{Command: command, Parameters: parameters}:
		return true
	default:
		q.dropped.Increment()
		return false
	}
}

// Chan - channel to read from
func (q *Queue) Chan() <-chan Message {
	return q.c
}

// Dropped - messages lost to a full queue
func (q *Queue) Dropped() uint64 {
	return q.dropped.Uint64()
}
