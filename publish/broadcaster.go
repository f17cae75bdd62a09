// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package publish

import (
	"github.com/bitmark-inc/logger"
	zmq "github.com/pebbe/zmq4"

	"github.com/bitmark-inc/jpipd/messagebus"
	"github.com/bitmark-inc/jpipd/zmqutil"
)

const (
	broadcasterZapDomain = "broadcaster"
)

type broadcaster struct {
	log    *logger.L
	socket *zmq.Socket
}

// initialise the broadcaster
func (brdc *broadcaster) initialise(privateKey []byte, publicKey []byte, broadcast []string, allow []string) error {
	log := logger.New("broadcaster")
	brdc.log = log

	log.Info("initialising…")

	socket, err := zmqutil.NewBind(log, zmq.PUB, broadcasterZapDomain, privateKey, publicKey, broadcast, allow)
	if nil != err {
		log.Errorf("bind error: %s", err)
		return err
	}
	brdc.socket = socket
	return nil
}

// Run - send queued events until shutdown
func (brdc *broadcaster) Run(args interface{}, shutdown <-chan struct{}) {
	log := brdc.log

	log.Info("starting…")

	queue := messagebus.Bus.Broadcast.Chan()

loop:
	for {
		select {
		case <-shutdown:
			break loop
		case item := <-queue:
			log.Debugf("sending: %s  frames: %d", item.Command, len(item.Parameters))
			brdc.process(&item)
		}
	}
	brdc.socket.Close()
	log.Infof("stopped  dropped: %d", messagebus.Bus.Broadcast.Dropped())
}

// send one multipart message, command first
func (brdc *broadcaster) process(item *messagebus.Message) {
	flags := zmq.SNDMORE | zmq.DONTWAIT
	if 0 == len(item.Parameters) {
		flags = zmq.DONTWAIT
	}
	_, err := brdc.socket.Send(item.Command, flags)
	if nil != err {
		brdc.log.Warnf("send: %s  error: %s", item.Command, err)
		return
	}
	last := len(item.Parameters) - 1
	for i, p := range item.Parameters {
		flags := zmq.SNDMORE | zmq.DONTWAIT
		if i == last {
			flags = zmq.DONTWAIT
		}
		_, err = brdc.socket.SendBytes(p, flags)
		if nil != err {
			brdc.log.Warnf("send: %s  frame: %d  error: %s", item.Command, i, err)
			return
		}
	}
}
