// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package publish - broadcast served-window events on a ZeroMQ PUB
// socket for monitoring
package publish

import (
	"sync"

	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/jpipd/background"
	"github.com/bitmark-inc/jpipd/fault"
	"github.com/bitmark-inc/jpipd/zmqutil"
)

// Configuration - publishing section of the configuration file
//
// with no broadcast addresses nothing is published; the key files
// are optional and enable CURVE encryption for subscribers from the
// allowed addresses, or from anywhere if there are none
type Configuration struct {
	Broadcast  []string `gluamapper:"broadcast" json:"broadcast"`
	Allow      []string `gluamapper:"allow" json:"allow"`
	PrivateKey string   `gluamapper:"private_key" json:"private_key"`
	PublicKey  string   `gluamapper:"public_key" json:"public_key"`
}

// globals for background process
type publishData struct {
	sync.RWMutex

	log *logger.L

	brdc broadcaster

	background *background.T

	// set once during initialise
	initialised bool
}

// global data
var globalData publishData

// Initialise - start the broadcaster
func Initialise(configuration *Configuration) error {
	globalData.Lock()
	defer globalData.Unlock()

	if globalData.initialised {
		return fault.AlreadyInitialised
	}

	globalData.log = logger.New("publish")
	globalData.log.Info("starting…")

	if 0 == len(configuration.Broadcast) {
		globalData.log.Info("no broadcast addresses: disabled")
		return nil
	}

	privateKey := []byte(nil)
	publicKey := []byte(nil)
	if "" != configuration.PrivateKey {
		var err error
		privateKey, err = zmqutil.ReadPrivateKeyFile(configuration.PrivateKey)
		if nil != err {
			globalData.log.Errorf("read private key file: %q  error: %s", configuration.PrivateKey, err)
			return err
		}
		publicKey, err = zmqutil.ReadPublicKeyFile(configuration.PublicKey)
		if nil != err {
			globalData.log.Errorf("read public key file: %q  error: %s", configuration.PublicKey, err)
			return err
		}
	}

	if err := globalData.brdc.initialise(privateKey, publicKey, configuration.Broadcast, configuration.Allow); nil != err {
		return err
	}

	globalData.initialised = true

	globalData.log.Info("start background…")
	processes := background.Processes{
		&globalData.brdc,
	}
	globalData.background = background.Start(processes, globalData.log)

	return nil
}

// Finalise - stop the broadcaster
func Finalise() error {
	globalData.Lock()
	defer globalData.Unlock()

	if !globalData.initialised {
		return fault.NotInitialised
	}

	globalData.log.Info("shutting down…")
	globalData.log.Flush()

	globalData.background.Stop()
	globalData.initialised = false

	globalData.log.Info("finished")
	globalData.log.Flush()

	return nil
}
