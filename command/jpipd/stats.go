// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"runtime"
	"time"

	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/jpipd/server"
)

const (
	statsDelay = 60 * time.Second
	mega       = 1048576
)

// statistics - periodic log of memory and channel counts
type statistics struct {
	server *server.Server
}

func (st *statistics) Run(args interface{}, shutdown <-chan struct{}) {

	log := logger.New("stats")
	ticker := time.NewTicker(statsDelay)
	defer ticker.Stop()

loop:
	for {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)

		a := m.Alloc / mega
		t := m.TotalAlloc / mega
		s := m.Sys / mega
		log.Infof("allocated: %d M  cumulative: %d M  OS virtual: %d M", a, t, s)
		log.Infof("channels: %d  transferred: %d bytes", st.server.Channels(), st.server.Transferred())

		select {
		case <-shutdown:
			break loop
		case <-ticker.C:
		}
	}
}
