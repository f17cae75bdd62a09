// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package background_test

import (
	"fmt"
	"time"

	"github.com/bitmark-inc/jpipd/background"
)

type poller struct {
	count int
}

func Example() {

	proc := &poller{}

	p := background.Start(background.Processes{proc}, "cache")
	time.Sleep(10 * time.Millisecond)
	p.Stop()

	// Output:
	// start: cache
	// stop: cache
}

func (state *poller) Run(args interface{}, shutdown <-chan struct{}) {

	fmt.Printf("start: %s\n", args)

loop:
	for {
		select {
		case <-shutdown:
			break loop
		case <-time.After(time.Millisecond):
			state.count += 1
		}
	}

	fmt.Printf("stop: %s\n", args)
}
