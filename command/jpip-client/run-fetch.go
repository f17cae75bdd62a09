// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli"

	"github.com/bitmark-inc/jpipd/client"
	"github.com/bitmark-inc/jpipd/protocol"
	"github.com/bitmark-inc/jpipd/window"
)

const (
	defaultFetchTimeout = 30 * time.Second
	disconnectTimeout   = 2 * time.Second
)

type fetchResult struct {
	Target    string `json:"target"`
	TargetID  string `json:"target_id"`
	Received  uint64 `json:"received"`
	Databins  int    `json:"databins"`
	Completed bool   `json:"completed"`
	Status    string `json:"status"`
	Window    string `json:"window,omitempty"`
	Output    string `json:"output,omitempty"`
}

func runFetch(c *cli.Context) error {

	m := c.App.Metadata["config"].(*metadata)

	if 1 != c.NArg() {
		return fmt.Errorf("one URL argument is required")
	}
	u, err := client.CheckCompatibleURL(c.Args().Get(0), true)
	if nil != err {
		return err
	}

	// a window in the query is fetched once unless a cache
	// directory asks for an interactive session
	request := protocol.Request{}
	if err := request.Parse(u.Query); nil != err {
		return err
	}
	cacheDirectory := c.String("cache-directory")
	mode := client.ModeNonInteractive
	if "" != cacheDirectory {
		mode = client.ModeInteractive
	}
	transport := ""
	if c.Bool("channel") {
		transport = protocol.TransportHTTP
	}

	if m.verbose {
		fmt.Fprintf(m.e, "server: %s  request: %s  mode: %d\n", u.Server(), u.Request(), mode)
	}

	done := make(chan struct{}, 1)
	jpip := client.New()
	jpip.InstallNotifier(client.NotifierFunc(func() {
		select {
		case done <- struct{}{}:
		default:
		}
	}))

	queue, err := jpip.Connect(u.Server(), c.String("proxy"), u.Request(), transport, cacheDirectory, mode)
	if nil != err {
		return err
	}
	if client.ModeInteractive == mode {
		if err := jpip.PostWindow(&request.Window, queue, false, &request.Prefs); nil != err {
			jpip.Close()
			return err
		}
	}

	timeout := time.After(c.Duration("timeout"))
	finished := func() bool {
		if client.ModeInteractive == mode {
			return jpip.IsIdle(queue) || !jpip.IsAlive(queue)
		}
		return !jpip.IsAlive(queue)
	}

wait_loop:
	for !finished() {
		select {
		case <-done:
		case <-timeout:
			if m.verbose {
				fmt.Fprintf(m.e, "timed out: %s\n", jpip.Status(queue))
			}
			break wait_loop
		}
	}

	result := fetchResult{
		Target:   jpip.TargetName(),
		TargetID: jpip.TargetID(),
		Received: jpip.Received(),
		Status:   jpip.Status(queue),
	}
	served := window.Window{}
	served.Init()
	if flags, ok := jpip.WindowInProgress(&served, queue); ok {
		result.Completed = 0 != flags&client.StatusWindowCompleted
		result.Window = fmt.Sprintf("%dx%d at %d,%d size %dx%d",
			served.Resolution.X, served.Resolution.Y,
			served.Region.Pos.X, served.Region.Pos.Y,
			served.Region.Size.X, served.Region.Size.Y)
	}

	_ = jpip.Disconnect(false, disconnectTimeout, -1, true)

	if output := c.String("output"); "" != output {
		if err := saveCache(jpip, output); nil != err {
			jpip.Close()
			return err
		}
		result.Output = output
	}
	result.Databins = jpip.Cache().NumDatabins()

	if err := jpip.Close(); nil != err {
		return err
	}
	return m.printJson(result)
}

// write the client cache in cache file format
func saveCache(jpip *client.Client, fileName string) error {
	f, err := os.OpenFile(fileName, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if nil != err {
		return err
	}
	err = jpip.Cache().Save(f, jpip.TargetID())
	if e := f.Close(); nil == err {
		err = e
	}
	if nil != err {
		os.Remove(fileName)
	}
	return err
}
