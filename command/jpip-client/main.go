// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/bitmark-inc/exitwithstatus"
	"github.com/bitmark-inc/logger"
	"github.com/urfave/cli"
)

type metadata struct {
	verbose bool
	e       io.Writer
	w       io.Writer
}

// set by the linker: go build -ldflags "-X main.version=M.N" ./...
var version = "zero" // do not change this value

func main() {
	// ensure exit handler is first
	defer exitwithstatus.Handler()

	app := cli.NewApp()
	app.Name = "jpip-client"
	app.Usage = "fetch JPEG2000 imagery from a JPIP server"
	app.Version = version
	app.HideVersion = true

	app.Writer = os.Stdout
	app.ErrWriter = os.Stderr

	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "verbose, v",
			Usage: " verbose result",
		},
		cli.StringFlag{
			Name:  "log-directory, l",
			Value: filepath.Join(os.TempDir(), "jpip-client"),
			Usage: " write the log file to `DIR`",
		},
		cli.StringFlag{
			Name:  "log-level",
			Value: "info",
			Usage: " default log `LEVEL`",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:      "fetch",
			Usage:     "request a window of a target and report what arrived",
			ArgsUsage: "URL\n   jpip://HOST[:PORT]/RESOURCE?target=NAME[&fsiz=W,H&...]",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "proxy, p",
					Value: "",
					Usage: " HTTP proxy `HOST:PORT`",
				},
				cli.BoolFlag{
					Name:  "channel, c",
					Usage: " open a JPIP channel instead of stateless requests",
				},
				cli.StringFlag{
					Name:  "cache-directory, d",
					Value: "",
					Usage: " keep cached data for the target in `DIR`",
				},
				cli.StringFlag{
					Name:  "output, o",
					Value: "",
					Usage: " save the received data as a cache file `FILE`",
				},
				cli.DurationFlag{
					Name:  "timeout, t",
					Value: defaultFetchTimeout,
					Usage: " give up after `DURATION`",
				},
			},
			Action: runFetch,
		},
		{
			Name:      "inspect",
			Usage:     "list the contents of a cache file",
			ArgsUsage: "FILE",
			Flags:     []cli.Flag{},
			Action:    runInspect,
		},
		{
			Name:      "archive",
			Usage:     "import codestream files into a target archive",
			ArgsUsage: "DIRECTORY FILE...\n   (* = required)",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "name, n",
					Value: "",
					Usage: " target `NAME` reported to clients",
				},
				cli.IntFlag{
					Name:  "stream, s",
					Value: 0,
					Usage: " codestream index of the first file `N`",
				},
			},
			Action: runArchive,
		},
		{
			Name:      "version",
			Usage:     "display jpip-client version",
			ArgsUsage: " ",
			Action:    runVersion,
		},
	}

	app.Before = func(c *cli.Context) error {

		e := c.App.ErrWriter
		w := c.App.Writer
		verbose := c.GlobalBool("verbose")

		// to suppress logging for certain commands
		command := c.Args().Get(0)
		if "version" == command || "" == command || "help" == command || "h" == command {
			return nil
		}

		directory := c.GlobalString("log-directory")
		if err := os.MkdirAll(directory, 0o700); nil != err {
			return err
		}
		logging := logger.Configuration{
			Directory: directory,
			File:      "jpip-client.log",
			Size:      1048576,
			Count:     5,
			Console:   false,
			Levels: map[string]string{
				logger.DefaultTag: c.GlobalString("log-level"),
			},
		}
		if err := logger.Initialise(logging); nil != err {
			return err
		}
		if verbose {
			fmt.Fprintf(e, "log file: %s\n", filepath.Join(directory, logging.File))
		}

		c.App.Metadata = map[string]interface{}{
			"config": &metadata{
				verbose: verbose,
				e:       e,
				w:       w,
			},
		}
		return nil
	}

	app.After = func(c *cli.Context) error {
		if _, ok := c.App.Metadata["config"].(*metadata); ok {
			logger.Finalise()
		}
		return nil
	}

	err := app.Run(os.Args)
	if nil != err {
		exitwithstatus.Message("terminated with error: %s", err)
	}
}

func runVersion(c *cli.Context) error {
	fmt.Fprintf(c.App.Writer, "%s\n", version)
	return nil
}
