// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io/ioutil"
	"path/filepath"

	"github.com/urfave/cli"

	"github.com/bitmark-inc/jpipd/storage"
)

type archiveResult struct {
	Directory   string `json:"directory"`
	Name        string `json:"name"`
	TargetID    string `json:"target_id"`
	Codestreams []int  `json:"codestreams"`
}

func runArchive(c *cli.Context) error {

	m := c.App.Metadata["config"].(*metadata)

	if c.NArg() < 2 {
		return fmt.Errorf("a directory and at least one codestream file are required")
	}
	directory := c.Args().Get(0)
	files := c.Args()[1:]

	stream := c.Int("stream")
	if stream < 0 {
		return fmt.Errorf("stream: %d is negative", stream)
	}
	name := c.String("name")
	if "" == name {
		name = filepath.Base(filepath.Clean(directory))
	}

	a, err := storage.Open(directory, storage.ReadWrite)
	if nil != err {
		return err
	}
	defer a.Close()

	if err := a.SetName(name); nil != err {
		return err
	}

	for i, fileName := range files {
		data, err := ioutil.ReadFile(fileName)
		if nil != err {
			return err
		}
		if m.verbose {
			fmt.Fprintf(m.e, "import: %s  as codestream: %d  bytes: %d\n", fileName, stream+i, len(data))
		}
		if err := a.ImportFile(stream+i, data); nil != err {
			return fmt.Errorf("import: %q  error: %s", fileName, err)
		}
	}

	result := archiveResult{
		Directory:   directory,
		Name:        a.Name(),
		TargetID:    a.ID(),
		Codestreams: a.Codestreams(),
	}
	return m.printJson(result)
}
