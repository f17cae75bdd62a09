// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"

	"github.com/bitmark-inc/jpipd/cache"
	"github.com/bitmark-inc/jpipd/databin"
)

type classSummary struct {
	Databins int   `json:"databins"`
	Complete int   `json:"complete"`
	Bytes    int64 `json:"bytes"`
}

type streamSummary struct {
	Stream  int64                    `json:"stream"`
	Classes map[string]*classSummary `json:"classes"`
}

type inspectResult struct {
	FileName string          `json:"file_name"`
	TargetID string          `json:"target_id"`
	Databins int             `json:"databins"`
	Streams  []streamSummary `json:"streams"`
}

func runInspect(c *cli.Context) error {

	m := c.App.Metadata["config"].(*metadata)

	if 1 != c.NArg() {
		return fmt.Errorf("one cache file argument is required")
	}
	fileName := c.Args().Get(0)

	f, err := os.Open(fileName)
	if nil != err {
		return err
	}
	defer f.Close()

	if m.verbose {
		fmt.Fprintf(m.e, "loading: %s\n", fileName)
	}

	jc := cache.New()
	defer jc.Close()
	tid, err := jc.Load(f)
	if nil != err {
		return err
	}

	result := inspectResult{
		FileName: fileName,
		TargetID: tid,
		Databins: jc.NumDatabins(),
		Streams:  []streamSummary{},
	}
	for _, stream := range jc.Codestreams() {
		result.Streams = append(result.Streams, summarise(jc, stream))
	}
	return m.printJson(result)
}

// count the cached bins of each class in one codestream
func summarise(jc *cache.Cache, stream int64) streamSummary {
	s := streamSummary{
		Stream:  stream,
		Classes: make(map[string]*classSummary),
	}
	for class := databin.Precinct; class < databin.Undefined; class += 1 {
		summary := &classSummary{}
		for id := jc.NextMRUDatabin(class, stream, -1, false); id >= 0; id = jc.NextMRUDatabin(class, stream, id, false) {
			length, complete := jc.DatabinLength(class, stream, id)
			summary.Databins += 1
			summary.Bytes += length
			if complete {
				summary.Complete += 1
			}
		}
		if 0 != summary.Databins {
			s.Classes[class.String()] = summary
		}
	}
	return s
}
