// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"fmt"
)

// printJson - a command result as indented JSON on the output stream,
// echoed to the error stream when verbose
func (m *metadata) printJson(result interface{}) error {
	b, err := json.MarshalIndent(result, "", "  ")
	if nil != err {
		return err
	}
	if m.verbose {
		fmt.Fprintf(m.e, "result: %d bytes of JSON\n", len(b))
	}
	_, err = fmt.Fprintf(m.w, "%s\n", b)
	return err
}
