// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package client_test

import (
	"bytes"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bitmark-inc/logger"
	"github.com/stretchr/testify/require"

	"github.com/bitmark-inc/jpipd/codestream"
	"github.com/bitmark-inc/jpipd/server"
	"github.com/bitmark-inc/jpipd/storage"
	"github.com/bitmark-inc/jpipd/target"
	"github.com/bitmark-inc/jpipd/window"
)

const (
	testingDirName = "testing"
	targetsDirName = testingDirName + "/targets"
	cacheDirName   = testingDirName + "/cache"
	targetName     = "sample"
)

func TestMain(m *testing.M) {
	os.RemoveAll(testingDirName)
	os.Mkdir(testingDirName, 0o700)

	logging := logger.Configuration{
		Directory: testingDirName,
		File:      "testing.log",
		Size:      1048576,
		Count:     10,
		Console:   false,
		Levels: map[string]string{
			logger.DefaultTag: "trace",
		},
	}
	_ = logger.Initialise(logging)

	result := m.Run()

	logger.Finalise()
	os.RemoveAll(testingDirName)
	os.Exit(result)
}

// one tile, three resolutions of one precinct each
func testStructure() *target.Structure {
	return &target.Structure{
		Image: window.Dims{
			Size: window.Coords{X: 64, Y: 64},
		},
		TileSize: window.Coords{X: 64, Y: 64},
		Components: []target.Component{
			{Subsampling: window.Coords{X: 1, Y: 1}, Levels: 2},
		},
		Layers:      3,
		Progression: target.LRCP,
	}
}

func packetBytes(tile int, component int, resolution int, index int64, layer int) []byte {
	return bytes.Repeat([]byte{byte(4*resolution + layer)}, 16*(layer+1))
}

type fixture struct {
	tid     string
	address string
	targets *server.Targets
	server  *server.Server
	http    *httptest.Server
}

func setup(t *testing.T) *fixture {
	os.RemoveAll(targetsDirName)
	os.RemoveAll(cacheDirName)
	require.NoError(t, os.MkdirAll(targetsDirName, 0o700), "mkdir targets")
	require.NoError(t, os.MkdirAll(cacheDirName, 0o700), "mkdir cache")

	data, err := codestream.Encode(testStructure(), packetBytes)
	require.NoError(t, err, "encode")
	c, err := codestream.Parse(data)
	require.NoError(t, err, "parse")

	a, err := storage.Open(filepath.Join(targetsDirName, targetName), storage.ReadWrite)
	require.NoError(t, err, "open archive")
	require.NoError(t, a.SetName(targetName), "set name")
	require.NoError(t, a.ImportCodestream(0, c), "import")
	tid := a.ID()
	a.Close()

	targets, err := server.NewTargets(targetsDirName)
	require.NoError(t, err, "targets")

	cfg := server.Configuration{
		MaximumConnections: 10,
		MaxChunkSize:       512,
		SessionTimeout:     60,
	}
	s, err := server.New(&cfg, targets)
	require.NoError(t, err, "server")

	h := httptest.NewServer(s.Handler())
	return &fixture{
		tid:     tid,
		address: strings.TrimPrefix(h.URL, "http://"),
		targets: targets,
		server:  s,
		http:    h,
	}
}

func (f *fixture) teardown() {
	f.http.Close()
	f.server.Close()
	f.targets.Close()
	os.RemoveAll(targetsDirName)
	os.RemoveAll(cacheDirName)
}

func waitFor(t *testing.T, what string, condition func() bool) {
	deadline := time.Now().Add(5 * time.Second)
	for !condition() {
		require.True(t, time.Now().Before(deadline), "timed out waiting for: %s", what)
		time.Sleep(10 * time.Millisecond)
	}
}

func frame(size int) *window.Window {
	w := &window.Window{}
	w.Init()
	w.Resolution = window.Coords{X: size, Y: size}
	return w
}
