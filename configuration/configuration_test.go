// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package configuration_test

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitmark-inc/jpipd/configuration"
	"github.com/bitmark-inc/jpipd/fault"
)

const testingDirName = "testing"

func TestMain(m *testing.M) {
	os.RemoveAll(testingDirName)
	os.Mkdir(testingDirName, 0o700)
	result := m.Run()
	os.RemoveAll(testingDirName)
	os.Exit(result)
}

// write a configuration file in its own directory
func writeConfiguration(t *testing.T, name string, text string) string {
	dir := filepath.Join(testingDirName, name)
	require.NoError(t, os.MkdirAll(dir, 0o700), "mkdir")
	fileName := filepath.Join(dir, "jpipd.conf")
	require.NoError(t, ioutil.WriteFile(fileName, []byte(text), 0o600), "write")
	return fileName
}

type sample struct {
	Name    string            `gluamapper:"name"`
	Count   int               `gluamapper:"count"`
	Enabled bool              `gluamapper:"enabled"`
	Listen  []string          `gluamapper:"listen"`
	Levels  map[string]string `gluamapper:"levels"`
	From    string            `gluamapper:"from"`
}

func TestParseConfigurationFile(t *testing.T) {
	os.Setenv("JPIPD_TEST_NAME", "from-environment")
	defer os.Unsetenv("JPIPD_TEST_NAME")

	fileName := writeConfiguration(t, "parse", `
local M = {}
M.name = os.getenv("JPIPD_TEST_NAME")
M.count = 2 * 21
M.enabled = true
M.listen = { "127.0.0.1:8080", "[::1]:8080" }
M.levels = { main = "info", server = "debug" }
M.from = arg["source"]
return M
`)

	s := sample{}
	err := configuration.ParseConfigurationFile(fileName, &s, map[string]string{"source": "command line"})
	require.NoError(t, err, "parse")

	assert.Equal(t, "from-environment", s.Name, "name")
	assert.Equal(t, 42, s.Count, "count")
	assert.True(t, s.Enabled, "enabled")
	assert.Equal(t, []string{"127.0.0.1:8080", "[::1]:8080"}, s.Listen, "listen")
	assert.Equal(t, map[string]string{"main": "info", "server": "debug"}, s.Levels, "levels")
	assert.Equal(t, "command line", s.From, "arg variable")
}

func TestParseConfigurationFileErrors(t *testing.T) {
	fileName := writeConfiguration(t, "errors", "return 17\n")

	s := sample{}
	assert.Equal(t, fault.InvalidStructPointer, configuration.ParseConfigurationFile(fileName, s, nil), "not a pointer")
	assert.Equal(t, fault.InvalidStructPointer, configuration.ParseConfigurationFile(fileName, (*sample)(nil), nil), "nil pointer")
	n := 0
	assert.Equal(t, fault.InvalidStructPointer, configuration.ParseConfigurationFile(fileName, &n, nil), "not a struct")

	assert.Equal(t, fault.ConfigurationNotTable, configuration.ParseConfigurationFile(fileName, &s, nil), "number result")

	missing := filepath.Join(testingDirName, "no-such-file.conf")
	assert.Equal(t, fault.ConfigurationFileNotFound, configuration.ParseConfigurationFile(missing, &s, nil), "missing file")

	broken := writeConfiguration(t, "broken", "return {\n")
	assert.Error(t, configuration.ParseConfigurationFile(broken, &s, nil), "syntax error")
}

func TestGetConfiguration(t *testing.T) {
	fileName := writeConfiguration(t, "jpipd", `
local M = {}
M.data_directory = "."
M.pidfile = "jpipd.pid"
M.targets = "images"
M.server = {
    listen = { "127.0.0.1:8080" },
    maximum_connections = 20,
    certificate = "server.crt",
    max_chunk_size = 2048,
    bandwidth = 100000,
}
M.publishing = {
    broadcast = { "127.0.0.1:2140" },
}
M.logging = {
    size = 4096,
    levels = { main = "info" },
}
return M
`)

	c, err := configuration.GetConfiguration(fileName, nil)
	require.NoError(t, err, "get configuration")

	dir, err := filepath.Abs(filepath.Dir(fileName))
	require.NoError(t, err, "abs")

	assert.Equal(t, dir, filepath.Clean(c.DataDirectory), "data directory")
	assert.Equal(t, filepath.Join(dir, "jpipd.pid"), c.PidFile, "pid file")
	assert.Equal(t, filepath.Join(dir, "images"), c.Targets, "targets")
	assert.DirExists(t, c.Targets, "targets created")

	assert.Equal(t, []string{"127.0.0.1:8080"}, c.Server.Listen, "listen")
	assert.Equal(t, uint64(20), c.Server.MaximumConnections, "connections")
	assert.Equal(t, 2048, c.Server.MaxChunkSize, "chunk size")
	assert.Equal(t, int64(100000), c.Server.Bandwidth, "bandwidth")
	assert.Equal(t, "/jpip", c.Server.Path, "default path")
	assert.Equal(t, 300, c.Server.SessionTimeout, "default session timeout")
	assert.Equal(t, filepath.Join(dir, "server.crt"), c.Server.Certificate, "certificate")
	assert.Equal(t, filepath.Join(dir, "jpipd.key"), c.Server.PrivateKey, "default key")

	assert.Equal(t, filepath.Join(dir, "publish.private"), c.Publishing.PrivateKey, "publish private key")
	assert.Equal(t, filepath.Join(dir, "publish.public"), c.Publishing.PublicKey, "publish public key")

	assert.Equal(t, filepath.Join(dir, "log"), c.Logging.Directory, "log directory")
	assert.Equal(t, "jpipd.log", c.Logging.File, "log file")
	assert.Equal(t, 4096, c.Logging.Size, "log size")
	assert.Equal(t, 10, c.Logging.Count, "default log count")
	assert.Equal(t, "info", c.Logging.Levels["main"], "log level")
}

func TestGetConfigurationErrors(t *testing.T) {
	blank := writeConfiguration(t, "blank", "return {}\n")
	_, err := configuration.GetConfiguration(blank, nil)
	assert.Equal(t, fault.InvalidDirectory, err, "no data directory")

	notDir := writeConfiguration(t, "not-dir", `return { data_directory = arg[0] }`)
	_, err = configuration.GetConfiguration(notDir, nil)
	assert.Equal(t, fault.InvalidDirectory, err, "data directory is a file")

	logPath := writeConfiguration(t, "log-path", `return { data_directory = ".", logging = { file = "sub/jpipd.log" } }`)
	_, err = configuration.GetConfiguration(logPath, nil)
	assert.Equal(t, fault.NotAPlainName, err, "log file with directory")
}

func TestEnsureAbsolute(t *testing.T) {
	assert.Equal(t, "/data/file", configuration.EnsureAbsolute("/data", "file"), "relative")
	assert.Equal(t, "/etc/file", configuration.EnsureAbsolute("/data", "/etc/file"), "absolute")
	assert.Equal(t, "/data/file", configuration.EnsureAbsolute("/data/x", "../file"), "cleaned")

	assert.False(t, configuration.EnsureFileExists(testingDirName), "directory")
	assert.False(t, configuration.EnsureFileExists(filepath.Join(testingDirName, "none")), "missing")
}
