// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package client_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitmark-inc/jpipd/client"
	"github.com/bitmark-inc/jpipd/fault"
)

func TestCheckCompatibleURL(t *testing.T) {
	items := []struct {
		url      string
		host     string
		port     string
		resource string
		query    string
		server   string
	}{
		{"jpip://example.com/image.jp2?fsiz=64,64", "example.com", "", "image.jp2", "fsiz=64,64", "example.com"},
		{"HTTP://[::1]:8080/a%20b", "::1", "8080", "a b", "", "[::1]:8080"},
		{"http://[10.1.2.3]/x", "10.1.2.3", "", "x", "", "10.1.2.3"},
		{"Jpip://10.0.0.1:80/jpip?target=a%2Cb", "10.0.0.1", "80", "jpip", "target=a,b", "10.0.0.1:80"},
		{"http://%6C%6Fcalhost/x", "localhost", "", "x", "", "localhost"},
		{"http://host/%zz", "host", "", "%zz", "", "host"},
	}
	for i, item := range items {
		u, err := client.CheckCompatibleURL(item.url, true)
		require.NoError(t, err, "%d: %s", i, item.url)
		assert.Equal(t, item.host, u.Host, "%d: host", i)
		assert.Equal(t, item.port, u.Port, "%d: port", i)
		assert.Equal(t, item.resource, u.Resource, "%d: resource", i)
		assert.Equal(t, item.query, u.Query, "%d: query", i)
		assert.Equal(t, item.server, u.Server(), "%d: server", i)
	}
}

func TestCheckCompatibleURLRequest(t *testing.T) {
	u, err := client.CheckCompatibleURL("jpip://host:8000/jpip?target=a%2Cb&fsiz=8,8", true)
	require.NoError(t, err)
	assert.Equal(t, "jpip?target=a%2Cb&fsiz=8,8", u.Request(), "raw query kept")
	assert.Equal(t, "jpip", u.Scheme)
}

func TestIncompatibleURL(t *testing.T) {
	bad := []string{
		"ftp://host/x",
		"host/x",
		"://host/x",
		"http:///x",
		"http://[::1/x",
		"http://[nonsense]/x",
		"http://[::1]x/y",
		"http://host:0/x",
		"http://host:99999/x",
		"http://host:port/x",
		"http://host",
		"http://host/",
	}
	for _, s := range bad {
		_, err := client.CheckCompatibleURL(s, true)
		assert.Equal(t, fault.IncompatibleURL, err, "url: %s", s)
	}

	u, err := client.CheckCompatibleURL("http://host", false)
	require.NoError(t, err, "resource optional")
	assert.Equal(t, "", u.Resource)
}
