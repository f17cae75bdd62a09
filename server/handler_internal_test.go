// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package server

import (
	"bytes"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitmark-inc/jpipd/codestream"
	"github.com/bitmark-inc/jpipd/message"
	"github.com/bitmark-inc/jpipd/protocol"
	"github.com/bitmark-inc/jpipd/storage"
	"github.com/bitmark-inc/jpipd/target"
	"github.com/bitmark-inc/jpipd/window"
)

// packets large enough that one window needs several generation steps
func largePacket(tile int, component int, resolution int, index int64, layer int) []byte {
	return bytes.Repeat([]byte{byte(4*resolution + layer)}, 1024)
}

func makeLargeTarget(t *testing.T, dir string, name string) {
	s := &target.Structure{
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
	data, err := codestream.Encode(s, largePacket)
	require.NoError(t, err, "encode")
	c, err := codestream.Parse(data)
	require.NoError(t, err, "parse")

	a, err := storage.Open(filepath.Join(dir, name), storage.ReadWrite)
	require.NoError(t, err, "create")
	defer a.Close()
	require.NoError(t, a.SetName(name), "set name")
	require.NoError(t, a.ImportCodestream(0, c), "import")
}

func TestWaitingRequestEndsResponse(t *testing.T) {
	dir := filepath.Join("testing", "waiting")
	os.RemoveAll(dir)
	require.NoError(t, os.MkdirAll(dir, 0o700))
	defer os.RemoveAll(dir)

	makeLargeTarget(t, dir, "large")

	targets, err := NewTargets(dir)
	require.NoError(t, err, "targets")
	defer targets.Close()

	s, err := New(&Configuration{
		MaximumConnections: 10,
		MaxChunkSize:       512,
		SessionTimeout:     60,
	}, targets)
	require.NoError(t, err, "new server")
	defer s.Close()

	items := []struct {
		title   string
		waiting int
		reason  message.Reason
	}{
		{"alone on the channel", 0, message.ImageDone},
		{"later window queued", 1, message.WindowChange},
	}

	for _, item := range items {
		archive, err := targets.Acquire("large")
		require.NoError(t, err, "%s: acquire", item.title)
		sess, err := s.newSession("channel", "large", archive, false)
		require.NoError(t, err, "%s: session", item.title)

		req := protocol.Request{}
		require.NoError(t, req.Parse("cid=channel&fsiz=64,64"), "%s: parse", item.title)

		for i := 0; i < item.waiting; i += 1 {
			sess.waiting.Increment()
		}
		recorder := httptest.NewRecorder()
		sess.Lock()
		s.respond(recorder, &req, sess, false)
		sess.Unlock()
		for i := 0; i < item.waiting; i += 1 {
			sess.waiting.Decrement()
		}

		body := recorder.Body.Bytes()
		require.True(t, len(body) > 3, "%s: body", item.title)
		reason, _, used, err := message.ReadEOR(body[len(body)-3:])
		require.NoError(t, err, "%s: EOR", item.title)
		assert.Equal(t, 3, used, "%s: EOR length", item.title)
		assert.Equal(t, item.reason, reason, "%s: reason", item.title)

		sess.close(targets)
	}
	assert.Equal(t, 0, targets.InUse("large"), "archive released")
}
