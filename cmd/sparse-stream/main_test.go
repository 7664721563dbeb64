// SPDX-FileCopyrightText: Red Hat, Inc.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwperina/sparse-stream/imageio"
	imageiohttp "github.com/mwperina/sparse-stream/imageio/http"
)

func TestConnectURLUnsupported(t *testing.T) {
	_, err := connectURL("ftp://example.com/image")
	assert.Error(t, err)
}

func TestConnectURLHTTPS(t *testing.T) {
	// Connecting does not contact the server yet.
	b, err := connectURL("https://host:54322/images/ticket")
	require.NoError(t, err)
	defer b.Close()

	_, ok := b.(*imageiohttp.Backend)
	assert.True(t, ok)
}

func TestExactArgsUsage(t *testing.T) {
	err := exactArgs(1)(downloadCmd, nil)
	require.Error(t, err)

	var ue usageError
	assert.True(t, errors.As(err, &ue))

	assert.NoError(t, exactArgs(1)(downloadCmd, []string{"url"}))
}

func TestWriteExtents(t *testing.T) {
	res := imageio.NewExtentsWrapper([]*imageio.Extent{
		imageio.NewExtent(0, 4096, false, false),
		imageio.NewExtent(4096, 4096, true, false),
	})

	var buf bytes.Buffer
	require.NoError(t, writeExtents(&buf, res))

	expected := `[{"start": 0, "length": 4096, "zero": false},
 {"start": 4096, "length": 4096, "zero": true}]
`
	assert.Equal(t, expected, buf.String())
}

func TestWriteExtentsEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeExtents(&buf, imageio.NewExtentsWrapper(nil)))
	assert.Equal(t, "[]\n", buf.String())
}
