// SPDX-FileCopyrightText: Red Hat, Inc.
// SPDX-License-Identifier: LGPL-2.1-or-later

package stream

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwperina/sparse-stream/imageio"
	"github.com/mwperina/sparse-stream/imageio/mem"
)

// Downloading an image and uploading the stream to a fresh destination
// of the same size must reproduce the image byte for byte.
func TestRoundTrip(t *testing.T) {
	const size = 0x500000

	data := make([]byte, size)
	pattern(data[:0x100000], 0)
	pattern(data[0x300000:0x301000], 0x300000)

	src := mem.New(bytes.Clone(data))
	src.SetExtents(imageio.ContextZero, []*imageio.Extent{
		imageio.NewExtent(0, 0x100000, false, false),
		imageio.NewExtent(0x100000, 0x200000, true, false),
		imageio.NewExtent(0x300000, 0x1000, false, false),
		imageio.NewExtent(0x301000, 0x1ff000, true, false),
	})

	var buf bytes.Buffer
	require.NoError(t, Download(&buf, src, false))

	dst := mem.NewSized(size)
	require.NoError(t, Upload(bytes.NewReader(buf.Bytes()), dst))

	assert.Equal(t, data, dst.Data())
}

// A zero frame must zero the covered range even when the destination
// held stale data.
func TestRoundTripZeroPreservation(t *testing.T) {
	const size = 0x20000

	src := mem.NewSized(size)
	src.SetExtents(imageio.ContextZero, []*imageio.Extent{
		imageio.NewExtent(0, size, true, false),
	})

	var buf bytes.Buffer
	require.NoError(t, Download(&buf, src, false))

	dst := mem.New(bytes.Repeat([]byte{0xA5}, size))
	require.NoError(t, Upload(bytes.NewReader(buf.Bytes()), dst))

	assert.Equal(t, make([]byte, size), dst.Data())
}

// An incremental stream restored over the matching base state updates
// only the dirty ranges.
func TestRoundTripIncremental(t *testing.T) {
	const size = 0x30000

	current := make([]byte, size)
	pattern(current, 3)

	src := mem.New(bytes.Clone(current))
	src.SetExtents(imageio.ContextDirty, []*imageio.Extent{
		imageio.NewExtent(0, 0x10000, false, false),
		imageio.NewExtent(0x10000, 0x10000, false, true),
		imageio.NewExtent(0x20000, 0x10000, false, false),
	})

	var buf bytes.Buffer
	require.NoError(t, Download(&buf, src, true))

	// The destination holds the state of the last checkpoint: the
	// clean ranges match, the dirty range is stale.
	base := bytes.Clone(current)
	pattern(base[0x10000:0x20000], 99)

	dst := mem.New(base)
	require.NoError(t, Upload(bytes.NewReader(buf.Bytes()), dst))

	assert.Equal(t, current, dst.Data())
}
