// SPDX-FileCopyrightText: Red Hat, Inc.
// SPDX-License-Identifier: LGPL-2.1-or-later

package stream

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwperina/sparse-stream/imageio"
)

func TestWriteHeaderSize(t *testing.T) {
	kinds := []string{KindMeta, KindData, KindZero, KindStop}
	values := []uint64{0, 1, 4096, 0x40100000, math.MaxUint64}

	for _, kind := range kinds {
		for _, start := range values {
			for _, length := range values {
				var buf bytes.Buffer
				require.NoError(t, WriteHeader(&buf, kind, start, length))
				assert.Equal(t, HeaderSize, buf.Len(),
					"header %q", buf.String())
			}
		}
	}
}

func TestWriteHeaderFormat(t *testing.T) {
	// The reference frame header from the format documentation.
	var buf bytes.Buffer
	require.NoError(t, WriteHeader(&buf, KindData, 0x40100000, 0x1000))
	assert.Equal(t, "data 0000000040100000 0000000000001000\r\n", buf.String())
}

func TestWriteHeaderBadKind(t *testing.T) {
	assert.Panics(t, func() {
		WriteHeader(&bytes.Buffer{}, "boom", 0, 0)
	})
}

func TestHeaderRoundTrip(t *testing.T) {
	kinds := []string{KindMeta, KindData, KindZero, KindStop}
	values := []uint64{0, 1, 511, 4096, 0x40100000, 1<<40 - 1, math.MaxUint64}

	for _, kind := range kinds {
		for _, start := range values {
			for _, length := range values {
				var buf bytes.Buffer
				require.NoError(t, WriteHeader(&buf, kind, start, length))

				k, s, l, err := ReadHeader(&buf)
				require.NoError(t, err)
				assert.Equal(t, kind, k)
				assert.Equal(t, start, s)
				assert.Equal(t, length, l)
			}
		}
	}
}

func TestReadHeaderMalformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"truncated", "data 00000000401"},
		{"unknown kind", "boom 0000000040100000 0000000000001000\r\n"},
		{"upper case kind", "DATA 0000000040100000 0000000000001000\r\n"},
		{"bad start", "data 00000000401000xx 0000000000001000\r\n"},
		{"bad length", "data 0000000040100000 00000000000010g0\r\n"},
		{"missing first space", "data+0000000040100000 0000000000001000\r\n"},
		{"missing second space", "data 0000000040100000+0000000000001000\r\n"},
		{"missing crlf", "data 0000000040100000 0000000000001000\n\n"},
		{"negative start", "data -000000040100000 0000000000001000\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, _, err := ReadHeader(strings.NewReader(tt.input))
			assert.ErrorIs(t, err, ErrMalformedFrame)
		})
	}
}

func TestExpectCRLF(t *testing.T) {
	assert.NoError(t, expectCRLF(strings.NewReader("\r\n")))
	assert.ErrorIs(t, expectCRLF(strings.NewReader("\n\r")), ErrMalformedFrame)
	assert.ErrorIs(t, expectCRLF(strings.NewReader("\r")), imageio.ErrShortIO)
	assert.ErrorIs(t, expectCRLF(strings.NewReader("")), imageio.ErrShortIO)
}

func TestParseMeta(t *testing.T) {
	meta, err := parseMeta([]byte(`{"virtual-size": 6442450944,
		"data-size": 1052672,
		"date": "2024-03-01T10:20:30.000000",
		"incremental": true,
		"new-key-from-future-version": {"ignored": true}}`))
	require.NoError(t, err)
	assert.Equal(t, uint64(6442450944), meta.VirtualSize)
	assert.Equal(t, uint64(1052672), meta.DataSize)
	assert.Equal(t, "2024-03-01T10:20:30.000000", meta.Date)
	assert.True(t, meta.Incremental)
}

func TestParseMetaMissingVirtualSize(t *testing.T) {
	_, err := parseMeta([]byte(`{"data-size": 0}`))
	assert.ErrorIs(t, err, ErrMalformedFrame)
}

func TestParseMetaBadJSON(t *testing.T) {
	_, err := parseMeta([]byte(`{"virtual-size": `))
	assert.ErrorIs(t, err, ErrMalformedFrame)
}
