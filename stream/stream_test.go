// SPDX-FileCopyrightText: Red Hat, Inc.
// SPDX-License-Identifier: LGPL-2.1-or-later

package stream

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

// frame is a decoded stream frame for inspection in tests.
type frame struct {
	kind   string
	start  uint64
	length uint64
	data   []byte
}

// parseStream strictly decodes a stream: one meta frame, any number of
// data and zero frames, one stop frame, nothing after the stop.
func parseStream(t *testing.T, stream []byte) (*Meta, []frame) {
	t.Helper()
	r := bytes.NewReader(stream)

	kind, start, length, err := ReadHeader(r)
	require.NoError(t, err)
	require.Equal(t, KindMeta, kind)
	require.Equal(t, uint64(0), start)

	body, err := readExact(r, length)
	require.NoError(t, err)
	require.NoError(t, expectCRLF(r))

	meta, err := parseMeta(body)
	require.NoError(t, err)

	var frames []frame
	for {
		kind, start, length, err := ReadHeader(r)
		require.NoError(t, err)

		if kind == KindStop {
			require.Equal(t, uint64(0), start)
			require.Equal(t, uint64(0), length)
			require.Equal(t, 0, r.Len(), "trailing bytes after stop frame")
			return meta, frames
		}

		f := frame{kind: kind, start: start, length: length}
		switch kind {
		case KindData:
			f.data, err = readExact(r, length)
			require.NoError(t, err)
			require.NoError(t, expectCRLF(r))
		case KindZero:
		default:
			t.Fatalf("unexpected frame kind %q", kind)
		}
		frames = append(frames, f)
	}
}

// buildStream encodes a stream from a meta payload and frames, for
// feeding the upload engine.
func buildStream(t *testing.T, meta *Meta, frames ...frame) []byte {
	t.Helper()
	var buf bytes.Buffer

	body, err := json.Marshal(meta)
	require.NoError(t, err)
	require.NoError(t, WriteHeader(&buf, KindMeta, 0, uint64(len(body))))
	buf.Write(body)
	buf.Write(crlf)

	for _, f := range frames {
		require.NoError(t, WriteHeader(&buf, f.kind, f.start, f.length))
		if f.kind == KindData {
			buf.Write(f.data)
			buf.Write(crlf)
		}
	}

	require.NoError(t, WriteHeader(&buf, KindStop, 0, 0))
	return buf.Bytes()
}

// pattern fills a byte range with a repeating, offset dependent
// pattern, so misplaced writes are caught by content comparison.
func pattern(data []byte, offset uint64) {
	for i := range data {
		data[i] = byte((offset + uint64(i)) % 251)
	}
}
