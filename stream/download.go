// SPDX-FileCopyrightText: Red Hat, Inc.
// SPDX-License-Identifier: LGPL-2.1-or-later

package stream

import (
	"encoding/json"
	"fmt"
	"io"

	units "github.com/docker/go-units"
	"github.com/sirupsen/logrus"

	"github.com/mwperina/sparse-stream/imageio"
)

var log = logrus.WithField("module", "stream")

// Download encodes the image exposed by b as a sparse stream written to
// w. With incremental, only extents changed since the last checkpoint
// are included, and the backend must support the dirty extents context.
//
// Download owns b and closes it on return.
func Download(w io.Writer, b imageio.Backend, incremental bool) error {
	defer b.Close()

	context := imageio.ContextZero
	if incremental {
		context = imageio.ContextDirty
	}

	res, err := b.Extents(context)
	if err != nil {
		return err
	}

	// Materialize the extents so data-size is known before the first
	// frame is written. The list is O(#extents), not O(bytes).
	extents, virtualSize, dataSize, err := collectExtents(res, incremental)
	if err != nil {
		return err
	}

	log.Debugf("downloading image: size %s, data %s, %d extents, incremental=%v",
		units.BytesSize(float64(virtualSize)), units.BytesSize(float64(dataSize)),
		len(extents), incremental)

	meta := newMeta(virtualSize, dataSize, incremental)
	body, err := json.Marshal(meta)
	if err != nil {
		return err
	}

	if err := WriteHeader(w, KindMeta, 0, uint64(len(body))); err != nil {
		return err
	}
	if _, err := w.Write(body); err != nil {
		return err
	}
	if _, err := w.Write(crlf); err != nil {
		return err
	}

	for _, e := range extents {
		if e.IsZero() {
			if err := WriteHeader(w, KindZero, e.Start, e.Length); err != nil {
				return err
			}
			continue
		}

		if err := WriteHeader(w, KindData, e.Start, e.Length); err != nil {
			return err
		}
		// The body is streamed from the backend in lockstep, one chunk
		// at a time. If the backend fails here the stream is truncated
		// without a stop frame, signaling the failure to the reader.
		if err := b.WriteTo(w, e.Start, e.Length); err != nil {
			return err
		}
		if _, err := w.Write(crlf); err != nil {
			return err
		}
	}

	return WriteHeader(w, KindStop, 0, 0)
}

// collectExtents drains res, validating that the extents are sorted,
// contiguous and start at offset zero. It returns the extents to emit,
// the virtual size covered by the full enumeration, and the number of
// data bytes the stream will carry. Zero length extents are dropped,
// and with incremental, clean extents are dropped after they were
// counted into the virtual size.
func collectExtents(res imageio.ExtentsResult, incremental bool) (
	[]*imageio.Extent, uint64, uint64, error) {

	var extents []*imageio.Extent
	var end, dataSize uint64

	for res.Next() {
		e := res.Value()
		if e.Length == 0 {
			continue
		}
		if e.Start != end {
			return nil, 0, 0, fmt.Errorf(
				"%w: extent at offset %d, expected offset %d",
				ErrInvalidExtents, e.Start, end)
		}
		end = e.Start + e.Length

		if incremental && !e.IsDirty() {
			continue
		}
		if e.IsData() {
			dataSize += e.Length
		}
		extents = append(extents, e)
	}

	return extents, end, dataSize, nil
}
