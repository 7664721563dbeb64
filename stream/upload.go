// SPDX-FileCopyrightText: Red Hat, Inc.
// SPDX-License-Identifier: LGPL-2.1-or-later

package stream

import (
	"fmt"
	"io"

	units "github.com/docker/go-units"

	"github.com/mwperina/sparse-stream/imageio"
)

// maxMetaSize limits the meta payload we are willing to buffer. Real
// meta payloads are under 200 bytes.
const maxMetaSize = 1024 * 1024

// Upload decodes a sparse stream from r and applies it to the image
// exposed by b. The stream must start with a meta frame describing an
// image that fits in the backend, and end with a stop frame. Pending
// writes are flushed once after the stop frame.
//
// Upload owns b and closes it on return.
func Upload(r io.Reader, b imageio.Backend) error {
	defer b.Close()

	meta, err := readMeta(r)
	if err != nil {
		return err
	}

	size, err := b.Size()
	if err != nil {
		return err
	}
	if meta.VirtualSize > size {
		return fmt.Errorf("%w: image size %d, destination size %d",
			ErrDestinationTooSmall, meta.VirtualSize, size)
	}

	log.Debugf("uploading image: size %s, data %s, incremental=%v",
		units.BytesSize(float64(meta.VirtualSize)),
		units.BytesSize(float64(meta.DataSize)), meta.Incremental)

	for {
		kind, start, length, err := ReadHeader(r)
		if err != nil {
			return err
		}

		switch kind {
		case KindZero:
			if err := b.Zero(start, length); err != nil {
				return err
			}
		case KindData:
			if err := b.ReadFrom(r, start, length); err != nil {
				return err
			}
			if err := expectCRLF(r); err != nil {
				return err
			}
		case KindStop:
			return b.Flush()
		default:
			return fmt.Errorf("%w: %q frame after meta", ErrUnexpectedFrame, kind)
		}
	}
}

// readMeta reads and decodes the meta frame that must open a stream.
func readMeta(r io.Reader) (*Meta, error) {
	kind, _, length, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}
	if kind != KindMeta {
		return nil, fmt.Errorf("%w: stream starts with %q frame", ErrMissingMeta, kind)
	}
	if length > maxMetaSize {
		return nil, fmt.Errorf("%w: meta payload of %d bytes", ErrMalformedFrame, length)
	}

	body, err := readExact(r, length)
	if err != nil {
		return nil, err
	}
	if err := expectCRLF(r); err != nil {
		return nil, err
	}

	return parseMeta(body)
}
