// SPDX-FileCopyrightText: Red Hat, Inc.
// SPDX-License-Identifier: LGPL-2.1-or-later

// Package mem provides a memory backed image backend. It implements
// the full backend capability set against a byte slice and records the
// calls it serves, which makes it the reference backend for testing
// the streaming engines without a server.
package mem

import (
	"fmt"
	"io"

	"github.com/mwperina/sparse-stream/imageio"
)

// chunkSize bounds the buffer used by WriteTo and ReadFrom so that
// streaming a large range never materializes it.
const chunkSize = 1024 * 1024

// Backend is a disk image stored in memory.
type Backend struct {
	data    []byte
	extents map[string][]*imageio.Extent
	log     []string
	closed  int
}

// New returns a backend holding data. Without configured extents the
// image is reported as a single data extent.
func New(data []byte) *Backend {
	return &Backend{
		data:    data,
		extents: make(map[string][]*imageio.Extent),
	}
}

// NewSized returns a zeroed backend of the given size.
func NewSized(size uint64) *Backend {
	return New(make([]byte, size))
}

// SetExtents configures the extents returned for the given context.
// The engines validate contiguity, so tests may configure broken
// layouts on purpose.
func (b *Backend) SetExtents(context string, extents []*imageio.Extent) {
	b.extents[context] = extents
}

// Size returns the image size.
func (b *Backend) Size() (uint64, error) {
	return uint64(len(b.data)), nil
}

// Extents returns the configured extents for context. Without
// configuration, the zero context reports one data extent covering the
// image, and the dirty context is unsupported.
func (b *Backend) Extents(context string) (imageio.ExtentsResult, error) {
	if extents, ok := b.extents[context]; ok {
		return imageio.NewExtentsWrapper(extents), nil
	}
	if context == imageio.ContextZero {
		var extents []*imageio.Extent
		if len(b.data) > 0 {
			extents = []*imageio.Extent{
				imageio.NewExtent(0, uint64(len(b.data)), false, false),
			}
		}
		return imageio.NewExtentsWrapper(extents), nil
	}
	return nil, fmt.Errorf("%w: %q", imageio.ErrUnsupportedContext, context)
}

// WriteTo streams the range to w in chunks.
func (b *Backend) WriteTo(w io.Writer, offset, length uint64) error {
	if err := b.check(offset, length); err != nil {
		return err
	}
	for length > 0 {
		n := min(length, chunkSize)
		if _, err := w.Write(b.data[offset : offset+n]); err != nil {
			return err
		}
		offset += n
		length -= n
	}
	return nil
}

// ReadFrom consumes exactly length bytes from r into the range.
func (b *Backend) ReadFrom(r io.Reader, offset, length uint64) error {
	if err := b.check(offset, length); err != nil {
		return err
	}
	b.logf("write %d %d", offset, length)
	for length > 0 {
		n := min(length, chunkSize)
		if _, err := io.ReadFull(r, b.data[offset:offset+n]); err != nil {
			return fmt.Errorf("%w: reading data at offset %d: %s",
				imageio.ErrShortIO, offset, err)
		}
		offset += n
		length -= n
	}
	return nil
}

// Zero zeroes the range.
func (b *Backend) Zero(offset, length uint64) error {
	if err := b.check(offset, length); err != nil {
		return err
	}
	b.logf("zero %d %d", offset, length)
	clear(b.data[offset : offset+length])
	return nil
}

// Flush records a flush. The data is already durable.
func (b *Backend) Flush() error {
	b.logf("flush")
	return nil
}

// Close marks the backend closed. The data stays readable so tests
// can inspect the final image state.
func (b *Backend) Close() {
	b.closed++
}

// Data returns the image bytes.
func (b *Backend) Data() []byte {
	return b.data
}

// Log returns the mutating calls served so far, in order, formatted as
// "write OFFSET LENGTH", "zero OFFSET LENGTH" and "flush".
func (b *Backend) Log() []string {
	return b.log
}

// Closed returns how many times the backend was closed. The engines
// must close exactly once.
func (b *Backend) Closed() int {
	return b.closed
}

func (b *Backend) check(offset, length uint64) error {
	if offset+length > uint64(len(b.data)) || offset+length < offset {
		return fmt.Errorf("range [%d, %d) out of image bounds [0, %d)",
			offset, offset+length, len(b.data))
	}
	return nil
}

func (b *Backend) logf(format string, args ...interface{}) {
	b.log = append(b.log, fmt.Sprintf(format, args...))
}
