// SPDX-FileCopyrightText: Red Hat, Inc.
// SPDX-License-Identifier: LGPL-2.1-or-later

// Package nbd exposes a disk image served by a Network Block Device
// (NBD) server.
package nbd

import (
	"fmt"
	"io"
	"syscall"

	"libguestfs.org/libnbd"

	"github.com/mwperina/sparse-stream/imageio"
	"github.com/mwperina/sparse-stream/imageio/units"
)

const (
	// The NBD protocol allows up to 2**32 - 1 (4 GiB), but large
	// requests can be slow, so we limit the size.
	maxExtent = 1 * units.GiB

	// Size of a single read or write on the handle.
	bufferSize = 1 * units.MiB
)

// Backend exposes a disk image served by an NBD server.
type Backend struct {
	h   *libnbd.Libnbd
	buf []byte
}

// Connect returns a Backend connected to the NBD URI. Caller should
// close the backend when done.
func Connect(uri string) (*Backend, error) {
	h, err := create()
	if err != nil {
		return nil, err
	}

	if err := h.ConnectUri(uri); err != nil {
		h.Close()
		return nil, err
	}

	return newBackend(h), nil
}

// ConnectFile returns a Backend for a local image file, served by a
// qemu-nbd child process over a socket activation socket.
func ConnectFile(path, format string) (*Backend, error) {
	h, err := create()
	if err != nil {
		return nil, err
	}

	args := []string{
		"qemu-nbd",
		"--format=" + format,
		"--cache=writeback",
		"--discard=unmap",
		path,
	}
	if err := h.ConnectSystemdSocketActivation(args); err != nil {
		h.Close()
		return nil, err
	}

	return newBackend(h), nil
}

func create() (*libnbd.Libnbd, error) {
	h, err := libnbd.Create()
	if err != nil {
		return nil, err
	}

	if err := h.AddMetaContext("base:allocation"); err != nil {
		h.Close()
		return nil, err
	}

	return h, nil
}

func newBackend(h *libnbd.Libnbd) *Backend {
	return &Backend{h: h, buf: make([]byte, bufferSize)}
}

// Size returns the image size.
func (b *Backend) Size() (uint64, error) {
	return b.h.GetSize()
}

// Extents returns all image extents. The NBD protocol supports getting
// partial extents, but the engines always want full coverage.
//
// Only the zero context is supported. Dirty extents require a
// checkpoint, which lives in the imageio service, not in the NBD
// server.
func (b *Backend) Extents(context string) (imageio.ExtentsResult, error) {
	if context != imageio.ContextZero {
		return nil, fmt.Errorf("%w: %q", imageio.ErrUnsupportedContext, context)
	}

	size, err := b.Size()
	if err != nil {
		return nil, err
	}

	result := &ExtentsResult{}

	for offset := uint64(0); offset < size; offset += maxExtent {
		length := min(size-offset, maxExtent)
		entries, err := b.blockStatus(offset, length)
		if err != nil {
			return nil, err
		}
		result.entries = append(result.entries, entries...)
	}

	return result, nil
}

// WriteTo streams length bytes starting at offset to w.
func (b *Backend) WriteTo(w io.Writer, offset, length uint64) error {
	for length > 0 {
		n := min(length, uint64(len(b.buf)))
		if err := b.h.Pread(b.buf[:n], offset, nil); err != nil {
			return err
		}
		if _, err := w.Write(b.buf[:n]); err != nil {
			return err
		}
		offset += n
		length -= n
	}
	return nil
}

// ReadFrom consumes exactly length bytes from r and writes them at
// offset.
func (b *Backend) ReadFrom(r io.Reader, offset, length uint64) error {
	for length > 0 {
		n := min(length, uint64(len(b.buf)))
		if _, err := io.ReadFull(r, b.buf[:n]); err != nil {
			return fmt.Errorf("%w: reading data at offset %d: %s",
				imageio.ErrShortIO, offset, err)
		}
		if err := b.h.Pwrite(b.buf[:n], offset, nil); err != nil {
			return err
		}
		offset += n
		length -= n
	}
	return nil
}

// Zero zeroes the range, stepping so progress is visible even on slow
// storage.
func (b *Backend) Zero(offset, length uint64) error {
	for length > 0 {
		n := min(length, maxExtent)
		if err := b.h.Zero(n, offset, nil); err != nil {
			return err
		}
		offset += n
		length -= n
	}
	return nil
}

// Flush commits pending writes to storage.
func (b *Backend) Flush() error {
	return b.h.Flush(nil)
}

// Close closes the connection to the NBD server. The Backend cannot be
// used after closing the connection.
func (b *Backend) Close() {
	b.h.Shutdown(nil)
	b.h.Close()
}

func (b *Backend) blockStatus(offset, length uint64) ([]uint32, error) {
	var result []uint32

	cb := func(metacontext string, offset uint64, e []uint32, error *int) int {
		if *error != 0 {
			panic("expected *error == 0")
		}
		if metacontext == "base:allocation" {
			result = e
		}
		return 0
	}

	// BlockStatus may fail randomly, looks like bug in libnbd.
	// https://listman.redhat.com/archives/libguestfs/2021-October/msg00113.html
	for {
		err := b.h.BlockStatus(length, offset, cb, nil)
		if err == nil {
			break
		}
		if err.(*libnbd.LibnbdError).Errno != syscall.EINTR {
			return nil, err
		}
	}

	return result, nil
}

// ExtentsResult iterates over extents from the NBD server, converting
// NBD pairs (length, flags) to *imageio.Extent and merging consecutive
// extents with the same zero flag, the way the imageio server does.
type ExtentsResult struct {
	// {length, flags, length, flags, ...}
	entries []uint32

	// Start of the next value to return.
	start uint64

	// Index of the next pair in entries.
	next int
}

// Next returns true if there are more values.
func (r *ExtentsResult) Next() bool {
	return r.next < len(r.entries)-1
}

// Value returns the next extent.
func (r *ExtentsResult) Value() *imageio.Extent {
	length := uint64(r.entries[r.next])
	zero := isZero(r.entries[r.next+1])
	r.next += 2

	// Merge with following pairs reading the same way.
	for r.Next() && isZero(r.entries[r.next+1]) == zero {
		length += uint64(r.entries[r.next])
		r.next += 2
	}

	res := imageio.NewExtent(r.start, length, zero, false)
	r.start += length

	return res
}

func isZero(flags uint32) bool {
	return flags&libnbd.STATE_ZERO == libnbd.STATE_ZERO
}
