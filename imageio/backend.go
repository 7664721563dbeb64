// SPDX-FileCopyrightText: Red Hat, Inc.
// SPDX-License-Identifier: LGPL-2.1-or-later

package imageio

import "io"

// Extents enumeration contexts.
const (
	// ContextZero enumerates allocation: every extent is data or zero,
	// covering the entire image.
	ContextZero = "zero"

	// ContextDirty enumerates changes since the last checkpoint: same
	// coverage, each extent additionally carries the dirty flag.
	ContextDirty = "dirty"
)

// Backend exposes a disk image for transferring image data.
type Backend interface {

	// Size returns the size of the underlying disk image.
	Size() (uint64, error)

	// Extents returns image extents for the given context.
	Extents(context string) (ExtentsResult, error)

	// WriteTo streams length bytes starting at offset to w. The range is
	// copied in chunks, never materialized in memory.
	WriteTo(w io.Writer, offset, length uint64) error

	// ReadFrom consumes exactly length bytes from r and writes them to
	// the image starting at offset.
	ReadFrom(r io.Reader, offset, length uint64) error

	// Zero punches or records a zero range.
	Zero(offset, length uint64) error

	// Flush durably commits pending writes.
	Flush() error

	// Close the backend.
	Close()
}
