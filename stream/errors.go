// SPDX-FileCopyrightText: Red Hat, Inc.
// SPDX-License-Identifier: LGPL-2.1-or-later

package stream

import "errors"

var (
	// ErrMalformedFrame means a frame header or payload terminator did
	// not match the stream format.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrMissingMeta means the first frame of an uploaded stream was
	// not a meta frame.
	ErrMissingMeta = errors.New("missing meta frame")

	// ErrUnexpectedFrame means a frame kind that cannot appear after
	// the meta frame.
	ErrUnexpectedFrame = errors.New("unexpected frame")

	// ErrInvalidExtents means the backend returned extents that are not
	// sorted, contiguous and covering the entire image.
	ErrInvalidExtents = errors.New("invalid extents")

	// ErrDestinationTooSmall means the stream describes an image larger
	// than the destination.
	ErrDestinationTooSmall = errors.New("destination too small")
)
