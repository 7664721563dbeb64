// SPDX-FileCopyrightText: Red Hat, Inc.
// SPDX-License-Identifier: LGPL-2.1-or-later

package imageio

import "errors"

var (
	// ErrUnsupportedContext is returned by Extents when the backend
	// cannot serve the requested enumeration context, for example dirty
	// extents on a transfer without a checkpoint.
	ErrUnsupportedContext = errors.New("unsupported extents context")

	// ErrShortIO means a source or sink ended before the expected
	// number of bytes was transferred.
	ErrShortIO = errors.New("short read or write")
)
