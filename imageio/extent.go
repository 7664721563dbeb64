// SPDX-FileCopyrightText: Red Hat, Inc.
// SPDX-License-Identifier: LGPL-2.1-or-later

package imageio

// Extent describes allocation info for a byte range in a disk image.
type Extent struct {
	// Start is the offset of the extent from the start of the image.
	Start uint64 `json:"start"`

	// Length is the length of the extent.
	Length uint64 `json:"length"`

	// Zero means this byte range is read as zeroes. The extent may be
	// unallocated area or a zero cluster in a qcow2 image.
	Zero bool `json:"zero"`

	// Dirty means this byte range was modified since the last checkpoint.
	// Meaningful only when the extents were enumerated with ContextDirty.
	Dirty bool `json:"dirty"`
}

// NewExtent creates a new Extent.
func NewExtent(start, length uint64, zero, dirty bool) *Extent {
	return &Extent{start, length, zero, dirty}
}

// IsZero reports whether the extent reads as zeroes.
func (e *Extent) IsZero() bool {
	return e.Zero
}

// IsData reports whether the extent contains image data.
func (e *Extent) IsData() bool {
	return !e.Zero
}

// IsDirty reports whether the extent changed since the last checkpoint.
func (e *Extent) IsDirty() bool {
	return e.Dirty
}

// ExtentsResult iterates over extents.
type ExtentsResult interface {
	// Next returns true if there are more extents.
	Next() bool
	// Value returns the next extent.
	Value() *Extent
}

// ExtentsWrapper wraps []*Extent to provide the ExtentsResult interface.
type ExtentsWrapper struct {
	extents []*Extent
	next    int
}

// NewExtentsWrapper creates a new wrapper.
func NewExtentsWrapper(e []*Extent) *ExtentsWrapper {
	return &ExtentsWrapper{extents: e}
}

// Next returns true if there are more extents.
func (w *ExtentsWrapper) Next() bool {
	return w.next < len(w.extents)
}

// Value returns the next extent.
func (w *ExtentsWrapper) Value() *Extent {
	v := w.extents[w.next]
	w.next++
	return v
}
