// SPDX-FileCopyrightText: Red Hat, Inc.
// SPDX-License-Identifier: LGPL-2.1-or-later

package stream

import (
	"encoding/json"
	"fmt"
	"time"
)

// metaDateFormat is a local ISO-8601 datetime with microseconds.
const metaDateFormat = "2006-01-02T15:04:05.000000"

// Meta is the payload of the meta frame, always the first frame of a
// stream. Readers ignore unknown keys; only virtual-size is required.
type Meta struct {
	// VirtualSize is the size of the image in bytes.
	VirtualSize uint64 `json:"virtual-size"`

	// DataSize is the sum of the lengths of the data frames in the
	// stream.
	DataSize uint64 `json:"data-size"`

	// Date is the local time the stream was created.
	Date string `json:"date"`

	// Incremental means the stream describes only ranges changed since
	// the last checkpoint.
	Incremental bool `json:"incremental"`
}

// newMeta creates a Meta stamped with the current local time.
func newMeta(virtualSize, dataSize uint64, incremental bool) *Meta {
	return &Meta{
		VirtualSize: virtualSize,
		DataSize:    dataSize,
		Date:        time.Now().Format(metaDateFormat),
		Incremental: incremental,
	}
}

// parseMeta decodes a meta frame payload. Decoding is lenient: unknown
// keys are ignored, and every key except virtual-size is optional.
func parseMeta(body []byte) (*Meta, error) {
	var raw struct {
		VirtualSize *uint64 `json:"virtual-size"`
		DataSize    uint64  `json:"data-size"`
		Date        string  `json:"date"`
		Incremental bool    `json:"incremental"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: bad meta payload: %s", ErrMalformedFrame, err)
	}
	if raw.VirtualSize == nil {
		return nil, fmt.Errorf("%w: meta payload without virtual-size", ErrMalformedFrame)
	}
	return &Meta{
		VirtualSize: *raw.VirtualSize,
		DataSize:    raw.DataSize,
		Date:        raw.Date,
		Incremental: raw.Incremental,
	}, nil
}
