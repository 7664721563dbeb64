// SPDX-FileCopyrightText: Red Hat, Inc.
// SPDX-License-Identifier: LGPL-2.1-or-later

// Package stream implements the sparse image stream format and the
// download and upload engines.
//
// A stream is a sequence of frames, each starting with a fixed size
// header:
//
//	<kind:4> <space> <start:16 hex> <space> <length:16 hex> CR LF
//
// followed by an optional payload. A meta frame carries a JSON payload
// and CRLF, a data frame carries raw image bytes and CRLF, zero and
// stop frames have no payload. A well formed stream is one meta frame,
// any number of data and zero frames, and one stop frame.
package stream

import (
	"fmt"
	"io"
	"strconv"

	"github.com/mwperina/sparse-stream/imageio"
)

// Frame kinds.
const (
	KindMeta = "meta"
	KindData = "data"
	KindZero = "zero"
	KindStop = "stop"
)

// HeaderSize is the exact size of every frame header: four letter kind,
// space, 16 hex digits start, space, 16 hex digits length, CRLF.
const HeaderSize = 4 + 1 + 16 + 1 + 16 + 2

var crlf = []byte{'\r', '\n'}

// WriteHeader writes one frame header to w. kind must be one of the
// known frame kinds; anything else is a programmer error and panics.
func WriteHeader(w io.Writer, kind string, start, length uint64) error {
	switch kind {
	case KindMeta, KindData, KindZero, KindStop:
	default:
		panic(fmt.Sprintf("stream: invalid frame kind %q", kind))
	}

	_, err := fmt.Fprintf(w, "%s %016x %016x\r\n", kind, start, length)
	return err
}

// ReadHeader reads exactly one frame header from r.
func ReadHeader(r io.Reader) (kind string, start, length uint64, err error) {
	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", 0, 0, fmt.Errorf(
			"%w: reading frame header: %s", ErrMalformedFrame, err)
	}

	if buf[4] != ' ' || buf[21] != ' ' {
		return "", 0, 0, fmt.Errorf(
			"%w: bad header %q", ErrMalformedFrame, buf)
	}
	if buf[HeaderSize-2] != '\r' || buf[HeaderSize-1] != '\n' {
		return "", 0, 0, fmt.Errorf(
			"%w: header not terminated: %q", ErrMalformedFrame, buf)
	}

	kind = string(buf[:4])
	switch kind {
	case KindMeta, KindData, KindZero, KindStop:
	default:
		return "", 0, 0, fmt.Errorf(
			"%w: unknown frame kind %q", ErrMalformedFrame, kind)
	}

	start, err = strconv.ParseUint(string(buf[5:21]), 16, 64)
	if err != nil {
		return "", 0, 0, fmt.Errorf(
			"%w: bad start in %q", ErrMalformedFrame, buf)
	}
	length, err = strconv.ParseUint(string(buf[22:38]), 16, 64)
	if err != nil {
		return "", 0, 0, fmt.Errorf(
			"%w: bad length in %q", ErrMalformedFrame, buf)
	}

	return kind, start, length, nil
}

// readExact reads exactly n bytes from r.
func readExact(r io.Reader, n uint64) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf(
			"%w: reading %d bytes: %s", imageio.ErrShortIO, n, err)
	}
	return buf, nil
}

// expectCRLF consumes the CRLF terminating a meta or data payload.
func expectCRLF(r io.Reader) error {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return fmt.Errorf(
			"%w: reading payload terminator: %s", imageio.ErrShortIO, err)
	}
	if buf[0] != '\r' || buf[1] != '\n' {
		return fmt.Errorf(
			"%w: payload not terminated: %q", ErrMalformedFrame, buf)
	}
	return nil
}
