// SPDX-FileCopyrightText: Red Hat, Inc.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mwperina/sparse-stream/imageio"
)

var mapCmd = &cobra.Command{
	Use:   "map URL",
	Short: "Print image extents as JSON",
	Args:  exactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := connect(args[0])
		if err != nil {
			return err
		}
		defer b.Close()

		res, err := b.Extents(imageio.ContextZero)
		if err != nil {
			return err
		}

		w := bufio.NewWriterSize(os.Stdout, 32*1024)
		if err := writeExtents(w, res); err != nil {
			return err
		}
		return w.Flush()
	},
}

// writeExtents writes easy to read and compact JSON:
//
//	[{"start": 0, "length": 4096, "zero": false},
//	 {"start": 4096, "length": 4096, "zero": true}]
//
// Streaming the extents uses much less memory and is much faster than
// building a list and marshaling it.
func writeExtents(w io.Writer, res imageio.ExtentsResult) error {
	format := "{\"start\": %v, \"length\": %v, \"zero\": %v}"

	if _, err := fmt.Fprint(w, "["); err != nil {
		return err
	}

	first := true
	for res.Next() {
		e := res.Value()
		if _, err := fmt.Fprintf(w, format, e.Start, e.Length, e.Zero); err != nil {
			return err
		}
		if first {
			format = ",\n " + format
			first = false
		}
	}

	_, err := fmt.Fprint(w, "]\n")
	return err
}
