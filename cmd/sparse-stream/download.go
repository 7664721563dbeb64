// SPDX-FileCopyrightText: Red Hat, Inc.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"bufio"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mwperina/sparse-stream/stream"
)

var incremental bool

var downloadCmd = &cobra.Command{
	Use:   "download [--incremental] URL",
	Short: "Download an image as a sparse stream written to stdout",
	Args:  exactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := connect(args[0])
		if err != nil {
			return err
		}

		// Download owns the backend and closes it.
		w := bufio.NewWriterSize(os.Stdout, 32*1024)
		if err := stream.Download(w, b, incremental); err != nil {
			return err
		}
		if err := w.Flush(); err != nil {
			return err
		}

		logrus.Debug("download completed")
		return nil
	},
}

func init() {
	downloadCmd.Flags().BoolVar(&incremental, "incremental", false,
		"stream only extents changed since the last checkpoint")
}
