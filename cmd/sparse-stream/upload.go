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

var uploadCmd = &cobra.Command{
	Use:   "upload URL",
	Short: "Upload a sparse stream read from stdin",
	Args:  exactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := connect(args[0])
		if err != nil {
			return err
		}

		// Upload owns the backend and closes it.
		r := bufio.NewReaderSize(os.Stdin, 32*1024)
		if err := stream.Upload(r, b); err != nil {
			return err
		}

		logrus.Debug("upload completed")
		return nil
	},
}
