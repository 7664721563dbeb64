// SPDX-FileCopyrightText: Red Hat, Inc.
// SPDX-License-Identifier: GPL-2.0-or-later

// sparse-stream moves disk images between sparse streams and imageio
// transfers.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		var ue usageError
		if errors.As(err, &ue) {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(2)
		}
		logrus.Error(err)
		os.Exit(1)
	}
}
