// SPDX-FileCopyrightText: Red Hat, Inc.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"fmt"
	"os"
	"runtime/pprof"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// usageError marks command line misuse, reported with exit code 2.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

var (
	cpuprofile string

	profile *os.File
)

var rootCmd = &cobra.Command{
	Use:   "sparse-stream",
	Short: "Move disk images between sparse streams and imageio transfers",
	Long: `sparse-stream downloads a disk image from an imageio transfer as a
sparse stream written to stdout, and uploads such a stream from stdin
back into a transfer. The stream preserves sparseness, so a mostly
empty 100 GiB image costs only its data.`,

	SilenceUsage:  true,
	SilenceErrors: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logrus.SetOutput(os.Stderr)
		if viper.GetBool("verbose") {
			logrus.SetLevel(logrus.DebugLevel)
		} else {
			logrus.SetLevel(logrus.InfoLevel)
		}

		if cpuprofile != "" {
			f, err := os.Create(cpuprofile)
			if err != nil {
				return err
			}
			if err := pprof.StartCPUProfile(f); err != nil {
				f.Close()
				return err
			}
			profile = f
		}
		return nil
	},

	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if profile != nil {
			pprof.StopCPUProfile()
			profile.Close()
			profile = nil
		}
	},

	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			return usageError{fmt.Errorf("unknown command %q", args[0])}
		}
		return cmd.Help()
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolP("verbose", "v", false, "log debug messages")
	flags.StringVar(&cpuprofile, "cpuprofile", "", "write cpu profile to file")
	flags.Bool("secure", true, "verify the imageio server certificate")
	flags.String("cafile", "", "CA bundle for verifying the imageio server")
	flags.Int("buffer-size", 1024*1024, "size of data chunks read and written")

	viper.SetEnvPrefix("SPARSE_STREAM")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	for _, name := range []string{"verbose", "secure", "cafile", "buffer-size"} {
		if err := viper.BindPFlag(name, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError{err}
	})

	rootCmd.AddCommand(
		downloadCmd,
		uploadCmd,
		mapCmd,
	)
}

// exactArgs is like cobra.ExactArgs but reports misuse with exit code
// 2 semantics.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return usageError{fmt.Errorf(
				"accepts %d arg(s), received %d", n, len(args))}
		}
		return nil
	}
}
