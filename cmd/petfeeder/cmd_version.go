/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/friendsincode/petfeeder/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.Get().String())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
