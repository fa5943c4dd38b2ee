// Package cmd contains the carbonchaind operator CLI: genesis, run, and
// mine, built on cobra's rootCmd/Execute shape.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// build is the git version of this binary, set using build flags in the
// makefile, same as app/services/node/main.go's own build var.
var build = "develop"

var rootCmd = &cobra.Command{
	Use:   "carbonchaind",
	Short: "Operate a carbonchain node: generate its genesis, run it, or run it mining",
}

// Execute adds every child command to rootCmd and runs it. Called once
// by main.main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
