// Package main is the operator CLI for the paper portfolio tracker.
package main

import (
	"os"

	"github.com/aristath/papertrail/cmd/tracker/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
