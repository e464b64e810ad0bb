// Package main provides the omnifile CLI for reading, recompressing and
// listing plain, gzip and zstd files on any registered backend.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
