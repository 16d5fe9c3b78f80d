// Package main is the entry point for the epgnow application.
package main

import (
	"os"

	"github.com/jmylchreest/epgnow/cmd/epgnow/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
