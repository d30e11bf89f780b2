// Package main is the entry point for the d3tect CLI.
package main

import (
	"fmt"
	"os"

	"github.com/curtislbyrd/D3tectConvert/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
