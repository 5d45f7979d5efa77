package main

import (
	"fmt"
	"os"

	"github.com/qcbor-go/qcbor/internal/cli"
)

var version = "dev"

func main() {
	rootCmd := cli.NewRootCommand(version)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
