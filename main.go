package main

import (
	"os"

	"github.com/haeun/whatif/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
