package main

import (
	"os"

	"github.com/aquacrest/hatchflow/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
