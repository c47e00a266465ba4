package main

import (
	"os"

	"github.com/leapstack-labs/warepipe/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
