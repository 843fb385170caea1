package main

import (
	"os"

	"github.com/aioptimizer/frontend/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
