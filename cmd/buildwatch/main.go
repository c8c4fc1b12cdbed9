package main

import (
	"os"

	"github.com/kirbytools/buildwatch/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
