package main

import (
	"os"

	"github.com/TimelordUK/lview/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
