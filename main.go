package main

import (
	"os"

	"github.com/resilia-grid/neurogrid/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
