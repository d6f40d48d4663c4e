package main

import (
	"os"

	"github.com/wingmanhq/wingman/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
