package main

import (
	"os"

	"github.com/a5c-ai/gitagent/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
