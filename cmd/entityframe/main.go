package main

import (
	"os"

	"github.com/conduit-lang/entityframe/internal/cli/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
