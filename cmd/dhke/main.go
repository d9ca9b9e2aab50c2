package main

import (
	"fmt"
	"os"

	"dhke/cmd/dhke/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "dhke:", err)
		os.Exit(commands.ExitCode(err))
	}
}
