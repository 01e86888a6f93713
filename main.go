package main

import (
	"fmt"
	"os"

	"github.com/zeu5/driving-rl/commands"
)

// main entry point, see commands for the subcommands
func main() {
	rootCommand := commands.GetRootCommand()
	if err := rootCommand.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
