package main

import (
	"fmt"
	"os"

	"github.com/trolltrack/trolltrack/cmd"
	"github.com/trolltrack/trolltrack/internal/app"
)

func main() {
	loader := app.NewLoader(app.WithPrompter(app.StdinPrompter(os.Stdin, os.Stderr)))
	rootCmd := cmd.RootCommand(loader)

	if err := rootCmd.Execute(); err != nil {
		loader.Close()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
