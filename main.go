package main

import (
	"github.com/JakeFAU/research-fetcher/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
