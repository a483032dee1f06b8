// Command multicoder brokers authentication state for AI coding CLIs.
package main

import (
	"fmt"
	"os"

	"github.com/ljyou001/multicoder/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
