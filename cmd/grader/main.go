// Command grader analyzes and scores repositories from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/ETAnderson/grader/internal/cli"
)

func main() {
	if err := cli.Execute(os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
