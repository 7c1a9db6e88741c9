// Command jobrepo initialises and inspects a job repository.
package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	if err := execute(context.Background(), os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "jobrepo:", err)
		os.Exit(1)
	}
}
