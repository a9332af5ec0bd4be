package main

import (
	"fmt"
	"os"
)

// exitOnError prints the error to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
