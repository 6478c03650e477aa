// Package main is the entry point for the portal binary.
package main

import (
	"os"
)

func main() {
	os.Exit(Execute())
}
