// Package main is the declsql entry point.
package main

import (
	"os"

	"github.com/leapstack-labs/declsql/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
