// Command zorm inspects the polymorphic relations of a configured model set:
// it prints schematics, explains the SQL a relation resolves to and runs it.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
