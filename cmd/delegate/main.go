// Command delegate runs delegation requests from the command line.
//
//	delegate run --agent explore --instruction "find the config loader"
//	delegate resume --session <id> --instruction "now summarize it"
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
