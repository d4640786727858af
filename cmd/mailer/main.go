package main

import (
	"os"
)

func main() {
	root := NewRootCommand(os.Stdout)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
