package main

import (
	"fmt"
	"os"

	"github.com/haukened/navguard/internal/guard/common/log"
)

const (
	// Version information
	version = "0.1.0-dev"
	appName = "navguardd"
)

func main() {
	root := newRootCmd()
	root.SilenceUsage = true
	err := root.Execute()
	log.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
