package main

import (
	"os"

	"github.com/speedrun-hq/cyclerunner/pkg/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
