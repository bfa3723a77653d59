package main

import (
	"os"

	"github.com/fatih/color"

	"github.com/mainbong/path_lister/internal/logger"
)

func main() {
	err := newRootCmd().Execute()
	logger.Close()
	if err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
