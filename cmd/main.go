package main

import (
	"os"

	"github.com/Usman11801/qetemplate-sub000/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
