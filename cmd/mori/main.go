package main

import (
	"fmt"
	"os"

	"github.com/seantiz/mori/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "mori: %v\n", err)
		os.Exit(1)
	}
}
