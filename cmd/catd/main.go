package main

import (
	"fmt"
	"os"

	"github.com/mind-engage/mindengage-cat/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "catd:", err)
		os.Exit(1)
	}
}
