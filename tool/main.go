package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// Run using
//  go run ./tool <command> <flags>

func main() {
	app := &cli.App{
		Name:  "tool",
		Usage: "pagemap checkpoint toolbox",
		Commands: []*cli.Command{
			&Info,
			&Verify,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
