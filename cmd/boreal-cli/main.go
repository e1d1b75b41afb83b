package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	boreal "github.com/rudderlabs/boreal-sql-go"
	"github.com/rudderlabs/boreal-sql-go/cmd/boreal-cli/commands"
)

func main() {
	app := &cli.App{
		Name:     "boreal-cli",
		Usage:    "run SQL against a Boreal warehouse from the terminal",
		Version:  boreal.SDKVersion,
		Commands: commands.DefaultList,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
