// Binary snowflake is a demo driver for the run-action core: it runs one
// program inside one container, the way the original bin/snowflake.rs
// did, but takes the scratch directory and the Nix store path as flags,
// and the program to execute as arguments, rather than hardcoding them.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(&runCommand{}, "")

	flag.Parse()
	os.Exit(int(subcommands.Execute(context.Background())))
}
