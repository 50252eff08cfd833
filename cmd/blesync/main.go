package main

import (
	"github.com/alecthomas/kong"

	"github.com/vitaminmoo/blesync/internal/cli"
)

func main() {
	var c cli.CLI
	ctx := kong.Parse(&c,
		kong.Name("blesync"),
		kong.Description("Record BLE sensor readings locally and sync them upstream"),
		kong.UsageOnError(),
	)
	err := ctx.Run(&c)
	ctx.FatalIfErrorf(err)
}
