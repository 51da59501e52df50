package main

import (
	"context"
	"log"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/unruggable/solana-signer/cmd"
)

func main() {
	app := &cli.Command{
		Name:  "solana-signer",
		Usage: "Offline Solana signing appliance with two-factor unlock",
		Commands: []*cli.Command{
			cmd.RunCommand(),
			cmd.ClientCommand(),
			cmd.CodeCommand(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
