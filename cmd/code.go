package cmd

import (
	"context"
	"encoding/base32"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/unruggable/solana-signer/otp"
)

// CodeCommand creates a local TOTP code generator, for provisioning
// checks against the device without an authenticator app.
func CodeCommand() *cli.Command {
	return &cli.Command{
		Name:  "code",
		Usage: "Compute the current code for a base32 secret",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "secret",
				Usage:    "Base32 secret as printed by OTP_BEGIN",
				Required: true,
			},
			&cli.UintFlag{
				Name:  "time",
				Usage: "Unix time to compute the code at (defaults to the host clock)",
			},
		},
		Action: runCodeCommand,
	}
}

func runCodeCommand(ctx context.Context, cmd *cli.Command) error {
	b32 := strings.ToUpper(strings.TrimSpace(cmd.String("secret")))
	secret, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(b32)
	if err != nil {
		return fmt.Errorf("decode secret: %w", err)
	}

	now := uint64(cmd.Uint("time"))
	if now == 0 {
		now = uint64(time.Now().Unix())
	}

	fmt.Println(otp.Compute(secret, now/otp.Period))
	return nil
}
