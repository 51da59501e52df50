package cmd

import (
	"bufio"
	"context"
	"encoding/base32"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/unruggable/solana-signer/otp"
	"github.com/unruggable/solana-signer/transport"
)

// ClientCommand creates the host-side driver that speaks the device's
// line protocol over a serial port.
func ClientCommand() *cli.Command {
	return &cli.Command{
		Name:  "client",
		Usage: "Drive an attached signing appliance",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "port",
				Usage: "Serial port of the device (auto-detected when omitted)",
			},
			&cli.IntFlag{
				Name:  "baud",
				Usage: "Serial speed in bps",
				Value: transport.DefaultBaud,
			},
		},
		Commands: []*cli.Command{
			clientPubkeyCommand(),
			clientBeginCommand(),
			clientConfirmCommand(),
			clientUnlockCommand(),
			clientSignCommand(),
			clientCreateTxCommand(),
			clientShutdownCommand(),
		},
	}
}

func clientPubkeyCommand() *cli.Command {
	return &cli.Command{
		Name:  "pubkey",
		Usage: "Print the device's base58 public key",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return roundTrip(cmd, "GET_PUBKEY")
		},
	}
}

func clientBeginCommand() *cli.Command {
	return &cli.Command{
		Name:  "begin",
		Usage: "Start two-factor enrollment and print the provisioning secret",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return roundTrip(cmd, "OTP_BEGIN")
		},
	}
}

func clientConfirmCommand() *cli.Command {
	return &cli.Command{
		Name:  "confirm",
		Usage: "Confirm enrollment with a code",
		Flags: codeFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			code, suffix, err := resolveCode(cmd)
			if err != nil {
				return err
			}
			return roundTrip(cmd, "OTP_CONFIRM:"+code+suffix)
		},
	}
}

func clientUnlockCommand() *cli.Command {
	return &cli.Command{
		Name:  "unlock",
		Usage: "Unlock the signing session with a code",
		Flags: codeFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			code, suffix, err := resolveCode(cmd)
			if err != nil {
				return err
			}
			return roundTrip(cmd, "OTP_UNLOCK:"+code+suffix)
		},
	}
}

func clientSignCommand() *cli.Command {
	return &cli.Command{
		Name:  "sign",
		Usage: "Sign a message (waits for the device button)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "message",
				Usage:    "Message to sign",
				Required: true,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			payload := base64.StdEncoding.EncodeToString([]byte(cmd.String("message")))
			fmt.Println("Waiting for physical confirmation on the device...")
			return roundTrip(cmd, "SIGN:"+payload)
		},
	}
}

func clientCreateTxCommand() *cli.Command {
	return &cli.Command{
		Name:  "create-tx",
		Usage: "Ask the device for its placeholder memo transaction",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return roundTrip(cmd, "CREATE_TX")
		},
	}
}

func clientShutdownCommand() *cli.Command {
	return &cli.Command{
		Name:  "shutdown",
		Usage: "Halt the device until its next power cycle",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return roundTrip(cmd, "SHUTDOWN")
		},
	}
}

func codeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "code",
			Usage: "6-digit code from an authenticator",
		},
		&cli.StringFlag{
			Name:  "secret",
			Usage: "Base32 secret for computing the code locally (headless mode)",
		},
		&cli.UintFlag{
			Name:  "time",
			Usage: "Unix time to send with the code (defaults to the host clock)",
		},
	}
}

// resolveCode picks the code from --code or derives it from --secret,
// and renders the optional :unix suffix.
func resolveCode(cmd *cli.Command) (code, suffix string, err error) {
	now := uint64(cmd.Uint("time"))
	if now == 0 {
		now = uint64(time.Now().Unix())
	}
	suffix = fmt.Sprintf(":%d", now)

	if c := cmd.String("code"); c != "" {
		return c, suffix, nil
	}

	b32 := strings.ToUpper(strings.TrimSpace(cmd.String("secret")))
	if b32 == "" {
		return "", "", fmt.Errorf("either --code or --secret must be provided")
	}
	secret, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(b32)
	if err != nil {
		return "", "", fmt.Errorf("decode secret: %w", err)
	}
	return otp.Compute(secret, now/otp.Period), suffix, nil
}

func roundTrip(cmd *cli.Command, line string) error {
	port := cmd.String("port")
	if port == "" {
		detected, err := transport.DetectPort()
		if err != nil {
			return err
		}
		port = detected
	}

	// No read timeout: SIGN may block arbitrarily long on the device's
	// presence gate.
	conn, err := transport.OpenSerial(port, int(cmd.Int("baud")), 0)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	if _, err := io.WriteString(conn, line+"\n"); err != nil {
		return fmt.Errorf("write command: %w", err)
	}

	resp, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	fmt.Println(strings.TrimSpace(resp))
	return nil
}
