package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/unruggable/solana-signer/config"
	"github.com/unruggable/solana-signer/device"
	"github.com/unruggable/solana-signer/keyvault"
	"github.com/unruggable/solana-signer/presence"
	"github.com/unruggable/solana-signer/store"
	"github.com/unruggable/solana-signer/transport"
	"github.com/unruggable/solana-signer/twofa"
)

// RunCommand creates the device daemon command.
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run the signing appliance",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Path to YAML config file",
			},
			&cli.StringFlag{
				Name:  "port",
				Usage: "Serial port to serve the protocol on",
			},
			&cli.StringFlag{
				Name:  "store",
				Usage: "Path to the persistent store snapshot",
			},
			&cli.BoolFlag{
				Name:  "stdio",
				Usage: "Serve the protocol on stdin/stdout instead of a serial port",
			},
			&cli.BoolFlag{
				Name:  "auto-confirm",
				Usage: "Assert physical presence automatically (bench use only)",
			},
			&cli.BoolFlag{
				Name:  "no-twofa",
				Usage: "Disable the two-factor engine",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Action: runRunCommand,
	}
}

func runRunCommand(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}
	if cmd.String("port") != "" {
		cfg.Port = cmd.String("port")
	}
	if cmd.String("store") != "" {
		cfg.StorePath = cmd.String("store")
	}
	if cmd.Bool("auto-confirm") {
		cfg.Presence.Mode = "auto"
	}
	if cmd.Bool("no-twofa") {
		cfg.TwoFA = false
	}
	if cmd.Bool("debug") {
		cfg.Debug = true
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	st, err := store.OpenFile(cfg.StorePath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	vault, err := keyvault.LoadOrGenerate(st)
	if err != nil {
		return fmt.Errorf("load signing key: %w", err)
	}
	logger.Info("signing key ready", "pubkey", vault.PublicBase58())

	auth := twofa.NewManager(st)
	state, err := auth.State()
	if err != nil {
		return fmt.Errorf("read enrollment state: %w", err)
	}
	logger.Info("enrollment state", "state", state.String())

	var conn io.ReadWriter
	switch {
	case cmd.Bool("stdio"):
		conn = transport.NewStdio()
	case cfg.Port != "":
		serial, err := transport.OpenSerial(cfg.Port, cfg.Baud, time.Duration(cfg.ReadTimeoutMS)*time.Millisecond)
		if err != nil {
			return err
		}
		defer func() { _ = serial.Close() }()
		conn = serial
	default:
		return fmt.Errorf("no serial port configured; set port in the config or pass --port or --stdio")
	}

	gate := &presence.Poller{
		Interval: time.Duration(cfg.Presence.PollIntervalMS) * time.Millisecond,
	}
	if cfg.Presence.Mode == "auto" {
		gate.Input = presence.AutoConfirm{}
		logger.Warn("presence gate set to auto-confirm; signing needs no human action")
	} else {
		valuePath := presence.SysfsValuePath(cfg.Presence.GPIOPin)
		if _, err := os.Stat(valuePath); err != nil {
			logger.Warn("presence gpio not readable; signing will block until it is", "path", valuePath, "err", err)
		}
		gate.Input = &presence.GPIOInput{
			Path:      valuePath,
			ActiveLow: cfg.Presence.ActiveLow,
			Log:       logger,
		}
	}

	opts := []device.Option{device.WithLogger(logger)}
	if !cfg.TwoFA {
		opts = append(opts, device.WithTwoFADisabled())
		logger.Warn("two-factor engine disabled")
	}

	dispatcher := device.New(conn, vault, auth, gate, opts...)
	logger.Info("serving command protocol")
	return dispatcher.Run()
}
