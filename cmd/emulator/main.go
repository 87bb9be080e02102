package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/urfave/cli/v2"

	"github.com/bartossh/Paygate/configuration"
	"github.com/bartossh/Paygate/emulator"
	"github.com/bartossh/Paygate/logging"
	"github.com/bartossh/Paygate/logo"
	"github.com/bartossh/Paygate/stdoutwriter"
)

func main() {
	logo.Display()

	var file, env string
	var funds cli.StringSlice
	app := &cli.App{
		Name:  "emulator",
		Usage: "Emulates a ledger node answering node RPC actions in memory.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Load configuration from `FILE`",
				Destination: &file,
			},
			&cli.StringFlag{
				Name:        "env",
				Aliases:     []string{"e"},
				Usage:       "Load environment variables from `FILE`",
				Value:       ".env",
				Destination: &env,
			},
			&cli.StringSliceFlag{
				Name:        "fund",
				Aliases:     []string{"f"},
				Usage:       "Fund `ADDRESS=RAW` from the genesis account at start, may be repeated",
				Destination: &funds,
			},
		},
		Action: func(cCtx *cli.Context) error {
			if file == "" {
				return errors.New("please specify configuration file path with -c <path to file>")
			}
			cfg, err := configuration.Load(env, file)
			if err != nil {
				return err
			}
			return run(cfg.Emulator, funds.Value())
		},
	}

	if err := app.Run(os.Args); err != nil {
		pterm.Error.Println(err.Error())
		os.Exit(1)
	}
}

func run(cfg emulator.Config, funds []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		cancel()
	}()

	log := logging.New("emulator", func(err error) { pterm.Error.Println(err.Error()) }, func(error) { cancel() }, stdoutwriter.Logger{})

	n, err := emulator.New(cfg)
	if err != nil {
		return err
	}

	for _, f := range funds {
		addr, amount, ok := strings.Cut(f, "=")
		raw, valid := new(big.Int).SetString(amount, 10)
		if !ok || !valid {
			return fmt.Errorf("fund %q is not in the ADDRESS=RAW form", f)
		}
		hash, err := n.Fund(addr, raw)
		if err != nil {
			return fmt.Errorf("fund %s: %w", addr, err)
		}
		log.Info(fmt.Sprintf("funded %s with %s raw in block %s", addr, raw, hash))
	}

	return emulator.Run(ctx, cfg, n, log)
}
