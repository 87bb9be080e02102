package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/urfave/cli/v2"

	"github.com/bartossh/Paygate/configuration"
	"github.com/bartossh/Paygate/logo"
	"github.com/bartossh/Paygate/natsclient"
	"github.com/bartossh/Paygate/server"
	"github.com/bartossh/Paygate/telemetry"
	"github.com/bartossh/Paygate/wiring"
)

const serviceName = "gateway"

func main() {
	logo.Display()

	var file, env string
	app := &cli.App{
		Name:  serviceName,
		Usage: "Runs the payment gateway with its cleanup sweep.",
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
		},
		Action: func(cCtx *cli.Context) error {
			if file == "" {
				return errors.New("please specify configuration file path with -c <path to file>")
			}
			cfg, err := configuration.Load(env, file)
			if err != nil {
				return err
			}
			return run(cfg)
		},
	}

	if err := app.Run(os.Args); err != nil {
		pterm.Error.Println(err.Error())
		os.Exit(1)
	}
}

func run(cfg configuration.Configuration) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		cancel()
	}()

	tele := telemetry.New()
	if err := telemetry.Run(ctx, cancel, cfg.Telemetry, tele); err != nil {
		return err
	}

	stack, err := wiring.Build(ctx, cfg, serviceName, tele, func(error) { cancel() })
	if err != nil {
		return err
	}
	defer stack.Close(context.Background())

	var pub server.ActivityPublisher
	if cfg.Nats.Enabled() {
		p, err := natsclient.PublisherConnect(cfg.Nats)
		if err != nil {
			return fmt.Errorf("nats publisher: %w", err)
		}
		defer p.Disconnect()

		s, err := natsclient.SubscriberConnect(cfg.Nats)
		if err != nil {
			return fmt.Errorf("nats subscriber: %w", err)
		}
		defer s.Disconnect()

		onErr := func(err error) { stack.Log.Warn(fmt.Sprintf("node activity dropped: %s", err)) }
		if err := s.SubscribeActivity(stack.Hub.Notify, onErr); err != nil {
			return fmt.Errorf("nats subscribe: %w", err)
		}
		pub = p
	}

	go stack.Janitor.Run(ctx)

	stack.Log.Info(fmt.Sprintf("gateway listening on port %d", cfg.Server.Port))
	return server.Run(ctx, cfg.Server, stack.Ledger, stack.Hub, pub, stack.Log)
}
