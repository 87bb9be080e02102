package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/urfave/cli/v2"

	"github.com/bartossh/Paygate/cleanup"
	"github.com/bartossh/Paygate/configuration"
	"github.com/bartossh/Paygate/logo"
	"github.com/bartossh/Paygate/providers"
	"github.com/bartossh/Paygate/transaction"
	"github.com/bartossh/Paygate/wiring"
)

const serviceName = "admin"

func main() {
	logo.Display()

	var file, env string
	var timeout time.Duration

	withStack := func(action func(ctx context.Context, stack *wiring.Stack, cCtx *cli.Context) error) cli.ActionFunc {
		return func(cCtx *cli.Context) error {
			if file == "" {
				return errors.New("please specify configuration file path with -c <path to file>")
			}
			cfg, err := configuration.Load(env, file)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cCtx.Context, timeout)
			defer cancel()

			stack, err := wiring.Build(ctx, cfg, serviceName, providers.NoTelemetry{}, func(error) { cancel() })
			if err != nil {
				return err
			}
			defer stack.Close(context.Background())
			return action(ctx, stack, cCtx)
		}
	}

	app := &cli.App{
		Name:  serviceName,
		Usage: "Inspects and settles gateway transactions by hand.",
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
			&cli.DurationFlag{
				Name:        "timeout",
				Aliases:     []string{"t"},
				Usage:       "Give up the command after `DURATION`",
				Value:       5 * time.Minute,
				Destination: &timeout,
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "show",
				Aliases:   []string{"s"},
				Usage:     "shows the transaction",
				ArgsUsage: "<id>",
				Action: withStack(func(ctx context.Context, stack *wiring.Stack, cCtx *cli.Context) error {
					id, err := idArg(cCtx)
					if err != nil {
						return err
					}
					trx, err := stack.Ledger.Get(ctx, id)
					if err != nil {
						return err
					}
					if err := printTransaction(trx); err != nil {
						return err
					}
					received, err := stack.Ledger.Received(ctx, id)
					if err != nil {
						return err
					}
					pterm.Info.Printfln("account was credited %s raw in total", received)
					return nil
				}),
			},
			{
				Name:      "process",
				Aliases:   []string{"p"},
				Usage:     "forwards the payment of a pending transaction and refunds the rest",
				ArgsUsage: "<id>",
				Action: withStack(func(ctx context.Context, stack *wiring.Stack, cCtx *cli.Context) error {
					return settle(ctx, stack, cCtx, stack.Ledger.Process)
				}),
			},
			{
				Name:      "refund",
				Aliases:   []string{"r"},
				Usage:     "returns every received amount to its senders",
				ArgsUsage: "<id>",
				Action: withStack(func(ctx context.Context, stack *wiring.Stack, cCtx *cli.Context) error {
					return settle(ctx, stack, cCtx, stack.Ledger.Refund)
				}),
			},
			{
				Name:      "force",
				Aliases:   []string{"f"},
				Usage:     "forwards whatever the transaction received, up to its amount, and refunds the rest",
				ArgsUsage: "<id>",
				Action: withStack(func(ctx context.Context, stack *wiring.Stack, cCtx *cli.Context) error {
					return settle(ctx, stack, cCtx, stack.Ledger.ForceProcess)
				}),
			},
			{
				Name:  "sweep",
				Usage: "runs a single cleanup sweep",
				Action: withStack(func(ctx context.Context, stack *wiring.Stack, _ *cli.Context) error {
					report, err := stack.Janitor.Sweep(ctx)
					if err != nil {
						return err
					}
					return printReport(report)
				}),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		pterm.Error.Println(err.Error())
		os.Exit(1)
	}
}

func idArg(cCtx *cli.Context) (int64, error) {
	if cCtx.NArg() != 1 {
		return 0, errors.New("expected a single transaction id argument")
	}
	id, err := strconv.ParseInt(cCtx.Args().First(), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("transaction id %q: %w", cCtx.Args().First(), err)
	}
	return id, nil
}

func settle(ctx context.Context, stack *wiring.Stack, cCtx *cli.Context, f func(context.Context, int64) error) error {
	id, err := idArg(cCtx)
	if err != nil {
		return err
	}
	if err := f(ctx, id); err != nil {
		return err
	}
	trx, err := stack.Ledger.Get(ctx, id)
	if err != nil {
		return err
	}
	pterm.Success.Printfln("transaction %d is %s", id, trx.Status)
	return printTransaction(trx)
}

func printTransaction(trx transaction.Transaction) error {
	return pterm.DefaultTable.WithHasHeader().WithData(pterm.TableData{
		{"Field", "Value"},
		{"ID", strconv.FormatInt(trx.ID, 10)},
		{"Status", string(trx.Status)},
		{"Account", trx.Account},
		{"Destination", trx.Destination},
		{"Amount", fmt.Sprintf("%s %s", trx.Amount, trx.Currency)},
		{"Amount raw", trx.AmountRaw},
		{"Created", trx.Created.Format(time.RFC3339)},
	}).Render()
}

func printReport(r cleanup.Report) error {
	err := pterm.DefaultTable.WithHasHeader().WithData(pterm.TableData{
		{"Checked", "Forced", "Processed", "Refunded", "Purged", "PayPal removed", "Failed"},
		{
			strconv.Itoa(r.Checked), strconv.Itoa(r.Forced), strconv.Itoa(r.Processed), strconv.Itoa(r.Refunded),
			strconv.FormatInt(r.Purged, 10), strconv.Itoa(r.PayPalRemoved), strconv.Itoa(len(r.Failures)),
		},
	}).Render()
	if err != nil {
		return err
	}
	for _, f := range r.Failures {
		pterm.Warning.Printfln("transaction %d: %s", f.ID, f.Err)
	}
	return nil
}
