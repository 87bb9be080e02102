package rpc

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mr-tron/base58"

	"github.com/bartossh/Paygate/httpclient"
	"github.com/bartossh/Paygate/logger"
	"github.com/bartossh/Paygate/providers"
)

const (
	defaultTimeout      = 60 * time.Second
	defaultRetryBackoff = 8 * time.Second
)

const invokeTelemetryHistogram = "rpc_invoke_duration"

const (
	actionKey        = "action"
	actionWalletLock = "wallet_unlock"
)

// Args are the action arguments sent next to the action name.
type Args map[string]any

// Invoker invokes named node actions. out is a pointer the JSON response is decoded in to, it may be nil.
type Invoker interface {
	Invoke(ctx context.Context, action string, args Args, out any) error
}

// Config contains the node RPC endpoint configuration.
type Config struct {
	Address      string        `yaml:"address"`       // Node RPC endpoint URL.
	Timeout      time.Duration `yaml:"timeout"`       // Single request timeout.
	RetryBackoff time.Duration `yaml:"retry_backoff"` // Pause before the single retry after a transport failure.
	Wallet       string        `yaml:"wallet"`        // Wallet id unlocked when the node reports a locked wallet, repair is off when empty.
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.Address == "" {
		return errors.New("node rpc address is empty")
	}
	if c.Timeout < 0 || c.RetryBackoff < 0 {
		return errors.New("node rpc timeout and retry back-off cannot be negative")
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = defaultRetryBackoff
	}
	return c
}

// Client is the node action gateway. It is safe for concurrent use.
type Client struct {
	cfg  Config
	log  logger.Logger
	tele providers.HistogramProvider
}

// New creates a new Client.
func New(cfg Config, log logger.Logger, tele providers.HistogramProvider) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	tele.CreateUpdateObservableHistogram(invokeTelemetryHistogram, "Node rpc action invocation duration in [ ms ].")
	return &Client{cfg: cfg.withDefaults(), log: log, tele: tele}, nil
}

// Invoke sends the action with its arguments to the node and decodes the response in to out.
// Every invocation is recorded in the log before and after completion.
func (c *Client) Invoke(ctx context.Context, action string, args Args, out any) error {
	id := correlationID()
	start := time.Now()
	c.log.Info(fmt.Sprintf("rpc[%s] -> %s %s", id, action, args.redacted()))

	err := c.invoke(ctx, id, action, args, out)

	d := time.Since(start)
	c.tele.RecordHistogramTime(invokeTelemetryHistogram, d)
	if err != nil {
		c.log.Error(fmt.Sprintf("rpc[%s] <- %s failed after %s: %s", id, action, d, err))
		return err
	}
	c.log.Info(fmt.Sprintf("rpc[%s] <- %s done in %s", id, action, d))
	return nil
}

func (c *Client) invoke(ctx context.Context, id, action string, args Args, out any) error {
	repaired := false
	for {
		raw, err := c.send(ctx, id, action, args)
		if err != nil {
			return err
		}

		kind, msg, err := decodeError(raw)
		if err != nil {
			return errors.Join(ErrMalformedResponse, fmt.Errorf("action %q: %w", action, err))
		}

		switch kind {
		case KindNone:
			return decode(raw, out)
		case KindGapSource:
			c.log.Warn(fmt.Sprintf("rpc[%s] %s tolerated node error %q, using partial result", id, action, msg))
			return decode(raw, out)
		case KindWalletLocked:
			if repaired || c.cfg.Wallet == "" {
				break
			}
			repaired = true
			c.log.Warn(fmt.Sprintf("rpc[%s] %s reported locked wallet, unlocking", id, action))
			if err := c.unlock(ctx, id); err != nil {
				return errors.Join(&Error{Action: action, Args: args, Kind: kind, Message: msg}, err)
			}
			continue
		}

		return &Error{Action: action, Args: args, Kind: kind, Message: msg}
	}
}

func (c *Client) unlock(ctx context.Context, id string) error {
	args := Args{"wallet": c.cfg.Wallet, "password": ""}
	raw, err := c.send(ctx, id, actionWalletLock, args)
	if err != nil {
		return err
	}
	kind, msg, err := decodeError(raw)
	if err != nil {
		return errors.Join(ErrMalformedResponse, fmt.Errorf("action %q: %w", actionWalletLock, err))
	}
	if kind != KindNone {
		return &Error{Action: actionWalletLock, Args: args, Kind: kind, Message: msg}
	}
	var res struct {
		Valid string `json:"valid"`
	}
	if err := decode(raw, &res); err != nil {
		return err
	}
	if res.Valid != "1" {
		return &Error{Action: actionWalletLock, Args: args, Kind: KindWalletLocked, Message: "unlock rejected"}
	}
	return nil
}

// send posts the request and retries exactly once after the back-off if the transport fails.
func (c *Client) send(ctx context.Context, id, action string, args Args) ([]byte, error) {
	body := make(map[string]any, len(args)+1)
	for k, v := range args {
		body[k] = v
	}
	body[actionKey] = action

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	status, raw, err := httpclient.PostJSON(c.cfg.Timeout, c.cfg.Address, body)
	if err != nil {
		c.log.Warn(fmt.Sprintf("rpc[%s] %s transport failure, retrying in %s: %s", id, action, c.cfg.RetryBackoff, err))
		t := time.NewTimer(c.cfg.RetryBackoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
		status, raw, err = httpclient.PostJSON(c.cfg.Timeout, c.cfg.Address, body)
		if err != nil {
			return nil, errors.Join(ErrTransport, fmt.Errorf("action %q: %w", action, err))
		}
	}

	if !httpclient.IsSuccess(status) {
		return nil, errors.Join(ErrStatus, fmt.Errorf("action %q: status code %d", action, status))
	}
	return raw, nil
}

func decodeError(raw []byte) (Kind, string, error) {
	var envelope struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return KindOther, "", err
	}
	return KindOf(envelope.Error), envelope.Error, nil
}

func decode(raw []byte, out any) error {
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Join(ErrMalformedResponse, err)
	}
	return nil
}

func correlationID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "-"
	}
	return base58.Encode(buf)
}
