package units

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/bartossh/Paygate/rpc"
)

const (
	actionToRaw   = "rai_to_raw"
	actionFromRaw = "rai_from_raw"
)

var ErrInvalidAmount = errors.New("invalid amount")

// displayAmount is a plain non negative decimal, no sign, exponent or fraction form.
var displayAmount = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// Converter converts between raw units and the display unit using the node.
// Conversion rates belong to the node, only zero is answered locally.
type Converter struct {
	node rpc.Invoker
}

// New creates a new Converter.
func New(node rpc.Invoker) *Converter {
	return &Converter{node: node}
}

type amountResponse struct {
	Amount string `json:"amount"`
}

// ToRaw converts the display amount to raw units.
func (c *Converter) ToRaw(ctx context.Context, display string) (*big.Int, error) {
	display = strings.TrimSpace(display)
	if !displayAmount.MatchString(display) {
		return nil, errors.Join(ErrInvalidAmount, fmt.Errorf("display amount %q", display))
	}
	r, ok := new(big.Rat).SetString(display)
	if !ok {
		return nil, errors.Join(ErrInvalidAmount, fmt.Errorf("display amount %q", display))
	}
	if r.Sign() == 0 {
		return new(big.Int), nil
	}

	var res amountResponse
	if err := c.node.Invoke(ctx, actionToRaw, rpc.Args{"amount": display}, &res); err != nil {
		return nil, err
	}
	return ParseRaw(res.Amount)
}

// ToDisplay converts raw units to the display amount.
func (c *Converter) ToDisplay(ctx context.Context, raw *big.Int) (string, error) {
	if raw == nil || raw.Sign() < 0 {
		return "", errors.Join(ErrInvalidAmount, fmt.Errorf("raw amount %v", raw))
	}
	if raw.Sign() == 0 {
		return "0", nil
	}

	var res amountResponse
	if err := c.node.Invoke(ctx, actionFromRaw, rpc.Args{"amount": raw.String()}, &res); err != nil {
		return "", err
	}
	if res.Amount == "" {
		return "", errors.Join(ErrInvalidAmount, fmt.Errorf("node returned no amount for raw %s", raw))
	}
	return res.Amount, nil
}

// ParseRaw parses a non negative decimal integer in raw units. Empty string is zero.
func ParseRaw(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, errors.Join(ErrInvalidAmount, fmt.Errorf("raw amount %q", s))
	}
	return v, nil
}
