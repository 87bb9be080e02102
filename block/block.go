package block

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/bartossh/Paygate/account"
	"github.com/bartossh/Paygate/ledger"
	"github.com/bartossh/Paygate/logger"
	"github.com/bartossh/Paygate/rpc"
)

// ZeroHash is the previous hash of the first block of an account.
const ZeroHash = "0000000000000000000000000000000000000000000000000000000000000000"

const (
	actionCreate  = "block_create"
	actionProcess = "process"
	stateBlock    = "state"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrMalformedBlock    = errors.New("node returned malformed block")
)

// Created is a block built and signed by the node, not yet submitted.
type Created struct {
	Hash  string
	Block ledger.Block
}

// SendRequest describes a send of Amount raw from Account to Destination.
type SendRequest struct {
	Key         string
	Account     string
	Destination string
	Amount      *big.Int
}

// ReceiveRequest describes receiving the pending Source send of Amount raw in to Account.
type ReceiveRequest struct {
	Key     string
	Account string
	Source  string
	Amount  *big.Int
}

// Config contains block builder configuration.
type Config struct {
	Representative string `yaml:"representative"` // Representative set on account opening blocks, the account itself when empty.
}

// Builder builds, signs through the node and submits state blocks.
// Every build reads a fresh frontier and balance, so building is safe to repeat.
type Builder struct {
	node     rpc.Invoker
	query    *ledger.Service
	accounts *account.Manager
	cfg      Config
	log      logger.Logger
}

// New creates a new Builder.
func New(cfg Config, node rpc.Invoker, query *ledger.Service, accounts *account.Manager, log logger.Logger) *Builder {
	return &Builder{node: node, query: query, accounts: accounts, cfg: cfg, log: log}
}

// BuildSend builds a send block. It fails with ErrInsufficientFunds when amount exceeds the balance,
// the amount is never clamped.
func (b *Builder) BuildSend(ctx context.Context, req SendRequest) (Created, error) {
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return Created{}, ErrInvalidAmount
	}
	info, err := b.query.Info(ctx, req.Account)
	if err != nil {
		return Created{}, err
	}
	balance := new(big.Int).Sub(info.Balance, req.Amount)
	if balance.Sign() < 0 {
		return Created{}, errors.Join(
			ErrInsufficientFunds,
			fmt.Errorf("account %s holds %s, cannot send %s", req.Account, info.Balance, req.Amount),
		)
	}
	return b.create(ctx, req.Key, req.Account, info.Frontier, b.representative(info, req.Account), balance, req.Destination)
}

// BuildReceive builds a receive block. An account without blocks is opened with balance equal to amount.
func (b *Builder) BuildReceive(ctx context.Context, req ReceiveRequest) (Created, error) {
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return Created{}, ErrInvalidAmount
	}
	info, err := b.query.Info(ctx, req.Account)
	if err != nil {
		return Created{}, err
	}
	previous := info.Frontier
	balance := new(big.Int).Add(info.Balance, req.Amount)
	if !info.Opened {
		previous = ZeroHash
		balance = new(big.Int).Set(req.Amount)
	}
	return b.create(ctx, req.Key, req.Account, previous, b.representative(info, req.Account), balance, req.Source)
}

// Submit hands the block to the node for processing and returns its hash.
// The hash is empty when the node tolerated a missing source block.
func (b *Builder) Submit(ctx context.Context, blk ledger.Block) (string, error) {
	var res struct {
		Hash string `json:"hash"`
	}
	if err := b.node.Invoke(ctx, actionProcess, rpc.Args{"block": blk}, &res); err != nil {
		return "", err
	}
	if res.Hash == "" {
		b.log.Warn(fmt.Sprintf("process of block for account %s returned no hash", blk.Account))
	}
	return res.Hash, nil
}

// Send sends amount raw from the account of the key to the destination.
func (b *Builder) Send(ctx context.Context, key, destination string, amount *big.Int) (string, error) {
	acc, err := b.accounts.Derive(ctx, key)
	if err != nil {
		return "", err
	}
	created, err := b.BuildSend(ctx, SendRequest{Key: key, Account: acc.Address, Destination: destination, Amount: amount})
	if err != nil {
		return "", err
	}
	return b.Submit(ctx, created.Block)
}

// Receive receives the pending source block in to the account of the key.
// Receiving an already received block does nothing and returns an empty hash.
func (b *Builder) Receive(ctx context.Context, key, source string) (string, error) {
	acc, err := b.accounts.Derive(ctx, key)
	if err != nil {
		return "", err
	}
	return b.receive(ctx, key, acc.Address, source)
}

// ReceiveAllPending receives every pending block of the account of the key, one after another.
func (b *Builder) ReceiveAllPending(ctx context.Context, key string) ([]string, error) {
	acc, err := b.accounts.Derive(ctx, key)
	if err != nil {
		return nil, err
	}
	pending, err := b.query.Pending(ctx, acc.Address, ledger.DefaultLimit, true)
	if err != nil {
		return nil, err
	}
	hashes := make([]string, 0, len(pending))
	for _, source := range pending {
		h, err := b.receive(ctx, key, acc.Address, source)
		if err != nil {
			return hashes, err
		}
		if h != "" {
			hashes = append(hashes, h)
		}
	}
	return hashes, nil
}

func (b *Builder) receive(ctx context.Context, key, addr, source string) (string, error) {
	src, err := b.query.BlockInfo(ctx, source)
	if err != nil {
		return "", err
	}
	created, err := b.BuildReceive(ctx, ReceiveRequest{Key: key, Account: addr, Source: source, Amount: src.Amount})
	if err != nil {
		return "", err
	}
	h, err := b.Submit(ctx, created.Block)
	if errors.Is(err, rpc.ErrOldBlock) {
		b.log.Info(fmt.Sprintf("source %s already received by %s", source, addr))
		return "", nil
	}
	return h, err
}

func (b *Builder) representative(info ledger.AccountInfo, addr string) string {
	switch {
	case info.Representative != "":
		return info.Representative
	case b.cfg.Representative != "":
		return b.cfg.Representative
	default:
		return addr
	}
}

func (b *Builder) create(ctx context.Context, key, addr, previous, rep string, balance *big.Int, link string) (Created, error) {
	args := rpc.Args{
		"type":           stateBlock,
		"key":            key,
		"account":        addr,
		"previous":       previous,
		"representative": rep,
		"balance":        balance.String(),
		"link":           link,
	}
	var res struct {
		Hash  string          `json:"hash"`
		Block json.RawMessage `json:"block"`
	}
	if err := b.node.Invoke(ctx, actionCreate, args, &res); err != nil {
		return Created{}, err
	}
	blk, err := ledger.DecodeBlock(res.Block)
	if err != nil {
		return Created{}, errors.Join(ErrMalformedBlock, err)
	}
	if res.Hash == "" {
		return Created{}, errors.Join(ErrMalformedBlock, fmt.Errorf("block for %s has no hash", addr))
	}
	return Created{Hash: res.Hash, Block: blk}, nil
}
