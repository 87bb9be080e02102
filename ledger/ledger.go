package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"

	"github.com/bartossh/Paygate/address"
	"github.com/bartossh/Paygate/rpc"
	"github.com/bartossh/Paygate/units"
)

// DefaultLimit is the number of pending hashes or history entries requested when no limit is given.
const DefaultLimit = 100

const (
	actionBalance  = "account_balance"
	actionInfo     = "account_info"
	actionPending  = "pending"
	actionHistory  = "account_history"
	actionBlocks   = "blocks_info"
	actionValidate = "validate_account_number"
)

const (
	TypeSend    = "send"
	TypeReceive = "receive"
)

var ErrBlockNotFound = errors.New("block not found in node response")

// AmountPair is the confirmed balance and the sum of pending sends of an account, both in raw units.
type AmountPair struct {
	Balance *big.Int `json:"balance"`
	Pending *big.Int `json:"pending"`
}

// Zero returns a pair with both amounts set to zero.
func Zero() AmountPair {
	return AmountPair{Balance: new(big.Int), Pending: new(big.Int)}
}

// Total returns balance plus pending.
func (p AmountPair) Total() *big.Int {
	t := new(big.Int)
	if p.Balance != nil {
		t.Add(t, p.Balance)
	}
	if p.Pending != nil {
		t.Add(t, p.Pending)
	}
	return t
}

// Covers reports whether the total reached the target.
func (p AmountPair) Covers(target *big.Int) bool {
	if target == nil {
		return true
	}
	return p.Total().Cmp(target) >= 0
}

// Block holds the semantic fields of a state block. Signature and work are passed through untouched.
// Source is only set on legacy receive and open blocks, which carry no link.
type Block struct {
	Type           string `json:"type"`
	Account        string `json:"account"`
	Previous       string `json:"previous"`
	Representative string `json:"representative"`
	Balance        string `json:"balance"`
	Link           string `json:"link"`
	LinkAsAccount  string `json:"link_as_account,omitempty"`
	Source         string `json:"source,omitempty"`
	Signature      string `json:"signature"`
	Work           string `json:"work"`
}

// HistoryEntry is a single send or receive of an account.
type HistoryEntry struct {
	Hash    string
	Type    string
	Amount  *big.Int
	Account string
}

// BlockInfo describes a block known to the node.
type BlockInfo struct {
	Hash     string
	Amount   *big.Int
	Account  string
	Subtype  string
	Contents Block
}

// AccountInfo is the chain head of an account. Opened is false for accounts without any block.
type AccountInfo struct {
	Opened         bool
	Frontier       string
	Balance        *big.Int
	Representative string
}

// Service queries account and block state from the node.
type Service struct {
	node rpc.Invoker
}

// New creates a new ledger query Service.
func New(node rpc.Invoker) *Service {
	return &Service{node: node}
}

// Balance returns the balance and pending amount of the address.
func (s *Service) Balance(ctx context.Context, addr string) (AmountPair, error) {
	var res struct {
		Balance string `json:"balance"`
		Pending string `json:"pending"`
	}
	if err := s.node.Invoke(ctx, actionBalance, rpc.Args{"account": addr}, &res); err != nil {
		return AmountPair{}, err
	}
	balance, err := units.ParseRaw(res.Balance)
	if err != nil {
		return AmountPair{}, err
	}
	pending, err := units.ParseRaw(res.Pending)
	if err != nil {
		return AmountPair{}, err
	}
	return AmountPair{Balance: balance, Pending: pending}, nil
}

// Info returns the chain head of the address. An account the node does not know yet is reported
// as not opened with zero balance.
func (s *Service) Info(ctx context.Context, addr string) (AccountInfo, error) {
	var res struct {
		Frontier       string `json:"frontier"`
		Balance        string `json:"balance"`
		Representative string `json:"representative"`
	}
	err := s.node.Invoke(ctx, actionInfo, rpc.Args{"account": addr}, &res)
	switch {
	case rpc.KindFromError(err) == rpc.KindAccountNotFound:
		return AccountInfo{Balance: new(big.Int)}, nil
	case err != nil:
		return AccountInfo{}, err
	}
	balance, err := units.ParseRaw(res.Balance)
	if err != nil {
		return AccountInfo{}, err
	}
	return AccountInfo{
		Opened:         res.Frontier != "",
		Frontier:       res.Frontier,
		Balance:        balance,
		Representative: res.Representative,
	}, nil
}

// Pending returns hashes of sends waiting to be received by the address.
func (s *Service) Pending(ctx context.Context, addr string, limit int, includeActive bool) ([]string, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	var res struct {
		Blocks hashList `json:"blocks"`
	}
	args := rpc.Args{
		"account":        addr,
		"count":          strconv.Itoa(limit),
		"include_active": strconv.FormatBool(includeActive),
	}
	if err := s.node.Invoke(ctx, actionPending, args, &res); err != nil {
		return nil, err
	}
	return res.Blocks, nil
}

// History returns up to limit most recent sends and receives of the address, newest first.
func (s *Service) History(ctx context.Context, addr string, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	var res struct {
		History entryList `json:"history"`
	}
	if err := s.node.Invoke(ctx, actionHistory, rpc.Args{"account": addr, "count": strconv.Itoa(limit)}, &res); err != nil {
		return nil, err
	}
	entries := make([]HistoryEntry, 0, len(res.History))
	for _, e := range res.History {
		amount, err := units.ParseRaw(e.Amount)
		if err != nil {
			return nil, err
		}
		entries = append(entries, HistoryEntry{Hash: e.Hash, Type: e.Type, Amount: amount, Account: e.Account})
	}
	return entries, nil
}

// Received returns the receive entries of the address history.
func (s *Service) Received(ctx context.Context, addr string, limit int) ([]HistoryEntry, error) {
	return s.filtered(ctx, addr, limit, TypeReceive)
}

// Sent returns the send entries of the address history.
func (s *Service) Sent(ctx context.Context, addr string, limit int) ([]HistoryEntry, error) {
	return s.filtered(ctx, addr, limit, TypeSend)
}

func (s *Service) filtered(ctx context.Context, addr string, limit int, typ string) ([]HistoryEntry, error) {
	history, err := s.History(ctx, addr, limit)
	if err != nil {
		return nil, err
	}
	entries := history[:0]
	for _, e := range history {
		if e.Type == typ {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// BlockInfo returns the amount, owning account and contents of the block.
func (s *Service) BlockInfo(ctx context.Context, hash string) (BlockInfo, error) {
	infos, err := s.BlocksInfo(ctx, []string{hash})
	if err != nil {
		return BlockInfo{}, err
	}
	info, ok := infos[hash]
	if !ok {
		return BlockInfo{}, errors.Join(ErrBlockNotFound, fmt.Errorf("hash %s", hash))
	}
	return info, nil
}

// BlocksInfo returns information of every requested block keyed by hash.
func (s *Service) BlocksInfo(ctx context.Context, hashes []string) (map[string]BlockInfo, error) {
	if len(hashes) == 0 {
		return map[string]BlockInfo{}, nil
	}
	var res struct {
		Blocks map[string]struct {
			BlockAccount string `json:"block_account"`
			Amount       string `json:"amount"`
			Subtype      string `json:"subtype"`
			Contents     Block  `json:"contents"`
		} `json:"blocks"`
	}
	if err := s.node.Invoke(ctx, actionBlocks, rpc.Args{"hashes": hashes}, &res); err != nil {
		return nil, err
	}
	infos := make(map[string]BlockInfo, len(res.Blocks))
	for h, b := range res.Blocks {
		amount, err := units.ParseRaw(b.Amount)
		if err != nil {
			return nil, err
		}
		infos[h] = BlockInfo{Hash: h, Amount: amount, Account: b.BlockAccount, Subtype: b.Subtype, Contents: b.Contents}
	}
	return infos, nil
}

// IsAddressValid checks the address format and checksum locally and then asks the node.
func (s *Service) IsAddressValid(ctx context.Context, addr string) (bool, error) {
	if address.Validate(addr) != nil {
		return false, nil
	}
	var res struct {
		Valid string `json:"valid"`
	}
	if err := s.node.Invoke(ctx, actionValidate, rpc.Args{"account": addr}, &res); err != nil {
		return false, err
	}
	return res.Valid == "1", nil
}

// TotalReceived sums every block ever credited to the address: received blocks from the history and
// blocks still pending. A hash present in both lists is counted once.
func (s *Service) TotalReceived(ctx context.Context, addr string) (*big.Int, error) {
	received, err := s.Received(ctx, addr, DefaultLimit)
	if err != nil {
		return nil, err
	}
	pending, err := s.Pending(ctx, addr, DefaultLimit, true)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(received)+len(pending))
	hashes := make([]string, 0, len(received)+len(pending))
	add := func(h string) {
		if _, ok := seen[h]; ok || h == "" {
			return
		}
		seen[h] = struct{}{}
		hashes = append(hashes, h)
	}
	for _, e := range received {
		add(e.Hash)
	}
	for _, h := range pending {
		add(h)
	}

	infos, err := s.BlocksInfo(ctx, hashes)
	if err != nil {
		return nil, err
	}
	total := new(big.Int)
	for _, h := range hashes {
		info, ok := infos[h]
		if !ok {
			return nil, errors.Join(ErrBlockNotFound, fmt.Errorf("hash %s", h))
		}
		total.Add(total, info.Amount)
	}
	return total, nil
}
