package sweeper

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/bartossh/Paygate/account"
	"github.com/bartossh/Paygate/block"
	"github.com/bartossh/Paygate/ledger"
	"github.com/bartossh/Paygate/logger"
)

var ErrSourceUnresolved = errors.New("source block of a receive cannot be resolved")

// Engine receives everything pending in to an account and redistributes the balance, either back to
// the senders or onward to a destination. Every operation reads fresh balance and history, so
// repeating it after a partial failure never sends the same funds twice.
type Engine struct {
	accounts *account.Manager
	query    *ledger.Service
	builder  *block.Builder
	log      logger.Logger
}

// New creates a new Engine.
func New(accounts *account.Manager, query *ledger.Service, builder *block.Builder, log logger.Logger) *Engine {
	return &Engine{accounts: accounts, query: query, builder: builder, log: log}
}

// credit is a receive in to the account paired with the address that sent it.
type credit struct {
	hash   string
	sender string
	amount *big.Int
}

// RefundAccount receives all pending funds and sends the balance back to the senders, newest receive
// first, never more than each receive brought in minus what was already returned to its sender.
// Sends to destination are forwards, not returns, so they never reduce what its own receives get back.
// It returns the amount refunded by this call.
func (e *Engine) RefundAccount(ctx context.Context, key, destination string) (*big.Int, error) {
	acc, err := e.accounts.Derive(ctx, key)
	if err != nil {
		return nil, err
	}
	if _, err := e.builder.ReceiveAllPending(ctx, key); err != nil {
		return nil, err
	}

	refunded := new(big.Int)
	info, err := e.query.Info(ctx, acc.Address)
	if err != nil {
		return nil, err
	}
	remaining := new(big.Int).Set(info.Balance)
	if remaining.Sign() == 0 {
		return refunded, nil
	}

	credits, err := e.credits(ctx, acc.Address)
	if err != nil {
		return nil, err
	}
	returned, err := e.sentTotals(ctx, acc.Address)
	if err != nil {
		return nil, err
	}
	delete(returned, destination)

	for _, c := range credits {
		if remaining.Sign() == 0 {
			break
		}
		amount := new(big.Int).Set(c.amount)
		if done, ok := returned[c.sender]; ok && done.Sign() > 0 {
			used := minInt(amount, done)
			amount.Sub(amount, used)
			done.Sub(done, used)
		}
		amount = minInt(amount, remaining)
		if amount.Sign() == 0 {
			continue
		}

		created, err := e.builder.BuildSend(ctx, block.SendRequest{
			Key: key, Account: acc.Address, Destination: c.sender, Amount: amount,
		})
		if err != nil {
			return refunded, err
		}
		if _, err := e.builder.Submit(ctx, created.Block); err != nil {
			return refunded, err
		}
		e.log.Info(fmt.Sprintf("refunded %s raw of receive %s from %s to %s", amount, c.hash, acc.Address, c.sender))
		remaining.Sub(remaining, amount)
		refunded.Add(refunded, amount)
	}

	if remaining.Sign() > 0 {
		e.log.Warn(fmt.Sprintf("account %s keeps %s raw after refunding every receive", acc.Address, remaining))
	}
	return refunded, nil
}

// Senders returns the distinct senders of every block paid in to the account of the key without
// moving any funds. Senders of blocks still pending come first, then senders of receives, newest first.
func (e *Engine) Senders(ctx context.Context, key string) ([]string, error) {
	acc, err := e.accounts.Derive(ctx, key)
	if err != nil {
		return nil, err
	}
	credits, err := e.credits(ctx, acc.Address)
	if err != nil {
		return nil, err
	}
	pending, err := e.query.Pending(ctx, acc.Address, ledger.DefaultLimit, true)
	if err != nil {
		return nil, err
	}
	sends, err := e.query.BlocksInfo(ctx, pending)
	if err != nil {
		return nil, err
	}

	ordered := make([]string, 0, len(pending)+len(credits))
	for _, h := range pending {
		send, ok := sends[h]
		if !ok || send.Account == "" {
			return nil, errors.Join(ErrSourceUnresolved, fmt.Errorf("pending %s of %s", h, acc.Address))
		}
		ordered = append(ordered, send.Account)
	}
	for _, c := range credits {
		ordered = append(ordered, c.sender)
	}

	seen := make(map[string]struct{}, len(ordered))
	senders := make([]string, 0, len(ordered))
	for _, s := range ordered {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		senders = append(senders, s)
	}
	return senders, nil
}

// SweepTo receives all pending funds and sends what is still owed to the destination: amount minus
// everything already sent there. With clamp the send is limited to the balance. Without clamp a
// balance short of the owed amount fails with block.ErrInsufficientFunds unless part of it was
// already forwarded, then only the rest of the balance is sent. An empty account sends nothing.
// It returns the amount sent by this call.
func (e *Engine) SweepTo(ctx context.Context, key, destination string, amount *big.Int, clamp bool) (*big.Int, error) {
	acc, err := e.accounts.Derive(ctx, key)
	if err != nil {
		return nil, err
	}
	if _, err := e.builder.ReceiveAllPending(ctx, key); err != nil {
		return nil, err
	}

	sent, err := e.sentTotals(ctx, acc.Address)
	if err != nil {
		return nil, err
	}
	already := new(big.Int)
	if v, ok := sent[destination]; ok {
		already.Set(v)
	}
	owed := new(big.Int).Sub(amount, already)
	if owed.Sign() <= 0 {
		return new(big.Int), nil
	}

	info, err := e.query.Info(ctx, acc.Address)
	if err != nil {
		return nil, err
	}
	if info.Balance.Sign() == 0 {
		e.log.Warn(fmt.Sprintf("account %s is empty, %s raw owed to %s not sent", acc.Address, owed, destination))
		return new(big.Int), nil
	}
	if clamp || already.Sign() > 0 {
		owed = minInt(owed, info.Balance)
	}

	created, err := e.builder.BuildSend(ctx, block.SendRequest{
		Key: key, Account: acc.Address, Destination: destination, Amount: owed,
	})
	if err != nil {
		return nil, err
	}
	if _, err := e.builder.Submit(ctx, created.Block); err != nil {
		return nil, err
	}
	e.log.Info(fmt.Sprintf("forwarded %s raw from %s to %s", owed, acc.Address, destination))
	return owed, nil
}

// credits resolves the sender of every receive of the address by following the receive link, or the
// source of a legacy block, to the originating send block. Any receive without a resolvable source fails the whole call.
func (e *Engine) credits(ctx context.Context, addr string) ([]credit, error) {
	received, err := e.query.Received(ctx, addr, ledger.DefaultLimit)
	if err != nil || len(received) == 0 {
		return nil, err
	}

	hashes := make([]string, 0, len(received))
	for _, r := range received {
		hashes = append(hashes, r.Hash)
	}
	receives, err := e.query.BlocksInfo(ctx, hashes)
	if err != nil {
		return nil, err
	}

	sources := make([]string, 0, len(received))
	for _, r := range received {
		info, ok := receives[r.Hash]
		src := info.Contents.Link
		if src == "" || src == block.ZeroHash {
			src = info.Contents.Source
		}
		if !ok || src == "" || src == block.ZeroHash {
			return nil, errors.Join(ErrSourceUnresolved, fmt.Errorf("receive %s of %s", r.Hash, addr))
		}
		sources = append(sources, src)
	}
	origins, err := e.query.BlocksInfo(ctx, sources)
	if err != nil {
		return nil, errors.Join(ErrSourceUnresolved, err)
	}

	credits := make([]credit, 0, len(received))
	for i, r := range received {
		origin, ok := origins[sources[i]]
		if !ok || origin.Account == "" {
			return nil, errors.Join(ErrSourceUnresolved, fmt.Errorf("source %s of receive %s", sources[i], r.Hash))
		}
		credits = append(credits, credit{hash: r.Hash, sender: origin.Account, amount: r.Amount})
	}
	return credits, nil
}

// sentTotals sums the sends of the address per destination.
func (e *Engine) sentTotals(ctx context.Context, addr string) (map[string]*big.Int, error) {
	sent, err := e.query.Sent(ctx, addr, ledger.DefaultLimit)
	if err != nil {
		return nil, err
	}
	totals := make(map[string]*big.Int, len(sent))
	for _, s := range sent {
		if _, ok := totals[s.Account]; !ok {
			totals[s.Account] = new(big.Int)
		}
		totals[s.Account].Add(totals[s.Account], s.Amount)
	}
	return totals, nil
}

func minInt(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}
