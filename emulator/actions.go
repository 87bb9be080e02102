package emulator

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/bartossh/Paygate/address"
)

type response map[string]any

func failure(msg string) response {
	return response{"error": msg}
}

// Handle answers a single node request. The request carries the action name under the "action" key.
func (n *Node) Handle(req map[string]any) response {
	action := str(req["action"])

	n.mux.Lock()
	defer n.mux.Unlock()

	n.calls[action]++
	if queue := n.failures[action]; len(queue) > 0 {
		n.failures[action] = queue[1:]
		return failure(queue[0])
	}

	switch action {
	case "key_create":
		return n.keyCreate()
	case "key_expand":
		return n.keyExpand(req)
	case "wallet_unlock":
		return n.walletUnlock(req)
	case "account_balance":
		return n.accountBalance(req)
	case "account_info":
		return n.accountInfo(req)
	case "pending":
		return n.pendingBlocks(req)
	case "account_history":
		return n.accountHistory(req)
	case "blocks_info":
		return n.blocksInfo(req)
	case "block_create":
		return n.blockCreate(req)
	case "process":
		return n.process(req)
	case "validate_account_number":
		return n.validateAccount(req)
	case "rai_to_raw":
		return n.toRaw(req)
	case "rai_from_raw":
		return n.fromRaw(req)
	default:
		return failure(msgUnknownCommand)
	}
}

func (n *Node) keyCreate() response {
	key, _, err := generateKey()
	if err != nil {
		return failure(err.Error())
	}
	return n.expand(key)
}

func (n *Node) keyExpand(req map[string]any) response {
	return n.expand(strings.ToUpper(str(req["key"])))
}

func (n *Node) expand(key string) response {
	pub, err := publicKey(key)
	if err != nil {
		return failure(msgBadKey)
	}
	addr, err := address.Encode(pub)
	if err != nil {
		return failure(msgBadKey)
	}
	return response{"private": key, "public": strings.ToUpper(hex.EncodeToString(pub)), "account": addr}
}

func (n *Node) walletUnlock(req map[string]any) response {
	if n.wallet == "" || str(req["wallet"]) != n.wallet {
		return failure(msgWalletNotFound)
	}
	n.locked = false
	return response{"valid": "1"}
}

func (n *Node) accountBalance(req map[string]any) response {
	addr := str(req["account"])
	if address.Validate(addr) != nil {
		return failure(msgBadAccount)
	}
	balance := new(big.Int)
	if acc, ok := n.accounts[addr]; ok {
		balance = acc.balance
	}
	return response{"balance": balance.String(), "pending": n.pendingTotal(addr).String()}
}

func (n *Node) accountInfo(req map[string]any) response {
	addr := str(req["account"])
	if address.Validate(addr) != nil {
		return failure(msgBadAccount)
	}
	acc, ok := n.accounts[addr]
	if !ok {
		return failure(msgAccountMissing)
	}
	return response{
		"frontier":       acc.frontier,
		"balance":        acc.balance.String(),
		"representative": acc.representative,
		"block_count":    strconv.Itoa(len(acc.hashes)),
	}
}

func (n *Node) pendingBlocks(req map[string]any) response {
	addr := str(req["account"])
	if address.Validate(addr) != nil {
		return failure(msgBadAccount)
	}
	limit := count(req["count"], len(n.pending[addr]))
	hashes := make([]string, 0, limit)
	for _, h := range n.pending[addr] {
		if len(hashes) == limit {
			break
		}
		hashes = append(hashes, h)
	}
	if len(hashes) == 0 {
		return response{"blocks": ""}
	}
	return response{"blocks": hashes}
}

func (n *Node) accountHistory(req map[string]any) response {
	addr := str(req["account"])
	if address.Validate(addr) != nil {
		return failure(msgBadAccount)
	}
	acc, ok := n.accounts[addr]
	if !ok {
		return response{"account": addr, "history": ""}
	}
	limit := count(req["count"], len(acc.hashes))
	history := make([]map[string]string, 0, limit)
	for i := len(acc.hashes) - 1; i >= 0 && len(history) < limit; i-- {
		rec := n.blocks[acc.hashes[i]]
		typ := rec.subtype
		switch typ {
		case "open":
			typ = "receive"
		case "change":
			continue
		}
		history = append(history, map[string]string{
			"type":    typ,
			"account": rec.counterpart,
			"amount":  rec.amount.String(),
			"hash":    rec.hash,
			"height":  strconv.Itoa(rec.height),
		})
	}
	if len(history) == 0 {
		return response{"account": addr, "history": ""}
	}
	return response{"account": addr, "history": history}
}

func (n *Node) blocksInfo(req map[string]any) response {
	raw, _ := req["hashes"].([]any)
	blocks := make(map[string]any, len(raw))
	for _, v := range raw {
		h := strings.ToUpper(str(v))
		rec, ok := n.blocks[h]
		if !ok {
			return failure(msgBlockMissing)
		}
		blocks[h] = map[string]any{
			"block_account": rec.account,
			"amount":        rec.amount.String(),
			"balance":       rec.balance.String(),
			"height":        strconv.Itoa(rec.height),
			"subtype":       rec.subtype,
			"contents":      contents(rec),
		}
	}
	return response{"blocks": blocks}
}

func (n *Node) blockCreate(req map[string]any) response {
	if n.locked {
		return failure(msgWalletLocked)
	}
	if t := str(req["type"]); t != "state" {
		return failure(fmt.Sprintf("Invalid block type %q", t))
	}
	key := strings.ToUpper(str(req["key"]))
	account := str(req["account"])
	owner, err := keyAddress(key)
	if err != nil {
		return failure(msgBadKey)
	}
	if owner != account {
		return failure(msgIncorrectKey)
	}
	balance, ok := new(big.Int).SetString(str(req["balance"]), 10)
	if !ok || balance.Sign() < 0 {
		return failure(msgBadAmount)
	}
	link, err := linkHex(str(req["link"]))
	if err != nil {
		return failure(err.Error())
	}
	previous := strings.ToUpper(str(req["previous"]))
	if previous == "" {
		previous = ZeroHash
	}
	rec := &record{
		account:        account,
		previous:       previous,
		representative: str(req["representative"]),
		balance:        balance,
		link:           link,
	}
	rec.hash = blockHash(rec.account, rec.previous, rec.representative, rec.balance.String(), rec.link)
	return response{"hash": rec.hash, "block": contents(rec)}
}

func (n *Node) process(req map[string]any) response {
	var block map[string]any
	switch v := req["block"].(type) {
	case map[string]any:
		block = v
	case string:
		if err := json.Unmarshal([]byte(v), &block); err != nil {
			return failure("Block is invalid")
		}
	default:
		return failure("Block is invalid")
	}
	balance, ok := new(big.Int).SetString(str(block["balance"]), 10)
	if !ok {
		return failure(msgBadAmount)
	}
	account := str(block["account"])
	previous := strings.ToUpper(str(block["previous"]))
	rep := str(block["representative"])
	link := strings.ToUpper(str(block["link"]))
	hash := blockHash(account, previous, rep, balance.String(), link)

	if err := n.apply(hash, account, previous, rep, balance, link); err != nil {
		return failure(err.Error())
	}
	return response{"hash": hash}
}

func (n *Node) validateAccount(req map[string]any) response {
	if address.Validate(str(req["account"])) != nil {
		return response{"valid": "0"}
	}
	return response{"valid": "1"}
}

func (n *Node) toRaw(req map[string]any) response {
	r, ok := new(big.Rat).SetString(str(req["amount"]))
	if !ok || r.Sign() < 0 {
		return failure(msgBadAmount)
	}
	r.Mul(r, new(big.Rat).SetInt(n.multiplier))
	if !r.IsInt() {
		return failure(msgBadAmount)
	}
	return response{"amount": r.Num().String()}
}

func (n *Node) fromRaw(req map[string]any) response {
	raw, ok := new(big.Int).SetString(str(req["amount"]), 10)
	if !ok || raw.Sign() < 0 {
		return failure(msgBadAmount)
	}
	return response{"amount": new(big.Int).Quo(raw, n.multiplier).String()}
}

func contents(rec *record) map[string]string {
	c := map[string]string{
		"type":           "state",
		"account":        rec.account,
		"previous":       rec.previous,
		"representative": rec.representative,
		"balance":        rec.balance.String(),
		"link":           rec.link,
		"signature":      strings.Repeat("0", 128),
		"work":           strings.Repeat("0", 16),
	}
	if raw, err := hex.DecodeString(rec.link); err == nil {
		if addr, err := address.Encode(raw); err == nil {
			c["link_as_account"] = addr
		}
	}
	return c
}

// linkHex accepts the link either as a 64 hex characters hash / public key or as an address.
func linkHex(link string) (string, error) {
	if link == "" {
		return ZeroHash, nil
	}
	if pub, err := address.Decode(link); err == nil {
		return strings.ToUpper(hex.EncodeToString(pub)), nil
	}
	raw, err := hex.DecodeString(link)
	if err != nil || len(raw) != 32 {
		return "", errors.New(msgBadLink)
	}
	return strings.ToUpper(link), nil
}

func str(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}

func count(v any, fallback int) int {
	c, err := strconv.Atoi(str(v))
	if err != nil || c <= 0 || c > fallback {
		return fallback
	}
	return c
}
