package emulator

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"golang.org/x/crypto/blake2b"

	"github.com/bartossh/Paygate/address"
)

// ZeroHash is the previous block hash of an account opening block.
const ZeroHash = "0000000000000000000000000000000000000000000000000000000000000000"

const (
	defaultMultiplier = "1000000000000000000000000"
	defaultPort       = 7076
)

const (
	msgBadAccount      = "Bad account number"
	msgBadKey          = "Bad private key"
	msgBadAmount       = "Bad amount number"
	msgIncorrectKey    = "Incorrect key for given account"
	msgWalletLocked    = "Wallet is locked"
	msgWalletNotFound  = "Wallet not found"
	msgAccountMissing  = "Account not found"
	msgBlockMissing    = "Block not found"
	msgOldBlock        = "Old block"
	msgFork            = "Fork"
	msgGapSource       = "Gap source block"
	msgGapPrevious     = "Gap previous block"
	msgUnreceivable    = "Unreceivable"
	msgBalanceMismatch = "Balance mismatch"
	msgUnknownCommand  = "Unknown command"
	msgBadLink         = "Bad link number"
)

var errGenesis = errors.New("genesis account cannot be created")

// Config contains the emulated node configuration.
type Config struct {
	Port           int    `yaml:"port"`           // Port the node RPC is served on.
	Multiplier     string `yaml:"multiplier"`     // Raw units in one display unit.
	Representative string `yaml:"representative"` // Representative used by the genesis account.
	Wallet         string `yaml:"wallet"`         // Wallet id accepted by wallet_unlock.
	Locked         bool   `yaml:"locked"`         // Wallet starts locked, block_create fails until unlocked.
}

type record struct {
	hash           string
	subtype        string
	account        string
	previous       string
	representative string
	balance        *big.Int
	link           string
	amount         *big.Int
	counterpart    string
	height         int
}

type chain struct {
	frontier       string
	balance        *big.Int
	representative string
	hashes         []string
}

// Node is an in-memory ledger node answering node RPC actions.
// It keeps account chains, pending sends and the wallet lock state. Signatures and work are not verified.
type Node struct {
	mux        sync.Mutex
	multiplier *big.Int
	wallet     string
	locked     bool
	genesis    string
	genesisKey string
	accounts   map[string]*chain
	blocks     map[string]*record
	pending    map[string][]string
	failures   map[string][]string
	calls      map[string]int
}

// New creates a new Node with the genesis account holding the whole supply.
func New(cfg Config) (*Node, error) {
	mul := cfg.Multiplier
	if mul == "" {
		mul = defaultMultiplier
	}
	multiplier, ok := new(big.Int).SetString(mul, 10)
	if !ok || multiplier.Sign() <= 0 {
		return nil, fmt.Errorf("invalid multiplier %q", mul)
	}

	n := &Node{
		multiplier: multiplier,
		wallet:     cfg.Wallet,
		locked:     cfg.Locked,
		accounts:   make(map[string]*chain),
		blocks:     make(map[string]*record),
		pending:    make(map[string][]string),
		failures:   make(map[string][]string),
		calls:      make(map[string]int),
	}

	key, addr, err := generateKey()
	if err != nil {
		return nil, errors.Join(errGenesis, err)
	}
	rep := cfg.Representative
	if rep == "" {
		rep = addr
	}
	supply := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
	genesis := &record{
		subtype:        "open",
		account:        addr,
		previous:       ZeroHash,
		representative: rep,
		balance:        supply,
		link:           ZeroHash,
		amount:         supply,
		counterpart:    addr,
		height:         1,
	}
	genesis.hash = blockHash(genesis.account, genesis.previous, genesis.representative, genesis.balance.String(), genesis.link)
	n.blocks[genesis.hash] = genesis
	n.accounts[addr] = &chain{frontier: genesis.hash, balance: supply, representative: rep, hashes: []string{genesis.hash}}
	n.genesis = addr
	n.genesisKey = key

	return n, nil
}

// Genesis returns the genesis account address.
func (n *Node) Genesis() string {
	return n.genesis
}

// Lock locks the wallet so block creation fails until wallet_unlock is invoked.
func (n *Node) Lock() {
	n.mux.Lock()
	defer n.mux.Unlock()
	n.locked = true
}

// FailNext makes the next invocation of the action fail with the given node error message.
// Consecutive calls queue failures.
func (n *Node) FailNext(action, msg string) {
	n.mux.Lock()
	defer n.mux.Unlock()
	n.failures[action] = append(n.failures[action], msg)
}

// Calls returns how many times the action was invoked.
func (n *Node) Calls(action string) int {
	n.mux.Lock()
	defer n.mux.Unlock()
	return n.calls[action]
}

// NewAccount creates a key pair the node knows how to expand and returns the private key and address.
func (n *Node) NewAccount() (string, string, error) {
	return generateKey()
}

// Fund sends amount raw from the genesis account to the address, leaving it pending. Returns the send hash.
func (n *Node) Fund(addr string, amount *big.Int) (string, error) {
	return n.Transfer(n.genesisKey, addr, amount)
}

// Transfer sends amount raw from the account of the private key to the address, receiving all of the
// sender pending blocks first. Returns the send hash.
func (n *Node) Transfer(key, to string, amount *big.Int) (string, error) {
	n.mux.Lock()
	defer n.mux.Unlock()

	from, err := keyAddress(key)
	if err != nil {
		return "", err
	}
	if _, err := address.Decode(to); err != nil {
		return "", err
	}
	if err := n.settle(from); err != nil {
		return "", err
	}
	acc, ok := n.accounts[from]
	if !ok || acc.balance.Cmp(amount) < 0 {
		return "", fmt.Errorf("account %s cannot send %s", from, amount)
	}
	pub, _ := address.Decode(to)
	balance := new(big.Int).Sub(acc.balance, amount)
	hash := blockHash(from, acc.frontier, acc.representative, balance.String(), strings.ToUpper(hex.EncodeToString(pub)))
	return hash, n.apply(hash, from, acc.frontier, acc.representative, balance, strings.ToUpper(hex.EncodeToString(pub)))
}

// Balance returns the confirmed balance of the address.
func (n *Node) Balance(addr string) *big.Int {
	n.mux.Lock()
	defer n.mux.Unlock()
	if acc, ok := n.accounts[addr]; ok {
		return new(big.Int).Set(acc.balance)
	}
	return new(big.Int)
}

// PendingTotal returns the sum of all the sends waiting to be received by the address.
func (n *Node) PendingTotal(addr string) *big.Int {
	n.mux.Lock()
	defer n.mux.Unlock()
	return n.pendingTotal(addr)
}

// settle receives every pending block of the account.
func (n *Node) settle(addr string) error {
	for len(n.pending[addr]) > 0 {
		src := n.blocks[n.pending[addr][0]]
		acc, ok := n.accounts[addr]
		previous, rep, balance := ZeroHash, n.genesis, new(big.Int)
		if ok {
			previous, rep, balance = acc.frontier, acc.representative, acc.balance
		}
		balance = new(big.Int).Add(balance, src.amount)
		hash := blockHash(addr, previous, rep, balance.String(), src.hash)
		if err := n.apply(hash, addr, previous, rep, balance, src.hash); err != nil {
			return err
		}
	}
	return nil
}

func (n *Node) pendingTotal(addr string) *big.Int {
	total := new(big.Int)
	for _, h := range n.pending[addr] {
		total.Add(total, n.blocks[h].amount)
	}
	return total
}

// apply validates and appends the state block to the account chain. It returns node error messages as errors.
func (n *Node) apply(hash, account, previous, rep string, balance *big.Int, link string) error {
	if _, ok := n.blocks[hash]; ok {
		return errors.New(msgOldBlock)
	}

	acc, opened := n.accounts[account]
	current := new(big.Int)
	switch {
	case opened && previous != acc.frontier:
		if _, known := n.blocks[previous]; known {
			return errors.New(msgFork)
		}
		return errors.New(msgGapPrevious)
	case !opened && previous != ZeroHash:
		return errors.New(msgGapPrevious)
	case opened:
		current = acc.balance
	}

	rec := &record{
		hash:           hash,
		account:        account,
		previous:       previous,
		representative: rep,
		balance:        new(big.Int).Set(balance),
		link:           link,
	}

	switch balance.Cmp(current) {
	case -1:
		raw, err := hex.DecodeString(link)
		if err != nil {
			return errors.New(msgBadAccount)
		}
		dest, err := address.Encode(raw)
		if err != nil {
			return errors.New(msgBadAccount)
		}
		rec.subtype = "send"
		rec.amount = new(big.Int).Sub(current, balance)
		rec.counterpart = dest
		n.pending[dest] = append(n.pending[dest], hash)
	case 1:
		src, ok := n.blocks[link]
		if !ok {
			return errors.New(msgGapSource)
		}
		idx := indexOf(n.pending[account], link)
		if idx < 0 {
			return errors.New(msgUnreceivable)
		}
		amount := new(big.Int).Sub(balance, current)
		if amount.Cmp(src.amount) != 0 {
			return errors.New(msgBalanceMismatch)
		}
		rec.subtype = "receive"
		if !opened {
			rec.subtype = "open"
		}
		rec.amount = amount
		rec.counterpart = src.account
		n.pending[account] = append(n.pending[account][:idx:idx], n.pending[account][idx+1:]...)
	default:
		rec.subtype = "change"
		rec.amount = new(big.Int)
		rec.counterpart = account
	}

	if !opened {
		acc = &chain{}
		n.accounts[account] = acc
	}
	acc.frontier = hash
	acc.balance = rec.balance
	acc.representative = rep
	acc.hashes = append(acc.hashes, hash)
	rec.height = len(acc.hashes)
	n.blocks[hash] = rec

	return nil
}

func indexOf(hashes []string, h string) int {
	for i, v := range hashes {
		if v == h {
			return i
		}
	}
	return -1
}

func generateKey() (string, string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	key := strings.ToUpper(hex.EncodeToString(buf))
	addr, err := keyAddress(key)
	return key, addr, err
}

// publicKey derives the emulated public key from the private key.
func publicKey(key string) ([]byte, error) {
	raw, err := hex.DecodeString(key)
	if err != nil || len(raw) != 32 {
		return nil, errors.New(msgBadKey)
	}
	sum := blake2b.Sum256(raw)
	return sum[:], nil
}

func keyAddress(key string) (string, error) {
	pub, err := publicKey(key)
	if err != nil {
		return "", err
	}
	return address.Encode(pub)
}

func blockHash(fields ...string) string {
	h, _ := blake2b.New256(nil)
	for _, f := range fields {
		h.Write([]byte(strings.ToUpper(f)))
		h.Write([]byte{0})
	}
	return strings.ToUpper(hex.EncodeToString(h.Sum(nil)))
}
