package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bartossh/Paygate/address"
	"github.com/bartossh/Paygate/rpc"
)

const (
	actionCreate = "key_create"
	actionExpand = "key_expand"
)

var (
	ErrInvalidKey      = errors.New("private key is not a 64 characters hex string")
	ErrMalformedKeySet = errors.New("node returned malformed key set")
)

// Account is an ephemeral identity owning a one-time receiving address.
// It lives as long as the transaction it belongs to.
type Account struct {
	Address    string `json:"account" bson:"account"     db:"account"`
	PrivateKey string `json:"private" bson:"private_key" db:"private_key"`
	PublicKey  string `json:"public"  bson:"public_key"  db:"public_key"`
}

// String hides the private key.
func (a Account) String() string {
	return fmt.Sprintf("account %s", a.Address)
}

// Manager issues key pairs and derives addresses with the node.
// It keeps no state and is safe for concurrent use.
type Manager struct {
	node rpc.Invoker
}

// New creates a new account Manager.
func New(node rpc.Invoker) *Manager {
	return &Manager{node: node}
}

// Create asks the node for a fresh key pair. No wallet registration takes place, the private key
// returned is enough to sign blocks of the account.
func (m *Manager) Create(ctx context.Context) (Account, error) {
	var acc Account
	if err := m.node.Invoke(ctx, actionCreate, nil, &acc); err != nil {
		return Account{}, err
	}
	return acc, acc.check()
}

// Derive expands the private key in to its public key and address.
func (m *Manager) Derive(ctx context.Context, privateKey string) (Account, error) {
	if !isHexKey(privateKey) {
		return Account{}, ErrInvalidKey
	}
	var acc Account
	if err := m.node.Invoke(ctx, actionExpand, rpc.Args{"key": privateKey}, &acc); err != nil {
		return Account{}, err
	}
	if acc.PrivateKey == "" {
		acc.PrivateKey = privateKey
	}
	return acc, acc.check()
}

func (a Account) check() error {
	if a.PrivateKey == "" || a.PublicKey == "" {
		return ErrMalformedKeySet
	}
	if err := address.Validate(a.Address); err != nil {
		return errors.Join(ErrMalformedKeySet, err)
	}
	return nil
}

func isHexKey(k string) bool {
	if len(k) != 64 {
		return false
	}
	return strings.Trim(strings.ToUpper(k), "0123456789ABCDEF") == ""
}
