package transaction

import (
	"errors"
	"fmt"
	"math/big"
	"time"
)

var (
	ErrInvalidAddress      = errors.New("destination address is invalid")
	ErrInvalidAmount       = errors.New("amount is invalid")
	ErrUnsupportedCurrency = errors.New("currency is not supported")
	ErrInvalidTransition   = errors.New("status transition is not allowed")
)

// Status is the lifecycle state of a Transaction.
type Status string

const (
	StatusCreated  Status = "created"  // Persisted, nobody waits for the payment yet.
	StatusWaiting  Status = "waiting"  // A payer is expected to send funds to the account.
	StatusExpired  Status = "expired"  // The wait ended before the amount was received.
	StatusPending  Status = "pending"  // The amount was received and waits to be forwarded.
	StatusRefunded Status = "refunded" // The account balance was sent back to the senders.
	StatusComplete Status = "complete" // The amount was forwarded to the destination.
	StatusForce    Status = "force"    // Funds were forwarded regardless of the amount because a sender is an exchange.
	StatusPurged   Status = "purged"   // Soft deleted by the cleanup sweep.
)

var transitions = map[Status]map[Status]struct{}{
	StatusCreated:  set(StatusWaiting, StatusForce, StatusPurged),
	StatusWaiting:  set(StatusExpired, StatusPending, StatusForce, StatusPurged),
	StatusExpired:  set(StatusRefunded, StatusComplete, StatusForce, StatusPurged),
	StatusPending:  set(StatusRefunded, StatusComplete, StatusForce),
	StatusRefunded: set(StatusComplete, StatusForce, StatusPurged),
	StatusComplete: set(),
	StatusForce:    set(StatusRefunded, StatusPurged),
	StatusPurged:   set(),
}

func set(ss ...Status) map[Status]struct{} {
	m := make(map[Status]struct{}, len(ss))
	for _, s := range ss {
		m[s] = struct{}{}
	}
	return m
}

// Valid reports whether the status is known.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether the status may move to next. Staying in the same status is always allowed.
func (s Status) CanTransition(next Status) bool {
	if s == next {
		return s.Valid()
	}
	_, ok := transitions[s][next]
	return ok
}

// Predecessors returns every status allowed to move to s, s itself excluded.
func (s Status) Predecessors() []Status {
	var from []Status
	for _, st := range []Status{
		StatusCreated, StatusWaiting, StatusExpired, StatusPending,
		StatusRefunded, StatusComplete, StatusForce, StatusPurged,
	} {
		if st != s && st.CanTransition(s) {
			from = append(from, st)
		}
	}
	return from
}

// Open reports whether the cleanup sweep re-examines transactions in this status.
func (s Status) Open() bool {
	switch s {
	case StatusComplete, StatusPending, StatusRefunded, StatusExpired:
		return true
	default:
		return false
	}
}

// Draft is the payment request the transaction is created from.
type Draft struct {
	Destination string `json:"destination"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
}

// Transaction is a single payment attempt paid in to its own one-time account.
// Account and keys never change after creation, AmountRaw is derived from Amount.
type Transaction struct {
	ID          int64     `json:"id"          bson:"_id"         db:"id"`
	Status      Status    `json:"status"      bson:"status"      db:"status"`
	Destination string    `json:"destination" bson:"destination" db:"destination"`
	Amount      string    `json:"amount"      bson:"amount"      db:"amount"`
	AmountRaw   string    `json:"amount_raw"  bson:"amount_raw"  db:"amount_raw"`
	Account     string    `json:"account"     bson:"account"     db:"account"`
	Currency    string    `json:"currency"    bson:"currency"    db:"currency"`
	PrivateKey  string    `json:"-"           bson:"private_key" db:"private_key"`
	PublicKey   string    `json:"public_key"  bson:"public_key"  db:"public_key"`
	Created     time.Time `json:"created"     bson:"created"     db:"created"`
}

// Raw returns the amount in raw units.
func (t Transaction) Raw() (*big.Int, error) {
	v, ok := new(big.Int).SetString(t.AmountRaw, 10)
	if !ok || v.Sign() < 0 {
		return nil, errors.Join(ErrInvalidAmount, fmt.Errorf("transaction %d raw amount %q", t.ID, t.AmountRaw))
	}
	return v, nil
}

// PayPalStatus is the lifecycle state of a PayPalTransaction.
type PayPalStatus string

const (
	PayPalCreated  PayPalStatus = "created"
	PayPalComplete PayPalStatus = "complete"
)

// PayPalTransaction is a payment settled outside of the ledger. Only the cleanup sweep touches it.
type PayPalTransaction struct {
	ID        int64        `json:"id"         bson:"_id"        db:"id"`
	Status    PayPalStatus `json:"status"     bson:"status"     db:"status"`
	Amount    string       `json:"amount"     bson:"amount"     db:"amount"`
	Currency  string       `json:"currency"   bson:"currency"   db:"currency"`
	Email     string       `json:"email"      bson:"email"      db:"email"`
	PaymentID string       `json:"payment_id" bson:"payment_id" db:"payment_id"`
	Created   time.Time    `json:"created"    bson:"created"    db:"created"`
}
