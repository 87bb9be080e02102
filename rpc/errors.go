package rpc

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrTransport         = errors.New("node transport failure")
	ErrStatus            = errors.New("node responded with unexpected status")
	ErrMalformedResponse = errors.New("node responded with malformed body")
	ErrWalletLocked      = errors.New("wallet is locked")
	ErrGapSource         = errors.New("gap source block")
	ErrAccountNotFound   = errors.New("account not found")
	ErrOldBlock          = errors.New("old block")
	ErrNodeFailure       = errors.New("node failure")
)

// Kind is the closed set of application level errors the node can report.
type Kind int

const (
	KindNone Kind = iota
	KindWalletLocked
	KindGapSource
	KindAccountNotFound
	KindOldBlock
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindWalletLocked:
		return "wallet_locked"
	case KindGapSource:
		return "gap_source"
	case KindAccountNotFound:
		return "account_not_found"
	case KindOldBlock:
		return "old_block"
	default:
		return "other"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindWalletLocked:
		return ErrWalletLocked
	case KindGapSource:
		return ErrGapSource
	case KindAccountNotFound:
		return ErrAccountNotFound
	case KindOldBlock:
		return ErrOldBlock
	default:
		return ErrNodeFailure
	}
}

// KindOf classifies the error message found in the node response.
func KindOf(msg string) Kind {
	m := strings.ToLower(strings.TrimSpace(msg))
	switch {
	case m == "":
		return KindNone
	case strings.Contains(m, "wallet is locked"), strings.Contains(m, "wallet locked"):
		return KindWalletLocked
	case strings.Contains(m, "gap source"):
		return KindGapSource
	case strings.Contains(m, "account not found"):
		return KindAccountNotFound
	case strings.Contains(m, "old block"), strings.Contains(m, "unreceivable"):
		return KindOldBlock
	default:
		return KindOther
	}
}

// Error is the node application error decorated with the invoked action and its arguments.
type Error struct {
	Action  string
	Args    Args
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("action %q failed [ %s ]: %s, args: %s", e.Action, e.Kind, e.Message, e.Args.redacted())
}

// Unwrap returns the sentinel error matching the Kind.
func (e *Error) Unwrap() error {
	return e.Kind.sentinel()
}

// KindFromError returns the Kind of the rpc Error wrapped in err, KindNone for nil and KindOther otherwise.
func KindFromError(err error) Kind {
	if err == nil {
		return KindNone
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindOther
}

var secretArgs = map[string]struct{}{
	"key":      {},
	"password": {},
	"private":  {},
}

func (a Args) redacted() string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("{")
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		if _, ok := secretArgs[k]; ok {
			fmt.Fprintf(&b, "%s: ***", k)
			continue
		}
		fmt.Fprintf(&b, "%s: %v", k, a[k])
	}
	b.WriteString("}")
	return b.String()
}
