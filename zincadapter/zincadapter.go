package zincadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bartossh/Paygate/httpclient"
)

const (
	healthz      = "/healthz"
	documentPath = "/api/%s/_doc"
)

const timeout = time.Second * 5

var (
	ErrEmptyAddressProvided    = errors.New("empty zinc address provided")
	ErrZincServerNotResponding = errors.New("zinc server not responding on given address")
	ErrZincServerWriteFailed   = errors.New("zinc server write failed")
)

// Config contains configuration for logger back-end.
type Config struct {
	Address string `yaml:"address"` // logger back-end server address
	Index   string `yaml:"index"`   // unique index per service to easy search for logs by the service
}

// ZincClient provides a client that sends logs to the zincsearch backend.
type ZincClient struct {
	url string
}

// New creates a new ZincClient after the zinc server answered the health probe.
func New(cfg Config) (ZincClient, error) {
	if cfg.Address == "" {
		return ZincClient{}, ErrEmptyAddressProvided
	}
	address := strings.TrimRight(cfg.Address, "/")
	if err := httpclient.MakeGet(timeout, address+healthz, nil); err != nil {
		return ZincClient{}, errors.Join(ErrZincServerNotResponding, err)
	}
	index := cfg.Index
	if index == "" {
		index = "paygate"
	}
	return ZincClient{url: address + fmt.Sprintf(documentPath, index)}, nil
}

// Write satisfies io.Writer abstraction. p is expected to be a JSON log document.
func (z *ZincClient) Write(p []byte) (n int, err error) {
	var doc any = json.RawMessage(p)
	if !json.Valid(p) {
		doc = map[string]string{"msg": string(p)}
	}
	if err := httpclient.MakePost(timeout, z.url, doc, nil); err != nil {
		return 0, errors.Join(ErrZincServerWriteFailed, err)
	}
	return len(p), nil
}
