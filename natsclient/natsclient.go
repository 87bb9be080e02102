package natsclient

import (
	"errors"
	"net/url"

	"github.com/nats-io/nats.go"
)

const (
	PubSubActivity string = "node_activity"
)

var ErrMalformedMessage = errors.New("activity message is malformed")

// Config contains all arguments required to connect to the nats service
type Config struct {
	Address string `yaml:"server_address"`
	Name    string `yaml:"client_name"`
	Token   string `yaml:"token"`
}

// Enabled reports whether the nats bridge is configured.
func (c Config) Enabled() bool {
	return c.Address != ""
}

type socket struct {
	conn *nats.Conn
}

func connect(cfg Config) (*socket, error) {
	var err error
	_, err = url.Parse(cfg.Address)
	if err != nil {
		return nil, err
	}
	var s socket
	s.conn, err = nats.Connect(cfg.Address, nats.Name(cfg.Name), nats.Token(cfg.Token))
	return &s, err
}

// Disconnect drains the message queue and disconnects from the pub/sub.
// All subscriptions are drained first, then the publishers, which can not publish afterwards.
func (s *socket) Disconnect() error {
	return s.conn.Drain()
}
