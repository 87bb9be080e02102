package natsclient

import (
	"github.com/nats-io/nats.go"

	"github.com/bartossh/Paygate/webhooks"
)

// Subscriber provides functionality to pull messages from the pub/sub queue.
type Subscriber struct {
	*socket
}

// SubscriberConnect connects subscriber to the pub/sub queue using provided config
func SubscriberConnect(cfg Config) (*Subscriber, error) {
	var s Subscriber
	var err error
	s.socket, err = connect(cfg)
	return &s, err
}

// SubscribeActivity calls handle with every published node notification.
// Messages that cannot be decoded are passed to onErr and skipped.
func (s *Subscriber) SubscribeActivity(handle func(webhooks.Notification), onErr func(error)) error {
	_, err := s.conn.Subscribe(PubSubActivity, func(m *nats.Msg) {
		n, err := decode(m.Data)
		if err != nil {
			onErr(err)
			return
		}
		handle(n)
	})
	return err
}
