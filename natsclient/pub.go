package natsclient

import (
	"github.com/bartossh/Paygate/webhooks"
)

// Publisher provides functionality to push messages to the pub/sub queue
type Publisher struct {
	*socket
}

// PublisherConnect connects publisher to the pub/sub queue using provided config
func PublisherConnect(cfg Config) (*Publisher, error) {
	var p Publisher
	var err error
	p.socket, err = connect(cfg)
	return &p, err
}

// PublishActivity publishes the node notification to every gateway instance.
func (p *Publisher) PublishActivity(n webhooks.Notification) error {
	msg, err := encode(n)
	if err != nil {
		return err
	}
	return p.conn.Publish(PubSubActivity, msg)
}
