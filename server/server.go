package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/bartossh/Paygate/bookkeeping"
	"github.com/bartossh/Paygate/logger"
	"github.com/bartossh/Paygate/webhooks"
)

const (
	ApiVersion = "1.0.0"
	Header     = "Paygate-Gateway"
)

const (
	transactionGroupURL = "/transaction"
	createURL           = "/create"
	refundURL           = "/refund"
	processURL          = "/process"
	byIDURL             = "/:id"
	wsGroupURL          = "/ws"
	awaitURL            = "/await/:id"
)

const (
	AliveURL              = "/alive"                         // URL to check if server is alive and version.
	CallbackURL           = "/callback"                      // URL the node posts block notifications to.
	WebhookURL            = "/webhook"                       // URL to create or remove a webhook of an address.
	CreateTransactionURL  = transactionGroupURL + createURL  // URL to create a new payment transaction.
	RefundTransactionURL  = transactionGroupURL + refundURL  // URL to refund the transaction of an account.
	ProcessTransactionURL = transactionGroupURL + processURL // URL to process the transaction of an account.
	TransactionURL        = transactionGroupURL + byIDURL    // URL to read a transaction.
	AwaitURL              = wsGroupURL + awaitURL            // URL of the websocket waiting for a payment.
)

var (
	ErrWrongPortSpecified = errors.New("port must be between 1 and 65535")
	ErrWrongWaitTimeout   = errors.New("wait timeout must be between 1s and 1h")
)

// ActivityHub keeps node activity and the webhooks of watched addresses.
type ActivityHub interface {
	Notify(n webhooks.Notification)
	CreateWebhook(addr string, hook webhooks.Hook) error
	RemoveWebhook(addr string)
}

// ActivityPublisher spreads node activity to every gateway instance.
type ActivityPublisher interface {
	PublishActivity(n webhooks.Notification) error
}

// Config contains configuration of the server.
type Config struct {
	Port        int           `yaml:"port"`         // Port to listen on.
	WaitTimeout time.Duration `yaml:"wait_timeout"` // Longest payment wait a websocket client may ask for.
}

func validateConfig(c *Config) error {
	if c.Port <= 0 || c.Port > 65535 {
		return ErrWrongPortSpecified
	}
	if c.WaitTimeout == 0 {
		c.WaitTimeout = 10 * time.Minute
	}
	if c.WaitTimeout < time.Second || c.WaitTimeout > time.Hour {
		return ErrWrongWaitTimeout
	}
	return nil
}

type server struct {
	ctx         context.Context
	front       bookkeeping.FrontDoor
	hub         ActivityHub
	pub         ActivityPublisher
	waitTimeout time.Duration
	log         logger.Logger
}

// Run initializes routing and runs the server. To stop the server cancel the context.
// It blocks until the context is canceled. Node notifications go through pub when it is not nil,
// otherwise straight to the hub.
func Run(
	ctx context.Context, c Config, front bookkeeping.FrontDoor,
	hub ActivityHub, pub ActivityPublisher, log logger.Logger,
) error {
	var err error
	ctxx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := validateConfig(&c); err != nil {
		return err
	}

	s := &server{ctx: ctxx, front: front, hub: hub, pub: pub, waitTimeout: c.WaitTimeout, log: log}
	router := s.router()

	go func() {
		if errx := router.Listen(fmt.Sprintf("0.0.0.0:%v", c.Port)); errx != nil {
			err = errx
			cancel()
		}
	}()

	<-ctxx.Done()

	if errx := router.Shutdown(); errx != nil {
		err = errors.Join(err, errx)
	}

	return err
}

func (s *server) router() *fiber.App {
	router := fiber.New(fiber.Config{
		Prefork:       false,
		CaseSensitive: true,
		StrictRouting: true,
		ReadTimeout:   time.Second * 5,
		WriteTimeout:  time.Second * 5,
		ServerHeader:  Header,
		AppName:       ApiVersion,
		Concurrency:   4096,
	})
	router.Use(recover.New())

	router.Get(AliveURL, s.alive)
	router.Post(CallbackURL, s.callback)
	router.Post(WebhookURL, s.webhookCreate)
	router.Delete(WebhookURL, s.webhookRemove)

	transaction := router.Group(transactionGroupURL)
	transaction.Post(createURL, s.create)
	transaction.Post(refundURL, s.refund)
	transaction.Post(processURL, s.process)
	transaction.Get(byIDURL, s.read)

	ws := router.Group(wsGroupURL)
	ws.Get(awaitURL, s.awaitUpgrade, s.awaitWs())

	return router
}
