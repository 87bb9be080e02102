package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/bartossh/Paygate/ledger"
	"github.com/bartossh/Paygate/repository"
	"github.com/bartossh/Paygate/transaction"
	"github.com/bartossh/Paygate/webhooks"
)

// AliveResponse is a response for alive and version check.
type AliveResponse struct {
	Alive      bool   `json:"alive"`
	APIVersion string `json:"api_version"`
	APIHeader  string `json:"api_header"`
}

func (s *server) alive(c *fiber.Ctx) error {
	return c.JSON(
		AliveResponse{
			Alive:      true,
			APIVersion: ApiVersion,
			APIHeader:  Header,
		})
}

// CallbackRequest is the block notification the node posts to its http callback.
// Block is a JSON object or a string holding one.
type CallbackRequest struct {
	Account string          `json:"account"`
	Hash    string          `json:"hash"`
	Block   json.RawMessage `json:"block"`
	Amount  string          `json:"amount"`
	Subtype string          `json:"subtype"`
}

// OkResponse reports a request was accepted.
type OkResponse struct {
	Ok bool `json:"ok"`
}

func (s *server) callback(c *fiber.Ctx) error {
	var req CallbackRequest
	if err := c.BodyParser(&req); err != nil {
		s.log.Error(fmt.Sprintf("/callback endpoint, failed to parse request body: %s", err.Error()))
		return fiber.ErrBadRequest
	}
	if req.Account == "" || req.Hash == "" {
		s.log.Error("/callback endpoint, notification without account or hash")
		return fiber.ErrBadRequest
	}

	n := webhooks.Notification{Hash: req.Hash, Account: req.Account, Amount: req.Amount, Subtype: req.Subtype}
	if len(req.Block) > 0 {
		blk, err := ledger.DecodeBlock(req.Block)
		if err != nil {
			s.log.Error(fmt.Sprintf("/callback endpoint, block of %s is malformed: %s", req.Hash, err.Error()))
			return fiber.ErrBadRequest
		}
		n.Link = blk.LinkAsAccount
	}

	s.notify(n)
	return c.JSON(OkResponse{Ok: true})
}

func (s *server) notify(n webhooks.Notification) {
	if s.pub == nil {
		s.hub.Notify(n)
		return
	}
	if err := s.pub.PublishActivity(n); err != nil {
		s.log.Error(fmt.Sprintf("publishing activity of block %s failed, notifying locally: %s", n.Hash, err.Error()))
		s.hub.Notify(n)
	}
}

// WebhookRequest registers or removes the hook notified about activity of the address.
type WebhookRequest struct {
	Address string `json:"address"`
	URL     string `json:"url"`
	Token   string `json:"token"`
}

func (s *server) webhookCreate(c *fiber.Ctx) error {
	var req WebhookRequest
	if err := c.BodyParser(&req); err != nil {
		s.log.Error(fmt.Sprintf("/webhook endpoint, failed to parse request body: %s", err.Error()))
		return fiber.ErrBadRequest
	}
	if err := s.hub.CreateWebhook(req.Address, webhooks.Hook{URL: req.URL, Token: req.Token}); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return c.JSON(OkResponse{Ok: true})
}

func (s *server) webhookRemove(c *fiber.Ctx) error {
	var req WebhookRequest
	if err := c.BodyParser(&req); err != nil || req.Address == "" {
		return fiber.ErrBadRequest
	}
	s.hub.RemoveWebhook(req.Address)
	return c.JSON(OkResponse{Ok: true})
}

// CreateTransactionResponse tells the payer where and how much to pay.
type CreateTransactionResponse struct {
	ID        int64  `json:"id"`
	Account   string `json:"account"`
	Amount    string `json:"amount"`
	AmountRaw string `json:"amount_raw"`
	Currency  string `json:"currency"`
}

func (s *server) create(c *fiber.Ctx) error {
	var draft transaction.Draft
	if err := c.BodyParser(&draft); err != nil {
		s.log.Error(fmt.Sprintf("/transaction/create endpoint, failed to parse request body: %s", err.Error()))
		return fiber.ErrBadRequest
	}
	id, err := s.front.Create(c.Context(), draft)
	if err != nil {
		return s.failure(c, CreateTransactionURL, err)
	}
	trx, err := s.front.Get(c.Context(), id)
	if err != nil {
		return s.failure(c, CreateTransactionURL, err)
	}
	return c.JSON(CreateTransactionResponse{
		ID:        trx.ID,
		Account:   trx.Account,
		Amount:    trx.Amount,
		AmountRaw: trx.AmountRaw,
		Currency:  trx.Currency,
	})
}

// TransactionResponse is the stored transaction with everything its account was ever credited.
type TransactionResponse struct {
	transaction.Transaction
	ReceivedRaw string `json:"received_raw"`
}

func (s *server) read(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return fiber.ErrBadRequest
	}
	trx, err := s.front.Get(c.Context(), id)
	if err != nil {
		return s.failure(c, TransactionURL, err)
	}
	received, err := s.front.Received(c.Context(), id)
	if err != nil {
		return s.failure(c, TransactionURL, err)
	}
	return c.JSON(TransactionResponse{Transaction: trx, ReceivedRaw: received.String()})
}

// AccountRequest addresses a transaction by its payment account.
type AccountRequest struct {
	Account string `json:"account"`
}

func (s *server) refund(c *fiber.Ctx) error {
	var req AccountRequest
	if err := c.BodyParser(&req); err != nil || req.Account == "" {
		return fiber.ErrBadRequest
	}
	if err := s.front.RefundByAccount(c.Context(), req.Account); err != nil {
		return s.failure(c, RefundTransactionURL, err)
	}
	return c.JSON(OkResponse{Ok: true})
}

func (s *server) process(c *fiber.Ctx) error {
	var req AccountRequest
	if err := c.BodyParser(&req); err != nil || req.Account == "" {
		return fiber.ErrBadRequest
	}
	if err := s.front.ProcessByAccount(c.Context(), req.Account); err != nil {
		return s.failure(c, ProcessTransactionURL, err)
	}
	return c.JSON(OkResponse{Ok: true})
}

// failure maps caller correctable errors to client responses and hides the rest.
func (s *server) failure(c *fiber.Ctx, endpoint string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return fiber.ErrNotFound
	case errors.Is(err, transaction.ErrInvalidAddress),
		errors.Is(err, transaction.ErrInvalidAmount),
		errors.Is(err, transaction.ErrUnsupportedCurrency),
		errors.Is(err, transaction.ErrInvalidTransition):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	default:
		s.log.Error(fmt.Sprintf("%s endpoint, %s", endpoint, err.Error()))
		return fiber.ErrInternalServerError
	}
}
