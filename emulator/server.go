package emulator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/bartossh/Paygate/logger"
)

const header = "Paygate-Node-Emulator"

// ServeHTTP answers node requests posted as JSON objects, so the Node can back an httptest server.
func (n *Node) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req map[string]any
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(n.Handle(req))
}

// Run serves the node RPC on the configured port. It blocks until the context is canceled.
func Run(ctx context.Context, cfg Config, n *Node, log logger.Logger) error {
	port := cfg.Port
	if port == 0 {
		port = defaultPort
	}
	if port < 0 || port > 65535 {
		return fmt.Errorf("port %d out of range 1 - 65535", port)
	}

	router := fiber.New(fiber.Config{
		CaseSensitive: true,
		ReadTimeout:   time.Second * 5,
		WriteTimeout:  time.Second * 5,
		ServerHeader:  header,
	})
	router.Use(recover.New())
	router.Post("/", func(c *fiber.Ctx) error {
		var req map[string]any
		if err := json.Unmarshal(c.Body(), &req); err != nil {
			return fiber.ErrBadRequest
		}
		res := n.Handle(req)
		if msg, ok := res["error"]; ok {
			log.Warn(fmt.Sprintf("emulator %v failed: %v", req["action"], msg))
		}
		return c.JSON(res)
	})

	errC := make(chan error, 1)
	go func() {
		errC <- router.Listen(fmt.Sprintf("0.0.0.0:%d", port))
	}()
	log.Info(fmt.Sprintf("node emulator listening on port %d, genesis %s", port, n.Genesis()))

	select {
	case <-ctx.Done():
		return router.Shutdown()
	case err := <-errC:
		return err
	}
}
