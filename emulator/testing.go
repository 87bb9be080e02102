package emulator

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bartossh/Paygate/logger"
	"github.com/bartossh/Paygate/providers"
	"github.com/bartossh/Paygate/rpc"
)

// Start runs the Node behind an httptest server and returns it with an rpc.Client talking to it.
// The server is closed when the test finishes.
func Start(tb testing.TB, cfg Config) (*Node, *rpc.Client) {
	tb.Helper()
	n, err := New(cfg)
	if err != nil {
		tb.Fatalf("emulator: %s", err)
	}
	srv := httptest.NewServer(n)
	tb.Cleanup(srv.Close)

	c, err := rpc.New(rpc.Config{
		Address:      srv.URL,
		Timeout:      5 * time.Second,
		RetryBackoff: 10 * time.Millisecond,
		Wallet:       cfg.Wallet,
	}, logger.Discard{}, providers.NoTelemetry{})
	if err != nil {
		tb.Fatalf("emulator: %s", err)
	}
	return n, c
}
