// Command portalgate-agent is the privileged requester. It dials the
// gateway's bridge endpoint and executes the requests the gateway cannot
// perform on its own path.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ksutools/portalgate/internal/logging"
	"github.com/ksutools/portalgate/internal/proxy"
	"github.com/ksutools/portalgate/internal/proxy/bridge"
)

func main() {
	cfg := bridge.DefaultAgentConfig()

	flag.StringVar(&cfg.GatewayURL, "gateway", "ws://127.0.0.1:8964/bridge", "bridge endpoint of the gateway")
	insecure := flag.Bool("insecure", true, "skip TLS verification on upstream requests")
	flag.Parse()

	logger := logging.NewStdoutLogger("portalgate-agent")

	exec := proxy.NewNetHTTPExecutor(proxy.Config{InsecureSkipVerify: *insecure}, logger, nil)
	agent := bridge.NewAgent(cfg, exec, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := agent.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "portalgate-agent: %v\n", err)
		os.Exit(1)
	}
}
