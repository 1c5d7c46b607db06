// Command portalgate runs the gateway: the local JSON API, the execution
// router, and the bridge endpoint the requester agent attaches to.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ksutools/portalgate/internal/app"
	"github.com/ksutools/portalgate/internal/logging"
	"github.com/ksutools/portalgate/internal/server"
)

func main() {
	cfg := app.DefaultConfig()

	flag.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "address for the HTTP API and bridge endpoint")
	flag.StringVar(&cfg.StorageRoot, "storage", cfg.StorageRoot, "directory for persistent state")
	flag.StringVar(&cfg.Store.Backend, "store", cfg.Store.Backend, "key-value backend: sqlite, leveldb or memory")
	flag.Parse()

	logger := logging.NewStdoutLogger("portalgate")

	a, err := app.NewApplication(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "portalgate: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	srv := server.NewServer(server.Config{
		ListenAddr: cfg.ListenAddr,
		Logger:     logger,
	}, a)

	logger.Info("gateway listening", logging.Field{Key: "addr", Value: cfg.ListenAddr})
	if err := srv.HTTPServer().ListenAndServe(); err != nil {
		fmt.Fprintf(os.Stderr, "portalgate: %v\n", err)
		os.Exit(1)
	}
}
