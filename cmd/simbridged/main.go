package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/danmuck/simbridge/internal/bridge"
	"github.com/danmuck/simbridge/internal/config"
	"github.com/danmuck/simbridge/internal/logging"
	"github.com/danmuck/simbridge/internal/observability"
)

func main() {
	configPath := flag.String("config", "", "path to config.toml (defaults apply when unset)")
	flag.Parse()

	logging.ConfigureRuntime()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "simbridged: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	logger := observability.InitLogger("simbridged")
	observability.RegisterMetrics()

	svc := bridge.NewService(cfg, logger)
	if err := svc.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "simbridged: %v\n", err)
		os.Exit(1)
	}
}
