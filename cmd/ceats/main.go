package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"

	"github.com/CesarCrz/cEatsv2-sub000/internal/app/api"
	"github.com/CesarCrz/cEatsv2-sub000/internal/app/dashboard"
	"github.com/CesarCrz/cEatsv2-sub000/internal/common/config"
	"github.com/CesarCrz/cEatsv2-sub000/internal/common/logger"
)

func main() {
	mode := flag.String("mode", "", "api | dashboard")
	port := flag.Int("port", 0, "http port (overrides config)")
	cfgPath := flag.String("config", "", "path to YAML config")
	flag.Parse()

	lg := logger.New("bootstrap")

	path := *cfgPath
	if path == "" {
		var err error
		if path, err = config.FindConfig(); err != nil {
			fmt.Fprintln(os.Stderr, "no config file found; pass --config")
			os.Exit(2)
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		lg.Error("config_load_failed", err, map[string]any{"path": path})
		os.Exit(1)
	}
	logger.SetLevel(cfg.LogLevel)
	if *port == 0 {
		*port = cfg.HTTP.Port
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch *mode {
	case "api":
		lg.Info("service_started", map[string]any{"service": "order-api", "port": *port})
		if err := api.Run(ctx, cfg, *port); err != nil {
			lg.Error("fatal", err, nil)
			os.Exit(1)
		}
	case "dashboard":
		lg.Info("service_started", map[string]any{"service": "dashboard", "port": *port})
		if err := dashboard.Run(ctx, cfg, *port); err != nil {
			lg.Error("fatal", err, nil)
			os.Exit(1)
		}
	default:
		fmt.Fprintln(os.Stderr, "--mode is required: api | dashboard")
		os.Exit(2)
	}
}
