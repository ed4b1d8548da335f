package main

import (
	"flag"
	"log"
	"os"

	"BtcTrader/internal/di"
	"BtcTrader/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s engine=%t kafka=%t clickhouse=%t postgres=%t redis=%t",
		cfg.Environment, cfg.Engine.Enabled, cfg.Kafka.Enabled, cfg.ClickHouse.Enabled, cfg.Postgres.Enabled, cfg.Redis.Enabled)

	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	// Run blocks until SIGINT/SIGTERM
	runErr := app.Run()
	cleanup()
	if runErr != nil {
		log.Printf("app error: %v", runErr)
		os.Exit(1)
	}
}
