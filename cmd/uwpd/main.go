package main

import (
	"errors"
	"log"

	"github.com/xian-network/go-uwp/internal/wallet/app"
)

func main() {
	cfg := app.LoadConfig()

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize wallet daemon: %v", err)
	}

	if err := application.Run(); err != nil {
		if errors.Is(err, app.ErrAlreadyRunning) {
			log.Fatalf("wallet daemon already running on %s:%d", cfg.Host, cfg.Port)
		}
		log.Fatalf("wallet daemon error: %v", err)
	}
}
