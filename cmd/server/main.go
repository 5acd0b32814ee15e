package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/woowenjun99/CG4002-Evaluation-Server/internal/app"
	"github.com/woowenjun99/CG4002-Evaluation-Server/internal/config"
	"github.com/woowenjun99/CG4002-Evaluation-Server/internal/telemetry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load(telemetry.WrapLogger(log.Default()))
	if err := app.Run(ctx, cfg); err != nil {
		log.Fatalf("%v", err)
	}
}
