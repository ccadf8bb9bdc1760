package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	_ "go.uber.org/automaxprocs"
	"go.uber.org/zap"

	"github.com/tarasyarema/interviewer/application"
	"github.com/tarasyarema/interviewer/pkg/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := application.New()
	if err := app.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error("relay exited with error", zap.Error(err))
		os.Exit(1)
	}

	_ = log.Sync()
}
