package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/ghalamif/sensorlog"
)

func main() {
	flow, err := sensorlog.Conf("./config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := flow.Run(ctx); err != nil {
		log.Fatalf("sensorlog exited: %v", err)
	}
}
