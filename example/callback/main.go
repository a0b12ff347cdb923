package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/ghalamif/sensorlog/pkg/sensorlog"
)

func main() {
	flow, err := sensorlog.Conf("./config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	callback := func(rec sensorlog.Record) error {
		fmt.Printf("%s id=%s temperature=%.2f humidity=%.2f\n",
			rec.HostTimestamp(),
			rec.ID,
			rec.Temperature,
			rec.Humidity,
		)
		return nil
	}

	if err := flow.Run(ctx, sensorlog.StreamOutCallback("stdout", callback)); err != nil {
		log.Fatalf("runtime error: %v", err)
	}
}
