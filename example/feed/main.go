// Command feed replays a capture file through the pipeline using a LineFeed
// and reads the resulting records from a channel sink.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"

	"github.com/ghalamif/sensorlog"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatalf("usage: feed <capture.log>")
	}

	cfg := sensorlog.DefaultConfig()
	cfg.Metrics.Disabled = true

	feed := sensorlog.NewLineFeed(32)
	sink, records, closeRecords := sensorlog.NewChannelSink("stdout", 32)
	defer closeRecords()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for rec := range records {
			fmt.Printf("%s %.2f\n", rec.HostTimestamp(), rec.Temperature)
		}
	}()

	go func() {
		defer feed.CloseInput()
		f, err := os.Open(os.Args[1])
		if err != nil {
			log.Printf("open capture: %v", err)
			return
		}
		defer f.Close()
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			if err := feed.Publish(context.Background(), sc.Text()); err != nil {
				return
			}
		}
	}()

	flow, err := sensorlog.ConfFromConfig(cfg)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := flow.StreamIN(sensorlog.StreamInFeed(feed)).Run(context.Background(), sensorlog.StreamOutSink(sink)); err != nil {
		log.Fatalf("runtime error: %v", err)
	}
	<-done
}
