// Command shard runs one shard's CDC producer process: it streams buffered
// triple mutations to the coordinator over a reconnecting QUIC connection,
// resuming from its last acknowledged sequence after any restart (§4.7,
// §4.8).
//
// Configuration (environment variables):
//
//	SHARD_ID             this shard's identifier (required)
//	SHARD_NAMESPACE      namespace this shard belongs to (default "default")
//	SHARD_COORDINATOR    coordinator address to dial (default "127.0.0.1:4443")
//	SHARD_BUFFER_SIZE    max buffered CDC events before oldest-discard
//	                     (default 1000)
//	SHARD_WATERMARK_FILE local file recording the last acknowledged
//	                     sequence, so a restart resumes instead of
//	                     replaying from zero (default "./shard.watermark")
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/arloliu/graphdb-edge/shard"
	"github.com/arloliu/graphdb-edge/transport"
)

func main() {
	shardID := getenv("SHARD_ID", "")
	if shardID == "" {
		log.Fatal("SHARD_ID is required")
	}
	namespace := getenv("SHARD_NAMESPACE", "default")
	coordinatorAddr := getenv("SHARD_COORDINATOR", "127.0.0.1:4443")
	watermarkFile := getenv("SHARD_WATERMARK_FILE", "./shard.watermark")
	bufferSize := getenvInt("SHARD_BUFFER_SIZE", 1000)

	resumeFrom := readWatermark(watermarkFile)
	producer := shard.NewProducer(shardID, namespace, bufferSize, resumeFrom)

	persist := func(sequence uint64) {
		if err := os.WriteFile(watermarkFile, []byte(strconv.FormatUint(sequence, 10)), 0o644); err != nil {
			log.Printf("persist watermark: %v", err)
		}
	}

	dial := shard.DialQUIC(coordinatorAddr, namespace, transport.InsecureClientConfig(), transport.FramingJSON)
	runner := shard.NewRunner(producer, dial, persist, shard.DefaultRunnerOptions())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- runner.Run(ctx) }()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shard shutting down")
		cancel()
		<-runErr
	case err := <-runErr:
		if err != nil {
			log.Fatalf("runner stopped: %v", err)
		}
	}
}

func readWatermark(path string) uint64 {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}

	n, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0
	}

	return n
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}

	return def
}

func getenvInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}

	return n
}
