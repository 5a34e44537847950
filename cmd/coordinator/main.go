// Command coordinator runs the graphdb-edge coordinator process: a QUIC
// listener that accepts one persistent stream per shard connection,
// buffers incoming CDC batches per namespace, and flushes them durably to
// blob storage on a size or time trigger (§4.8, §4.9).
//
// Configuration (environment variables):
//
//	COORDINATOR_ADDR       listen address (default "127.0.0.1:4443")
//	COORDINATOR_BLOB_DIR   local blob store root (default "./data/blobs")
//	COORDINATOR_NAMESPACES comma-separated namespaces accepted over TLS ALPN
//	                       (default "default")
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/arloliu/graphdb-edge/blobstore"
	"github.com/arloliu/graphdb-edge/coordinator"
	"github.com/arloliu/graphdb-edge/durablewriter"
	"github.com/arloliu/graphdb-edge/transport"
)

func main() {
	addr := getenv("COORDINATOR_ADDR", "127.0.0.1:4443")
	blobDir := getenv("COORDINATOR_BLOB_DIR", "./data/blobs")
	namespaces := strings.Split(getenv("COORDINATOR_NAMESPACES", "default"), ",")

	store, err := blobstore.New(blobDir)
	if err != nil {
		log.Fatalf("open blob store: %v", err)
	}

	writer := coordinator.NewBlobWriter(store, durablewriter.DefaultOptions(), func(ev durablewriter.FailureEvent) {
		log.Printf("flush failed for namespace %s after %d attempts: %v", ev.Namespace, ev.Attempts, ev.Err)
	})
	flusher := coordinator.NewBlobFlusher(writer, nil)
	router := coordinator.NewAckRouter()
	coord := coordinator.New(flusher, router, time.Now())
	defer coord.Shutdown()

	tlsConfig, err := transport.GenerateSelfSignedServerConfig([]string{"127.0.0.1", "localhost"}, 30*24*time.Hour)
	if err != nil {
		log.Fatalf("generate tls config: %v", err)
	}

	alpns := make([]string, len(namespaces))
	for i, ns := range namespaces {
		alpns[i] = transport.ALPNForNamespace(strings.TrimSpace(ns))
	}
	tlsConfig.NextProtos = alpns

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ln, err := transport.Listen(ctx, addr, tlsConfig)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	log.Printf("coordinator listening on %s for namespaces %v", ln.Addr(), namespaces)

	go func() {
		for {
			conn, err := ln.Accept(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Printf("accept: %v", err)
				continue
			}

			go func() {
				if err := coordinator.ServeConn(ctx, conn, coord, router, transport.FramingJSON); err != nil {
					log.Printf("connection closed: %v", err)
				}
			}()
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("coordinator shutting down")
}

// getenv retrieves an environment variable with a default fallback value.
func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}

	return def
}
