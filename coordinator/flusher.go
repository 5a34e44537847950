package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/arloliu/graphdb-edge/blobstore"
	"github.com/arloliu/graphdb-edge/cdc"
	"github.com/arloliu/graphdb-edge/durablewriter"
	"github.com/arloliu/graphdb-edge/internal/pool"
)

func defaultClock() int64 { return time.Now().UnixNano() }

// storePutter adapts a blobstore.Store (namespace+key scoped) to
// durablewriter.Putter, which only sees one namespace-qualified key per
// call. The key carries the namespace as its first path segment, the same
// split blobstore.Store.path would join back together.
type storePutter struct {
	store *blobstore.Store
}

func (p *storePutter) Put(ctx context.Context, key string, data []byte) error {
	namespace, rel, ok := strings.Cut(key, "/")
	if !ok {
		return fmt.Errorf("coordinator: blob key missing namespace prefix: %q", key)
	}

	return p.store.Put(ctx, namespace, rel, data)
}

// NewBlobWriter builds the durablewriter.Writer a BlobFlusher needs, backed
// by store. onFail observes a flush that exhausted its retries.
func NewBlobWriter(store *blobstore.Store, opts durablewriter.Options, onFail func(durablewriter.FailureEvent)) *durablewriter.Writer {
	return durablewriter.New(&storePutter{store: store}, opts, onFail)
}

// BlobFlusher implements Flusher by JSON-encoding a namespace's buffered
// events into one blob per flush and handing it to a durablewriter.Writer.
// It deliberately does not route flushed events through the combined index
// or chunk store: the coordinator's CDC responsibility ends at durably
// persisting the batch, not at building a queryable index from it, so a
// whole-batch encoding keyed by flush time is enough.
type BlobFlusher struct {
	writer *durablewriter.Writer
	clock  func() int64 // unix nanos; overridable so tests don't depend on wall clock ordering
}

// NewBlobFlusher creates a BlobFlusher around writer. clock defaults to
// time.Now().UnixNano if nil.
func NewBlobFlusher(writer *durablewriter.Writer, clock func() int64) *BlobFlusher {
	if clock == nil {
		clock = defaultClock
	}

	return &BlobFlusher{writer: writer, clock: clock}
}

// Flush encodes events as one JSON array and writes them under a
// namespace-scoped, time-ordered key.
func (f *BlobFlusher) Flush(ctx context.Context, namespace string, events []cdc.Event) (int, error) {
	buf := pool.GetBlobBuffer()
	defer pool.PutBlobBuffer(buf)

	if err := json.NewEncoder(buf).Encode(events); err != nil {
		return 0, fmt.Errorf("coordinator: encode cdc batch: %w", err)
	}

	key := fmt.Sprintf("%s/cdc-%020d.json", namespace, f.clock())

	return f.writer.Write(ctx, namespace, key, buf.Bytes(), len(events))
}
