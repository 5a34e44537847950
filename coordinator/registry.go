// Package coordinator implements the coordinator side of the CDC pipeline
// (§4.8): per-namespace buffering, sequence-watermark tracking, and the
// flush policy that hands batches off to durablewriter.
package coordinator

import (
	"fmt"
	"sync"
	"time"
)

// ShardRecord is the durable registration state the coordinator keeps for
// one shard: its resume point and when it last registered.
type ShardRecord struct {
	ShardID      string
	Namespace    string
	LastSequence uint64
	RegisteredAt time.Time
}

// Registry tracks ShardRecords by shard ID. All accessors return copies so
// callers can never mutate state behind the registry's back.
type Registry struct {
	mu      sync.RWMutex
	records map[string]*ShardRecord
}

// NewRegistry creates an empty shard registry.
func NewRegistry() *Registry {
	return &Registry{records: make(map[string]*ShardRecord)}
}

// Register records shardID's resume point for namespace, overwriting any
// prior record. now is the registration timestamp (passed in rather than
// read from the clock so callers control it in tests and under replay).
func (r *Registry) Register(shardID, namespace string, lastSequence uint64, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records[shardID] = &ShardRecord{
		ShardID:      shardID,
		Namespace:    namespace,
		LastSequence: lastSequence,
		RegisteredAt: now,
	}
}

// Get returns a copy of shardID's record, or nil if it isn't registered.
func (r *Registry) Get(shardID string) *ShardRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[shardID]
	if !ok {
		return nil
	}

	cp := *rec

	return &cp
}

// UpdateSequence advances shardID's watermark to sequence. It is an error to
// call this for a shard that has not registered.
func (r *Registry) UpdateSequence(shardID string, sequence uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[shardID]
	if !ok {
		return fmt.Errorf("coordinator: shard %q is not registered", shardID)
	}

	rec.LastSequence = sequence

	return nil
}

// Deregister removes shardID's record. Deregistering an unknown shard is a
// no-op, matching the channel-close-always-deregisters contract in §4.8.
func (r *Registry) Deregister(shardID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.records, shardID)
}

// ByNamespace returns copies of every record registered under namespace.
func (r *Registry) ByNamespace(namespace string) []*ShardRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*ShardRecord
	for _, rec := range r.records {
		if rec.Namespace == namespace {
			cp := *rec
			out = append(out, &cp)
		}
	}

	return out
}

// Count returns the number of currently registered shards.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.records)
}
