package collision

import (
	"github.com/arloliu/graphdb-edge/errs"
)

// Tracker tracks interned strings (GraphCol predicate and subject pools, §4.4)
// and detects xxhash collisions while building a chunk's column streams. It
// maintains a hash-to-string map plus an ordered list for pool encoding when
// a collision forces the pool to carry full strings instead of bare hashes.
type Tracker struct {
	strings      map[uint64]string // hash → string mapping for collision detection
	stringsList  []string          // ordered list for pool encoding
	hasCollision bool              // whether a collision has been detected
}

// NewTracker creates a new collision tracker.
func NewTracker() *Tracker {
	return &Tracker{
		strings:     make(map[uint64]string),
		stringsList: make([]string, 0),
	}
}

// TrackHash tracks a hash supplied directly by the caller (no string
// available to disambiguate). Returns errs.ErrHashCollision if the hash was
// already used, since a bare hash collision cannot be resolved automatically.
func (t *Tracker) TrackHash(hash uint64) error {
	if _, exists := t.strings[hash]; exists {
		return errs.ErrHashCollision
	}

	t.strings[hash] = ""

	return nil
}

// TrackString tracks a string with its precomputed hash.
//
// Returns errs.ErrInvalidName if name is empty, or errs.ErrAlreadyTracked if
// the same string was already tracked. A hash collision between two distinct
// strings is not itself an error: instead HasCollision becomes true, signaling
// the encoder to fall back to storing full strings in the pool rather than
// bare hashes.
func (t *Tracker) TrackString(name string, hash uint64) error {
	if name == "" {
		return errs.ErrInvalidName
	}

	if existingName, exists := t.strings[hash]; exists {
		if existingName != name {
			t.hasCollision = true
		} else {
			return errs.ErrAlreadyTracked
		}
	}

	t.strings[hash] = name
	t.stringsList = append(t.stringsList, name)

	return nil
}

// HasCollision returns true if a hash collision between two distinct strings
// has been detected.
func (t *Tracker) HasCollision() bool {
	return t.hasCollision
}

// Strings returns the ordered list of tracked strings, in the order
// TrackString was called, matching the order they were appended to the pool.
func (t *Tracker) Strings() []string {
	return t.stringsList
}

// Count returns the number of tracked strings.
func (t *Tracker) Count() int {
	return len(t.stringsList)
}

// Reset clears all tracked strings and collision state, allowing the tracker
// to be reused for the next chunk.
func (t *Tracker) Reset() {
	for k := range t.strings {
		delete(t.strings, k)
	}
	t.stringsList = t.stringsList[:0]
	t.hasCollision = false
}
