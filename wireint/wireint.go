// Package wireint carries 64-bit integers across the CDC JSON wire protocol
// (§6, §9) as decimal strings, the way every JSON consumer in the pack's
// teacher and reference repos expects bigints to survive a generic
// unmarshaler. Go's int64/uint64 already round-trip exactly through
// encoding/json, so this package exists purely to match the wire contract,
// not out of a language necessity.
package wireint

import (
	"strconv"

	"github.com/arloliu/graphdb-edge/errs"
)

// Int64 marshals as a JSON string instead of a bare number.
type Int64 int64

func (v Int64) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(strconv.FormatInt(int64(v), 10))), nil
}

func (v *Int64) UnmarshalJSON(data []byte) error {
	s, err := strconv.Unquote(string(data))
	if err != nil {
		return errs.ErrBadWireInt
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return errs.ErrBadWireInt
	}

	*v = Int64(n)

	return nil
}

// Uint64 marshals as a JSON string instead of a bare number.
type Uint64 uint64

func (v Uint64) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(strconv.FormatUint(uint64(v), 10))), nil
}

func (v *Uint64) UnmarshalJSON(data []byte) error {
	s, err := strconv.Unquote(string(data))
	if err != nil {
		return errs.ErrBadWireInt
	}

	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return errs.ErrBadWireInt
	}

	*v = Uint64(n)

	return nil
}
