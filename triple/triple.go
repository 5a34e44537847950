// Package triple defines the graph's atomic unit of data, (subject,
// predicate, object, timestamp, txId), and the validation rules that every
// shard write must satisfy before the triple reaches the chunk store or the
// CDC buffer (§3, §7 BadInput).
package triple

import (
	"net/url"
	"unicode"

	"github.com/oklog/ulid/v2"

	"github.com/arloliu/graphdb-edge/errs"
	"github.com/arloliu/graphdb-edge/format"
)

// MaxSubjectLength is the maximum byte length of a subject (entity ID), §3.
const MaxSubjectLength = 2048

// ULIDLength is the fixed length of a Crockford base32 ULID transaction id.
const ULIDLength = 26

// ObjectValue is the tagged union a triple's object occupies. Exactly the
// fields matching Type are meaningful; the rest are zero.
type ObjectValue struct {
	Type      format.ObjectType
	Str       string  // STRING, or REF (holds the referenced subject URL)
	Int32     int32   // INT32
	Int64     int64   // INT64
	Float64   float64 // FLOAT64
	Bool      bool    // BOOL
	Timestamp int64   // TIMESTAMP, nanoseconds since epoch
	Lat       float64 // GEO_POINT
	Lng       float64 // GEO_POINT
	Binary    []byte  // BINARY
}

// Triple is one row of the graph: subject-predicate-object plus the
// provenance fields needed for MVCC history and CDC ordering.
type Triple struct {
	Subject   string
	Predicate string
	Object    ObjectValue
	Timestamp uint64 // nanoseconds since epoch
	TxID      string // 26-character ULID, Crockford base32
}

// IsTombstone reports whether this triple is a logical delete (§3: tombstones
// are object-type NULL; the original row is retained for history).
func (t Triple) IsTombstone() bool {
	return t.Object.Type == format.ObjectTypeNull
}

// ValidateSubject checks the entity-id validation rules: a well-formed
// http(s) URL, at most MaxSubjectLength bytes, no control characters, and no
// embedded user info.
func ValidateSubject(subject string) error {
	if subject == "" {
		return errs.ErrEmptySubject
	}
	if len(subject) > MaxSubjectLength {
		return errs.ErrSubjectTooLong
	}
	for _, r := range subject {
		if unicode.IsControl(r) {
			return errs.ErrSubjectHasControlChar
		}
	}

	u, err := url.Parse(subject)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errs.ErrInvalidSubjectURL
	}
	if u.User != nil {
		return errs.ErrSubjectHasUserInfo
	}

	return nil
}

// ValidatePredicate checks that predicate is non-empty and consists solely
// of letters, digits, and underscore (no colons, no URL structure).
func ValidatePredicate(predicate string) error {
	if predicate == "" {
		return errs.ErrInvalidPredicate
	}
	for _, r := range predicate {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return errs.ErrInvalidPredicate
		}
	}

	return nil
}

// ValidateObject validates an object value; a REF object must itself satisfy
// the entity-id validation rules (§3).
func ValidateObject(o ObjectValue) error {
	if o.Type == format.ObjectTypeRef {
		if err := ValidateSubject(o.Str); err != nil {
			return errs.ErrInvalidRefObject
		}
	}

	return nil
}

// ValidateTxID checks that txID is a well-formed 26-character Crockford
// base32 ULID (§3).
func ValidateTxID(txID string) error {
	if len(txID) != ULIDLength {
		return errs.ErrInvalidTxID
	}
	if _, err := ulid.ParseStrict(txID); err != nil {
		return errs.ErrInvalidTxID
	}

	return nil
}

// Validate runs ValidateSubject, ValidatePredicate, ValidateObject and
// ValidateTxID on a full triple.
func (t Triple) Validate() error {
	if err := ValidateSubject(t.Subject); err != nil {
		return err
	}
	if err := ValidatePredicate(t.Predicate); err != nil {
		return err
	}
	if err := ValidateObject(t.Object); err != nil {
		return err
	}

	return ValidateTxID(t.TxID)
}
