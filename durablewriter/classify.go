package durablewriter

import (
	"strings"

	"github.com/arloliu/graphdb-edge/errs"
)

// transientSubstrings are the lower-cased error-message fragments §4.9
// classifies as retryable when the error isn't already a recognized
// sentinel: network-level failures and the handful of HTTP statuses that
// mean "try again later".
var transientSubstrings = []string{
	"connection reset",
	"connection refused",
	"connection closed",
	"websocket not connected",
	"timeout",
	"timed out",
	"temporary failure",
	"service unavailable",
	"408",
	"429",
	"502",
	"503",
	"504",
}

// IsTransient classifies err as retryable or not, per §4.9's error taxonomy.
// A sentinel already classified as Transient or Permanent via errs.ClassifyOf
// takes priority; otherwise the error's message is matched against the
// taxonomy's network/HTTP substrings.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	switch errs.ClassifyOf(err) {
	case errs.KindTransient:
		return true
	case errs.KindPermanent, errs.KindBadInput, errs.KindBadFormat, errs.KindCorrupt:
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, s := range transientSubstrings {
		if strings.Contains(msg, s) {
			return true
		}
	}

	return false
}
