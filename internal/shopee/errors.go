package shopee

import (
	"errors"
	"fmt"
)

// ErrShopNotConnected means no usable credentials exist for the shop.
// Callers must treat this as fatal for the whole run.
var ErrShopNotConnected = errors.New("shop not connected")

// RemoteError is an error reported by the Shopee Open Platform, either at
// the transport level (5xx, timeout surfaced by the caller) or inside the
// response envelope (non-empty "error" field).
type RemoteError struct {
	Code       string
	Message    string
	HTTPStatus int
	Endpoint   string
}

func (e *RemoteError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("shopee %s: %s (%s)", e.Endpoint, e.Code, e.Message)
	}
	return fmt.Sprintf("shopee %s: http %d: %s", e.Endpoint, e.HTTPStatus, e.Message)
}

// Transient reports whether a retry later could plausibly succeed.
// Envelope errors with a business code (order not eligible, wrong state)
// are logical and never transient.
func (e *RemoteError) Transient() bool {
	if e.Code != "" {
		return false
	}
	return e.HTTPStatus >= 500 || e.HTTPStatus == 429 || e.HTTPStatus == 0
}

// IsLogical reports whether err is a remote business error for a single
// record (skip it, count it, keep going).
func IsLogical(err error) bool {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Code != ""
	}
	return false
}

// IsTransient reports whether err is a retryable remote failure.
func IsTransient(err error) bool {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Transient()
	}
	return false
}
