package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
)

// ErrorKind tags an UpstreamError with the failure category decided at the
// boundary where the external call was made.
type ErrorKind int

const (
	// KindTransient is an upstream failure that may succeed on retry,
	// subject to its status or transport code being in the retryable sets.
	KindTransient ErrorKind = iota
	// KindTimeout is a deadline failure; retryable by default.
	KindTimeout
	// KindFatal is a non-operational failure; never retried.
	KindFatal
)

// String returns the string representation of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindTimeout:
		return "timeout"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// UpstreamError is the tagged failure produced at the boundary where external
// calls are made. Classification is a pattern match on Kind and codes, never
// speculative field probing of unknown error values.
type UpstreamError struct {
	// Kind is the failure category.
	Kind ErrorKind

	// StatusCode is the HTTP-like status code, 0 when not applicable.
	StatusCode int

	// Code is the transport error code, e.g. "ECONNRESET". Empty when not applicable.
	Code string

	// Service names the upstream resource the call targeted.
	Service string

	// Err is the underlying cause, may be nil.
	Err error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.StatusCode > 0:
		return fmt.Sprintf("resilience: %s error from %s (status %d): %v", e.Kind, e.Service, e.StatusCode, e.Err)
	case e.Code != "":
		return fmt.Sprintf("resilience: %s error from %s (%s): %v", e.Kind, e.Service, e.Code, e.Err)
	default:
		return fmt.Sprintf("resilience: %s error from %s: %v", e.Kind, e.Service, e.Err)
	}
}

// Unwrap returns the underlying cause.
func (e *UpstreamError) Unwrap() error { return e.Err }

// Operational reports whether the error represents an expected, recoverable
// failure mode rather than a defect. Fatal errors are non-operational.
func (e *UpstreamError) Operational() bool { return e.Kind != KindFatal }

// Transient builds a retryable-candidate upstream error. Either status or
// code (or both) identify the failure for set-membership classification.
func Transient(service string, status int, code string, cause error) *UpstreamError {
	return &UpstreamError{Kind: KindTransient, StatusCode: status, Code: code, Service: service, Err: cause}
}

// Fatal builds a non-operational upstream error that is never retried.
func Fatal(service string, cause error) *UpstreamError {
	return &UpstreamError{Kind: KindFatal, Service: service, Err: cause}
}

// FromStatus tags a failed call by its HTTP-like status code.
// Timeout-ish statuses keep their code; the kind stays Transient so the
// retryable-status set remains the single source of truth.
func FromStatus(service string, status int, cause error) *UpstreamError {
	return &UpstreamError{Kind: KindTransient, StatusCode: status, Service: service, Err: cause}
}

// FromNetError tags a transport failure with the matching transport code.
// Unrecognized errors come back as Transient with no code, which the default
// classification treats as non-retryable.
func FromNetError(service string, err error) *UpstreamError {
	ue := &UpstreamError{Kind: KindTransient, Service: service, Err: err}

	var dnsErr *net.DNSError
	switch {
	case errors.Is(err, syscall.ECONNRESET):
		ue.Code = "ECONNRESET"
	case errors.Is(err, syscall.ECONNREFUSED):
		ue.Code = "ECONNREFUSED"
	case errors.Is(err, syscall.ETIMEDOUT):
		ue.Code = "ETIMEDOUT"
		ue.Kind = KindTimeout
	case errors.As(err, &dnsErr) && dnsErr.IsNotFound:
		ue.Code = "ENOTFOUND"
	case errors.Is(err, context.DeadlineExceeded):
		ue.Code = "ETIMEDOUT"
		ue.Kind = KindTimeout
	}

	if ue.Code == "" {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			ue.Code = "ETIMEDOUT"
			ue.Kind = KindTimeout
		}
	}

	return ue
}

// DefaultRetryableStatusCodes are the HTTP-like status codes retried by default.
var DefaultRetryableStatusCodes = []int{
	http.StatusRequestTimeout,      // 408
	http.StatusTooManyRequests,     // 429
	http.StatusInternalServerError, // 500
	http.StatusBadGateway,          // 502
	http.StatusServiceUnavailable,  // 503
	http.StatusGatewayTimeout,      // 504
}

// DefaultRetryableErrorCodes are the transport error codes retried by default.
var DefaultRetryableErrorCodes = []string{
	"ECONNRESET",
	"ECONNREFUSED",
	"ETIMEDOUT",
	"ENOTFOUND",
}

// classifier decides which failures are worth retrying.
type classifier struct {
	statuses map[int]bool
	codes    map[string]bool
}

// newClassifier builds a classifier from the given sets. Nil slices fall back
// to the defaults.
func newClassifier(statuses []int, codes []string) classifier {
	if statuses == nil {
		statuses = DefaultRetryableStatusCodes
	}
	if codes == nil {
		codes = DefaultRetryableErrorCodes
	}

	c := classifier{
		statuses: make(map[int]bool, len(statuses)),
		codes:    make(map[string]bool, len(codes)),
	}
	for _, s := range statuses {
		c.statuses[s] = true
	}
	for _, code := range codes {
		c.codes[code] = true
	}
	return c
}

// Retryable reports whether the failure is worth another attempt.
func (c classifier) Retryable(err error) bool {
	if err == nil {
		return false
	}

	// Open-circuit rejections are never retryable: retrying a known-down
	// dependency would defeat the breaker and build a retry storm.
	if errors.Is(err, ErrCircuitOpen) {
		return false
	}

	// Caller gave up; nothing to retry.
	if errors.Is(err, context.Canceled) {
		return false
	}

	// Timeouts map to the request-timeout status and follow the status set.
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return c.statuses[http.StatusRequestTimeout]
	}

	var ue *UpstreamError
	if errors.As(err, &ue) {
		switch ue.Kind {
		case KindFatal:
			return false
		case KindTimeout:
			return c.statuses[http.StatusRequestTimeout] || c.codes[ue.Code]
		case KindTransient:
			return c.statuses[ue.StatusCode] || c.codes[ue.Code]
		}
	}

	// Untagged errors never made it through a boundary constructor; treat
	// them as non-retryable rather than guessing.
	return false
}
