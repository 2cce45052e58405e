// Package errs defines the tagged error taxonomy surfaced by the
// validation pipeline. Every fallible check in the pipeline returns a
// *ValidationError so callers can branch on Kind with errors.As instead
// of matching strings.
package errs

import (
	"fmt"

	"github.com/gravitational/trace"
)

// Kind tags a validation failure with the reason the pipeline stopped.
type Kind string

// Kinds mirror the error taxonomy in the pipeline specification.
const (
	TokenParse                   Kind = "TokenParse"
	ChallengeEmpty               Kind = "ChallengeEmpty"
	CertificateNotTrusted        Kind = "CertificateNotTrusted"
	CertificateNotYetValid       Kind = "CertificateNotYetValid"
	CertificateExpired           Kind = "CertificateExpired"
	CertificateDisallowedPolicy  Kind = "CertificateDisallowedPolicy"
	CertificateRevoked           Kind = "CertificateRevoked"
	OcspUrlMissing               Kind = "OcspUrlMissing"
	OcspHttpError                Kind = "OcspHttpError"
	OcspTimeout                  Kind = "OcspTimeout"
	OcspResponseInvalidStatus    Kind = "OcspResponseInvalidStatus"
	OcspResponseInvalidType      Kind = "OcspResponseInvalidType"
	OcspResponseInvalidSignature Kind = "OcspResponseInvalidSignature"
	OcspResponderMismatch        Kind = "OcspResponderMismatch"
	OcspCertIDMismatch           Kind = "OcspCertIDMismatch"
	OcspNonceMismatch            Kind = "OcspNonceMismatch"
	OcspStaleResponse            Kind = "OcspStaleResponse"
	UnsupportedAlgorithm         Kind = "UnsupportedAlgorithm"
	InvalidSignatureFormat       Kind = "InvalidSignatureFormat"
	TokenSignatureInvalid        Kind = "TokenSignatureInvalid"
)

// ValidationError is the single error type returned from the pipeline's
// public surface. The underlying cause is never discarded, but it is
// never printed with Error() either: Error() returns only the
// human-readable, secret-free message (see §7, "no secret material ...
// appears in messages").
type ValidationError struct {
	Kind   Kind
	Reason string
	cause  error
}

// New builds a ValidationError of the given kind, wrapping cause with
// trace.Wrap so the call stack survives for logging.
func New(kind Kind, cause error) *ValidationError {
	return &ValidationError{Kind: kind, cause: trace.Wrap(cause)}
}

// Newf builds a ValidationError of the given kind from a format string,
// with no underlying cause.
func Newf(kind Kind, format string, args ...any) *ValidationError {
	return &ValidationError{Kind: kind, cause: trace.Errorf(format, args...)}
}

// WithReason attaches a human-readable detail (e.g. an OCSP revocation
// reason) to the error and returns the receiver for chaining.
func (e *ValidationError) WithReason(reason string) *ValidationError {
	e.Reason = reason
	return e
}

func (e *ValidationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
	}
	return string(e.Kind)
}

// Unwrap exposes the trace-wrapped cause for errors.Is/errors.As and for
// DebugReport-style logging, without putting it into Error().
func (e *ValidationError) Unwrap() error { return e.cause }

// Is reports whether err is a *ValidationError of the given kind.
func Is(err error, kind Kind) bool {
	var ve *ValidationError
	if !asValidationError(err, &ve) {
		return false
	}
	return ve.Kind == kind
}

func asValidationError(err error, target **ValidationError) bool {
	for err != nil {
		if ve, ok := err.(*ValidationError); ok {
			*target = ve
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
