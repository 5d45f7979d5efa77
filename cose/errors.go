// Package cose implements RFC 9052 COSE message structures (Sign1, Sign,
// Mac0, Encrypt/Encrypt0) and their header-parameter engine on top of the
// cbor package's decoder/encoder/navigation primitives.
package cose

import "errors"

// Header-parameter engine errors (spec.md section 4.9).
var (
	// ErrParameterCBOR covers every header-decode shape violation: a
	// non-integer label, a content-type that is neither uint nor tstr, a
	// crit value that isn't a non-empty array of labels, and similar.
	ErrParameterCBOR = errors.New("cose: malformed header parameter")

	// ErrUnknownCriticalParameter is returned when a label in the crit
	// list has neither a built-in scalar decode nor a registered
	// special-decoder callback, or when it is present only in the
	// unprotected bucket (crit itself always lives in the protected
	// bucket, so a label it lists that only shows up unprotected was
	// never actually made critical).
	ErrUnknownCriticalParameter = errors.New("cose: unknown critical parameter")

	// ErrParameterNotProtected is returned when a label listed in crit has
	// no matching parameter anywhere in the message: RFC 9052 section 3.1
	// requires every crit-listed label to be present and protected, so an
	// absent one fails the same enforcement that crit exists for.
	ErrParameterNotProtected = errors.New("cose: critical parameter not present")

	// ErrDuplicateParameter is returned for a label appearing twice
	// across the protected and unprotected buckets combined, or for iv
	// and partial-iv both being present.
	ErrDuplicateParameter = errors.New("cose: duplicate header parameter")

	// ErrCritParameterInUnprotected is returned when crit appears in the
	// unprotected bucket, or when a parameter marked critical for
	// encoding is not in the protected bucket.
	ErrCritParameterInUnprotected = errors.New("cose: crit parameter in unprotected bucket")

	// ErrMissingAlgorithm is returned by common-parameter extraction when
	// no alg parameter is present in the protected bucket.
	ErrMissingAlgorithm = errors.New("cose: missing algorithm parameter")
)

// Message-flow errors (spec.md section 4.10).
var (
	ErrUnsupportedAlgorithm    = errors.New("cose: unsupported algorithm")
	ErrVerificationFailed      = errors.New("cose: signature or MAC verification failed")
	ErrDetachedPayloadRequired = errors.New("cose: detached payload not supplied for verification")
	ErrMalformedMessage        = errors.New("cose: malformed COSE message structure")

	// ErrEphemeralKeyTypeMismatch is returned by the ECDH-ES recipient
	// special-decoder when the ephemeral key's kty doesn't match the
	// recipient's expected curve family (Open Question resolution: treat
	// a kty mismatch as a decode failure rather than silently coercing).
	ErrEphemeralKeyTypeMismatch = errors.New("cose: ephemeral key type does not match recipient algorithm")
)
