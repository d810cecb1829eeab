package catalogtype

import "errors"

// Sentinel errors forming the failure taxonomy of the knowledge base.
// Callers are expected to test with errors.Is; everything transported
// across package boundaries wraps one of these.
var (
	// ErrValidation marks a malformed write (bad domain value, empty
	// mandatory field). Permanent: never retried, never persisted.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks an unresolved dataset, attribute, or field.
	// Distinct from a successful lookup with no edges attached.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument marks a caller mistake on a read path, such as
	// a non-positive result limit.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrTransientStore is surfaced after the retry attempts for a
	// store write have been exhausted.
	ErrTransientStore = errors.New("transient store failure")

	// ErrUnsupportedIntent marks an intent the classifier recognizes but
	// no handler implements (quality, discovery).
	ErrUnsupportedIntent = errors.New("intent not yet supported")

	// ErrGeneration marks a failure of the external generation
	// capability during final answer composition.
	ErrGeneration = errors.New("generation failed")
)
