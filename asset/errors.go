package asset

import "github.com/pkg/errors"

// Resolution failures are classified so callers can map them to a policy
// decision (retry, reject, surface). Check with errors.Is; resolver methods
// wrap these with context.
var (
	// ErrNotFound is returned when the asset id is unknown.
	ErrNotFound = errors.New("asset not found")

	// ErrOwnershipViolation is returned when the stored owner does not match
	// the expected owner of the caller.
	ErrOwnershipViolation = errors.New("asset ownership violation")

	// ErrStoragePolicyViolation is returned when the storage key falls
	// outside the authorized namespace or bucket.
	ErrStoragePolicyViolation = errors.New("storage key violates policy")

	// ErrContentTypeViolation is returned when the declared or stored
	// content type is not permitted.
	ErrContentTypeViolation = errors.New("content type not permitted")

	// ErrSizeLimitExceeded is returned when the stored object exceeds the
	// configured size cap.
	ErrSizeLimitExceeded = errors.New("storage object exceeds size limit")

	// ErrMetadataValidation is returned when object metadata is missing a
	// required claim or a claim contradicts the asset record.
	ErrMetadataValidation = errors.New("storage metadata validation failed")

	// ErrMetadataRetrieval is returned when object metadata could not be
	// retrieved after exhausting retries.
	ErrMetadataRetrieval = errors.New("failed to retrieve storage metadata")

	// ErrTransientStorage classifies object store failures that are worth
	// retrying: timeouts, connection resets, throttling, 5xx responses.
	ErrTransientStorage = errors.New("transient storage error")
)
