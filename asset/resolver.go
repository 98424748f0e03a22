// Package asset resolves opaque asset ids to validated storage coordinates.
// Every resolution enforces the journal namespace policy before any model or
// object-store call is allowed to touch the asset.
package asset

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"

	"github.com/tsudoi-io/tsudoi/store"
)

const (
	// DefaultMaxContentLength caps stored objects at 8 MiB.
	DefaultMaxContentLength = 8 << 20

	defaultRetryMaxAttempts     = 3
	defaultRetryInitialInterval = 100 * time.Millisecond
)

var defaultAllowedContentTypes = []string{"image/jpeg", "image/png"}

// Info is the resolved view of an asset: its record, parsed storage
// coordinates, and (when requested) validated object metadata.
type Info struct {
	Asset      *store.Asset
	Bucket     string
	ObjectKey  string
	StorageURI string

	// Metadata is nil unless FetchObjectMetadata was set.
	Metadata    *ObjectMetadata
	OwnerClaim  string
	OriginClaim string
}

// ResolveOptions scopes a single resolution.
type ResolveOptions struct {
	// ExpectedOwnerID, when set, must match the stored owner.
	ExpectedOwnerID *int32
	// FetchObjectMetadata additionally heads the object store and validates
	// size, content type, and ownership claims.
	FetchObjectMetadata bool
}

// Config tunes resolver policy. Zero values fall back to defaults.
type Config struct {
	// Bucket is the allowed bucket. Bare storage keys resolve against it;
	// s3:// keys naming any other bucket are rejected.
	Bucket              string
	AllowedContentTypes []string
	MaxContentLength    int64

	RetryMaxAttempts     int
	RetryInitialInterval time.Duration
}

// Resolver validates asset records against storage policy.
type Resolver struct {
	store   *store.Store
	objects ObjectStore

	bucket               string
	allowedContentTypes  map[string]struct{}
	maxContentLength     int64
	retryMaxAttempts     int
	retryInitialInterval time.Duration
}

func NewResolver(s *store.Store, objects ObjectStore, config Config) *Resolver {
	if len(config.AllowedContentTypes) == 0 {
		config.AllowedContentTypes = defaultAllowedContentTypes
	}
	if config.MaxContentLength <= 0 {
		config.MaxContentLength = DefaultMaxContentLength
	}
	if config.RetryMaxAttempts <= 0 {
		config.RetryMaxAttempts = defaultRetryMaxAttempts
	}
	if config.RetryInitialInterval <= 0 {
		config.RetryInitialInterval = defaultRetryInitialInterval
	}

	allowed := make(map[string]struct{}, len(config.AllowedContentTypes))
	for _, contentType := range config.AllowedContentTypes {
		allowed[contentType] = struct{}{}
	}

	return &Resolver{
		store:                s,
		objects:              objects,
		bucket:               config.Bucket,
		allowedContentTypes:  allowed,
		maxContentLength:     config.MaxContentLength,
		retryMaxAttempts:     config.RetryMaxAttempts,
		retryInitialInterval: config.RetryInitialInterval,
	}
}

// Resolve looks up the asset, enforces ownership and storage-key policy, and
// optionally fetches and validates object metadata. Policy validation runs
// even when no metadata fetch is requested.
func (r *Resolver) Resolve(ctx context.Context, assetID string, opts ResolveOptions) (*Info, error) {
	if assetID == "" {
		return nil, errors.Wrap(ErrNotFound, "asset id must be provided")
	}

	record, err := r.store.GetAsset(ctx, assetID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to look up asset %s", assetID)
	}
	if record == nil {
		return nil, errors.Wrapf(ErrNotFound, "asset %s", assetID)
	}

	if opts.ExpectedOwnerID != nil && record.OwnerID != *opts.ExpectedOwnerID {
		return nil, errors.Wrapf(ErrOwnershipViolation, "asset %s is owned by %d, expected %d", assetID, record.OwnerID, *opts.ExpectedOwnerID)
	}

	bucket, objectKey, err := r.parseStorageKey(record.StorageKey)
	if err != nil {
		return nil, err
	}
	if err := validateStorageKey(objectKey, record.OwnerID); err != nil {
		return nil, err
	}
	if _, ok := r.allowedContentTypes[record.ContentType]; !ok {
		return nil, errors.Wrapf(ErrContentTypeViolation, "content type %q", record.ContentType)
	}

	info := &Info{
		Asset:      record,
		Bucket:     bucket,
		ObjectKey:  objectKey,
		StorageURI: "s3://" + bucket + "/" + objectKey,
	}

	if opts.FetchObjectMetadata {
		metadata, err := r.fetchObjectMetadata(ctx, bucket, objectKey)
		if err != nil {
			return nil, err
		}
		ownerClaim, originClaim, err := r.validateObjectMetadata(record, metadata)
		if err != nil {
			return nil, err
		}
		info.Metadata = metadata
		info.OwnerClaim = ownerClaim
		info.OriginClaim = originClaim
	}

	return info, nil
}

func (r *Resolver) parseStorageKey(storageKey string) (bucket, objectKey string, err error) {
	if rest, ok := strings.CutPrefix(storageKey, "s3://"); ok {
		bucket, objectKey, _ = strings.Cut(rest, "/")
	} else if strings.Contains(storageKey, "://") {
		scheme, _, _ := strings.Cut(storageKey, "://")
		return "", "", errors.Wrapf(ErrStoragePolicyViolation, "unsupported storage scheme %q", scheme)
	} else {
		objectKey = storageKey
	}
	objectKey = strings.TrimLeft(objectKey, "/")

	if objectKey == "" {
		return "", "", errors.Wrap(ErrStoragePolicyViolation, "storage key must reference an object path")
	}
	if bucket == "" {
		if r.bucket == "" {
			return "", "", errors.Wrap(ErrStoragePolicyViolation, "storage key is missing bucket name and no default is configured")
		}
		bucket = r.bucket
	}
	if r.bucket != "" && bucket != r.bucket {
		return "", "", errors.Wrapf(ErrStoragePolicyViolation, "bucket %q is not allowed, expected %q", bucket, r.bucket)
	}

	return bucket, objectKey, nil
}

// validateStorageKey enforces the journal/<owner>/<yyyy>/<mm>/... namespace.
func validateStorageKey(objectKey string, ownerID int32) error {
	if strings.HasSuffix(objectKey, "/") {
		return errors.Wrap(ErrStoragePolicyViolation, "storage key may not end with a slash")
	}

	parts := strings.Split(objectKey, "/")
	if len(parts) < 5 {
		return errors.Wrap(ErrStoragePolicyViolation, "storage key must include journal/<owner>/<yyyy>/<mm>/ hierarchy")
	}
	for _, part := range parts {
		if part == "" || part == "." || part == ".." {
			return errors.Wrap(ErrStoragePolicyViolation, "storage key contains invalid path segments")
		}
	}

	if parts[0] != "journal" || parts[1] != strconv.FormatInt(int64(ownerID), 10) {
		return errors.Wrap(ErrStoragePolicyViolation, "storage key must reside within the authorized journal namespace")
	}

	year, month := parts[2], parts[3]
	if len(year) != 4 || !isDigits(year) {
		return errors.Wrap(ErrStoragePolicyViolation, "storage key must include a four-digit year component")
	}
	if len(month) != 2 || !isDigits(month) {
		return errors.Wrap(ErrStoragePolicyViolation, "storage key must include a two-digit month component")
	}
	if m, _ := strconv.Atoi(month); m < 1 || m > 12 {
		return errors.Wrap(ErrStoragePolicyViolation, "storage key month must be within 01-12")
	}

	return nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// fetchObjectMetadata heads the object with capped exponential backoff.
// Only failures classified as transient by the object store are retried;
// context cancellation stops the retry loop mid-wait.
func (r *Resolver) fetchObjectMetadata(ctx context.Context, bucket, objectKey string) (*ObjectMetadata, error) {
	if r.objects == nil {
		return nil, errors.Wrap(ErrMetadataRetrieval, "no object store configured for resolver")
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.retryInitialInterval

	var metadata *ObjectMetadata
	attempt := 0
	operation := func() error {
		attempt++
		fetched, err := r.objects.HeadObject(ctx, bucket, objectKey)
		if err != nil {
			if !errors.Is(err, ErrTransientStorage) {
				return backoff.Permanent(err)
			}
			slog.Warn("transient object store failure",
				slog.String("bucket", bucket),
				slog.String("key", objectKey),
				slog.Int("attempt", attempt),
				slog.Any("err", err))
			return err
		}
		metadata = fetched
		return nil
	}

	err := backoff.Retry(operation, backoff.WithContext(
		backoff.WithMaxRetries(policy, uint64(r.retryMaxAttempts-1)), ctx))
	if err != nil {
		return nil, errors.Wrapf(ErrMetadataRetrieval, "head s3://%s/%s: %v", bucket, objectKey, err)
	}

	return metadata, nil
}

func (r *Resolver) validateObjectMetadata(record *store.Asset, metadata *ObjectMetadata) (ownerClaim, originClaim string, err error) {
	if metadata.ContentType != record.ContentType {
		return "", "", errors.Wrapf(ErrContentTypeViolation, "storage content type %q does not match asset record %q", metadata.ContentType, record.ContentType)
	}
	if metadata.ContentLength <= 0 {
		return "", "", errors.Wrap(ErrMetadataValidation, "storage object reports zero or negative content length")
	}
	if metadata.ContentLength > r.maxContentLength {
		return "", "", errors.Wrapf(ErrSizeLimitExceeded, "storage object size %d exceeds limit %d", metadata.ContentLength, r.maxContentLength)
	}

	claims := make(map[string]string, len(metadata.Claims))
	for k, v := range metadata.Claims {
		claims[strings.ToLower(k)] = v
	}

	ownerClaim = claims["owner"]
	if ownerClaim == "" {
		ownerClaim = claims["x-amz-meta-owner"]
	}
	if ownerClaim == "" {
		return "", "", errors.Wrap(ErrMetadataValidation, "owner claim is missing from storage object")
	}
	if ownerClaim != strconv.FormatInt(int64(record.OwnerID), 10) {
		return "", "", errors.Wrapf(ErrMetadataValidation, "storage owner claim %q does not match asset owner %d", ownerClaim, record.OwnerID)
	}

	originClaim = claims["origin"]
	if originClaim == "" {
		originClaim = claims["x-amz-meta-origin"]
	}
	if originClaim == "" {
		return "", "", errors.Wrap(ErrMetadataValidation, "origin claim is missing from storage object")
	}

	return ownerClaim, originClaim, nil
}
