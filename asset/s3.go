package asset

import (
	"context"
	"net"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"

	"github.com/tsudoi-io/tsudoi/internal/profile"
)

// ObjectMetadata is the subset of object-store metadata the resolver
// validates. Claims holds user metadata with lowercased keys.
type ObjectMetadata struct {
	ContentLength int64
	ContentType   string
	ETag          string
	Claims        map[string]string
}

// ObjectStore fetches metadata for a stored object. Implementations classify
// retryable failures by wrapping ErrTransientStorage; everything else is
// treated as permanent and fails without retry.
type ObjectStore interface {
	HeadObject(ctx context.Context, bucket, key string) (*ObjectMetadata, error)
}

// S3ObjectStore is the ObjectStore backed by the AWS SDK. A custom endpoint
// with path-style addressing covers MinIO and other S3-compatible stores.
type S3ObjectStore struct {
	client *s3.Client
}

func NewS3ObjectStore(ctx context.Context, profile *profile.Profile) (*S3ObjectStore, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(profile.StorageRegion))
	if err != nil {
		return nil, errors.Wrap(err, "failed to load aws config")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if profile.StorageEndpoint != "" {
			o.BaseEndpoint = aws.String(profile.StorageEndpoint)
		}
		o.UsePathStyle = profile.StorageUsePathStyle
	})

	return &S3ObjectStore{client: client}, nil
}

func (s *S3ObjectStore) HeadObject(ctx context.Context, bucket, key string) (*ObjectMetadata, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, classifyStorageError(err)
	}

	metadata := &ObjectMetadata{
		Claims: make(map[string]string, len(out.Metadata)),
	}
	if out.ContentLength != nil {
		metadata.ContentLength = *out.ContentLength
	}
	if out.ContentType != nil {
		metadata.ContentType = *out.ContentType
	}
	if out.ETag != nil {
		metadata.ETag = *out.ETag
	}
	for k, v := range out.Metadata {
		metadata.Claims[k] = v
	}

	return metadata, nil
}

// classifyStorageError wraps retryable failures with ErrTransientStorage.
// Throttling and server-side errors are transient; client errors such as a
// missing object are permanent.
func classifyStorageError(err error) error {
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		status := respErr.HTTPStatusCode()
		if status == 429 || status >= 500 {
			return errors.Wrapf(ErrTransientStorage, "object store returned %d: %v", status, err)
		}
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return errors.Wrapf(ErrTransientStorage, "network failure: %v", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Wrapf(ErrTransientStorage, "request timed out: %v", err)
	}

	return err
}
