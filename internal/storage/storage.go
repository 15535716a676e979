package storage

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// MaxDeleteBatch is the most keys a single DeleteObjects request may carry.
const MaxDeleteBatch = 1000

// ObjectRef addresses one object, or one version of it when VersionID is set.
type ObjectRef struct {
	Key       string
	VersionID string
}

type BucketInfo struct {
	Name         string
	CreationDate time.Time
}

// API is the subset of *s3.Client used by Store.
type API interface {
	manager.UploadAPIClient
	s3.ListObjectsV2APIClient
	s3.ListObjectVersionsAPIClient

	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	DeleteBucket(ctx context.Context, params *s3.DeleteBucketInput, optFns ...func(*s3.Options)) (*s3.DeleteBucketOutput, error)
	ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

var _ API = (*s3.Client)(nil)
