package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/MaVeN-13TTN/meteostore-s3/internal/config"
	"github.com/MaVeN-13TTN/meteostore-s3/internal/logging"
)

// NewS3Client builds an S3 client from the default credential chain, with
// static credentials and a custom endpoint (LocalStack/MinIO) when configured.
func NewS3Client(ctx context.Context, cfg config.StorageConfig) (*s3.Client, error) {
	endpoint := cfg.Endpoint
	if endpoint != "" && !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}

	region := cfg.Region
	if region == "" {
		region = config.DefaultRegion
	}

	cfgFuncs := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}

	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		cfgFuncs = append(cfgFuncs, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, cfgFuncs...)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return client, nil
}

// Store performs bucket and object operations against an S3 API.
type Store struct {
	api      API
	uploader *manager.Uploader
	region   string
}

func NewStore(api API, region string) *Store {
	return &Store{
		api:      api,
		uploader: manager.NewUploader(api),
		region:   region,
	}
}

// BucketExists probes the bucket with HeadBucket. Missing buckets and
// denied access both come back as errors.
func (s *Store) BucketExists(ctx context.Context, bucket string) error {
	_, err := s.api.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(bucket),
	})
	return wrap("HeadBucket", bucket, err)
}

// CreateBucket creates bucket in the store's region. An existing bucket is
// reported as a KindAlreadyExists error for the caller to judge.
func (s *Store) CreateBucket(ctx context.Context, bucket string) error {
	input := &s3.CreateBucketInput{
		Bucket: aws.String(bucket),
	}
	if s.region != "" && s.region != config.DefaultRegion {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(s.region),
		}
	}

	if _, err := s.api.CreateBucket(ctx, input); err != nil {
		return wrap("CreateBucket", bucket, err)
	}
	logging.Info().Str("bucket", bucket).Msg("bucket created")
	return nil
}

func (s *Store) DeleteBucket(ctx context.Context, bucket string) error {
	_, err := s.api.DeleteBucket(ctx, &s3.DeleteBucketInput{
		Bucket: aws.String(bucket),
	})
	return wrap("DeleteBucket", bucket, err)
}

// ListBuckets returns the buckets from a single ListBuckets response. It does
// not follow continuation tokens.
func (s *Store) ListBuckets(ctx context.Context) ([]BucketInfo, error) {
	out, err := s.api.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, wrap("ListBuckets", "", err)
	}

	buckets := make([]BucketInfo, 0, len(out.Buckets))
	for _, b := range out.Buckets {
		buckets = append(buckets, BucketInfo{
			Name:         aws.ToString(b.Name),
			CreationDate: aws.ToTime(b.CreationDate),
		})
	}

	if aws.ToString(out.ContinuationToken) != "" {
		logging.Warn().Int("returned", len(buckets)).Msg("bucket listing truncated, only the first page is shown")
	}
	return buckets, nil
}

// ListObjectVersions collects every object version and delete marker in the
// bucket. Within a page, versions come before delete markers.
func (s *Store) ListObjectVersions(ctx context.Context, bucket string) ([]ObjectRef, error) {
	paginator := s3.NewListObjectVersionsPaginator(s.api, &s3.ListObjectVersionsInput{
		Bucket: aws.String(bucket),
	})

	var refs []ObjectRef
	pageCount := 0
	for paginator.HasMorePages() {
		pageCount++
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, wrap("ListObjectVersions", bucket, fmt.Errorf("page %d: %w", pageCount, err))
		}
		for _, v := range page.Versions {
			refs = append(refs, ObjectRef{Key: aws.ToString(v.Key), VersionID: aws.ToString(v.VersionId)})
		}
		for _, m := range page.DeleteMarkers {
			refs = append(refs, ObjectRef{Key: aws.ToString(m.Key), VersionID: aws.ToString(m.VersionId)})
		}
	}

	logging.Debug().Str("bucket", bucket).Int("versions", len(refs)).Int("pages", pageCount).Msg("listed object versions")
	return refs, nil
}

// ListObjectKeys collects the keys of every current object in the bucket.
func (s *Store) ListObjectKeys(ctx context.Context, bucket string) ([]ObjectRef, error) {
	paginator := s3.NewListObjectsV2Paginator(s.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
	})

	var refs []ObjectRef
	pageCount := 0
	for paginator.HasMorePages() {
		pageCount++
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, wrap("ListObjectsV2", bucket, fmt.Errorf("page %d: %w", pageCount, err))
		}
		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			refs = append(refs, ObjectRef{Key: *obj.Key})
		}
	}

	logging.Debug().Str("bucket", bucket).Int("objects", len(refs)).Int("pages", pageCount).Msg("listed objects")
	return refs, nil
}

// DeleteObjects removes up to MaxDeleteBatch refs in one request. Keys the
// provider refuses are reported as an error naming the first failure.
func (s *Store) DeleteObjects(ctx context.Context, bucket string, refs []ObjectRef) (int, error) {
	if len(refs) == 0 {
		return 0, nil
	}
	if len(refs) > MaxDeleteBatch {
		return 0, &Error{
			Op:     "DeleteObjects",
			Bucket: bucket,
			Kind:   KindProviderLimitExceeded,
			Err:    fmt.Errorf("%w: got %d", ErrBatchTooLarge, len(refs)),
		}
	}

	ids := make([]types.ObjectIdentifier, 0, len(refs))
	for _, ref := range refs {
		id := types.ObjectIdentifier{Key: aws.String(ref.Key)}
		if ref.VersionID != "" {
			id.VersionId = aws.String(ref.VersionID)
		}
		ids = append(ids, id)
	}

	out, err := s.api.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(bucket),
		Delete: &types.Delete{
			Objects: ids,
			Quiet:   aws.Bool(true),
		},
	})
	if err != nil {
		return 0, wrap("DeleteObjects", bucket, err)
	}

	if len(out.Errors) > 0 {
		first := out.Errors[0]
		return len(refs) - len(out.Errors), &Error{
			Op:     "DeleteObjects",
			Bucket: bucket,
			Kind:   classifyCode(aws.ToString(first.Code)),
			Err: fmt.Errorf("%d of %d keys not deleted, first %q: %s: %s",
				len(out.Errors), len(refs), aws.ToString(first.Key), aws.ToString(first.Code), aws.ToString(first.Message)),
		}
	}
	return len(refs), nil
}

// PutObject uploads body under key with the given content type.
func (s *Store) PutObject(ctx context.Context, bucket, key string, body []byte, contentType string) error {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return wrap("PutObject", bucket, fmt.Errorf("s3://%s/%s: %w", bucket, key, err))
	}
	logging.Debug().Str("bucket", bucket).Str("key", key).Int("bytes", len(body)).Msg("object uploaded")
	return nil
}
