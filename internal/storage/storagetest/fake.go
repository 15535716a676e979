// Package storagetest provides an in-memory S3 API for tests.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

type Object struct {
	Body        []byte
	ContentType string
}

// Version is a noncurrent version or delete marker. Buckets without
// versioning report no versions at all.
type Version struct {
	Key          string
	VersionID    string
	DeleteMarker bool
}

type Bucket struct {
	CreationDate time.Time
	Objects      map[string]Object
	Versions     []Version
}

// FakeS3 records every call and serves buckets from memory. Errors keyed by
// operation name are returned instead of running the operation.
type FakeS3 struct {
	Buckets  map[string]*Bucket
	PageSize int
	Errors   map[string]error
	// FailKeys makes DeleteObjects report a per-key error with the given code.
	FailKeys map[string]string

	Calls         map[string]int
	DeleteBatches [][]types.ObjectIdentifier
	// Log holds operation names in call order.
	Log []string
}

func New() *FakeS3 {
	return &FakeS3{
		Buckets:  map[string]*Bucket{},
		PageSize: 1000,
		Errors:   map[string]error{},
		FailKeys: map[string]string{},
		Calls:    map[string]int{},
	}
}

func (f *FakeS3) AddBucket(name string) *Bucket {
	b := &Bucket{
		CreationDate: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		Objects:      map[string]Object{},
	}
	f.Buckets[name] = b
	return b
}

// AddObjects puts n objects named prefix-0000 .. into bucket.
func (f *FakeS3) AddObjects(bucket, prefix string, n int) {
	b := f.Buckets[bucket]
	for i := 0; i < n; i++ {
		b.Objects[fmt.Sprintf("%s-%04d", prefix, i)] = Object{Body: []byte("x")}
	}
}

func (f *FakeS3) AddVersions(bucket string, versions ...Version) {
	b := f.Buckets[bucket]
	b.Versions = append(b.Versions, versions...)
}

func (f *FakeS3) record(op string) error {
	f.Calls[op]++
	f.Log = append(f.Log, op)
	return f.Errors[op]
}

// APIError builds a smithy API error carrying code.
func APIError(code string) error {
	return &smithy.GenericAPIError{Code: code, Message: code}
}

func noSuchBucket() error {
	return APIError("NoSuchBucket")
}

func (f *FakeS3) HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if err := f.record("HeadBucket"); err != nil {
		return nil, err
	}
	if _, ok := f.Buckets[aws.ToString(params.Bucket)]; !ok {
		return nil, &types.NotFound{Message: aws.String("Not Found")}
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *FakeS3) CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	if err := f.record("CreateBucket"); err != nil {
		return nil, err
	}
	name := aws.ToString(params.Bucket)
	if _, ok := f.Buckets[name]; ok {
		return nil, &types.BucketAlreadyOwnedByYou{Message: aws.String("already owned")}
	}
	f.AddBucket(name)
	return &s3.CreateBucketOutput{Location: aws.String("/" + name)}, nil
}

func (f *FakeS3) DeleteBucket(ctx context.Context, params *s3.DeleteBucketInput, optFns ...func(*s3.Options)) (*s3.DeleteBucketOutput, error) {
	if err := f.record("DeleteBucket"); err != nil {
		return nil, err
	}
	name := aws.ToString(params.Bucket)
	b, ok := f.Buckets[name]
	if !ok {
		return nil, noSuchBucket()
	}
	if len(b.Objects) > 0 || len(b.Versions) > 0 {
		return nil, APIError("BucketNotEmpty")
	}
	delete(f.Buckets, name)
	return &s3.DeleteBucketOutput{}, nil
}

func (f *FakeS3) ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error) {
	if err := f.record("ListBuckets"); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(f.Buckets))
	for name := range f.Buckets {
		names = append(names, name)
	}
	sort.Strings(names)

	out := &s3.ListBucketsOutput{}
	for _, name := range names {
		out.Buckets = append(out.Buckets, types.Bucket{
			Name:         aws.String(name),
			CreationDate: aws.Time(f.Buckets[name].CreationDate),
		})
	}
	return out, nil
}

// pageStart decodes the opaque marker this fake hands out as a next token.
func pageStart(marker *string) int {
	if marker == nil {
		return 0
	}
	n, err := strconv.Atoi(*marker)
	if err != nil {
		return 0
	}
	return n
}

func (f *FakeS3) ListObjectVersions(ctx context.Context, params *s3.ListObjectVersionsInput, optFns ...func(*s3.Options)) (*s3.ListObjectVersionsOutput, error) {
	if err := f.record("ListObjectVersions"); err != nil {
		return nil, err
	}
	b, ok := f.Buckets[aws.ToString(params.Bucket)]
	if !ok {
		return nil, noSuchBucket()
	}

	start := pageStart(params.KeyMarker)
	end := min(start+f.PageSize, len(b.Versions))

	out := &s3.ListObjectVersionsOutput{IsTruncated: aws.Bool(end < len(b.Versions))}
	for _, v := range b.Versions[start:end] {
		if v.DeleteMarker {
			out.DeleteMarkers = append(out.DeleteMarkers, types.DeleteMarkerEntry{
				Key:       aws.String(v.Key),
				VersionId: aws.String(v.VersionID),
			})
			continue
		}
		out.Versions = append(out.Versions, types.ObjectVersion{
			Key:       aws.String(v.Key),
			VersionId: aws.String(v.VersionID),
		})
	}
	if end < len(b.Versions) {
		out.NextKeyMarker = aws.String(strconv.Itoa(end))
		out.NextVersionIdMarker = aws.String(b.Versions[end].VersionID)
	}
	return out, nil
}

func (f *FakeS3) sortedKeys(b *Bucket) []string {
	keys := make([]string, 0, len(b.Objects))
	for k := range b.Objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (f *FakeS3) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if err := f.record("ListObjectsV2"); err != nil {
		return nil, err
	}
	b, ok := f.Buckets[aws.ToString(params.Bucket)]
	if !ok {
		return nil, noSuchBucket()
	}

	keys := f.sortedKeys(b)
	start := pageStart(params.ContinuationToken)
	end := min(start+f.PageSize, len(keys))

	out := &s3.ListObjectsV2Output{
		IsTruncated: aws.Bool(end < len(keys)),
		KeyCount:    aws.Int32(int32(end - start)),
	}
	for _, k := range keys[start:end] {
		out.Contents = append(out.Contents, types.Object{
			Key:  aws.String(k),
			Size: aws.Int64(int64(len(b.Objects[k].Body))),
		})
	}
	if end < len(keys) {
		out.NextContinuationToken = aws.String(strconv.Itoa(end))
	}
	return out, nil
}

func (f *FakeS3) DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	if err := f.record("DeleteObjects"); err != nil {
		return nil, err
	}
	b, ok := f.Buckets[aws.ToString(params.Bucket)]
	if !ok {
		return nil, noSuchBucket()
	}
	if len(params.Delete.Objects) > 1000 {
		return nil, APIError("MalformedXML")
	}
	f.DeleteBatches = append(f.DeleteBatches, params.Delete.Objects)

	out := &s3.DeleteObjectsOutput{}
	for _, id := range params.Delete.Objects {
		key := aws.ToString(id.Key)
		if code, fail := f.FailKeys[key]; fail {
			out.Errors = append(out.Errors, types.Error{
				Key:       id.Key,
				VersionId: id.VersionId,
				Code:      aws.String(code),
				Message:   aws.String(code),
			})
			continue
		}

		if id.VersionId == nil {
			delete(b.Objects, key)
		} else {
			kept := b.Versions[:0]
			for _, v := range b.Versions {
				if v.Key != key || v.VersionID != *id.VersionId {
					kept = append(kept, v)
				}
			}
			b.Versions = kept
		}
		out.Deleted = append(out.Deleted, types.DeletedObject{Key: id.Key, VersionId: id.VersionId})
	}
	return out, nil
}

func (f *FakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if err := f.record("PutObject"); err != nil {
		return nil, err
	}
	b, ok := f.Buckets[aws.ToString(params.Bucket)]
	if !ok {
		return nil, noSuchBucket()
	}

	var body []byte
	if params.Body != nil {
		data, err := io.ReadAll(params.Body)
		if err != nil {
			return nil, err
		}
		body = data
	}
	b.Objects[aws.ToString(params.Key)] = Object{Body: body, ContentType: aws.ToString(params.ContentType)}
	return &s3.PutObjectOutput{ETag: aws.String(`"fake"`)}, nil
}

var errMultipart = errors.New("storagetest: multipart uploads are not supported")

func (f *FakeS3) UploadPart(ctx context.Context, params *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	f.record("UploadPart")
	return nil, errMultipart
}

func (f *FakeS3) CreateMultipartUpload(ctx context.Context, params *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	f.record("CreateMultipartUpload")
	return nil, errMultipart
}

func (f *FakeS3) CompleteMultipartUpload(ctx context.Context, params *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	f.record("CompleteMultipartUpload")
	return nil, errMultipart
}

func (f *FakeS3) AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	f.record("AbortMultipartUpload")
	return &s3.AbortMultipartUploadOutput{}, nil
}
