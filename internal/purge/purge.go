// Package purge empties a bucket of every object, object version and delete
// marker, then removes the bucket itself.
package purge

import (
	"context"
	"fmt"

	"github.com/MaVeN-13TTN/meteostore-s3/internal/logging"
	"github.com/MaVeN-13TTN/meteostore-s3/internal/storage"
)

// Store is the storage surface a purge needs. *storage.Store satisfies it.
type Store interface {
	BucketExists(ctx context.Context, bucket string) error
	ListObjectVersions(ctx context.Context, bucket string) ([]storage.ObjectRef, error)
	ListObjectKeys(ctx context.Context, bucket string) ([]storage.ObjectRef, error)
	DeleteObjects(ctx context.Context, bucket string, refs []storage.ObjectRef) (int, error)
	DeleteBucket(ctx context.Context, bucket string) error
}

var _ Store = (*storage.Store)(nil)

type Phase string

const (
	PhaseVersions Phase = "versions"
	PhaseObjects  Phase = "objects"
)

// BatchEvent is emitted after each successful delete batch.
type BatchEvent struct {
	Phase   Phase
	Batch   int
	Batches int
	Deleted int
	Total   int
}

type Result struct {
	Bucket          string
	VersionsDeleted int
	ObjectsDeleted  int
	Batches         int
	BucketDeleted   bool
	// VersionListingErr is set when listing versions failed; the purge then
	// relies on the plain object listing alone.
	VersionListingErr error
}

// Success reports whether the bucket itself was removed.
func (r *Result) Success() bool {
	return r != nil && r.BucketDeleted
}

type Option func(*Purger)

func WithProgress(fn func(BatchEvent)) Option {
	return func(p *Purger) {
		p.progress = fn
	}
}

type Purger struct {
	store    Store
	progress func(BatchEvent)
}

func New(store Store, opts ...Option) *Purger {
	p := &Purger{store: store}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Purge deletes all versions, delete markers and objects in bucket, then the
// bucket. A failed existence check aborts before anything is listed or
// deleted. A failed version listing is logged and the purge continues with
// the plain object listing.
func (p *Purger) Purge(ctx context.Context, bucket string) (*Result, error) {
	result := &Result{Bucket: bucket}
	logger := logging.Logger.With().Str("bucket", bucket).Logger()

	if err := p.store.BucketExists(ctx, bucket); err != nil {
		return result, fmt.Errorf("bucket %s does not exist or you don't have permission to access it: %w", bucket, err)
	}
	logger.Info().Msg("bucket exists, deleting contents")

	versions, err := p.store.ListObjectVersions(ctx, bucket)
	if err != nil {
		result.VersionListingErr = err
		logger.Warn().Err(err).Msg("bucket is not versioned or version listing failed, continuing with object listing")
	} else {
		deleted, err := p.deleteAll(ctx, bucket, PhaseVersions, versions, result)
		result.VersionsDeleted = deleted
		if err != nil {
			return result, err
		}
		if deleted > 0 {
			logger.Info().Int("count", deleted).Msg("deleted object versions and delete markers")
		}
	}

	objects, err := p.store.ListObjectKeys(ctx, bucket)
	if err != nil {
		return result, fmt.Errorf("error listing objects in bucket %s: %w", bucket, err)
	}
	deleted, err := p.deleteAll(ctx, bucket, PhaseObjects, objects, result)
	result.ObjectsDeleted = deleted
	if err != nil {
		return result, err
	}
	if deleted > 0 {
		logger.Info().Int("count", deleted).Msg("deleted objects")
	}

	if err := p.store.DeleteBucket(ctx, bucket); err != nil {
		return result, fmt.Errorf("error deleting bucket %s: %w", bucket, err)
	}
	result.BucketDeleted = true
	logger.Info().Msg("bucket deleted")
	return result, nil
}

func (p *Purger) deleteAll(ctx context.Context, bucket string, phase Phase, refs []storage.ObjectRef, result *Result) (int, error) {
	batches := Batches(refs, storage.MaxDeleteBatch)

	deleted := 0
	for i, batch := range batches {
		n, err := p.store.DeleteObjects(ctx, bucket, batch)
		deleted += n
		result.Batches++
		if err != nil {
			return deleted, fmt.Errorf("error deleting %s batch %d/%d in bucket %s: %w", phase, i+1, len(batches), bucket, err)
		}

		if p.progress != nil {
			p.progress(BatchEvent{
				Phase:   phase,
				Batch:   i + 1,
				Batches: len(batches),
				Deleted: deleted,
				Total:   len(refs),
			})
		}
	}
	return deleted, nil
}
