// Package capture records current weather for a list of cities as JSON
// objects in a freshly provisioned bucket.
package capture

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/MaVeN-13TTN/meteostore-s3/internal/logging"
	"github.com/MaVeN-13TTN/meteostore-s3/internal/storage"
	"github.com/MaVeN-13TTN/meteostore-s3/internal/weather"
)

type Store interface {
	BucketExists(ctx context.Context, bucket string) error
	CreateBucket(ctx context.Context, bucket string) error
	PutObject(ctx context.Context, bucket, key string, body []byte, contentType string) error
}

var _ Store = (*storage.Store)(nil)

type Fetcher interface {
	Fetch(ctx context.Context, city string) (*weather.Report, error)
}

var _ Fetcher = (*weather.Client)(nil)

type Saved struct {
	City string
	Key  string
}

type Failure struct {
	City string
	Err  error
}

type Report struct {
	Bucket string
	Saved  []Saved
	Failed []Failure
}

type Option func(*Runner)

func WithOutput(w io.Writer) Option {
	return func(r *Runner) {
		r.out = w
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
	}
}

// WithUnits sets the unit system used when printing summaries.
func WithUnits(units string) Option {
	return func(r *Runner) {
		r.units = units
	}
}

type Runner struct {
	store   Store
	fetcher Fetcher
	names   NameGenerator
	out     io.Writer
	now     func() time.Time
	units   string
	bucket  string
}

func NewRunner(store Store, fetcher Fetcher, names NameGenerator, opts ...Option) *Runner {
	r := &Runner{
		store:   store,
		fetcher: fetcher,
		names:   names,
		out:     os.Stdout,
		now:     time.Now,
		units:   "imperial",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Bucket returns the run's bucket name, generating it on first use.
func (r *Runner) Bucket() string {
	if r.bucket == "" {
		r.bucket = r.names.Generate()
		logging.Debug().Str("bucket", r.bucket).Msg("using bucket name")
	}
	return r.bucket
}

// EnsureBucket creates the run's bucket unless the existence probe succeeds.
// A bucket that already exists is not an error.
func (r *Runner) EnsureBucket(ctx context.Context) (string, error) {
	bucket := r.Bucket()

	err := r.store.BucketExists(ctx, bucket)
	if err == nil {
		fmt.Fprintf(r.out, "Bucket %s exists\n", bucket)
		return bucket, nil
	}
	logging.Debug().Err(err).Str("bucket", bucket).Msg("head bucket failed")

	fmt.Fprintf(r.out, "Creating bucket %s\n", bucket)
	if err := r.store.CreateBucket(ctx, bucket); err != nil {
		if storage.IsKind(err, storage.KindAlreadyExists) {
			logging.Warn().Err(err).Str("bucket", bucket).Msg("bucket already exists, reusing it")
			return bucket, nil
		}
		return "", fmt.Errorf("error creating bucket %s (name length %d): %w", bucket, len(bucket), err)
	}
	fmt.Fprintf(r.out, "Successfully created bucket %s\n", bucket)
	return bucket, nil
}

// Run provisions the bucket and captures each city in order. A failed fetch
// or upload only skips that city.
func (r *Runner) Run(ctx context.Context, cities []string) (*Report, error) {
	bucket, err := r.EnsureBucket(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{Bucket: bucket}
	for _, city := range cities {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		fmt.Fprintf(r.out, "\nFetching weather for %s...\n", city)
		wr, err := r.fetcher.Fetch(ctx, city)
		if err != nil {
			logging.Error().Err(err).Str("city", city).Msg("error fetching weather data")
			fmt.Fprintf(r.out, "Failed to fetch weather data for %s\n", city)
			report.Failed = append(report.Failed, Failure{City: city, Err: err})
			continue
		}

		r.printSummary(wr.Summary)

		key, err := r.save(ctx, bucket, city, wr.Body)
		if err != nil {
			logging.Error().Err(err).Str("city", city).Msg("error saving to S3")
			report.Failed = append(report.Failed, Failure{City: city, Err: err})
			continue
		}
		fmt.Fprintf(r.out, "Weather data for %s saved to S3!\n", city)
		report.Saved = append(report.Saved, Saved{City: city, Key: key})
	}
	return report, nil
}

func (r *Runner) save(ctx context.Context, bucket, city string, response []byte) (string, error) {
	timestamp := formatTimestamp(r.now())
	key := ObjectKey(city, timestamp)

	body, err := BuildRecord(response, timestamp)
	if err != nil {
		return "", err
	}

	if err := r.store.PutObject(ctx, bucket, key, body, RecordContentType); err != nil {
		return "", err
	}
	return key, nil
}

func (r *Runner) printSummary(s weather.Summary) {
	unit := temperatureUnit(r.units)
	fmt.Fprintf(r.out, "Temperature: %v%s\n", s.Temp, unit)
	fmt.Fprintf(r.out, "Feels like: %v%s\n", s.FeelsLike, unit)
	fmt.Fprintf(r.out, "Humidity: %v%%\n", s.Humidity)
	fmt.Fprintf(r.out, "Conditions: %s\n", s.Description)
}

func temperatureUnit(units string) string {
	switch units {
	case "metric":
		return "°C"
	case "standard":
		return "K"
	default:
		return "°F"
	}
}
