package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MaVeN-13TTN/meteostore-s3/internal/config"
	"github.com/MaVeN-13TTN/meteostore-s3/internal/logging"
	"github.com/MaVeN-13TTN/meteostore-s3/internal/storage"
	"github.com/MaVeN-13TTN/meteostore-s3/internal/storage/storagetest"
)

func TestNoArgsPrintsUsage(t *testing.T) {
	cmd := newRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "Error: Please provide a bucket name to delete")
	assert.Contains(t, out.String(), "deletebucket --list")
}

func TestTooManyArgs(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"a", "b"})

	assert.Error(t, cmd.Execute())
}

func TestApplyFlags(t *testing.T) {
	cmd := newRootCmd()
	require.NoError(t, cmd.Flags().Parse([]string{"--s3-endpoint", "localhost:9000", "--log-level", "debug"}))

	cfg := &config.Config{Storage: config.StorageConfig{Region: "eu-west-1", AccessKey: "env-key"}}
	applyFlags(cmd, cfg, options{s3Endpoint: "localhost:9000", logLevel: "debug", s3Region: config.DefaultRegion})

	assert.Equal(t, "localhost:9000", cfg.Storage.Endpoint)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "eu-west-1", cfg.Storage.Region, "unset flag must not override the environment")
	assert.Equal(t, "env-key", cfg.Storage.AccessKey)
}

func TestListBuckets(t *testing.T) {
	fake := storagetest.New()
	fake.AddBucket("weather-data-1")
	fake.AddBucket("weather-data-2")

	out := &bytes.Buffer{}
	require.NoError(t, listBuckets(context.Background(), storage.NewStore(fake, ""), out))
	assert.Equal(t, "Available buckets:\n  - weather-data-1\n  - weather-data-2\n", out.String())
}

func TestListBucketsEmpty(t *testing.T) {
	out := &bytes.Buffer{}
	require.NoError(t, listBuckets(context.Background(), storage.NewStore(storagetest.New(), ""), out))
	assert.Equal(t, "No buckets found\n", out.String())
}

func TestListBucketsError(t *testing.T) {
	fake := storagetest.New()
	fake.Errors["ListBuckets"] = storagetest.APIError("AccessDenied")

	err := listBuckets(context.Background(), storage.NewStore(fake, ""), &bytes.Buffer{})
	require.Error(t, err)
	assert.True(t, storage.IsKind(err, storage.KindPermissionDenied))
}

func TestDeleteBucket(t *testing.T) {
	fake := storagetest.New()
	fake.AddBucket("weather-data-7")
	fake.AddObjects("weather-data-7", "obj", 1500)

	out, progress := &bytes.Buffer{}, &bytes.Buffer{}
	require.NoError(t, deleteBucket(context.Background(), storage.NewStore(fake, ""), "weather-data-7", out, progress))

	text := out.String()
	assert.Contains(t, text, "Attempting to delete bucket: weather-data-7")
	assert.Contains(t, text, "Deleted 1500 objects")
	assert.Contains(t, text, "Successfully deleted bucket: weather-data-7")
	assert.NotContains(t, text, "object versions")
	assert.NotEmpty(t, progress.String())

	assert.NotContains(t, fake.Buckets, "weather-data-7")
	require.Len(t, fake.DeleteBatches, 2)
	assert.Len(t, fake.DeleteBatches[0], 1000)
	assert.Len(t, fake.DeleteBatches[1], 500)
}

func TestDeleteBucketVersioned(t *testing.T) {
	fake := storagetest.New()
	fake.AddBucket("b")
	fake.AddVersions("b",
		storagetest.Version{Key: "a.json", VersionID: "v1"},
		storagetest.Version{Key: "a.json", VersionID: "v2", DeleteMarker: true},
	)

	out := &bytes.Buffer{}
	require.NoError(t, deleteBucket(context.Background(), storage.NewStore(fake, ""), "b", out, nil))
	assert.Contains(t, out.String(), "Deleted 2 object versions/markers")
	assert.NotContains(t, fake.Buckets, "b")
}

func TestDeleteBucketMissing(t *testing.T) {
	fake := storagetest.New()

	out := &bytes.Buffer{}
	err := deleteBucket(context.Background(), storage.NewStore(fake, ""), "nope", out, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist or you don't have permission")
	assert.NotContains(t, out.String(), "Successfully")
	assert.Zero(t, fake.Calls["DeleteObjects"])
}

func TestDeleteBucketFinalDeleteFails(t *testing.T) {
	fake := storagetest.New()
	fake.AddBucket("b")
	fake.Errors["DeleteBucket"] = storagetest.APIError("AccessDenied")

	out := &bytes.Buffer{}
	err := deleteBucket(context.Background(), storage.NewStore(fake, ""), "b", out, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error deleting bucket b")
	assert.NotContains(t, out.String(), "Successfully")
}

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	saved := logging.Logger
	logging.Logger = logging.New(buf, zerolog.InfoLevel)
	t.Cleanup(func() { logging.Logger = saved })
	return buf
}

func TestLogLevelFlagAppliesBeforeEnvFile(t *testing.T) {
	logs := captureLogs(t)
	t.Setenv("LOG_LEVEL", "")

	envFile := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("# no values\n"), 0644))

	cmd := newRootCmd()
	require.NoError(t, cmd.Flags().Parse([]string{"--log-level", "debug"}))
	earlyLogLevel(cmd, options{logLevel: "debug"})

	_, err := config.Load(envFile)
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "loading env file")
}

func TestLogLevelFromEnvironment(t *testing.T) {
	captureLogs(t)
	t.Setenv("LOG_LEVEL", "debug")

	earlyLogLevel(newRootCmd(), options{})
	assert.Equal(t, zerolog.DebugLevel, logging.Logger.GetLevel())
}

func TestLogLevelFlagWinsOverEnvironment(t *testing.T) {
	captureLogs(t)
	t.Setenv("LOG_LEVEL", "debug")

	cmd := newRootCmd()
	require.NoError(t, cmd.Flags().Parse([]string{"--log-level", "error"}))
	earlyLogLevel(cmd, options{logLevel: "error"})
	assert.Equal(t, zerolog.ErrorLevel, logging.Logger.GetLevel())
}

func TestNoLogLevelKeepsCurrent(t *testing.T) {
	captureLogs(t)
	t.Setenv("LOG_LEVEL", "")

	earlyLogLevel(newRootCmd(), options{})
	assert.Equal(t, zerolog.InfoLevel, logging.Logger.GetLevel())
}
