package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/MaVeN-13TTN/meteostore-s3/internal/config"
	"github.com/MaVeN-13TTN/meteostore-s3/internal/logging"
	"github.com/MaVeN-13TTN/meteostore-s3/internal/purge"
	"github.com/MaVeN-13TTN/meteostore-s3/internal/storage"
)

var version = "0.1.0"

const usage = `Error: Please provide a bucket name to delete
Usage: deletebucket BUCKET_NAME
       deletebucket --list`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type options struct {
	list       bool
	noProgress bool
	envFile    string
	logLevel   string

	s3Region    string
	s3Endpoint  string
	s3AccessKey string
	s3SecretKey string
}

func newRootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:     "deletebucket [BUCKET_NAME]",
		Short:   "Empty an S3 bucket of every object and version, then delete it",
		Version: version,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if !opts.list && len(args) == 0 {
				fmt.Fprintln(out, usage)
				return nil
			}

			earlyLogLevel(cmd, opts)

			cfg, err := config.Load(opts.envFile)
			if err != nil {
				return err
			}
			applyFlags(cmd, cfg, opts)
			logging.SetLevel(cfg.LogLevel)

			client, err := storage.NewS3Client(cmd.Context(), cfg.Storage)
			if err != nil {
				return err
			}
			store := storage.NewStore(client, cfg.Storage.Region)

			if opts.list {
				return listBuckets(cmd.Context(), store, out)
			}

			var progress io.Writer
			if !opts.noProgress {
				progress = cmd.ErrOrStderr()
			}
			return deleteBucket(cmd.Context(), store, args[0], out, progress)
		},
	}

	cmd.Flags().BoolVar(&opts.list, "list", false, "List all buckets instead of deleting one")
	cmd.Flags().BoolVar(&opts.noProgress, "no-progress", false, "Do not draw delete progress bars")
	cmd.Flags().StringVar(&opts.envFile, "env", "", "Path to a dotenv file (default: .env if present)")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	cmd.Flags().StringVar(&opts.s3Region, "s3-region", config.DefaultRegion, "AWS region")
	cmd.Flags().StringVar(&opts.s3Endpoint, "s3-endpoint", "", "S3 endpoint URL (for LocalStack/MinIO)")
	cmd.Flags().StringVar(&opts.s3AccessKey, "s3-access-key", "", "AWS Access Key ID")
	cmd.Flags().StringVar(&opts.s3SecretKey, "s3-secret-key", "", "AWS Secret Access Key")

	return cmd
}

// earlyLogLevel applies the level known before the env file is read, so
// config loading itself can log at debug.
func earlyLogLevel(cmd *cobra.Command, opts options) {
	level := os.Getenv("LOG_LEVEL")
	if cmd.Flags().Changed("log-level") {
		level = opts.logLevel
	}
	if level != "" {
		logging.SetLevel(level)
	}
}

// applyFlags lets explicitly set flags win over the environment.
func applyFlags(cmd *cobra.Command, cfg *config.Config, opts options) {
	flags := cmd.Flags()
	if flags.Changed("s3-region") {
		cfg.Storage.Region = opts.s3Region
	}
	if flags.Changed("s3-endpoint") {
		cfg.Storage.Endpoint = opts.s3Endpoint
	}
	if flags.Changed("s3-access-key") {
		cfg.Storage.AccessKey = opts.s3AccessKey
	}
	if flags.Changed("s3-secret-key") {
		cfg.Storage.SecretKey = opts.s3SecretKey
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}
}

type bucketLister interface {
	ListBuckets(ctx context.Context) ([]storage.BucketInfo, error)
}

func listBuckets(ctx context.Context, store bucketLister, out io.Writer) error {
	buckets, err := store.ListBuckets(ctx)
	if err != nil {
		return fmt.Errorf("error listing buckets: %w", err)
	}

	if len(buckets) == 0 {
		fmt.Fprintln(out, "No buckets found")
		return nil
	}
	fmt.Fprintln(out, "Available buckets:")
	for _, b := range buckets {
		fmt.Fprintf(out, "  - %s\n", b.Name)
	}
	return nil
}

// deleteBucket purges bucket and prints a summary. progress receives one bar
// per delete phase; nil disables the bars.
func deleteBucket(ctx context.Context, store purge.Store, bucket string, out, progress io.Writer) error {
	fmt.Fprintf(out, "Attempting to delete bucket: %s\n", bucket)

	var opts []purge.Option
	if progress != nil {
		bars := &phaseBars{w: progress}
		defer bars.finish()
		opts = append(opts, purge.WithProgress(bars.update))
	}

	result, err := purge.New(store, opts...).Purge(ctx, bucket)
	if result.VersionListingErr != nil {
		fmt.Fprintf(out, "Bucket is not versioned or error occurred: %v\n", result.VersionListingErr)
	}
	if result.VersionsDeleted > 0 {
		fmt.Fprintf(out, "Deleted %d object versions/markers\n", result.VersionsDeleted)
	}
	if result.ObjectsDeleted > 0 {
		fmt.Fprintf(out, "Deleted %d objects\n", result.ObjectsDeleted)
	}
	if err != nil {
		logging.Error().Err(err).Str("bucket", bucket).Int("batches", result.Batches).Msg("purge failed")
		return err
	}

	fmt.Fprintf(out, "Successfully deleted bucket: %s\n", bucket)
	return nil
}

// phaseBars draws a progress bar per purge phase, sized to that phase's
// total.
type phaseBars struct {
	w     io.Writer
	phase purge.Phase
	bar   *progressbar.ProgressBar
}

func (p *phaseBars) update(ev purge.BatchEvent) {
	if p.bar == nil || p.phase != ev.Phase {
		p.finish()
		p.phase = ev.Phase
		p.bar = progressbar.NewOptions(ev.Total,
			progressbar.OptionSetWriter(p.w),
			progressbar.OptionSetDescription(fmt.Sprintf("deleting %s", ev.Phase)),
			progressbar.OptionSetWidth(30),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}
	_ = p.bar.Set(ev.Deleted)
}

func (p *phaseBars) finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
		p.bar = nil
	}
}
