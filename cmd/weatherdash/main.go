package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MaVeN-13TTN/meteostore-s3/internal/capture"
	"github.com/MaVeN-13TTN/meteostore-s3/internal/config"
	"github.com/MaVeN-13TTN/meteostore-s3/internal/logging"
	"github.com/MaVeN-13TTN/meteostore-s3/internal/storage"
	"github.com/MaVeN-13TTN/meteostore-s3/internal/weather"
)

var version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type options struct {
	envFile  string
	profile  string
	cities   []string
	logLevel string

	s3Region    string
	s3Endpoint  string
	s3AccessKey string
	s3SecretKey string
}

func newRootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:     "weatherdash",
		Short:   "Capture current weather for a set of cities into a new S3 bucket",
		Version: version,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			earlyLogLevel(cmd, opts)

			cfg, err := config.Load(opts.envFile)
			if err != nil {
				return err
			}
			applyFlags(cmd, cfg, opts)
			logging.SetLevel(cfg.LogLevel)

			if err := cfg.Weather.Validate(); err != nil {
				return err
			}

			cities, err := resolveCities(opts.cities, opts.profile)
			if err != nil {
				return err
			}

			names, err := capture.NewNameGenerator(cfg.NameStrategy, cfg.Prefix())
			if err != nil {
				return err
			}

			client, err := storage.NewS3Client(cmd.Context(), cfg.Storage)
			if err != nil {
				return err
			}

			runner := capture.NewRunner(
				storage.NewStore(client, cfg.Storage.Region),
				weather.NewClient(cfg.Weather),
				names,
				capture.WithOutput(cmd.OutOrStdout()),
				capture.WithUnits(cfg.Weather.Units),
			)
			return run(cmd.Context(), runner, cities, cmd.OutOrStdout())
		},
	}

	cmd.PersistentFlags().StringVar(&opts.profile, "profile", "", "Path to the city profile (default: ~/.meteostore/profile.yaml)")
	cmd.PersistentFlags().StringSliceVar(&opts.cities, "city", nil, "City to capture, repeatable (overrides the profile)")

	cmd.Flags().StringVar(&opts.envFile, "env", "", "Path to a dotenv file (default: .env if present)")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	cmd.Flags().StringVar(&opts.s3Region, "s3-region", config.DefaultRegion, "AWS region")
	cmd.Flags().StringVar(&opts.s3Endpoint, "s3-endpoint", "", "S3 endpoint URL (for LocalStack/MinIO)")
	cmd.Flags().StringVar(&opts.s3AccessKey, "s3-access-key", "", "AWS Access Key ID")
	cmd.Flags().StringVar(&opts.s3SecretKey, "s3-secret-key", "", "AWS Secret Access Key")

	cmd.AddCommand(initProfileCmd(&opts))
	return cmd
}

func initProfileCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "init-profile",
		Short: "Write a city profile (the default cities unless --city is given)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := opts.profile
			if path == "" {
				path = config.ProfilePath()
			}

			profile := config.DefaultProfile()
			if cities := cleanCities(opts.cities); len(cities) > 0 {
				profile.Cities = cities
			}

			if err := config.SaveProfile(path, profile); err != nil {
				return fmt.Errorf("error writing profile %s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d cities to %s\n", len(profile.Cities), path)
			return nil
		},
	}
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

// resolveCities prefers --city over the profile file.
func resolveCities(flagCities []string, profilePath string) ([]string, error) {
	if cities := cleanCities(flagCities); len(cities) > 0 {
		return cities, nil
	}

	profile, err := config.LoadProfile(profilePath)
	if err != nil {
		return nil, err
	}
	return profile.Cities, nil
}

func cleanCities(in []string) []string {
	var out []string
	for _, c := range in {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func run(ctx context.Context, runner *capture.Runner, cities []string, out io.Writer) error {
	report, err := runner.Run(ctx, cities)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\nSaved %d of %d cities to bucket %s\n", len(report.Saved), len(cities), report.Bucket)
	for _, f := range report.Failed {
		fmt.Fprintf(out, "  - %s: %v\n", f.City, f.Err)
	}
	return nil
}
