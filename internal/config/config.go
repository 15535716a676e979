package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/MaVeN-13TTN/meteostore-s3/internal/logging"
)

const (
	DefaultBucketPrefix = "weather-data"
	DefaultRegion       = "us-east-1"
)

var DefaultCities = []string{"Nairobi", "Cape Town", "Dubai"}

var ErrMissingAPIKey = errors.New("openweather api key is not set (OPENWEATHER_API_KEY)")

type Config struct {
	Storage StorageConfig
	Weather WeatherConfig

	BucketPrefix string `env:"AWS_BUCKET_NAME" envDefault:"weather-data"`
	NameStrategy string `env:"BUCKET_NAME_STRATEGY" envDefault:"random"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
}

type StorageConfig struct {
	Region    string `env:"AWS_REGION" envDefault:"us-east-1"`
	Endpoint  string `env:"S3_ENDPOINT_URL"`
	AccessKey string `env:"AWS_ACCESS_KEY_ID"`
	SecretKey string `env:"AWS_SECRET_ACCESS_KEY"`
}

type WeatherConfig struct {
	APIKey  string        `env:"OPENWEATHER_API_KEY"`
	BaseURL string        `env:"OPENWEATHER_BASE_URL" envDefault:"https://api.openweathermap.org/data/2.5"`
	Units   string        `env:"OPENWEATHER_UNITS" envDefault:"imperial"`
	Timeout time.Duration `env:"OPENWEATHER_TIMEOUT" envDefault:"10s"`
}

// Load reads an optional dotenv file and then the process environment.
// An empty envFile means ".env" in the working directory, which may be absent.
func Load(envFile string) (*Config, error) {
	if err := loadEnvFile(envFile); err != nil {
		return nil, err
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile(path string) error {
	if path == "" {
		err := godotenv.Load()
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("error loading .env file: %w", err)
		}
		if err != nil {
			logging.Debug().Msg("no .env file found, using process environment only")
		}
		return nil
	}

	logging.Debug().Str("path", path).Msg("loading env file")
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("error loading env file '%s': %w", path, err)
	}
	return nil
}

// Prefix returns the bucket-name prefix with trailing hyphens stripped.
func (c *Config) Prefix() string {
	prefix := strings.TrimRight(strings.TrimSpace(c.BucketPrefix), "-")
	if prefix == "" {
		return DefaultBucketPrefix
	}
	return prefix
}

func (w WeatherConfig) Validate() error {
	if strings.TrimSpace(w.APIKey) == "" {
		return ErrMissingAPIKey
	}
	if w.BaseURL == "" {
		return fmt.Errorf("weather base URL is empty")
	}
	return nil
}

// Profile lists the cities captured by one weatherdash run.
type Profile struct {
	Cities []string `yaml:"cities" json:"cities"`
}

func DefaultProfile() *Profile {
	cities := make([]string, len(DefaultCities))
	copy(cities, DefaultCities)
	return &Profile{Cities: cities}
}

func ConfigDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".meteostore")
}

func ProfilePath() string {
	return filepath.Join(ConfigDir(), "profile.yaml")
}

// LoadProfile reads the profile at path (ProfilePath when empty). A missing
// file or an empty city list yields the default cities.
func LoadProfile(path string) (*Profile, error) {
	if path == "" {
		path = ProfilePath()
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultProfile(), nil
	}
	if err != nil {
		return nil, err
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("invalid profile %s: %w", path, err)
	}

	cities := p.Cities[:0]
	for _, c := range p.Cities {
		if c = strings.TrimSpace(c); c != "" {
			cities = append(cities, c)
		}
	}
	if len(cities) == 0 {
		return DefaultProfile(), nil
	}
	p.Cities = cities
	return &p, nil
}

func SaveProfile(path string, p *Profile) error {
	if path == "" {
		path = ProfilePath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(p)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
