package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configEnvVars = []string{
	"AWS_BUCKET_NAME",
	"BUCKET_NAME_STRATEGY",
	"LOG_LEVEL",
	"AWS_REGION",
	"S3_ENDPOINT_URL",
	"AWS_ACCESS_KEY_ID",
	"AWS_SECRET_ACCESS_KEY",
	"OPENWEATHER_API_KEY",
	"OPENWEATHER_BASE_URL",
	"OPENWEATHER_UNITS",
	"OPENWEATHER_TIMEOUT",
}

// clearEnv unsets every variable Load reads; t.Setenv restores them afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnvVars {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "weather-data", cfg.BucketPrefix)
	assert.Equal(t, "random", cfg.NameStrategy)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, DefaultRegion, cfg.Storage.Region)
	assert.Empty(t, cfg.Storage.Endpoint)
	assert.Empty(t, cfg.Weather.APIKey)
	assert.Equal(t, "https://api.openweathermap.org/data/2.5", cfg.Weather.BaseURL)
	assert.Equal(t, "imperial", cfg.Weather.Units)
	assert.Equal(t, 10*time.Second, cfg.Weather.Timeout)
}

func TestLoadEnvOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("AWS_BUCKET_NAME", "my-weather--")
	t.Setenv("BUCKET_NAME_STRATEGY", "uuid")
	t.Setenv("AWS_REGION", "eu-west-1")
	t.Setenv("S3_ENDPOINT_URL", "http://localhost:9000")
	t.Setenv("OPENWEATHER_API_KEY", "secret")
	t.Setenv("OPENWEATHER_UNITS", "metric")
	t.Setenv("OPENWEATHER_TIMEOUT", "3s")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "my-weather", cfg.Prefix())
	assert.Equal(t, "uuid", cfg.NameStrategy)
	assert.Equal(t, "eu-west-1", cfg.Storage.Region)
	assert.Equal(t, "http://localhost:9000", cfg.Storage.Endpoint)
	assert.Equal(t, "secret", cfg.Weather.APIKey)
	assert.Equal(t, "metric", cfg.Weather.Units)
	assert.Equal(t, 3*time.Second, cfg.Weather.Timeout)
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("OPENWEATHER_API_KEY=from-file\nAWS_BUCKET_NAME=filed-\n"), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Weather.APIKey)
	assert.Equal(t, "filed", cfg.Prefix())
}

func TestLoadMissingEnvFile(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "nope.env"))
	require.Error(t, err)
}

func TestPrefix(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"weather-data", "weather-data"},
		{"weather-data-", "weather-data"},
		{"weather-data---", "weather-data"},
		{"  spaced- ", "spaced"},
		{"---", DefaultBucketPrefix},
		{"", DefaultBucketPrefix},
	}
	for _, c := range cases {
		cfg := Config{BucketPrefix: c.in}
		assert.Equal(t, c.want, cfg.Prefix(), "prefix %q", c.in)
	}
}

func TestWeatherValidate(t *testing.T) {
	w := WeatherConfig{BaseURL: "http://x"}
	assert.ErrorIs(t, w.Validate(), ErrMissingAPIKey)

	w.APIKey = "key"
	assert.NoError(t, w.Validate())

	w.BaseURL = ""
	assert.Error(t, w.Validate())
}

func TestLoadProfileMissingUsesDefaults(t *testing.T) {
	p, err := LoadProfile(filepath.Join(t.TempDir(), "profile.yaml"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Nairobi", "Cape Town", "Dubai"}, p.Cities)
}

func TestSaveAndLoadProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "profile.yaml")

	require.NoError(t, SaveProfile(path, &Profile{Cities: []string{"Lagos", " ", "Accra "}}))

	p, err := LoadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Lagos", "Accra"}, p.Cities)
}

func TestLoadProfileEmptyCities(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cities: []\n"), 0644))

	p, err := LoadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultCities, p.Cities)
}

func TestLoadProfileInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cities: [unterminated\n"), 0644))

	_, err := LoadProfile(path)
	require.Error(t, err)
}

func TestDefaultProfileIsACopy(t *testing.T) {
	p := DefaultProfile()
	p.Cities[0] = "Mutated"
	assert.Equal(t, "Nairobi", DefaultCities[0])
}
