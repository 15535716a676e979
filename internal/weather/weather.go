// Package weather fetches current conditions from the OpenWeather API.
package weather

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"

	"github.com/MaVeN-13TTN/meteostore-s3/internal/config"
)

var (
	ErrCityNotFound = errors.New("city not found")
	ErrUnauthorized = errors.New("invalid or missing API key")
)

// StatusError is returned for any non-2xx response.
type StatusError struct {
	City       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("weather API returned %d for %s: %s", e.StatusCode, e.City, e.Body)
}

func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrCityNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	}
	return false
}

// Summary holds the fields printed for each city.
type Summary struct {
	Temp        float64
	FeelsLike   float64
	Humidity    float64
	Description string
}

// Report is one successful response. Body is the response exactly as
// received; Raw is its decoded form with numbers kept as json.Number.
type Report struct {
	City    string
	Body    []byte
	Raw     map[string]any
	Summary Summary
}

type currentResponse struct {
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  float64 `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
}

type Client struct {
	client *resty.Client
	apiKey string
	units  string
}

func NewClient(cfg config.WeatherConfig) *Client {
	units := cfg.Units
	if units == "" {
		units = "imperial"
	}

	return &Client{
		client: resty.New().
			SetBaseURL(cfg.BaseURL).
			SetTimeout(cfg.Timeout).
			SetHeader("Accept", "application/json"),
		apiKey: cfg.APIKey,
		units:  units,
	}
}

// Fetch returns the current weather for city.
func (c *Client) Fetch(ctx context.Context, city string) (*Report, error) {
	res, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":     city,
			"appid": c.apiKey,
			"units": c.units,
		}).
		Get("/weather")
	if err != nil {
		return nil, fmt.Errorf("error fetching weather for %s: %w", city, err)
	}

	if !res.IsSuccess() {
		return nil, &StatusError{City: city, StatusCode: res.StatusCode(), Body: res.String()}
	}

	return decodeReport(city, res.Body())
}

func decodeReport(city string, body []byte) (*Report, error) {
	var raw map[string]any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("error parsing weather response for %s: %w", city, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("error parsing weather response for %s: not a JSON object", city)
	}

	var cur currentResponse
	if err := json.Unmarshal(body, &cur); err != nil {
		return nil, fmt.Errorf("error parsing weather response for %s: %w", city, err)
	}

	summary := Summary{
		Temp:      cur.Main.Temp,
		FeelsLike: cur.Main.FeelsLike,
		Humidity:  cur.Main.Humidity,
	}
	if len(cur.Weather) > 0 {
		summary.Description = cur.Weather[0].Description
	}

	return &Report{City: city, Body: body, Raw: raw, Summary: summary}, nil
}
