package capture

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectKey(t *testing.T) {
	ts := formatTimestamp(time.Date(2024, 12, 31, 23, 59, 1, 0, time.UTC))
	assert.Equal(t, "20241231-235901", ts)
	assert.Equal(t, "weather-data/Cape Town-20241231-235901.json", ObjectKey("Cape Town", ts))
}

func TestBuildRecordKeepsResponseBytes(t *testing.T) {
	body := []byte(`{"name":"Nairobi","main":{"temp":71.60,"humidity":49},"note":"<a&b>","coord":{"lon":36.8167}}`)

	data, err := BuildRecord(body, "20250304-050607")
	require.NoError(t, err)
	assert.Equal(t,
		`{"name":"Nairobi","main":{"temp":71.60,"humidity":49},"note":"<a&b>","coord":{"lon":36.8167},"timestamp":"20250304-050607"}`,
		string(data))
}

func TestBuildRecordTrailingWhitespace(t *testing.T) {
	data, err := BuildRecord([]byte("{\"cod\":200}\n  \n"), "20250304-050607")
	require.NoError(t, err)
	assert.Equal(t, `{"cod":200,"timestamp":"20250304-050607"}`, string(data))
}

func TestBuildRecordEmptyObject(t *testing.T) {
	data, err := BuildRecord([]byte(`{ }`), "20250304-050607")
	require.NoError(t, err)
	assert.Equal(t, `{"timestamp":"20250304-050607"}`, string(data))
}

func TestBuildRecordReplacesTimestamp(t *testing.T) {
	data, err := BuildRecord([]byte(`{"timestamp":1,"note":"<x>"}`), "20250304-050607")
	require.NoError(t, err)
	assert.JSONEq(t, `{"timestamp":"20250304-050607","note":"<x>"}`, string(data))
	assert.Contains(t, string(data), `"<x>"`)
}

func TestBuildRecordRejectsNonObjects(t *testing.T) {
	for _, body := range []string{`null`, `[1,2]`, `not json`, ``} {
		_, err := BuildRecord([]byte(body), "20250304-050607")
		require.Error(t, err, body)
		assert.Contains(t, err.Error(), "error encoding weather record")
	}
}
