package capture

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const (
	TimestampLayout   = "20060102-150405"
	KeyPrefix         = "weather-data"
	RecordContentType = "application/json"
)

var errNotObject = errors.New("weather response is not a JSON object")

// ObjectKey returns weather-data/{city}-{timestamp}.json.
func ObjectKey(city, timestamp string) string {
	return fmt.Sprintf("%s/%s-%s.json", KeyPrefix, city, timestamp)
}

// BuildRecord returns the provider response with a "timestamp" field
// appended. The response bytes are kept as received; only when the response
// already carries a timestamp is it re-encoded to replace that field.
func BuildRecord(body []byte, timestamp string) ([]byte, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("error encoding weather record: %w", err)
	}
	if fields == nil {
		return nil, fmt.Errorf("error encoding weather record: %w", errNotObject)
	}

	ts, err := encodeJSON(timestamp)
	if err != nil {
		return nil, fmt.Errorf("error encoding weather record: %w", err)
	}

	if _, ok := fields["timestamp"]; ok {
		fields["timestamp"] = ts
		data, err := encodeJSON(fields)
		if err != nil {
			return nil, fmt.Errorf("error encoding weather record: %w", err)
		}
		return data, nil
	}

	obj := bytes.TrimSpace(body)
	open := bytes.TrimRight(obj[:len(obj)-1], " \t\r\n")

	record := make([]byte, 0, len(open)+len(ts)+16)
	record = append(record, open...)
	if len(fields) > 0 {
		record = append(record, ',')
	}
	record = append(record, `"timestamp":`...)
	record = append(record, ts...)
	record = append(record, '}')
	return record, nil
}

// encodeJSON marshals v without HTML escaping or a trailing newline.
func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func formatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}
