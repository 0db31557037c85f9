package message

import (
	"fmt"
	"time"
)

// DynamicMessage represents a message with arbitrary key-value pairs,
// typically parsed from JSON.
type DynamicMessage map[string]interface{}

// GetFloat64 retrieves a float64 value for a given key.
// Handles missing keys, null values, and integer-to-float conversion.
func (dm DynamicMessage) GetFloat64(key string) (float64, bool) {
	val, exists := dm[key]
	if !exists || val == nil {
		return 0, false
	}
	return toFloat64(val)
}

func toFloat64(val interface{}) (float64, bool) {
	switch v := val.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// GetString retrieves a string value for a given key.
func (dm DynamicMessage) GetString(key string) (string, bool) {
	s, ok := dm[key].(string)
	return s, ok
}

// GetFloat64Slice retrieves an array of numbers. It fails on the first
// element that is not numeric.
func (dm DynamicMessage) GetFloat64Slice(key string) ([]float64, bool) {
	raw, ok := dm[key].([]interface{})
	if !ok {
		return nil, false
	}
	out := make([]float64, len(raw))
	for i, v := range raw {
		f, ok := toFloat64(v)
		if !ok {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}

// HasNonNull checks if a key exists and its value is not explicitly null.
func (dm DynamicMessage) HasNonNull(key string) bool {
	val, exists := dm[key]
	return exists && val != nil
}

// GetTime retrieves a timestamp stored either as a string in one of the
// common layouts or as Unix epoch milliseconds.
func (dm DynamicMessage) GetTime(key string) (time.Time, bool) {
	val, exists := dm[key]
	if !exists || val == nil {
		return time.Time{}, false
	}

	if ms, ok := toFloat64(val); ok {
		return time.UnixMilli(int64(ms)).UTC(), true
	}

	timeStr, ok := val.(string)
	if !ok {
		return time.Time{}, false
	}

	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
	}
	for _, format := range formats {
		if t, err := time.Parse(format, timeStr); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// GetFieldSnippet returns a string snippet of a field's value, useful for logging.
// It handles missing keys and truncates long values.
func (dm DynamicMessage) GetFieldSnippet(fieldName string, maxLength int) string {
	value, exists := dm[fieldName]
	if !exists {
		return "<missing>"
	}

	strValue := fmt.Sprintf("%v", value)
	if maxLength <= 0 {
		return "..."
	}
	if len(strValue) > maxLength {
		return strValue[:maxLength] + "..."
	}
	return strValue
}
