package stage

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Params holds the loosely typed construction parameters of a stage, as
// decoded from YAML or JSON. Keys match case-insensitively because viper
// lowercases nested map keys.
type Params map[string]interface{}

func (p Params) get(key string) (interface{}, bool) {
	if val, exists := p[key]; exists {
		return val, true
	}
	for k, val := range p {
		if strings.EqualFold(k, key) {
			return val, true
		}
	}
	return nil, false
}

// Has reports whether key is present and not null.
func (p Params) Has(key string) bool {
	val, exists := p.get(key)
	return exists && val != nil
}

// Float retrieves a numeric value for key. Integer types and json.Number are
// converted. Returns false when the key is missing, null or not numeric.
func (p Params) Float(key string) (float64, bool) {
	val, exists := p.get(key)
	if !exists || val == nil {
		return 0, false
	}

	switch v := val.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

// String retrieves a string value for key.
func (p Params) String(key string) (string, bool) {
	val, exists := p.get(key)
	if !exists || val == nil {
		return "", false
	}
	s, ok := val.(string)
	return s, ok
}

func (p Params) raw(key string) interface{} {
	val, _ := p.get(key)
	return val
}

// mode reads the required "mode" parameter.
func (p Params) mode(typeName string) (Mode, error) {
	s, ok := p.String("mode")
	if !ok {
		return "", fmt.Errorf("%w: %s: 'mode' is required", ErrInvalidConfig, typeName)
	}
	mode, err := ParseMode(s)
	if err != nil {
		return "", fmt.Errorf("%s: %w", typeName, err)
	}
	return mode, nil
}

// windowSize reads "windowSize", which must be a positive integer when
// required is true. When not required it is ignored.
func (p Params) windowSize(typeName string, required bool) (int, error) {
	if !required {
		return 0, nil
	}
	if !p.Has("windowSize") {
		return 0, fmt.Errorf("%w: %s: 'windowSize' is required for 'moving' mode", ErrInvalidConfig, typeName)
	}
	f, ok := p.Float("windowSize")
	if !ok || f != math.Trunc(f) || f < 1 || f > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %s: 'windowSize' must be a positive integer, got %v", ErrInvalidConfig, typeName, p.raw("windowSize"))
	}
	return int(f), nil
}

// finite reads an optional finite number, returning def when absent.
func (p Params) finite(typeName, key string, def float64) (float64, error) {
	if !p.Has(key) {
		return def, nil
	}
	f, ok := p.Float(key)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %s: '%s' must be a finite number, got %v", ErrInvalidConfig, typeName, key, p.raw(key))
	}
	return f, nil
}

// windowed reads the mode and, for moving mode, the window size.
func (p Params) windowed(typeName string) (Mode, int, error) {
	mode, err := p.mode(typeName)
	if err != nil {
		return "", 0, err
	}
	windowSize, err := p.windowSize(typeName, mode == ModeMoving)
	if err != nil {
		return "", 0, err
	}
	return mode, windowSize, nil
}

// thresholded reads the required windowSize and threshold of a counter stage.
func (p Params) thresholded(typeName string) (int, float64, error) {
	windowSize, err := p.windowSize(typeName, true)
	if err != nil {
		return 0, 0, err
	}
	if !p.Has("threshold") {
		return 0, 0, fmt.Errorf("%w: %s: 'threshold' is required", ErrInvalidConfig, typeName)
	}
	threshold, err := p.finite(typeName, "threshold", 0)
	if err != nil {
		return 0, 0, err
	}
	return windowSize, threshold, nil
}
