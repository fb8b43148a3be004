package conf

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that serialises as a human readable string
// ("30s", "5m0s") in JSON and YAML. Bare integers are accepted on input and
// read as seconds, which is how interval knobs are usually written in env vars.
type Duration time.Duration

// Std converts d to a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalJSON writes the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON accepts "30s", a number of seconds, or null.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case string:
		parsed, err := parseDuration(value)
		if err != nil {
			return err
		}
		*d = parsed
	case float64:
		*d = Duration(time.Duration(value * float64(time.Second)))
	case nil:
		*d = 0
	default:
		return fmt.Errorf("invalid duration value: %v (type %T)", v, v)
	}
	return nil
}

// MarshalYAML writes the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML accepts a scalar duration string or a bare number of seconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("expected scalar duration value, got %v", value.Kind)
	}
	parsed, err := parseDuration(value.Value)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func parseDuration(s string) (Duration, error) {
	if parsed, err := time.ParseDuration(s); err == nil {
		return Duration(parsed), nil
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Duration(time.Duration(secs) * time.Second), nil
	}
	return 0, fmt.Errorf("invalid duration %q: expected format like \"30s\" or \"5m\"", s)
}

var durationType = reflect.TypeFor[Duration]()

// DurationDecodeHook converts strings and numbers into Duration while keeping
// the standard time.Duration and comma separated slice conversions viper relies on.
func DurationDecodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.DecodeHookFuncType(func(_, to reflect.Type, data any) (any, error) {
			if to != durationType {
				return data, nil
			}
			switch v := data.(type) {
			case string:
				return parseDuration(v)
			case int:
				return Duration(time.Duration(v) * time.Second), nil
			case int64:
				return Duration(time.Duration(v) * time.Second), nil
			case float64:
				return Duration(time.Duration(v * float64(time.Second))), nil
			case time.Duration:
				return Duration(v), nil
			default:
				return data, nil
			}
		}),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}
