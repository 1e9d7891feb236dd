package config

import (
	"reflect"
	"time"

	"gopkg.in/yaml.v3"
)

// YAML renders c in the same shape the loader reads, with durations
// written as Go duration strings. Callers wanting to display it should
// render c.Redacted().
func (c Config) YAML() ([]byte, error) {
	return yaml.Marshal(settingsOf(reflect.ValueOf(c)))
}

func settingsOf(v reflect.Value) any {
	if v.Type() == durationType {
		return time.Duration(v.Int()).String()
	}

	switch v.Kind() {
	case reflect.Struct:
		out := make(map[string]any, v.NumField())
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			key := field.Tag.Get("mapstructure")
			if key == "" || key == "-" || !field.IsExported() {
				continue
			}
			out[key] = settingsOf(v.Field(i))
		}
		return out
	case reflect.Slice:
		if v.IsNil() {
			return []any{}
		}
		out := make([]any, v.Len())
		for i := range out {
			out[i] = settingsOf(v.Index(i))
		}
		return out
	default:
		return v.Interface()
	}
}
