package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"
)

// LoadSettingsFile returns default settings with the overrides read from the
// YAML file at path applied on top.
func LoadSettingsFile(path string) (*Settings, error) {
	s := NewSettings()
	if err := s.LoadFile(path); err != nil {
		return nil, err
	}
	return s, nil
}

// LoadFile reads a YAML mapping from path into the override layer. Nested
// mappings are flattened with "." separators, so
//
//	scheduler:
//	  trigger_event: time
//
// sets "scheduler.trigger_event". Booleans are stored as "1" and "0" to match Signal.
func (s *Settings) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read settings file: %w", err)
	}
	values, err := ParseYAML(data)
	if err != nil {
		return fmt.Errorf("parse settings file %s: %w", path, err)
	}
	s.Merge(values)
	return nil
}

// ParseYAML flattens a YAML mapping into settings keys and values.
func ParseYAML(data []byte) (map[string]string, error) {
	var root map[string]any
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	out := make(map[string]string)
	if err := flatten("", root, out); err != nil {
		return nil, err
	}
	return out, nil
}

func flatten(prefix string, m map[string]any, out map[string]string) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch v := m[k].(type) {
		case map[string]any:
			if err := flatten(key, v, out); err != nil {
				return err
			}
		case nil:
			out[key] = ""
		case string:
			out[key] = v
		case bool:
			if v {
				out[key] = "1"
			} else {
				out[key] = "0"
			}
		case int:
			out[key] = strconv.Itoa(v)
		case float64:
			out[key] = strconv.FormatFloat(v, 'f', -1, 64)
		case []any:
			return InvalidError(key, "lists are not supported")
		default:
			out[key] = fmt.Sprint(v)
		}
	}
	return nil
}
