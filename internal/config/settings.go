package config

import (
	"errors"
	"fmt"
	"sort"
)

// Well-known settings keys.
const (
	KeyPath         = "path"
	KeyScheduler    = "scheduler"
	KeyTriggerEvent = "scheduler.trigger_event"
)

// Default values for the well-known keys.
const (
	DefaultPath         = "int://local"
	DefaultScheduler    = "fifo"
	DefaultTriggerEvent = "dependency"
)

var (
	// ErrMissing is returned when a key is present in neither layer.
	ErrMissing = errors.New("key not found")
	// ErrInvalid is returned when a key holds a value that cannot be used.
	ErrInvalid = errors.New("invalid value")
)

// Error is a configuration error naming the offending key.
type Error struct {
	Key    string
	Reason string
	Err    error
}

// MissingError returns a configuration error for an absent key.
func MissingError(key string) *Error {
	return &Error{Key: key, Err: ErrMissing}
}

// InvalidError returns a configuration error for an unusable value.
func InvalidError(key, reason string) *Error {
	return &Error{Key: key, Reason: reason, Err: ErrInvalid}
}

func (e *Error) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("config %q: %v", e.Key, e.Err)
	}
	return fmt.Sprintf("config %q: %v: %s", e.Key, e.Err, e.Reason)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Source identifies which layer a value resolves from.
type Source int

// Settings layers.
const (
	SourceNone Source = iota
	SourceDefault
	SourceOverride
)

func (s Source) String() string {
	switch s {
	case SourceDefault:
		return "default"
	case SourceOverride:
		return "override"
	default:
		return "none"
	}
}

// Settings is a layered string key/value store: values in the override layer
// shadow values in the default layer. The zero value is an empty store with
// no defaults. Settings is not safe for concurrent use.
type Settings struct {
	defaults  map[string]string
	overrides map[string]string
}

// NewSettings returns settings with the default layer pre-seeded.
func NewSettings() *Settings {
	return &Settings{
		defaults: map[string]string{
			KeyPath:         DefaultPath,
			KeyScheduler:    DefaultScheduler,
			KeyTriggerEvent: DefaultTriggerEvent,
		},
		overrides: make(map[string]string),
	}
}

func (s *Settings) override() map[string]string {
	if s.overrides == nil {
		s.overrides = make(map[string]string)
	}
	return s.overrides
}

func (s *Settings) lookup(key string) (string, Source) {
	if v, ok := s.overrides[key]; ok {
		return v, SourceOverride
	}
	if v, ok := s.defaults[key]; ok {
		return v, SourceDefault
	}
	return "", SourceNone
}

// Get returns the override value for key, else the default value. It fails
// with ErrMissing when neither layer has the key and never mutates s.
func (s *Settings) Get(key string) (string, error) {
	v, src := s.lookup(key)
	if src == SourceNone {
		return "", MissingError(key)
	}
	return v, nil
}

// GetOrCreate returns the resolved value for key. On a miss it inserts an
// empty override entry for key and returns it, so it never fails.
func (s *Settings) GetOrCreate(key string) string {
	v, src := s.lookup(key)
	if src == SourceNone {
		s.override()[key] = ""
	}
	return v
}

// GetDefault returns the resolved value for key, or def when key is absent.
// Unlike GetOrCreate it does not touch the override layer.
func (s *Settings) GetDefault(key, def string) string {
	if v, src := s.lookup(key); src != SourceNone {
		return v
	}
	return def
}

// Set stores value in the override layer.
func (s *Settings) Set(key, value string) {
	s.override()[key] = value
}

// Merge stores every entry of values in the override layer.
func (s *Settings) Merge(values map[string]string) {
	o := s.override()
	for k, v := range values {
		o[k] = v
	}
}

// Signal reports whether key resolves to exactly "1". A missing key is false.
func (s *Settings) Signal(key string) bool {
	v, err := s.Get(key)
	return err == nil && v == "1"
}

// Exists reports whether key is present in either layer.
func (s *Settings) Exists(key string) bool {
	_, src := s.lookup(key)
	return src != SourceNone
}

// IsDefault reports whether key resolves from the default layer.
func (s *Settings) IsDefault(key string) bool {
	_, src := s.lookup(key)
	return src == SourceDefault
}

// Source reports which layer key resolves from.
func (s *Settings) Source(key string) Source {
	_, src := s.lookup(key)
	return src
}

// Keys returns the union of keys of both layers in sorted order.
func (s *Settings) Keys() []string {
	seen := make(map[string]struct{}, len(s.defaults)+len(s.overrides))
	for k := range s.defaults {
		seen[k] = struct{}{}
	}
	for k := range s.overrides {
		seen[k] = struct{}{}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns an independent copy of both layers.
func (s *Settings) Clone() *Settings {
	cp := &Settings{
		defaults:  make(map[string]string, len(s.defaults)),
		overrides: make(map[string]string, len(s.overrides)),
	}
	for k, v := range s.defaults {
		cp.defaults[k] = v
	}
	for k, v := range s.overrides {
		cp.overrides[k] = v
	}
	return cp
}

// Move transfers both layers to the returned settings and leaves s with two
// empty layers.
func (s *Settings) Move() *Settings {
	moved := &Settings{defaults: s.defaults, overrides: s.overrides}
	s.defaults = make(map[string]string)
	s.overrides = make(map[string]string)
	return moved
}
