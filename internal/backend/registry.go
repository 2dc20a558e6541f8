package backend

import (
	"fmt"
	"strings"
	"sync"

	"github.com/seantiz/mori/internal/config"
	"github.com/seantiz/mori/internal/logging"
)

// Recognized path schemes, matched in this order.
const (
	SchemeIntegrated = "int://"
	SchemeDylib      = "dylib://"
)

// reservedSchemes name remote backends that are not implemented.
var reservedSchemes = []string{"http://", "https://", "unix://", "shm://"}

var schemes = []struct {
	prefix string
	kind   Kind
}{
	{SchemeIntegrated, KindIntegrated},
	{SchemeDylib, KindDylib},
}

// SchemeInfo describes one path scheme.
type SchemeInfo struct {
	Scheme    string `json:"scheme"`
	Kind      string `json:"kind,omitempty"`
	Supported bool   `json:"supported"`
}

// Schemes lists the recognized schemes in match order, followed by the
// reserved ones. The integrated scheme is only supported when an engine has
// been compiled in.
func Schemes() []SchemeInfo {
	_, hasIntegrated := Integrated()
	out := make([]SchemeInfo, 0, len(schemes)+len(reservedSchemes))
	for _, s := range schemes {
		out = append(out, SchemeInfo{
			Scheme:    s.prefix,
			Kind:      s.kind.String(),
			Supported: s.kind != KindIntegrated || hasIntegrated,
		})
	}
	for _, r := range reservedSchemes {
		out = append(out, SchemeInfo{Scheme: r})
	}
	return out
}

var integrated struct {
	mu    sync.RWMutex
	name  string
	entry Entry
}

// RegisterIntegrated compiles an engine into the binary. A build embeds at
// most one, so a second registration panics.
func RegisterIntegrated(name string, entry Entry) {
	integrated.mu.Lock()
	defer integrated.mu.Unlock()
	if entry == nil {
		panic("backend: RegisterIntegrated with nil entry")
	}
	if integrated.entry != nil {
		panic(fmt.Sprintf("backend: RegisterIntegrated called for %q, %q already registered", name, integrated.name))
	}
	integrated.name = name
	integrated.entry = entry
}

// Integrated returns the name of the compiled-in engine, if any.
func Integrated() (string, bool) {
	integrated.mu.RLock()
	defer integrated.mu.RUnlock()
	return integrated.name, integrated.entry != nil
}

type options struct {
	opener Opener
	logger logging.Logger
}

// Option configures NewHandle.
type Option func(*options)

// WithOpener sets how dylib modules are opened. The default opens Go plugins.
func WithOpener(o Opener) Option {
	return func(opts *options) { opts.opener = o }
}

// WithLogger sets the handle's logger.
func WithLogger(l logging.Logger) Option {
	return func(opts *options) { opts.logger = l }
}

// NewHandle resolves the path setting and builds exactly one handle. The
// engine receives its own copy of the settings.
func NewHandle(s *config.Settings, opts ...Option) (*Handle, error) {
	o := options{opener: PluginOpener}
	for _, opt := range opts {
		opt(&o)
	}

	path, err := s.Get(config.KeyPath)
	if err != nil {
		return nil, err
	}

	for _, sc := range schemes {
		if !strings.HasPrefix(path, sc.prefix) {
			continue
		}
		var (
			h   *Handle
			err error
		)
		switch sc.kind {
		case KindIntegrated:
			h, err = newIntegrated(s, o)
		case KindDylib:
			h, err = newDylib(strings.TrimPrefix(path, sc.prefix), s, o)
		}
		if err != nil {
			pluginLoads.WithLabelValues(sc.kind.String(), resultFailure).Inc()
			return nil, err
		}
		pluginLoads.WithLabelValues(sc.kind.String(), resultSuccess).Inc()
		return h, nil
	}

	for _, r := range reservedSchemes {
		if strings.HasPrefix(path, r) {
			return nil, config.InvalidError(config.KeyPath, fmt.Sprintf("scheme %q is reserved and not implemented", r))
		}
	}
	return nil, config.InvalidError(config.KeyPath, fmt.Sprintf("unrecognized scheme in %q", path))
}

func newIntegrated(s *config.Settings, o options) (*Handle, error) {
	integrated.mu.RLock()
	name, entry := integrated.name, integrated.entry
	integrated.mu.RUnlock()

	if entry == nil {
		return nil, config.InvalidError(config.KeyPath, "this build has no integrated engine")
	}

	engine, err := entry(s.Clone())
	if err != nil {
		return nil, &ConstructionError{Name: name, Err: err}
	}
	if engine == nil {
		return nil, &ConstructionError{Name: name, Err: fmt.Errorf("entry returned no engine")}
	}
	return newHandle(KindIntegrated, name, &instance{engine: engine}, o.logger), nil
}

func newDylib(path string, s *config.Settings, o options) (*Handle, error) {
	inst, err := loadDylib(o.opener, path, s.Clone())
	if err != nil {
		return nil, err
	}
	return newHandle(KindDylib, path, inst, o.logger), nil
}
