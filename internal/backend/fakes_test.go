package backend

import (
	"errors"
	"testing"
	"time"

	"github.com/seantiz/mori/internal/config"
	"github.com/seantiz/mori/internal/model"
)

const (
	defaultWait = 2 * time.Second
	defaultTick = 10 * time.Millisecond
)

// recorder collects teardown calls across fakes so tests can check order.
type recorder struct {
	calls []string
}

func (r *recorder) add(call string) { r.calls = append(r.calls, call) }

type fakeEngine struct {
	rec       *recorder
	settings  *config.Settings
	inits     int
	terms     int
	ops       []string
	events    []model.MemoryEvent
	schedule  []model.ScheduleEvent
	iteration int

	initErr     error
	registerErr error
	termErr     error
	closeErr    error
}

func (e *fakeEngine) Init() error {
	e.inits++
	return e.initErr
}

func (e *fakeEngine) RegisterOperator(op model.OperatorStatus) error {
	if e.registerErr != nil {
		return e.registerErr
	}
	e.ops = append(e.ops, op.Name)
	return nil
}

func (e *fakeEngine) SubmitEvent(ev model.MemoryEvent) error {
	e.events = append(e.events, ev)
	return nil
}

func (e *fakeEngine) ScheduleEvents() ([]model.ScheduleEvent, error) {
	return e.schedule, nil
}

func (e *fakeEngine) UnregisterOperator(name string) error {
	for i, n := range e.ops {
		if n == name {
			e.ops = append(e.ops[:i], e.ops[i+1:]...)
			return nil
		}
	}
	return errors.New("operator not registered")
}

func (e *fakeEngine) Terminate() error {
	e.terms++
	return e.termErr
}

func (e *fakeEngine) Iteration() int { return e.iteration }

func (e *fakeEngine) IncreaseIteration() (int, error) {
	e.iteration++
	return e.iteration, nil
}

func (e *fakeEngine) Close() error {
	if e.rec != nil {
		e.rec.add("engine.close")
	}
	return e.closeErr
}

type fakeModule struct {
	rec      *recorder
	symbols  map[string]any
	closed   int
	closeErr error
}

func (m *fakeModule) Lookup(symbol string) (any, error) {
	sym, ok := m.symbols[symbol]
	if !ok {
		return nil, errors.New("symbol " + symbol + " not found")
	}
	return sym, nil
}

func (m *fakeModule) Close() error {
	m.closed++
	if m.rec != nil {
		m.rec.add("module.close")
	}
	return m.closeErr
}

// fakeOpener serves one module and remembers the paths it was asked for.
type fakeOpener struct {
	mod     *fakeModule
	openErr error
	paths   []string
}

func (o *fakeOpener) Open(path string) (Module, error) {
	o.paths = append(o.paths, path)
	if o.openErr != nil {
		return nil, o.openErr
	}
	return o.mod, nil
}

// pluginWith returns an opener whose module exports entry as BackendEntry.
func pluginWith(rec *recorder, entry any) *fakeOpener {
	return &fakeOpener{mod: &fakeModule{rec: rec, symbols: map[string]any{EntrySymbol: entry}}}
}

func engineEntry(e *fakeEngine) func(*config.Settings) (Engine, error) {
	return func(s *config.Settings) (Engine, error) {
		e.settings = s
		return e, nil
	}
}

func dylibSettings(path string) *config.Settings {
	s := config.NewSettings()
	s.Set(config.KeyPath, path)
	return s
}

// withIntegrated swaps the compiled-in engine for the duration of a test.
func withIntegrated(t *testing.T, name string, entry Entry) {
	t.Helper()
	integrated.mu.Lock()
	prevName, prevEntry := integrated.name, integrated.entry
	integrated.name, integrated.entry = name, entry
	integrated.mu.Unlock()

	t.Cleanup(func() {
		integrated.mu.Lock()
		integrated.name, integrated.entry = prevName, prevEntry
		integrated.mu.Unlock()
	})
}

type flushLogger struct {
	infos   []string
	flushes int
}

func (l *flushLogger) Debug(string, ...any) {}
func (l *flushLogger) Info(msg string, args ...any) {
	l.infos = append(l.infos, msg)
}
func (l *flushLogger) Warn(string, ...any)  {}
func (l *flushLogger) Error(string, ...any) {}
func (l *flushLogger) Flush() error {
	l.flushes++
	return nil
}
