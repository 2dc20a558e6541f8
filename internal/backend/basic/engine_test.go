package basic

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seantiz/mori/internal/backend"
	"github.com/seantiz/mori/internal/config"
	"github.com/seantiz/mori/internal/lifecycle"
	"github.com/seantiz/mori/internal/model"
	"github.com/seantiz/mori/internal/status"
)

func newEngine(t *testing.T, overrides map[string]string) *Engine {
	t.Helper()
	s := config.NewSettings()
	s.Merge(overrides)
	e, err := New(s)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func operator(name string) model.OperatorStatus {
	return model.NewOperatorStatus(name, nil, nil, model.NewTensorStatus("t", 1024, model.MemoryInOut))
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig(config.NewSettings())
	assert.Equal(t, "fifo", cfg.Scheduler)
	assert.Equal(t, ":memory:", cfg.EventsDSN)
}

func TestNewUnknownScheduler(t *testing.T) {
	s := config.NewSettings()
	s.Set(config.KeyScheduler, "belady")

	_, err := New(s)
	assert.ErrorIs(t, err, config.ErrInvalid)

	eng, err := Entry(s)
	assert.Error(t, err)
	assert.Nil(t, eng, "a failed entry must return an untyped nil engine")
}

func TestRequiresInit(t *testing.T) {
	e := newEngine(t, nil)

	assert.ErrorIs(t, e.RegisterOperator(operator("o1")), lifecycle.ErrNotInitialized)
	assert.ErrorIs(t, e.SubmitEvent(model.NewMemoryEvent("o1", "t", model.EventAllocate)), lifecycle.ErrNotInitialized)
	assert.ErrorIs(t, e.UnregisterOperator("o1"), lifecycle.ErrNotInitialized)

	require.NoError(t, e.Init())
	assert.ErrorIs(t, e.Init(), lifecycle.ErrAlreadyInitialized)
}

func TestOperatorBookkeeping(t *testing.T) {
	e := newEngine(t, nil)
	require.NoError(t, e.Init())

	require.NoError(t, e.RegisterOperator(operator("o1")))
	require.NoError(t, e.RegisterOperator(operator("o2")))
	assert.ErrorIs(t, e.RegisterOperator(operator("o1")), status.ErrAlreadyRegistered)
	assert.Equal(t, []string{"o1", "o2"}, e.Operators())

	require.NoError(t, e.UnregisterOperator("o1"))
	assert.ErrorIs(t, e.UnregisterOperator("o1"), status.ErrNotRegistered)
	assert.Equal(t, []string{"o2"}, e.Operators())
}

func TestEventsRecordedPerIteration(t *testing.T) {
	e := newEngine(t, nil)
	require.NoError(t, e.Init())
	require.NoError(t, e.RegisterOperator(operator("o1")))

	require.NoError(t, e.SubmitEvent(model.NewMemoryEvent("o1", "t", model.EventAllocate)))
	require.NoError(t, e.SubmitEvent(model.NewMemoryEvent("o1", "t", model.EventWrite)))

	n, err := e.IncreaseIteration()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, e.Iteration())

	require.NoError(t, e.SubmitEvent(model.NewMemoryEvent("o1", "t", model.EventRead)))

	ctx := context.Background()
	first, err := e.Events().Events(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, first, 2)

	second, err := e.Events().Events(ctx, 1)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, model.EventRead, second[0].Type)
}

func TestDependencySchedulerPlansAcrossIterations(t *testing.T) {
	e := newEngine(t, map[string]string{config.KeyScheduler: "dependency"})
	require.NoError(t, e.Init())
	for _, name := range []string{"o1", "o2", "o3"} {
		require.NoError(t, e.RegisterOperator(operator(name)))
	}

	trace := []struct {
		op  string
		typ model.MemoryEventType
	}{
		{"o1", model.EventAllocate}, {"o1", model.EventWrite},
		{"o2", model.EventAllocate}, {"o2", model.EventWrite},
		{"o3", model.EventAllocate}, {"o3", model.EventWrite},
		{"o3", model.EventRead}, {"o3", model.EventFree},
		{"o2", model.EventRead}, {"o2", model.EventFree},
		{"o1", model.EventRead}, {"o1", model.EventFree},
	}
	for _, step := range trace {
		require.NoError(t, e.SubmitEvent(model.NewMemoryEvent(step.op, "t", step.typ)))
	}

	events, err := e.ScheduleEvents()
	require.NoError(t, err)
	assert.Empty(t, events)

	_, err = e.IncreaseIteration()
	require.NoError(t, err)

	events, err = e.ScheduleEvents()
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, model.ScheduleSwapOut, events[0].Type)
	assert.Equal(t, model.ScheduleSwapIn, events[1].Type)
}

func TestTerminate(t *testing.T) {
	e := newEngine(t, nil)
	require.NoError(t, e.Terminate(), "terminating an uninitialized engine does nothing")

	require.NoError(t, e.Init())
	require.NoError(t, e.Terminate())
	assert.ErrorIs(t, e.SubmitEvent(model.NewMemoryEvent("o1", "t", model.EventRead)), lifecycle.ErrTerminated)
	require.NoError(t, e.Terminate())
}

func TestEntryThroughHandle(t *testing.T) {
	mod := &module{symbols: map[string]any{backend.EntrySymbol: Entry}}
	opener := backend.OpenerFunc(func(string) (backend.Module, error) { return mod, nil })

	s := config.NewSettings()
	s.Set(config.KeyPath, "dylib://libmori-basic.so")
	h, err := backend.NewHandle(s, backend.WithOpener(opener))
	require.NoError(t, err)

	require.NoError(t, h.Initialize())
	require.NoError(t, h.RegisterOperator(operator("o1")))
	require.NoError(t, h.SubmitEvent(model.NewMemoryEvent("o1", "t", model.EventAllocate)))
	require.NoError(t, h.Terminate())
	require.NoError(t, h.Release())
	assert.True(t, mod.closed)
}

type module struct {
	symbols map[string]any
	closed  bool
}

func (m *module) Lookup(symbol string) (any, error) { return m.symbols[symbol], nil }
func (m *module) Close() error {
	m.closed = true
	return nil
}

func TestMetrics(t *testing.T) {
	e := newEngine(t, nil)
	require.NoError(t, e.Init())
	require.NoError(t, e.SubmitEvent(model.NewMemoryEvent("o1", "t", model.EventAccess)))

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	var events *dto.MetricFamily
	found := make(map[string]bool)
	for _, fam := range families {
		found[fam.GetName()] = true
		if fam.GetName() == "mori_basic_events_total" {
			events = fam
		}
	}
	assert.True(t, found["mori_basic_operators_registered"])
	require.NotNil(t, events)

	var access float64
	for _, m := range events.GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == "type" && lp.GetValue() == "access" {
				access = m.GetCounter().GetValue()
			}
		}
	}
	assert.GreaterOrEqual(t, access, float64(1))
}
