package status

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seantiz/mori/internal/model"
)

func op(name string, prevs, posts []string) model.OperatorStatus {
	return model.NewOperatorStatus(name, prevs, posts,
		model.NewTensorStatus("t", 1024, model.MemoryInOut))
}

func TestRegisterKeepsExecutionOrder(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.Register(op("o2", nil, nil)))
	require.NoError(t, tbl.Register(op("o1", nil, nil)))
	require.NoError(t, tbl.Register(op("o3", nil, nil)))

	assert.Equal(t, []string{"o2", "o1", "o3"}, tbl.Order())
	assert.Equal(t, []string{"o1", "o2", "o3"}, tbl.Names())
	assert.Equal(t, 3, tbl.Len())
}

func TestRegisterDuplicate(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.Register(op("o1", nil, nil)))

	err := tbl.Register(op("o1", nil, nil))
	assert.ErrorIs(t, err, ErrAlreadyRegistered)
	assert.Equal(t, 1, tbl.Len())
}

func TestRegisterThenUnregisterRestoresTable(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.Register(op("o1", nil, []string{"o2"})))
	before := tbl.Snapshot()

	require.NoError(t, tbl.Register(op("o2", []string{"o1"}, nil)))
	require.NoError(t, tbl.Unregister("o2"))

	assert.Equal(t, before, tbl.Snapshot())
	assert.Equal(t, []string{"o1"}, tbl.Order())
	assert.False(t, tbl.IsRegistered("o2"))
}

func TestUnregisterUnknown(t *testing.T) {
	tbl := NewTable()
	assert.ErrorIs(t, tbl.Unregister("ghost"), ErrNotRegistered)
}

func TestDataStatus(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.Register(op("o1", nil, nil)))

	s, err := tbl.DataStatus("o1", "t")
	require.NoError(t, err)
	assert.Equal(t, model.StatusNone, s)

	require.NoError(t, tbl.SetDataStatus("o1", "t", model.StatusDevice))
	s, err = tbl.DataStatus("o1", "t")
	require.NoError(t, err)
	assert.Equal(t, model.StatusDevice, s)

	_, err = tbl.DataStatus("o1", "missing")
	assert.ErrorIs(t, err, ErrNotRegistered)
	assert.ErrorIs(t, tbl.SetDataStatus("ghost", "t", model.StatusHost), ErrNotRegistered)
}

func TestOperatorReturnsCopy(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.Register(op("o1", nil, nil)))

	got, err := tbl.Operator("o1")
	require.NoError(t, err)
	got.Tensors["t"].Status = model.StatusHost

	s, _ := tbl.DataStatus("o1", "t")
	assert.Equal(t, model.StatusNone, s, "callers must not mutate the table through a returned copy")
}

func TestRegisterStoresCopy(t *testing.T) {
	tbl := NewTable()
	o := op("o1", nil, nil)
	require.NoError(t, tbl.Register(o))

	o.Tensors["t"].Status = model.StatusDevice
	s, _ := tbl.DataStatus("o1", "t")
	assert.Equal(t, model.StatusNone, s)
}

func TestConcurrentReaders(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.Register(op("o1", nil, nil)))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = tbl.Snapshot()
				_ = tbl.SetDataStatus("o1", "t", model.StatusDevice)
			}
		}()
	}
	wg.Wait()
}
