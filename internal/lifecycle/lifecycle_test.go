package lifecycle

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequire(t *testing.T) {
	tests := []struct {
		name    string
		current State
		want    State
		cause   error
	}{
		{"match", Initialized, Initialized, nil},
		{"before", Constructed, Initialized, ErrNotInitialized},
		{"manager attached before", ManagerAttached, Initialized, ErrNotInitialized},
		{"after", Initialized, ManagerAttached, ErrAlreadyInitialized},
		{"terminated", Terminated, Initialized, ErrTerminated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Require("frontend", "op", tt.current, tt.want)
			if tt.cause == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.cause)
			assert.True(t, IsStateError(err))
		})
	}
}

func TestStateErrorWrapped(t *testing.T) {
	err := fmt.Errorf("outer: %w", NewStateError("handle", "terminate", Constructed, ErrNotInitialized))

	var se *StateError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "handle", se.Component)
	assert.Equal(t, "terminate", se.Op)
	assert.Contains(t, err.Error(), "not initialized")
	assert.Contains(t, err.Error(), "constructed")
}

func TestStateErrorDetail(t *testing.T) {
	se := NewStateError("frontend", "init", Constructed, ErrNotReady)
	se.Detail = "memory manager"
	assert.Contains(t, se.Error(), "memory manager")
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "manager-attached", ManagerAttached.String())
	assert.Equal(t, "state(42)", State(42).String())
}
