package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunFifoPlansNothing(t *testing.T) {
	out, _, err := execute(t, "run", "-n", "2")
	require.NoError(t, err)

	assert.Contains(t, out, "integrated backend basic")
	assert.Contains(t, out, "iteration 1 done: 0 schedule events, 0 device bytes in use")
	assert.Contains(t, out, "iteration 2 done: 0 schedule events, 0 device bytes in use")
}

func TestRunDependencySchedulerSwaps(t *testing.T) {
	out, errOut, err := execute(t, "run", "-n", "3", "-v", "--log-driver", "logrus",
		"--set", "scheduler=dependency")
	require.NoError(t, err)

	assert.Contains(t, out, "iteration 1 done: 2 schedule events")
	assert.Contains(t, out, "iteration 3 done: 2 schedule events, 0 device bytes in use")
	assert.Contains(t, errOut, "tensor swapped out")
	assert.Contains(t, errOut, "tensor swapped in")
}

func TestRunTimeTrigger(t *testing.T) {
	out, _, err := execute(t, "run", "-n", "2", "--set", "scheduler.trigger_event=time")
	require.NoError(t, err)
	assert.Contains(t, out, "iteration 2 done")
}

func TestRunRejectsBadSettings(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown scheduler", []string{"--set", "scheduler=lru"}, "unknown scheduler"},
		{"unknown trigger", []string{"--set", "scheduler.trigger_event=interrupt"}, "scheduler.trigger_event"},
		{"unknown scheme", []string{"--set", "path=ftp://x"}, "path"},
		{"no iterations", []string{"-n", "0"}, "--iterations"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, append([]string{"run"}, tt.args...)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRunWithTightCapacity(t *testing.T) {
	// Two tensors fit; the third allocation succeeds only after the executor
	// evicts a resident tensor.
	out, _, err := execute(t, "run", "-n", "1", "--capacity", "2048", "--tensor-size", "1024")
	require.NoError(t, err)
	assert.Contains(t, out, "iteration 1 done")
}
