package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv keeps the process environment out of settings resolution.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"MORI_LOG_LEVEL", "MORI_LOG_FORMAT", "MORI_METRICS_ADDR", "MORI_SETTINGS_FILE", "MORI_BACKEND_PATH"} {
		t.Setenv(k, "")
	}
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	clearEnv(t)
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "mori", cmd.Use)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"run", "settings", "backends"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err, "Command %s should exist", name)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)
	assert.Equal(t, "false", verbose.DefValue)

	driver := cmd.PersistentFlags().Lookup("log-driver")
	require.NotNil(t, driver)
	assert.Equal(t, "slog", driver.DefValue)

	require.NotNil(t, cmd.PersistentFlags().Lookup("settings"))
	require.NotNil(t, cmd.PersistentFlags().Lookup("set"))
}

func TestRunCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	run, _, err := cmd.Find([]string{"run"})
	require.NoError(t, err)

	iterations := run.Flags().Lookup("iterations")
	require.NotNil(t, iterations)
	assert.Equal(t, "n", iterations.Shorthand)
	assert.Equal(t, "2", iterations.DefValue)

	assert.Equal(t, "0", run.Flags().Lookup("capacity").DefValue)
	assert.Equal(t, "1024", run.Flags().Lookup("tensor-size").DefValue)
	assert.Equal(t, "", run.Flags().Lookup("metrics-addr").DefValue)
}

func TestInvalidLogDriver(t *testing.T) {
	_, _, err := execute(t, "settings", "--log-driver", "zap")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log driver")
}

func TestInvalidSetFlag(t *testing.T) {
	_, _, err := execute(t, "settings", "--set", "scheduler")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "want key=value")
}

func TestLogrusLevel(t *testing.T) {
	opts := &RootOptions{Verbose: true, LogDriver: "logrus"}
	var buf bytes.Buffer
	l := opts.newLogger(&buf, configForTest())
	l.Debug("hello", "operator", "o1")
	require.NoError(t, l.Flush())
	assert.Contains(t, buf.String(), "hello")
	assert.Contains(t, buf.String(), "o1")
}
