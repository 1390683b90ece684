package agentlink

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agentlink.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func applyOptions(opts []Option) Config {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	return config
}

func TestLoadOptions(t *testing.T) {
	path := writeConfig(t, `
cliPath: /usr/local/bin/agent
cliArgs: ["--verbose"]
useStdio: false
port: 7100
protocol: acp
cwd: /srv/work
logLevel: debug
startTimeout: 20s
env:
  AGENT_HOME: /srv/agent
`)

	opts, err := LoadOptions(path)
	require.NoError(t, err)

	config := applyOptions(opts)
	assert.Equal(t, "/usr/local/bin/agent", config.CLIPath)
	assert.Equal(t, []string{"--verbose"}, config.CLIArgs)
	assert.False(t, config.UseStdio)
	assert.Equal(t, 7100, config.Port)
	assert.Equal(t, ProtocolACP, config.Protocol)
	assert.Equal(t, "/srv/work", config.Cwd)
	assert.Equal(t, "debug", config.LogLevel)
	assert.Equal(t, 20*time.Second, config.StartTimeout)
	assert.Equal(t, map[string]string{"AGENT_HOME": "/srv/agent"}, config.Env)
}

func TestLoadOptions_Defaults(t *testing.T) {
	path := writeConfig(t, `cliPath: myagent`)

	opts, err := LoadOptions(path)
	require.NoError(t, err)

	config := applyOptions(opts)
	assert.Equal(t, "myagent", config.CLIPath)
	assert.True(t, config.UseStdio)
	assert.Equal(t, ProtocolNative, config.Protocol)
	assert.Equal(t, 10*time.Second, config.StartTimeout)
}

func TestLoadOptions_EnvOverridesCLIPath(t *testing.T) {
	path := writeConfig(t, `cliPath: from-file`)
	t.Setenv(EnvCLIPath, "/opt/from-env")

	opts, err := LoadOptions(path)
	require.NoError(t, err)

	config := applyOptions(opts)
	assert.Equal(t, "/opt/from-env", config.CLIPath)
}

func TestLoadOptions_CLIURL(t *testing.T) {
	path := writeConfig(t, `cliUrl: "tcp://127.0.0.1:8042"`)

	opts, err := LoadOptions(path)
	require.NoError(t, err)

	config := applyOptions(opts)
	assert.Equal(t, "tcp://127.0.0.1:8042", config.CLIURL)
	assert.Empty(t, config.CLIPath)
	assert.False(t, config.UseStdio)
}

func TestLoadOptions_Errors(t *testing.T) {
	_, err := LoadOptions(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := writeConfig(t, "cliPath: [not, a, string")
	_, err = LoadOptions(path)
	require.Error(t, err)
}
