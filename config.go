package agentlink

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvCLIPath overrides the configured CLI path when set.
const EnvCLIPath = "AGENTLINK_CLI_PATH"

// fileConfig is the YAML shape accepted by LoadOptions.
type fileConfig struct {
	CLIPath      string            `yaml:"cliPath"`
	CLIArgs      []string          `yaml:"cliArgs"`
	CLIURL       string            `yaml:"cliUrl"`
	UseStdio     *bool             `yaml:"useStdio"`
	Port         int               `yaml:"port"`
	Protocol     string            `yaml:"protocol"`
	Cwd          string            `yaml:"cwd"`
	Env          map[string]string `yaml:"env"`
	LogLevel     string            `yaml:"logLevel"`
	StartTimeout string            `yaml:"startTimeout"`
}

// LoadOptions reads a YAML config file and returns the equivalent client
// options. The AGENTLINK_CLI_PATH environment variable, when set, wins
// over the file's cliPath.
func LoadOptions(path string) ([]Option, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if env := os.Getenv(EnvCLIPath); env != "" {
		fc.CLIPath = env
	}

	var opts []Option
	if fc.CLIPath != "" {
		opts = append(opts, WithCLIPath(fc.CLIPath))
	}
	if len(fc.CLIArgs) > 0 {
		opts = append(opts, WithCLIArgs(fc.CLIArgs...))
	}
	if fc.CLIURL != "" {
		opts = append(opts, WithCLIURL(fc.CLIURL))
	}
	if fc.UseStdio != nil {
		if *fc.UseStdio {
			opts = append(opts, WithStdio())
		} else {
			opts = append(opts, WithSocket(fc.Port))
		}
	} else if fc.Port != 0 {
		opts = append(opts, WithSocket(fc.Port))
	}
	if fc.Protocol != "" {
		opts = append(opts, WithProtocol(fc.Protocol))
	}
	if fc.Cwd != "" {
		opts = append(opts, WithCwd(fc.Cwd))
	}
	if len(fc.Env) > 0 {
		opts = append(opts, WithEnv(fc.Env))
	}
	if fc.LogLevel != "" {
		opts = append(opts, WithLogLevel(fc.LogLevel))
	}
	if fc.StartTimeout != "" {
		d, err := time.ParseDuration(fc.StartTimeout)
		if err != nil {
			return nil, fmt.Errorf("parse startTimeout %q: %w", fc.StartTimeout, err)
		}
		opts = append(opts, WithStartTimeout(d))
	}
	return opts, nil
}
