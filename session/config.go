package session

import (
	"os"

	"github.com/go-kit/log"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"
	"www.velocidex.com/golang/vgroup/types"
)

type Config struct {
	// Commands may not create more groups than this.
	GroupLimit int `yaml:"group_limit"`

	// Maximum number of (group, term) cells a bootstrap may buffer.
	BootstrapBufferLimit int `yaml:"bootstrap_buffer_limit"`

	// Issue remote calls to the datasets concurrently.
	ParallelSessions bool `yaml:"parallel_sessions"`

	Logger     log.Logger            `yaml:"-"`
	Registerer prometheus.Registerer `yaml:"-"`
	Explainer  types.Explainer       `yaml:"-"`
}

func DefaultConfig() Config {
	return Config{
		GroupLimit:           1000000,
		BootstrapBufferLimit: 10000000,
		ParallelSessions:     true,
	}
}

// Fields missing from data keep their defaults.
func ParseConfig(data []byte) (Config, error) {
	result := DefaultConfig()
	err := yaml.Unmarshal(data, &result)
	if err != nil {
		return Config{}, errors.Wrap(err, "parse config")
	}

	if result.GroupLimit <= 0 {
		return Config{}, errors.Errorf("group_limit must be positive, not %d", result.GroupLimit)
	}
	if result.BootstrapBufferLimit <= 0 {
		return Config{}, errors.Errorf(
			"bootstrap_buffer_limit must be positive, not %d", result.BootstrapBufferLimit)
	}
	return result, nil
}

func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "read config %v", path)
	}
	return ParseConfig(data)
}
