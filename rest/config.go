package rest

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the HTTP front-end configuration, loaded from environment
// variables with sensible defaults.
type Config struct {
	Port         int           `env:"NESBRIDGE_PORT" envDefault:"8080"`
	ReadTimeout  time.Duration `env:"NESBRIDGE_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout time.Duration `env:"NESBRIDGE_WRITE_TIMEOUT" envDefault:"10s"`

	// CommandTimeout bounds the wait on a single command's result;
	// BatchTimeout bounds batch commands, which do more work per drain.
	CommandTimeout time.Duration `env:"NESBRIDGE_COMMAND_TIMEOUT" envDefault:"2s"`
	BatchTimeout   time.Duration `env:"NESBRIDGE_BATCH_TIMEOUT" envDefault:"5s"`

	QueueCapacity int `env:"NESBRIDGE_QUEUE_CAPACITY" envDefault:"1000"`
	MaxPerDrain   int `env:"NESBRIDGE_MAX_PER_DRAIN" envDefault:"32"`
}

// ConfigFromEnv loads the configuration from the environment.
func ConfigFromEnv() (cfg Config, err error) {
	err = env.Parse(&cfg)
	return
}
