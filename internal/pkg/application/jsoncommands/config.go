package jsoncommands

import (
	"io"

	"github.com/diwise/json-commands/internal/pkg/application/schema"
	yaml "gopkg.in/yaml.v2"
)

const DefaultMaxBodySize int64 = 10 * 1024 * 1024

type APIConfig struct {
	// LegacyErrorResponse selects the flat UserMessage/SystemMessage error format
	LegacyErrorResponse bool  `yaml:"legacyErrorResponse"`
	MaxBodySize         int64 `yaml:"maxBodySize"`
	// WriteRateLimit is the number of write requests per second, zero disables the limit
	WriteRateLimit float64 `yaml:"writeRateLimit"`
}

type NotificationConfig struct {
	Endpoint string `yaml:"endpoint"`
}

type Config struct {
	RecordTypes   []schema.RecordTypeDefinition `yaml:"recordTypes"`
	API           APIConfig                     `yaml:"api"`
	Notifications NotificationConfig            `yaml:"notifications"`
}

func LoadConfiguration(data io.Reader) (*Config, error) {

	buf, err := io.ReadAll(data)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	err = yaml.Unmarshal(buf, &cfg)
	if err != nil {
		return nil, err
	}

	if cfg.API.MaxBodySize <= 0 {
		cfg.API.MaxBodySize = DefaultMaxBodySize
	}

	return cfg, nil
}
