package main

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/scitags/flowd-nl/exchange"
	"github.com/scitags/flowd-nl/internal/transport"
	"github.com/scitags/flowd-nl/metrics"
)

type Config struct {
	Exchange  *exchange.Config  `yaml:"exchange"`
	Transport *transport.Config `yaml:"transport"`
	Metrics   *metrics.Config   `yaml:"metrics"`
}

func (c Config) String() string {
	m, err := yaml.MarshalWithOptions(c, yaml.Indent(2), yaml.IndentSequence(true))
	if err != nil {
		return "marshalling error..."
	}
	return string(m)
}

func (c *Config) UnmarshalYAML(b []byte) error {
	// Needed to break recursive calls into UnmarshalYAML
	type config Config

	def := &config{}

	if err := yaml.Unmarshal(b, def); err != nil {
		return err
	}

	// Sections left out get their defaults, bar metrics which are opt-in
	if def.Exchange == nil {
		ec := exchange.DefaultConfig
		def.Exchange = &ec
	}
	if def.Transport == nil {
		tc := transport.DefaultConfig
		def.Transport = &tc
	}

	*c = Config(*def)

	return nil
}

// ReadConf parses the configuration at path. An empty path yields the
// defaults.
func ReadConf(path string) (*Config, error) {
	r := []byte("{}")
	if path != "" {
		var err error
		if r, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("error reading the configuration file: %w", err)
		}
	}

	conf := Config{}
	if err := yaml.Unmarshal(r, &conf); err != nil {
		return nil, fmt.Errorf("error unmarshaling the configuration: %w", err)
	}

	return &conf, nil
}
