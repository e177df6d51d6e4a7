package exchange

import (
	"time"

	"github.com/goccy/go-yaml"
)

type Config struct {
	Log bool `yaml:"log"`

	// Timeout is the default bound on blocking calls [ms].
	Timeout int `yaml:"timeout"`
}

var DefaultConfig = Config{
	Log:     true,
	Timeout: 1000,
}

func (c *Config) UnmarshalYAML(b []byte) error {
	// Needed to break recursive calls into UnmarshalYAML
	type config Config

	def := config(DefaultConfig)

	if err := yaml.Unmarshal(b, &def); err != nil {
		return err
	}

	*c = Config(def)

	return nil
}

// Period returns Timeout as a time.Duration.
func (c *Config) Period() time.Duration {
	return time.Duration(c.Timeout) * time.Millisecond
}
