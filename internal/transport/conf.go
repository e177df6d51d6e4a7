package transport

import (
	"github.com/goccy/go-yaml"
)

type Config struct {
	Log bool `yaml:"log"`

	// Family is the netlink protocol (e.g. 11 for NETLINK_CONNECTOR).
	Family int `yaml:"family"`

	// Groups is the bitmask of multicast groups to join.
	Groups uint32 `yaml:"groups"`

	// ReceiveBufferSize and SendBufferSize size the buffers datagrams are
	// read into and serialized into [B].
	ReceiveBufferSize int `yaml:"receiveBufferSize"`
	SendBufferSize    int `yaml:"sendBufferSize"`

	// SocketBufferSize overrides the kernel's SO_RCVBUF if non-zero [B].
	SocketBufferSize int `yaml:"socketBufferSize"`
}

var DefaultConfig = Config{
	Log:               true,
	Family:            11,
	Groups:            0,
	ReceiveBufferSize: 8192,
	SendBufferSize:    4096,
	SocketBufferSize:  0,
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
