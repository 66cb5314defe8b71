package config

import (
	"time"

	flag "github.com/spf13/pflag"
)

type RelayConfig struct {
	Relay      Relay
	Session    Session
	Bridge     Bridge
	Monitoring Monitoring
}

type Relay struct {
	Debug bool
	// Password is the shared secret clients put into
	// the Authorization header, empty disables the check.
	Password string
	Server   Server
	// how often every connected client gets the node stats
	StatsInterval time.Duration `default:"60s"`
}

// Session holds the per-client session defaults.
type Session struct {
	// ResumeTimeout is the default time a disconnected
	// session waits for a resume before it's destroyed.
	ResumeTimeout time.Duration `default:"60s"`
	// UpdateInterval is the player state broadcast period.
	UpdateInterval time.Duration `default:"5s"`
	// MaxPending limits the number of messages buffered
	// while a session is paused, 0 means no limit.
	// When full, the oldest messages are dropped.
	MaxPending int
	// SendQueue limits the socket outbound queue, 0 means no limit.
	SendQueue int `default:"4096"`
}

// allows custom config path
var configPath string

func NewRelayConfig() (conf RelayConfig, err error) {
	err = LoadConfig(&conf, configPath)
	return
}

// ParseFlags overrides the config with the command line flags.
// A custom config path makes it reload the config first.
func (c *RelayConfig) ParseFlags() error {
	c.Relay.Server.WithFlags()
	flag.BoolVar(&c.Relay.Debug, "debug", c.Relay.Debug, "Enable debug logging")
	flag.IntVar(&c.Monitoring.Port, "monitoring.port", c.Monitoring.Port, "Monitoring server port")
	flag.StringVar(&configPath, "conf", configPath, "Directory with a custom config.yaml")
	flag.Parse()
	if configPath == "" {
		return nil
	}
	if err := LoadConfig(c, configPath); err != nil {
		return err
	}
	// flags win over the file
	flag.Parse()
	return nil
}
