package config

import (
	"os"
	"testing"
	"time"
)

func TestConfigDefaults(t *testing.T) {
	var out RelayConfig
	if err := LoadConfigEnv(&out); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{name: "resume timeout", got: out.Session.ResumeTimeout, want: 60 * time.Second},
		{name: "update interval", got: out.Session.UpdateInterval, want: 5 * time.Second},
		{name: "unbounded pending", got: out.Session.MaxPending, want: 0},
		{name: "server address", got: out.Relay.Server.Address, want: ":2333"},
		{name: "stats", got: out.Relay.StatsInterval, want: time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%v != %v", tt.got, tt.want)
			}
		})
	}
}

func TestConfigEnv(t *testing.T) {
	var out RelayConfig

	_ = os.Setenv("RELAY_SESSION_RESUMETIMEOUT", "5s")
	_ = os.Setenv("RELAY_SESSION_MAXPENDING", "100")
	_ = os.Setenv("RELAY_RELAY_PASSWORD", "youshallnotpass")
	defer func() { _ = os.Unsetenv("RELAY_SESSION_RESUMETIMEOUT") }()
	defer func() { _ = os.Unsetenv("RELAY_SESSION_MAXPENDING") }()
	defer func() { _ = os.Unsetenv("RELAY_RELAY_PASSWORD") }()

	if err := LoadConfigEnv(&out); err != nil {
		t.Fatal(err)
	}

	if out.Session.ResumeTimeout != 5*time.Second {
		t.Errorf("%v is not 5s", out.Session.ResumeTimeout)
	}
	if out.Session.MaxPending != 100 {
		t.Errorf("%v is not 100", out.Session.MaxPending)
	}
	if out.Relay.Password != "youshallnotpass" {
		t.Errorf("wrong password %v", out.Relay.Password)
	}
}
