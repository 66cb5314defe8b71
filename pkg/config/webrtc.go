package config

// Bridge configures the pion-based voice links.
type Bridge struct {
	DisableDefaultInterceptors bool
	IceServers                 []IceServer
	IcePorts                   struct {
		Min uint16
		Max uint16
	}
	IceIpMap string
	// LogLevel is the zerolog level for pion internals.
	LogLevel int `default:"1"`
}

type IceServer struct {
	Urls       string `json:"urls,omitempty"`
	Username   string `json:"username,omitempty"`
	Credential string `json:"credential,omitempty"`
}

func (b *Bridge) HasPortRange() bool { return b.IcePorts.Min > 0 && b.IcePorts.Max > 0 }
func (b *Bridge) HasIceIpMap() bool  { return b.IceIpMap != "" }
