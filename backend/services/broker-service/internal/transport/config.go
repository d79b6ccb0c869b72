package transport

// Configuration is what the tunnel needs to reach an endpoint: the protocol
// and its named parameters.
type Configuration struct {
	Protocol   string            `json:"protocol"`
	Parameters map[string]string `json:"parameters"`
}

// NewConfiguration returns an empty configuration for protocol.
func NewConfiguration(protocol string) *Configuration {
	return &Configuration{Protocol: protocol, Parameters: make(map[string]string)}
}

// SetParameter sets one parameter.
func (c *Configuration) SetParameter(name, value string) {
	c.Parameters[name] = value
}
