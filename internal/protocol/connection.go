// internal/protocol/connection.go
package protocol

import "time"

// TCPConfig represents network serial bridge settings
type TCPConfig struct {
	DialTimeout  time.Duration `json:"dial_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	KeepAlive    time.Duration `json:"keep_alive"`
	// InsecureSkipVerify disables certificate checks for tls:// ports
	InsecureSkipVerify bool `json:"insecure_skip_verify"`
}

// DefaultTCPConfig returns the settings used when none are configured
func DefaultTCPConfig() TCPConfig {
	return TCPConfig{
		DialTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		KeepAlive:    30 * time.Second,
	}
}

func (c TCPConfig) withDefaults() TCPConfig {
	d := DefaultTCPConfig()
	if c.DialTimeout <= 0 {
		c.DialTimeout = d.DialTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.KeepAlive == 0 {
		c.KeepAlive = d.KeepAlive
	}
	return c
}
