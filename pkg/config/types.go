package config

import "fmt"

// Config is the main configuration struct.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Platform  PlatformConfig  `yaml:"platform"`
	Assets    []AssetConfig   `yaml:"assets"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Security  SecurityConfig  `yaml:"security"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds admin HTTP server settings.
type ServerConfig struct {
	Address string    `yaml:"address"`
	Port    int       `yaml:"port"`
	TLS     TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate configuration.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// StorageConfig holds the binding database location.
type StorageConfig struct {
	DBPath string `yaml:"db_path"`
}

// PlatformConfig holds credentials and endpoints for the message platform.
type PlatformConfig struct {
	APIBase    string          `yaml:"api_base"`
	GatewayURL string          `yaml:"gateway_url"`
	Token      string          `yaml:"token"`
	RateLimit  RateLimitConfig `yaml:"rate_limit"`
	// Offline swaps the REST client for the in-memory one; used for local
	// development without platform credentials.
	Offline bool `yaml:"offline"`
}

// RateLimitConfig bounds outbound platform REST calls.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// AssetConfig describes one pressable variant on the control: the button
// shown in the channel and the attachment delivered when it is pressed.
// Name doubles as the stat counter key for the variant.
type AssetConfig struct {
	Name  string `yaml:"name"`
	Label string `yaml:"label"`
	Style string `yaml:"style"` // primary|danger|secondary
	File  string `yaml:"file"`
}

// ReconcileConfig controls the periodic integrity sweep. The startup pass
// always runs; the cron sweep is optional.
type ReconcileConfig struct {
	SweepEnabled bool   `yaml:"sweep_enabled"`
	Cron         string `yaml:"cron"`
}

// SecurityConfig holds admin API access settings.
type SecurityConfig struct {
	AdminKeys []string        `yaml:"admin_keys"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Addr returns host:port for the admin HTTP server.
func (c *Config) Addr() string {
	addr := c.Server.Address
	if addr == "" {
		addr = "0.0.0.0"
	}
	p := c.Server.Port
	if p == 0 {
		p = 8080
	}
	return fmt.Sprintf("%s:%d", addr, p)
}

// CounterNames returns the stat counter key of every configured asset.
func (c *Config) CounterNames() []string {
	out := make([]string, 0, len(c.Assets))
	for _, a := range c.Assets {
		out = append(out, a.Name)
	}
	return out
}

// Asset returns the asset config with the given name, if any.
func (c *Config) Asset(name string) (AssetConfig, bool) {
	for _, a := range c.Assets {
		if a.Name == name {
			return a, true
		}
	}
	return AssetConfig{}, false
}

// Validate checks invariants that would otherwise surface as runtime faults.
func (c *Config) Validate() error {
	if len(c.Assets) == 0 {
		return fmt.Errorf("at least one asset must be configured")
	}
	seen := map[string]struct{}{}
	for _, a := range c.Assets {
		if a.Name == "" {
			return fmt.Errorf("asset name must not be empty")
		}
		if _, dup := seen[a.Name]; dup {
			return fmt.Errorf("duplicate asset name %q", a.Name)
		}
		seen[a.Name] = struct{}{}
	}
	if !c.Platform.Offline && c.Platform.Token == "" {
		return fmt.Errorf("platform.token is required (or set platform.offline for local runs)")
	}
	return nil
}
