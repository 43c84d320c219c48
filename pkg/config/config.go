package config

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// EffectiveConfigResult is the merged view of file + env + flags handed to
// the app: the canonical config plus the resolved listen address, DB path
// and which source supplied them.
type EffectiveConfigResult struct {
	Config *Config
	Addr   string
	DBPath string
	Source string // flags|env|config|defaults
}

// Load reads and parses the YAML config file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ParseCommandFlags defines and parses command-line flags and returns their
// values along with a map indicating which flags were explicitly set.
func ParseCommandFlags() (addr string, dbPath string, cfgPath string, setFlags map[string]bool) {
	addrPtr := flag.String("addr", ":8080", "admin HTTP listen address")
	dbPtr := flag.String("db", "./.database", "Pebble DB path")
	cfgPtr := flag.String("config", "./config.yaml", "Path to config file")
	flag.Parse()
	setFlags = map[string]bool{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })
	return *addrPtr, *dbPtr, *cfgPtr, setFlags
}

// ResolveConfigPath decides the config file path using the flag-provided value
// and the environment variable `PRESSBOT_CONFIG` when the flag was not set.
func ResolveConfigPath(flagPath string, flagSet bool) string {
	if flagSet {
		return flagPath
	}
	if p := os.Getenv("PRESSBOT_CONFIG"); p != "" {
		return p
	}
	return flagPath
}

func parseList(v string) []string {
	if v == "" {
		return nil
	}
	var parts []string
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			parts = append(parts, s)
		}
	}
	return parts
}

// LoadEnvOverrides applies environment overrides onto the provided cfg and
// reports whether any env vars were used.
func LoadEnvOverrides(cfg *Config) bool {
	envUsed := false

	if v := os.Getenv("PRESSBOT_ADDR"); v != "" {
		envUsed = true
		if h, p, err := net.SplitHostPort(v); err == nil {
			cfg.Server.Address = h
			if pi, err := strconv.Atoi(p); err == nil {
				cfg.Server.Port = pi
			}
		} else {
			cfg.Server.Address = v
		}
	}
	if v := os.Getenv("PRESSBOT_DB_PATH"); v != "" {
		envUsed = true
		cfg.Storage.DBPath = v
	}
	if v := os.Getenv("PRESSBOT_TOKEN"); v != "" {
		envUsed = true
		cfg.Platform.Token = v
	}
	if v := os.Getenv("PRESSBOT_API_BASE"); v != "" {
		envUsed = true
		cfg.Platform.APIBase = v
	}
	if v := os.Getenv("PRESSBOT_GATEWAY_URL"); v != "" {
		envUsed = true
		cfg.Platform.GatewayURL = v
	}
	if v := os.Getenv("PRESSBOT_OFFLINE"); v != "" {
		envUsed = true
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes":
			cfg.Platform.Offline = true
		default:
			cfg.Platform.Offline = false
		}
	}
	if v := os.Getenv("PRESSBOT_RATE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			envUsed = true
			cfg.Platform.RateLimit.RPS = f
		}
	}
	if v := os.Getenv("PRESSBOT_RATE_BURST"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			envUsed = true
			cfg.Platform.RateLimit.Burst = n
		}
	}
	if v := os.Getenv("PRESSBOT_ADMIN_KEYS"); v != "" {
		envUsed = true
		cfg.Security.AdminKeys = parseList(v)
	}
	if v := os.Getenv("PRESSBOT_RECONCILE_CRON"); v != "" {
		envUsed = true
		cfg.Reconcile.SweepEnabled = true
		cfg.Reconcile.Cron = v
	}
	if c := os.Getenv("PRESSBOT_TLS_CERT"); c != "" {
		envUsed = true
		cfg.Server.TLS.CertFile = c
	}
	if k := os.Getenv("PRESSBOT_TLS_KEY"); k != "" {
		envUsed = true
		cfg.Server.TLS.KeyFile = k
	}
	if v := os.Getenv("PRESSBOT_LOG_LEVEL"); v != "" {
		envUsed = true
		cfg.Logging.Level = v
	}
	return envUsed
}

// LoadEffective loads config from the given path and applies env overrides
// and explicit flags (flags win over env, env over file). It never fails on
// a missing file; defaults apply instead.
func LoadEffective(cfgPath, addrFlag, dbFlag string, setFlags map[string]bool) EffectiveConfigResult {
	source := "defaults"
	cfg, err := Load(cfgPath)
	if err != nil {
		cfg = &Config{}
	} else {
		source = "config"
	}
	if LoadEnvOverrides(cfg) {
		source = "env"
	}

	addr := cfg.Addr()
	if setFlags["addr"] {
		addr = addrFlag
		source = "flags"
	}
	dbPath := cfg.Storage.DBPath
	if dbPath == "" || setFlags["db"] {
		dbPath = dbFlag
		if setFlags["db"] {
			source = "flags"
		}
	}
	return EffectiveConfigResult{Config: cfg, Addr: addr, DBPath: dbPath, Source: source}
}
