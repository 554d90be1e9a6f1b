package config

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the daemon configuration: the three collaborator backends,
// the durable-state location, and the RPC listen address.
type Config struct {
	AuthBaseURL string `yaml:"authBaseUrl"`
	DocsBaseURL string `yaml:"docsBaseUrl"`
	LinkBaseURL string `yaml:"linkBaseUrl"`
	DataDir     string `yaml:"dataDir"`
	StateSecret string `yaml:"stateSecret"`
	RPCAddr     string `yaml:"rpcAddr"`
}

func Default() Config {
	return Config{
		AuthBaseURL: "http://localhost:5000",
		DocsBaseURL: "http://localhost:5001",
		LinkBaseURL: "http://localhost:5143",
	}
}

type fileConfig struct {
	Daemon Config `yaml:"daemon"`
}

// LoadFromPath resolves the effective config: defaults, merged with
// the first readable yaml candidate, then env overrides. Unreadable
// or malformed files are skipped, never fatal.
func LoadFromPath(configPath string) Config {
	cfg := Default()

	candidates := make([]string, 0, 2)
	if configPath != "" {
		candidates = append(candidates, configPath)
	} else {
		candidates = append(candidates,
			"go-client/configs/config.yaml",
			"configs/config.yaml",
		)
	}

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var parsed fileConfig
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			continue
		}
		merged := cfg
		Merge(&merged, parsed.Daemon)
		ApplyEnvOverrides(&merged)
		return merged
	}

	ApplyEnvOverrides(&cfg)
	return cfg
}

func Merge(dst *Config, src Config) {
	if src.AuthBaseURL != "" {
		dst.AuthBaseURL = src.AuthBaseURL
	}
	if src.DocsBaseURL != "" {
		dst.DocsBaseURL = src.DocsBaseURL
	}
	if src.LinkBaseURL != "" {
		dst.LinkBaseURL = src.LinkBaseURL
	}
	if src.DataDir != "" {
		dst.DataDir = src.DataDir
	}
	if src.StateSecret != "" {
		dst.StateSecret = src.StateSecret
	}
	if src.RPCAddr != "" {
		dst.RPCAddr = src.RPCAddr
	}
}

func ApplyEnvOverrides(cfg *Config) {
	overrides := []struct {
		env string
		dst *string
	}{
		{"SIGNDESK_AUTH_BASE_URL", &cfg.AuthBaseURL},
		{"SIGNDESK_DOCS_BASE_URL", &cfg.DocsBaseURL},
		{"SIGNDESK_LINK_BASE_URL", &cfg.LinkBaseURL},
		{"SIGNDESK_DATA_DIR", &cfg.DataDir},
		{"SIGNDESK_STATE_SECRET", &cfg.StateSecret},
		{"SIGNDESK_RPC_ADDR", &cfg.RPCAddr},
	}
	for _, o := range overrides {
		if v := strings.TrimSpace(os.Getenv(o.env)); v != "" {
			*o.dst = v
		}
	}
}
