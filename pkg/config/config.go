// Package config loads configuration for both binaries from an optional
// YAML file, layered with environment variables, following the loading
// idiom of codeready-toolchain-tarsy's pkg/config/loader.go (built-in
// defaults merged with an optional user file via dario.cat/mergo, then
// overridden by environment variables).
package config

import (
	"os"
	"strconv"
	"strings"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// GovernorConfig configures the Memory Governor binary. Field names and
// defaults are pinned against original_source/memory_governor/config.py.
type GovernorConfig struct {
	BindHost string `yaml:"bind_host"`
	Port     int    `yaml:"port"`

	IngestURL         string `yaml:"ingest_url"`
	HippocampusURL    string `yaml:"hippocampus_url"`
	HippocampusAPIKey string `yaml:"hippocampus_api_key"`

	LiteLLMBaseURL string `yaml:"litellm_base_url"`
	LiteLLMAPIKey  string `yaml:"litellm_api_key"`

	StreamEnable   bool `yaml:"stream_enable"`
	StreamTTLDays  int  `yaml:"stream_ttl_days"`
	WorkingTTLHours int `yaml:"working_ttl_hours"`

	StateDir string `yaml:"state_dir"`

	RoomsScope         string   `yaml:"rooms_scope"`
	LogAssistant       bool     `yaml:"log_assistant"`
	ConsolidateScopes  []string `yaml:"consolidate_scopes"`
	RetryDelaySeconds  int      `yaml:"retry_delay_seconds"`
}

// GovernorDefaults returns the built-in defaults, pinned against
// original_source/memory_governor/config.py's GovernorConfig dataclass.
func GovernorDefaults() GovernorConfig {
	return GovernorConfig{
		BindHost:          "127.0.0.1",
		Port:              54323,
		StreamEnable:      false,
		StreamTTLDays:     14,
		WorkingTTLHours:   24,
		RoomsScope:        "room",
		LogAssistant:      false,
		RetryDelaySeconds: 2,
	}
}

// LoadGovernorConfig loads an optional YAML file at yamlPath over the
// built-in defaults, then applies environment variable overrides.
func LoadGovernorConfig(yamlPath string) (GovernorConfig, error) {
	cfg := GovernorDefaults()

	if yamlPath != "" {
		if data, err := os.ReadFile(yamlPath); err == nil {
			var fileCfg GovernorConfig
			if err := yaml.Unmarshal(data, &fileCfg); err != nil {
				return cfg, err
			}
			if err := mergo.Merge(&cfg, fileCfg, mergo.WithOverride); err != nil {
				return cfg, err
			}
		}
	}

	applyGovernorEnv(&cfg)
	return cfg, nil
}

func applyGovernorEnv(cfg *GovernorConfig) {
	setString(&cfg.BindHost, "MG_BIND_HOST")
	setInt(&cfg.Port, "MG_PORT")
	setString(&cfg.IngestURL, "INGEST_URL")
	setString(&cfg.HippocampusURL, "HIPPOCAMPUS_URL")
	setString(&cfg.HippocampusAPIKey, "HIPPOCAMPUS_API_KEY")
	setString(&cfg.LiteLLMBaseURL, "LITELLM_BASE_URL")
	setString(&cfg.LiteLLMAPIKey, "LITELLM_API_KEY")
	setBool(&cfg.StreamEnable, "MG_STREAM_ENABLE")
	setInt(&cfg.StreamTTLDays, "MG_STREAM_TTL_DAYS")
	setInt(&cfg.WorkingTTLHours, "MG_WORKING_TTL_HOURS")
	setString(&cfg.StateDir, "MG_STATE_DIR")
	setString(&cfg.RoomsScope, "MG_ROOMS_SCOPE")
	setBool(&cfg.LogAssistant, "MG_LOG_ASSISTANT")
	setInt(&cfg.RetryDelaySeconds, "MG_RETRY_DELAY_SECONDS")
	if v, ok := os.LookupEnv("MG_CONSOLIDATE_SCOPES"); ok && v != "" {
		cfg.ConsolidateScopes = strings.Split(v, ",")
	}
}

// HippocampusConfig configures the Hippocampus binary.
type HippocampusConfig struct {
	BindHost string `yaml:"bind_host"`
	Port     int    `yaml:"port"`

	Backend        string `yaml:"backend"`
	DBPath         string `yaml:"db_path"`
	RemoteAPIKey   string `yaml:"remote_api_key"`
	RemoteBaseURL  string `yaml:"remote_base_url"`

	AuthEnable     bool   `yaml:"auth_enable"`
	APIKeyHeader   string `yaml:"api_key_header"`
	APIKeys        []string `yaml:"api_keys"`

	LiteLLMBaseURL string `yaml:"litellm_base_url"`
	LiteLLMAPIKey  string `yaml:"litellm_api_key"`
}

// HippocampusDefaults returns the built-in defaults.
func HippocampusDefaults() HippocampusConfig {
	return HippocampusConfig{
		BindHost:     "127.0.0.1",
		Port:         54321,
		Backend:      "memory",
		APIKeyHeader: "X-API-Key",
	}
}

// LoadHippocampusConfig loads an optional YAML file over the built-in
// defaults, then applies environment variable overrides.
func LoadHippocampusConfig(yamlPath string) (HippocampusConfig, error) {
	cfg := HippocampusDefaults()

	if yamlPath != "" {
		if data, err := os.ReadFile(yamlPath); err == nil {
			var fileCfg HippocampusConfig
			if err := yaml.Unmarshal(data, &fileCfg); err != nil {
				return cfg, err
			}
			if err := mergo.Merge(&cfg, fileCfg, mergo.WithOverride); err != nil {
				return cfg, err
			}
		}
	}

	applyHippocampusEnv(&cfg)
	return cfg, nil
}

func applyHippocampusEnv(cfg *HippocampusConfig) {
	setString(&cfg.BindHost, "HIPPOCAMPUS_BIND_HOST")
	setInt(&cfg.Port, "HIPPOCAMPUS_PORT")
	setString(&cfg.Backend, "HIPPOCAMPUS_BACKEND")
	setString(&cfg.DBPath, "HIPPOCAMPUS_DB_PATH")
	setString(&cfg.RemoteAPIKey, "HIPPOCAMPUS_REMOTE_API_KEY")
	setString(&cfg.RemoteBaseURL, "HIPPOCAMPUS_REMOTE_BASE_URL")
	setBool(&cfg.AuthEnable, "HIPPOCAMPUS_AUTH_ENABLE")
	setString(&cfg.APIKeyHeader, "HIPPOCAMPUS_API_KEY_HEADER")
	setString(&cfg.LiteLLMBaseURL, "LITELLM_BASE_URL")
	setString(&cfg.LiteLLMAPIKey, "LITELLM_API_KEY")
	if v, ok := os.LookupEnv("HIPPOCAMPUS_API_KEYS"); ok && v != "" {
		cfg.APIKeys = strings.Split(v, ",")
	}
}

func setString(dst *string, env string) {
	if v, ok := os.LookupEnv(env); ok {
		*dst = v
	}
}

func setInt(dst *int, env string) {
	if v, ok := os.LookupEnv(env); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, env string) {
	if v, ok := os.LookupEnv(env); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
