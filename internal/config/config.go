package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the namespace prefix for all callwatch environment variables.
const EnvPrefix = "CALLWATCH_"

// DefaultPath is read when CALLWATCH_CONFIG is unset.
const DefaultPath = "callwatch.yaml"

// Config holds all application configuration. Secrets are loaded
// exclusively from environment variables and never appear in the config file.
type Config struct {
	ListenAddr            string `yaml:"listen_addr"`
	DBPath                string `yaml:"db_path"`
	ReportDir             string `yaml:"report_dir"`
	NotifyURL             string `yaml:"notify_url"`
	TokenURL              string `yaml:"token_url"`
	DeviceURL             string `yaml:"device_url"`
	Identity              string `yaml:"identity"`
	GDriveFolderID        string `yaml:"gdrive_folder_id"`
	GoogleCredentialsFile string `yaml:"google_credentials_file"`
	GDriveSyncSchedule    string `yaml:"gdrive_sync_schedule"`
	ReconnectMaxInterval  string `yaml:"reconnect_max_interval"`
	LogLevel              string `yaml:"log_level"`
	LogFormat             string `yaml:"log_format"`

	// env only
	DeviceAPIKey string `yaml:"-"`
}

func defaults() Config {
	return Config{
		ListenAddr:            "127.0.0.1:8080",
		DBPath:                "data/callwatch.db",
		ReportDir:             "data/reports",
		Identity:              "dashboard",
		GoogleCredentialsFile: "./service-account.json",
		GDriveSyncSchedule:    "*/15 * * * *",
		ReconnectMaxInterval:  "30s",
		LogLevel:              "info",
		LogFormat:             "text",
	}
}

// Path returns the config file location, honouring CALLWATCH_CONFIG.
func Path() string {
	if v := os.Getenv(EnvPrefix + "CONFIG"); v != "" {
		return v
	}
	return DefaultPath
}

// Load reads configuration from a YAML file (if it exists), applies
// environment variable overrides, loads secrets, and validates the result.
// It returns the config, any validation warnings, and an error if the file
// exists but cannot be read or parsed.
func Load(path string) (Config, []string, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, nil, fmt.Errorf("read config file: %w", err)
			}
		} else {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	applyEnvOverrides(&cfg)
	loadSecrets(&cfg)

	warnings := validate(&cfg)
	return cfg, warnings, nil
}

// ParsedReconnectMaxInterval returns ReconnectMaxInterval as a
// time.Duration, falling back to 30s if the value is invalid.
func (c *Config) ParsedReconnectMaxInterval() time.Duration {
	d, err := time.ParseDuration(c.ReconnectMaxInterval)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// DeviceEnabled reports whether enough is configured to register a phone.
func (c *Config) DeviceEnabled() bool {
	return c.TokenURL != "" && c.DeviceURL != ""
}

// GDriveEnabled reports whether report journals should be synced.
func (c *Config) GDriveEnabled() bool {
	return c.GDriveFolderID != ""
}

func applyEnvOverrides(cfg *Config) {
	overrides := []struct {
		key string
		dst *string
	}{
		{"LISTEN_ADDR", &cfg.ListenAddr},
		{"DB_PATH", &cfg.DBPath},
		{"REPORT_DIR", &cfg.ReportDir},
		{"NOTIFY_URL", &cfg.NotifyURL},
		{"TOKEN_URL", &cfg.TokenURL},
		{"DEVICE_URL", &cfg.DeviceURL},
		{"IDENTITY", &cfg.Identity},
		{"GDRIVE_FOLDER_ID", &cfg.GDriveFolderID},
		{"GOOGLE_CREDENTIALS_FILE", &cfg.GoogleCredentialsFile},
		{"GDRIVE_SYNC_SCHEDULE", &cfg.GDriveSyncSchedule},
		{"RECONNECT_MAX_INTERVAL", &cfg.ReconnectMaxInterval},
		{"LOG_LEVEL", &cfg.LogLevel},
		{"LOG_FORMAT", &cfg.LogFormat},
	}
	for _, o := range overrides {
		if v := strings.TrimSpace(os.Getenv(EnvPrefix + o.key)); v != "" {
			*o.dst = v
		}
	}
}

func loadSecrets(cfg *Config) {
	cfg.DeviceAPIKey = os.Getenv(EnvPrefix + "DEVICE_API_KEY")
}

func validate(cfg *Config) []string {
	var warnings []string

	if cfg.NotifyURL == "" {
		warnings = append(warnings, "Notification channel not configured, live call updates are disabled. Set "+EnvPrefix+"NOTIFY_URL.")
	}
	if !cfg.DeviceEnabled() {
		warnings = append(warnings, "Telephony device not configured, calls cannot be answered from the dashboard. Set "+EnvPrefix+"TOKEN_URL and "+EnvPrefix+"DEVICE_URL.")
	} else if cfg.DeviceAPIKey == "" {
		warnings = append(warnings, "Device API key not set, the gateway may refuse registration. Set "+EnvPrefix+"DEVICE_API_KEY.")
	}
	if d, err := time.ParseDuration(cfg.ReconnectMaxInterval); err != nil || d <= 0 {
		warnings = append(warnings, fmt.Sprintf("Invalid reconnect_max_interval %q, using default 30s.", cfg.ReconnectMaxInterval))
	}

	return warnings
}
