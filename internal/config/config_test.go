package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"LISTEN_ADDR", "DB_PATH", "REPORT_DIR",
		"NOTIFY_URL", "TOKEN_URL", "DEVICE_URL", "IDENTITY",
		"GDRIVE_FOLDER_ID", "GOOGLE_CREDENTIALS_FILE", "GDRIVE_SYNC_SCHEDULE",
		"RECONNECT_MAX_INTERVAL", "LOG_LEVEL", "LOG_FORMAT",
		"DEVICE_API_KEY", "CONFIG",
	} {
		t.Setenv(EnvPrefix+key, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "callwatch.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	clearEnv(t)

	cfg, _, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DBPath != "data/callwatch.db" {
		t.Fatalf("expected default db_path, got %q", cfg.DBPath)
	}
	if cfg.ReportDir != "data/reports" {
		t.Fatalf("expected default report_dir, got %q", cfg.ReportDir)
	}
	if cfg.ListenAddr != "127.0.0.1:8080" {
		t.Fatalf("expected default listen_addr, got %q", cfg.ListenAddr)
	}
	if cfg.GDriveSyncSchedule != "*/15 * * * *" {
		t.Fatalf("expected default sync schedule, got %q", cfg.GDriveSyncSchedule)
	}
	if cfg.ParsedReconnectMaxInterval() != 30*time.Second {
		t.Fatalf("expected default reconnect interval, got %v", cfg.ParsedReconnectMaxInterval())
	}
	if cfg.DeviceEnabled() || cfg.GDriveEnabled() {
		t.Fatal("expected optional integrations disabled by default")
	}
}

func TestYAMLLoading(t *testing.T) {
	clearEnv(t)

	path := writeConfig(t, `
listen_addr: 0.0.0.0:9000
db_path: /custom/db.sqlite
report_dir: /custom/reports
notify_url: wss://notify.example.com/socket
token_url: https://voice.example.com/token
device_url: wss://voice.example.com/device
identity: desk-1
gdrive_folder_id: my-folder
google_credentials_file: /path/to/creds.json
gdrive_sync_schedule: "0 * * * *"
reconnect_max_interval: 1m
log_level: debug
log_format: json
`)

	cfg, _, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	checks := map[string][2]string{
		"listen_addr":             {cfg.ListenAddr, "0.0.0.0:9000"},
		"db_path":                 {cfg.DBPath, "/custom/db.sqlite"},
		"report_dir":              {cfg.ReportDir, "/custom/reports"},
		"notify_url":              {cfg.NotifyURL, "wss://notify.example.com/socket"},
		"token_url":               {cfg.TokenURL, "https://voice.example.com/token"},
		"device_url":              {cfg.DeviceURL, "wss://voice.example.com/device"},
		"identity":                {cfg.Identity, "desk-1"},
		"gdrive_folder_id":        {cfg.GDriveFolderID, "my-folder"},
		"google_credentials_file": {cfg.GoogleCredentialsFile, "/path/to/creds.json"},
		"gdrive_sync_schedule":    {cfg.GDriveSyncSchedule, "0 * * * *"},
		"log_level":               {cfg.LogLevel, "debug"},
		"log_format":              {cfg.LogFormat, "json"},
	}
	for key, pair := range checks {
		if pair[0] != pair[1] {
			t.Fatalf("expected yaml %s %q, got %q", key, pair[1], pair[0])
		}
	}
	if cfg.ParsedReconnectMaxInterval() != time.Minute {
		t.Fatalf("expected 1m reconnect interval, got %v", cfg.ParsedReconnectMaxInterval())
	}
	if !cfg.DeviceEnabled() || !cfg.GDriveEnabled() {
		t.Fatal("expected integrations enabled")
	}
}

func TestEnvOverridesYAML(t *testing.T) {
	path := writeConfig(t, `
db_path: /from/yaml
notify_url: wss://yaml.example.com
`)

	clearEnv(t)
	t.Setenv(EnvPrefix+"DB_PATH", "/from/env")
	t.Setenv(EnvPrefix+"NOTIFY_URL", "wss://env.example.com")
	t.Setenv(EnvPrefix+"REPORT_DIR", "/env/reports")

	cfg, _, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DBPath != "/from/env" {
		t.Fatalf("expected env override for db_path, got %q", cfg.DBPath)
	}
	if cfg.NotifyURL != "wss://env.example.com" {
		t.Fatalf("expected env override for notify_url, got %q", cfg.NotifyURL)
	}
	if cfg.ReportDir != "/env/reports" {
		t.Fatalf("expected env override for report_dir, got %q", cfg.ReportDir)
	}
}

func TestSecretsFromEnvOnly(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPrefix+"DEVICE_API_KEY", "dev-secret")

	cfg, _, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DeviceAPIKey != "dev-secret" {
		t.Fatalf("expected device key from env, got %q", cfg.DeviceAPIKey)
	}
}

func TestSecretsIgnoredInYAML(t *testing.T) {
	clearEnv(t)

	path := writeConfig(t, "device_api_key: should-be-ignored\n")

	cfg, _, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DeviceAPIKey != "" {
		t.Fatalf("expected empty device key (yaml should be ignored), got %q", cfg.DeviceAPIKey)
	}
}

func TestValidationWarnings(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPrefix+"RECONNECT_MAX_INTERVAL", "soon")

	cfg, warnings, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	var notifyWarning, deviceWarning, intervalWarning bool
	for _, w := range warnings {
		if strings.Contains(w, "NOTIFY_URL") {
			notifyWarning = true
		}
		if strings.Contains(w, "DEVICE_URL") {
			deviceWarning = true
		}
		if strings.Contains(w, "reconnect_max_interval") {
			intervalWarning = true
		}
	}

	if !notifyWarning || !deviceWarning || !intervalWarning {
		t.Fatalf("expected notify, device and interval warnings, got: %v", warnings)
	}
	if cfg.ParsedReconnectMaxInterval() != 30*time.Second {
		t.Fatalf("expected fallback interval, got %v", cfg.ParsedReconnectMaxInterval())
	}
}

func TestValidationMissingDeviceKey(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPrefix+"NOTIFY_URL", "wss://notify.example.com")
	t.Setenv(EnvPrefix+"TOKEN_URL", "https://voice.example.com/token")
	t.Setenv(EnvPrefix+"DEVICE_URL", "wss://voice.example.com/device")

	_, warnings, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "DEVICE_API_KEY") {
		t.Fatalf("expected only device key warning, got %v", warnings)
	}
}

func TestValidationNoWarningsWhenConfigured(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPrefix+"NOTIFY_URL", "wss://notify.example.com")
	t.Setenv(EnvPrefix+"TOKEN_URL", "https://voice.example.com/token")
	t.Setenv(EnvPrefix+"DEVICE_URL", "wss://voice.example.com/device")
	t.Setenv(EnvPrefix+"DEVICE_API_KEY", "key")

	_, warnings, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", warnings)
	}
}

func TestMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("expected missing file to be ignored, got %v", err)
	}
	if cfg.DBPath != "data/callwatch.db" {
		t.Fatalf("expected default db_path, got %q", cfg.DBPath)
	}
}

func TestInvalidYAML(t *testing.T) {
	clearEnv(t)

	path := writeConfig(t, "db_path: [unterminated\n")
	if _, _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestPath(t *testing.T) {
	clearEnv(t)
	if got := Path(); got != DefaultPath {
		t.Fatalf("expected default path, got %q", got)
	}

	t.Setenv(EnvPrefix+"CONFIG", "/etc/callwatch.yaml")
	if got := Path(); got != "/etc/callwatch.yaml" {
		t.Fatalf("expected env path, got %q", got)
	}
}
