package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("HOME", tempDir)
	t.Setenv("XDG_CONFIG_HOME", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Game != DefaultGame {
		t.Errorf("Game = %q, want %q", cfg.Game, DefaultGame)
	}
	if cfg.HTTP.Timeout != DefaultHTTPTimeout {
		t.Errorf("HTTP.Timeout = %v, want %v", cfg.HTTP.Timeout, DefaultHTTPTimeout)
	}
	if cfg.HTTP.Retries != DefaultHTTPRetries {
		t.Errorf("HTTP.Retries = %d, want %d", cfg.HTTP.Retries, DefaultHTTPRetries)
	}
	if !cfg.Backup.Keep {
		t.Error("Backup.Keep = false, want true")
	}
	if !cfg.HashCache.Enabled {
		t.Error("HashCache.Enabled = false, want true")
	}
	if cfg.History.RetentionDays != DefaultHistoryRetentionDays {
		t.Errorf("History.RetentionDays = %d, want %d", cfg.History.RetentionDays, DefaultHistoryRetentionDays)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}

	n, err := cfg.MinFreeSpaceBytes()
	if err != nil {
		t.Fatalf("MinFreeSpaceBytes() error = %v", err)
	}
	if n != 100*1000*1000 {
		t.Errorf("MinFreeSpaceBytes() = %d", n)
	}
}

func TestLoad_FromFile(t *testing.T) {
	tempDir := t.TempDir()
	configDir := filepath.Join(tempDir, ".config", "modsync")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}

	configContent := `
game: fs22
mods_dir: ~/mods
min_free_space: 2GiB
backup:
  keep: false
  retention_days: 7
http:
  timeout: 45s
  retries: 1
logging:
  level: debug
`
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(configContent), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	t.Setenv("HOME", tempDir)
	t.Setenv("XDG_CONFIG_HOME", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Game != "fs22" {
		t.Errorf("Game = %q, want fs22", cfg.Game)
	}
	if want := filepath.Join(tempDir, "mods"); cfg.ModsDir != want {
		t.Errorf("ModsDir = %q, want %q", cfg.ModsDir, want)
	}
	if cfg.Backup.Keep {
		t.Error("Backup.Keep = true, want false")
	}
	if cfg.Backup.RetentionDays != 7 {
		t.Errorf("Backup.RetentionDays = %d, want 7", cfg.Backup.RetentionDays)
	}
	if cfg.HTTP.Timeout != 45*time.Second {
		t.Errorf("HTTP.Timeout = %v, want 45s", cfg.HTTP.Timeout)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}

	n, err := cfg.MinFreeSpaceBytes()
	if err != nil {
		t.Fatalf("MinFreeSpaceBytes() error = %v", err)
	}
	if n != 2*1024*1024*1024 {
		t.Errorf("MinFreeSpaceBytes() = %d", n)
	}
}

func TestLoadFrom_ExplicitFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "custom.yaml")
	if err := os.WriteFile(path, []byte("game: fs19\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.Game != "fs19" {
		t.Errorf("Game = %q, want fs19", cfg.Game)
	}

	if _, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadFrom() with a missing explicit file should fail")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("MODSYNC_MODS_DIR", "/srv/mods")
	t.Setenv("MODSYNC_HTTP_RETRIES", "9")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ModsDir != "/srv/mods" {
		t.Errorf("ModsDir = %q, want /srv/mods", cfg.ModsDir)
	}
	if cfg.HTTP.Retries != 9 {
		t.Errorf("HTTP.Retries = %d, want 9", cfg.HTTP.Retries)
	}
}

func TestWriteDefault(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tempDir)

	path, err := WriteDefault()
	if err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}
	if want := filepath.Join(tempDir, "modsync", "config.yaml"); path != want {
		t.Errorf("path = %q, want %q", path, want)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("written config does not load: %v", err)
	}
	if cfg.HTTP.Timeout != DefaultHTTPTimeout {
		t.Errorf("HTTP.Timeout = %v, want %v", cfg.HTTP.Timeout, DefaultHTTPTimeout)
	}

	if err := os.WriteFile(path, []byte("game: fs19\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := WriteDefault(); err != nil {
		t.Fatalf("second WriteDefault() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "game: fs19\n" {
		t.Error("WriteDefault() overwrote an existing file")
	}
}

func TestToLogging(t *testing.T) {
	lc := LoggingConfig{Level: "warn", Console: "error", Rotation: RotationConfig{MaxSize: "1MB", MaxBackups: 2}}
	got, err := lc.ToLogging()
	if err != nil {
		t.Fatalf("ToLogging() error = %v", err)
	}
	if got.Rotation.MaxSize != 1000*1000 {
		t.Errorf("Rotation.MaxSize = %d", got.Rotation.MaxSize)
	}
	if got.ConsoleLevel != "error" || got.Level != "warn" {
		t.Errorf("levels not carried over: %+v", got)
	}

	lc.Rotation.MaxSize = "lots"
	if _, err := lc.ToLogging(); err == nil {
		t.Error("ToLogging() should reject an unparsable size")
	}
}

func TestResolveDirs(t *testing.T) {
	cfg := &Config{}
	if got, want := cfg.ResolveStagingDir("/mods"), filepath.Join("/mods", ".modsync", "staging"); got != want {
		t.Errorf("ResolveStagingDir() = %q, want %q", got, want)
	}
	cfg.Backup.Dir = "/backups"
	if got := cfg.ResolveBackupDir("/mods"); got != "/backups" {
		t.Errorf("ResolveBackupDir() = %q", got)
	}
}

func TestExpandPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := ExpandPath("~/mods")
	if err != nil {
		t.Fatal(err)
	}
	if got != filepath.Join(home, "mods") {
		t.Errorf("ExpandPath() = %q", got)
	}

	got, err = ExpandPath("/abs")
	if err != nil || got != "/abs" {
		t.Errorf("ExpandPath(/abs) = %q, %v", got, err)
	}
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.Game != DefaultGame {
		t.Errorf("Game = %q, want %q", cfg.Game, DefaultGame)
	}
	if !cfg.Backup.Keep || !cfg.HashCache.Enabled || !cfg.History.Enabled {
		t.Errorf("expected backups, hash cache and history enabled: %+v", cfg)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Logging.Format = %q, want text", cfg.Logging.Format)
	}
	if n, err := cfg.MinFreeSpaceBytes(); err != nil || n == 0 {
		t.Errorf("MinFreeSpaceBytes() = %d, %v", n, err)
	}
}
