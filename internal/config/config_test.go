package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestServerConfig_SetDefaults(t *testing.T) {
	t.Parallel()

	var cfg ServerConfig
	cfg.SetDefaults()

	if cfg.Server.ListenAddr != "127.0.0.1:9507" {
		t.Errorf("ListenAddr = %q, want %q", cfg.Server.ListenAddr, "127.0.0.1:9507")
	}
	if cfg.Server.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.Server.LogLevel, "info")
	}
	if cfg.Server.UpstreamTimeout != 30*time.Second {
		t.Errorf("UpstreamTimeout = %v, want 30s", cfg.Server.UpstreamTimeout)
	}
	if cfg.History.Capacity != 1000 {
		t.Errorf("History.Capacity = %d, want 1000", cfg.History.Capacity)
	}
	if cfg.Intruder.Workers != 10 {
		t.Errorf("Intruder.Workers = %d, want 10", cfg.Intruder.Workers)
	}
}

func TestServerConfig_SetDefaults_PreservesExistingValues(t *testing.T) {
	t.Parallel()

	cfg := ServerConfig{
		Server: ListenConfig{
			ListenAddr: "0.0.0.0:8888",
			LogLevel:   "debug",
		},
		Rules: RulesConfig{
			Path: "custom-rules.json",
		},
		Intruder: IntruderConfig{
			Workers: 25,
		},
	}
	cfg.SetDefaults()

	if cfg.Server.ListenAddr != "0.0.0.0:8888" {
		t.Errorf("ListenAddr was overwritten: got %q", cfg.Server.ListenAddr)
	}
	if cfg.Server.LogLevel != "debug" {
		t.Errorf("LogLevel was overwritten: got %q", cfg.Server.LogLevel)
	}
	if cfg.Rules.Path != "custom-rules.json" {
		t.Errorf("Rules.Path was overwritten: got %q", cfg.Rules.Path)
	}
	if cfg.Intruder.Workers != 25 {
		t.Errorf("Intruder.Workers was overwritten: got %d", cfg.Intruder.Workers)
	}
}

func TestServerConfig_SetDefaults_DevMode(t *testing.T) {
	t.Parallel()

	cfg := ServerConfig{DevMode: true}
	cfg.SetDefaults()

	if cfg.Server.LogLevel != "debug" {
		t.Errorf("LogLevel under DevMode = %q, want %q", cfg.Server.LogLevel, "debug")
	}
}

func TestFindConfigFileInPaths_EmptyDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	got := findConfigFileInPaths([]string{dir})
	if got != "" {
		t.Errorf("findConfigFileInPaths(empty dir) = %q, want empty", got)
	}
}

func TestFindConfigFileInPaths_MatchesYAML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "sentinel-proxy.yaml")
	_ = os.WriteFile(cfgPath, []byte("server:\n  listen_addr: 127.0.0.1:9090\n"), 0644)

	got := findConfigFileInPaths([]string{dir})
	if got != cfgPath {
		t.Errorf("findConfigFileInPaths = %q, want %q", got, cfgPath)
	}
}

func TestFindConfigFileInPaths_MatchesYML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "sentinel-proxy.yml")
	_ = os.WriteFile(cfgPath, []byte("server:\n  listen_addr: 127.0.0.1:9090\n"), 0644)

	got := findConfigFileInPaths([]string{dir})
	if got != cfgPath {
		t.Errorf("findConfigFileInPaths = %q, want %q", got, cfgPath)
	}
}

func TestFindConfigFileInPaths_IgnoresNoExtension(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	// Simulate the binary: a file named "sentinel-proxy" with no extension.
	_ = os.WriteFile(filepath.Join(dir, "sentinel-proxy"), []byte("\x7fELF binary"), 0755)

	got := findConfigFileInPaths([]string{dir})
	if got != "" {
		t.Errorf("findConfigFileInPaths matched binary = %q, want empty", got)
	}
}

func TestFindConfigFileInPaths_PrefersYAMLOverYML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "sentinel-proxy.yaml")
	ymlPath := filepath.Join(dir, "sentinel-proxy.yml")
	_ = os.WriteFile(yamlPath, []byte("server:\n  listen_addr: 127.0.0.1:8080\n"), 0644)
	_ = os.WriteFile(ymlPath, []byte("server:\n  listen_addr: 127.0.0.1:9090\n"), 0644)

	got := findConfigFileInPaths([]string{dir})
	if got != yamlPath {
		t.Errorf("findConfigFileInPaths = %q, want %q (.yaml preferred)", got, yamlPath)
	}
}
