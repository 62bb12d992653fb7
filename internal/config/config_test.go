package config

import "testing"

func TestDefaultConfig_HasSaneZeroStateDefaults(t *testing.T) {
	cfg := defaultConfig()

	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if cfg.Socket.Port != 8765 {
		t.Errorf("Socket.Port = %d, want 8765", cfg.Socket.Port)
	}
	if cfg.Relay.Host != "127.0.0.1" || cfg.Relay.Port != 18792 {
		t.Errorf("Relay = %+v, want 127.0.0.1:18792", cfg.Relay)
	}
	if cfg.Compactor.TokenBudget != 8000 {
		t.Errorf("Compactor.TokenBudget = %d, want 8000", cfg.Compactor.TokenBudget)
	}
	if !cfg.Gateways.AutoRestart {
		t.Error("Gateways.AutoRestart = false, want true")
	}
}

func TestMergeConfig_OnlyOverwritesSetFields(t *testing.T) {
	base := defaultConfig()
	mergeConfig(&base, Config{Socket: SocketConfig{Port: 9999}})

	if base.Socket.Port != 9999 {
		t.Errorf("Socket.Port = %d, want 9999", base.Socket.Port)
	}
	if base.Socket.Host != "0.0.0.0" {
		t.Errorf("Socket.Host = %q, want unchanged %q", base.Socket.Host, "0.0.0.0")
	}
	if base.Memory.DBPath != "memory.db" {
		t.Errorf("Memory.DBPath = %q, want unchanged default", base.Memory.DBPath)
	}
}

func TestMergeConfig_AutoRestartNeverDowngradedByAbsentYAMLField(t *testing.T) {
	base := defaultConfig()
	mergeConfig(&base, Config{})

	if !base.Gateways.AutoRestart {
		t.Error("Gateways.AutoRestart was reset to false by an empty override, want unchanged true")
	}
}
