package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("REGISTRY_URL", "http://localhost:8080")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PeerPort != 9092 {
		t.Errorf("expected default peer port 9092, got %d", cfg.PeerPort)
	}
	if cfg.MaxTransfers != 8 {
		t.Errorf("expected default max transfers 8, got %d", cfg.MaxTransfers)
	}
	if cfg.DownloadDir != "downloads" {
		t.Errorf("expected default download dir, got %q", cfg.DownloadDir)
	}
	if cfg.IdentityFile != ".fileshare_id" {
		t.Errorf("expected default identity file, got %q", cfg.IdentityFile)
	}
	if cfg.SyncInterval != 0 {
		t.Errorf("expected sync interval to default to lease-derived, got %d", cfg.SyncInterval)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected default log level info, got %q", cfg.LogLevel)
	}
}

func TestLoadRequiresRegistryURL(t *testing.T) {
	t.Setenv("REGISTRY_URL", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when REGISTRY_URL is unset")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("REGISTRY_URL", "http://registry.internal:8080")
	t.Setenv("PEER_PORT", "19092")
	t.Setenv("MAX_TRANSFERS", "2")
	t.Setenv("SHARE_DIR", "/srv/share")
	t.Setenv("SYNC_INTERVAL", "15")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PeerPort != 19092 {
		t.Errorf("expected peer port 19092, got %d", cfg.PeerPort)
	}
	if cfg.MaxTransfers != 2 {
		t.Errorf("expected max transfers 2, got %d", cfg.MaxTransfers)
	}
	if cfg.ShareDir != "/srv/share" {
		t.Errorf("expected share dir /srv/share, got %q", cfg.ShareDir)
	}
	if cfg.SyncInterval != 15 {
		t.Errorf("expected sync interval 15, got %d", cfg.SyncInterval)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
	}{
		{"port too high", "PEER_PORT", "70000"},
		{"port negative", "PEER_PORT", "-1"},
		{"zero transfers", "MAX_TRANSFERS", "0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("REGISTRY_URL", "http://localhost:8080")
			t.Setenv(tc.key, tc.value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%s", tc.key, tc.value)
			}
		})
	}
}

func TestEnvIntIgnoresGarbage(t *testing.T) {
	t.Setenv("REGISTRY_URL", "http://localhost:8080")
	t.Setenv("MAX_TRANSFERS", "lots")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxTransfers != 8 {
		t.Errorf("expected fallback 8 for unparsable value, got %d", cfg.MaxTransfers)
	}
}
