package infra

import "testing"

func TestPoolConfig(t *testing.T) {
	cfg, err := poolConfig(&Config{DatabaseURL: "postgres://u:p@db.internal:5432/assets", DBMaxConns: 4})
	if err != nil {
		t.Fatalf("poolConfig returned error: %v", err)
	}
	if cfg.MaxConns != 4 || cfg.MinConns != 1 {
		t.Fatalf("conns = %d/%d", cfg.MinConns, cfg.MaxConns)
	}
	if cfg.ConnConfig.Host != "db.internal" || cfg.ConnConfig.Database != "assets" {
		t.Fatalf("conn config = %s/%s", cfg.ConnConfig.Host, cfg.ConnConfig.Database)
	}
	if got := cfg.ConnConfig.RuntimeParams["application_name"]; got != dbApplicationName {
		t.Fatalf("application_name = %q", got)
	}
}

func TestPoolConfigKeepsExplicitApplicationName(t *testing.T) {
	cfg, err := poolConfig(&Config{DatabaseURL: "postgres://db/assets?application_name=worker", DBMaxConns: 2})
	if err != nil {
		t.Fatalf("poolConfig returned error: %v", err)
	}
	if got := cfg.ConnConfig.RuntimeParams["application_name"]; got != "worker" {
		t.Fatalf("application_name = %q", got)
	}
}

func TestPoolConfigRejects(t *testing.T) {
	for name, cfg := range map[string]*Config{
		"nil":     nil,
		"no url":  {},
		"garbage": {DatabaseURL: "postgres://%zz"},
	} {
		if _, err := poolConfig(cfg); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
