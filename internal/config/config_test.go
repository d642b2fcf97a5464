package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"DHAN_CLIENT_ID", "DHAN_ACCESS_TOKEN", "GEXDEX_PROVIDER_MODE", "GEXDEX_PROVIDER_CLIENT_ID", "GEXDEX_PROVIDER_ACCESS_TOKEN"} {
		if val, ok := os.LookupEnv(key); ok {
			_ = os.Unsetenv(key)
			t.Cleanup(func() { _ = os.Setenv(key, val) })
		}
	}
}

func TestLoadWithCredentials(t *testing.T) {
	clearEnv(t)
	t.Setenv("DHAN_CLIENT_ID", "1000001")
	t.Setenv("DHAN_ACCESS_TOKEN", "token-abc")

	cfg, err := Load("", "")
	if err != nil {
		t.Fatalf("expected config to load with credentials, got error: %v", err)
	}

	if cfg.Provider.ClientID != "1000001" || cfg.Provider.AccessToken != "token-abc" {
		t.Errorf("credentials not picked up: %+v", cfg.Provider)
	}
	if cfg.Provider.BaseURL != "https://api.dhan.co" {
		t.Errorf("expected default base URL, got '%s'", cfg.Provider.BaseURL)
	}
	if cfg.Analysis.StrikesRange != 12 {
		t.Errorf("expected strikes range 12 by default, got %d", cfg.Analysis.StrikesRange)
	}
	if cfg.Analysis.RiskFreeRate != 0.07 {
		t.Errorf("expected risk free rate 0.07, got %v", cfg.Analysis.RiskFreeRate)
	}
	if cfg.Cache.TTL().Seconds() != 60 {
		t.Errorf("expected 60s cache ttl, got %v", cfg.Cache.TTL())
	}
}

func TestLoadWithoutCredentials(t *testing.T) {
	clearEnv(t)

	_, err := Load("", "")
	if err == nil {
		t.Fatal("expected error when credentials are missing in live mode")
	}
	var verrs *ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
}

func TestLoadSyntheticNeedsNoCredentials(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEXDEX_PROVIDER_MODE", "synthetic")

	cfg, err := Load("", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Provider.Mode != ModeSynthetic {
		t.Errorf("expected synthetic mode, got %s", cfg.Provider.Mode)
	}
}

func TestLoadEnvFileAndYAML(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	envPath := filepath.Join(dir, "test.env")
	if err := os.WriteFile(envPath, []byte("DHAN_CLIENT_ID=from-file\nDHAN_ACCESS_TOKEN=secret\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		_ = os.Unsetenv("DHAN_CLIENT_ID")
		_ = os.Unsetenv("DHAN_ACCESS_TOKEN")
	})

	cfgPath := filepath.Join(dir, "gexdex.yaml")
	yaml := `
analysis:
  strikes_range: 8
cache:
  backend: none
symbols:
  sensex:
    security_id: 51
    segment: IDX_I
    strike_step: 100
    reference_price: 80000
`
	if err := os.WriteFile(cfgPath, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(cfgPath, envPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Provider.ClientID != "from-file" {
		t.Errorf("expected client id from env file, got %q", cfg.Provider.ClientID)
	}
	if cfg.Analysis.StrikesRange != 8 {
		t.Errorf("expected strikes range 8, got %d", cfg.Analysis.StrikesRange)
	}

	sym, err := cfg.SymbolTable().Lookup("sensex")
	if err != nil {
		t.Fatalf("expected SENSEX in symbol table: %v", err)
	}
	if sym.SecurityID != 51 || sym.StrikeStep != 100 {
		t.Errorf("unexpected symbol %+v", sym)
	}
	if _, err := cfg.SymbolTable().Lookup("NIFTY"); err != nil {
		t.Errorf("built-in symbols should remain: %v", err)
	}
}

func TestLoadMissingExplicitEnvFile(t *testing.T) {
	_, err := Load("", filepath.Join(t.TempDir(), "missing.env"))
	if err == nil {
		t.Fatal("expected error for missing explicit env file")
	}
}

func TestValidateReportsEverything(t *testing.T) {
	cfg := &Config{
		Provider: ProviderConfig{Mode: "carrier-pigeon", TimeoutSec: 0},
		Cache:    CacheConfig{Backend: "memcached"},
		Replay:   ReplayConfig{Mode: ReplayExhaust},
		Record:   RecordConfig{Workers: 1},
		Analysis: AnalysisConfig{StrikesRange: 12, BudgetMS: 1000},
		Symbols:  map[string]SymbolConfig{"bad": {StrikeStep: 0, ReferencePrice: 10}},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	for _, want := range []string{"provider.mode=\"carrier-pigeon\"", "cache.backend=\"memcached\"", "timeout_sec", "BAD"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error should mention %q, got: %v", want, msg)
		}
	}
}
