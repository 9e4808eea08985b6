package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"solana-marketplace/internal/curve"
)

func validConfig() Config {
	cfg := Default()
	cfg.Solana.RPCEndpoint = "http://localhost:8899"
	cfg.Wallets.MasterKey = strings.Repeat("ab", 32)
	cfg.Wallets.PlatformAddress = "platform"
	cfg.Wallets.TreasuryAddress = "treasury"
	return cfg
}

func TestDefault_Constants(t *testing.T) {
	cfg := Default()

	if cfg.Curve.K != 30_000_000_000 {
		t.Errorf("K = %d", cfg.Curve.K)
	}
	if cfg.Curve.BuyFeeBps != 100 || cfg.Marketplace.CommissionBps != 1000 {
		t.Errorf("fees = %d/%d", cfg.Curve.BuyFeeBps, cfg.Marketplace.CommissionBps)
	}
	if cfg.Curve.GraduationFee != 6_000_000_000 {
		t.Errorf("GraduationFee = %d", cfg.Curve.GraduationFee)
	}
	if cfg.Executor.MaxRetries != 3 || cfg.Executor.BackoffBase.Duration != time.Second {
		t.Errorf("executor = %+v", cfg.Executor)
	}
	if cfg.RateLimit.Limit != 5 || cfg.RateLimit.Window.Duration != time.Minute || cfg.RateLimit.Block.Duration != 10*time.Minute {
		t.Errorf("rate limit = %+v", cfg.RateLimit)
	}
	if cfg.Pricing.TTL.Duration != 30*time.Second || cfg.Pricing.FallbackUSD != "100" {
		t.Errorf("pricing = %+v", cfg.Pricing)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
env: production
solana:
  rpc_endpoint: https://rpc.example
  rpc_timeout: 5s
curve:
  graduation_threshold: 5000
executor:
  backoff_base: 250ms
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Env != "production" || cfg.Solana.RPCEndpoint != "https://rpc.example" {
		t.Errorf("file values not applied: %+v", cfg.Solana)
	}
	if cfg.Solana.RPCTimeout.Duration != 5*time.Second {
		t.Errorf("RPCTimeout = %v", cfg.Solana.RPCTimeout)
	}
	if cfg.Curve.GraduationThreshold != 5000 || cfg.Curve.K != curve.DefaultK {
		t.Errorf("curve = %+v", cfg.Curve)
	}
	if cfg.ExecutorSettings().BackoffBase != 250*time.Millisecond {
		t.Errorf("BackoffBase = %v", cfg.ExecutorSettings().BackoffBase)
	}
}

func TestLoad_RejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("solana:\n  rpc: x\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestLoad_BadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("http:\n  read_timeout: soon\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for bad duration")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"SOLANA_RPC_ENDPOINT":  "https://env.example",
		"POSTGRES_DSN":         "postgres://x",
		"REDIS_ADDR":           "localhost:6379",
		"DAO_TREASURY_ADDRESS": "dao",
		"COMMISSION_BPS":       "500",
	}
	cfg := Default()
	err := cfg.applyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	if err != nil {
		t.Fatalf("applyEnv failed: %v", err)
	}

	if cfg.Solana.RPCEndpoint != "https://env.example" || cfg.Wallets.TreasuryAddress != "dao" {
		t.Errorf("env not applied: %+v", cfg)
	}
	if cfg.Storage.Backend != "postgres" || cfg.Cache.Backend != "redis" {
		t.Errorf("backends = %s/%s", cfg.Storage.Backend, cfg.Cache.Backend)
	}
	if cfg.Marketplace.CommissionBps != 500 {
		t.Errorf("CommissionBps = %d", cfg.Marketplace.CommissionBps)
	}
}

func TestApplyEnv_BadNumber(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(func(k string) (string, bool) {
		if k == "COMMISSION_BPS" {
			return "ten", true
		}
		return "", false
	})
	if err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing rpc", func(c *Config) { c.Solana.RPCEndpoint = "" }, "rpc_endpoint"},
		{"postgres without dsn", func(c *Config) { c.Storage.Backend = "postgres" }, "postgres_dsn"},
		{"unknown cache", func(c *Config) { c.Cache.Backend = "memcached" }, "cache backend"},
		{"commission too high", func(c *Config) { c.Marketplace.CommissionBps = 10_000 }, "commission_bps"},
		{"no master key", func(c *Config) { c.Wallets.MasterKey = "" }, "master_key"},
		{"bad fallback", func(c *Config) { c.Pricing.FallbackUSD = "-1" }, "fallback_usd"},
		{"decimals", func(c *Config) { c.Curve.Decimals = 12 }, "decimals"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func TestLedgerSettings(t *testing.T) {
	cfg := Default()
	cfg.Curve.SellFeeBps = 50
	l := cfg.LedgerSettings()
	if l.K != curve.DefaultK || l.SellFeeBps != 50 {
		t.Errorf("ledger = %+v", l)
	}
}
