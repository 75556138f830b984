package config

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Port != "8080" {
		t.Errorf("Server.Port = %q, expected 8080", cfg.Server.Port)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Database.Driver = %q, expected sqlite", cfg.Database.Driver)
	}
	if cfg.JWT.ExpireHour != 24 {
		t.Errorf("JWT.ExpireHour = %d, expected 24", cfg.JWT.ExpireHour)
	}
	if cfg.Redis.Enabled {
		t.Error("Redis should be disabled by default")
	}
	if cfg.Analysis.WorkerConcurrency != 4 {
		t.Errorf("Analysis.WorkerConcurrency = %d, expected 4", cfg.Analysis.WorkerConcurrency)
	}
	if cfg.Analysis.DigestCountry != "US" {
		t.Errorf("Analysis.DigestCountry = %q, expected US", cfg.Analysis.DigestCountry)
	}

	if err := cfg.validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestApplyAnalysisDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.applyAnalysisDefaults()

	if cfg.Analysis.WorkerConcurrency != 4 {
		t.Errorf("WorkerConcurrency = %d, expected default 4", cfg.Analysis.WorkerConcurrency)
	}
	if cfg.Analysis.ItemTimeoutSec != 120 {
		t.Errorf("ItemTimeoutSec = %d, expected default 120", cfg.Analysis.ItemTimeoutSec)
	}

	cfg = &Config{Analysis: AnalysisConfig{WorkerConcurrency: 8, ProviderRPS: 5}}
	cfg.applyAnalysisDefaults()
	if cfg.Analysis.WorkerConcurrency != 8 {
		t.Errorf("WorkerConcurrency = %d, explicit value should survive", cfg.Analysis.WorkerConcurrency)
	}
	if cfg.Analysis.ProviderRPS != 5 {
		t.Errorf("ProviderRPS = %v, explicit value should survive", cfg.Analysis.ProviderRPS)
	}
}

func TestItemTimeout(t *testing.T) {
	a := AnalysisConfig{ItemTimeoutSec: 90}
	if a.ItemTimeout() != 90*time.Second {
		t.Errorf("ItemTimeout = %v, expected 90s", a.ItemTimeout())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}, wantErr: false},
		{name: "bad driver", mutate: func(c *Config) { c.Database.Driver = "oracle" }, wantErr: true},
		{name: "missing dsn", mutate: func(c *Config) { c.Database.DSN = "" }, wantErr: true},
		{name: "missing jwt secret", mutate: func(c *Config) { c.JWT.Secret = "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseRedisURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		addr     string
		password string
		db       int
	}{
		{name: "full url", url: "redis://:secret@localhost:6379/2", addr: "localhost:6379", password: "secret", db: 2},
		{name: "no auth", url: "redis://localhost:6379/0", addr: "localhost:6379", password: "", db: 0},
		{name: "no db", url: "redis://host:6380", addr: "host:6380", password: "", db: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			cfg.parseRedisURL(tt.url)
			if cfg.Redis.Addr != tt.addr {
				t.Errorf("Addr = %q, expected %q", cfg.Redis.Addr, tt.addr)
			}
			if cfg.Redis.Password != tt.password {
				t.Errorf("Password = %q, expected %q", cfg.Redis.Password, tt.password)
			}
			if cfg.Redis.DB != tt.db {
				t.Errorf("DB = %d, expected %d", cfg.Redis.DB, tt.db)
			}
		})
	}
}
