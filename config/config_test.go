package config

import (
	"strings"
	"testing"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Search.AppID = "test-app-id"
	return cfg
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "missing app id",
			mutate: func(cfg *Config) {
				cfg.Search.AppID = ""
			},
			wantErr: "application id",
		},
		{
			name: "empty endpoint",
			mutate: func(cfg *Config) {
				cfg.Search.Endpoint = ""
			},
			wantErr: "endpoint",
		},
		{
			name: "endpoint without host",
			mutate: func(cfg *Config) {
				cfg.Search.Endpoint = "http://"
			},
			wantErr: "endpoint",
		},
		{
			name: "page size over api limit",
			mutate: func(cfg *Config) {
				cfg.Search.PageSize = 31
			},
			wantErr: "page size",
		},
		{
			name: "store hits above fetch hits",
			mutate: func(cfg *Config) {
				cfg.StoreHits = cfg.FetchHits + 1
			},
			wantErr: "store hits",
		},
		{
			name: "negative shipping",
			mutate: func(cfg *Config) {
				cfg.DefaultShippingYen = -1
			},
			wantErr: "shipping",
		},
		{
			name: "extra point rate out of range",
			mutate: func(cfg *Config) {
				cfg.ExtraPointRate = 1.5
			},
			wantErr: "point rate",
		},
		{
			name: "unknown capacity match mode",
			mutate: func(cfg *Config) {
				cfg.CapacityMatch = "maybe"
			},
			wantErr: "capacity match",
		},
		{
			name: "bad forced variant",
			mutate: func(cfg *Config) {
				cfg.ForcedVariant = "C"
			},
			wantErr: "variant",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDefaultConfigValid(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("default config with app id should validate, got %v", err)
	}
}

func TestDefaultExcludeKeywords(t *testing.T) {
	cfg := DefaultConfig()
	if len(cfg.ExcludeKeywords) == 0 {
		t.Fatal("default exclusion list should not be empty")
	}
	for _, want := range []string{"シェイカー", "BCAA", "プロテインバー", "紙パック"} {
		found := false
		for _, k := range cfg.ExcludeKeywords {
			if k == want {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("default exclusion list missing %q", want)
		}
	}
	for _, k := range cfg.ExcludeKeywords {
		if strings.TrimSpace(k) != k || k == "" {
			t.Errorf("keyword %q not trimmed", k)
		}
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("TRACKER_TEST_INT", "42")
	if v, ok, err := EnvInt("TRACKER_TEST_INT"); err != nil || !ok || v != 42 {
		t.Fatalf("EnvInt = %d %v %v", v, ok, err)
	}

	t.Setenv("TRACKER_TEST_INT", "not-a-number")
	if _, _, err := EnvInt("TRACKER_TEST_INT"); err == nil {
		t.Fatal("expected parse error")
	}

	t.Setenv("TRACKER_TEST_BOOL", "Yes")
	if !EnvBool("TRACKER_TEST_BOOL") {
		t.Fatal("expected truthy bool")
	}

	if _, ok := EnvString("TRACKER_TEST_UNSET_VAR"); ok {
		t.Fatal("unset var should report ok=false")
	}
}
