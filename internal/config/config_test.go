package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestNew_Defaults(t *testing.T) {
	t.Setenv(EnvDataDir, "/tmp/moviescript-test")

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port() != DefaultPort {
		t.Errorf("Port() = %d, want %d", cfg.Port(), DefaultPort)
	}
	if cfg.Repo() != DefaultRepo {
		t.Errorf("Repo() = %q, want %q", cfg.Repo(), DefaultRepo)
	}
	if cfg.ClassFile() != DefaultClassFile || cfg.ModelFile() != DefaultModelFile {
		t.Errorf("artifacts = %q/%q, want %q/%q", cfg.ClassFile(), cfg.ModelFile(), DefaultClassFile, DefaultModelFile)
	}
	if !cfg.UsingDefaultSecret() {
		t.Error("UsingDefaultSecret() = false, want true")
	}
	if got, want := cfg.CacheDir(), filepath.Join("/tmp/moviescript-test", "cache"); got != want {
		t.Errorf("CacheDir() = %q, want %q", got, want)
	}
	if got, want := cfg.DBPath(), filepath.Join("/tmp/moviescript-test", DBFilename); got != want {
		t.Errorf("DBPath() = %q, want %q", got, want)
	}
	if cfg.Predictor() != PredictorProcess {
		t.Errorf("Predictor() = %q, want %q", cfg.Predictor(), PredictorProcess)
	}
	if !cfg.Preload() {
		t.Error("Preload() = false, want true")
	}
	if cfg.ResultTTL() != DefaultResultTTL {
		t.Errorf("ResultTTL() = %v, want %v", cfg.ResultTTL(), DefaultResultTTL)
	}
	if origins := cfg.CORSOrigins(); len(origins) != 1 || origins[0] != "*" {
		t.Errorf("CORSOrigins() = %v, want [*]", origins)
	}
}

func TestNew_FromEnv(t *testing.T) {
	t.Setenv(EnvPort, "8080")
	t.Setenv(EnvSecretKey, "s3cret")
	t.Setenv(EnvRepo, "acme/movies")
	t.Setenv(EnvCacheDir, "/var/cache/ms")
	t.Setenv(EnvHubURL, "https://hub.example.com/")
	t.Setenv(EnvResultTTL, "90s")
	t.Setenv(EnvSubmitRate, "0.5")
	t.Setenv(EnvPreload, "false")
	t.Setenv(EnvCORSOrigins, "http://localhost:3000, https://app.example.com ,")

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port() != 8080 {
		t.Errorf("Port() = %d, want 8080", cfg.Port())
	}
	if cfg.Addr() != "127.0.0.1:8080" {
		t.Errorf("Addr() = %q, want %q", cfg.Addr(), "127.0.0.1:8080")
	}
	if cfg.UsingDefaultSecret() {
		t.Error("UsingDefaultSecret() = true, want false")
	}
	if cfg.Repo() != "acme/movies" {
		t.Errorf("Repo() = %q, want %q", cfg.Repo(), "acme/movies")
	}
	if cfg.CacheDir() != "/var/cache/ms" {
		t.Errorf("CacheDir() = %q, want %q", cfg.CacheDir(), "/var/cache/ms")
	}
	if cfg.HubURL() != "https://hub.example.com" {
		t.Errorf("HubURL() = %q, want trailing slash trimmed", cfg.HubURL())
	}
	if cfg.ResultTTL() != 90*time.Second {
		t.Errorf("ResultTTL() = %v, want 90s", cfg.ResultTTL())
	}
	if cfg.SubmitRate() != 0.5 {
		t.Errorf("SubmitRate() = %v, want 0.5", cfg.SubmitRate())
	}
	if cfg.Preload() {
		t.Error("Preload() = true, want false")
	}
	if origins := cfg.CORSOrigins(); len(origins) != 2 || origins[1] != "https://app.example.com" {
		t.Errorf("CORSOrigins() = %v", origins)
	}
}

func TestNew_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		env   string
		value string
	}{
		{"non-numeric port", EnvPort, "abc"},
		{"port out of range", EnvPort, "70000"},
		{"bad ttl", EnvResultTTL, "soon"},
		{"negative ttl", EnvResultTTL, "-5m"},
		{"bad rate", EnvSubmitRate, "fast"},
		{"negative rate", EnvSubmitRate, "-1"},
		{"nan rate", EnvSubmitRate, "NaN"},
		{"bad preload", EnvPreload, "maybe"},
		{"unknown predictor", EnvPredictor, "grpc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.env, tt.value)
			if _, err := New(); err == nil {
				t.Fatalf("New() with %s=%q: expected error", tt.env, tt.value)
			}
		})
	}
}

func TestNew_ZeroSubmitRateDisablesLimit(t *testing.T) {
	t.Setenv(EnvSubmitRate, "0")

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.SubmitRate() != 0 {
		t.Errorf("SubmitRate() = %v, want 0", cfg.SubmitRate())
	}
}

func TestNew_HTTPPredictorRequiresURL(t *testing.T) {
	t.Setenv(EnvPredictor, "http")

	if _, err := New(); err == nil {
		t.Fatal("expected error when predict URL is missing")
	}

	t.Setenv(EnvPredictURL, "http://localhost:9000/predict")
	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Predictor() != PredictorHTTP {
		t.Errorf("Predictor() = %q, want %q", cfg.Predictor(), PredictorHTTP)
	}
}
