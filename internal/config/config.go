// Package config provides configuration management for the MovieScript web front end.
// Configuration is loaded from environment variables with sensible defaults.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	// Default values
	DefaultPort       = 5001
	DefaultHost       = "127.0.0.1"
	DefaultLogLevel   = "info"
	DefaultDataDir    = ".moviescript"
	DefaultSecretKey  = "change-me-in-prod"
	DefaultRepo       = "gaurav0809225/moviescript"
	DefaultRevision   = "main"
	DefaultHubURL     = "https://huggingface.co"
	DefaultClassFile  = "MovieScript.py"
	DefaultModelFile  = "all_models.pkl"
	DefaultPredictor  = PredictorProcess
	DefaultResultTTL  = 10 * time.Minute
	DefaultSubmitRate = 2.0

	// Predictor backends
	PredictorProcess = "process"
	PredictorHTTP    = "http"

	// Environment variable names
	EnvPort        = "PORT"
	EnvHost        = "MOVIESCRIPT_HOST"
	EnvSecretKey   = "SECRET_KEY"
	EnvLogLevel    = "MOVIESCRIPT_LOG_LEVEL"
	EnvDataDir     = "MOVIESCRIPT_DATA_DIR"
	EnvCacheDir    = "MOVIESCRIPT_CACHE_DIR"
	EnvRepo        = "MOVIESCRIPT_REPO"
	EnvRevision    = "MOVIESCRIPT_REVISION"
	EnvHubURL      = "MOVIESCRIPT_HUB_URL"
	EnvHubToken    = "HF_TOKEN"
	EnvClassFile   = "MOVIESCRIPT_CLASS_FILE"
	EnvModelFile   = "MOVIESCRIPT_MODEL_FILE"
	EnvPredictor   = "MOVIESCRIPT_PREDICTOR"
	EnvPython      = "MOVIESCRIPT_PYTHON"
	EnvPredictURL  = "MOVIESCRIPT_PREDICT_URL"
	EnvPreload     = "MOVIESCRIPT_PRELOAD"
	EnvResultTTL   = "MOVIESCRIPT_RESULT_TTL"
	EnvSubmitRate  = "MOVIESCRIPT_SUBMIT_RATE"
	EnvVocabFile   = "MOVIESCRIPT_VOCAB_FILE"
	EnvCORSOrigins = "MOVIESCRIPT_CORS_ORIGINS"

	// Database filename
	DBFilename = "moviescript.db"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	Host() string
	Addr() string
	SecretKey() string
	UsingDefaultSecret() bool
	LogLevel() string
	DataDir() string
	DBPath() string
	CacheDir() string
	Repo() string
	Revision() string
	HubURL() string
	HubToken() string
	ClassFile() string
	ModelFile() string
	Predictor() string
	PythonPath() string
	PredictURL() string
	Preload() bool
	ResultTTL() time.Duration
	SubmitRate() float64
	VocabFile() string
	CORSOrigins() []string
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port      int
	host      string
	secretKey string
	logLevel  string
	dataDir   string
	cacheDir  string

	repo      string
	revision  string
	hubURL    string
	hubToken  string
	classFile string
	modelFile string

	predictor  string
	pythonPath string
	predictURL string
	preload    bool

	resultTTL   time.Duration
	submitRate  float64
	vocabFile   string
	corsOrigins []string
}

// New creates a new EnvConfig with defaults and environment variable overrides
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:        DefaultPort,
		host:        DefaultHost,
		secretKey:   DefaultSecretKey,
		logLevel:    DefaultLogLevel,
		dataDir:     defaultDataDir(),
		repo:        DefaultRepo,
		revision:    DefaultRevision,
		hubURL:      DefaultHubURL,
		classFile:   DefaultClassFile,
		modelFile:   DefaultModelFile,
		predictor:   DefaultPredictor,
		preload:     true,
		resultTTL:   DefaultResultTTL,
		submitRate:  DefaultSubmitRate,
		corsOrigins: []string{"*"},
	}

	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	overrideString(&cfg.host, EnvHost)
	overrideString(&cfg.secretKey, EnvSecretKey)
	overrideString(&cfg.logLevel, EnvLogLevel)
	overrideString(&cfg.dataDir, EnvDataDir)
	overrideString(&cfg.cacheDir, EnvCacheDir)
	overrideString(&cfg.repo, EnvRepo)
	overrideString(&cfg.revision, EnvRevision)
	overrideString(&cfg.hubURL, EnvHubURL)
	overrideString(&cfg.classFile, EnvClassFile)
	overrideString(&cfg.modelFile, EnvModelFile)
	overrideString(&cfg.vocabFile, EnvVocabFile)

	cfg.hubToken = os.Getenv(EnvHubToken)
	cfg.pythonPath = os.Getenv(EnvPython)
	cfg.predictURL = os.Getenv(EnvPredictURL)
	cfg.hubURL = strings.TrimRight(cfg.hubURL, "/")

	if pr := os.Getenv(EnvPredictor); pr != "" {
		pr = strings.ToLower(strings.TrimSpace(pr))
		if pr != PredictorProcess && pr != PredictorHTTP {
			return nil, fmt.Errorf("invalid %s: must be %q or %q", EnvPredictor, PredictorProcess, PredictorHTTP)
		}
		cfg.predictor = pr
	}
	if cfg.predictor == PredictorHTTP && cfg.predictURL == "" {
		return nil, fmt.Errorf("%s is required when %s=%s", EnvPredictURL, EnvPredictor, PredictorHTTP)
	}

	if pl := os.Getenv(EnvPreload); pl != "" {
		preload, err := strconv.ParseBool(pl)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPreload, err)
		}
		cfg.preload = preload
	}

	if ttl := os.Getenv(EnvResultTTL); ttl != "" {
		d, err := time.ParseDuration(ttl)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvResultTTL, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("invalid %s: must be positive", EnvResultTTL)
		}
		cfg.resultTTL = d
	}

	if sr := os.Getenv(EnvSubmitRate); sr != "" {
		rate, err := strconv.ParseFloat(sr, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvSubmitRate, err)
		}
		if rate < 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
			return nil, fmt.Errorf("invalid %s: must be zero (unlimited) or positive", EnvSubmitRate)
		}
		cfg.submitRate = rate
	}

	if co := os.Getenv(EnvCORSOrigins); co != "" {
		cfg.corsOrigins = splitList(co)
	}

	return cfg, nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// Host returns the HTTP bind address
func (c *EnvConfig) Host() string {
	return c.host
}

// Addr returns host:port for the HTTP listener
func (c *EnvConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.host, c.port)
}

// SecretKey returns the secret used to sign session cookies and CSRF tokens
func (c *EnvConfig) SecretKey() string {
	return c.secretKey
}

// UsingDefaultSecret reports whether SECRET_KEY was left at its placeholder value
func (c *EnvConfig) UsingDefaultSecret() bool {
	return c.secretKey == DefaultSecretKey
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// CacheDir returns the artifact cache directory path
func (c *EnvConfig) CacheDir() string {
	if c.cacheDir != "" {
		return c.cacheDir
	}
	return filepath.Join(c.dataDir, "cache")
}

// Repo returns the remote repository holding the model artifacts
func (c *EnvConfig) Repo() string {
	return c.repo
}

func (c *EnvConfig) Revision() string {
	return c.revision
}

func (c *EnvConfig) HubURL() string {
	return c.hubURL
}

func (c *EnvConfig) HubToken() string {
	return c.hubToken
}

// ClassFile returns the filename of the model class definition artifact
func (c *EnvConfig) ClassFile() string {
	return c.classFile
}

// ModelFile returns the filename of the serialized model weights artifact
func (c *EnvConfig) ModelFile() string {
	return c.modelFile
}

// Predictor returns the predictor backend (process or http)
func (c *EnvConfig) Predictor() string {
	return c.predictor
}

func (c *EnvConfig) PythonPath() string {
	return c.pythonPath
}

func (c *EnvConfig) PredictURL() string {
	return c.predictURL
}

// Preload reports whether the model should be initialised at startup
func (c *EnvConfig) Preload() bool {
	return c.preload
}

// ResultTTL returns how long a pending result survives before expiring
func (c *EnvConfig) ResultTTL() time.Duration {
	return c.resultTTL
}

// SubmitRate returns the allowed submissions per second
func (c *EnvConfig) SubmitRate() float64 {
	return c.submitRate
}

func (c *EnvConfig) VocabFile() string {
	return c.vocabFile
}

func (c *EnvConfig) CORSOrigins() []string {
	return c.corsOrigins
}

func overrideString(dst *string, env string) {
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		*dst = v
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
