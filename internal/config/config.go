package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir   string // Base directory for the SQLite database (defaults to "./data" or "../data")
	Port      int
	LogLevel  string
	LogPretty bool

	// IBM Quantum runtime credential. Both optional: without a token every
	// run samples locally. A request can still carry its own token.
	IBMQBaseURL string
	IBMQToken   string

	// Variational solve parameters. Zero values defer to the engine
	// defaults (depth 2, 1024 shots).
	QAOADepth int
	QAOAShots int
	QAOASeed  int64

	// Nightly benchmark/price refresh job.
	PriceSyncEnabled bool
	PriceSyncCron    string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Determine data directory with fallback logic
	dataDir := getEnv("DATA_DIR", "")
	if dataDir == "" {
		if _, err := os.Stat("./data"); err == nil {
			dataDir = "./data"
		} else if _, err := os.Stat("../data"); err == nil {
			dataDir = "../data"
		} else {
			dataDir = "./data"
		}
	}

	cfg := &Config{
		DataDir:          dataDir,
		Port:             getEnvAsInt("PORT", 8080),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogPretty:        getEnvAsBool("LOG_PRETTY", true),
		IBMQBaseURL:      getEnv("IBMQ_API_URL", ""),
		IBMQToken:        getEnv("IBMQ_API_TOKEN", ""),
		QAOADepth:        getEnvAsInt("QAOA_DEPTH", 0),
		QAOAShots:        getEnvAsInt("QAOA_SHOTS", 0),
		QAOASeed:         int64(getEnvAsInt("QAOA_SEED", 0)),
		PriceSyncEnabled: getEnvAsBool("PRICE_SYNC_ENABLED", true),
		PriceSyncCron:    getEnv("PRICE_SYNC_CRON", "0 30 22 * * MON-FRI"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d: must be in 1-65535", c.Port)
	}
	if c.QAOADepth < 0 {
		return fmt.Errorf("invalid QAOA_DEPTH %d: must be non-negative", c.QAOADepth)
	}
	if c.QAOAShots < 0 {
		return fmt.Errorf("invalid QAOA_SHOTS %d: must be non-negative", c.QAOAShots)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
