package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir        string // Directory holding CMA, correlation, returns and beta files
	ReturnsDBPath  string // Optional SQLite store for monthly return series ("" = disabled)
	LogLevel       string
	Port           int
	DevMode        bool
	ReloadSchedule string  // cron expression for the dataset reload job ("" = disabled)
	RiskFreeRate   float64 // annual risk-free rate used for Sharpe ratios
	EWMADecay      float64 // default EWMA decay for covariance estimation
	MinPeriods     int     // minimum observations before EWMA weighting kicks in
	MinObservations int    // minimum overlap for factor regressions
	CVFolds        int     // cross-validation folds for the lasso penalty search
	FrontierPoints int     // default number of frontier points
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Determine data directory with fallback logic
	dataDir := getEnv("DATA_DIR", "")
	if dataDir == "" {
		if _, err := os.Stat("../data"); err == nil {
			dataDir = "../data"
		} else {
			dataDir = "./data"
		}
	}

	cfg := &Config{
		DataDir:         dataDir,
		ReturnsDBPath:   getEnv("RETURNS_DB_PATH", ""),
		Port:            getEnvAsInt("PORT", 8001),
		DevMode:         getEnvAsBool("DEV_MODE", false),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		ReloadSchedule:  getEnv("RELOAD_SCHEDULE", "0 0 2 * * *"), // 02:00 nightly
		RiskFreeRate:    getEnvAsFloat("RISK_FREE_RATE", 0.03),
		EWMADecay:       getEnvAsFloat("EWMA_DECAY", 0.94),
		MinPeriods:      getEnvAsInt("MIN_PERIODS", 12),
		MinObservations: getEnvAsInt("MIN_OBSERVATIONS", 24),
		CVFolds:         getEnvAsInt("CV_FOLDS", 5),
		FrontierPoints:  getEnvAsInt("FRONTIER_POINTS", 50),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that configuration values are usable
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.EWMADecay <= 0 || c.EWMADecay >= 1 {
		return fmt.Errorf("EWMA decay must be in (0, 1), got %v", c.EWMADecay)
	}
	if c.FrontierPoints < 2 {
		return fmt.Errorf("frontier needs at least 2 points, got %d", c.FrontierPoints)
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}
