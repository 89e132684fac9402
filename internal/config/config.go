package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Gemini AI
	GeminiAPIKey string
	GeminiModel  string

	// Classifier artifact
	ModelPath         string
	ONNXLibPath       string
	ModelInputHeight  int
	ModelInputWidth   int
	ModelChannelOrder string

	// Uploads
	UploadPath  string
	MaxUploadMB int

	// Redis (optional, rate limit counters)
	RedisURL           string
	RateLimitPerMinute int
	// Honour X-Forwarded-For / X-Real-IP only behind a proxy that sets them.
	TrustProxy bool

	// JWT (optional, empty disables auth)
	JWTSecret string

	// Frontend
	FrontendURL string

	// CLI
	APIURL   string
	APIToken string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:               getEnvOrDefault("PORT", "8000"),
		Env:                getEnvOrDefault("ENV", "development"),
		GeminiAPIKey:       getEnvOrDefault("GEMINI_API_KEY", ""),
		GeminiModel:        getEnvOrDefault("GEMINI_MODEL", "gemini-2.5-flash"),
		ModelPath:          getEnvOrDefault("MODEL_PATH", "model/vgg_tuned.onnx"),
		ONNXLibPath:        getEnvOrDefault("ONNX_LIB_PATH", ""),
		ModelInputHeight:   getEnvAsIntOrDefault("MODEL_INPUT_HEIGHT", 0),
		ModelInputWidth:    getEnvAsIntOrDefault("MODEL_INPUT_WIDTH", 0),
		ModelChannelOrder:  strings.ToLower(getEnvOrDefault("MODEL_CHANNEL_ORDER", "")),
		UploadPath:         getEnvOrDefault("UPLOAD_PATH", "./uploads"),
		MaxUploadMB:        getEnvAsIntOrDefault("MAX_UPLOAD_MB", 20),
		RedisURL:           getEnvOrDefault("REDIS_URL", ""),
		RateLimitPerMinute: getEnvAsIntOrDefault("RATE_LIMIT_PER_MINUTE", 60),
		TrustProxy:         getEnvAsBoolOrDefault("TRUST_PROXY", false),
		JWTSecret:          getEnvOrDefault("JWT_SECRET", ""),
		FrontendURL:        getEnvOrDefault("FRONTEND_URL", "http://localhost:8501"),
		APIURL:             getEnvOrDefault("XPERT_API_URL", "http://localhost:8000"),
		APIToken:           getEnvOrDefault("XPERT_API_TOKEN", ""),
	}

	return cfg
}

// Validate rejects values the server cannot run with.
func (c *Config) Validate() error {
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive, got %d", c.MaxUploadMB)
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive, got %d", c.RateLimitPerMinute)
	}
	if c.ModelInputHeight < 0 || c.ModelInputWidth < 0 {
		return fmt.Errorf("model input size must not be negative (%dx%d)", c.ModelInputHeight, c.ModelInputWidth)
	}
	switch c.ModelChannelOrder {
	case "", "channels_last", "channels_first":
	default:
		return fmt.Errorf("MODEL_CHANNEL_ORDER must be channels_last or channels_first, got %q", c.ModelChannelOrder)
	}
	return nil
}

// MaxUploadBytes is the multipart body limit for /analyze.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsBoolOrDefault(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}
