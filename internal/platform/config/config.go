package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file from the current working directory and sets
// environment variables. If .env does not exist, Load returns an error but
// callers can ignore it and use system env or defaults. Pass one or more paths
// to load from specific files (e.g. ".env"); with no paths, ".env" is used.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// GetEnv returns the value of the environment variable named by key, or fallback
// if the variable is unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// GetEnvInt returns the integer value of the environment variable named by key,
// or fallback if the variable is unset, empty, or not a valid integer.
func GetEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}

// GetEnvFloat returns the float value of the environment variable named by key,
// or fallback if the variable is unset, empty, or not a valid number.
func GetEnvFloat(key string, fallback float64) float64 {
	if s := os.Getenv(key); s != "" {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return fallback
}

// GetEnvDuration returns the duration value (e.g. "10s") of the environment
// variable named by key, or fallback if unset, empty, or unparsable.
func GetEnvDuration(key string, fallback time.Duration) time.Duration {
	if s := os.Getenv(key); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			return d
		}
	}
	return fallback
}

// Config is the process configuration read from the environment.
type Config struct {
	Port      string
	LogLevel  string
	LogFormat string

	// HeyGenAPIKey is the server-held vendor key; it never leaves the server.
	HeyGenAPIKey  string
	HeyGenBaseURL string
	VendorTimeout time.Duration

	// RenderFPS paces every session's chroma-key loop.
	RenderFPS int
	// MaxFrameBytes bounds a single websocket frame message.
	MaxFrameBytes int

	ChromaMinHue        float64
	ChromaMaxHue        float64
	ChromaMinSaturation float64
	ChromaThreshold     float64
	ChromaResidualAlpha int
	ChromaSoftenRadius  float64
	ChromaSoftenOrder   string
	ChromaBackground    string
}

// FromEnv builds a Config from environment variables, using defaults for
// anything unset.
func FromEnv() Config {
	return Config{
		Port:      GetEnv("PORT", "8080"),
		LogLevel:  GetEnv("LOG_LEVEL", "info"),
		LogFormat: GetEnv("LOG_FORMAT", "json"),

		HeyGenAPIKey:  os.Getenv("HEYGEN_API_KEY"),
		HeyGenBaseURL: GetEnv("HEYGEN_BASE_URL", "https://api.heygen.com"),
		VendorTimeout: GetEnvDuration("VENDOR_TIMEOUT", 15*time.Second),

		RenderFPS:     GetEnvInt("RENDER_FPS", 30),
		MaxFrameBytes: GetEnvInt("MAX_FRAME_BYTES", 8<<20),

		ChromaMinHue:        GetEnvFloat("CHROMA_MIN_HUE", 60),
		ChromaMaxHue:        GetEnvFloat("CHROMA_MAX_HUE", 180),
		ChromaMinSaturation: GetEnvFloat("CHROMA_MIN_SATURATION", 0.1),
		ChromaThreshold:     GetEnvFloat("CHROMA_THRESHOLD", 1.0),
		ChromaResidualAlpha: GetEnvInt("CHROMA_RESIDUAL_ALPHA", 0),
		ChromaSoftenRadius:  GetEnvFloat("CHROMA_SOFTEN_RADIUS", 1),
		ChromaSoftenOrder:   GetEnv("CHROMA_SOFTEN_ORDER", "after"),
		ChromaBackground:    GetEnv("CHROMA_BACKGROUND", "transparent"),
	}
}
