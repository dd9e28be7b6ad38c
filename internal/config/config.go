package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Backend  BackendConfig
	Channel  ChannelConfig
	Database DatabaseConfig
	Bridge   BridgeConfig
	Tracing  TracingConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	HubLogFilePath     string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	ConsoleEcho        bool
}

// BackendConfig points at the analysis backend. Both origins can be
// overridden independently because the channel may sit behind a different proxy.
type BackendConfig struct {
	APIBaseURL     string
	WSBaseURL      string
	RequestTimeout time.Duration
	FetchRetries   uint
}

type ChannelConfig struct {
	MaxReconnectAttempts int
	ReconnectBaseDelay   time.Duration
	PingInterval         time.Duration
}

type DatabaseConfig struct {
	Connection string
}

type BridgeConfig struct {
	JwtSecret        string
	StrictBatch      bool
	DocumentCacheTTL time.Duration
}

// TracingConfig controls the OTLP exporter. The trace context propagator is
// installed regardless.
type TracingConfig struct {
	Enabled     bool
	Endpoint    string
	Insecure    bool
	ServiceName string
	SampleRatio float64
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	apiBase := strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:8000"), "/")

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/client.log"),
			HubLogFilePath:     getEnv("HUB_LOG_FILE_PATH", "logs/hub.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", ""),
			ConsoleEcho:        getEnvAsBool("CONSOLE_ECHO", true),
		},
		Backend: BackendConfig{
			APIBaseURL:     apiBase,
			WSBaseURL:      strings.TrimRight(getEnv("WS_BASE_URL", deriveWSBase(apiBase)), "/"),
			RequestTimeout: time.Duration(getEnvAsInt("REQUEST_TIMEOUT_SECONDS", 30)) * time.Second,
			FetchRetries:   uint(getEnvAsInt("FETCH_RETRIES", 3)),
		},
		Channel: ChannelConfig{
			MaxReconnectAttempts: getEnvAsInt("RECONNECT_MAX_ATTEMPTS", 5),
			ReconnectBaseDelay:   time.Duration(getEnvAsInt("RECONNECT_BASE_DELAY_MS", 2000)) * time.Millisecond,
			PingInterval:         time.Duration(getEnvAsInt("PING_INTERVAL_SECONDS", 30)) * time.Second,
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Bridge: BridgeConfig{
			JwtSecret:        getEnv("BRIDGE_JWT_SECRET", ""),
			StrictBatch:      getEnvAsBool("STRICT_BATCH_DECISIONS", false),
			DocumentCacheTTL: time.Duration(getEnvAsInt("DOCUMENT_CACHE_TTL_MINUTES", 30)) * time.Minute,
		},
		Tracing: TracingConfig{
			Enabled:     getEnvAsBool("OTEL_ENABLED", false),
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			Insecure:    getEnvAsBool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getEnv("OTEL_SERVICE_NAME", "legal-review-client"),
			SampleRatio: getEnvAsFloat("OTEL_TRACES_SAMPLE_RATIO", 1),
		},
	}
}

// deriveWSBase maps http(s)://host to ws(s)://host.
func deriveWSBase(apiBase string) string {
	switch {
	case strings.HasPrefix(apiBase, "https://"):
		return "wss://" + strings.TrimPrefix(apiBase, "https://")
	case strings.HasPrefix(apiBase, "http://"):
		return "ws://" + strings.TrimPrefix(apiBase, "http://")
	default:
		return apiBase
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}
