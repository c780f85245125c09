package config

import (
	"os"
	"strconv"
	"strings"
)

type ConfigStruct struct {
	Options Options
	Model   ModelConfig
	Youtube YoutubeConfig
	Spotify SpotifyConfig
	Cache   CacheConfig
	Sentry  SentryConfig
}

type Options struct {
	Port               string
	LogLevel           string
	IdleTimeoutMinutes int
	MaxContextTurns    int
}

type ModelConfig struct {
	Provider      string
	GeminiAPIKey  string
	GeminiModel   string
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string
}

type YoutubeConfig struct {
	APIKey        string
	YtDlpPath     string
	SocketTimeout int // seconds
	Attempts      int
	AudioFormat   string
}

type SpotifyConfig struct {
	ClientID     string
	ClientSecret string
	Enabled      bool
}

type CacheConfig struct {
	DBPath     string
	TTLMinutes int
}

type SentryConfig struct {
	DSN     string
	Release string
}

const (
	ProviderGemini  = "gemini"
	ProviderOpenAI  = "openai"
	ProviderOffline = "offline"
)

func (s *SpotifyConfig) IsEnabled() bool {
	return s.Enabled && s.ClientID != "" && s.ClientSecret != ""
}

func (s *SentryConfig) IsEnabled() bool {
	return s.DSN != ""
}

var Config *ConfigStruct

func NewConfig() {
	config := &ConfigStruct{
		Options: Options{
			Port:               getEnvDefault("PORT", "8080"),
			LogLevel:           getEnvDefault("LOG_LEVEL", "info"),
			IdleTimeoutMinutes: getIdleTimeout(),
			MaxContextTurns:    getMaxContextTurns(),
		},
		Model: ModelConfig{
			GeminiAPIKey:  os.Getenv("GEMINI_API_KEY"),
			GeminiModel:   getEnvDefault("GEMINI_MODEL", "gemini-2.0-flash"),
			OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
			OpenAIModel:   getEnvDefault("OPENAI_MODEL", "gpt-3.5-turbo"),
			OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),
		},
		Youtube: YoutubeConfig{
			APIKey:        os.Getenv("YOUTUBE_API_KEY"),
			YtDlpPath:     getEnvDefault("YTDLP_PATH", "yt-dlp"),
			SocketTimeout: getSocketTimeout(),
			Attempts:      getYtDlpAttempts(),
			AudioFormat:   getEnvDefault("AUDIO_FORMAT", "audio/webm"),
		},
		Spotify: SpotifyConfig{
			ClientID:     os.Getenv("SPOTIFY_CLIENT_ID"),
			ClientSecret: os.Getenv("SPOTIFY_CLIENT_SECRET"),
			Enabled:      os.Getenv("SPOTIFY_ENABLED") == "true",
		},
		Cache: CacheConfig{
			DBPath:     getEnvDefault("DB_PATH", ":memory:"),
			TTLMinutes: getCacheTTL(),
		},
		Sentry: SentryConfig{
			DSN:     os.Getenv("SENTRY_DSN"),
			Release: os.Getenv("RELEASE"),
		},
	}
	config.Model.Provider = getProvider(config.Model)

	Config = config
}

func getEnvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getProvider honours MODEL_PROVIDER when it names a known backend, otherwise
// it picks the first backend that has credentials.
func getProvider(m ModelConfig) string {
	switch p := strings.ToLower(strings.TrimSpace(os.Getenv("MODEL_PROVIDER"))); p {
	case ProviderGemini, ProviderOpenAI, ProviderOffline:
		return p
	}
	if m.GeminiAPIKey != "" {
		return ProviderGemini
	}
	if m.OpenAIAPIKey != "" {
		return ProviderOpenAI
	}
	return ProviderOffline
}

func getIdleTimeout() int {
	timeoutStr := os.Getenv("SESSION_IDLE_TIMEOUT_MINUTES")
	if timeoutStr == "" {
		return 20
	}
	timeout, err := strconv.Atoi(timeoutStr)
	if err != nil || timeout <= 0 {
		return 20
	}
	return timeout
}

func getMaxContextTurns() int {
	return getClampedInt("MAX_CONTEXT_TURNS", 20, 1, 100)
}

func getSocketTimeout() int {
	return getClampedInt("YTDLP_SOCKET_TIMEOUT", 10, 1, 60)
}

func getYtDlpAttempts() int {
	return getClampedInt("YTDLP_ATTEMPTS", 3, 1, 5)
}

func getCacheTTL() int {
	return getClampedInt("AUDIO_CACHE_TTL_MINUTES", 60, 1, 360)
}

// getClampedInt falls back to def for empty, invalid or non-positive values
// and clamps everything else into [min, max].
func getClampedInt(key string, def, min, max int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return def
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil || value <= 0 {
		return def
	}
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
