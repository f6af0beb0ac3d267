package env

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv  string
	AppPort string
	TZ      string

	JWTSecret   string
	JWTIssuer   string
	JWTAudience string

	RedisURL string

	MongoURI string
	DBName   string

	// LLM responder (OpenAI)
	OpenAIApiKey    string
	OpenAIModel     string
	OpenAIMaxTokens int
	AITimeoutMs     int

	// STT (Deepgram)
	DeepgramApiKey   string
	DeepgramModel    string
	DeepgramLanguage string

	// TTS (ElevenLabs)
	ElevenLabsApiKey       string
	ElevenLabsVoiceID      string
	ElevenLabsModel        string
	ElevenLabsOutputFormat string

	// Telephony carrier (Exotel)
	ExotelSubdomain  string
	ExotelAccountSID string
	ExotelAPIKey     string
	ExotelAPIToken   string

	// Outbound integrations
	CalendarAPIBaseURL string
	CRMAPIBaseURL      string

	// Media session defaults
	MediaSampleRate int
	MediaBaseURL    string

	// Per-provider rates for call cost accounting
	STTRatePerMinute       float64
	LLMRatePer1KPrompt     float64
	LLMRatePer1KCompletion float64
	TTSRatePer1KChars      float64
	TelephonyRatePerMinute float64

	LogLevel           string
	CORSAllowedOrigins string

	OTELEndpoint string
	OTELEnabled  bool
}

func Load(envFile string) (*Config, error) {
	if envFile != "" {
		// Missing .env is fine; production supplies real environment
		// variables. Only a malformed file is an error.
		if err := godotenv.Load(envFile); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
		}
	}

	cfg := &Config{
		AppEnv:  getEnv("APP_ENV", "development"),
		AppPort: getEnv("APP_PORT", "8080"),
		TZ:      getEnv("TZ", "America/New_York"),

		JWTSecret:   mustGetEnv("JWT_SECRET"),
		JWTIssuer:   getEnv("JWT_ISSUER", "troika-voice-agent"),
		JWTAudience: getEnv("JWT_AUDIENCE", "voice-session"),

		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),

		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017"),
		DBName:   getEnv("DB_NAME", "voiceagent"),

		OpenAIApiKey:    getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:     getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIMaxTokens: getEnvInt("OPENAI_MAX_TOKENS", 1024),
		AITimeoutMs:     getEnvInt("AI_TIMEOUT_MS", 10000),

		DeepgramApiKey:   getEnv("DEEPGRAM_API_KEY", ""),
		DeepgramModel:    getEnv("DEEPGRAM_MODEL", "nova-2"),
		DeepgramLanguage: getEnv("DEEPGRAM_LANGUAGE", ""),

		ElevenLabsApiKey:       getEnv("ELEVENLABS_API_KEY", ""),
		ElevenLabsVoiceID:      getEnv("ELEVENLABS_VOICE_ID", "21m00Tcm4TlvDq8ikWAM"),
		ElevenLabsModel:        getEnv("ELEVENLABS_MODEL", "eleven_multilingual_v2"),
		ElevenLabsOutputFormat: getEnv("ELEVENLABS_OUTPUT_FORMAT", "pcm_16000"),

		ExotelSubdomain:  getEnv("EXOTEL_SUBDOMAIN", "api"),
		ExotelAccountSID: getEnv("EXOTEL_ACCOUNT_SID", ""),
		ExotelAPIKey:     getEnv("EXOTEL_API_KEY", ""),
		ExotelAPIToken:   getEnv("EXOTEL_API_TOKEN", ""),

		CalendarAPIBaseURL: getEnv("CALENDAR_API_BASE_URL", ""),
		CRMAPIBaseURL:      getEnv("CRM_API_BASE_URL", ""),

		MediaSampleRate: getEnvInt("MEDIA_SAMPLE_RATE", 16000),
		MediaBaseURL:    getEnv("MEDIA_BASE_URL", ""),

		STTRatePerMinute:       getEnvFloat("STT_RATE_PER_MINUTE", 0.0059),
		LLMRatePer1KPrompt:     getEnvFloat("LLM_RATE_PER_1K_PROMPT", 0.00015),
		LLMRatePer1KCompletion: getEnvFloat("LLM_RATE_PER_1K_COMPLETION", 0.0006),
		TTSRatePer1KChars:      getEnvFloat("TTS_RATE_PER_1K_CHARS", 0.18),
		TelephonyRatePerMinute: getEnvFloat("TELEPHONY_RATE_PER_MINUTE", 0.014),

		LogLevel:           getEnv("LOG_LEVEL", "info"),
		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),

		OTELEndpoint: getEnv("OTEL_ENDPOINT", ""),
		OTELEnabled:  getEnvBool("OTEL_ENABLED", false),
	}

	loc, err := time.LoadLocation(cfg.TZ)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %s: %w", cfg.TZ, err)
	}
	time.Local = loc

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustGetEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	strValue := os.Getenv(key)
	if strValue == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(strValue)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvFloat(key string, defaultValue float64) float64 {
	strValue := os.Getenv(key)
	if strValue == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(strValue, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	strValue := os.Getenv(key)
	if strValue == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(strValue)
	if err != nil {
		return defaultValue
	}
	return value
}
