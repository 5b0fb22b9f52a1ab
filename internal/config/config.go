package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	App   AppConfig
	Agent AgentConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	Environment        string
	LogFilePath        string
	TranscriptLogPath  string
	CorsAllowedOrigins string
	RedisURL           string
}

type AgentConfig struct {
	Endpoint           string
	APIKey             string
	ModelDeployment    string
	SearchConnectionID string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "8000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:8000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log"),
			TranscriptLogPath:  getEnv("AGENT_TRANSCRIPT_LOG_PATH", "agent_transcript.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000"),
			RedisURL:           getEnv("REDIS_URL", ""),
		},
		Agent: AgentConfig{
			Endpoint:           getEnv("AGENT_SERVICE_ENDPOINT", "http://localhost:7071"),
			APIKey:             getEnv("AGENT_SERVICE_API_KEY", ""),
			ModelDeployment:    getEnv("MODEL_DEPLOYMENT_NAME", "gpt-4o-mini"),
			SearchConnectionID: getEnv("SEARCH_CONNECTION_ID", ""),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
