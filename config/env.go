package config

import (
	"fmt"
	"os"
	"sync"

	"github.com/joho/godotenv"
)

// Config holds all environment configuration
type Config struct {
	// Database
	DatabaseHost     string
	DatabasePort     string
	PostgresUser     string
	PostgresPassword string
	DatabaseName     string

	// Authentication
	JWTSecret string

	// Discord
	DiscordBotToken string
	DiscordGuildID  string

	// Shared account used to follow scoring platforms
	CTFdBotUsername string
	CTFdBotEmail    string
	CTFdBotPassword string

	// Background jobs
	SolvePollSeconds int
	PresenceCron     string

	// Other
	KafkaBroker     string
	KafkaSolveTopic string
	HTTPPort        string
	Version         string
}

var (
	appConfig *Config
	onceEnv   sync.Once
)

// LoadConfig loads and validates all environment variables
func loadConfig() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	config := &Config{
		// Database - required
		DatabaseHost:     getEnvWithDefault("DATABASE_HOST", "localhost"),
		DatabasePort:     getEnvWithDefault("DATABASE_PORT", "5432"),
		PostgresUser:     getEnvWithDefault("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnvWithDefault("POSTGRES_PASSWORD", "postgres"),
		DatabaseName:     getEnvWithDefault("DATABASE_NAME", "postgres"),

		// JWT - required
		JWTSecret: getEnvWithDefault("JWT_SECRET", "dummyjwt"),

		// Discord - token required, guild only used to register commands in a dev guild
		DiscordBotToken: getEnv("DISCORD_BOT_TOKEN"),
		DiscordGuildID:  getEnvWithDefault("DISCORD_GUILD_ID", ""),

		// Scoring platform account - optional
		CTFdBotUsername: getEnvWithDefault("CTFD_BOT_USERNAME", "ctfbot"),
		CTFdBotEmail:    getEnvWithDefault("CTFD_BOT_EMAIL", ""),
		CTFdBotPassword: getEnvWithDefault("CTFD_BOT_PASSWORD", ""),

		SolvePollSeconds: getEnvAsInt("SOLVE_POLL_SECONDS", 60),
		PresenceCron:     getEnvWithDefault("PRESENCE_CRON", "*/10 * * * *"),

		// Other
		KafkaBroker:     getEnvWithDefault("KAFKA_BROKER", ""),
		KafkaSolveTopic: getEnvWithDefault("KAFKA_SOLVE_TOPIC", "ctf-solves"),
		HTTPPort:        getEnvWithDefault("HTTP_PORT", "8000"),
		Version:         getEnvWithDefault("VERSION", "dev"),
	}

	appConfig = config
	return config
}

func Env() *Config {
	onceEnv.Do(func() {
		appConfig = loadConfig()
	})
	return appConfig
}

// Helper functions
func getEnv(key string) string {
	value := os.Getenv(key)
	if value == "" && IsProduction() {
		panic(fmt.Sprintf("Required environment variable %s is not set", key))
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var value int
	_, err := fmt.Sscanf(valueStr, "%d", &value)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// IsProduction returns true if running in production
func IsProduction() bool {
	return getEnvWithDefault("ENVIRONMENT", "development") == "production"
}
