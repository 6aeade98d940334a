package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config stores the client configuration. Service base URLs differ per
// deployment (development vs. production) and are never hardcoded.
type Config struct {
	UserServiceURL  string // Base URL of the auth/user service
	MusicServiceURL string // Base URL of the music/catalog service
	SocketURL       string // WebSocket URL of the chat service
	DataDir         string // Directory for local state (session store database)
	WatchDir        string // Directory watched for files to auto-upload
	LogLevel        string
	LogPath         string
	HTTPTimeout     int     // Request timeout in seconds
	HTTPRateLimit   float64 // Max requests per second against the backend
	ChatRoom        string  // Default chat room
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvFloat gets an environment variable as float64 or returns a default value.
func getEnvFloat(key string, fallback float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override variables already set in the environment.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}

	dataDir := getEnv("DATA_DIR", filepath.Join(userHomeDir(), ".streamfm"))

	return &Config{
		UserServiceURL:  getEnv("USER_SERVICE_URL", "http://localhost:5000"),
		MusicServiceURL: getEnv("MUSIC_SERVICE_URL", "http://localhost:5000"),
		SocketURL:       getEnv("SOCKET_URL", "ws://localhost:5000/socket"),
		DataDir:         dataDir,
		WatchDir:        getEnv("WATCH_DIR", ""),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogPath:         getEnv("LOG_PATH", filepath.Join(dataDir, "logs", "streamfm.log")),
		HTTPTimeout:     getEnvInt("HTTP_TIMEOUT_SECONDS", 15),
		HTTPRateLimit:   getEnvFloat("HTTP_RATE_LIMIT", 10),
		ChatRoom:        getEnv("CHAT_ROOM", "general"),
	}
}

func userHomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
