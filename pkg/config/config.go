package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort      string
	FirebaseProject string
	FirebaseApiKey  string
	StorageBucket   string
	Environment     string
	JWTSecret       string
	JWTExpiry       int64

	// Messaging knobs
	ReuseConversations   bool          // reuse an existing direct conversation for the same pair
	HandshakeTimeout     time.Duration // bound on websocket credential verification
	PresenceSweepEvery   time.Duration
	PresenceStaleAfter   time.Duration
	NotifyDedupWindow    time.Duration // suppression window for activity-style notifications
	EventQueueSize       int
}

func Load() (*Config, error) {
	godotenv.Load()

	config := &Config{
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		FirebaseProject: getEnv("FIREBASE_PROJECT_ID", ""),
		FirebaseApiKey:  getEnv("FIREBASE_API_KEY", ""),
		StorageBucket:   getEnv("STORAGE_BUCKET", ""),
		Environment:     getEnv("ENVIRONMENT", "development"),
		JWTSecret:       getEnv("JWT_SECRET", "your-secret-key"),
		JWTExpiry:       getEnvAsInt64("JWT_EXPIRY", 24*60*60), // 24 hours

		ReuseConversations: getEnvAsBool("CHAT_REUSE_EXISTING", true),
		HandshakeTimeout:   getEnvAsDuration("WS_HANDSHAKE_TIMEOUT", 5*time.Second),
		PresenceSweepEvery: getEnvAsDuration("PRESENCE_SWEEP_INTERVAL", 30*time.Second),
		PresenceStaleAfter: getEnvAsDuration("PRESENCE_STALE_AFTER", 2*time.Minute),
		NotifyDedupWindow:  getEnvAsDuration("NOTIFY_DEDUP_WINDOW", time.Hour),
		EventQueueSize:     int(getEnvAsInt64("EVENT_QUEUE_SIZE", 256)),
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		boolValue, err := strconv.ParseBool(value)
		if err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return defaultValue
}
