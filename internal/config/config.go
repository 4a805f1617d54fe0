package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var AppEnv Config

type Config struct {
	Port        string
	MongoURI    string
	DBName      string
	JWTSecret   string
	TokenTTL    time.Duration
	UploadDir   string
	CORSOrigins []string
	AdminEmails []string

	RazorpayKeyID     string
	RazorpayKeySecret string

	KafkaBrokers     []string
	KafkaTopicPrefix string

	MaxQuantityPerProduct int
	MaxDailyPurchase      float64
}

func Load() {
	if err := godotenv.Load(); err != nil {
		log.Println(".env not loaded:", err)
	}
	AppEnv = FromEnv()
}

// FromEnv reads the configuration without touching .env files.
func FromEnv() Config {
	return Config{
		Port:        getEnvOrDefault("PORT", "5001"),
		MongoURI:    getEnvOrDefault("MONGO_URI", ""),
		DBName:      getEnvOrDefault("DB_NAME", "expiryeaze"),
		JWTSecret:   getEnvOrDefault("JWT_SECRET", ""),
		TokenTTL:    getDurationEnv("TOKEN_TTL_DAYS", 7, 24*time.Hour),
		UploadDir:   getEnvOrDefault("UPLOAD_DIR", "./uploads"),
		CORSOrigins: getListEnv("CORS_ORIGINS", []string{"*"}),
		AdminEmails: lowerAll(getListEnv("ADMIN_EMAILS", nil)),

		RazorpayKeyID:     getEnvOrDefault("RAZORPAY_KEY_ID", ""),
		RazorpayKeySecret: getEnvOrDefault("RAZORPAY_KEY_SECRET", ""),

		KafkaBrokers:     getListEnv("KAFKA_BROKERS", nil),
		KafkaTopicPrefix: getEnvOrDefault("KAFKA_TOPIC_PREFIX", "expiryeaze"),

		MaxQuantityPerProduct: getIntEnv("MAX_QUANTITY_PER_PRODUCT", 50),
		MaxDailyPurchase:      getFloatEnv("MAX_DAILY_PURCHASE", 5000),
	}
}

func (c Config) Validate() error {
	var missing []string
	if c.MongoURI == "" {
		missing = append(missing, "MONGO_URI")
	}
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return errors.New("missing required env: " + strings.Join(missing, ", "))
	}
	return nil
}

// IsAdminEmail reports whether the account should carry the reviewer role.
func (c Config) IsAdminEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, admin := range c.AdminEmails {
		if admin == email {
			return true
		}
	}
	return false
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue int, unit time.Duration) time.Duration {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return time.Duration(parsed) * unit
		}
	}
	return time.Duration(defaultValue) * unit
}

func getIntEnv(key string, defaultValue int) int {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func lowerAll(values []string) []string {
	for i, v := range values {
		values[i] = strings.ToLower(v)
	}
	return values
}
