package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	App        AppConfig
	Firebase   FirebaseConfig
	Store      StoreConfig
	Gemini     GeminiConfig
	ElevenLabs ElevenLabsConfig
	ImgBB      ImgBBConfig
	Upload     UploadConfig
	Cloudinary CloudinaryConfig
	MinIO      MinIOConfig
	Redis      RedisConfig
	RateLimit  RateLimitConfig
}

type ServerConfig struct {
	Port           string
	AllowedOrigins []string
}

type AppConfig struct {
	Environment   string
	LogLevel      string
	Version       string
	ServiceName   string
	PublicBaseURL string
}

// FirebaseConfig locates the service account used for both token
// verification and Firestore access. An empty CredentialsPath falls back to
// Application Default Credentials.
type FirebaseConfig struct {
	CredentialsPath string
	ProjectID       string
	AuthDisabled    bool
}

type StoreConfig struct {
	Driver string
}

type GeminiConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type ElevenLabsConfig struct {
	APIKey  string
	BaseURL string
}

type ImgBBConfig struct {
	APIKey  string
	BaseURL string
}

type UploadConfig struct {
	Driver string
}

type CloudinaryConfig struct {
	CloudName    string
	APIKey       string
	APISecret    string
	UploadPrefix string
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicURL, when set, is the base for permanent object URLs. Without it
	// objects are served through presigned links.
	PublicURL string
	Region    string
}

type RedisConfig struct {
	Addr              string
	Password          string
	DB                int
	InflightTTLSecond int
}

type RateLimitConfig struct {
	RPS   float64
	Burst int
}

const (
	StoreDriverFirestore = "firestore"
	StoreDriverMemory    = "memory"

	UploadDriverCloudinary = "cloudinary"
	UploadDriverMinIO      = "minio"
)

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		App: AppConfig{
			Environment:   getEnv("APP_ENV", "development"),
			LogLevel:      getEnv("LOG_LEVEL", "info"),
			Version:       getEnv("APP_VERSION", "1.0.0"),
			ServiceName:   getEnv("SERVICE_NAME", "exteriorai-backend"),
			PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:3000"), "/"),
		},
		Firebase: FirebaseConfig{
			CredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", ""),
			ProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),
			AuthDisabled:    getEnvAsBool("AUTH_DISABLED", false),
		},
		Store: StoreConfig{
			Driver: getEnv("STORE_DRIVER", StoreDriverFirestore),
		},
		Gemini: GeminiConfig{
			APIKey:  getEnv("GOOGLE_API_KEY", ""),
			BaseURL: getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
			Model:   getEnv("GEMINI_MODEL", "gemini-2.0-flash-exp-image-generation"),
		},
		ElevenLabs: ElevenLabsConfig{
			APIKey:  getEnv("ELEVENLABS_API_KEY", ""),
			BaseURL: getEnv("ELEVENLABS_BASE_URL", "https://api.elevenlabs.io"),
		},
		ImgBB: ImgBBConfig{
			APIKey:  getEnv("IMGBB_API_KEY", ""),
			BaseURL: getEnv("IMGBB_BASE_URL", "https://api.imgbb.com"),
		},
		Upload: UploadConfig{
			Driver: getEnv("UPLOAD_DRIVER", UploadDriverCloudinary),
		},
		Cloudinary: CloudinaryConfig{
			CloudName:    getEnv("CLOUDINARY_CLOUD_NAME", ""),
			APIKey:       getEnv("CLOUDINARY_API_KEY", ""),
			APISecret:    getEnv("CLOUDINARY_API_SECRET", ""),
			UploadPrefix: strings.TrimRight(getEnv("CLOUDINARY_UPLOAD_PREFIX", ""), "/"),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", "exteriorai"),
			UseSSL:    getEnvAsBool("MINIO_USE_SSL", false),
			PublicURL: strings.TrimRight(getEnv("MINIO_PUBLIC_URL", ""), "/"),
			Region:    getEnv("MINIO_REGION", ""),
		},
		Redis: RedisConfig{
			Addr:              getEnv("REDIS_ADDR", ""),
			Password:          getEnv("REDIS_PASSWORD", ""),
			DB:                getEnvAsInt("REDIS_DB", 0),
			InflightTTLSecond: getEnvAsInt("INFLIGHT_TTL_SECONDS", 240),
		},
		RateLimit: RateLimitConfig{
			RPS:   getEnvAsFloat("RATE_LIMIT_RPS", 1),
			Burst: getEnvAsInt("RATE_LIMIT_BURST", 5),
		},
	}

	if cfg.IsProduction() {
		cfg.Firebase.AuthDisabled = false
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks structural settings only. Missing API keys surface when
// the endpoint that needs them is called.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	switch c.Store.Driver {
	case StoreDriverFirestore, StoreDriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreDriverFirestore, StoreDriverMemory, c.Store.Driver)
	}

	switch c.Upload.Driver {
	case UploadDriverCloudinary, UploadDriverMinIO:
	default:
		return fmt.Errorf("UPLOAD_DRIVER must be %q or %q, got %q", UploadDriverCloudinary, UploadDriverMinIO, c.Upload.Driver)
	}

	if c.RateLimit.RPS < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must not be negative")
	}

	if c.Redis.InflightTTLSecond <= 0 {
		return fmt.Errorf("INFLIGHT_TTL_SECONDS must be positive")
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid integer for %s, using default: %d", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Warning: Invalid number for %s, using default: %g", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid boolean for %s, using default: %t", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
