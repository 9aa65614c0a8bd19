package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config - every setting the server reads from the environment
type Config struct {
	// Server
	Port string

	// Artifact directories
	DataDir           string
	UploadDir         string
	GeneratedImageDir string
	GeneratedVideoDir string

	// Gemini / Vertex AI
	GeminiAPIKey          string
	GeminiBackend         string
	VertexProject         string
	VertexLocation        string
	VertexCredentialsJSON string
	VertexCredentialsPath string
	ImageModel            string
	VideoModel            string
	VideoNegativePrompt   string
	VideoPollInterval     time.Duration
	VideoPollTimeout      time.Duration

	// Intent classification
	ClassifierProvider string
	ClassifierModel    string

	// Media tools
	FFmpegPath        string
	FFprobePath       string
	StillImageSeconds float64

	// Redis (optional, enables async video jobs)
	RedisHost     string
	RedisPort     string
	RedisUsername string
	RedisPassword string
	RedisUseTLS   bool

	// S3 mirror (optional)
	MirrorEndpoint  string
	MirrorAccessKey string
	MirrorSecretKey string
	MirrorBucket    string
	MirrorRegion    string
	MirrorUseSSL    bool
}

const (
	BackendGemini = "gemini"
	BackendVertex = "vertex"
)

// LoadConfig - load .env.local / .env and read the environment
func LoadConfig() (*Config, error) {
	for _, file := range []string{".env.local", ".env"} {
		if err := godotenv.Load(file); err == nil {
			log.Printf("📄 [Config] Loaded %s", file)
		}
	}

	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}

	log.Println("✅ Configuration loaded successfully")
	log.Printf("   Data dir: %s", cfg.DataDir)
	log.Printf("   Gemini backend: %s (image: %s, video: %s)", cfg.GeminiBackend, cfg.ImageModel, cfg.VideoModel)
	log.Printf("   Classifier: %s via %s", cfg.ClassifierModel, cfg.ClassifierProvider)
	log.Printf("   Video poll: every %s (timeout: %s)", cfg.VideoPollInterval, describeTimeout(cfg.VideoPollTimeout))
	if cfg.RedisEnabled() {
		log.Printf("   Redis: %s (TLS: %v)", cfg.GetRedisAddr(), cfg.RedisUseTLS)
	}
	if cfg.MirrorEnabled() {
		log.Printf("   Mirror: %s/%s", cfg.MirrorEndpoint, cfg.MirrorBucket)
	}

	return cfg, nil
}

// FromEnv - build a Config from the current process environment without touching .env files
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port: getEnv("PORT", "8000"),

		DataDir:           getEnv("DATA_DIR", "."),
		UploadDir:         getEnv("UPLOAD_DIR", "uploaded_images"),
		GeneratedImageDir: getEnv("GENERATED_IMAGE_DIR", "generated_images"),
		GeneratedVideoDir: getEnv("GENERATED_VIDEO_DIR", "generated_videos"),

		GeminiAPIKey:          getEnv("GEMINI_API_KEY", ""),
		GeminiBackend:         strings.ToLower(getEnv("GEMINI_BACKEND", BackendGemini)),
		VertexProject:         getEnv("VERTEXAI_PROJECT", ""),
		VertexLocation:        getEnv("VERTEXAI_LOCATION", "us-central1"),
		VertexCredentialsJSON: getEnv("VERTEXAI_CREDENTIALS_JSON", ""),
		VertexCredentialsPath: getEnv("VERTEXAI_CREDENTIALS_PATH", ""),
		ImageModel:            getEnv("IMAGE_MODEL", "gemini-2.5-flash-image-preview"),
		VideoModel:            getEnv("VIDEO_MODEL", "veo-3.0-fast-generate-001"),
		VideoNegativePrompt:   getEnv("VIDEO_NEGATIVE_PROMPT", "cartoon, drawing, low quality"),

		ClassifierProvider: strings.ToLower(getEnv("CLASSIFIER_PROVIDER", "openrouter")),
		ClassifierModel:    getEnv("CLASSIFIER_MODEL", "x-ai/grok-4-fast"),

		FFmpegPath:  getEnv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath: getEnv("FFPROBE_PATH", "ffprobe"),

		RedisHost:     getEnv("REDIS_HOST", ""),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisUsername: getEnv("REDIS_USERNAME", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		MirrorEndpoint:  getEnv("MIRROR_S3_ENDPOINT", ""),
		MirrorAccessKey: getEnv("MIRROR_S3_ACCESS_KEY", ""),
		MirrorSecretKey: getEnv("MIRROR_S3_SECRET_KEY", ""),
		MirrorBucket:    getEnv("MIRROR_S3_BUCKET", "media-studio"),
		MirrorRegion:    getEnv("MIRROR_S3_REGION", ""),
	}

	var err error
	if cfg.VideoPollInterval, err = getDuration("VIDEO_POLL_INTERVAL", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.VideoPollTimeout, err = getDuration("VIDEO_POLL_TIMEOUT", 0); err != nil {
		return nil, err
	}
	if cfg.StillImageSeconds, err = getFloat("STILL_IMAGE_SECONDS", 5); err != nil {
		return nil, err
	}
	if cfg.RedisUseTLS, err = getBool("REDIS_USE_TLS", false); err != nil {
		return nil, err
	}
	if cfg.MirrorUseSSL, err = getBool("MIRROR_S3_USE_SSL", true); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate - reject structurally invalid settings; provider credentials are checked on first use
func (c *Config) validate() error {
	if c.VideoPollInterval <= 0 {
		return fmt.Errorf("VIDEO_POLL_INTERVAL must be positive")
	}
	if c.VideoPollTimeout < 0 {
		return fmt.Errorf("VIDEO_POLL_TIMEOUT must not be negative")
	}
	if c.StillImageSeconds <= 0 {
		return fmt.Errorf("STILL_IMAGE_SECONDS must be positive")
	}
	switch c.GeminiBackend {
	case BackendGemini:
	case BackendVertex:
		if c.VertexProject == "" {
			return fmt.Errorf("VERTEXAI_PROJECT is required when GEMINI_BACKEND=vertex")
		}
	default:
		return fmt.Errorf("unsupported GEMINI_BACKEND %q (use %q or %q)", c.GeminiBackend, BackendGemini, BackendVertex)
	}
	dirs := map[string]string{}
	for key, dir := range map[string]string{
		"UPLOAD_DIR":          c.UploadDir,
		"GENERATED_IMAGE_DIR": c.GeneratedImageDir,
		"GENERATED_VIDEO_DIR": c.GeneratedVideoDir,
	} {
		if dir == "" || filepath.Base(dir) != dir {
			return fmt.Errorf("%s must be a plain directory name, got %q", key, dir)
		}
		if other, dup := dirs[dir]; dup {
			return fmt.Errorf("%s and %s share directory %q", key, other, dir)
		}
		dirs[dir] = key
	}
	return nil
}

// RedisEnabled - async video jobs are only available with a Redis host
func (c *Config) RedisEnabled() bool {
	return c.RedisHost != ""
}

// MirrorEnabled - artifacts are mirrored only when an S3 endpoint and keys are present
func (c *Config) MirrorEnabled() bool {
	return c.MirrorEndpoint != "" && c.MirrorAccessKey != "" && c.MirrorSecretKey != ""
}

// GetRedisAddr - host:port for the Redis client
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

// getEnv - read an environment variable with a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d, nil
	}
	// bare numbers are seconds
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

func getFloat(key string, defaultValue float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func describeTimeout(d time.Duration) string {
	if d == 0 {
		return "none"
	}
	return d.String()
}
