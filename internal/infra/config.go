package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StoreNone     = "none"
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSupabase = "supabase"

	StorageNone       = "none"
	StorageS3         = "s3"
	StorageFilesystem = "filesystem"

	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv             string
	LogLevel           string
	Port               string
	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
	RateLimitPerMin    int
	CORSAllowedOrigins []string
	DefaultLocale      string
	GeoIPDBPath        string

	GenerationProvider   string
	GenerationTimeout    time.Duration
	GenerationMaxRetries int
	GenerationCostUSD    float64
	OpenAIAPIKey         string
	OpenAIBaseURL        string
	OpenAIImageModel     string
	OpenAIImageSize      string
	OpenAIImageQuality   string
	OpenAIInputFidelity  string
	OpenAIPartialImages  int
	GeminiAPIKey         string
	GeminiImageModel     string
	GeminiAspectRatio    string
	GeminiImageSize      string

	OptionsFile         string
	OptionsReferenceDir string

	StorageDriver     string
	S3Bucket          string
	S3Region          string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Endpoint        string
	S3PublicBaseURL   string
	StorageKeyPrefix  string
	StoragePath       string
	StorageBaseURL    string
	QREnabled         bool
	QRSize            int

	StoreDriver        string
	DatabaseURL        string
	SupabaseURL        string
	SupabaseServiceKey string
	JWTSecret          string

	PrinterCommand string
	PrinterName    string
	PrintSpoolDir  string
	PrintMaxCopies int
	EFTPOSDLLPath  string
	EFTPOSComPort  string
	EFTPOSTimeout  int
	EFTPOSCharset  string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	port := getEnv("PORT", "8080")
	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		LogLevel:           strings.ToLower(os.Getenv("LOG_LEVEL")),
		Port:               port,
		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 30)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		DefaultLocale:      getEnv("DEFAULT_LOCALE", "ar"),
		GeoIPDBPath:        os.Getenv("GEOIP_DB_PATH"),

		GenerationProvider:   strings.ToLower(getEnv("GENERATION_PROVIDER", ProviderOpenAI)),
		GenerationTimeout:    time.Second * time.Duration(getEnvInt("GENERATION_TIMEOUT_SECONDS", 180)),
		GenerationMaxRetries: getEnvInt("GENERATION_MAX_RETRIES", 2),
		GenerationCostUSD:    getEnvFloat("GENERATION_COST_PER_IMAGE", 0.042),
		OpenAIAPIKey:         os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:        getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIImageModel:     getEnv("OPENAI_IMAGE_MODEL", "gpt-image-1"),
		OpenAIImageSize:      getEnv("OPENAI_IMAGE_SIZE", "1024x1536"),
		OpenAIImageQuality:   getEnv("OPENAI_IMAGE_QUALITY", "medium"),
		OpenAIInputFidelity:  getEnv("OPENAI_INPUT_FIDELITY", "high"),
		OpenAIPartialImages:  getEnvInt("OPENAI_PARTIAL_IMAGES", 2),
		GeminiAPIKey:         os.Getenv("GEMINI_API_KEY"),
		GeminiImageModel:     getEnv("GEMINI_IMAGE_MODEL", "gemini-3-pro-image-preview"),
		GeminiAspectRatio:    getEnv("GEMINI_ASPECT_RATIO", "9:16"),
		GeminiImageSize:      getEnv("GEMINI_IMAGE_SIZE", "1K"),

		OptionsFile:         os.Getenv("OPTIONS_FILE"),
		OptionsReferenceDir: os.Getenv("OPTIONS_REFERENCE_DIR"),

		S3Bucket:          os.Getenv("S3_BUCKET"),
		S3Region:          getEnv("S3_REGION", os.Getenv("AWS_REGION")),
		S3AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", os.Getenv("AWS_ACCESS_KEY_ID")),
		S3SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", os.Getenv("AWS_SECRET_ACCESS_KEY")),
		S3Endpoint:        os.Getenv("S3_ENDPOINT"),
		S3PublicBaseURL:   os.Getenv("S3_PUBLIC_BASE_URL"),
		StorageKeyPrefix:  getEnv("STORAGE_KEY_PREFIX", "photobooth"),
		StoragePath:       os.Getenv("STORAGE_PATH"),
		StorageBaseURL:    getEnv("STORAGE_BASE_URL", fmt.Sprintf("http://localhost:%s/static", port)),
		QREnabled:         getEnvBool("QR_ENABLED", true),
		QRSize:            getEnvInt("QR_SIZE", 256),

		DatabaseURL:        os.Getenv("DATABASE_URL"),
		SupabaseURL:        os.Getenv("SUPABASE_URL"),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_KEY", os.Getenv("SUPABASE_KEY")),
		JWTSecret:          getEnv("JWT_SECRET", os.Getenv("SUPABASE_JWT_SECRET")),

		PrinterCommand: getEnv("PRINTER_COMMAND", "lp"),
		PrinterName:    os.Getenv("PRINTER_NAME"),
		PrintSpoolDir:  getEnv("PRINT_SPOOL_DIR", os.TempDir()),
		PrintMaxCopies: getEnvInt("PRINT_MAX_COPIES", 5),
		EFTPOSDLLPath:  getEnv("EFTPOS_DLL_PATH", "EFTPOSLib.dll"),
		EFTPOSComPort:  getEnv("EFTPOS_COM_PORT", "COM3"),
		EFTPOSTimeout:  getEnvInt("EFTPOS_TIMEOUT_SEC", 240),
		EFTPOSCharset:  getEnv("EFTPOS_CHARSET", "MULTI"),
	}

	cfg.StorageDriver = strings.ToLower(getEnv("STORAGE_DRIVER", defaultStorageDriver(cfg)))
	cfg.StoreDriver = strings.ToLower(getEnv("STORE_DRIVER", defaultStoreDriver(cfg)))

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MultiTenant reports whether event scoped prompts and CRUD are available.
func (c *Config) MultiTenant() bool {
	return c.StoreDriver != StoreNone
}

func (c *Config) validate() error {
	switch c.GenerationProvider {
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when GENERATION_PROVIDER=openai")
		}
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required when GENERATION_PROVIDER=gemini")
		}
	default:
		return fmt.Errorf("unknown GENERATION_PROVIDER %q", c.GenerationProvider)
	}

	switch c.StorageDriver {
	case StorageNone:
	case StorageS3:
		if c.S3Bucket == "" || c.S3Region == "" {
			return fmt.Errorf("S3_BUCKET and S3_REGION are required when STORAGE_DRIVER=s3")
		}
	case StorageFilesystem:
		if c.StoragePath == "" {
			return fmt.Errorf("STORAGE_PATH is required when STORAGE_DRIVER=filesystem")
		}
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}

	switch c.StoreDriver {
	case StoreNone, StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=postgres")
		}
	case StoreSupabase:
		if c.SupabaseURL == "" || c.SupabaseServiceKey == "" {
			return fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY are required when STORE_DRIVER=supabase")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	if c.GenerationTimeout <= 0 {
		return fmt.Errorf("GENERATION_TIMEOUT_SECONDS must be positive")
	}
	// Without a secret bearer tokens are decoded unverified, which only a
	// development box may accept.
	if c.MultiTenant() && c.JWTSecret == "" && c.AppEnv != "development" {
		return fmt.Errorf("JWT_SECRET is required when APP_ENV=%s and STORE_DRIVER=%s", c.AppEnv, c.StoreDriver)
	}
	return nil
}

func defaultStorageDriver(c *Config) string {
	switch {
	case c.S3Bucket != "":
		return StorageS3
	case c.StoragePath != "":
		return StorageFilesystem
	default:
		return StorageNone
	}
}

func defaultStoreDriver(c *Config) string {
	switch {
	case c.DatabaseURL != "":
		return StorePostgres
	case c.SupabaseURL != "":
		return StoreSupabase
	default:
		return StoreNone
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
