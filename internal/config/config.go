package config // package config loads application configuration from environment variables

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable. Sub-sections that are optional at runtime
// (Stripe return URL, MinIO, RabbitMQ) are still loaded here so the wiring
// in cmd/server stays explicit.
type Config struct {
	Env            string // application environment (dev/test/prod)
	Port           string // HTTP port to listen on
	DBUser         string
	DBPass         string // empty allowed
	DBHost         string
	DBPort         string
	DBName         string
	JWTSecret      string // secret used to sign access tokens
	AccessTTLMin   int    // access token TTL in minutes
	RefreshTTLDays int    // refresh token TTL in days
	BcryptCost     int

	Stripe   StripeConfig
	Minio    MinioConfig
	RabbitMQ RabbitMQConfig
	Log      LogConfig
}

// StripeConfig configures the card gateway client. It is handed to
// gateway.NewStripe once at startup.
type StripeConfig struct {
	SecretKey         string
	Currency          string        // ISO currency, lower case (mxn)
	ListingPriceCents int64         // default activation price in minor units
	ReturnURL         string        // used when an on-session confirmation needs a redirect
	Timeout           time.Duration // per-call deadline applied to gateway requests
}

// MinioConfig configures the object store used for place images. An empty
// endpoint disables uploads.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PublicURL string // base URL used to build image links; defaults to the endpoint
}

// RabbitMQConfig configures domain event publication. An empty URL disables it.
type RabbitMQConfig struct {
	URL   string
	Queue string
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level string
	Dev   bool
	Dir   string // when set, logs are also written to rotating files here
}

// Load reads configuration values from environment variables and returns a
// Config. A .env file is loaded first when present. Required variables are
// enforced by must() and missing values cause the program to exit.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Env:            envStr("APP_ENV", "dev"),
		Port:           envStr("APP_PORT", "8080"),
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"),
		DBHost:         must("DB_HOST"),
		DBPort:         envStr("DB_PORT", "3306"),
		DBName:         must("DB_NAME"),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     envInt("BCRYPT_COST", 12),
		Stripe: StripeConfig{
			SecretKey:         must("STRIPE_SECRET"),
			Currency:          envStr("STRIPE_CURRENCY", "mxn"),
			ListingPriceCents: int64(envInt("LISTING_PRICE_CENTS", 10000)),
			ReturnURL:         os.Getenv("STRIPE_RETURN_URL"),
			Timeout:           envDur("STRIPE_TIMEOUT", 20*time.Second),
		},
		Minio: MinioConfig{
			Endpoint:  os.Getenv("MINIO_ENDPOINT"),
			AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			Bucket:    envStr("MINIO_BUCKET", "lugares"),
			UseSSL:    envBool("MINIO_USE_SSL", false),
			PublicURL: os.Getenv("MINIO_PUBLIC_URL"),
		},
		RabbitMQ: LoadRabbitMQConfig(),
		Log:      LoadLogConfig(),
	}
}

// LoadDatabase returns only the database section. The migrate and stats
// commands use it so they do not require gateway credentials.
func LoadDatabase() Config {
	_ = godotenv.Load()
	return Config{
		Env:    envStr("APP_ENV", "dev"),
		DBUser: must("DB_USER"),
		DBPass: os.Getenv("DB_PASS"),
		DBHost: must("DB_HOST"),
		DBPort: envStr("DB_PORT", "3306"),
		DBName: must("DB_NAME"),
		Log:    LoadLogConfig(),
	}
}

// LoadRabbitMQConfig reads RABBITMQ_URL (or AMQP_URL) and the queue name.
func LoadRabbitMQConfig() RabbitMQConfig {
	url := os.Getenv("RABBITMQ_URL")
	if url == "" {
		url = os.Getenv("AMQP_URL")
	}
	return RabbitMQConfig{URL: url, Queue: envStr("RABBITMQ_QUEUE", "pagos.eventos")}
}

// LoadLogConfig reads LOG_LEVEL, LOG_DEV and LOG_DIR.
func LoadLogConfig() LogConfig {
	dev := envBool("LOG_DEV", false)
	lvl := os.Getenv("LOG_LEVEL")
	if lvl == "" {
		lvl = "info"
		if dev {
			lvl = "debug"
		}
	}
	return LogConfig{Level: lvl, Dev: dev, Dir: os.Getenv("LOG_DIR")}
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
