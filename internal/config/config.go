package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	// Region identifies the deployment shard this node belongs to. Tokens
	// minted here carry this tag so any peer can route a lookup back.
	Region      string
	MultiRegion bool
	RegionsFile string

	OTLPEndpoint string

	SecretsPassphrase string
	SigningKeyType    string

	// AssertionSecret keys the HMAC over personal-access-token
	// assertions. Shared with the identity frontend that signs them.
	AssertionSecret string

	AccessTokenTTL         int
	RefreshTokenTTL        int
	CodeTTL                int
	PersonalAccessTokenTTL int

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RateLimitEnabled   bool
	TokenEndpointRate  float64
	TokenEndpointBurst int

	SweeperInterval  int
	SweeperBatchSize int

	// Region metrics are pushed from each shard to a central collector
	// so fleet-wide grant and token rates stay visible per region.
	RegionMetricsEnabled   bool
	RegionMetricsExporter  string
	RegionMetricsEndpoint  string
	RegionMetricsAuthToken string
	RegionMetricsInterval  int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "meridian"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),

		Region:      strings.TrimSpace(getenv("REGION", "")),
		MultiRegion: getenvBool("MULTI_REGION", false),
		RegionsFile: getenv("REGIONS_FILE", ""),

		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		SecretsPassphrase: strings.TrimSpace(getenv("SECRETS_PASSPHRASE", "")),
		SigningKeyType:    strings.ToUpper(strings.TrimSpace(getenv("SIGNING_KEY_TYPE", "EC"))),

		AssertionSecret: strings.TrimSpace(getenv("ASSERTION_SECRET", "")),

		AccessTokenTTL:         getenvInt("ACCESS_TOKEN_TTL_SECONDS", 3600),
		RefreshTokenTTL:        getenvInt("REFRESH_TOKEN_TTL_SECONDS", 30*24*3600),
		CodeTTL:                getenvInt("AUTHORIZATION_CODE_TTL_SECONDS", 300),
		PersonalAccessTokenTTL: getenvInt("PERSONAL_ACCESS_TOKEN_TTL_SECONDS", 90*24*3600),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "postgres"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 50),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 600),

		RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RedisDB:       getenvInt("REDIS_DB", 0),

		RateLimitEnabled:   getenvBool("RATE_LIMIT_ENABLED", false),
		TokenEndpointRate:  getenvFloat("RATE_LIMIT_TOKEN_RATE", 10),
		TokenEndpointBurst: getenvInt("RATE_LIMIT_TOKEN_BURST", 20),

		SweeperInterval:  getenvInt("SWEEPER_INTERVAL_SECONDS", 600),
		SweeperBatchSize: getenvInt("SWEEPER_BATCH_SIZE", 500),

		RegionMetricsEnabled:   getenvBool("REGION_METRICS_ENABLED", false),
		RegionMetricsExporter:  strings.ToLower(strings.TrimSpace(getenv("REGION_METRICS_EXPORTER", "prometheus_remote_write"))),
		RegionMetricsEndpoint:  strings.TrimSpace(getenv("REGION_METRICS_ENDPOINT", "")),
		RegionMetricsAuthToken: strings.TrimSpace(getenv("REGION_METRICS_AUTH_TOKEN", "")),
		RegionMetricsInterval:  getenvInt("REGION_METRICS_INTERVAL_SECONDS", 60),
	}

	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}
