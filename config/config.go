package config

import (
	"errors"
	"fmt"
	"log"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"

	CacheDriverMemory = "memory"
	CacheDriverRedis  = "redis"
	CacheDriverNone   = "none"
)

type Config struct {
	Port          string
	Env           string
	LogLevel      string
	AllowedOrigin string
	// Storage
	StorageDriver     string
	DBUrl             string
	DBMaxConns        int32
	DBMinConns        int32
	DBMaxConnIdleTime time.Duration
	DBAutoMigrate     bool
	// Cache
	CacheDriver    string
	CacheCouponTTL time.Duration
	RedisURL       string
	RedisKeyPrefix string
	// HTTP
	RateLimitRPS        float64
	RateLimitBurst      int
	RateLimitWriteRPS   float64
	RateLimitWriteBurst int
	RateLimitCleanup    time.Duration
	RateLimitClientTTL  time.Duration
	// Comma separated IPs or CIDRs whose X-Forwarded-For/X-Real-IP are honored.
	TrustedProxies   string
	RequestTimeout   time.Duration
	ShutdownTimeout  time.Duration
	MaxRequestBodyKB int64
}

func LoadConfig() *Config {
	// 1. Check if a specific config file is requested via env var
	configFile := os.Getenv("CONFIG_FILE")
	if configFile != "" {
		if err := godotenv.Load(configFile); err != nil {
			log.Printf("Warning: Failed to load config file '%s': %v", configFile, err)
		} else {
			log.Printf("Loaded configuration from %s", configFile)
		}
	} else {
		// 2. Default fallback: .env for local dev, system env vars otherwise.
		if err := godotenv.Load(); err != nil {
			log.Println("No .env file found or error loading it, relying on system env vars")
		}
	}

	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("CRITICAL: %v", err)
	}
	return cfg
}

// FromEnv builds a Config from the process environment, applying defaults.
func FromEnv() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		AllowedOrigin: getEnv("ALLOWED_ORIGIN", "*"),

		StorageDriver:     getEnv("STORAGE_DRIVER", StorageDriverPostgres),
		DBUrl:             getEnv("DB_DSN", ""),
		DBMaxConns:        getInt32Env("DB_MAX_CONNS", 20),
		DBMinConns:        getInt32Env("DB_MIN_CONNS", 2),
		DBMaxConnIdleTime: getDurationEnv("DB_MAX_CONN_IDLE_TIME", 15*time.Minute),
		DBAutoMigrate:     getBoolEnv("DB_AUTO_MIGRATE", true),

		// Cache defaults: in-process, 10m per coupon
		CacheDriver:    getEnv("CACHE_DRIVER", CacheDriverMemory),
		CacheCouponTTL: getDurationEnv("CACHE_COUPON_TTL", 10*time.Minute),
		RedisURL:       getEnv("REDIS_URL", ""),
		RedisKeyPrefix: getEnv("REDIS_KEY_PREFIX", "coupon-service:"),

		// HTTP defaults: reads 50 req/s (burst 100), writes 5 req/s (burst 10)
		RateLimitRPS:        getFloatEnv("RATE_LIMIT_RPS", 50),
		RateLimitBurst:      getIntEnv("RATE_LIMIT_BURST", 100),
		RateLimitWriteRPS:   getFloatEnv("RATE_LIMIT_WRITE_RPS", 5),
		RateLimitWriteBurst: getIntEnv("RATE_LIMIT_WRITE_BURST", 10),
		RateLimitCleanup:    getDurationEnv("RATE_LIMIT_CLEANUP", time.Minute),
		RateLimitClientTTL:  getDurationEnv("RATE_LIMIT_CLIENT_TTL", 3*time.Minute),
		TrustedProxies:      getEnv("TRUSTED_PROXIES", ""),
		RequestTimeout:      getDurationEnv("REQUEST_TIMEOUT", 10*time.Second),
		ShutdownTimeout:     getDurationEnv("SHUTDOWN_TIMEOUT", 5*time.Second),
		MaxRequestBodyKB:    getInt64Env("MAX_REQUEST_BODY_KB", 64),
	}
}

func (c *Config) Validate() error {
	var errs []error

	switch c.StorageDriver {
	case StorageDriverPostgres:
		if c.DBUrl == "" {
			errs = append(errs, errors.New("DB_DSN environment variable is required for the postgres storage driver"))
		}
	case StorageDriverMemory:
		if c.Env == "production" {
			log.Println("WARNING: memory storage driver loses all coupons on restart.")
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver))
	}

	switch c.CacheDriver {
	case CacheDriverMemory, CacheDriverNone:
	case CacheDriverRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL environment variable is required for the redis cache driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown CACHE_DRIVER %q", c.CacheDriver))
	}

	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive"))
	}
	if c.RateLimitWriteRPS <= 0 || c.RateLimitWriteBurst <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_WRITE_RPS and RATE_LIMIT_WRITE_BURST must be positive"))
	}
	if c.RateLimitCleanup <= 0 || c.RateLimitClientTTL <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_CLEANUP and RATE_LIMIT_CLIENT_TTL must be positive"))
	}
	if _, err := c.TrustedProxyPrefixes(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// TrustedProxyPrefixes parses TrustedProxies. A bare IP becomes a single
// address prefix.
func (c *Config) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	var prefixes []netip.Prefix
	for _, raw := range strings.Split(c.TrustedProxies, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.Contains(raw, "/") {
			p, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid TRUSTED_PROXIES entry %q: %w", raw, err)
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid TRUSTED_PROXIES entry %q: %w", raw, err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Printf("Invalid duration for %s, using fallback", key)
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
		log.Printf("Invalid int for %s, using fallback", key)
	}
	return fallback
}

func getInt64Env(key string, fallback int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
		log.Printf("Invalid int64 for %s, using fallback", key)
	}
	return fallback
}
