package normup

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds storage and runtime configuration
type Config struct {
	Dialect                string // pgx, postgres, mysql, sqlite3, dynamodb
	DSN                    string // full driver DSN; overrides the discrete PostgreSQL fields
	Host                   string
	Port                   int
	Database               string
	Username               string
	Password               string
	SSLMode                string
	MaxConnections         int32
	MinConnections         int32
	MaxConnLifetime        time.Duration
	MaxConnIdleTime        time.Duration
	HealthCheckPeriod      time.Duration
	ConnectTimeout         time.Duration
	ApplicationName        string
	StatementCacheCapacity int // pgx per-conn statement cache capacity (0 = default)

	StrictAttributes bool // reject payload keys missing from the schema

	CircuitBreakerEnabled   bool
	CircuitFailureThreshold int
	CircuitOpenTimeout      time.Duration
	CircuitHalfOpenMaxCalls int

	Region   string // DynamoDB
	Endpoint string // DynamoDB endpoint override, e.g. dynamodb-local
}

// ConnString returns the DSN when set, otherwise a PostgreSQL connection string compatible with pgx
func (c *Config) ConnString() string {
	if c.DSN != "" {
		return c.DSN
	}
	ssl := c.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	host := c.Host
	if host == "" {
		host = "localhost"
	}
	port := c.Port
	if port == 0 {
		port = 5432
	}
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s application_name=%s connect_timeout=%d",
		host,
		port,
		c.Database,
		c.Username,
		c.Password,
		ssl,
		c.ApplicationName,
		int(c.ConnectTimeout.Seconds()),
	)
}

// LoadConfig reads NORMUP_* environment variables after loading the given
// dotenv files. Missing files are skipped; variables already set in the
// environment win over file values.
func LoadConfig(files ...string) (*Config, error) {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}
	e := envReader{prefix: "NORMUP_"}
	c := &Config{
		Dialect:                 e.str("DIALECT", "pgx"),
		DSN:                     e.str("DSN", ""),
		Host:                    e.str("HOST", ""),
		Port:                    e.int("PORT"),
		Database:                e.str("DATABASE", ""),
		Username:                e.str("USER", ""),
		Password:                e.str("PASSWORD", ""),
		SSLMode:                 e.str("SSLMODE", ""),
		MaxConnections:          int32(e.int("MAX_CONNECTIONS")),
		MinConnections:          int32(e.int("MIN_CONNECTIONS")),
		MaxConnLifetime:         e.duration("MAX_CONN_LIFETIME"),
		MaxConnIdleTime:         e.duration("MAX_CONN_IDLE_TIME"),
		ConnectTimeout:          e.duration("CONNECT_TIMEOUT"),
		ApplicationName:         e.str("APPLICATION_NAME", "normup"),
		StatementCacheCapacity:  e.int("STATEMENT_CACHE_CAPACITY"),
		StrictAttributes:        e.bool("STRICT_ATTRIBUTES"),
		CircuitBreakerEnabled:   e.bool("CIRCUIT_BREAKER"),
		CircuitFailureThreshold: e.int("CIRCUIT_FAILURE_THRESHOLD"),
		CircuitOpenTimeout:      e.duration("CIRCUIT_OPEN_TIMEOUT"),
		CircuitHalfOpenMaxCalls: e.int("CIRCUIT_HALF_OPEN_MAX_CALLS"),
		Region:                  e.str("AWS_REGION", ""),
		Endpoint:                e.str("DYNAMODB_ENDPOINT", ""),
	}
	if e.err != nil {
		return nil, e.err
	}
	return c, nil
}

// envReader remembers the first parse error so LoadConfig can report it once
type envReader struct {
	prefix string
	err    error
}

func (e *envReader) str(key, def string) string {
	if v, ok := os.LookupEnv(e.prefix + key); ok && v != "" {
		return v
	}
	return def
}

func (e *envReader) int(key string) int {
	v := e.str(key, "")
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil && e.err == nil {
		e.err = fmt.Errorf("%s%s: %w", e.prefix, key, err)
	}
	return n
}

func (e *envReader) bool(key string) bool {
	v := strings.ToLower(e.str(key, ""))
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil && e.err == nil {
		e.err = fmt.Errorf("%s%s: %w", e.prefix, key, err)
	}
	return b
}

func (e *envReader) duration(key string) time.Duration {
	v := e.str(key, "")
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil && e.err == nil {
		e.err = fmt.Errorf("%s%s: %w", e.prefix, key, err)
	}
	return d
}
