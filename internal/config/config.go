package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, ints for durations and costs.
type Config struct {
	Env             string // application environment (e.g. "dev", "prod")
	Port            string // HTTP port to listen on
	DBUser          string // database username
	DBPass          string // database password (optional)
	DBHost          string // database host address
	DBPort          string // database port number
	DBName          string // database name
	JWTSecret       string // secret used to sign JWTs
	JWTIssuer       string // issuer claim stamped into access tokens
	AccessTTLSecs   int    // access token time‑to‑live in seconds
	RefreshTTLDays  int    // refresh token time‑to‑live in days
	BcryptCost      int    // bcrypt cost for password hashing
	InitialBalance  string // balance granted to new accounts, decimal string
	RabbitURL       string // AMQP connection URL (optional; events disabled when empty)
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:            must("APP_ENV"),      // environment (dev/test/prod)
		Port:           must("APP_PORT"),     // port to bind the HTTP server
		DBUser:         must("DB_USER"),      // database user
		DBPass:         os.Getenv("DB_PASS"), // database password (empty allowed)
		DBHost:         must("DB_HOST"),      // database host
		DBPort:         must("DB_PORT"),      // database port
		DBName:         must("DB_NAME"),      // database name
		JWTSecret:      must("JWT_SECRET"),   // secret used for signing JWTs
		JWTIssuer:      withDefault("JWT_ISSUER", "vendingstore"),
		AccessTTLSecs:  intWithDefault("ACCESS_TOKEN_TTL_SECS", 3600),
		RefreshTTLDays: intWithDefault("REFRESH_TOKEN_TTL_DAYS", 7),
		BcryptCost:     intWithDefault("BCRYPT_COST", 10),
		InitialBalance: withDefault("INITIAL_BALANCE", "0.00"),
		RabbitURL:      os.Getenv("RABBITMQ_URL"), // empty disables event publishing
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// withDefault retrieves an optional environment variable, falling back to
// def when unset or empty.
func withDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// intWithDefault is like withDefault but converts the value to an integer.
// An unparseable value is treated as fatal rather than silently defaulted.
func intWithDefault(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
