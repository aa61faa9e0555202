package config // package config loads application configuration from environment variables

import (
    "log"     // log is used to report configuration errors and halt execution
    "os"      // os provides access to environment variables
    "time"

    "github.com/joho/godotenv"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
    Env             string        // application environment (e.g. "dev", "prod")
    Port            string        // HTTP port to listen on
    DBUser          string        // database username
    DBPass          string        // database password (optional)
    DBHost          string        // database host address
    DBPort          string        // database port number
    DBName          string        // database name
    AppSecret       string        // shared secret of the identity provider; also roots receipt link signing
    ReceiptDir      string        // directory holding receipt blobs
    PublicBaseURL   string        // public origin used to build signed receipt links
    ReceiptURLTTL   time.Duration // lifetime of signed receipt links
    MaxReceiptBytes int64         // upload size limit
    RabbitURL       string        // AMQP url for lifecycle notifications (empty disables them)
    RequestTimeout  time.Duration // per-request deadline
}

// LoadDotEnv reads a .env file when one is present.  Variables already set
// in the environment win.
func LoadDotEnv(files ...string) {
    if err := godotenv.Load(files...); err != nil && !os.IsNotExist(err) {
        log.Printf("config: .env not loaded: %v", err)
    }
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
    return Config{
        Env:             must("APP_ENV"),                                 // environment (dev/test/prod)
        Port:            must("APP_PORT"),                                // port to bind the HTTP server
        DBUser:          must("DB_USER"),                                 // database user
        DBPass:          os.Getenv("DB_PASS"),                            // database password (empty allowed)
        DBHost:          must("DB_HOST"),                                 // database host
        DBPort:          must("DB_PORT"),                                 // database port
        DBName:          must("DB_NAME"),                                 // database name
        AppSecret:       must("APP_SECRET"),                              // session and link signing secret
        ReceiptDir:      getenv("RECEIPT_DIR", "data/receipts"),          // blob root
        PublicBaseURL:   getenv("PUBLIC_BASE_URL", "http://localhost:8080"),
        ReceiptURLTTL:   envDur("RECEIPT_URL_TTL", time.Hour),            // 3600s default
        MaxReceiptBytes: int64(envInt("MAX_RECEIPT_BYTES", 10<<20)),      // 10 MiB
        RabbitURL:       os.Getenv("RABBITMQ_URL"),                       // optional
        RequestTimeout:  envDur("REQUEST_TIMEOUT", 15*time.Second),
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
