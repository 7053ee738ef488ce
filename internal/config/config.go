package config

import (
	"fmt"
	"time"
)

type Config struct {
	Env              string                  `env:"ENV,default=local"`
	Logger           LoggerConfig            `env:",prefix=LOGGER_"`
	Observability    ObservabilityHTTPConfig `env:",prefix=OBSERVABILITY_"`
	API              APIConfig               `env:",prefix=API_"`
	ShutdownDuration time.Duration           `env:"SHUTDOWN_DURATION,default=30s"`
	DB               PostgresConfig          `env:",prefix=DB_"`
	Stripe           StripeConfig            `env:",prefix=STRIPE_"`
	Panel            PanelConfig             `env:",prefix=PANEL_"`
	Auth             AuthConfig              `env:",prefix=AUTH_"`
	Internal         InternalConfig          `env:",prefix=INTERNAL_"`
}

type LoggerConfig struct {
	Level string `env:"LEVEL,default=debug"`
}

type APIConfig struct {
	Host         string        `env:"HOST,default=0.0.0.0"`
	Port         uint16        `env:"PORT,default=8080"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT,default=30s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT,default=30s"`
	IdleTimeout  time.Duration `env:"IDLE_TIMEOUT,default=1m"`
}

func (a APIConfig) ADDR() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

type ObservabilityHTTPConfig struct {
	Host         string        `env:"HOST,default=127.0.0.1"`
	Port         uint16        `env:"PORT,default=8383"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT,default=30s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT,default=30s"`
	IdleTimeout  time.Duration `env:"IDLE_TIMEOUT,default=1m"`
}

func (a ObservabilityHTTPConfig) ADDR() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

type PostgresConfig struct {
	DSN          string        `env:"DSN,required"`
	MaxOpenConns int           `env:"MAX_OPEN_CONNS,default=25"`
	MaxIdleConns int           `env:"MAX_IDLE_CONNS,default=5"`
	MaxLifetime  time.Duration `env:"MAX_LIFETIME,default=5m"`
}

// StripeConfig holds billing credentials. WebhookSecret may be empty in
// test mode; signature verification is then skipped, which is insecure
// for production and logged as such at startup.
type StripeConfig struct {
	SecretKey     string `env:"SECRET_KEY,required"`
	WebhookSecret string `env:"WEBHOOK_SECRET"`
}

type PanelConfig struct {
	URL       string        `env:"URL,required"`
	AppKey    string        `env:"APP_KEY,required"`
	ClientKey string        `env:"CLIENT_KEY,required"`
	Timeout   time.Duration `env:"TIMEOUT,default=30s"`
	RateLimit struct {
		Burst int     `env:"BURST,default=5"`
		RPS   float64 `env:"RPS,default=10.0"`
	} `env:",prefix=RATE_LIMIT_"`
}

type AuthConfig struct {
	JWTSecret string `env:"JWT_SECRET,required"`
}

// InternalConfig guards the server-to-server provisioning endpoints.
type InternalConfig struct {
	ServiceToken string `env:"SERVICE_TOKEN,required"`
}
