package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/aussiebroadwan/authsession/pkg/storage/drivers/redis"
)

// Storage backends.
const (
	StorageMemory = "memory"
	StorageSQLite = "sqlite"
	StorageRedis  = "redis"
)

var (
	ErrParsingConfig     = errors.New("app: failed to parse configuration")
	ErrInvalidConfig     = errors.New("app: invalid configuration")
	ErrConflictingSignIn = errors.New("app: configure either AUTH_EMAIL/AUTH_PASSWORD or AUTH_PAT, not both")
)

type Config struct {
	BackendURL string `env:"AUTH_BACKEND_URL,required,notEmpty"` // Required: base URL of the hasura-auth backend
	ClientURL  string `env:"AUTH_CLIENT_URL"`                    // Optional: public app URL used to resolve redirectTo

	// Storage is memory, sqlite or redis. Setting StorageKey encrypts stored tokens.
	Storage    string `env:"AUTH_STORAGE" envDefault:"memory"`
	SQLiteFile string `env:"AUTH_SQLITE_FILE" envDefault:"authsession.db"`
	StorageKey string `env:"AUTH_STORAGE_KEY"`
	Redis      redis.Config

	// Auto sign-in, used when no stored session can be restored
	Email    string `env:"AUTH_EMAIL"`
	Password string `env:"AUTH_PASSWORD"`
	PAT      string `env:"AUTH_PAT"`

	RedirectURL string `env:"AUTH_REDIRECT_URL"` // Optional: URL carrying a refreshToken to import
	JWKSURL     string `env:"AUTH_JWKS_URL"`     // Optional: verify access tokens against this key set
	TokenFile   string `env:"AUTH_TOKEN_FILE"`   // Optional: the current access token is written here
	TOTPIssuer  string `env:"AUTH_TOTP_ISSUER" envDefault:"authsession"`

	AutoRefresh   bool `env:"AUTH_AUTO_REFRESH" envDefault:"true"`
	SignOutOnExit bool `env:"AUTH_SIGNOUT_ON_EXIT" envDefault:"false"`

	RateLimitRPS   int           `env:"AUTH_RATE_LIMIT_RPS" envDefault:"10"`
	RateLimitBurst int           `env:"AUTH_RATE_LIMIT_BURST" envDefault:"5"`
	HTTPTimeout    time.Duration `env:"AUTH_HTTP_TIMEOUT" envDefault:"10s"`

	Env                 string        `env:"ENV" envDefault:"dev"`
	LogLevel            string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat           string        `env:"LOG_FORMAT" envDefault:"json"`
	ShutdownGracePeriod time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`
}

// LoadConfig reads an optional .env file and then the environment.
func LoadConfig() (Config, error) {
	// The .env file is optional
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.Join(ErrParsingConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the combinations env tags cannot express.
func (c Config) Validate() error {
	switch c.Storage {
	case StorageMemory, StorageSQLite, StorageRedis:
	default:
		return fmt.Errorf("%w: unknown storage %q", ErrInvalidConfig, c.Storage)
	}

	if c.PAT != "" && (c.Email != "" || c.Password != "") {
		return ErrConflictingSignIn
	}
	if (c.Email == "") != (c.Password == "") {
		return fmt.Errorf("%w: AUTH_EMAIL and AUTH_PASSWORD must be set together", ErrInvalidConfig)
	}

	return nil
}
