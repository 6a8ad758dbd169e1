package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Daraja       DarajaConfig
	Payments     PaymentsConfig
	Cron         CronConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Daraja.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Payments.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CYBERCAFE_APP_ENV" required:"true"`
	Port         string `envconfig:"CYBERCAFE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CYBERCAFE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CYBERCAFE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"CYBERCAFE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"CYBERCAFE_DB_DSN"`
	Driver string `envconfig:"CYBERCAFE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CYBERCAFE_DB_HOST"`
	LegacyPort     int    `envconfig:"CYBERCAFE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CYBERCAFE_DB_USER"`
	LegacyPassword string `envconfig:"CYBERCAFE_DB_PASSWORD"`
	LegacyName     string `envconfig:"CYBERCAFE_DB_NAME"`
	LegacySSLMode  string `envconfig:"CYBERCAFE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CYBERCAFE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CYBERCAFE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CYBERCAFE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CYBERCAFE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CYBERCAFE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CYBERCAFE_REDIS_ADDR"`
	Password     string        `envconfig:"CYBERCAFE_REDIS_PASSWORD"`
	DB           int           `envconfig:"CYBERCAFE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CYBERCAFE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CYBERCAFE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CYBERCAFE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CYBERCAFE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CYBERCAFE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"CYBERCAFE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"CYBERCAFE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"CYBERCAFE_JWT_EXPIRATION_MINUTES" required:"true"`
}

// DarajaConfig holds the Safaricom Daraja (M-Pesa) gateway credentials and
// endpoints. BaseURL points at the sandbox by default; production deployments
// override it.
type DarajaConfig struct {
	BaseURL           string        `envconfig:"CYBERCAFE_DARAJA_BASE_URL" default:"https://sandbox.safaricom.co.ke"`
	ConsumerKey       string        `envconfig:"CYBERCAFE_DARAJA_CONSUMER_KEY"`
	ConsumerSecret    string        `envconfig:"CYBERCAFE_DARAJA_CONSUMER_SECRET"`
	ShortCode         string        `envconfig:"CYBERCAFE_DARAJA_SHORTCODE"`
	Passkey           string        `envconfig:"CYBERCAFE_DARAJA_PASSKEY"`
	CallbackURL       string        `envconfig:"CYBERCAFE_DARAJA_CALLBACK_URL"`
	HTTPTimeout       time.Duration `envconfig:"CYBERCAFE_DARAJA_HTTP_TIMEOUT" default:"30s"`
	TokenSafetyMargin time.Duration `envconfig:"CYBERCAFE_DARAJA_TOKEN_SAFETY_MARGIN" default:"1m"`
}

func (d DarajaConfig) validate() error {
	missing := []string{}
	if d.ConsumerKey == "" {
		missing = append(missing, EnvDarajaConsumerKey)
	}
	if d.ConsumerSecret == "" {
		missing = append(missing, EnvDarajaConsumerSecret)
	}
	if d.ShortCode == "" {
		missing = append(missing, EnvDarajaShortCode)
	}
	if d.Passkey == "" {
		missing = append(missing, EnvDarajaPasskey)
	}
	if len(missing) > 0 {
		return fmt.Errorf("daraja config incomplete, missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// PaymentsConfig holds the reconciliation knobs: amount tolerance for
// callback verification, the fuzzy-candidate search window, and the
// payment-intent time-to-live.
type PaymentsConfig struct {
	AmountTolerance      string        `envconfig:"CYBERCAFE_PAYMENTS_AMOUNT_TOLERANCE" default:"0.01"`
	CandidateAmountBand  string        `envconfig:"CYBERCAFE_PAYMENTS_CANDIDATE_AMOUNT_BAND" default:"5"`
	CandidateTimeWindow  time.Duration `envconfig:"CYBERCAFE_PAYMENTS_CANDIDATE_TIME_WINDOW" default:"30m"`
	IntentTTL            time.Duration `envconfig:"CYBERCAFE_PAYMENTS_INTENT_TTL" default:"90s"`
	CallbackAllowedCIDRs []string      `envconfig:"CYBERCAFE_PAYMENTS_CALLBACK_ALLOWED_CIDRS"`

	InitiateRateWindow time.Duration `envconfig:"CYBERCAFE_PAYMENTS_INITIATE_RATE_WINDOW" default:"1m"`
	InitiateIPLimit    int           `envconfig:"CYBERCAFE_PAYMENTS_INITIATE_IP_LIMIT" default:"30"`
	InitiateUserLimit  int           `envconfig:"CYBERCAFE_PAYMENTS_INITIATE_USER_LIMIT" default:"10"`
}

func (p PaymentsConfig) validate() error {
	if _, err := decimal.NewFromString(p.AmountTolerance); err != nil {
		return fmt.Errorf("invalid amount tolerance %q: %w", p.AmountTolerance, err)
	}
	if _, err := decimal.NewFromString(p.CandidateAmountBand); err != nil {
		return fmt.Errorf("invalid candidate amount band %q: %w", p.CandidateAmountBand, err)
	}
	for _, cidr := range p.CallbackAllowedCIDRs {
		if _, _, err := net.ParseCIDR(strings.TrimSpace(cidr)); err != nil {
			return fmt.Errorf("invalid callback CIDR %q: %w", cidr, err)
		}
	}
	return nil
}

// Tolerance returns the verification tolerance as a decimal. Load validates
// the raw value, so parsing here cannot fail.
func (p PaymentsConfig) Tolerance() decimal.Decimal {
	d, _ := decimal.NewFromString(p.AmountTolerance)
	return d
}

// CandidateBand returns the fuzzy-match amount band as a decimal.
func (p PaymentsConfig) CandidateBand() decimal.Decimal {
	d, _ := decimal.NewFromString(p.CandidateAmountBand)
	return d
}

type CronConfig struct {
	IntentExpiryInterval time.Duration `envconfig:"CYBERCAFE_CRON_INTENT_EXPIRY_INTERVAL" default:"30s"`
	LockTTL              time.Duration `envconfig:"CYBERCAFE_CRON_LOCK_TTL" default:"5m"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"CYBERCAFE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"CYBERCAFE_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
