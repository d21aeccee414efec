package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	// RequestTimeout bounds each handler's context.
	RequestTimeout time.Duration
	// TrustedProxies lists proxy CIDRs whose X-Forwarded-For is honoured.
	TrustedProxies []string
}

type StoreConfig struct {
	Driver string
}

type MongoConfig struct {
	URI            string
	Database       string
	MaxPoolSize    uint64
	ConnectTimeout time.Duration
}

type PostgresConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type SecurityConfig struct {
	JWTSecret         string
	JWTTTL            time.Duration
	CookieName        string
	VerificationTTL   time.Duration
	PasswordResetTTL  time.Duration
	MinPasswordLength int
}

type MailConfig struct {
	// PublicURL prefixes the links sent by email.
	PublicURL     string
	From          string
	SMTPHost      string
	SMTPPort      int
	SMTPUsername  string
	SMTPPassword  string
	Stream        string
	Group         string
	Consumer      string
	ClaimInterval time.Duration
}

type JobsConfig struct {
	PurgeTokensSpec string
	// PurgeGrace keeps expired hashes around so a late click still reads
	// as expired rather than unknown.
	PurgeGrace time.Duration
}

type AppConfig struct {
	Environment      string
	LogLevel         string
	HTTP             HTTPConfig
	Store            StoreConfig
	Mongo            MongoConfig
	Postgres         PostgresConfig
	Redis            RedisConfig
	Security         SecurityConfig
	Mail             MailConfig
	Jobs             JobsConfig
	AllowCORSOrigins []string
}

// IsDevelopment reports whether cookies may be sent without the Secure flag.
func (c *AppConfig) IsDevelopment() bool {
	switch strings.ToLower(c.Environment) {
	case "development", "test":
		return true
	}
	return false
}

func (c *AppConfig) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case StoreMongo, StorePostgres, StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}
	if len(c.Security.JWTSecret) < 32 {
		errs = append(errs, errors.New("security.jwtsecret must be at least 32 characters"))
	}
	if c.Security.JWTTTL <= 0 {
		errs = append(errs, errors.New("security.jwtttl must be positive"))
	}
	if c.Security.VerificationTTL <= 0 || c.Security.PasswordResetTTL <= 0 {
		errs = append(errs, errors.New("token ttls must be positive"))
	}
	if c.Security.MinPasswordLength < 8 {
		errs = append(errs, errors.New("security.minpasswordlength must be at least 8"))
	}
	return errors.Join(errs...)
}

func Load() (*AppConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("VISITETHIOPIA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	return decode(v)
}

func decode(v *viper.Viper) (*AppConfig, error) {
	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("loglevel", "")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 3000)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "15s")
	v.SetDefault("http.idletimeout", "60s")
	v.SetDefault("http.requesttimeout", "10s")
	v.SetDefault("http.trustedproxies", []string{})

	v.SetDefault("store.driver", StoreMongo)

	v.SetDefault("mongo.uri", "mongodb://127.0.0.1:27017")
	v.SetDefault("mongo.database", "visit_ethiopia")
	v.SetDefault("mongo.maxpoolsize", 50)
	v.SetDefault("mongo.connecttimeout", "10s")

	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.maxopen", 30)
	v.SetDefault("postgres.maxidle", 10)
	v.SetDefault("postgres.connmaxlifetime", "30m")

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("security.jwtsecret", "")
	v.SetDefault("security.jwtttl", "2160h") // 90 days
	v.SetDefault("security.cookiename", "jwt")
	v.SetDefault("security.verificationttl", "24h")
	v.SetDefault("security.passwordresetttl", "10m")
	v.SetDefault("security.minpasswordlength", 8)

	v.SetDefault("mail.publicurl", "http://localhost:3000")
	v.SetDefault("mail.from", "Visit Ethiopia <no-reply@visitethiopia.local>")
	v.SetDefault("mail.smtphost", "127.0.0.1")
	v.SetDefault("mail.smtpport", 1025)
	v.SetDefault("mail.smtpusername", "")
	v.SetDefault("mail.smtppassword", "")
	v.SetDefault("mail.stream", "mail:outbox")
	v.SetDefault("mail.group", "mailers")
	v.SetDefault("mail.consumer", "mailer-1")
	v.SetDefault("mail.claiminterval", "30s")

	v.SetDefault("jobs.purgetokensspec", "0 */15 * * * *")
	v.SetDefault("jobs.purgegrace", "168h")

	v.SetDefault("allowcorsorigins", []string{})
}
