package config

import (
	"fmt"
	"time"

	"groupmemail/internal/infra/sqldb"
)

type Config struct {
	Env              string                  `env:"ENV,default=local"`
	Logger           LoggerConfig            `env:",prefix=LOGGER_"`
	Observability    ObservabilityHTTPConfig `env:",prefix=OBSERVABILITY_"`
	HTTP             APIHTTPConfig           `env:",prefix=HTTP_"`
	ShutdownDuration time.Duration           `env:"SHUTDOWN_DURATION,default=30s"`
	DB               DBConfig                `env:",prefix=DB_"`
	GroupMe          GroupMeConfig           `env:",prefix=GROUPME_"`
	Mailgun          MailgunConfig           `env:",prefix=MAILGUN_"`
	Workers          WorkersConfig           `env:",prefix=WORKERS_"`

	// PublicURL is the externally reachable base of the API server, used to
	// build bot callback URLs.
	PublicURL     string `env:"PUBLIC_URL,default=http://localhost:8080"`
	AdminEmail    string `env:"ADMIN_EMAIL"`
	BillingSecret string `env:"BILLING_SECRET"`
}

type GroupMeConfig struct {
	APIURL  string        `env:"API_URL,default=https://api.groupme.com/v3"`
	WebURL  string        `env:"WEB_URL,default=https://web.groupme.com"`
	BotName string        `env:"BOT_NAME,default=GroupMemail"`
	Timeout time.Duration `env:"TIMEOUT,default=30s"`
	// Shared across every credential, the platform throttles per application.
	RateLimit struct {
		Burst int     `env:"BURST,default=5"`
		RPS   float64 `env:"RPS,default=10.0"`
	} `env:",prefix=RATE_LIMIT_"`
}

type MailgunConfig struct {
	APIURL      string        `env:"API_URL,default=https://api.mailgun.net/v3"`
	Domain      string        `env:"DOMAIN,required"`
	APIKey      string        `env:"API_KEY,required"`
	Sender      string        `env:"SENDER,required"`
	ReplyPrefix string        `env:"REPLY_PREFIX"`
	Timeout     time.Duration `env:"TIMEOUT,default=30s"`
}

type WorkersConfig struct {
	StatsSchedule string `env:"STATS_SCHEDULE,default=*/5 * * * *"`
	// Empty disables the sweep; lapses are then only announced when a
	// message arrives for the user.
	ExpirationSchedule string `env:"EXPIRATION_SCHEDULE"`
}

type LoggerConfig struct {
	Level string `env:"LEVEL,default=debug"`
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

type APIHTTPConfig struct {
	Host         string        `env:"HOST,default=0.0.0.0"`
	Port         uint16        `env:"PORT,default=8080"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT,default=30s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT,default=1m"`
	IdleTimeout  time.Duration `env:"IDLE_TIMEOUT,default=1m"`
}

func (a APIHTTPConfig) ADDR() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

type DBConfig struct {
	Driver       string `env:"DRIVER,default=sqlite3"`
	DSN          string `env:"DSN,default=./data/groupmemail.db"`
	MaxOpenConns int    `env:"MAX_OPEN_CONNS,default=25"`
	MaxIdleConns int    `env:"MAX_IDLE_CONNS,default=5"`
	MaxLifetime  string `env:"MAX_LIFETIME,default=5m"`
}

func (c DBConfig) Validate() error {
	return sqldb.ValidateDriver(c.Driver)
}
