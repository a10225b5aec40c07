package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const envPrefix = "ATELIER"

type Config struct {
	AppName     string `mapstructure:"app_name"`
	Environment string `mapstructure:"environment"`
	Currency    string `mapstructure:"currency"`
	NodeID      int64  `mapstructure:"node_id"`

	HTTP        HTTPConfig        `mapstructure:"http"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Log         LogConfig         `mapstructure:"log"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`
	Kafka       KafkaConfig       `mapstructure:"kafka"`
	Attribution AttributionConfig `mapstructure:"attribution"`
	Shipping    ShippingConfig    `mapstructure:"shipping"`
	Commission  CommissionConfig  `mapstructure:"commission"`
	Stripe      StripeConfig      `mapstructure:"stripe"`
	Whish       WhishConfig       `mapstructure:"whish"`
	SMTP        SMTPConfig        `mapstructure:"smtp"`
	Slack       SlackConfig       `mapstructure:"slack"`
	Reports     ReportsConfig     `mapstructure:"reports"`
	Admin       AdminConfig       `mapstructure:"admin"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Driver       string        `mapstructure:"driver"` // postgres, mysql, sqlite
	DSN          string        `mapstructure:"dsn"`
	MaxOpenConns int           `mapstructure:"max_open_conns"`
	MaxIdleConns int           `mapstructure:"max_idle_conns"`
	ConnMaxLife  time.Duration `mapstructure:"conn_max_life"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, console
}

type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	Protocol     string `mapstructure:"protocol"` // http, grpc
	Insecure     bool   `mapstructure:"insecure"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type AttributionConfig struct {
	CookieName    string `mapstructure:"cookie_name"`
	CookieDomain  string `mapstructure:"cookie_domain"`
	CookieSecure  bool   `mapstructure:"cookie_secure"`
	VisitorHeader string `mapstructure:"visitor_header"`
}

type ShippingConfig struct {
	FreeShippingThreshold string `mapstructure:"free_shipping_threshold"`
	FlatFee               string `mapstructure:"flat_fee"`
}

type CommissionConfig struct {
	// DefaultRate applies only when the attributed consultant record no longer exists.
	DefaultRate string `mapstructure:"default_rate"`
}

type StripeConfig struct {
	APIKey           string        `mapstructure:"api_key"`
	WebhookSecret    string        `mapstructure:"webhook_secret"`
	WebhookTolerance time.Duration `mapstructure:"webhook_tolerance"`
	BaseURL          string        `mapstructure:"base_url"`
	SuccessURL       string        `mapstructure:"success_url"`
	CancelURL        string        `mapstructure:"cancel_url"`
}

type WhishConfig struct {
	BaseURL         string `mapstructure:"base_url"`
	Channel         string `mapstructure:"channel"`
	Secret          string `mapstructure:"secret"`
	WebsiteURL      string `mapstructure:"website_url"`
	CallbackBaseURL string `mapstructure:"callback_base_url"`
	RedirectURL     string `mapstructure:"redirect_url"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type SlackConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
}

type ReportsConfig struct {
	CronSecret string        `mapstructure:"cron_secret"`
	TopClients int           `mapstructure:"top_clients"`
	LockTTL    time.Duration `mapstructure:"lock_ttl"`
}

type AdminConfig struct {
	Token string `mapstructure:"token"`
}

type SchedulerConfig struct {
	Interval             time.Duration `mapstructure:"interval"`
	WebhookRetentionDays int           `mapstructure:"webhook_retention_days"`
}

// FreeShippingThreshold returns the parsed threshold; malformed values fall back to the default.
func (c Config) FreeShippingThreshold() decimal.Decimal {
	return parseDecimal(c.Shipping.FreeShippingThreshold, defaultFreeShippingThreshold)
}

func (c Config) ShippingFlatFee() decimal.Decimal {
	return parseDecimal(c.Shipping.FlatFee, defaultShippingFlatFee)
}

func (c Config) DefaultCommissionRate() decimal.Decimal {
	return parseDecimal(c.Commission.DefaultRate, defaultCommissionRate)
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

const (
	defaultFreeShippingThreshold = "50.00"
	defaultShippingFlatFee       = "5.99"
	defaultCommissionRate        = "10"
)

func parseDecimal(raw, fallback string) decimal.Decimal {
	value, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.RequireFromString(fallback)
	}
	return value
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_name", "atelier")
	v.SetDefault("environment", "development")
	v.SetDefault("currency", "USD")
	v.SetDefault("node_id", 1)

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.shutdown_timeout", 15*time.Second)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "host=localhost user=postgres password=postgres dbname=atelier port=5432 sslmode=disable")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_life", 30*time.Minute)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("telemetry.protocol", "http")

	v.SetDefault("kafka.topic", "atelier.events")

	v.SetDefault("attribution.cookie_name", "atelier_ref")
	v.SetDefault("attribution.visitor_header", "X-Visitor-Id")

	v.SetDefault("shipping.free_shipping_threshold", defaultFreeShippingThreshold)
	v.SetDefault("shipping.flat_fee", defaultShippingFlatFee)

	v.SetDefault("commission.default_rate", defaultCommissionRate)

	v.SetDefault("stripe.base_url", "https://api.stripe.com")
	v.SetDefault("stripe.webhook_tolerance", 5*time.Minute)

	v.SetDefault("whish.base_url", "https://api.sandbox.whish.money/itel-service/api/")

	v.SetDefault("smtp.port", 2525)

	v.SetDefault("reports.top_clients", 3)
	v.SetDefault("reports.lock_ttl", 30*time.Minute)

	v.SetDefault("scheduler.interval", time.Minute)
	v.SetDefault("scheduler.webhook_retention_days", 90)

	// Unmarshal only sees env values for keys viper already knows about.
	for _, key := range []string{
		"database.dsn", "redis.password", "telemetry.otlp_endpoint",
		"attribution.cookie_domain",
		"stripe.api_key", "stripe.webhook_secret", "stripe.success_url", "stripe.cancel_url",
		"whish.channel", "whish.secret", "whish.website_url", "whish.callback_base_url", "whish.redirect_url",
		"smtp.host", "smtp.username", "smtp.password", "smtp.from",
		"slack.webhook_url", "reports.cron_secret", "admin.token", "config_file",
	} {
		if !v.IsSet(key) {
			v.SetDefault(key, "")
		}
	}
	v.SetDefault("redis.db", 0)
	v.SetDefault("telemetry.insecure", false)
	v.SetDefault("attribution.cookie_secure", false)
	v.SetDefault("kafka.brokers", []string{})
}

// Load reads configuration from defaults, an optional config file and ATELIER_* environment
// variables, in increasing order of precedence. A .env file in the working directory is
// loaded first when present.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := newViper()
	if err := readConfigFile(v); err != nil {
		return Config{}, err
	}
	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func readConfigFile(v *viper.Viper) error {
	path := strings.TrimSpace(v.GetString("config_file"))
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	return nil
}

func decode(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.Kafka.Brokers = splitList(strings.Join(cfg.Kafka.Brokers, ","))
	cfg.Currency = strings.ToUpper(strings.TrimSpace(cfg.Currency))
	if cfg.Reports.TopClients <= 0 {
		cfg.Reports.TopClients = 3
	}
	return cfg, nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Watcher re-reads the config file when it changes and hands the decoded values
// to subscribers. Subscribers apply only the sections they can swap at runtime
// (log.level, reports.top_clients); everything else needs a restart.
type Watcher struct {
	mu          sync.Mutex
	log         *zap.Logger
	subscribers []func(Config)
}

func NewWatcher() *Watcher {
	return &Watcher{log: zap.NewNop()}
}

func (w *Watcher) Subscribe(fn func(Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.subscribers = append(w.subscribers, fn)
}

// Apply hands cfg to every subscriber.
func (w *Watcher) Apply(cfg Config) {
	w.mu.Lock()
	subscribers := append([]func(Config){}, w.subscribers...)
	w.mu.Unlock()
	for _, fn := range subscribers {
		fn(cfg)
	}
}

// Start begins watching the config file, if one is configured.
func (w *Watcher) Start(log *zap.Logger) {
	w.mu.Lock()
	w.log = log.Named("config")
	w.mu.Unlock()

	v := newViper()
	if err := readConfigFile(v); err != nil || v.ConfigFileUsed() == "" {
		return
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		w.reload(v, e.Name)
	})
	v.WatchConfig()
}

func (w *Watcher) reload(v *viper.Viper, file string) {
	cfg, err := decode(v)

	w.mu.Lock()
	log := w.log
	w.mu.Unlock()

	if err != nil {
		log.Warn("config file changed but could not be decoded, keeping current values",
			zap.String("file", file),
			zap.Error(err))
		return
	}
	w.Apply(cfg)
	log.Info("config reloaded",
		zap.String("file", file),
		zap.String("log_level", cfg.Log.Level),
		zap.Int("reports_top_clients", cfg.Reports.TopClients))
}
