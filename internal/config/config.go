package config

import (
	"fmt"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"os"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"
)

var cfg *Config
var once sync.Once

// Config is the configuration for the application
type Config struct {
	Server
	Logging
	Store
	PostgreSQL
	Mongo
	Redis
	Kafka
	Process
	Settlement
	Admin
	Gateways
}

// Server is the configuration for the server
type Server struct {
	Port string `env:"PORT" envDefault:"8080"`
}

// Addr returns the address for the server
func (s Server) Addr() string {
	return fmt.Sprintf("%s:%s", "0.0.0.0", s.Port)
}

type Logging struct {
	Level string `env:"LOG_LEVEL" envDefault:"info"`
	File  string `env:"LOG_FILE" envDefault:""`
}

// Store selects the ledger backend: postgres, mongo or memory.
type Store struct {
	Driver      string `env:"STORE_DRIVER" envDefault:"postgres"`
	AutoMigrate string `env:"DB_AUTO_MIGRATE" envDefault:"true"`
}

func (s Store) Migrate() bool {
	return parseBool(s.AutoMigrate, true)
}

// PostgreSQL is the configuration for the database
type PostgreSQL struct {
	Driver          string `env:"DB_DRIVER" envDefault:"postgres"`
	Host            string `env:"DB_HOST" envDefault:"localhost"`
	Port            string `env:"DB_PORT" envDefault:"5432"`
	Database        string `env:"DB_DATABASE" envDefault:"coin_settlement"`
	Username        string `env:"DB_USERNAME" envDefault:"coin_settlement"`
	Password        string `env:"DB_PASSWORD" envDefault:"coin_settlement"`
	SSLMode         string `env:"DB_SSLMODE" envDefault:"disable"`
	MaxConnAttempts string `env:"DB_MAX_CONN_ATTEMPTS" envDefault:"5"`
}

// DSN returns the DSN for the database
func (c PostgreSQL) DSN() string {
	return fmt.Sprintf("%s://%s:%s@%s:%s/%s?sslmode=%s",
		c.Driver,
		c.Username,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
		c.SSLMode,
	)
}

type Mongo struct {
	URI      string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017/?replicaSet=rs0"`
	Database string `env:"MONGO_DATABASE" envDefault:"coin_settlement"`
}

// Redis enables webhook delivery dedupe when Addr is set.
type Redis struct {
	Addr      string `env:"REDIS_ADDR" envDefault:""`
	Password  string `env:"REDIS_PASSWORD" envDefault:""`
	DB        string `env:"REDIS_DB" envDefault:"0"`
	DedupeTTL string `env:"REDIS_DEDUPE_TTL" envDefault:"24h"`
}

func (r Redis) DBIndex() int {
	return parseInt(r.DB, 0)
}

func (r Redis) TTL() time.Duration {
	return parseDuration(r.DedupeTTL, 24*time.Hour)
}

// Kafka enables settlement event publishing when Brokers is set.
type Kafka struct {
	Brokers string `env:"KAFKA_BROKERS" envDefault:""`
	Topic   string `env:"KAFKA_TOPIC" envDefault:"settlement-events"`
}

func (k Kafka) BrokerList() []string {
	return splitCSV(k.Brokers)
}

// Process configures the expiry reconciler.
type Process struct {
	Interval       string `env:"PROCESS_INTERVAL" envDefault:"5m"`
	Deadline       string `env:"PROCESS_DEADLINE" envDefault:"15m"`
	BatchSize      string `env:"PROCESS_BATCH_SIZE" envDefault:"100"`
	Workers        string `env:"PROCESS_WORKERS" envDefault:"4"`
	TerminalStatus string `env:"PROCESS_TERMINAL_STATUS" envDefault:"expired"`
}

func (p Process) IntervalDuration() time.Duration {
	return parseDuration(p.Interval, 5*time.Minute)
}

func (p Process) DeadlineDuration() time.Duration {
	return parseDuration(p.Deadline, 15*time.Minute)
}

func (p Process) BatchLimit() int {
	return parseInt(p.BatchSize, 100)
}

func (p Process) WorkerCount() int {
	return parseInt(p.Workers, 4)
}

// Settlement holds the coin conversion, bonus and referral parameters.
type Settlement struct {
	CoinsPerUnit      string `env:"COINS_PER_UNIT" envDefault:"100"`
	BonusPerUnit      string `env:"BONUS_PER_UNIT" envDefault:"10"`
	WalletCurrency    string `env:"WALLET_CURRENCY" envDefault:"COIN"`
	Rates             string `env:"CURRENCY_RATES" envDefault:"USD:1,EUR:1.08,GBP:1.27,USDT:1,USDC:1"`
	VIPTiers          string `env:"VIP_TIERS" envDefault:"bronze:0:1,silver:100:1.5,gold:500:2,platinum:2000:3"`
	ReferralThreshold string `env:"REFERRAL_THRESHOLD" envDefault:"20"`
	ReferralReward    string `env:"REFERRAL_REWARD" envDefault:"1000"`
	DefaultProvider   string `env:"DEFAULT_PROVIDER" envDefault:"paygate"`
}

func (s Settlement) CoinRate() decimal.Decimal {
	return parseDecimal(s.CoinsPerUnit, decimal.NewFromInt(100))
}

func (s Settlement) BonusRate() decimal.Decimal {
	return parseDecimal(s.BonusPerUnit, decimal.NewFromInt(10))
}

func (s Settlement) Threshold() decimal.Decimal {
	return parseDecimal(s.ReferralThreshold, decimal.NewFromInt(20))
}

func (s Settlement) Reward() int64 {
	return int64(parseInt(s.ReferralReward, 1000))
}

// RateTable parses CURRENCY_RATES ("USD:1,EUR:1.08") into unit prices.
func (s Settlement) RateTable() (map[string]decimal.Decimal, error) {
	rates := make(map[string]decimal.Decimal)
	for _, pair := range splitCSV(s.Rates) {
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid rate %q", pair)
		}
		rate, err := decimal.NewFromString(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, fmt.Errorf("invalid rate %q: %w", pair, err)
		}
		rates[strings.ToUpper(strings.TrimSpace(parts[0]))] = rate
	}
	return rates, nil
}

type Admin struct {
	Token string `env:"ADMIN_TOKEN" envDefault:""`
}

// Gateways holds provider credentials. A provider is registered only when its key is set.
type Gateways struct {
	CallbackBaseURL string `env:"CALLBACK_BASE_URL" envDefault:"http://localhost:8080/api/v1/webhooks"`
	SuccessURL      string `env:"CHECKOUT_SUCCESS_URL" envDefault:"http://localhost:3000/wallet?status=success"`
	CancelURL       string `env:"CHECKOUT_CANCEL_URL" envDefault:"http://localhost:3000/wallet?status=cancel"`
	HTTPTimeout     string `env:"GATEWAY_HTTP_TIMEOUT" envDefault:"15s"`

	NowPaymentsBaseURL   string `env:"NOWPAYMENTS_BASE_URL" envDefault:"https://api.nowpayments.io/v1"`
	NowPaymentsAPIKey    string `env:"NOWPAYMENTS_API_KEY" envDefault:""`
	NowPaymentsIPNSecret string `env:"NOWPAYMENTS_IPN_SECRET" envDefault:""`

	CoinPaymentsBaseURL    string `env:"COINPAYMENTS_BASE_URL" envDefault:"https://www.coinpayments.net/api.php"`
	CoinPaymentsPublicKey  string `env:"COINPAYMENTS_PUBLIC_KEY" envDefault:""`
	CoinPaymentsPrivateKey string `env:"COINPAYMENTS_PRIVATE_KEY" envDefault:""`
	CoinPaymentsIPNSecret  string `env:"COINPAYMENTS_IPN_SECRET" envDefault:""`

	StripeBaseURL       string `env:"STRIPE_BASE_URL" envDefault:"https://api.stripe.com/v1"`
	StripeSecretKey     string `env:"STRIPE_SECRET_KEY" envDefault:""`
	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET" envDefault:""`
	StripeTolerance     string `env:"STRIPE_SIGNATURE_TOLERANCE" envDefault:"5m"`

	PayGateBaseURL       string `env:"PAYGATE_BASE_URL" envDefault:"https://api.paygate.example/v2"`
	PayGateAPIKey        string `env:"PAYGATE_API_KEY" envDefault:""`
	PayGateWebhookSecret string `env:"PAYGATE_WEBHOOK_SECRET" envDefault:""`

	LinkPayBaseURL       string `env:"LINKPAY_BASE_URL" envDefault:"https://api.linkpay.example/v1"`
	LinkPayAPIKey        string `env:"LINKPAY_API_KEY" envDefault:""`
	LinkPayWebhookSecret string `env:"LINKPAY_WEBHOOK_SECRET" envDefault:""`

	CashBoxBaseURL       string `env:"CASHBOX_BASE_URL" envDefault:"https://merchant.cashbox.example/api"`
	CashBoxMerchantID    string `env:"CASHBOX_MERCHANT_ID" envDefault:""`
	CashBoxAPIKey        string `env:"CASHBOX_API_KEY" envDefault:""`
	CashBoxCallbackToken string `env:"CASHBOX_CALLBACK_TOKEN" envDefault:""`
}

func (g Gateways) Timeout() time.Duration {
	return parseDuration(g.HTTPTimeout, 15*time.Second)
}

func (g Gateways) StripeToleranceDuration() time.Duration {
	return parseDuration(g.StripeTolerance, 5*time.Minute)
}

// Load loads the configuration from environment variables
func Load() *Config {
	once.Do(func() {
		// a missing .env is fine, the environment wins anyway
		_ = godotenv.Load()
		cfg = load()
	})

	return cfg
}

func load() *Config {
	c := &Config{}
	cfgType := reflect.TypeOf(*c)
	cfgValue := reflect.ValueOf(c).Elem()

	for i := 0; i < cfgType.NumField(); i++ {
		field := cfgType.Field(i)
		fieldValue := cfgValue.Field(i)
		for j := 0; j < field.Type.NumField(); j++ {
			subField := field.Type.Field(j)
			envVar := subField.Tag.Get("env")
			envDefault := subField.Tag.Get("envDefault")
			value := getEnv(envVar, envDefault)

			fieldValue.Field(j).SetString(value)
		}
	}
	return c
}

// getEnv retrieves the value of the environment variable named by the key or returns the defaultValue if not set
func getEnv(key, defaultValue string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		value = defaultValue
	}
	return value
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func parseBool(value string, fallback bool) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return b
}

func parseDecimal(value string, fallback decimal.Decimal) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func splitCSV(value string) []string {
	out := make([]string, 0)
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
