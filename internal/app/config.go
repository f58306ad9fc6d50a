package app

import (
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/xenking/ramen-pos/internal/board"
	"github.com/xenking/ramen-pos/internal/display"
	"github.com/xenking/ramen-pos/internal/receipt"
	"github.com/xenking/ramen-pos/internal/stream"
)

const defaultDisplayAddr = "0.0.0.0:8090"

// Stream transports.
const (
	TransportWebSocket = "ws"
	TransportKafka     = "kafka"
)

// Config holds the configuration shared by the register and the kitchen
// display, loadable from environment variables (RAMEN_ prefix), flags, a
// .env file or YAML config files.
type Config struct {
	Backend  BackendConfig
	Auth     AuthConfig
	Stream   StreamConfig
	Board    board.Config
	Display  display.Config
	Receipt  receipt.Config
	TaxRate  string `default:"0.15" usage:"Tax rate applied to draft subtotals" flag:"tax-rate"`
	Graceful GracefulConfig
}

// BackendConfig locates the POS backend.
type BackendConfig struct {
	BaseURL string        `default:"http://127.0.0.1:8000" usage:"POS backend base URL" flag:"backend-url"`
	Timeout time.Duration `default:"15s" usage:"Timeout of a single backend request"`
}

// AuthConfig holds backend credentials. A static Token wins over the
// username and password.
type AuthConfig struct {
	Username string `usage:"Backend login user"`
	Password string `usage:"Backend login password"`
	Token    string `usage:"Pre-issued backend access token"`
}

// StreamConfig controls the kitchen event stream.
type StreamConfig struct {
	Transport   string        `default:"ws" usage:"Push transport: ws or kafka"`
	IdleTimeout time.Duration `default:"0s" usage:"Reconnect when no frame arrived for this long (0 disables)"`
	Client      stream.Config
	Kafka       KafkaConfig
}

// KafkaConfig selects the topic carrying kitchen frames.
type KafkaConfig struct {
	Brokers []string      `usage:"Kafka bootstrap brokers"`
	Topic   string        `default:"kitchen-events" usage:"Kafka topic with kitchen frames"`
	GroupID string        `usage:"Kafka consumer group (empty reads without a group)"`
	MaxWait time.Duration `default:"1s" usage:"Longest wait for a Kafka fetch"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from an optional .env file, environment
// variables, YAML config files and flags, then applies platform defaults.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, errors.Wrap(err, "load .env")
	}
	return loadConfig(aconfig.Config{
		Files: []string{"config.yaml", "/etc/ramen/config.yaml"},
	})
}

func loadConfig(ac aconfig.Config) (*Config, error) {
	var cfg Config
	ac.EnvPrefix = "RAMEN"
	ac.FileDecoders = map[string]aconfig.FileDecoder{
		".yaml": aconfigyaml.New(),
	}
	loader := aconfig.LoaderFor(&cfg, ac)
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps the platform-provided PORT onto the display
// listen address.
func (c *Config) applyPlatformDefaults() {
	if port := os.Getenv("PORT"); port != "" && c.Display.Addr == defaultDisplayAddr {
		c.Display.Addr = "0.0.0.0:" + port
	}
}

// Validate rejects values the services cannot run with.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.Errorf("backend base url %q must be an absolute http(s) URL", c.Backend.BaseURL)
	}
	if _, err := c.Tax(); err != nil {
		return err
	}

	switch strings.ToLower(c.Stream.Transport) {
	case TransportWebSocket:
	case TransportKafka:
		if len(c.Stream.Kafka.Brokers) == 0 {
			return errors.New("kafka transport needs at least one broker: set RAMEN_STREAM_KAFKA_BROKERS")
		}
		if c.Stream.Kafka.Topic == "" {
			return errors.New("kafka transport needs a topic")
		}
	default:
		return errors.Errorf("unknown stream transport %q: want %s or %s",
			c.Stream.Transport, TransportWebSocket, TransportKafka)
	}

	if c.Auth.Token == "" && (c.Auth.Username == "") != (c.Auth.Password == "") {
		return errors.New("auth needs both username and password")
	}
	return nil
}

// Tax returns the parsed tax rate.
func (c *Config) Tax() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(strings.TrimSpace(c.TaxRate))
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "parse tax rate %q", c.TaxRate)
	}
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return decimal.Decimal{}, errors.Errorf("tax rate %s is outside [0, 1)", rate)
	}
	return rate, nil
}
