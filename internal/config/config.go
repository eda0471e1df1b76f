// Package config provides environment-variable-first configuration loading
// with optional YAML file fallback.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shineum/mailthread/internal/quote"
)

// defaultMaxMessageSize is 25 MB in bytes.
const defaultMaxMessageSize = 26214400

// Config holds the complete application configuration.
type Config struct {
	SMTP     SMTPConfig    `yaml:"smtp"`
	TLS      TLSConfig     `yaml:"tls"`
	Logging  LoggingConfig `yaml:"logging"`
	Store    StoreConfig   `yaml:"store"`
	Segment  SegmentConfig `yaml:"segment"`
	Images   ImagesConfig  `yaml:"images"`
	IMAP     IMAPConfig    `yaml:"imap"`
	Reply    ReplyConfig   `yaml:"reply"`
	Provider string        `yaml:"provider"`
	SES      SESConfig     `yaml:"ses"`
}

// SMTPConfig holds the ingest server configuration.
type SMTPConfig struct {
	Listen         string        `yaml:"listen"`
	Hostname       string        `yaml:"hostname"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	MaxMessageSize int64         `yaml:"max_message_size"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
}

// TLSConfig holds the STARTTLS settings. Without cert and key files a
// self-signed certificate is generated for the SMTP hostname.
type TLSConfig struct {
	Disabled bool   `yaml:"disabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// StoreConfig holds the SQLite database location.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// SegmentConfig tunes quote detection.
type SegmentConfig struct {
	MaxDepth int `yaml:"max_depth"`
}

// ImagesConfig controls inline image rewriting and message routing.
type ImagesConfig struct {
	URLTemplate  string `yaml:"url_template"`
	DefaultBoard string `yaml:"default_board"`
}

// IMAPConfig holds the mailbox used by the import command.
type IMAPConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Mailbox  string `yaml:"mailbox"`
	TLS      bool   `yaml:"tls"`
	Limit    int    `yaml:"limit"`
}

// ReplyConfig is the identity outgoing replies are sent as.
type ReplyConfig struct {
	From     string `yaml:"from"`
	FromName string `yaml:"from_name"`
}

// SESConfig holds AWS SES configuration.
type SESConfig struct {
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Sender          string `yaml:"sender"`
}

// Load loads configuration from environment variables with sensible defaults.
// Environment variables always take precedence.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	if err := cfg.applyEnvVars(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file as the base layer,
// then overrides with environment variables. Returns an error if the
// specified file path does not exist.
func LoadFromFile(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.applyEnvVars(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// AuthEnabled returns true if both SMTP username and password are set.
func (c *Config) AuthEnabled() bool {
	return c.SMTP.Username != "" && c.SMTP.Password != ""
}

// SESConfigured returns true if the SES region and sender are set.
func (c *Config) SESConfigured() bool {
	return c.SES.Region != "" && c.SES.Sender != ""
}

// IMAPConfigured returns true if a mailbox to import from is set.
func (c *Config) IMAPConfigured() bool {
	return c.IMAP.Host != "" && c.IMAP.Username != ""
}

// ReplyFrom returns the address replies are sent from: reply.from, else the
// SES sender.
func (c *Config) ReplyFrom() string {
	if c.Reply.From != "" {
		return c.Reply.From
	}
	return c.SES.Sender
}

// Validate reports settings that cannot work together.
func (c *Config) Validate() error {
	var errs []error
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log level %q", c.Logging.Level))
	}
	switch c.Provider {
	case "stdout":
	case "ses":
		if !c.SESConfigured() {
			errs = append(errs, errors.New("ses provider requires SES_REGION and SES_SENDER"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown provider %q", c.Provider))
	}
	if (c.TLS.CertFile == "") != (c.TLS.KeyFile == "") {
		errs = append(errs, errors.New("tls cert_file and key_file must be set together"))
	}
	if c.Segment.MaxDepth <= 0 {
		errs = append(errs, fmt.Errorf("segment max_depth must be positive, got %d", c.Segment.MaxDepth))
	}
	if !strings.Contains(c.Images.URLTemplate, "{attachmentId}") {
		errs = append(errs, errors.New("images url_template must contain {attachmentId}"))
	}
	return errors.Join(errs...)
}

// applyDefaults sets sensible default values for all configuration fields.
func (c *Config) applyDefaults() {
	c.SMTP.Listen = ":2525"
	c.SMTP.Hostname = "localhost"
	c.SMTP.MaxMessageSize = defaultMaxMessageSize
	c.SMTP.ReadTimeout = 60 * time.Second
	c.SMTP.WriteTimeout = 60 * time.Second
	c.Logging.Level = "info"
	c.Store.Path = "mailthread.db"
	c.Segment.MaxDepth = quote.DefaultMaxDepth
	c.Images.URLTemplate = quote.DefaultImageURLTemplate
	c.IMAP.Mailbox = "INBOX"
	c.IMAP.TLS = true
	c.IMAP.Limit = 50
	c.Provider = "stdout"
}

// applyEnvVars overrides configuration with environment variable values.
// Only non-empty environment variables override existing values; a value
// that does not parse is an error.
func (c *Config) applyEnvVars() error {
	setString(&c.SMTP.Listen, "SMTP_LISTEN")
	setString(&c.SMTP.Hostname, "SMTP_HOSTNAME")
	setString(&c.SMTP.Username, "SMTP_USERNAME")
	setString(&c.SMTP.Password, "SMTP_PASSWORD")

	setString(&c.TLS.CertFile, "TLS_CERT_FILE")
	setString(&c.TLS.KeyFile, "TLS_KEY_FILE")

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}

	setString(&c.Store.Path, "STORE_PATH")
	setString(&c.Images.URLTemplate, "IMAGES_URL_TEMPLATE")
	setString(&c.Images.DefaultBoard, "IMAGES_DEFAULT_BOARD")

	setString(&c.IMAP.Host, "IMAP_HOST")
	setString(&c.IMAP.Port, "IMAP_PORT")
	setString(&c.IMAP.Username, "IMAP_USERNAME")
	setString(&c.IMAP.Password, "IMAP_PASSWORD")
	setString(&c.IMAP.Mailbox, "IMAP_MAILBOX")

	setString(&c.Reply.From, "REPLY_FROM")
	setString(&c.Reply.FromName, "REPLY_FROM_NAME")

	if v := os.Getenv("PROVIDER"); v != "" {
		c.Provider = strings.ToLower(v)
	}
	setString(&c.SES.Region, "SES_REGION")
	setString(&c.SES.AccessKeyID, "SES_ACCESS_KEY_ID")
	setString(&c.SES.SecretAccessKey, "SES_SECRET_ACCESS_KEY")
	setString(&c.SES.Sender, "SES_SENDER")

	return errors.Join(
		setInt64(&c.SMTP.MaxMessageSize, "SMTP_MAX_MESSAGE_SIZE"),
		setDuration(&c.SMTP.ReadTimeout, "SMTP_READ_TIMEOUT"),
		setDuration(&c.SMTP.WriteTimeout, "SMTP_WRITE_TIMEOUT"),
		setBool(&c.TLS.Disabled, "TLS_DISABLED"),
		setInt(&c.Segment.MaxDepth, "SEGMENT_MAX_DEPTH"),
		setBool(&c.IMAP.TLS, "IMAP_TLS"),
		setInt(&c.IMAP.Limit, "IMAP_LIMIT"),
	)
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

func setInt64(dst *int64, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = b
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}
