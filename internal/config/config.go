// Package config loads service configuration from a YAML file, .env files and the environment.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"candy-gallery/internal/solana"
)

// Networks.
const (
	NetworkMain = "main"
	NetworkDev  = "dev"
)

// Public RPC endpoints per network.
const (
	MainnetRPCEndpoint = "https://api.mainnet-beta.solana.com"
	DevnetRPCEndpoint  = "https://api.devnet.solana.com"
)

// Defaults.
const (
	DefaultRPCTimeout          = 30 * time.Second
	DefaultMetadataConcurrency = 8
	DefaultMetadataTimeout     = 15 * time.Second
	DefaultIPFSGateway         = "https://ipfs.io/ipfs/"
	DefaultHTTPAddr            = ":8080"
	DefaultPublishKey          = "gallery.json"
	DefaultLogLevel            = "info"
	DefaultLogFormat           = "json"
)

// Config holds all service configuration.
type Config struct {
	Solana   SolanaConfig   `yaml:"solana"`
	Gallery  GalleryConfig  `yaml:"gallery"`
	Metadata MetadataConfig `yaml:"metadata"`
	HTTP     HTTPConfig     `yaml:"http"`
	Storage  StorageConfig  `yaml:"storage"`
	Publish  PublishConfig  `yaml:"publish"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// SolanaConfig configures the chain connection.
type SolanaConfig struct {
	Environment string        `yaml:"environment"`
	RPCEndpoint string        `yaml:"rpc_endpoint"`
	WSEndpoint  string        `yaml:"ws_endpoint"` // empty disables the slot feed
	MaxRetries  int           `yaml:"max_retries"`
	Timeout     time.Duration `yaml:"timeout"`
}

// GalleryConfig configures the candy machine and the wallet being checked.
type GalleryConfig struct {
	CandyMachineID   string        `yaml:"candy_machine_id"`
	Wallet           string        `yaml:"wallet"`
	FilterCollection bool          `yaml:"filter_collection"`
	AllowListFile    string        `yaml:"allow_list_file"`
	PollInterval     time.Duration `yaml:"poll_interval"` // 0 disables polling
}

// MetadataConfig configures off-chain metadata fetches.
type MetadataConfig struct {
	Concurrency int           `yaml:"concurrency"`
	Timeout     time.Duration `yaml:"timeout"`
	IPFSGateway string        `yaml:"ipfs_gateway"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// StorageConfig selects the stores.
type StorageConfig struct {
	UseMemory     bool   `yaml:"use_memory"`
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickhouseDSN string `yaml:"clickhouse_dsn"`
}

// PublishConfig configures the S3 upload. An empty bucket disables publishing.
type PublishConfig struct {
	Bucket          string `yaml:"bucket"`
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Key             string `yaml:"key"`
}

// LoggingConfig configures the root logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Solana: SolanaConfig{
			Environment: "devnet",
			Timeout:     DefaultRPCTimeout,
		},
		Metadata: MetadataConfig{
			Concurrency: DefaultMetadataConcurrency,
			Timeout:     DefaultMetadataTimeout,
			IPFSGateway: DefaultIPFSGateway,
		},
		HTTP:    HTTPConfig{Addr: DefaultHTTPAddr},
		Publish: PublishConfig{Key: DefaultPublishKey},
		Logging: LoggingConfig{Level: DefaultLogLevel, Format: DefaultLogFormat},
	}
}

// LoadEnvFiles loads the given .env files into the process environment.
// Missing files are skipped and existing variables are kept. It returns the files loaded.
func LoadEnvFiles(files ...string) ([]string, error) {
	loaded := make([]string, 0, len(files))
	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return loaded, fmt.Errorf("load %s: %w", file, err)
		}
		loaded = append(loaded, file)
	}
	return loaded, nil
}

// Load reads the YAML file at path (optional, may be empty) and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	var errs []error
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("SOLANA_ENVIRONMENT", &c.Solana.Environment)
	str("SOLANA_RPC_ENDPOINT", &c.Solana.RPCEndpoint)
	str("SOLANA_WS_ENDPOINT", &c.Solana.WSEndpoint)
	integer("RPC_MAX_RETRIES", &c.Solana.MaxRetries)
	duration("RPC_TIMEOUT", &c.Solana.Timeout)

	str("CANDY_MACHINE_ID", &c.Gallery.CandyMachineID)
	str("WALLET_ADDRESS", &c.Gallery.Wallet)
	boolean("GALLERY_FILTER_COLLECTION", &c.Gallery.FilterCollection)
	str("ALLOW_LIST_FILE", &c.Gallery.AllowListFile)
	duration("POLL_INTERVAL", &c.Gallery.PollInterval)

	integer("METADATA_CONCURRENCY", &c.Metadata.Concurrency)
	duration("METADATA_TIMEOUT", &c.Metadata.Timeout)
	str("IPFS_GATEWAY", &c.Metadata.IPFSGateway)

	str("HTTP_ADDR", &c.HTTP.Addr)

	boolean("USE_MEMORY", &c.Storage.UseMemory)
	str("POSTGRES_DSN", &c.Storage.PostgresDSN)
	str("CLICKHOUSE_DSN", &c.Storage.ClickhouseDSN)

	str("PUBLISH_BUCKET", &c.Publish.Bucket)
	str("PUBLISH_ENDPOINT", &c.Publish.Endpoint)
	str("PUBLISH_REGION", &c.Publish.Region)
	str("PUBLISH_ACCESS_KEY_ID", &c.Publish.AccessKeyID)
	str("PUBLISH_SECRET_ACCESS_KEY", &c.Publish.SecretAccessKey)
	str("PUBLISH_KEY", &c.Publish.Key)

	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FORMAT", &c.Logging.Format)

	return errors.Join(errs...)
}

// Network maps the configured environment to main or dev.
func (c *Config) Network() string {
	switch strings.ToLower(strings.TrimSpace(c.Solana.Environment)) {
	case "mainnet-beta", "mainnet":
		return NetworkMain
	default:
		return NetworkDev
	}
}

// RPCEndpoint returns the configured endpoint or the network's public one.
func (c *Config) RPCEndpoint() string {
	if c.Solana.RPCEndpoint != "" {
		return c.Solana.RPCEndpoint
	}
	if c.Network() == NetworkMain {
		return MainnetRPCEndpoint
	}
	return DevnetRPCEndpoint
}

// WalletKey parses the configured wallet. An empty wallet returns the zero key.
func (c *Config) WalletKey() (solana.PublicKey, error) {
	if c.Gallery.Wallet == "" {
		return solana.PublicKey{}, nil
	}
	return solana.ParsePublicKey(c.Gallery.Wallet)
}

// Validate rejects malformed values. A missing candy machine ID is valid.
func (c *Config) Validate() error {
	var errs []error
	if c.Solana.MaxRetries < 0 {
		errs = append(errs, errors.New("rpc max retries must be >= 0"))
	}
	if c.Solana.Timeout <= 0 {
		errs = append(errs, errors.New("rpc timeout must be positive"))
	}
	if c.Metadata.Concurrency < 1 {
		errs = append(errs, errors.New("metadata concurrency must be >= 1"))
	}
	if c.Metadata.Timeout <= 0 {
		errs = append(errs, errors.New("metadata timeout must be positive"))
	}
	if c.Gallery.PollInterval < 0 {
		errs = append(errs, errors.New("poll interval must be >= 0"))
	}
	if _, err := c.WalletKey(); err != nil {
		errs = append(errs, fmt.Errorf("wallet: %w", err))
	}
	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http addr is required"))
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Logging.Format))
	}
	if c.Publish.Bucket != "" && c.Publish.Key == "" {
		errs = append(errs, errors.New("publish key is required when a bucket is set"))
	}
	return errors.Join(errs...)
}

// ValidateStorage checks that persistent stores are configured unless memory storage is selected.
func (c *Config) ValidateStorage() error {
	if c.Storage.UseMemory {
		return nil
	}
	if c.Storage.PostgresDSN == "" || c.Storage.ClickhouseDSN == "" {
		return errors.New("postgres and clickhouse DSNs are required (set USE_MEMORY=true for in-memory storage)")
	}
	return nil
}

// LoadAllowList reads wallet addresses from path: either a JSON array of strings
// or one address per line with # comments.
func LoadAllowList(path string) ([]solana.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read allow list: %w", err)
	}

	var entries []string
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal([]byte(trimmed), &entries); err != nil {
			return nil, fmt.Errorf("parse allow list: %w", err)
		}
	} else {
		for _, line := range strings.Split(trimmed, "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			entries = append(entries, line)
		}
	}

	keys := make([]solana.PublicKey, 0, len(entries))
	for i, e := range entries {
		k, err := solana.ParsePublicKey(strings.TrimSpace(e))
		if err != nil {
			return nil, fmt.Errorf("allow list entry %d: %w", i+1, err)
		}
		keys = append(keys, k)
	}
	return keys, nil
}
