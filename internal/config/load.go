package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/rowjay/kibana-dashboard-backup/internal/compress"
)

const (
	envPrefix = "KDB"
)

// DefaultFormats keeps one snapshot per weekday, one per month and an
// always-latest "today" snapshot.
var DefaultFormats = []string{"%A", "%B", "today"}

// ErrMissing reports a required setting that was not supplied.
var ErrMissing = errors.New("missing required configuration")

// legacyEnv maps config keys to the un-prefixed variables older cron
// entries export. KDB_* values win when both are set.
var legacyEnv = map[string]string{
	"search.host":       "ELASTIC_SEARCH_HOST",
	"search.port":       "ELASTIC_SEARCH_PORT",
	"storage.s3.bucket": "KIBANA_BUCKET",
	"storage.prefix":    "KIBANA_PREFIX",
}

// Load reads configuration from a file (optionally encrypted), env vars, and defaults.
func Load(path string) (*Config, error) {
	vp := viper.New()
	vp.SetEnvPrefix(envPrefix)
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()

	setDefaults(vp)
	if err := bindEnv(vp); err != nil {
		return nil, err
	}

	resolved, err := resolveConfigPath(path)
	if err != nil {
		return nil, err
	}

	if resolved != "" {
		data, readErr := os.ReadFile(resolved)
		if readErr != nil {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
		if isEncryptedPath(resolved) {
			vp.SetConfigType(configTypeFromPath(resolved))
			key := os.Getenv("KDB_CONFIG_KEY")
			if key == "" {
				key = vp.GetString("global.config_passphrase")
			}
			if key == "" {
				return nil, errors.New("config file is encrypted but KDB_CONFIG_KEY is not set")
			}
			plain, decErr := decryptConfig(data, key)
			if decErr != nil {
				return nil, fmt.Errorf("decrypt config: %w", decErr)
			}
			if err := vp.ReadConfig(bytes.NewReader(plain)); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		} else {
			vp.SetConfigFile(resolved)
			if err := vp.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := vp.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	expandEnv(&cfg)
	applyPostLoadDefaults(&cfg)
	return &cfg, nil
}

// Validate checks the settings every remote operation depends on. It runs
// before any client is constructed.
func (c *Config) Validate() error {
	var missing []string
	if c.Search.Host == "" {
		missing = append(missing, "search.host")
	}
	if c.Storage.Prefix == "" {
		missing = append(missing, "storage.prefix")
	}
	switch c.Storage.Backend {
	case "s3":
		if c.Storage.S3.Bucket == "" {
			missing = append(missing, "storage.s3.bucket")
		}
	case "local":
		if c.Storage.Local.Path == "" {
			missing = append(missing, "storage.local.path")
		}
	default:
		return fmt.Errorf("unsupported storage backend: %s", c.Storage.Backend)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissing, strings.Join(missing, ", "))
	}
	if !compress.Valid(c.Backup.Compression) {
		return fmt.Errorf("unsupported backup.compression: %s", c.Backup.Compression)
	}
	if c.Backup.Encryption && c.Backup.EncryptionKey == "" {
		return fmt.Errorf("%w: backup.encryption_key (encryption is enabled)", ErrMissing)
	}
	return nil
}

func bindEnv(vp *viper.Viper) error {
	for key, legacy := range legacyEnv {
		modern := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := vp.BindEnv(key, modern, legacy); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	for _, key := range []string{
		"search.username",
		"search.password",
		"storage.local.path",
		"storage.s3.endpoint",
		"storage.s3.region",
		"storage.s3.access_key",
		"storage.s3.secret_key",
		"storage.s3.session_token",
		"backup.host",
		"backup.encryption_key",
		"global.lock_file",
	} {
		if err := vp.BindEnv(key); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

func resolveConfigPath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	if envPath := os.Getenv("KDB_CONFIG"); envPath != "" {
		return envPath, nil
	}

	candidates := []string{
		"kdb.yaml",
		"kdb.yml",
		"kdb.toml",
		"kdb.json",
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}

	configDir, err := os.UserConfigDir()
	if err == nil {
		base := filepath.Join(configDir, "kdb")
		for _, c := range candidates {
			p := filepath.Join(base, c)
			if _, err := os.Stat(p); err == nil {
				return p, nil
			}
		}
		for _, c := range []string{"kdb.yaml.enc", "kdb.yml.enc", "kdb.toml.enc"} {
			p := filepath.Join(base, c)
			if _, err := os.Stat(p); err == nil {
				return p, nil
			}
		}
	}

	return "", nil
}

func isEncryptedPath(path string) bool {
	return strings.HasSuffix(path, ".enc") || strings.HasSuffix(path, ".encrypted")
}

func configTypeFromPath(path string) string {
	switch {
	case strings.HasSuffix(path, ".toml") || strings.HasSuffix(path, ".toml.enc") || strings.HasSuffix(path, ".toml.encrypted"):
		return "toml"
	case strings.HasSuffix(path, ".json") || strings.HasSuffix(path, ".json.enc") || strings.HasSuffix(path, ".json.encrypted"):
		return "json"
	default:
		return "yaml"
	}
}

func setDefaults(vp *viper.Viper) {
	vp.SetDefault("global.log_level", "info")
	vp.SetDefault("global.log_format", "json")
	vp.SetDefault("global.operation_timeout", "30m")
	vp.SetDefault("search.scheme", "http")
	vp.SetDefault("search.host", "localhost")
	vp.SetDefault("search.port", 9200)
	vp.SetDefault("search.index", "kibana-int")
	vp.SetDefault("search.doc_type", "dashboard")
	vp.SetDefault("search.fetch_size", 1000)
	vp.SetDefault("search.request_timeout", "30s")
	vp.SetDefault("storage.backend", "s3")
	vp.SetDefault("storage.s3.endpoint", "s3.amazonaws.com")
	vp.SetDefault("storage.s3.use_ssl", true)
	vp.SetDefault("backup.formats", DefaultFormats)
	vp.SetDefault("backup.compression", "none")
	vp.SetDefault("verify.max_age", "48h")
}

func applyPostLoadDefaults(cfg *Config) {
	if cfg.Global.OperationTimeout == 0 {
		cfg.Global.OperationTimeout = 30 * time.Minute
	}
	if cfg.Search.FetchSize <= 0 {
		cfg.Search.FetchSize = 1000
	}
	if cfg.Verify.MaxAge == 0 {
		cfg.Verify.MaxAge = 48 * time.Hour
	}
	if len(cfg.Backup.Formats) == 0 {
		cfg.Backup.Formats = append([]string(nil), DefaultFormats...)
	}
	if cfg.Backup.Host == "" {
		if host, err := os.Hostname(); err == nil {
			cfg.Backup.Host = host
		}
	}
	cfg.Storage.Backend = strings.ToLower(cfg.Storage.Backend)
	cfg.Backup.Compression = strings.ToLower(cfg.Backup.Compression)
}

func expandEnv(cfg *Config) {
	cfg.Search.Username = os.ExpandEnv(cfg.Search.Username)
	cfg.Search.Password = os.ExpandEnv(cfg.Search.Password)
	cfg.Backup.EncryptionKey = os.ExpandEnv(cfg.Backup.EncryptionKey)
	cfg.Storage.S3.AccessKey = os.ExpandEnv(cfg.Storage.S3.AccessKey)
	cfg.Storage.S3.SecretKey = os.ExpandEnv(cfg.Storage.S3.SecretKey)
	cfg.Storage.S3.SessionToken = os.ExpandEnv(cfg.Storage.S3.SessionToken)
	cfg.Notifications = expandNotificationEnv(cfg.Notifications)
}

func expandNotificationEnv(cfg NotificationsConfig) NotificationsConfig {
	for i := range cfg.Webhooks {
		cfg.Webhooks[i].URL = os.ExpandEnv(cfg.Webhooks[i].URL)
	}
	for i := range cfg.Mattermost {
		cfg.Mattermost[i].URL = os.ExpandEnv(cfg.Mattermost[i].URL)
	}
	for i := range cfg.Matrix {
		cfg.Matrix[i].ServerURL = os.ExpandEnv(cfg.Matrix[i].ServerURL)
		cfg.Matrix[i].AccessToken = os.ExpandEnv(cfg.Matrix[i].AccessToken)
		cfg.Matrix[i].RoomID = os.ExpandEnv(cfg.Matrix[i].RoomID)
	}
	return cfg
}
