package config

import "time"

// Config is the root configuration schema.
type Config struct {
	Global        GlobalConfig        `mapstructure:"global"`
	Search        SearchConfig        `mapstructure:"search"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Backup        BackupConfig        `mapstructure:"backup"`
	Restore       RestoreConfig       `mapstructure:"restore"`
	Verify        VerifyConfig        `mapstructure:"verify"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
}

type GlobalConfig struct {
	LogLevel         string        `mapstructure:"log_level"`
	LogFormat        string        `mapstructure:"log_format"` // json or console
	LockFile         string        `mapstructure:"lock_file"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout"`
	ConfigPassphrase string        `mapstructure:"config_passphrase"` // optional; may come from env
}

// SearchConfig locates the Elasticsearch index/type holding the dashboards.
type SearchConfig struct {
	Scheme         string        `mapstructure:"scheme"`
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	Index          string        `mapstructure:"index"`
	DocType        string        `mapstructure:"doc_type"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	FetchSize      int           `mapstructure:"fetch_size"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type StorageConfig struct {
	Backend string     `mapstructure:"backend"` // s3, local
	Local   LocalStore `mapstructure:"local"`
	S3      S3Store    `mapstructure:"s3"`
	Prefix  string     `mapstructure:"prefix"`
}

type LocalStore struct {
	Path string `mapstructure:"path"`
}

type S3Store struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	AccessKey       string `mapstructure:"access_key"`
	SecretKey       string `mapstructure:"secret_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	ForcePathStyle  bool   `mapstructure:"force_path_style"`
	SessionToken    string `mapstructure:"session_token"`
	TLSInsecureSkip bool   `mapstructure:"tls_insecure_skip"`
}

type BackupConfig struct {
	Host          string   `mapstructure:"host"` // defaults to os.Hostname()
	Formats       []string `mapstructure:"formats"`
	Compression   string   `mapstructure:"compression"` // none, gzip, zstd
	Encryption    bool     `mapstructure:"encryption"`
	EncryptionKey string   `mapstructure:"encryption_key"`
}

type RestoreConfig struct {
	DryRun bool `mapstructure:"dry_run"`
}

type VerifyConfig struct {
	MaxAge time.Duration `mapstructure:"max_age"`
}

type NotificationsConfig struct {
	Webhooks   []WebhookConfig  `mapstructure:"webhooks"`
	Mattermost []MattermostHook `mapstructure:"mattermost"`
	Matrix     []MatrixConfig   `mapstructure:"matrix"`
}

type WebhookConfig struct {
	Name    string            `mapstructure:"name"`
	URL     string            `mapstructure:"url"`
	Headers map[string]string `mapstructure:"headers"`
}

type MattermostHook struct {
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url"`
}

type MatrixConfig struct {
	Name        string `mapstructure:"name"`
	ServerURL   string `mapstructure:"server_url"`
	AccessToken string `mapstructure:"access_token"`
	RoomID      string `mapstructure:"room_id"`
}
