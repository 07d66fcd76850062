package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all client configuration
type Config struct {
	Backend Backend `mapstructure:"backend"`
	WeCom   WeCom   `mapstructure:"wecom"`
	Upload  Upload  `mapstructure:"upload"`
	Storage Storage `mapstructure:"storage"`
	Voucher Voucher `mapstructure:"voucher"`
	Logger  Logger  `mapstructure:"logger"`
}

// Backend holds the reimbursement backend connection settings
type Backend struct {
	BaseURL string        `mapstructure:"base_url"`
	Domain  string        `mapstructure:"domain"`
	Env     string        `mapstructure:"env"` // development or production
	Timeout time.Duration `mapstructure:"timeout"`
}

// WeCom holds the WeCom (企业微信) OAuth settings used for login
type WeCom struct {
	CorpID      string `mapstructure:"corp_id"`
	AgentID     string `mapstructure:"agent_id"`
	RedirectURI string `mapstructure:"redirect_uri"`
	State       string `mapstructure:"state"`
	// CallbackAddr is where the local code-capture server listens
	CallbackAddr string `mapstructure:"callback_addr"`
}

// Upload holds invoice upload limits and timeouts
type Upload struct {
	MaxFileSizeMB int           `mapstructure:"max_file_size_mb"`
	BatchTimeout  time.Duration `mapstructure:"batch_timeout"`
	SingleTimeout time.Duration `mapstructure:"single_timeout"`
}

// Storage holds local durable-state paths
type Storage struct {
	// SnapshotDir holds the auth snapshot (single key "auth")
	SnapshotDir string `mapstructure:"snapshot_dir"`
	HistoryDB   string `mapstructure:"history_db"`
}

// Voucher holds claim summary export configuration
type Voucher struct {
	OutputDir string `mapstructure:"output_dir"`
}

// Logger holds logger configuration
type Logger struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("backend.env", "development")
	viper.SetDefault("backend.timeout", 30*time.Second)

	viper.SetDefault("wecom.state", "fapiao")
	viper.SetDefault("wecom.callback_addr", "127.0.0.1:8421")

	viper.SetDefault("upload.max_file_size_mb", 10)
	viper.SetDefault("upload.batch_timeout", 300*time.Second)
	viper.SetDefault("upload.single_timeout", 120*time.Second)

	viper.SetDefault("storage.snapshot_dir", "data")
	viper.SetDefault("storage.history_db", "data/history.db")

	viper.SetDefault("voucher.output_dir", "generated_vouchers")

	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars() {
	viper.BindEnv("backend.base_url", "VITE_APP_BASE_URL")
	viper.BindEnv("backend.domain", "VITE_APP_DOMAIN")
	viper.BindEnv("backend.env", "VITE_APP_ENV")
	viper.BindEnv("wecom.corp_id", "WECOM_CORP_ID")
	viper.BindEnv("wecom.agent_id", "WECOM_AGENT_ID")
	viper.BindEnv("wecom.redirect_uri", "WECOM_REDIRECT_URI")
	viper.BindEnv("wecom.state", "WECOM_STATE")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	if c.Backend.Env != "development" && c.Backend.Env != "production" {
		return fmt.Errorf("backend.env must be development or production, got %q", c.Backend.Env)
	}
	if c.WeCom.CorpID == "" {
		return fmt.Errorf("wecom.corp_id is required")
	}
	if c.WeCom.AgentID == "" {
		return fmt.Errorf("wecom.agent_id is required")
	}
	if c.Upload.MaxFileSizeMB <= 0 {
		return fmt.Errorf("upload.max_file_size_mb must be positive")
	}
	return nil
}
