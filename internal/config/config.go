// Package config loads and validates the balance-alert configuration:
// a YAML file plus a BALERT_-prefixed environment overlay, with
// per-project API keys also resolvable from API_KEY_<NAME> variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/itswl/balance-alert/pkg/monitor"
	"github.com/itswl/balance-alert/pkg/renewal"
)

// Config holds all balance-alert configuration.
type Config struct {
	Projects      []ProjectConfig      `mapstructure:"projects"`
	Subscriptions []SubscriptionConfig `mapstructure:"subscriptions"`
	Settings      SettingsConfig       `mapstructure:"settings"`
	Webhook       WebhookConfig        `mapstructure:"webhook"`
	Providers     ProvidersConfig      `mapstructure:"providers"`
	Storage       StorageConfig        `mapstructure:"storage"`
	Server        ServerConfig         `mapstructure:"server"`
	Logging       LoggingConfig        `mapstructure:"logging"`
}

// ProjectConfig defines one monitored account.
type ProjectConfig struct {
	Name      string  `mapstructure:"name"`
	Provider  string  `mapstructure:"provider"`
	APIKey    string  `mapstructure:"api_key"`
	Threshold float64 `mapstructure:"threshold"`
	Kind      string  `mapstructure:"kind"`
	Enabled   *bool   `mapstructure:"enabled"`
}

// SubscriptionConfig defines one recurring subscription to track.
type SubscriptionConfig struct {
	Name            string  `mapstructure:"name"`
	CycleType       string  `mapstructure:"cycle_type"`
	RenewalDay      int     `mapstructure:"renewal_day"`
	RenewalMonth    int     `mapstructure:"renewal_month"`
	AlertDaysBefore int     `mapstructure:"alert_days_before"`
	Amount          float64 `mapstructure:"amount"`
	Currency        string  `mapstructure:"currency"`
	LastRenewed     string  `mapstructure:"last_renewed"`
	Enabled         *bool   `mapstructure:"enabled"`
}

// SettingsConfig defines engine tunables.
type SettingsConfig struct {
	MaxConcurrentChecks int           `mapstructure:"max_concurrent_checks"`
	CacheTTL            time.Duration `mapstructure:"cache_ttl"`
	CheckInterval       time.Duration `mapstructure:"check_interval"`
	MinRefreshInterval  time.Duration `mapstructure:"min_refresh_interval"`
	CycleTimeout        time.Duration `mapstructure:"cycle_timeout"`
	DryRun              bool          `mapstructure:"dry_run"`
}

// WebhookConfig defines the notification sink.
type WebhookConfig struct {
	URL    string `mapstructure:"url"`
	Type   string `mapstructure:"type"`
	Source string `mapstructure:"source"`
	Secret string `mapstructure:"secret"`
}

// ProvidersConfig defines where declarative provider descriptors live.
type ProvidersConfig struct {
	Dir string `mapstructure:"dir"`
}

// StorageConfig defines database settings.
type StorageConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig defines the HTTP API settings.
type ServerConfig struct {
	Listen string `mapstructure:"listen"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("find home directory: %w", err)
		}

		v.AddConfigPath(filepath.Join(home, ".balance-alert"))
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// Defaults
	home, _ := os.UserHomeDir()
	v.SetDefault("storage.path", filepath.Join(home, ".balance-alert", "history.db"))
	v.SetDefault("server.listen", ":8080")
	v.SetDefault("settings.max_concurrent_checks", 20)
	v.SetDefault("settings.cache_ttl", "5m")
	v.SetDefault("settings.check_interval", "1h")
	v.SetDefault("settings.min_refresh_interval", "30s")
	v.SetDefault("settings.cycle_timeout", "2m")
	v.SetDefault("settings.dry_run", false)
	v.SetDefault("webhook.type", "custom")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Environment variables
	v.SetEnvPrefix("BALERT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// EnabledProjects resolves the enabled project entries into validated
// domain values. Missing API keys fall back to the API_KEY_<NAME>
// environment variable before validation rejects the entry.
func (c *Config) EnabledProjects() ([]monitor.Project, error) {
	var projects []monitor.Project
	for _, pc := range c.Projects {
		if !enabled(pc.Enabled) {
			continue
		}

		key := pc.APIKey
		if key == "" {
			key = os.Getenv(envKeyName(pc.Name))
		}

		kind := monitor.Kind(pc.Kind)
		if pc.Kind == "" {
			kind = monitor.KindBalance
		}

		p := monitor.Project{
			ID:         monitor.ProjectID(pc.Provider, pc.Name),
			Name:       pc.Name,
			Provider:   pc.Provider,
			Credential: key,
			Threshold:  pc.Threshold,
			Kind:       kind,
			Enabled:    true,
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, nil
}

// EnabledSubscriptions resolves the enabled subscription entries into
// validated domain values.
func (c *Config) EnabledSubscriptions() ([]renewal.Subscription, error) {
	var subs []renewal.Subscription
	for _, sc := range c.Subscriptions {
		if !enabled(sc.Enabled) {
			continue
		}

		s := renewal.Subscription{
			Name:            sc.Name,
			Cycle:           renewal.Cycle(sc.CycleType),
			RenewalDay:      sc.RenewalDay,
			RenewalMonth:    sc.RenewalMonth,
			AlertDaysBefore: sc.AlertDaysBefore,
			Amount:          sc.Amount,
			Currency:        sc.Currency,
			Enabled:         true,
		}
		if sc.LastRenewed != "" {
			d, err := time.Parse("2006-01-02", sc.LastRenewed)
			if err != nil {
				return nil, fmt.Errorf("config: subscription %q: bad last_renewed %q: %w", sc.Name, sc.LastRenewed, err)
			}
			s.LastRenewed = &d
		}
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		subs = append(subs, s)
	}
	return subs, nil
}

// envKeyName maps a project name to its API key environment variable:
// uppercased, with every non-alphanumeric run replaced by underscores.
func envKeyName(name string) string {
	var b strings.Builder
	b.WriteString("API_KEY_")
	for _, r := range strings.ToUpper(name) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

// enabled treats an absent flag as true.
func enabled(flag *bool) bool {
	return flag == nil || *flag
}
