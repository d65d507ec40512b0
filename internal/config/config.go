package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config wraps a viper instance preloaded with the defaults of every
// option table.
type Config struct {
	v *viper.Viper
}

// New builds a Config from defaults, the optional config file and the
// environment. Flags are bound later by each command via BindFlags.
func New() (*Config, error) {
	v := viper.New()

	// default values
	for _, options := range [][]Option{CommonOptions, WatchOptions, ServeOptions} {
		for _, o := range options {
			v.SetDefault(o.Key, o.Default)
		}
	}

	// load config from file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/kubewatch/")

	if err := v.ReadInConfig(); err != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !(errors.As(err, &notFoundErr) || errors.Is(err, os.ErrNotExist)) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// load config from environment variables
	v.SetEnvPrefix("KUBEWATCH")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return &Config{v: v}, nil
}

// BindFlags registers options on fs and binds each flag to its key.
func (c *Config) BindFlags(fs *pflag.FlagSet, options []Option) error {
	for _, o := range options {
		switch v := o.Default.(type) {
		case string:
			fs.String(o.Flag, v, o.Description)
		case int:
			fs.Int(o.Flag, v, o.Description)
		case bool:
			fs.Bool(o.Flag, v, o.Description)
		case []string:
			fs.StringSlice(o.Flag, v, o.Description)
		case time.Duration:
			fs.Duration(o.Flag, v, o.Description)
		default:
			return fmt.Errorf("unsupported flag type for key: %s", o.Key)
		}

		if err := c.v.BindPFlag(o.Key, fs.Lookup(o.Flag)); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", o.Flag, err)
		}
	}

	return nil
}

func (c *Config) Debug() bool {
	return c.v.GetBool(keyDebug) // KUBEWATCH_DEBUG
}

func (c *Config) WatchServerURL() string {
	return c.v.GetString(keyWatchServerURL) // KUBEWATCH_WATCH_SERVER_URL
}

func (c *Config) WatchBearerToken() string {
	return c.v.GetString(keyWatchBearerToken) // KUBEWATCH_WATCH_BEARER_TOKEN
}

func (c *Config) WatchPath() string {
	return c.v.GetString(keyWatchPath) // KUBEWATCH_WATCH_PATH
}

func (c *Config) WatchKinds() []string {
	return c.v.GetStringSlice(keyWatchKinds) // KUBEWATCH_WATCH_KINDS
}

func (c *Config) WatchNamespaces() []string {
	return c.v.GetStringSlice(keyWatchNamespaces) // KUBEWATCH_WATCH_NAMESPACES
}

func (c *Config) WatchDebounce() time.Duration {
	return c.v.GetDuration(keyWatchDebounce) // KUBEWATCH_WATCH_DEBOUNCE
}

func (c *Config) WatchHealthInterval() time.Duration {
	return c.v.GetDuration(keyWatchHealthInterval) // KUBEWATCH_WATCH_HEALTH_INTERVAL
}

func (c *Config) WatchStreamEndAttempts() int {
	return c.v.GetInt(keyWatchStreamEndAttempts) // KUBEWATCH_WATCH_STREAM_END_ATTEMPTS
}

func (c *Config) WatchStreamEndDelay() time.Duration {
	return c.v.GetDuration(keyWatchStreamEndDelay) // KUBEWATCH_WATCH_STREAM_END_DELAY
}

func (c *Config) WatchMaxBufferBytes() int {
	return c.v.GetInt(keyWatchMaxBufferBytes) // KUBEWATCH_WATCH_MAX_BUFFER_BYTES
}

func (c *Config) WatchPreload() bool {
	return c.v.GetBool(keyWatchPreload) // KUBEWATCH_WATCH_PRELOAD
}

func (c *Config) WatchWaitUntilLoaded() bool {
	return c.v.GetBool(keyWatchWaitUntilLoaded) // KUBEWATCH_WATCH_WAIT_UNTIL_LOADED
}

func (c *Config) WatchLoadOnce() bool {
	return c.v.GetBool(keyWatchLoadOnce) // KUBEWATCH_WATCH_LOAD_ONCE
}

func (c *Config) WatchNetworkProbeInterval() time.Duration {
	return c.v.GetDuration(keyWatchNetworkProbeInterval) // KUBEWATCH_WATCH_NETWORK_PROBE_INTERVAL
}

func (c *Config) WatchRefreshInterval() time.Duration {
	return c.v.GetDuration(keyWatchRefreshInterval) // KUBEWATCH_WATCH_REFRESH_INTERVAL
}

func (c *Config) WatchMetricsAddress() string {
	return c.v.GetString(keyWatchMetricsAddress) // KUBEWATCH_WATCH_METRICS_ADDRESS
}

func (c *Config) ServeAddress() string {
	return c.v.GetString(keyServeAddress) // KUBEWATCH_SERVE_ADDRESS
}

func (c *Config) ServeAllowedOrigins() []string {
	return c.v.GetStringSlice(keyServeAllowedOrigins) // KUBEWATCH_SERVE_ALLOWED_ORIGINS
}

func (c *Config) ServeOIDCIssuer() string {
	return c.v.GetString(keyServeOIDCIssuer) // KUBEWATCH_SERVE_OIDC_ISSUER
}

func (c *Config) ServeOIDCClientID() string {
	return c.v.GetString(keyServeOIDCClientID) // KUBEWATCH_SERVE_OIDC_CLIENT_ID
}
