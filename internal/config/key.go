// Package config provides unified configuration loading from files,
// environment variables, and CLI flags using viper and pflag.
//
// Resolution order (highest wins):
//  1. CLI flags
//  2. Environment variables (prefix KUBEWATCH_)
//  3. Config file (config.yaml in . or /etc/kubewatch/)
//  4. Compiled defaults
package config

// Viper keys shared by every command.
const (
	keyDebug = "debug"
)

// Viper keys for the watch client.
const (
	keyWatchServerURL            = "watch.server_url"
	keyWatchBearerToken          = "watch.bearer_token"
	keyWatchPath                 = "watch.path"
	keyWatchKinds                = "watch.kinds"
	keyWatchNamespaces           = "watch.namespaces"
	keyWatchDebounce             = "watch.debounce"
	keyWatchHealthInterval       = "watch.health_interval"
	keyWatchStreamEndAttempts    = "watch.stream_end_attempts"
	keyWatchStreamEndDelay       = "watch.stream_end_delay"
	keyWatchMaxBufferBytes       = "watch.max_buffer_bytes"
	keyWatchPreload              = "watch.preload"
	keyWatchWaitUntilLoaded      = "watch.wait_until_loaded"
	keyWatchLoadOnce             = "watch.load_once"
	keyWatchNetworkProbeInterval = "watch.network_probe_interval"
	keyWatchRefreshInterval      = "watch.refresh_interval"
	keyWatchMetricsAddress       = "watch.metrics_address"
)

// Viper keys for the watch route backend.
const (
	keyServeAddress        = "serve.address"
	keyServeAllowedOrigins = "serve.allowed_origins"
	keyServeOIDCIssuer     = "serve.oidc_issuer"
	keyServeOIDCClientID   = "serve.oidc_client_id"
)
