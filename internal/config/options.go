package config

import (
	"strings"
	"time"
)

// Option describes a single configuration entry: its viper key, the
// corresponding CLI flag name, the compiled default, and a
// human-readable description shown in --help output.
type Option struct {
	Key         string
	Flag        string
	Default     any
	Description string
}

// CommonOptions are bound as persistent flags on the root command.
var CommonOptions = []Option{
	{Key: keyDebug, Flag: toFlag(keyDebug), Default: false, Description: "Enable debug logging"},
}

// WatchOptions defines the configuration entries of the watch client.
var WatchOptions = []Option{
	{Key: keyWatchServerURL, Flag: toFlag(keyWatchServerURL), Default: "http://127.0.0.1:8299", Description: "Watch backend base url"},
	{Key: keyWatchBearerToken, Flag: toFlag(keyWatchBearerToken), Default: "", Description: "Bearer token sent to the watch backend"},
	{Key: keyWatchPath, Flag: toFlag(keyWatchPath), Default: "/api/watch", Description: "Watch route path on the backend"},
	{Key: keyWatchKinds, Flag: toFlag(keyWatchKinds), Default: []string{"pods"}, Description: "Resources to watch, e.g. pods or deployments.apps"},
	{Key: keyWatchNamespaces, Flag: toFlag(keyWatchNamespaces), Default: []string{}, Description: "Namespaces to watch (empty: all listable namespaces)"},
	{Key: keyWatchDebounce, Flag: toFlag(keyWatchDebounce), Default: time.Second, Description: "Debounce window for subscription changes"},
	{Key: keyWatchHealthInterval, Flag: toFlag(keyWatchHealthInterval), Default: 5 * time.Minute, Description: "Interval of the reconnect health check"},
	{Key: keyWatchStreamEndAttempts, Flag: toFlag(keyWatchStreamEndAttempts), Default: 5, Description: "Resource version refresh attempts after a stream end"},
	{Key: keyWatchStreamEndDelay, Flag: toFlag(keyWatchStreamEndDelay), Default: time.Second, Description: "Delay between stream end refresh attempts"},
	{Key: keyWatchMaxBufferBytes, Flag: toFlag(keyWatchMaxBufferBytes), Default: 16 << 20, Description: "Maximum bytes buffered for an incomplete stream line"},
	{Key: keyWatchPreload, Flag: toFlag(keyWatchPreload), Default: true, Description: "Bulk load stores before watching"},
	{Key: keyWatchWaitUntilLoaded, Flag: toFlag(keyWatchWaitUntilLoaded), Default: true, Description: "Subscribe only after stores are loaded"},
	{Key: keyWatchLoadOnce, Flag: toFlag(keyWatchLoadOnce), Default: false, Description: "Skip the bulk load of stores already loaded"},
	{Key: keyWatchNetworkProbeInterval, Flag: toFlag(keyWatchNetworkProbeInterval), Default: 10 * time.Second, Description: "Interval of the backend reachability probe"},
	{Key: keyWatchRefreshInterval, Flag: toFlag(keyWatchRefreshInterval), Default: time.Minute, Description: "Interval of namespace and access re-evaluation"},
	{Key: keyWatchMetricsAddress, Flag: toFlag(keyWatchMetricsAddress), Default: ":8298", Description: "Listen address for health and metrics"},
}

// ServeOptions defines the configuration entries of the watch route
// backend.
var ServeOptions = []Option{
	{Key: keyServeAddress, Flag: toFlag(keyServeAddress), Default: ":8299", Description: "Server listen address"},
	{Key: keyServeAllowedOrigins, Flag: toFlag(keyServeAllowedOrigins), Default: []string{}, Description: "Server allowed origins"},
	{Key: keyServeOIDCIssuer, Flag: toFlag(keyServeOIDCIssuer), Default: "", Description: "OIDC issuer url (empty: authentication disabled)"},
	{Key: keyServeOIDCClientID, Flag: toFlag(keyServeOIDCClientID), Default: "kubewatch", Description: "OIDC client id"},
}

// toFlag converts a viper key like "watch.stream_end_delay" into a
// CLI flag like "stream-end-delay" by lower-casing, replacing dots and
// underscores with hyphens, and stripping the "watch-" or "serve-"
// prefix.
func toFlag(key string) string {
	flag := strings.ToLower(key)
	flag = strings.ReplaceAll(flag, ".", "-")
	flag = strings.ReplaceAll(flag, "_", "-")
	flag = strings.TrimPrefix(flag, "watch-")
	flag = strings.TrimPrefix(flag, "serve-")
	return flag
}
