// Package cmd defines the Cobra subcommands (serve, watch) and their
// Wire provider sets. It bridges configuration, dependency injection,
// and the transport/application layers.
package cmd

import (
	"github.com/google/wire"

	"github.com/otterscale/kubewatch/internal/cmd/server"
	"github.com/otterscale/kubewatch/internal/cmd/watch"
)

// ProviderSet is the Wire provider set for the CLI layer. It exposes
// the Server and Watcher runtimes plus the server's handler.
var ProviderSet = wire.NewSet(
	server.NewServer,
	server.NewHandler,
	watch.NewWatcher,
)
