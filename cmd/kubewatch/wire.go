//go:build wireinject

package main

import (
	"github.com/google/wire"
	"github.com/spf13/cobra"

	"github.com/otterscale/kubewatch/internal/cmd"
	"github.com/otterscale/kubewatch/internal/cmd/server"
	"github.com/otterscale/kubewatch/internal/cmd/watch"
	"github.com/otterscale/kubewatch/internal/config"
	"github.com/otterscale/kubewatch/internal/core"
	"github.com/otterscale/kubewatch/internal/handler"
	"github.com/otterscale/kubewatch/internal/providers/kubernetes"
)

func wireCmd() (*cobra.Command, func(), error) {
	panic(wire.Build(
		newCmd,
		config.ProviderSet,
	))
}

func wireServer(core.Version) (*server.Server, func(), error) {
	panic(wire.Build(
		cmd.ProviderSet,
		handler.ProviderSet,
		kubernetes.ProviderSet,
	))
}

func wireWatcher(core.Version) (*watch.Watcher, func(), error) {
	panic(wire.Build(
		cmd.ProviderSet,
		kubernetes.ProviderSet,
	))
}
