package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/otterscale/kubewatch/internal/cmd/watch"
	"github.com/otterscale/kubewatch/internal/config"
	"github.com/otterscale/kubewatch/internal/core"
)

type WatcherInjector func() (*watch.Watcher, func(), error)

func NewWatchCommand(conf *config.Config, newWatcher WatcherInjector) (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:     "watch",
		Short:   "Keep in-memory stores of Kubernetes resources current through one multiplexed watch stream",
		Example: "kubewatch watch --server-url=http://kubewatch:8299 --kinds=pods,deployments.apps --namespaces=default",
		RunE: func(cmd *cobra.Command, _ []string) error {
			w, cleanup, err := newWatcher()
			if err != nil {
				return fmt.Errorf("failed to initialize watcher: %w", err)
			}
			defer cleanup()

			return w.Run(cmd.Context(), watchConfig(conf))
		},
	}

	if err := conf.BindFlags(cmd.Flags(), config.WatchOptions); err != nil {
		return nil, err
	}

	return cmd, nil
}

func watchConfig(conf *config.Config) watch.Config {
	return watch.Config{
		ServerURL:         conf.WatchServerURL(),
		Path:              conf.WatchPath(),
		BearerToken:       conf.WatchBearerToken(),
		Kinds:             conf.WatchKinds(),
		Namespaces:        conf.WatchNamespaces(),
		Debounce:          conf.WatchDebounce(),
		HealthInterval:    conf.WatchHealthInterval(),
		StreamEndAttempts: conf.WatchStreamEndAttempts(),
		StreamEndDelay:    conf.WatchStreamEndDelay(),
		MaxBufferBytes:    conf.WatchMaxBufferBytes(),
		Subscribe: core.SubscribeOptions{
			Preload:         conf.WatchPreload(),
			WaitUntilLoaded: conf.WatchWaitUntilLoaded(),
			LoadOnce:        conf.WatchLoadOnce(),
		},
		ProbeInterval:   conf.WatchNetworkProbeInterval(),
		RefreshInterval: conf.WatchRefreshInterval(),
		MetricsAddress:  conf.WatchMetricsAddress(),
	}
}
