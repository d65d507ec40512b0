package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/otterscale/kubewatch/internal/cmd/server"
	"github.com/otterscale/kubewatch/internal/config"
)

type ServerInjector func() (*server.Server, func(), error)

func NewServeCommand(conf *config.Config, newServer ServerInjector) (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Start the watch route backend that multiplexes Kubernetes watches onto one stream per client",
		Example: "kubewatch serve --address=:8299 --oidc-issuer=https://sso.example.com/realms/main",
		RunE: func(cmd *cobra.Command, _ []string) error {
			srv, cleanup, err := newServer()
			if err != nil {
				return fmt.Errorf("failed to initialize server: %w", err)
			}
			defer cleanup()

			cfg := server.Config{
				Address:        conf.ServeAddress(),
				AllowedOrigins: conf.ServeAllowedOrigins(),
				OIDCIssuer:     conf.ServeOIDCIssuer(),
				OIDCClientID:   conf.ServeOIDCClientID(),
			}

			return srv.Run(cmd.Context(), cfg)
		},
	}

	if err := conf.BindFlags(cmd.Flags(), config.ServeOptions); err != nil {
		return nil, err
	}

	return cmd, nil
}
