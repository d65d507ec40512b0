package kubernetes

import (
	"log/slog"
	"os"

	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// ProvideRESTConfig is a Wire provider that returns a *rest.Config
// for the Kubernetes API. In-cluster credentials win; otherwise the
// kubeconfig named by KUBECONFIG, or the default one, is used.
func ProvideRESTConfig() (*rest.Config, error) {
	cfg, err := rest.InClusterConfig()
	if err == nil {
		return cfg, nil
	}
	slog.Debug("in-cluster config not available, falling back to kubeconfig", "error", err)

	kubeconfig := os.Getenv(clientcmd.RecommendedConfigPathEnvVar)
	if kubeconfig == "" {
		kubeconfig = clientcmd.RecommendedHomeFile
	}
	return clientcmd.BuildConfigFromFlags("", kubeconfig)
}
