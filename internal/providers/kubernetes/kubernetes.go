package kubernetes

import (
	"fmt"
	"slices"

	"k8s.io/client-go/discovery"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"

	"github.com/otterscale/kubewatch/internal/core"
)

// Kubernetes bundles the clients the adapters share. All of them
// reuse the transport of one rest.Config.
type Kubernetes struct {
	config    *rest.Config
	clientset kubernetes.Interface
	dynamic   dynamic.Interface
	discovery discovery.DiscoveryInterface
}

// New builds the typed, dynamic and discovery clients for config.
func New(config *rest.Config) (*Kubernetes, error) {
	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create clientset: %w", err)
	}

	dyn, err := dynamic.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create dynamic client: %w", err)
	}

	return &Kubernetes{
		config:    config,
		clientset: clientset,
		dynamic:   dyn,
		discovery: clientset.Discovery(),
	}, nil
}

// NewWithClients wraps existing clients, e.g. fakes.
func NewWithClients(clientset kubernetes.Interface, dyn dynamic.Interface) *Kubernetes {
	return &Kubernetes{
		clientset: clientset,
		dynamic:   dyn,
		discovery: clientset.Discovery(),
	}
}

// impersonating returns a dynamic client acting as user. The
// "system:authenticated" group is always included.
func (k *Kubernetes) impersonating(user core.UserInfo) (dynamic.Interface, error) {
	if k.config == nil {
		return nil, &core.ErrNotReady{Subsystem: "impersonation"}
	}

	groups := user.Groups
	if !slices.Contains(groups, "system:authenticated") {
		groups = append(slices.Clone(groups), "system:authenticated")
	}

	userConfig := rest.CopyConfig(k.config)
	userConfig.Impersonate = rest.ImpersonationConfig{
		UserName: user.Subject,
		Groups:   groups,
	}
	return dynamic.NewForConfig(userConfig)
}
