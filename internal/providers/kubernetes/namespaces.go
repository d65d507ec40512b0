package kubernetes

import (
	"context"
	"slices"
	"sync"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/otterscale/kubewatch/internal/core"
)

// NamespaceProvider returns the configured namespaces, or every
// namespace the credentials can list when none are configured.
type NamespaceProvider struct {
	kubernetes *Kubernetes
	configured []string

	mu         sync.RWMutex
	namespaces []string
}

var _ core.NamespaceProvider = (*NamespaceProvider)(nil)

func NewNamespaceProvider(kubernetes *Kubernetes, configured []string) *NamespaceProvider {
	p := &NamespaceProvider{
		kubernetes: kubernetes,
		configured: slices.Clone(configured),
	}
	p.namespaces = p.configured
	return p
}

// Refresh lists the namespaces when none are configured.
func (p *NamespaceProvider) Refresh(ctx context.Context) error {
	if len(p.configured) > 0 {
		return nil
	}

	list, err := p.kubernetes.clientset.CoreV1().Namespaces().List(ctx, metav1.ListOptions{})
	if err != nil {
		return wrapK8sError(err)
	}

	namespaces := make([]string, 0, len(list.Items))
	for i := range list.Items {
		namespaces = append(namespaces, list.Items[i].Name)
	}
	slices.Sort(namespaces)

	p.mu.Lock()
	p.namespaces = namespaces
	p.mu.Unlock()
	return nil
}

func (p *NamespaceProvider) Namespaces() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.namespaces)
}
