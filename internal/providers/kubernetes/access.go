package kubernetes

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	authorizationv1 "k8s.io/api/authorization/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/otterscale/kubewatch/internal/core"
)

const (
	// DefaultAccessTTL is how long a SelfSubjectAccessReview verdict
	// is reused.
	DefaultAccessTTL = 10 * time.Minute

	// accessReviewTimeout bounds a single review call.
	accessReviewTimeout = 10 * time.Second
)

// AccessChecker asks the API server whether the current credentials
// may list and watch a resource. Verdicts are cached for a TTL and
// concurrent lookups of the same resource share one review.
type AccessChecker struct {
	kubernetes *Kubernetes
	ttl        time.Duration
	now        func() time.Time
	log        *slog.Logger

	mu      sync.RWMutex
	cache   map[string]accessEntry
	flights singleflight.Group
}

type accessEntry struct {
	allowed   bool
	expiresAt time.Time
}

var _ core.AccessChecker = (*AccessChecker)(nil)

// NewAccessChecker returns an AccessChecker with DefaultAccessTTL.
func NewAccessChecker(kubernetes *Kubernetes) *AccessChecker {
	return &AccessChecker{
		kubernetes: kubernetes,
		ttl:        DefaultAccessTTL,
		now:        time.Now,
		log:        slog.Default().With("component", "access-checker"),
		cache:      make(map[string]accessEntry),
	}
}

// IsAllowed reports whether api may be watched cluster-wide. A failed
// review is treated as allowed and not cached: the watch route then
// reports the real error on the stream.
func (c *AccessChecker) IsAllowed(api core.KindAPI) bool {
	key := api.APIBase()

	c.mu.RLock()
	entry, ok := c.cache[key]
	c.mu.RUnlock()

	if ok && c.now().Before(entry.expiresAt) {
		return entry.allowed
	}

	v, err, _ := c.flights.Do(key, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.Background(), accessReviewTimeout)
		defer cancel()

		allowed, err := c.review(ctx, api)
		if err != nil {
			return false, err
		}

		c.mu.Lock()
		c.cache[key] = accessEntry{allowed: allowed, expiresAt: c.now().Add(c.ttl)}
		c.mu.Unlock()

		return allowed, nil
	})
	if err != nil {
		c.log.Warn("access review failed, assuming allowed", "api", key, "error", err)
		return true
	}

	allowed := v.(bool)
	if !allowed {
		c.log.Debug("watch not permitted", "api", key)
	}
	return allowed
}

// Invalidate drops every cached verdict.
func (c *AccessChecker) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.cache)
}

func (c *AccessChecker) review(ctx context.Context, api core.KindAPI) (bool, error) {
	gvr := api.GroupVersionResource()

	for _, verb := range []string{"list", "watch"} {
		review := &authorizationv1.SelfSubjectAccessReview{
			Spec: authorizationv1.SelfSubjectAccessReviewSpec{
				ResourceAttributes: &authorizationv1.ResourceAttributes{
					Verb:     verb,
					Group:    gvr.Group,
					Version:  gvr.Version,
					Resource: gvr.Resource,
				},
			},
		}

		result, err := c.kubernetes.clientset.AuthorizationV1().SelfSubjectAccessReviews().Create(ctx, review, metav1.CreateOptions{})
		if err != nil {
			return false, wrapK8sError(err)
		}
		if !result.Status.Allowed {
			return false, nil
		}
	}
	return true, nil
}
