package kubernetes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"

	"github.com/otterscale/kubewatch/internal/core"
)

// StreamRepo opens the multiplexed watch request against the watch
// route of a kubewatch backend.
type StreamRepo struct {
	client   *rest.RESTClient
	path     string
	clientID string
}

var _ core.StreamRepo = (*StreamRepo)(nil)

// NewStreamRepo returns a StreamRepo posting to serverURL+path,
// authenticating with bearerToken when it is set. The request never
// times out; it ends when the server closes the stream or the context
// is cancelled.
func NewStreamRepo(serverURL, path, bearerToken, clientID string) (*StreamRepo, error) {
	cfg := &rest.Config{
		Host:        serverURL,
		BearerToken: bearerToken,
		ContentConfig: rest.ContentConfig{
			ContentType:          "application/json",
			NegotiatedSerializer: scheme.Codecs.WithoutConversion(),
		},
		UserAgent: rest.DefaultKubernetesUserAgent(),
	}

	client, err := rest.UnversionedRESTClientFor(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create watch client for %s: %w", serverURL, err)
	}

	return &StreamRepo{
		client:   client,
		path:     path,
		clientID: clientID,
	}, nil
}

// Open posts the watch URLs and returns the streamed response body.
func (r *StreamRepo) Open(ctx context.Context, apis []string) (io.ReadCloser, error) {
	body, err := json.Marshal(core.WatchRequest{APIs: apis})
	if err != nil {
		return nil, err
	}

	stream, err := r.client.Post().
		AbsPath(r.path).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/x-ndjson").
		SetHeader(core.ClientIDHeader, r.clientID).
		Body(body).
		Stream(ctx)
	if err != nil {
		return nil, wrapK8sError(err)
	}
	return stream, nil
}
