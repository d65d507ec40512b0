package core

import "encoding/json"

// WatchEventType represents the type of a resource watch event as it
// appears on the multiplexed stream.
type WatchEventType string

const (
	WatchEventAdded    WatchEventType = "ADDED"
	WatchEventModified WatchEventType = "MODIFIED"
	WatchEventDeleted  WatchEventType = "DELETED"
	WatchEventBookmark WatchEventType = "BOOKMARK"
	WatchEventError    WatchEventType = "ERROR"

	// WatchEventStreamEnd is emitted by the watch route when the
	// upstream watch for a single target closes. URL names the target.
	WatchEventStreamEnd WatchEventType = "STREAM_END"
)

// IsResourceChange reports whether t carries a resource object whose
// resourceVersion advances the resumption point.
func (t WatchEventType) IsResourceChange() bool {
	switch t {
	case WatchEventAdded, WatchEventModified, WatchEventDeleted:
		return true
	}
	return false
}

// WatchEvent is a single line of the multiplexed stream. Object
// carries the raw Kubernetes resource (or a Status for ERROR events)
// as a generic map so that the domain layer does not depend on
// unstructured.Unstructured for the wire format.
type WatchEvent struct {
	Type   WatchEventType `json:"type"`
	Object map[string]any `json:"object,omitempty"`
	URL    string         `json:"url,omitempty"`
}

// ClientIDHeader carries the watch client instance id on the streamed
// watch request.
const ClientIDHeader = "X-Kubewatch-Client"

// WatchRequest is the body of the streamed watch request: the list of
// watch URLs to multiplex onto one response.
type WatchRequest struct {
	APIs []string `json:"apis"`
}

// decodeWatchEvent decodes a single stream line.
func decodeWatchEvent(line []byte) (WatchEvent, error) {
	var event WatchEvent
	if err := json.Unmarshal(line, &event); err != nil {
		return WatchEvent{}, err
	}
	return event, nil
}

// Watcher provides a channel of WatchEvents and a way to stop the
// underlying watch. The watch route consumes one Watcher per target
// URL, keeping the handler free of client-go watch types.
type Watcher interface {
	// ResultChan returns a channel that receives watch events.
	// The channel is closed when the watch ends or Stop is called.
	ResultChan() <-chan WatchEvent
	// Stop terminates the watch and closes the result channel.
	Stop()
}
