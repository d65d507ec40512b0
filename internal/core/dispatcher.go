package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// MessageType tags the variant carried by a WatchMessage.
type MessageType int

const (
	// MessageData carries an ADDED, MODIFIED or DELETED object.
	MessageData MessageType = iota
	// MessageError carries a server-reported ERROR event.
	MessageError
	// MessageStreamEnd signals that one target's sub-stream ended.
	MessageStreamEnd
)

func (t MessageType) String() string {
	switch t {
	case MessageData:
		return "data"
	case MessageError:
		return "error"
	case MessageStreamEnd:
		return "stream-end"
	default:
		return fmt.Sprintf("MessageType(%d)", int(t))
	}
}

// WatchMessage is what listeners receive for every dispatched line.
type WatchMessage struct {
	Type  MessageType
	Event WatchEventType

	// Object is set for MessageData. API and Store are nil when the
	// object's kind is not registered; the data is still delivered.
	Object *unstructured.Unstructured
	API    KindAPI
	Store  Store

	// Error is the raw object of an ERROR event.
	Error map[string]any

	// URL is the target whose sub-stream ended (MessageStreamEnd).
	URL string
}

// Listener receives messages synchronously, in dispatch order.
type Listener func(WatchMessage)

type listenerEntry struct {
	id uint64
	fn Listener
}

// Dispatcher classifies decoded events, keeps the resumption table up
// to date and fans messages out to listeners.
type Dispatcher struct {
	kinds       KindResolver
	versions    *ResumptionTable
	onStreamEnd func(ctx context.Context, url string)
	metrics     *watchMetrics
	log         *slog.Logger

	mu        sync.Mutex
	listeners []listenerEntry
	nextID    uint64
	stores    map[string]Store
	unknown   map[WatchEventType]struct{}
}

// NewDispatcher returns a Dispatcher. onStreamEnd may be nil.
func NewDispatcher(kinds KindResolver, versions *ResumptionTable, onStreamEnd func(ctx context.Context, url string)) *Dispatcher {
	return &Dispatcher{
		kinds:       kinds,
		versions:    versions,
		onStreamEnd: onStreamEnd,
		metrics:     newWatchMetrics(),
		log:         slog.Default().With("component", "watch-dispatcher"),
		stores:      make(map[string]Store),
		unknown:     make(map[WatchEventType]struct{}),
	}
}

// Subscribe appends fn to the listener list and returns its disposer.
func (d *Dispatcher) Subscribe(fn Listener) func() {
	d.mu.Lock()
	d.nextID++
	id := d.nextID
	d.listeners = append(d.listeners, listenerEntry{id: id, fn: fn})
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			for i, l := range d.listeners {
				if l.id == id {
					d.listeners = append(d.listeners[:i:i], d.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// RegisterStore attaches store to the messages of the targets it
// subscribes.
func (d *Dispatcher) RegisterStore(store Store) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, api := range store.SubscribeAPIs() {
		d.stores[api.APIBase()] = store
	}
}

// Dispatch decodes one stream line and emits the resulting message.
// Unknown event types are dropped after a single log line per type.
func (d *Dispatcher) Dispatch(ctx context.Context, line []byte) error {
	event, err := decodeWatchEvent(line)
	if err != nil {
		return fmt.Errorf("decode watch event: %w", err)
	}

	msg, ok := d.message(ctx, event)
	if !ok {
		return nil
	}

	d.metrics.eventDispatched(event.Type)
	d.emit(msg)
	return nil
}

func (d *Dispatcher) message(ctx context.Context, event WatchEvent) (WatchMessage, bool) {
	switch {
	case event.Type.IsResourceChange():
		return d.dataMessage(event), true

	case event.Type == WatchEventError:
		return WatchMessage{Type: MessageError, Event: event.Type, Error: event.Object}, true

	case event.Type == WatchEventStreamEnd:
		if d.onStreamEnd != nil {
			d.onStreamEnd(ctx, event.URL)
		}
		return WatchMessage{Type: MessageStreamEnd, Event: event.Type, URL: event.URL}, true

	default:
		d.mu.Lock()
		_, seen := d.unknown[event.Type]
		d.unknown[event.Type] = struct{}{}
		d.mu.Unlock()
		if !seen {
			d.log.Debug("ignoring unknown watch event type", "type", event.Type)
		}
		return WatchMessage{}, false
	}
}

func (d *Dispatcher) dataMessage(event WatchEvent) WatchMessage {
	obj := &unstructured.Unstructured{Object: event.Object}
	if obj.Object == nil {
		obj.Object = map[string]any{}
	}
	msg := WatchMessage{Type: MessageData, Event: event.Type, Object: obj}

	api, ok := d.kinds.ForObject(obj.GetAPIVersion(), obj.GetKind())
	if !ok {
		return msg
	}

	if obj.GetSelfLink() == "" {
		obj.SetSelfLink(api.ObjectURL(obj.GetNamespace(), obj.GetName()))
	}
	d.versions.Record(api.Kind(), obj.GetNamespace(), obj.GetResourceVersion())

	d.mu.Lock()
	msg.API = api
	msg.Store = d.stores[api.APIBase()]
	d.mu.Unlock()

	return msg
}

func (d *Dispatcher) emit(msg WatchMessage) {
	d.mu.Lock()
	listeners := make([]Listener, len(d.listeners))
	for i, l := range d.listeners {
		listeners[i] = l.fn
	}
	d.mu.Unlock()

	for _, fn := range listeners {
		fn(msg)
	}
}
