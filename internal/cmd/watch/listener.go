package watch

import (
	"log/slog"

	"github.com/otterscale/kubewatch/internal/core"
	"github.com/otterscale/kubewatch/internal/providers/store"
)

// newStoreListener folds data messages into the matching store and
// logs the rest of the stream.
func newStoreListener(stores []*store.ObjectStore) core.Listener {
	log := slog.Default().With("component", "store-listener")

	return func(msg core.WatchMessage) {
		switch msg.Type {
		case core.MessageData:
			if msg.Object == nil {
				return
			}
			applied := false
			for _, s := range stores {
				if s.Apply(msg) {
					applied = true
					log.Debug("store updated",
						"event", msg.Event,
						"kind", msg.Object.GetKind(),
						"namespace", msg.Object.GetNamespace(),
						"name", msg.Object.GetName(),
						"size", s.Len(),
					)
					break
				}
			}
			if !applied {
				log.Debug("event without store", "event", msg.Event, "kind", msg.Object.GetKind())
			}
		case core.MessageError:
			log.Warn("watch error", "status", msg.Error["status"], "reason", msg.Error["reason"], "message", msg.Error["message"])
		case core.MessageStreamEnd:
			log.Info("target stream ended", "url", msg.URL)
		}
	}
}
