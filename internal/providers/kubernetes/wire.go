package kubernetes

import (
	"github.com/google/wire"

	"github.com/otterscale/kubewatch/internal/core"
)

// ProviderSet is the Wire provider set for the Kubernetes adapters.
var ProviderSet = wire.NewSet(
	ProvideRESTConfig,
	New,
	NewKindRegistry,
	NewAccessChecker,
	NewWatchRepo,
	wire.Bind(new(core.KindResolver), new(*KindRegistry)),
	wire.Bind(new(core.AccessChecker), new(*AccessChecker)),
	wire.Bind(new(core.TargetWatcher), new(*WatchRepo)),
)
