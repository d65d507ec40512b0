package core

import (
	"github.com/google/wire"
)

// ProviderSet is the Wire provider set for the watch engine.
var ProviderSet = wire.NewSet(
	NewClient,
)
